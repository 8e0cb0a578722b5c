// Package invoke is the adapter core shared by every external trigger
// (CLI command, deployment hook): it owns the connection lifecycle
// around one Runner call and folds every failure into a structured
// result for the caller to serialize.
package invoke

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phaserai/schema-migrate/internal/database"
	"github.com/phaserai/schema-migrate/internal/ledger"
	"github.com/phaserai/schema-migrate/internal/registry"
	"github.com/phaserai/schema-migrate/internal/runner"
	"github.com/phaserai/schema-migrate/internal/secrets"
)

// Request describes one invocation.
type Request struct {
	Action  Action
	Version string // optional target bound for up/down
	DryRun  bool
}

// Result is the adapter-agnostic invocation outcome.
type Result struct {
	Success              bool                     `json:"success"`
	Message              string                   `json:"message,omitempty"`
	AppliedCount         int                      `json:"applied_count"`
	Applied              []runner.MigrationReport `json:"applied_migrations,omitempty"`
	TotalExecutionTimeMs int                      `json:"total_execution_time_ms,omitempty"`
	Status               *runner.Status           `json:"status,omitempty"`
	Error                string                   `json:"error,omitempty"`
}

// connectFunc opens the pool; injectable for tests.
type connectFunc func(ctx context.Context, creds database.Credentials) (*pgxpool.Pool, error)

// catalogFunc loads the compiled catalog; injectable for tests.
type catalogFunc func() ([]registry.Definition, error)

// Invoker runs one action end to end: resolve credentials, open the
// pool, run, close the pool on every path.
type Invoker struct {
	resolver    secrets.Resolver
	lockTimeout time.Duration
	stmtTimeout time.Duration
	logger      *slog.Logger
	connect     connectFunc
	loadCatalog catalogFunc
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithLockTimeout sets the per-transaction lock_timeout for runs.
func WithLockTimeout(d time.Duration) Option {
	return func(i *Invoker) { i.lockTimeout = d }
}

// WithStatementTimeout sets the per-transaction statement_timeout for runs.
func WithStatementTimeout(d time.Duration) Option {
	return func(i *Invoker) { i.stmtTimeout = d }
}

// WithLogger sets the structured logger for operational events.
func WithLogger(l *slog.Logger) Option {
	return func(i *Invoker) { i.logger = l }
}

// New creates an Invoker resolving credentials through r.
func New(r secrets.Resolver, opts ...Option) *Invoker {
	inv := &Invoker{
		resolver: r,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(inv)
	}

	if inv.connect == nil {
		inv.connect = database.Connect
	}

	if inv.loadCatalog == nil {
		inv.loadCatalog = registry.Load
	}

	return inv
}

// Invoke executes the requested action and never returns a raw error:
// everything is folded into the Result so the caller can report it.
func (i *Invoker) Invoke(ctx context.Context, req Request) *Result {
	defs, err := i.loadCatalog()
	if err != nil {
		i.logger.Error("loading migration catalog failed", "error", err)
		return failureResult(err)
	}

	creds, err := i.resolver.Resolve(ctx)
	if err != nil {
		i.logger.Error("resolving database credentials failed", "error", err)
		return failureResult(err)
	}

	pool, err := i.connect(ctx, creds)
	if err != nil {
		i.logger.Error("connecting to database failed", "host", creds.Host, "error", err)
		return failureResult(err)
	}
	defer pool.Close()

	r := runner.New(pool, ledger.New(pool), defs,
		runner.WithTarget(req.Version),
		runner.WithDryRun(req.DryRun),
		runner.WithLockTimeout(i.lockTimeout),
		runner.WithStatementTimeout(i.stmtTimeout),
		runner.WithProgressCallback(i.logEvent),
	)

	switch req.Action {
	case ActionUp:
		res, err := r.Run(ctx)
		if err != nil {
			i.logger.Error("migration run failed", "error", err)
		}

		return fromRunner(res)
	case ActionDown:
		res, err := r.Down(ctx)
		if err != nil {
			i.logger.Error("rollback failed", "error", err)
		}

		return fromRunner(res)
	case ActionStatus:
		status, err := r.Status(ctx)
		if err != nil {
			i.logger.Error("status query failed", "error", err)
			return failureResult(err)
		}

		return &Result{Success: true, Status: status}
	default:
		return failureResult(errUnknownAction(req.Action))
	}
}

// logEvent translates runner progress into structured log records.
func (i *Invoker) logEvent(e runner.Event) {
	switch e.Phase {
	case runner.PhaseStarting:
		i.logger.Info("applying migration", "version", e.Definition.Version, "description", e.Definition.Description)
	case runner.PhaseApplied:
		i.logger.Info("migration applied", "version", e.Definition.Version, "duration", e.Duration)
	case runner.PhaseRollingBack:
		i.logger.Info("rolling back migration", "version", e.Definition.Version)
	case runner.PhaseRolledBack:
		i.logger.Info("migration rolled back", "version", e.Definition.Version, "duration", e.Duration)
	case runner.PhaseDryRun:
		i.logger.Info("dry run: would apply", "version", e.Definition.Version, "sql", e.Definition.UpSQL)
	case runner.PhaseFailed:
		i.logger.Error("migration failed", "version", e.Definition.Version, "error", e.Err)
	}
}

func fromRunner(res *runner.Result) *Result {
	return &Result{
		Success:              res.Success,
		Message:              res.Message,
		AppliedCount:         res.AppliedCount,
		Applied:              res.Applied,
		TotalExecutionTimeMs: res.TotalExecutionTimeMs,
		Error:                res.Error,
	}
}

func failureResult(err error) *Result {
	return &Result{
		Success: false,
		Message: "migration invocation failed: " + err.Error(),
		Error:   err.Error(),
	}
}
