// Package runner orchestrates schema migrations: it diffs the compiled
// catalog against the ledger, applies pending migrations sequentially
// inside transactions, and reports a structured result.
package runner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phaserai/schema-migrate/internal/database"
	"github.com/phaserai/schema-migrate/internal/ledger"
	"github.com/phaserai/schema-migrate/internal/parser"
	"github.com/phaserai/schema-migrate/internal/registry"
)

// Progress phases reported via Event.
const (
	PhaseStarting    = "starting"
	PhaseApplied     = "applied"
	PhaseFailed      = "failed"
	PhaseDryRun      = "dry_run"
	PhaseRollingBack = "rolling_back"
	PhaseRolledBack  = "rolled_back"
)

// Event is emitted for each migration the runner processes. The runner
// itself never prints; adapters subscribe to events for output.
type Event struct {
	Definition *registry.Definition
	Phase      string
	Duration   time.Duration
	Err        error
}

// LedgerStore abstracts schema_migrations operations for testability.
type LedgerStore interface {
	EnsureSchema(ctx context.Context) error
	AppliedVersions(ctx context.Context) (map[string]struct{}, error)
	Applied(ctx context.Context) ([]ledger.Entry, error)
	StoredChecksum(ctx context.Context, version string) (string, error)
	Record(ctx context.Context, db ledger.DB, p ledger.RecordParams) error
	Delete(ctx context.Context, db ledger.DB, version string) error
}

// lockReleaser is returned by lockFn and must be released when done.
type lockReleaser interface {
	Release(ctx context.Context) error
}

// lockFunc acquires the migration lock and returns a releaser.
type lockFunc func(ctx context.Context) (lockReleaser, error)

// migrateFunc executes one migration's forward or reverse step.
type migrateFunc func(ctx context.Context, d *registry.Definition) error

// Runner applies and rolls back migrations for one invocation. A
// Runner owns its pool for the duration of a call but does not close
// it; the invocation adapter owns the connection lifecycle.
type Runner struct {
	pool        *pgxpool.Pool
	ledger      LedgerStore
	defs        []registry.Definition
	target      string
	downSteps   int
	dryRun      bool
	lockTimeout time.Duration
	stmtTimeout time.Duration
	onProgress  func(Event)
	acquireLock lockFunc
	applyFn     migrateFunc
	rollbackFn  migrateFunc
}

// Option configures a Runner.
type Option func(*Runner)

// WithTarget bounds Run to versions <= target and Down to versions
// strictly above it.
func WithTarget(version string) Option {
	return func(r *Runner) { r.target = version }
}

// WithDownSteps sets how many migrations Down reverses when no target
// is given. Defaults to one.
func WithDownSteps(n int) Option {
	return func(r *Runner) { r.downSteps = n }
}

// WithDryRun makes Run report pending migrations without executing or
// recording anything.
func WithDryRun(b bool) Option {
	return func(r *Runner) { r.dryRun = b }
}

// WithLockTimeout sets the per-transaction lock_timeout.
func WithLockTimeout(d time.Duration) Option {
	return func(r *Runner) { r.lockTimeout = d }
}

// WithStatementTimeout sets the per-transaction statement_timeout.
func WithStatementTimeout(d time.Duration) Option {
	return func(r *Runner) { r.stmtTimeout = d }
}

// WithProgressCallback sets a function called for each migration processed.
func WithProgressCallback(fn func(Event)) Option {
	return func(r *Runner) { r.onProgress = fn }
}

// New creates a Runner over the given pool, ledger, and catalog.
func New(pool *pgxpool.Pool, l LedgerStore, defs []registry.Definition, opts ...Option) *Runner {
	r := &Runner{
		pool:      pool,
		ledger:    l,
		defs:      defs,
		downSteps: 1,
	}

	for _, opt := range opts {
		opt(r)
	}

	// Defaults for injectable functions are set after options so
	// internal tests can substitute them.
	if r.acquireLock == nil {
		r.acquireLock = func(ctx context.Context) (lockReleaser, error) {
			return database.AcquireLock(ctx, r.pool)
		}
	}

	if r.applyFn == nil {
		r.applyFn = r.applyDefinition
	}

	if r.rollbackFn == nil {
		r.rollbackFn = r.rollbackDefinition
	}

	return r
}

// Run applies all pending migrations in ascending version order,
// stopping at the first failure. Earlier successes in the batch stay
// committed; the result names them alongside the failure.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	lock, err := r.acquireLock(ctx)
	if err != nil {
		return failure(err, nil, 0), fmt.Errorf("acquiring migration lock: %w", err)
	}
	defer lock.Release(ctx) //nolint:errcheck // best-effort release on return

	if err := r.ledger.EnsureSchema(ctx); err != nil {
		return failure(err, nil, 0), err
	}

	applied, err := r.ledger.AppliedVersions(ctx)
	if err != nil {
		return failure(err, nil, 0), err
	}

	if err := r.verifyChecksums(ctx, applied); err != nil {
		return failure(err, nil, 0), err
	}

	pending := r.pending(applied)
	if len(pending) == 0 {
		return &Result{Success: true, Message: "No pending migrations"}, nil
	}

	if r.dryRun {
		return r.reportDryRun(pending), nil
	}

	return r.applyBatch(ctx, pending)
}

// verifyChecksums fails fast when an applied version's recorded
// checksum differs from the compiled definition, before any SQL runs.
func (r *Runner) verifyChecksums(ctx context.Context, applied map[string]struct{}) error {
	for i := range r.defs {
		d := &r.defs[i]

		if _, ok := applied[d.Version]; !ok {
			continue
		}

		stored, err := r.ledger.StoredChecksum(ctx, d.Version)
		if err != nil {
			return fmt.Errorf("checking migration %s: %w", d.Version, err)
		}

		if stored != d.Checksum {
			return fmt.Errorf("migration %s: %w: recorded=%s compiled=%s",
				d.Version, ErrChecksumDrift, stored, d.Checksum)
		}
	}

	return nil
}

// pending returns unapplied definitions in ascending order, bounded by
// the target version when one is set.
func (r *Runner) pending(applied map[string]struct{}) []registry.Definition {
	var out []registry.Definition

	for _, d := range r.defs {
		if _, ok := applied[d.Version]; ok {
			continue
		}

		if r.target != "" && d.Version > r.target {
			continue
		}

		out = append(out, d)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })

	return out
}

// reportDryRun emits a dry-run event per pending migration and builds
// a result without executing or recording anything.
func (r *Runner) reportDryRun(pending []registry.Definition) *Result {
	reports := make([]MigrationReport, 0, len(pending))

	for i := range pending {
		r.fireProgress(Event{Definition: &pending[i], Phase: PhaseDryRun})
		reports = append(reports, MigrationReport{
			Version:     pending[i].Version,
			Description: pending[i].Description,
		})
	}

	return &Result{
		Success: true,
		Message: fmt.Sprintf("Dry run: %d migration(s) would be applied", len(pending)),
		Applied: reports,
	}
}

// applyBatch runs each pending migration sequentially, stopping on the
// first failure.
func (r *Runner) applyBatch(ctx context.Context, pending []registry.Definition) (*Result, error) {
	var (
		reports []MigrationReport
		totalMs int
	)

	for i := range pending {
		d := &pending[i]

		r.fireProgress(Event{Definition: d, Phase: PhaseStarting})

		start := time.Now()
		execErr := r.applyFn(ctx, d)
		duration := time.Since(start)

		if execErr != nil {
			r.fireProgress(Event{Definition: d, Phase: PhaseFailed, Duration: duration, Err: execErr})

			wrapped := fmt.Errorf("applying migration %s: %w", d.Version, execErr)

			return failure(wrapped, reports, totalMs), wrapped
		}

		ms := int(duration.Milliseconds())
		totalMs += ms
		reports = append(reports, MigrationReport{
			Version:         d.Version,
			Description:     d.Description,
			ExecutionTimeMs: ms,
		})

		r.fireProgress(Event{Definition: d, Phase: PhaseApplied, Duration: duration})
	}

	return &Result{
		Success:              true,
		Message:              fmt.Sprintf("Applied %d migration(s)", len(reports)),
		AppliedCount:         len(reports),
		Applied:              reports,
		TotalExecutionTimeMs: totalMs,
	}, nil
}

// applyDefinition executes one migration's forward SQL and records the
// ledger entry. The record is written on the migration's own
// transaction so the two commit or roll back together. Batches with
// CREATE INDEX CONCURRENTLY cannot run in a transaction block; they
// execute on the pool and are recorded separately.
func (r *Runner) applyDefinition(ctx context.Context, d *registry.Definition) error {
	concurrent, err := parser.ContainsConcurrentIndex(d.UpSQL)
	if err != nil {
		return err
	}

	start := time.Now()

	if concurrent {
		if _, err := r.pool.Exec(ctx, d.UpSQL); err != nil {
			return fmt.Errorf("executing SQL: %w", err)
		}

		return r.ledger.Record(ctx, r.pool, ledger.RecordParams{
			Version:         d.Version,
			Checksum:        d.Checksum,
			ExecutionTimeMs: int(time.Since(start).Milliseconds()),
			Description:     d.Description,
		})
	}

	return execInTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		if err := setTimeouts(ctx, tx, r.lockTimeout, r.stmtTimeout); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, d.UpSQL); err != nil {
			return fmt.Errorf("executing SQL: %w", err)
		}

		return r.ledger.Record(ctx, tx, ledger.RecordParams{
			Version:         d.Version,
			Checksum:        d.Checksum,
			ExecutionTimeMs: int(time.Since(start).Milliseconds()),
			Description:     d.Description,
		})
	})
}

// Down rolls back applied migrations in descending version order: all
// versions above the target when one is set, otherwise the most recent
// downSteps. Stops at the first failure, leaving the ledger consistent
// with what was actually reversed.
func (r *Runner) Down(ctx context.Context) (*Result, error) {
	lock, err := r.acquireLock(ctx)
	if err != nil {
		return failure(err, nil, 0), fmt.Errorf("acquiring migration lock: %w", err)
	}
	defer lock.Release(ctx) //nolint:errcheck // best-effort release on return

	if err := r.ledger.EnsureSchema(ctx); err != nil {
		return failure(err, nil, 0), err
	}

	targets, err := r.rollbackTargets(ctx)
	if err != nil {
		return failure(err, nil, 0), err
	}

	if len(targets) == 0 {
		return &Result{Success: true, Message: "Nothing to roll back"}, nil
	}

	return r.rollbackBatch(ctx, targets)
}

// rollbackTargets resolves which applied versions to reverse, newest
// first, and fails if any lacks a compiled definition or down SQL.
func (r *Runner) rollbackTargets(ctx context.Context) ([]registry.Definition, error) {
	entries, err := r.ledger.Applied(ctx)
	if err != nil {
		return nil, err
	}

	byVersion := make(map[string]*registry.Definition, len(r.defs))
	for i := range r.defs {
		byVersion[r.defs[i].Version] = &r.defs[i]
	}

	var targets []registry.Definition

	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]

		if r.target != "" {
			if e.Version <= r.target {
				break
			}
		} else if len(targets) >= r.downSteps {
			break
		}

		d, ok := byVersion[e.Version]
		if !ok {
			return nil, fmt.Errorf("migration %s: %w", e.Version, ErrNotInRegistry)
		}

		if !d.Reversible() {
			return nil, fmt.Errorf("migration %s: %w", d.Version, ErrNoDownMigration)
		}

		targets = append(targets, *d)
	}

	return targets, nil
}

// rollbackBatch reverses each target sequentially, stopping on the
// first failure.
func (r *Runner) rollbackBatch(ctx context.Context, targets []registry.Definition) (*Result, error) {
	var reports []MigrationReport

	for i := range targets {
		d := &targets[i]

		r.fireProgress(Event{Definition: d, Phase: PhaseRollingBack})

		start := time.Now()
		execErr := r.rollbackFn(ctx, d)
		duration := time.Since(start)

		if execErr != nil {
			r.fireProgress(Event{Definition: d, Phase: PhaseFailed, Duration: duration, Err: execErr})

			wrapped := fmt.Errorf("rolling back migration %s: %w", d.Version, execErr)

			return failure(wrapped, reports, 0), wrapped
		}

		reports = append(reports, MigrationReport{
			Version:         d.Version,
			Description:     d.Description,
			ExecutionTimeMs: int(duration.Milliseconds()),
		})

		r.fireProgress(Event{Definition: d, Phase: PhaseRolledBack, Duration: duration})
	}

	return &Result{
		Success:      true,
		Message:      fmt.Sprintf("Rolled back %d migration(s)", len(reports)),
		AppliedCount: len(reports),
		Applied:      reports,
	}, nil
}

// rollbackDefinition executes one migration's down SQL and deletes its
// ledger entry in the same transaction.
func (r *Runner) rollbackDefinition(ctx context.Context, d *registry.Definition) error {
	return execInTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		if err := setTimeouts(ctx, tx, r.lockTimeout, r.stmtTimeout); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, d.DownSQL); err != nil {
			return fmt.Errorf("executing down SQL: %w", err)
		}

		return r.ledger.Delete(ctx, tx, d.Version)
	})
}

// Status reports applied and pending versions. A pure read apart from
// ensuring the ledger table exists.
func (r *Runner) Status(ctx context.Context) (*Status, error) {
	if err := r.ledger.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	applied, err := r.ledger.AppliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	s := &Status{
		TotalDefinitions: len(r.defs),
		AppliedCount:     len(applied),
		AppliedVersions:  make([]string, 0, len(applied)),
		PendingVersions:  []string{},
	}

	for _, d := range r.defs {
		if _, ok := applied[d.Version]; ok {
			s.AppliedVersions = append(s.AppliedVersions, d.Version)
		} else {
			s.PendingVersions = append(s.PendingVersions, d.Version)
		}
	}

	sort.Strings(s.AppliedVersions)
	sort.Strings(s.PendingVersions)
	s.PendingCount = len(s.PendingVersions)

	return s, nil
}

func (r *Runner) fireProgress(event Event) {
	if r.onProgress != nil {
		r.onProgress(event)
	}
}
