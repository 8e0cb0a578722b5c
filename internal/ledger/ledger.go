package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one row of the schema_migrations table: a migration that was
// successfully committed.
type Entry struct {
	Version         string
	AppliedAt       time.Time
	Checksum        string
	ExecutionTimeMs int
	Description     string
}

// RecordParams contains the fields written when a migration is recorded.
type RecordParams struct {
	Version         string
	Checksum        string
	ExecutionTimeMs int
	Description     string
}

// DB is the write surface the ledger needs. Both pgx.Tx and
// *pgxpool.Pool satisfy it, so Record can run inside the migration's
// own transaction or, for non-transactional migrations, directly on
// the pool.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Ledger manages the schema_migrations table.
type Ledger struct {
	pool *pgxpool.Pool
}

// New creates a Ledger backed by the given connection pool.
func New(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// EnsureSchema creates the schema_migrations table if it does not
// exist. Idempotent; safe to call before every run.
func (l *Ledger) EnsureSchema(ctx context.Context) error {
	if _, err := l.pool.Exec(ctx, createSchemaSQL); err != nil {
		return fmt.Errorf("%w: %w", ErrSchemaCreation, err)
	}

	return nil
}

// AppliedVersions returns the set of versions currently recorded.
func (l *Ledger) AppliedVersions(ctx context.Context) (map[string]struct{}, error) {
	rows, err := l.pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("querying applied versions: %w", err)
	}
	defer rows.Close()

	versions := make(map[string]struct{})

	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning applied version: %w", err)
		}

		versions[v] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading applied versions: %w", err)
	}

	return versions, nil
}

// Applied returns all ledger entries ordered by version.
func (l *Ledger) Applied(ctx context.Context) ([]Entry, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT version, applied_at, COALESCE(checksum, ''), COALESCE(execution_time_ms, 0), COALESCE(description, '')
		 FROM schema_migrations
		 ORDER BY version`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying ledger entries: %w", err)
	}
	defer rows.Close()

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var e Entry
		if scanErr := row.Scan(&e.Version, &e.AppliedAt, &e.Checksum, &e.ExecutionTimeMs, &e.Description); scanErr != nil {
			return Entry{}, fmt.Errorf("scanning ledger row: %w", scanErr)
		}

		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning ledger entries: %w", err)
	}

	return entries, nil
}

// StoredChecksum returns the checksum recorded when a version was applied.
func (l *Ledger) StoredChecksum(ctx context.Context, version string) (string, error) {
	var checksum string

	err := l.pool.QueryRow(ctx,
		`SELECT COALESCE(checksum, '') FROM schema_migrations WHERE version = $1`,
		version,
	).Scan(&checksum)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("migration %s: %w", version, ErrEntryNotFound)
		}

		return "", fmt.Errorf("getting checksum for migration %s: %w", version, err)
	}

	return checksum, nil
}

// Record upserts a ledger row through db. Callers pass the migration's
// own transaction so the record is atomic with the schema change; an
// existing row has its applied_at, checksum, and execution_time_ms
// refreshed.
func (l *Ledger) Record(ctx context.Context, db DB, p RecordParams) error {
	_, err := db.Exec(ctx,
		`INSERT INTO schema_migrations (version, checksum, execution_time_ms, description)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (version) DO UPDATE SET
		     applied_at = NOW(),
		     checksum = EXCLUDED.checksum,
		     execution_time_ms = EXCLUDED.execution_time_ms`,
		p.Version, p.Checksum, p.ExecutionTimeMs, p.Description,
	)
	if err != nil {
		return fmt.Errorf("recording migration %s: %w", p.Version, err)
	}

	return nil
}

// Delete removes a ledger row through db, typically the rollback's own
// transaction. Returns ErrEntryNotFound if no row exists.
func (l *Ledger) Delete(ctx context.Context, db DB, version string) error {
	tag, err := db.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, version)
	if err != nil {
		return fmt.Errorf("deleting ledger entry %s: %w", version, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("migration %s: %w", version, ErrEntryNotFound)
	}

	return nil
}
