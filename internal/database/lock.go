package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// migrationLockID is the advisory lock identifier guarding migration
// runs. The engine assumes one live runner per database; this lock is
// a second line of defense against accidental double invocation.
const migrationLockID int64 = 727_150_214

// Lock wraps a dedicated pooled connection holding a session-level
// advisory lock. Call Release to unlock and return the connection.
type Lock struct {
	conn *pgxpool.Conn
}

// AcquireLock attempts to take the migration advisory lock without
// blocking. Returns ErrLockNotAcquired if another process holds it.
func AcquireLock(ctx context.Context, pool *pgxpool.Pool) (*Lock, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection for migration lock: %w", err)
	}

	var acquired bool

	err = conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", migrationLockID).Scan(&acquired)
	if err != nil {
		conn.Release()

		return nil, fmt.Errorf("executing pg_try_advisory_lock: %w", err)
	}

	if !acquired {
		conn.Release()

		return nil, ErrLockNotAcquired
	}

	return &Lock{conn: conn}, nil
}

// Release unlocks and returns the connection to the pool. Safe to call
// more than once.
func (l *Lock) Release(ctx context.Context) error {
	if l == nil || l.conn == nil {
		return nil
	}

	_, err := l.conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", migrationLockID)
	l.conn.Release()
	l.conn = nil

	if err != nil {
		return fmt.Errorf("releasing migration lock: %w", err)
	}

	return nil
}
