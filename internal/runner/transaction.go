package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// execInTransaction runs fn inside a database transaction. On success
// the transaction is committed; on error it is rolled back.
func execInTransaction(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // rollback on committed tx returns ErrTxClosed

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// setTimeouts applies lock_timeout and statement_timeout for the
// transaction, so a stuck migration fails fast instead of holding
// locks indefinitely. Zero values leave the server defaults in place.
func setTimeouts(ctx context.Context, tx pgx.Tx, lockTimeout, stmtTimeout time.Duration) error {
	if lockTimeout > 0 {
		sql := fmt.Sprintf("SET lock_timeout = '%dms'", lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, sql); err != nil {
			return fmt.Errorf("setting lock_timeout: %w", err)
		}
	}

	if stmtTimeout > 0 {
		sql := fmt.Sprintf("SET statement_timeout = '%dms'", stmtTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, sql); err != nil {
			return fmt.Errorf("setting statement_timeout: %w", err)
		}
	}

	return nil
}
