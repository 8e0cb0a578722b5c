package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// defaultMaxConns keeps the pool small: one invocation applies
// migrations strictly sequentially, so it never needs more than a
// handful of connections (one for the lock, one for work).
const defaultMaxConns = 5

// Connect creates a pgx pool from a resolved credential record and
// verifies connectivity with a ping.
func Connect(ctx context.Context, creds Credentials) (*pgxpool.Pool, error) {
	return ConnectURL(ctx, creds.URL())
}

// ConnectURL creates a pgx pool for the given database URL and
// verifies connectivity with a ping. The caller owns the pool and must
// close it on all exit paths.
func ConnectURL(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDatabaseURL, err)
	}

	poolCfg.MaxConns = defaultMaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return pool, nil
}
