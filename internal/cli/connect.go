package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phaserai/schema-migrate/internal/config"
	"github.com/phaserai/schema-migrate/internal/database"
	"github.com/phaserai/schema-migrate/internal/secrets"
)

// errConnectionSourceRequired is returned when neither a database URL
// nor a secret ID is configured.
var errConnectionSourceRequired = errors.New(
	"database connection required (set --database-url, --secret-id, or the MIGRATE_* equivalents)",
)

// connectDB opens the pool from whichever credential source is
// configured: a direct URL, or a secret store lookup.
func connectDB(ctx context.Context, cfg *config.Config, out io.Writer) (*pgxpool.Pool, error) {
	if cfg.DatabaseURL != "" {
		fmt.Fprintf(out, "Connecting to %s\n", config.RedactURL(cfg.DatabaseURL))

		pool, err := database.ConnectURL(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}

		return pool, nil
	}

	if cfg.SecretID == "" {
		return nil, errConnectionSourceRequired
	}

	resolver, err := secrets.NewSecretsManager(ctx, cfg.SecretID, cfg.DBEndpoint)
	if err != nil {
		return nil, fmt.Errorf("building secret resolver: %w", err)
	}

	creds, err := resolver.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving credentials: %w", err)
	}

	fmt.Fprintf(out, "Connecting to %s:%d/%s\n", creds.Host, creds.Port, creds.Database)

	pool, err := database.Connect(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return pool, nil
}

// commandContext returns the command's context, falling back to
// Background for bare test commands.
func commandContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}

	return ctx
}
