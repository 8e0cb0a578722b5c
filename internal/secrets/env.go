package secrets

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/phaserai/schema-migrate/internal/database"
)

const defaultPort = 5432

// Env resolves credentials from DB_* environment variables. Intended
// for local development where no secret store is available.
type Env struct{}

// Resolve reads DB_HOST, DB_PORT, DB_NAME, DB_USER, DB_PASSWORD, and
// DB_SSLMODE.
func (Env) Resolve(_ context.Context) (database.Credentials, error) {
	creds := database.Credentials{
		Host:     os.Getenv("DB_HOST"),
		Port:     defaultPort,
		Database: os.Getenv("DB_NAME"),
		Username: os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		SSLMode:  os.Getenv("DB_SSLMODE"),
	}

	if v := os.Getenv("DB_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return database.Credentials{}, fmt.Errorf("parsing DB_PORT %q: %w", v, err)
		}

		creds.Port = port
	}

	if err := validate(creds); err != nil {
		return database.Credentials{}, fmt.Errorf("resolving credentials from environment: %w", err)
	}

	return creds, nil
}
