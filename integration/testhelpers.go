//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/phaserai/schema-migrate/internal/registry"
)

const (
	postgresImage = "postgres:16-alpine"
	testDB        = "schema_migrate_test"
	testUser      = "migrate"
	testPassword  = "migrate"
)

// SetupPostgres starts a PostgreSQL 16 container and returns a
// connection pool. Both are cleaned up when the test completes.
func SetupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       testDB,
			"POSTGRES_USER":     testUser,
			"POSTGRES_PASSWORD": testPassword,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := "postgres://" + testUser + ":" + testPassword + "@" + host + ":" + port.Port() + "/" + testDB + "?sslmode=disable"

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)

	t.Cleanup(func() {
		pool.Close()
	})

	require.NoError(t, pool.Ping(ctx))

	return pool
}

// newDefinition builds a reversible test migration with its checksum
// computed the way the catalog loader does.
func newDefinition(version, name, upSQL, downSQL string) registry.Definition {
	return registry.Definition{
		Version:     version,
		Name:        name,
		Description: name,
		UpSQL:       upSQL,
		DownSQL:     downSQL,
		Checksum:    registry.Checksum(upSQL),
	}
}

// testCatalog returns a three-step catalog with forward and reverse
// SQL, mirroring the shape of the compiled one.
func testCatalog() []registry.Definition {
	return []registry.Definition{
		newDefinition("20250101_120000", "create_users",
			"CREATE TABLE users (id SERIAL PRIMARY KEY, name TEXT NOT NULL);",
			"DROP TABLE IF EXISTS users;"),
		newDefinition("20250102_143000", "create_posts",
			"CREATE TABLE posts (id SERIAL PRIMARY KEY, user_id INTEGER REFERENCES users(id), title TEXT);",
			"DROP TABLE IF EXISTS posts;"),
		newDefinition("20250103_091500", "add_email",
			"ALTER TABLE users ADD COLUMN email TEXT;",
			"ALTER TABLE users DROP COLUMN IF EXISTS email;"),
	}
}

// tableExists reports whether a table is present in the public schema.
func tableExists(t *testing.T, pool *pgxpool.Pool, name string) bool {
	t.Helper()

	var exists bool

	err := pool.QueryRow(context.Background(),
		"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)",
		name,
	).Scan(&exists)
	require.NoError(t, err)

	return exists
}

// ledgerVersions returns the versions currently recorded in the
// ledger table, in ascending order.
func ledgerVersions(t *testing.T, pool *pgxpool.Pool) []string {
	t.Helper()

	rows, err := pool.Query(context.Background(),
		"SELECT version FROM schema_migrations ORDER BY version")
	require.NoError(t, err)

	defer rows.Close()

	var versions []string

	for rows.Next() {
		var v string

		require.NoError(t, rows.Scan(&v))
		versions = append(versions, v)
	}

	require.NoError(t, rows.Err())

	return versions
}
