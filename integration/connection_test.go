//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/phaserai/schema-migrate/internal/database"
)

// startContainer starts a bare postgres container and returns its
// host and mapped port, for tests exercising the connection layer
// itself rather than a ready-made pool.
func startContainer(t *testing.T) (string, int) {
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

	return host, port.Int()
}

func TestConnect_resolvedCredentials_pingsSuccessfully(t *testing.T) {
	t.Parallel()

	host, port := startContainer(t)

	creds := database.Credentials{
		Host:     host,
		Port:     port,
		Database: testDB,
		Username: testUser,
		Password: testPassword,
		SSLMode:  "disable",
	}

	pool, err := database.Connect(context.Background(), creds)
	require.NoError(t, err)

	t.Cleanup(pool.Close)

	require.NoError(t, pool.Ping(context.Background()))
}

func TestConnect_wrongPassword_returnsError(t *testing.T) {
	t.Parallel()

	host, port := startContainer(t)

	creds := database.Credentials{
		Host:     host,
		Port:     port,
		Database: testDB,
		Username: testUser,
		Password: "wrong",
		SSLMode:  "disable",
	}

	pool, err := database.Connect(context.Background(), creds)
	require.Error(t, err)
	assert.Nil(t, pool)
}

func TestConnectURL_malformedURL_returnsError(t *testing.T) {
	t.Parallel()

	pool, err := database.ConnectURL(context.Background(), "not a url")
	require.Error(t, err)
	assert.Nil(t, pool)
}

func TestAdvisoryLock_acquireAndRelease(t *testing.T) {
	t.Parallel()

	pool := SetupPostgres(t)
	ctx := context.Background()

	lock, err := database.AcquireLock(ctx, pool)
	require.NoError(t, err)
	require.NotNil(t, lock)

	require.NoError(t, lock.Release(ctx))
}

func TestAdvisoryLock_heldLock_blocksSecondAcquire(t *testing.T) {
	t.Parallel()

	pool := SetupPostgres(t)
	ctx := context.Background()

	first, err := database.AcquireLock(ctx, pool)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = first.Release(context.Background())
	})

	second, err := database.AcquireLock(ctx, pool)
	assert.Nil(t, second)
	require.ErrorIs(t, err, database.ErrLockNotAcquired)
}

func TestAdvisoryLock_release_allowsReacquire(t *testing.T) {
	t.Parallel()

	pool := SetupPostgres(t)
	ctx := context.Background()

	first, err := database.AcquireLock(ctx, pool)
	require.NoError(t, err)
	require.NoError(t, first.Release(ctx))

	second, err := database.AcquireLock(ctx, pool)
	require.NoError(t, err)
	require.NoError(t, second.Release(ctx))
}

func TestAdvisoryLock_release_safeToRepeat(t *testing.T) {
	t.Parallel()

	pool := SetupPostgres(t)
	ctx := context.Background()

	lock, err := database.AcquireLock(ctx, pool)
	require.NoError(t, err)

	require.NoError(t, lock.Release(ctx))
	require.NoError(t, lock.Release(ctx))
}
