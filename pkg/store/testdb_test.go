package store

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// newTestPool creates a test Postgres pool with the full migration set
// applied. In CI (when CI_DATABASE_URL is set) it connects to an external
// PostgreSQL service; locally it spins up a testcontainer, mirroring the
// teacher's NewTestClient split between CI service containers and local
// testcontainers.
func newTestPool(t *testing.T) *Pool {
	t.Helper()
	ctx := context.Background()

	var dsn string
	if ciDSN := os.Getenv("CI_DATABASE_URL"); ciDSN != "" {
		t.Log("store: using external PostgreSQL from CI_DATABASE_URL")
		dsn = ciDSN
	} else {
		t.Log("store: using testcontainers for PostgreSQL")
		pgContainer, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("test"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		require.NoError(t, err)
		t.Cleanup(func() {
			if err := testcontainers.TerminateContainer(pgContainer); err != nil {
				t.Logf("store: failed to terminate container: %v", err)
			}
		})

		connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)
		dsn = connStr
	}

	require.NoError(t, Migrate(dsn, migrationsDir(t)))

	pool, err := Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func migrationsDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), "migrations")
}
