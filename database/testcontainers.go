package database

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	tclog "github.com/testcontainers/testcontainers-go/log"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// TestImageEnv overrides the Postgres image used by container-backed tests.
const TestImageEnv = "SCM_MIRROR_TEST_POSTGRES_IMAGE"

const defaultTestImage = "postgres:16-alpine"

// debugLogger sends testcontainers output to slog at debug level.
type debugLogger struct{}

func (debugLogger) Printf(format string, v ...any) {
	slog.Debug(fmt.Sprintf(format, v...), "component", "testcontainers")
}

var _ tclog.Logger = debugLogger{}

// StartTestContainer starts a disposable Postgres container and returns its
// connection string. It skips the test in -short mode. The container is
// removed when the test ends.
func StartTestContainer(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	image := os.Getenv(TestImageEnv)
	if image == "" {
		image = defaultTestImage
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx, image,
		postgres.WithDatabase("scm_mirror"),
		postgres.WithUsername("mirror"),
		postgres.WithPassword("mirror"),
		postgres.BasicWaitStrategies(),
		tc.WithLogger(debugLogger{}),
	)
	tc.CleanupContainer(t, container)
	require.NoError(t, err)

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return connStr
}

// SetupTestDB starts a container, checks that the schema rolls back cleanly,
// migrates it to the latest version and returns a pool connected to it.
func SetupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	ctx := context.Background()
	connStr := StartTestContainer(t)

	conn, err := pgx.Connect(ctx, connStr)
	require.NoError(t, err)
	require.NoError(t, MigrateUp(ctx, conn))
	require.NoError(t, MigrateDown(ctx, conn))
	require.NoError(t, conn.Close(ctx))

	m, err := NewFromConnectionString(connStr)
	require.NoError(t, err)
	require.NoError(t, m.Up())
	srcErr, dbErr := m.Close()
	require.NoError(t, srcErr)
	require.NoError(t, dbErr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}
