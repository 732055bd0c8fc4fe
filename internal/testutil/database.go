// Package testutil provides a migrated Postgres database for integration
// tests. Tests are skipped unless TEST_DATABASE_URL is set.
package testutil

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/VoidMesh/txlab/internal/config"
	"github.com/VoidMesh/txlab/internal/db"
	"github.com/VoidMesh/txlab/internal/logging"
)

// LoadTestEnv gates the full-size load runs.
const LoadTestEnv = "TXLAB_LOAD_TEST"

// DatabaseURL returns TEST_DATABASE_URL, or "" when integration tests
// should be skipped.
func DatabaseURL() string {
	return os.Getenv("TEST_DATABASE_URL")
}

// RequireDatabase skips t when no test database is configured. Otherwise
// it migrates the schema, empties both tables and returns a provider for
// the database.
func RequireDatabase(t *testing.T) *db.Provider {
	t.Helper()

	url := DatabaseURL()
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}
	QuietLogs(t)

	provider := db.NewProvider(config.DatabaseConfig{URL: url, ConnectTimeout: 10 * time.Second})
	ctx := context.Background()

	_, err := db.Migrate(ctx, provider, "")
	require.NoError(t, err, "Failed to migrate test database")

	Truncate(t, provider)
	return provider
}

// RequireLoadTest skips t unless the full-size load runs were requested.
func RequireLoadTest(t *testing.T) {
	t.Helper()
	if os.Getenv(LoadTestEnv) != "1" {
		t.Skipf("%s not set, skipping load test", LoadTestEnv)
	}
}

// Truncate empties both tables and resets their id sequences.
func Truncate(t *testing.T, provider *db.Provider) {
	t.Helper()

	ctx := context.Background()
	conn, err := provider.Connect(ctx)
	require.NoError(t, err, "Failed to connect to test database")
	defer conn.Close(ctx)

	_, err = conn.Exec(ctx, "TRUNCATE transaction_details, transactions RESTART IDENTITY CASCADE")
	require.NoError(t, err, "Failed to truncate tables")
}

// Count returns COUNT(*) of table.
func Count(t *testing.T, provider *db.Provider, table string) int64 {
	t.Helper()

	ctx := context.Background()
	conn, err := provider.Connect(ctx)
	require.NoError(t, err, "Failed to connect to test database")
	defer conn.Close(ctx)

	var n int64
	err = conn.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
	require.NoError(t, err, "Failed to count %s", table)
	return n
}

// QuietLogs silences the global logger for the duration of t.
func QuietLogs(t *testing.T) {
	t.Helper()

	previous := logging.Logger
	logging.Logger = log.New(io.Discard)
	t.Cleanup(func() { logging.Logger = previous })
}
