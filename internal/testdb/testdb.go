package testdb

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/drill-api/internal/config"
	"github.com/phrazzld/drill-api/internal/platform/database"
	"github.com/phrazzld/drill-api/internal/platform/migrations"
	"github.com/stretchr/testify/require"
)

// EnvTestDatabaseURL names the variable holding the Postgres test database URL.
const EnvTestDatabaseURL = "DRILL_TEST_DATABASE_URL"

// TestTimeout bounds fixture setup.
const TestTimeout = 10 * time.Second

var (
	migrateOnce sync.Once
	migrateErr  error
)

// DatabaseURL returns the Postgres test database URL, or "" when unset.
func DatabaseURL() string {
	return os.Getenv(EnvTestDatabaseURL)
}

// SQLite returns a migrated in-memory SQLite database closed at test cleanup.
func SQLite(t *testing.T) *sql.DB {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()

	db, err := database.Open(ctx, config.DatabaseConfig{
		Driver: database.DriverSQLite,
		URL:    ":memory:",
	}, nil)
	require.NoError(t, err, "failed to open in-memory database")
	t.Cleanup(func() { _ = db.Close() })

	_, err = migrations.Up(ctx, db, database.DriverSQLite, nil)
	require.NoError(t, err, "failed to migrate in-memory database")

	return db
}

// Postgres returns a connection to the Postgres test database, skipping the
// test when DRILL_TEST_DATABASE_URL is unset. Migrations run once per process.
func Postgres(t *testing.T) *sql.DB {
	t.Helper()

	url := DatabaseURL()
	if url == "" {
		t.Skipf("%s not set - skipping integration test", EnvTestDatabaseURL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()

	db, err := database.Open(ctx, config.DatabaseConfig{
		Driver: database.DriverPostgres,
		URL:    url,
	}, nil)
	require.NoError(t, err, "failed to open test database")
	t.Cleanup(func() { _ = db.Close() })

	migrateOnce.Do(func() {
		_, migrateErr = migrations.Up(ctx, db, database.DriverPostgres, nil)
	})
	require.NoError(t, migrateErr, "failed to migrate test database")

	return db
}

// WithTx runs fn inside a transaction that is rolled back afterwards, even
// when fn panics.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err, "failed to begin test transaction")

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.Logf("failed to roll back test transaction: %v", err)
		}
	}()

	fn(t, tx)
}
