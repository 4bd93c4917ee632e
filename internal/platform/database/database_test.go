package database

import (
	"context"
	"testing"

	"github.com/phrazzld/drill-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteDSN(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		dsn  string
		want string
	}{
		{
			name: "memory database",
			dsn:  ":memory:",
			want: ":memory:?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate",
		},
		{
			name: "existing query",
			dsn:  "file:drill.db?cache=shared",
			want: "file:drill.db?cache=shared&_foreign_keys=on&_busy_timeout=5000&_txlock=immediate",
		},
		{
			name: "caller overrides kept",
			dsn:  "drill.db?_busy_timeout=100",
			want: "drill.db?_busy_timeout=100&_foreign_keys=on&_txlock=immediate",
		},
		{
			name: "fully specified",
			dsn:  "drill.db?_foreign_keys=off&_busy_timeout=1&_txlock=deferred",
			want: "drill.db?_foreign_keys=off&_busy_timeout=1&_txlock=deferred",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, SQLiteDSN(tc.dsn))
		})
	}
}

func TestOpenSQLite(t *testing.T) {
	t.Parallel()

	db, err := Open(context.Background(), config.DatabaseConfig{Driver: DriverSQLite, URL: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var enabled int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&enabled))
	assert.Equal(t, 1, enabled)
	assert.Equal(t, 1, db.Stats().MaxOpenConnections)
}

func TestOpenUnsupportedDriver(t *testing.T) {
	t.Parallel()

	db, err := Open(context.Background(), config.DatabaseConfig{Driver: "mysql", URL: "x"}, nil)
	assert.Nil(t, db)
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}
