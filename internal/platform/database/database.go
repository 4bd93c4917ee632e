// Package database opens the SQL connection pool for the configured backend.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	// Register the pgx driver as "pgx".
	_ "github.com/jackc/pgx/v5/stdlib"
	// Register the SQLite driver as "sqlite3".
	_ "github.com/mattn/go-sqlite3"
	"github.com/phrazzld/drill-api/internal/config"
)

// Supported values of config.DatabaseConfig.Driver.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// ErrUnsupportedDriver is returned for a driver other than DriverPostgres or DriverSQLite.
var ErrUnsupportedDriver = errors.New("unsupported database driver")

const (
	defaultMaxOpenConns = 10
	connMaxLifetime     = 5 * time.Minute
	pingTimeout         = 5 * time.Second
)

// sqliteParams are appended to SQLite DSNs that do not set them.
var sqliteParams = []string{"_foreign_keys=on", "_busy_timeout=5000", "_txlock=immediate"}

// Open establishes a connection pool for cfg and verifies it with a ping.
//
// SQLite pools are limited to a single connection so that in-memory databases
// are shared and writers never contend.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With(slog.String("component", "database"), slog.String("driver", cfg.Driver))

	var (
		db  *sql.DB
		err error
	)
	switch cfg.Driver {
	case DriverPostgres:
		db, err = sql.Open("pgx", cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database connection: %w", err)
		}
		maxOpen := cfg.MaxOpenConns
		if maxOpen <= 0 {
			maxOpen = defaultMaxOpenConns
		}
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(max(1, maxOpen/2))
		db.SetConnMaxLifetime(connMaxLifetime)
	case DriverSQLite:
		db, err = sql.Open("sqlite3", SQLiteDSN(cfg.URL))
		if err != nil {
			return nil, fmt.Errorf("failed to open database connection: %w", err)
		}
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("failed to close database after ping failure", slog.String("error", closeErr.Error()))
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("database connection established")
	return db, nil
}

// SQLiteDSN adds the connection parameters the stores rely on (foreign keys,
// busy timeout, immediate write locks) unless the DSN already sets them.
func SQLiteDSN(dsn string) string {
	var missing []string
	for _, param := range sqliteParams {
		name := param[:strings.IndexByte(param, '=')]
		if !strings.Contains(dsn, name+"=") {
			missing = append(missing, param)
		}
	}
	if len(missing) == 0 {
		return dsn
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(missing, "&")
}
