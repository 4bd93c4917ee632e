// Package migrations applies the embedded goose schema migrations for the
// postgres and sqlite3 backends.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/drill-api/internal/platform/database"
	"github.com/pressly/goose/v3"
)

//go:embed postgres/*.sql sqlite3/*.sql
var embedMigrations embed.FS

// Supported migration commands.
const (
	CommandUp      = "up"
	CommandDown    = "down"
	CommandStatus  = "status"
	CommandVersion = "version"
)

// ErrUnknownCommand is returned by Run for commands other than the ones above.
var ErrUnknownCommand = errors.New("unknown migration command")

// Commands lists the accepted commands, in help-text order.
var Commands = []string{CommandUp, CommandDown, CommandStatus, CommandVersion}

// slogGooseLogger forwards goose output to slog.
type slogGooseLogger struct {
	logger *slog.Logger
}

// Printf implements goose.Logger.
func (l *slogGooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, v...))
}

// Fatalf implements goose.Logger. It does not exit; the error is returned to
// the caller by the provider.
func (l *slogGooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

// NewProvider returns a goose provider over the migrations of the given driver.
func NewProvider(db *sql.DB, driver string, logger *slog.Logger) (*goose.Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var dialect goose.Dialect
	switch driver {
	case database.DriverPostgres:
		dialect = goose.DialectPostgres
	case database.DriverSQLite:
		dialect = goose.DialectSQLite3
	default:
		return nil, fmt.Errorf("%w: %q", database.ErrUnsupportedDriver, driver)
	}

	fsys, err := fs.Sub(embedMigrations, driver)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	provider, err := goose.NewProvider(dialect, db, fsys,
		goose.WithVerbose(true),
		goose.WithLogger(&slogGooseLogger{logger: logger}))
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}
	return provider, nil
}

// Up applies every pending migration and returns how many were applied.
func Up(ctx context.Context, db *sql.DB, driver string, logger *slog.Logger) (int, error) {
	provider, err := NewProvider(db, driver, logger)
	if err != nil {
		return 0, err
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return len(results), fmt.Errorf("failed to apply migrations: %w", err)
	}
	return len(results), nil
}

// Run executes a migration command and logs its outcome. Every log line of
// one run carries the same correlation ID.
func Run(ctx context.Context, db *sql.DB, driver, command string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With(
		slog.String("correlation_id", uuid.NewString()),
		slog.String("component", "migrations"),
		slog.String("command", command),
		slog.String("driver", driver),
	)

	provider, err := NewProvider(db, driver, log)
	if err != nil {
		return err
	}

	start := time.Now()
	log.Info("starting migration command")

	switch command {
	case CommandUp:
		results, err := provider.Up(ctx)
		for _, r := range results {
			log.Info("migration applied", slog.String("result", r.String()))
		}
		if err != nil {
			return fmt.Errorf("migration command '%s' failed: %w", command, err)
		}
		if len(results) == 0 {
			log.Info("no pending migrations")
		}
	case CommandDown:
		result, err := provider.Down(ctx)
		if errors.Is(err, goose.ErrNoNextVersion) {
			log.Info("no migrations to roll back")
			break
		}
		if err != nil {
			return fmt.Errorf("migration command '%s' failed: %w", command, err)
		}
		log.Info("migration rolled back", slog.String("result", result.String()))
	case CommandStatus:
		statuses, err := provider.Status(ctx)
		if err != nil {
			return fmt.Errorf("migration command '%s' failed: %w", command, err)
		}
		for _, s := range statuses {
			attrs := []any{
				slog.Int64("version", s.Source.Version),
				slog.String("path", s.Source.Path),
				slog.String("state", string(s.State)),
			}
			if !s.AppliedAt.IsZero() {
				attrs = append(attrs, slog.Time("applied_at", s.AppliedAt))
			}
			log.Info("migration status", attrs...)
		}
	case CommandVersion:
		version, err := provider.GetDBVersion(ctx)
		if err != nil {
			return fmt.Errorf("migration command '%s' failed: %w", command, err)
		}
		log.Info("current database version", slog.Int64("version", version))
	default:
		return fmt.Errorf("%w: %s (expected one of %v)", ErrUnknownCommand, command, Commands)
	}

	log.Info("migration command completed", slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	return nil
}
