// Package app assembles the stores and services of the drill API from
// configuration. Both the HTTP server and drillctl build on it.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/phrazzld/drill-api/internal/config"
	"github.com/phrazzld/drill-api/internal/domain/review"
	"github.com/phrazzld/drill-api/internal/domain/srs"
	"github.com/phrazzld/drill-api/internal/platform/database"
	"github.com/phrazzld/drill-api/internal/platform/migrations"
	"github.com/phrazzld/drill-api/internal/platform/postgres"
	"github.com/phrazzld/drill-api/internal/platform/sqlite"
	"github.com/phrazzld/drill-api/internal/service/mastery"
	"github.com/phrazzld/drill-api/internal/service/schedule"
	"github.com/phrazzld/drill-api/internal/store"
)

// Components holds the shared dependencies of the drill API.
type Components struct {
	Config *config.Config
	Logger *slog.Logger
	DB     *sql.DB

	// Stores
	MasteryStore store.MasteryStore
	LessonStore  store.LessonStore

	// Services
	SRSService      srs.Service
	MasteryService  mastery.Service
	ScheduleService schedule.Service
}

// NewStores returns the mastery and lesson stores for the given driver.
func NewStores(driver string, db *sql.DB, logger *slog.Logger) (store.MasteryStore, store.LessonStore, error) {
	switch driver {
	case database.DriverPostgres:
		return postgres.NewPostgresMasteryStore(db, logger), postgres.NewPostgresLessonStore(db, logger), nil
	case database.DriverSQLite:
		xdb := sqlx.NewDb(db, driver)
		return sqlite.NewSQLiteMasteryStore(xdb, logger), sqlite.NewSQLiteLessonStore(xdb, logger), nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", database.ErrUnsupportedDriver, driver)
	}
}

// New builds the stores and services on top of an open database.
func New(cfg *config.Config, db *sql.DB, logger *slog.Logger) (*Components, error) {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Components{
		Config: cfg,
		Logger: logger,
		DB:     db,
	}

	var err error
	c.MasteryStore, c.LessonStore, err = NewStores(cfg.Database.Driver, db, logger)
	if err != nil {
		return nil, err
	}

	params, err := srs.NewParams(srs.ParamsConfig{IntervalLadder: cfg.SRS.IntervalLadderDays})
	if err != nil {
		return nil, fmt.Errorf("invalid SRS configuration: %w", err)
	}
	c.SRSService, err = srs.NewServiceWithParams(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create SRS service: %w", err)
	}

	builder, err := review.NewBuilder(review.Config{
		WarmupSize:      cfg.Schedule.WarmupSize,
		SubLessonSize:   cfg.Schedule.SubLessonSize,
		ReviewIntervals: cfg.Schedule.ReviewIntervals,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid schedule configuration: %w", err)
	}

	c.MasteryService, err = mastery.NewService(db, c.MasteryStore, c.LessonStore, c.SRSService, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create mastery service: %w", err)
	}

	c.ScheduleService, err = schedule.NewService(db, c.LessonStore, builder, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create schedule service: %w", err)
	}

	logger.Info("application components initialized",
		slog.String("driver", cfg.Database.Driver),
		slog.Int("ladder_steps", len(params.IntervalLadder)))
	return c, nil
}

// Open connects to the configured database, applies pending migrations when
// AutoMigrate is set and builds the components. The caller owns Close.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Components, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	if cfg.Database.AutoMigrate {
		applied, err := migrations.Up(ctx, db, cfg.Database.Driver, logger)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		logger.Info("database schema up to date", slog.Int("applied", applied))
	}

	c, err := New(cfg, db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// Close releases the database connection.
func (c *Components) Close() error {
	if c.DB == nil {
		return nil
	}
	if err := c.DB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
