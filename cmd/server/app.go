package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/phrazzld/drill-api/internal/api"
	"github.com/phrazzld/drill-api/internal/app"
	"github.com/phrazzld/drill-api/internal/config"
	"github.com/phrazzld/drill-api/internal/jobs"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	components *app.Components
	jobRunner  *jobs.Runner
}

// newApplication connects to the database and builds every dependency of the
// server. Background jobs are created here but only started by Run.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	components, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	runner, err := jobs.NewRunner(components.ScheduleService, jobs.Config{
		RefreshInterval: cfg.Schedule.RefreshInterval,
	}, logger)
	if err != nil {
		_ = components.Close()
		return nil, fmt.Errorf("failed to create job runner: %w", err)
	}

	logger.Info("application initialized successfully",
		slog.Bool("schedule_refresh", runner.Enabled()))

	return &application{
		config:     cfg,
		logger:     logger,
		components: components,
		jobRunner:  runner,
	}, nil
}

// setupRouter builds the HTTP handler from the application's services.
func (app *application) setupRouter() http.Handler {
	return api.NewRouter(api.RouterDeps{
		MasteryService:  app.components.MasteryService,
		ScheduleService: app.components.ScheduleService,
		DB:              app.components.DB,
		Logger:          app.logger,
	})
}

// Run starts background jobs and serves HTTP until ctx is canceled. Resources
// are released before it returns.
func (app *application) Run(ctx context.Context) error {
	defer app.cleanup()

	if err := app.jobRunner.Start(); err != nil {
		return fmt.Errorf("failed to start job runner: %w", err)
	}

	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.jobRunner != nil {
		app.jobRunner.Stop()
	}

	if app.components != nil {
		if err := app.components.Close(); err != nil {
			app.logger.Error("error closing database connection", slog.String("error", err.Error()))
		}
	}

	app.logger.Info("application shutdown completed")
}
