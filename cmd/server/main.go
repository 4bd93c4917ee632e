// Package main implements the entry point for the drill API server, which
// tracks lesson mastery and serves review schedules for sentence drills.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/phrazzld/drill-api/internal/config"
	"github.com/phrazzld/drill-api/internal/platform/database"
	"github.com/phrazzld/drill-api/internal/platform/logger"
	"github.com/phrazzld/drill-api/internal/platform/migrations"
	"github.com/phrazzld/drill-api/internal/redact"
)

// options are the command-line flags of the server.
type options struct {
	configPath string
	migrate    string
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "path to a config file (default: ./config.yaml if present)")
	fs.StringVar(&opts.migrate, "migrate", "",
		"run a migration command and exit: "+strings.Join(migrations.Commands, ", "))
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("Invalid arguments: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, opts)
	stop()

	if err != nil {
		slog.Error("server exited with error", slog.String("error", redact.Error(err)))
		os.Exit(1)
	}
}

// run loads configuration, sets up logging and either executes the requested
// migration command or serves HTTP until ctx is canceled.
func run(ctx context.Context, opts options) error {
	cfg, err := config.LoadFile(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	l.Info("server configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel),
		slog.String("driver", cfg.Database.Driver))

	if opts.migrate != "" {
		return runMigration(ctx, cfg, opts.migrate, l)
	}

	app, err := newApplication(ctx, cfg, l)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return app.Run(ctx)
}

// runMigration executes a single migration command against the configured database.
func runMigration(ctx context.Context, cfg *config.Config, command string, l *slog.Logger) error {
	db, err := database.Open(ctx, cfg.Database, l)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			l.Error("error closing database connection", slog.String("error", err.Error()))
		}
	}()

	return migrations.Run(ctx, db, cfg.Database.Driver, command, l)
}
