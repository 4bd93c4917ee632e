package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/phrazzld/drill-api/internal/app"
	"github.com/phrazzld/drill-api/internal/config"
	"github.com/phrazzld/drill-api/internal/platform/logger"
	"github.com/spf13/cobra"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	jsonOutput bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "drillctl",
		Short:        "Operate the drill API database",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default: ./config.yaml if present)")
	flags.String("driver", "", "database driver override: postgres or sqlite3")
	flags.String("database-url", "", "database URL or sqlite path override")
	flags.String("log-level", "", "log level override: debug, info, warn or error")
	flags.BoolVar(&opts.jsonOutput, "json", false, "print results as JSON")

	root.AddCommand(
		newMigrateCmd(opts),
		newImportCmd(opts),
		newScheduleCmd(opts),
		newProgressCmd(opts),
		newResetCmd(opts),
	)
	return root
}

// loadConfig reads configuration with the command's flag overrides applied
// and returns a logger writing to the command's error stream.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadWithFlags(o.configPath, cmd.Flags())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.New(cfg.Server.LogLevel, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}
	return cfg, l, nil
}

// withComponents opens the database, runs fn and closes the database again.
func (o *rootOptions) withComponents(cmd *cobra.Command, fn func(ctx context.Context, c *app.Components) error) error {
	cfg, l, err := o.loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	c, err := app.Open(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			l.Error("error closing database connection", slog.String("error", err.Error()))
		}
	}()

	return fn(ctx, c)
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
