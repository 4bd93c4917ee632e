package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/drill-api/internal/platform/database"
	"github.com/phrazzld/drill-api/internal/platform/migrations"
	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [" + strings.Join(migrations.Commands, "|") + "]",
		Short:     "Apply, roll back or inspect database migrations",
		Long:      "Runs a migration command against the configured database. Without an argument, pending migrations are applied.",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: migrations.Commands,
		RunE: func(cmd *cobra.Command, args []string) error {
			command := migrations.CommandUp
			if len(args) == 1 {
				command = args[0]
			}

			cfg, l, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}

			db, err := database.Open(cmd.Context(), cfg.Database, l)
			if err != nil {
				return err
			}
			defer func() {
				if err := db.Close(); err != nil {
					l.Error("error closing database connection", slog.String("error", err.Error()))
				}
			}()

			if err := migrations.Run(cmd.Context(), db, cfg.Database.Driver, command, l); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: ok\n", command)
			return err
		},
	}
}
