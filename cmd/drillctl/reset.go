package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/phrazzld/drill-api/internal/app"
	"github.com/phrazzld/drill-api/internal/domain"
	"github.com/spf13/cobra"
)

var errResetNotConfirmed = errors.New("refusing to reset progress without --yes")

func newResetCmd(opts *rootOptions) *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "reset <language> [lesson]",
		Short: "Delete learner progress of a language or of one lesson",
		Long:  "Deletes mastery records. The curriculum itself is not touched.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return errResetNotConfirmed
			}
			languageID := args[0]

			return opts.withComponents(cmd, func(ctx context.Context, c *app.Components) error {
				if len(args) == 2 {
					key := domain.LessonKey{LessonID: args[1], LanguageID: languageID}
					if err := c.MasteryService.Reset(ctx, key); err != nil {
						return err
					}
					_, err := fmt.Fprintf(cmd.OutOrStdout(), "reset %s\n", key)
					return err
				}

				removed, err := c.MasteryService.ResetLanguage(ctx, languageID)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "reset %s: %d lessons cleared\n", languageID, removed)
				return err
			})
		},
	}

	cmd.Flags().BoolVarP(&confirmed, "yes", "y", false, "confirm the deletion")
	return cmd
}
