package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/phrazzld/drill-api/internal/app"
	"github.com/phrazzld/drill-api/internal/domain/review"
	"github.com/spf13/cobra"
)

func newScheduleCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule <language> [lesson]",
		Short: "Print the drill blocks of a language or of one lesson",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			languageID := args[0]

			return opts.withComponents(cmd, func(ctx context.Context, c *app.Components) error {
				var lessons []review.LessonSchedule
				if len(args) == 2 {
					blocks, err := c.ScheduleService.ForLesson(ctx, languageID, args[1])
					if err != nil {
						return err
					}
					lessons = []review.LessonSchedule{{LessonID: args[1], Blocks: blocks}}
				} else {
					sched, err := c.ScheduleService.ForLanguage(ctx, languageID)
					if err != nil {
						return err
					}
					lessons = sched.Lessons()
				}

				if opts.jsonOutput {
					return printJSON(cmd.OutOrStdout(), lessons)
				}
				return writeSchedule(cmd.OutOrStdout(), lessons)
			})
		},
	}
}

// writeSchedule prints one row per block, grouped by lesson.
func writeSchedule(w io.Writer, lessons []review.LessonSchedule) error {
	if len(lessons) == 0 {
		_, err := fmt.Fprintln(w, "no lessons scheduled")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LESSON\tBLOCK\tTYPE\tCARDS")
	for _, lesson := range lessons {
		for i, block := range lesson.Blocks {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", lesson.LessonID, i+1, block.Type, strings.Join(block.CardIDs(), ","))
		}
	}
	return tw.Flush()
}
