package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/phrazzld/drill-api/internal/app"
	"github.com/phrazzld/drill-api/internal/service/mastery"
	"github.com/spf13/cobra"
)

func newProgressCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "progress <language>",
		Short: "Print the flower and review ladder of every lesson of a language",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withComponents(cmd, func(ctx context.Context, c *app.Components) error {
				lessons, err := c.MasteryService.Overview(ctx, args[0])
				if err != nil {
					return err
				}

				if opts.jsonOutput {
					return printJSON(cmd.OutOrStdout(), lessons)
				}
				return writeProgress(cmd.OutOrStdout(), lessons)
			})
		},
	}
}

func writeProgress(w io.Writer, lessons []mastery.LessonProgress) error {
	if len(lessons) == 0 {
		_, err := fmt.Fprintln(w, "no lessons")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LESSON\tTITLE\tFLOWER\tMASTERY\tHEALTH\tSEEN\tDAYS\tINTERVAL")
	for _, p := range lessons {
		days, interval := "-", "-"
		if p.Ladder.DaysSinceLastShow != nil {
			days = fmt.Sprint(*p.Ladder.DaysSinceLastShow)
		}
		if p.Ladder.IntervalLabel != nil {
			interval = *p.Ladder.IntervalLabel
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.0f%%\t%.0f%%\t%d/%d\t%s\t%s\n",
			p.LessonID,
			p.Title,
			p.Flower.State,
			p.Flower.MasteryPercent*100,
			p.Flower.HealthPercent*100,
			p.Ladder.UniqueCardShows,
			p.CardCount,
			days,
			interval,
		)
	}
	return tw.Flush()
}
