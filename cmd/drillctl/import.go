package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/phrazzld/drill-api/internal/app"
	"github.com/phrazzld/drill-api/internal/domain"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// curriculumFile is the on-disk format of an imported curriculum. It matches
// the body of PUT /api/languages/{languageID}/lessons.
type curriculumFile struct {
	Lessons []domain.Lesson `json:"lessons"`
}

func readCurriculum(path string) ([]domain.Lesson, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read curriculum: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var file curriculumFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse curriculum %s: %w", path, err)
	}
	if len(file.Lessons) == 0 {
		return nil, fmt.Errorf("curriculum %s contains no lessons", path)
	}
	return file.Lessons, nil
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <language> <file.json>",
		Short: "Replace a language's curriculum from a JSON file",
		Long: "Replaces every lesson of the language with the lessons in the file, in file order. " +
			"Learner progress is kept for lessons whose IDs survive.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			languageID, path := args[0], args[1]

			lessons, err := readCurriculum(path)
			if err != nil {
				return err
			}

			return opts.withComponents(cmd, func(ctx context.Context, c *app.Components) error {
				if err := c.ScheduleService.ReplaceCurriculum(ctx, languageID, lessons); err != nil {
					return err
				}

				cards := lo.SumBy(lessons, func(l domain.Lesson) int { return len(l.Cards) })
				if opts.jsonOutput {
					return printJSON(cmd.OutOrStdout(), map[string]interface{}{
						"language_id": languageID,
						"lessons":     len(lessons),
						"cards":       cards,
					})
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "imported %d lessons (%d cards) into %s\n",
					len(lessons), cards, languageID)
				return err
			})
		},
	}
}
