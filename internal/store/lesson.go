package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/phrazzld/drill-api/internal/domain"
	"github.com/samber/lo"
)

// LessonStore persists the ordered curriculum of each language.
type LessonStore interface {
	// ListByLanguage returns the lessons of a language in curriculum order,
	// each with its cards in lesson order. An unknown language yields an
	// empty list.
	ListByLanguage(ctx context.Context, languageID string) ([]domain.Lesson, error)

	// Get returns a single lesson with its cards.
	// Returns ErrLessonNotFound if the lesson does not exist.
	Get(ctx context.Context, languageID, lessonID string) (*domain.Lesson, error)

	// ListLanguages returns every language with at least one lesson.
	ListLanguages(ctx context.Context) ([]string, error)

	// ReplaceCurriculum replaces every lesson of a language with the given
	// list, whose order becomes the curriculum order. The caller is expected
	// to run it inside a transaction so readers never see a partial curriculum.
	ReplaceCurriculum(ctx context.Context, languageID string, lessons []domain.Lesson) error

	// WithTx returns a new LessonStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) LessonStore
}

// ErrLanguageMismatch is returned when a lesson names a different language
// than the curriculum it is stored in.
var ErrLanguageMismatch = errors.New("lesson belongs to a different language")

// PrepareCurriculum validates lessons for storage under languageID and
// returns copies with LanguageID filled in. Every failure wraps
// ErrInvalidEntity.
func PrepareCurriculum(languageID string, lessons []domain.Lesson) ([]domain.Lesson, error) {
	if strings.TrimSpace(languageID) == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEntity, domain.ErrLanguageIDEmpty)
	}

	if dups := lo.FindDuplicatesBy(lessons, func(l domain.Lesson) string { return l.ID }); len(dups) > 0 {
		return nil, fmt.Errorf("%w: duplicate lesson ID %q", ErrInvalidEntity, dups[0].ID)
	}

	prepared := make([]domain.Lesson, len(lessons))
	for i, lesson := range lessons {
		switch lesson.LanguageID {
		case "":
			lesson.LanguageID = languageID
		case languageID:
		default:
			return nil, fmt.Errorf("%w: lesson %q: %w", ErrInvalidEntity, lesson.ID, ErrLanguageMismatch)
		}
		if err := lesson.Validate(); err != nil {
			return nil, fmt.Errorf("%w: lesson %d: %w", ErrInvalidEntity, i, err)
		}
		prepared[i] = lesson
	}
	return prepared, nil
}
