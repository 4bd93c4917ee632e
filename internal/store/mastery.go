package store

import (
	"context"
	"database/sql"

	"github.com/phrazzld/drill-api/internal/domain"
)

// MasteryStore persists one MasteryState per (lesson, language) pair,
// including the set of card IDs already shown.
type MasteryStore interface {
	// Get retrieves the mastery record of a lesson.
	// Returns ErrMasteryNotFound if the lesson was never drilled.
	// It does not lock the record; use GetForUpdate before a write.
	Get(ctx context.Context, key domain.LessonKey) (*domain.MasteryState, error)

	// GetForUpdate retrieves the record and locks it until the surrounding
	// transaction ends. Must be called on a store bound with WithTx.
	// Implementations that cannot lock a missing row create an empty record
	// first and return it; callers treat a record that was never shown like a
	// missing one. Otherwise returns ErrMasteryNotFound if no record exists.
	GetForUpdate(ctx context.Context, key domain.LessonKey) (*domain.MasteryState, error)

	// Save inserts or replaces the record and its shown-card set. Run it
	// inside a transaction so both are replaced together.
	// Returns an error wrapping ErrInvalidEntity if the state fails validation.
	Save(ctx context.Context, state *domain.MasteryState) error

	// Delete removes the record of a lesson.
	// Returns ErrMasteryNotFound if no record exists.
	Delete(ctx context.Context, key domain.LessonKey) error

	// DeleteLanguage removes every record of a language and returns how many
	// records were removed.
	DeleteLanguage(ctx context.Context, languageID string) (int, error)

	// ListByLanguage returns every record of a language, ordered by lesson ID.
	ListByLanguage(ctx context.Context, languageID string) ([]*domain.MasteryState, error)

	// WithTx returns a new MasteryStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) MasteryStore
}
