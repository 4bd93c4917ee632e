package domain

import (
	"errors"
	"fmt"
	"strings"
)

// MasteryThreshold is the number of unique cards a learner must see for a
// lesson to count as fully mastered. It is also the size of a lesson's main
// pool; any cards beyond it form the reserve pool.
const MasteryThreshold = 150

// Lesson-specific validation errors
var (
	// ErrLessonIDEmpty is returned when a lesson ID is empty.
	ErrLessonIDEmpty = errors.New("lesson ID cannot be empty")

	// ErrLanguageIDEmpty is returned when a language ID is empty.
	ErrLanguageIDEmpty = errors.New("language ID cannot be empty")

	// ErrDuplicateCardID is returned when a lesson contains the same card twice.
	ErrDuplicateCardID = errors.New("duplicate card ID in lesson")
)

// Lesson is an ordered collection of sentence cards inside a language's
// curriculum. Card order is significant: warm-up, new-card and review
// selection all consume cards front to back.
type Lesson struct {
	ID         string         `json:"id"`
	LanguageID string         `json:"language_id"`
	Title      string         `json:"title"`
	Cards      []SentenceCard `json:"cards"`
}

// Key returns the mastery key of the lesson.
func (l Lesson) Key() LessonKey {
	return LessonKey{LessonID: l.ID, LanguageID: l.LanguageID}
}

// MainPool returns the first MasteryThreshold cards of the lesson.
func (l Lesson) MainPool() []SentenceCard {
	if len(l.Cards) <= MasteryThreshold {
		return l.Cards
	}
	return l.Cards[:MasteryThreshold]
}

// ReservePool returns the cards beyond the main pool, or nil.
func (l Lesson) ReservePool() []SentenceCard {
	if len(l.Cards) <= MasteryThreshold {
		return nil
	}
	return l.Cards[MasteryThreshold:]
}

// Validate checks the lesson identity and every card it contains.
func (l Lesson) Validate() error {
	if strings.TrimSpace(l.ID) == "" {
		return ErrLessonIDEmpty
	}
	if strings.TrimSpace(l.LanguageID) == "" {
		return ErrLanguageIDEmpty
	}

	seen := make(map[string]struct{}, len(l.Cards))
	for i, card := range l.Cards {
		if err := card.Validate(); err != nil {
			return fmt.Errorf("card %d: %w", i, err)
		}
		if _, ok := seen[card.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateCardID, card.ID)
		}
		seen[card.ID] = struct{}{}
	}

	return nil
}
