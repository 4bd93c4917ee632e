package domain

import (
	"errors"
	"sort"
	"strings"
	"time"
)

// Mastery-specific validation errors
var (
	// ErrShowCountMismatch is returned when the unique show count disagrees
	// with the number of recorded card IDs.
	ErrShowCountMismatch = errors.New("unique show count must equal the number of shown cards")

	// ErrTotalBelowUnique is returned when fewer total shows than unique shows are recorded.
	ErrTotalBelowUnique = errors.New("total show count cannot be lower than unique show count")

	// ErrNegativeStepIndex is returned when the interval step index is negative.
	ErrNegativeStepIndex = errors.New("interval step index cannot be negative")
)

// LessonKey identifies a mastery record. Lesson IDs are only unique within a
// language, so both parts are required.
type LessonKey struct {
	LessonID   string `json:"lesson_id"`
	LanguageID string `json:"language_id"`
}

// String returns "language/lesson", used for logging and lock keys.
func (k LessonKey) String() string {
	return k.LanguageID + "/" + k.LessonID
}

// Validate checks that both parts of the key are present.
func (k LessonKey) Validate() error {
	if strings.TrimSpace(k.LessonID) == "" {
		return ErrLessonIDEmpty
	}
	if strings.TrimSpace(k.LanguageID) == "" {
		return ErrLanguageIDEmpty
	}
	return nil
}

// MasteryState is the learner's accumulated exposure record for one lesson.
//
// A zero LastShowAt means the lesson has never been shown. ShownCardIDs only
// ever grows; UniqueCardShowCount mirrors its size.
type MasteryState struct {
	LessonID            string              `json:"lesson_id"`
	LanguageID          string              `json:"language_id"`
	UniqueCardShowCount int                 `json:"unique_card_shows"`
	TotalShowCount      int                 `json:"total_card_shows"`
	LastShowAt          time.Time           `json:"last_show_at"`
	IntervalStepIndex   int                 `json:"interval_step_index"`
	CompletedAt         *time.Time          `json:"completed_at,omitempty"`
	ShownCardIDs        map[string]struct{} `json:"-"`
}

// NewMasteryState returns the default record for a lesson nobody has drilled yet.
func NewMasteryState(key LessonKey) *MasteryState {
	return &MasteryState{
		LessonID:     key.LessonID,
		LanguageID:   key.LanguageID,
		ShownCardIDs: make(map[string]struct{}),
	}
}

// Key returns the identity of the record.
func (s *MasteryState) Key() LessonKey {
	return LessonKey{LessonID: s.LessonID, LanguageID: s.LanguageID}
}

// HasBeenShown reports whether any card of the lesson was ever shown.
func (s *MasteryState) HasBeenShown() bool {
	return !s.LastShowAt.IsZero()
}

// HasShownCard reports whether the given card was already shown.
func (s *MasteryState) HasShownCard(cardID string) bool {
	_, ok := s.ShownCardIDs[cardID]
	return ok
}

// SortedCardIDs returns the shown card IDs in lexical order.
func (s *MasteryState) SortedCardIDs() []string {
	ids := make([]string, 0, len(s.ShownCardIDs))
	for id := range s.ShownCardIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns a deep copy of the state.
func (s *MasteryState) Clone() *MasteryState {
	clone := *s
	clone.ShownCardIDs = make(map[string]struct{}, len(s.ShownCardIDs))
	for id := range s.ShownCardIDs {
		clone.ShownCardIDs[id] = struct{}{}
	}
	if s.CompletedAt != nil {
		completed := *s.CompletedAt
		clone.CompletedAt = &completed
	}
	return &clone
}

// Validate checks the counting invariants of the record.
func (s *MasteryState) Validate() error {
	if err := s.Key().Validate(); err != nil {
		return err
	}
	if s.UniqueCardShowCount != len(s.ShownCardIDs) {
		return ErrShowCountMismatch
	}
	if s.TotalShowCount < s.UniqueCardShowCount {
		return ErrTotalBelowUnique
	}
	if s.IntervalStepIndex < 0 {
		return ErrNegativeStepIndex
	}
	return nil
}
