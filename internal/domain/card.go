package domain

import (
	"errors"
	"strings"
)

// Card-specific validation errors
var (
	// ErrCardIDEmpty is returned when a card ID is empty.
	ErrCardIDEmpty = errors.New("card ID cannot be empty")

	// ErrCardPromptEmpty is returned when a card has no prompt text.
	ErrCardPromptEmpty = errors.New("card prompt cannot be empty")

	// ErrCardAnswersEmpty is returned when a card has no accepted answer.
	ErrCardAnswersEmpty = errors.New("card must have at least one accepted answer")
)

// SentenceCard is a single drill item: a prompt in the learner's language and
// the translations accepted as correct. Cards are immutable once loaded.
type SentenceCard struct {
	ID              string   `json:"id"`
	Prompt          string   `json:"prompt"`
	AcceptedAnswers []string `json:"accepted_answers"`
}

// Validate checks if the SentenceCard has valid data.
func (c SentenceCard) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return ErrCardIDEmpty
	}

	if strings.TrimSpace(c.Prompt) == "" {
		return ErrCardPromptEmpty
	}

	for _, answer := range c.AcceptedAnswers {
		if strings.TrimSpace(answer) != "" {
			return nil
		}
	}

	return ErrCardAnswersEmpty
}
