package api

import (
	"time"

	"github.com/phrazzld/drill-api/internal/domain"
	"github.com/phrazzld/drill-api/internal/domain/review"
	"github.com/phrazzld/drill-api/internal/domain/srs"
	"github.com/phrazzld/drill-api/internal/service/mastery"
)

// CardPayload is a sentence card in a curriculum upload.
type CardPayload struct {
	ID              string   `json:"id"               validate:"required"`
	Prompt          string   `json:"prompt"           validate:"required"`
	AcceptedAnswers []string `json:"accepted_answers" validate:"required,min=1,dive,required"`
}

// LessonPayload is a lesson in a curriculum upload. Card order is kept.
type LessonPayload struct {
	ID    string        `json:"id"    validate:"required"`
	Title string        `json:"title"`
	Cards []CardPayload `json:"cards" validate:"dive"`
}

// ReplaceCurriculumRequest defines the payload of PUT /lessons. Lessons are
// stored in the order given.
type ReplaceCurriculumRequest struct {
	Lessons []LessonPayload `json:"lessons" validate:"required,dive"`
}

// toDomain converts the payload into lessons of languageID.
func (r ReplaceCurriculumRequest) toDomain(languageID string) []domain.Lesson {
	lessons := make([]domain.Lesson, len(r.Lessons))
	for i, l := range r.Lessons {
		cards := make([]domain.SentenceCard, len(l.Cards))
		for j, c := range l.Cards {
			cards[j] = domain.SentenceCard{
				ID:              c.ID,
				Prompt:          c.Prompt,
				AcceptedAnswers: c.AcceptedAnswers,
			}
		}
		lessons[i] = domain.Lesson{
			ID:         l.ID,
			LanguageID: languageID,
			Title:      l.Title,
			Cards:      cards,
		}
	}
	return lessons
}

// ReplaceCurriculumResponse reports what a curriculum upload stored.
type ReplaceCurriculumResponse struct {
	LanguageID string `json:"language_id"`
	Lessons    int    `json:"lessons"`
	Cards      int    `json:"cards"`
}

// RecordExposureRequest defines the payload of POST /exposures.
type RecordExposureRequest struct {
	CardID string `json:"card_id" validate:"required"`
}

// MasteryResponse is the stored mastery record of a lesson.
type MasteryResponse struct {
	LessonID          string     `json:"lesson_id"`
	LanguageID        string     `json:"language_id"`
	UniqueCardShows   int        `json:"unique_card_shows"`
	TotalCardShows    int        `json:"total_card_shows"`
	LastShowAt        *time.Time `json:"last_show_at"`
	IntervalStepIndex int        `json:"interval_step_index"`
	CompletedAt       *time.Time `json:"completed_at"`
}

func masteryToResponse(state *domain.MasteryState) *MasteryResponse {
	if state == nil {
		return nil
	}
	resp := &MasteryResponse{
		LessonID:          state.LessonID,
		LanguageID:        state.LanguageID,
		UniqueCardShows:   state.UniqueCardShowCount,
		TotalCardShows:    state.TotalShowCount,
		IntervalStepIndex: state.IntervalStepIndex,
		CompletedAt:       state.CompletedAt,
	}
	if state.HasBeenShown() {
		last := state.LastShowAt
		resp.LastShowAt = &last
	}
	return resp
}

// ProgressResponse is the learner-facing state of one lesson.
type ProgressResponse struct {
	LessonID   string              `json:"lesson_id"`
	LanguageID string              `json:"language_id"`
	Title      string              `json:"title"`
	CardCount  int                 `json:"card_count"`
	Mastery    *MasteryResponse    `json:"mastery"`
	Flower     domain.FlowerVisual `json:"flower"`
	Ladder     srs.LadderMetrics   `json:"ladder"`
}

func progressToResponse(p mastery.LessonProgress) ProgressResponse {
	return ProgressResponse{
		LessonID:   p.LessonID,
		LanguageID: p.LanguageID,
		Title:      p.Title,
		CardCount:  p.CardCount,
		Mastery:    masteryToResponse(p.State),
		Flower:     p.Flower,
		Ladder:     p.Ladder,
	}
}

// OverviewResponse lists every lesson of a language in curriculum order.
type OverviewResponse struct {
	LanguageID string             `json:"language_id"`
	Lessons    []ProgressResponse `json:"lessons"`
}

// ResetLanguageResponse reports how many mastery records a reset removed.
type ResetLanguageResponse struct {
	LanguageID string `json:"language_id"`
	Removed    int    `json:"removed"`
}

// ScheduleResponse is the full review schedule of a language.
type ScheduleResponse struct {
	LanguageID string           `json:"language_id"`
	Schedule   *review.Schedule `json:"schedule"`
}

// LessonScheduleResponse is the block list of one lesson.
type LessonScheduleResponse struct {
	LanguageID string              `json:"language_id"`
	LessonID   string              `json:"lesson_id"`
	CardCount  int                 `json:"card_count"`
	Blocks     []review.DrillBlock `json:"blocks"`
}
