package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/drill-api/internal/api/shared"
	"github.com/phrazzld/drill-api/internal/domain/review"
	"github.com/phrazzld/drill-api/internal/platform/logger"
	"github.com/phrazzld/drill-api/internal/service/schedule"
	"github.com/samber/lo"
)

// CurriculumHandler handles curriculum uploads and review schedule requests
type CurriculumHandler struct {
	scheduleService schedule.Service
	logger          *slog.Logger
}

// NewCurriculumHandler creates a new CurriculumHandler
func NewCurriculumHandler(scheduleService schedule.Service, logger *slog.Logger) *CurriculumHandler {
	if scheduleService == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("scheduleService cannot be nil for CurriculumHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &CurriculumHandler{
		scheduleService: scheduleService,
		logger:          logger.With(slog.String("component", "curriculum_handler")),
	}
}

// ReplaceCurriculum handles PUT /languages/{languageID}/lessons requests.
// The uploaded lessons replace the language's curriculum; learner progress
// is kept.
func (h *CurriculumHandler) ReplaceCurriculum(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	languageID, ok := handleLanguageID(w, r)
	if !ok {
		return
	}

	var req ReplaceCurriculumRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	lessons := req.toDomain(languageID)
	if err := h.scheduleService.ReplaceCurriculum(r.Context(), languageID, lessons); err != nil {
		HandleAPIError(w, r, err, "Failed to store curriculum")
		return
	}

	cards := lo.SumBy(req.Lessons, func(l LessonPayload) int { return len(l.Cards) })
	log.Info("curriculum uploaded",
		slog.String("language_id", languageID),
		slog.Int("lessons", len(lessons)),
		slog.Int("cards", cards))

	shared.RespondWithJSON(w, r, http.StatusOK, ReplaceCurriculumResponse{
		LanguageID: languageID,
		Lessons:    len(lessons),
		Cards:      cards,
	})
}

// GetSchedule handles GET /languages/{languageID}/schedule requests.
func (h *CurriculumHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	languageID, ok := handleLanguageID(w, r)
	if !ok {
		return
	}

	sched, err := h.scheduleService.ForLanguage(r.Context(), languageID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to build schedule")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ScheduleResponse{
		LanguageID: languageID,
		Schedule:   sched,
	})
}

// GetLessonSchedule handles GET /languages/{languageID}/lessons/{lessonID}/schedule requests.
func (h *CurriculumHandler) GetLessonSchedule(w http.ResponseWriter, r *http.Request) {
	key, ok := handleLessonKey(w, r)
	if !ok {
		return
	}

	blocks, err := h.scheduleService.ForLesson(r.Context(), key.LanguageID, key.LessonID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to build schedule")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, LessonScheduleResponse{
		LanguageID: key.LanguageID,
		LessonID:   key.LessonID,
		CardCount:  review.LessonSchedule{Blocks: blocks}.CardCount(),
		Blocks:     blocks,
	})
}
