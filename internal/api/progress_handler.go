package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/drill-api/internal/api/shared"
	"github.com/phrazzld/drill-api/internal/platform/logger"
	"github.com/phrazzld/drill-api/internal/service/mastery"
)

// ProgressHandler handles mastery-related HTTP requests
type ProgressHandler struct {
	masteryService mastery.Service
	logger         *slog.Logger
}

// NewProgressHandler creates a new ProgressHandler
func NewProgressHandler(masteryService mastery.Service, logger *slog.Logger) *ProgressHandler {
	if masteryService == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("masteryService cannot be nil for ProgressHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ProgressHandler{
		masteryService: masteryService,
		logger:         logger.With(slog.String("component", "progress_handler")),
	}
}

// Overview handles GET /languages/{languageID}/lessons requests.
// It lists every lesson of the language with its flower and ladder state.
func (h *ProgressHandler) Overview(w http.ResponseWriter, r *http.Request) {
	languageID, ok := handleLanguageID(w, r)
	if !ok {
		return
	}

	overview, err := h.masteryService.Overview(r.Context(), languageID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load lessons")
		return
	}

	lessons := make([]ProgressResponse, len(overview))
	for i, p := range overview {
		lessons[i] = progressToResponse(p)
	}
	shared.RespondWithJSON(w, r, http.StatusOK, OverviewResponse{
		LanguageID: languageID,
		Lessons:    lessons,
	})
}

// GetProgress handles GET /languages/{languageID}/lessons/{lessonID}/progress requests.
func (h *ProgressHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	key, ok := handleLessonKey(w, r)
	if !ok {
		return
	}

	progress, err := h.masteryService.GetProgress(r.Context(), key)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load lesson progress")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, progressToResponse(*progress))
}

// RecordExposure handles POST /languages/{languageID}/lessons/{lessonID}/exposures requests.
// It records that one card of the lesson was shown to the learner.
func (h *ProgressHandler) RecordExposure(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	key, ok := handleLessonKey(w, r)
	if !ok {
		return
	}

	var req RecordExposureRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	state, err := h.masteryService.RecordExposure(r.Context(), key, req.CardID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to record exposure")
		return
	}

	log.Debug("exposure recorded",
		slog.String("lesson", key.String()),
		slog.String("card_id", req.CardID))
	shared.RespondWithJSON(w, r, http.StatusOK, masteryToResponse(state))
}

// MarkCompleted handles POST /languages/{languageID}/lessons/{lessonID}/complete requests.
func (h *ProgressHandler) MarkCompleted(w http.ResponseWriter, r *http.Request) {
	key, ok := handleLessonKey(w, r)
	if !ok {
		return
	}

	state, err := h.masteryService.MarkCompleted(r.Context(), key)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to complete lesson")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, masteryToResponse(state))
}

// ResetLesson handles DELETE /languages/{languageID}/lessons/{lessonID}/progress requests.
func (h *ProgressHandler) ResetLesson(w http.ResponseWriter, r *http.Request) {
	key, ok := handleLessonKey(w, r)
	if !ok {
		return
	}

	if err := h.masteryService.Reset(r.Context(), key); err != nil {
		HandleAPIError(w, r, err, "Failed to reset lesson")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ResetLanguage handles DELETE /languages/{languageID}/progress requests.
func (h *ProgressHandler) ResetLanguage(w http.ResponseWriter, r *http.Request) {
	languageID, ok := handleLanguageID(w, r)
	if !ok {
		return
	}

	removed, err := h.masteryService.ResetLanguage(r.Context(), languageID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to reset language")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ResetLanguageResponse{
		LanguageID: languageID,
		Removed:    removed,
	})
}
