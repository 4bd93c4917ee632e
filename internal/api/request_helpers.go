package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/drill-api/internal/api/shared"
	"github.com/phrazzld/drill-api/internal/domain"
	"github.com/phrazzld/drill-api/internal/platform/logger"
)

// Path parameter names shared by the router and the handlers.
const (
	languageIDParam = "languageID"
	lessonIDParam   = "lessonID"
)

// getPathParam extracts a required, non-blank path parameter.
func getPathParam(r *http.Request, name string) (string, error) {
	value := strings.TrimSpace(chi.URLParam(r, name))
	if value == "" {
		return "", domain.NewValidationError(name, "is required", domain.ErrValidation)
	}
	return value, nil
}

// handleLanguageID extracts the language path parameter. It writes an error
// response and returns false when the parameter is missing.
func handleLanguageID(w http.ResponseWriter, r *http.Request) (string, bool) {
	languageID, err := getPathParam(r, languageIDParam)
	if err != nil {
		logger.FromContext(r.Context()).Warn("invalid language path parameter")
		HandleAPIError(w, r, err, "")
		return "", false
	}
	return languageID, true
}

// handleLessonKey extracts the language and lesson path parameters. It
// writes an error response and returns false when either is missing.
func handleLessonKey(w http.ResponseWriter, r *http.Request) (domain.LessonKey, bool) {
	languageID, ok := handleLanguageID(w, r)
	if !ok {
		return domain.LessonKey{}, false
	}
	lessonID, err := getPathParam(r, lessonIDParam)
	if err != nil {
		logger.FromContext(r.Context()).Warn("invalid lesson path parameter",
			slog.String("language_id", languageID))
		HandleAPIError(w, r, err, "")
		return domain.LessonKey{}, false
	}
	return domain.LessonKey{LessonID: lessonID, LanguageID: languageID}, true
}

// decodeAndValidate reads a JSON body into v and validates it. It writes an
// error response and returns false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := shared.DecodeJSON(w, r, v); err != nil {
		HandleAPIError(w, r, err, "")
		return false
	}
	if err := shared.ValidateRequest(v); err != nil {
		HandleAPIError(w, r, err, "")
		return false
	}
	return true
}
