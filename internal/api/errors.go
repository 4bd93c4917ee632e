package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/drill-api/internal/api/shared"
	"github.com/phrazzld/drill-api/internal/domain"
	"github.com/phrazzld/drill-api/internal/service/mastery"
	"github.com/phrazzld/drill-api/internal/service/schedule"
	"github.com/phrazzld/drill-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	var validationErrs validator.ValidationErrors
	var maxBytesErr *http.MaxBytesError

	switch {
	// Not found errors
	case errors.Is(err, mastery.ErrLessonNotFound),
		errors.Is(err, schedule.ErrLessonNotScheduled),
		errors.Is(err, store.ErrLessonNotFound),
		store.IsNotFoundError(err):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, mastery.ErrLessonNotStarted),
		store.IsDuplicateError(err):
		return http.StatusConflict

	// Well-formed requests naming things that do not fit together
	case errors.Is(err, mastery.ErrCardNotInLesson):
		return http.StatusUnprocessableEntity

	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge

	// Bad request errors
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, shared.ErrInvalidBody),
		errors.As(err, &validationErrs):
		return http.StatusBadRequest

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var validationErrs validator.ValidationErrors
	var maxBytesErr *http.MaxBytesError

	switch {
	case errors.Is(err, mastery.ErrLessonNotFound),
		errors.Is(err, store.ErrLessonNotFound):
		return "Lesson not found"

	case errors.Is(err, schedule.ErrLessonNotScheduled):
		return "Lesson is not scheduled"

	case errors.Is(err, mastery.ErrLessonNotStarted):
		return "Lesson has not been started"

	case errors.Is(err, mastery.ErrCardNotInLesson):
		return "Card does not belong to this lesson"

	case errors.Is(err, store.ErrDuplicate):
		return "Resource already exists"

	case errors.As(err, &maxBytesErr):
		return "Request body too large"

	case errors.Is(err, shared.ErrEmptyBody):
		return "Request body is required"

	case errors.As(err, &validationErrs):
		return SanitizeValidationError(validationErrs)

	case errors.Is(err, store.ErrLanguageMismatch):
		return "Lesson language does not match the curriculum language"

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity):
		return validationMessage(err)

	case errors.Is(err, shared.ErrInvalidBody):
		return "Invalid request body"

	default:
		return "An unexpected error occurred"
	}
}

// validationMessage names the domain rule a request broke. Only messages of
// known domain sentinels are echoed.
func validationMessage(err error) string {
	known := []error{
		domain.ErrLessonIDEmpty,
		domain.ErrLanguageIDEmpty,
		domain.ErrDuplicateCardID,
		domain.ErrCardIDEmpty,
		domain.ErrCardPromptEmpty,
		domain.ErrCardAnswersEmpty,
	}
	for _, sentinel := range known {
		if errors.Is(err, sentinel) {
			return "Validation error: " + sentinel.Error()
		}
	}

	var fieldErr *domain.ValidationError
	if errors.As(err, &fieldErr) {
		return fmt.Sprintf("Invalid %s: %s", fieldErr.Field, fieldErr.Message)
	}
	if strings.Contains(err.Error(), "duplicate lesson ID") {
		return "Validation error: duplicate lesson ID in curriculum"
	}
	return "Validation error"
}

// SanitizeValidationError turns validator errors into a client message that
// names the first failing field and rule.
func SanitizeValidationError(errs validator.ValidationErrors) string {
	if len(errs) == 0 {
		return "Validation error"
	}
	first := errs[0]
	field := first.Namespace()
	// Drop the root struct name: "ReplaceCurriculumRequest.lessons[0].id" -> "lessons[0].id"
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(first.Tag()))
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}

// HandleAPIError writes the JSON error envelope for err. When fallback is
// not empty it replaces the generic message of unexpected errors.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallback != "" {
		message = fallback
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err)
}
