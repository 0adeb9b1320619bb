package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/phrazzld/scry-notes/internal/api/shared"
	"github.com/phrazzld/scry-notes/internal/domain"
	"github.com/phrazzld/scry-notes/internal/queue"
	"github.com/phrazzld/scry-notes/internal/service"
	"github.com/phrazzld/scry-notes/internal/service/auth"
	"github.com/phrazzld/scry-notes/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized

	// Another user's job is reported as missing.
	case errors.Is(err, service.ErrNotOwned),
		errors.Is(err, store.ErrJobNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, service.ErrNotCancellable),
		errors.Is(err, service.ErrNotRetryable),
		errors.Is(err, queue.ErrNotQueued):
		return http.StatusConflict

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrEmptyContent),
		errors.Is(err, domain.ErrInvalidJobType),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidPriority),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

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

	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"

	case errors.Is(err, service.ErrNotOwned),
		errors.Is(err, store.ErrJobNotFound),
		errors.Is(err, store.ErrNotFound):
		return "Job not found"

	case errors.Is(err, service.ErrNotCancellable):
		return "Only queued jobs can be cancelled"
	case errors.Is(err, service.ErrNotRetryable):
		return "Job cannot be retried"
	case errors.Is(err, queue.ErrNotQueued):
		return "Job is not queued"

	case errors.Is(err, domain.ErrEmptyContent):
		return "Content cannot be empty"
	case errors.Is(err, domain.ErrInvalidJobType):
		return "Unknown job type"
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidPriority),
		errors.Is(err, store.ErrInvalidEntity):
		return "Invalid job input"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the status and safe message for err. message, when
// not empty, replaces the safe message for client errors.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := MapErrorToStatusCode(err)
	if message == "" || status >= http.StatusInternalServerError {
		message = GetSafeErrorMessage(err)
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err)
}

// HandleValidationError responds 400 with a sanitized validation message.
func HandleValidationError(w http.ResponseWriter, r *http.Request, err error) {
	shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
}

// SanitizeValidationError removes sensitive details from validation errors
// and returns a user-friendly message.
func SanitizeValidationError(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return fmt.Sprintf("Invalid %s: %s", fieldName(fe.Field()), getValidationTagMessage(fe.Tag()))
	}
	return "Validation error"
}

func fieldName(field string) string {
	if field == "" {
		return "request"
	}
	return strings.ToLower(field[:1]) + field[1:]
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min", "gte", "gt":
		return "too small"
	case "max", "lte", "lt":
		return "too large"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
