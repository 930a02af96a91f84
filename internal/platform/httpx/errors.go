package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/glowdesk/glowdesk/internal/repository"
	"github.com/glowdesk/glowdesk/internal/shared"
	"github.com/glowdesk/glowdesk/internal/validation"
)

// RespondError maps domain errors to HTTP responses using RFC7807. Anything
// unclassified becomes a 500 with no detail.
func RespondError(w http.ResponseWriter, err error) {
	var verr *validation.Error
	switch {
	case errors.Is(err, shared.ErrPartialFailure):
		Problem(w, http.StatusInternalServerError, "Internal Error", "the request failed and could not be fully rolled back")
	case errors.As(err, &verr):
		JSON(w, http.StatusBadRequest, ProblemDetail{
			Title:  "Validation Failed",
			Status: http.StatusBadRequest,
			Detail: "one or more fields are invalid",
			Errors: verr.Fields,
		})
	case errors.Is(err, repository.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		Problem(w, http.StatusConflict, "Duplicate Request", err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrInvalidCredentials), errors.Is(err, shared.ErrUnauthenticated):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, shared.ErrCSRFTokenMissing), errors.Is(err, shared.ErrCSRFTokenMismatch):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, shared.ErrBadRequest):
		Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// StatusOf reports the status RespondError would write for err.
func StatusOf(err error) int {
	var verr *validation.Error
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, shared.ErrPartialFailure):
		return http.StatusInternalServerError
	case errors.As(err, &verr), errors.Is(err, shared.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrIdempotencyConflict), errors.Is(err, shared.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, shared.ErrInvalidCredentials), errors.Is(err, shared.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrCSRFTokenMissing), errors.Is(err, shared.ErrCSRFTokenMismatch):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// Fail writes err with RespondError and logs it when the status is a server
// error. msg and args describe the failed operation.
func Fail(w http.ResponseWriter, logger *slog.Logger, msg string, err error, args ...any) {
	if status := StatusOf(err); status >= http.StatusInternalServerError && logger != nil {
		logger.Error(msg, append(args, "error", err)...)
	}
	RespondError(w, err)
}
