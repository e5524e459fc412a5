// Package handler provides HTTP handlers for the Beacon Tracker API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/prn-tf/beacon-tracker/internal/domain"
)

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps domain errors to HTTP status codes. Infrastructure
// errors become an opaque 500; details stay in the logs.
func writeError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"
	message := ""

	switch {
	case errors.Is(err, domain.ErrIssueNotFound),
		errors.Is(err, domain.ErrTrackingCodeNotFound),
		errors.Is(err, domain.ErrImageNotFound),
		errors.Is(err, domain.ErrAdminNotFound):
		status = http.StatusNotFound
		code = "not_found"
		message = err.Error()

	case errors.Is(err, domain.ErrInvalidIssueInput),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrNoFiles):
		status = http.StatusBadRequest
		code = "invalid_input"
		message = err.Error()

	case errors.Is(err, domain.ErrIssueNotTerminal):
		status = http.StatusConflict
		code = "issue_not_terminal"
		message = err.Error()

	case errors.Is(err, domain.ErrUnsupportedMediaType):
		status = http.StatusUnsupportedMediaType
		code = "unsupported_media_type"
		message = err.Error()

	case errors.Is(err, domain.ErrPayloadTooLarge),
		errors.Is(err, domain.ErrTooManyFiles):
		status = http.StatusRequestEntityTooLarge
		code = "payload_too_large"
		message = err.Error()

	case errors.Is(err, domain.ErrProcessingFailed):
		status = http.StatusUnprocessableEntity
		code = "processing_failed"
		message = err.Error()

	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrSessionExpired):
		status = http.StatusUnauthorized
		code = "unauthorized"

	case errors.Is(err, domain.ErrAdminAlreadyExists):
		status = http.StatusConflict
		code = "already_exists"
		message = err.Error()

	case errors.Is(err, domain.ErrCleanupAlreadyRunning):
		status = http.StatusConflict
		code = "cleanup_running"
		message = err.Error()
	}

	if status == http.StatusInternalServerError {
		logger.Error().Err(err).Msg("request failed")
	}

	writeJSON(w, status, errorResponse{Error: code, Message: message})
}
