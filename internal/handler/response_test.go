package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/beacon-tracker/internal/domain"
)

func TestWriteError_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"issue not found", domain.ErrIssueNotFound, http.StatusNotFound, "not_found"},
		{"tracking code not found", domain.ErrTrackingCodeNotFound, http.StatusNotFound, "not_found"},
		{"admin not found", domain.ErrAdminNotFound, http.StatusNotFound, "not_found"},
		{"invalid input", domain.ErrInvalidIssueInput, http.StatusBadRequest, "invalid_input"},
		{"invalid status", domain.ErrInvalidStatus, http.StatusBadRequest, "invalid_input"},
		{"no files", domain.ErrNoFiles, http.StatusBadRequest, "invalid_input"},
		{"not terminal", domain.ErrIssueNotTerminal, http.StatusConflict, "issue_not_terminal"},
		{"unsupported media type", domain.ErrUnsupportedMediaType, http.StatusUnsupportedMediaType, "unsupported_media_type"},
		{"payload too large", domain.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge, "payload_too_large"},
		{"too many files", domain.ErrTooManyFiles, http.StatusRequestEntityTooLarge, "payload_too_large"},
		{"processing failed", domain.ErrProcessingFailed, http.StatusUnprocessableEntity, "processing_failed"},
		{"invalid credentials", domain.ErrInvalidCredentials, http.StatusUnauthorized, "unauthorized"},
		{"session expired", domain.ErrSessionExpired, http.StatusUnauthorized, "unauthorized"},
		{"admin exists", domain.ErrAdminAlreadyExists, http.StatusConflict, "already_exists"},
		{"cleanup running", domain.ErrCleanupAlreadyRunning, http.StatusConflict, "cleanup_running"},
		{"infrastructure error", errors.New("connection refused"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, zerolog.Nop(), tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Error)
		})
	}
}

func TestWriteError_WrappedDomainError(t *testing.T) {
	rec := httptest.NewRecorder()

	// DomainError context still maps through errors.Is.
	err := domain.NewDomainError(domain.ErrIssueNotTerminal, "only completed issues can be deleted", "OAA123456789")
	writeError(rec, zerolog.Nop(), err)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestWriteError_HidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, zerolog.Nop(), errors.New("pq: password authentication failed"))

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Message)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestWriteJSON_NilBody(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusNoContent, nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}
