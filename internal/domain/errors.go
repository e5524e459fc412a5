// Package domain contains the core business entities for Beacon Tracker.
package domain

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (database, filesystem, etc.).

var (
	// ===========================================
	// Issue Errors
	// ===========================================

	// ErrIssueNotFound indicates the requested issue does not exist.
	ErrIssueNotFound = errors.New("issue not found")

	// ErrTrackingCodeNotFound indicates no issue matches the tracking code.
	ErrTrackingCodeNotFound = errors.New("tracking code not found")

	// ErrInvalidIssueInput indicates the issue fields failed validation.
	ErrInvalidIssueInput = errors.New("invalid issue input")

	// ErrInvalidStatus indicates an unknown issue status was supplied.
	ErrInvalidStatus = errors.New("invalid issue status")

	// ErrIssueNotTerminal indicates a delete was attempted on an issue
	// that has not reached a terminal status.
	ErrIssueNotTerminal = errors.New("issue is not in a terminal status")

	// ===========================================
	// Image / Upload Errors
	// ===========================================

	// ErrImageNotFound indicates the requested image does not exist.
	ErrImageNotFound = errors.New("image not found")

	// ErrUnsupportedMediaType indicates the uploaded MIME type is not allowed.
	ErrUnsupportedMediaType = errors.New("unsupported media type")

	// ErrPayloadTooLarge indicates an uploaded file exceeds the size limit.
	ErrPayloadTooLarge = errors.New("file exceeds maximum size")

	// ErrTooManyFiles indicates the request exceeds the per-request file limit.
	ErrTooManyFiles = errors.New("too many files in request")

	// ErrProcessingFailed indicates no file in the request could be processed.
	ErrProcessingFailed = errors.New("image processing failed")

	// ErrNoFiles indicates the upload request contained no files.
	ErrNoFiles = errors.New("no files in request")

	// ===========================================
	// Admin / Auth Errors
	// ===========================================

	// ErrAdminNotFound indicates the requested admin account does not exist.
	ErrAdminNotFound = errors.New("admin not found")

	// ErrAdminAlreadyExists indicates an admin with the same username exists.
	ErrAdminAlreadyExists = errors.New("admin already exists")

	// ErrInvalidCredentials indicates authentication failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrSessionExpired indicates the session token is missing or expired.
	ErrSessionExpired = errors.New("session expired")

	// ===========================================
	// Cleanup Errors
	// ===========================================

	// ErrCleanupAlreadyRunning indicates a cleanup run is in progress
	// and the trigger was rejected by the run guard.
	ErrCleanupAlreadyRunning = errors.New("cleanup run already in progress")
)

// DomainError wraps a domain error with additional context.
type DomainError struct {
	// Err is the underlying domain error.
	Err error

	// Message provides additional context.
	Message string

	// Resource identifies the affected resource (e.g., tracking code, filename).
	Resource string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Err.Error(), e.Message, e.Resource)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError with context.
func NewDomainError(err error, message, resource string) *DomainError {
	return &DomainError{
		Err:      err,
		Message:  message,
		Resource: resource,
	}
}

// WrapError wraps an error with domain context if it's not already a DomainError.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return err
	}

	return &DomainError{
		Err:     err,
		Message: message,
	}
}
