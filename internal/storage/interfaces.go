// Package storage defines interfaces for upload file storage backends.
// The storage layer persists processed issue images under server-generated
// filenames and supports the retention engine's delete and list operations.
package storage

import (
	"context"
	"io"
)

// DeleteOutcome reports what a Delete call actually did. The retention
// engine treats a missing file as already cleaned up rather than as a
// failure, so the distinction must survive the interface boundary.
type DeleteOutcome int

const (
	// Deleted means the file existed and was removed.
	Deleted DeleteOutcome = iota

	// AlreadyAbsent means there was no file to remove.
	AlreadyAbsent
)

// UploadStore defines the interface for upload storage backends.
// Implementations include the local filesystem and S3-compatible stores.
type UploadStore interface {
	// EnsureReady prepares the backend for writes (creates the upload
	// directory, verifies bucket access). Called once at startup.
	EnsureReady(ctx context.Context) error

	// Write stores content under the given filename. The filename is
	// always server-generated so implementations may join it to their
	// base location without traversal checks. Writes are atomic: a
	// partially written file is never visible under the final name.
	//
	// Returns the number of bytes written.
	Write(ctx context.Context, filename string, reader io.Reader) (int64, error)

	// Open retrieves stored content by filename.
	// Returns a ReadCloser that must be closed after use.
	Open(ctx context.Context, filename string) (io.ReadCloser, error)

	// Delete removes a file by filename.
	// A missing file is reported as AlreadyAbsent, not as an error.
	Delete(ctx context.Context, filename string) (DeleteOutcome, error)

	// Exists checks if a file with the given name exists.
	Exists(ctx context.Context, filename string) (bool, error)

	// List returns the names of all stored files. Used by orphan
	// reconciliation to diff storage against the database.
	List(ctx context.Context) ([]string, error)
}
