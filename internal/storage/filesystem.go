package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// FilesystemStore implements UploadStore on a local directory.
// Files are staged in a temp directory and moved into place with an
// atomic rename, so readers and the orphan scan never observe partial
// writes under a final name.
type FilesystemStore struct {
	dir     string
	tempDir string
	logger  zerolog.Logger
}

// NewFilesystemStore creates a filesystem-backed upload store.
// When tempDir is empty, a ".tmp" subdirectory of dir is used; the
// rename is only guaranteed atomic when both live on one filesystem.
func NewFilesystemStore(dir, tempDir string, logger zerolog.Logger) *FilesystemStore {
	if tempDir == "" {
		tempDir = filepath.Join(dir, ".tmp")
	}
	return &FilesystemStore{
		dir:     dir,
		tempDir: tempDir,
		logger:  logger.With().Str("store", "filesystem").Logger(),
	}
}

// EnsureReady creates the upload and temp directories.
func (s *FilesystemStore) EnsureReady(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}
	if err := os.MkdirAll(s.tempDir, 0o755); err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	return nil
}

// Write stores content under the given filename via temp file + rename.
func (s *FilesystemStore) Write(ctx context.Context, filename string, reader io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	tempPath := filepath.Join(s.tempDir, uuid.NewString())
	f, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}

	written, err := io.Copy(f, reader)
	if err != nil {
		f.Close()
		os.Remove(tempPath)
		return 0, fmt.Errorf("failed to write upload: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return 0, fmt.Errorf("failed to sync upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return 0, fmt.Errorf("failed to close temp file: %w", err)
	}

	finalPath := filepath.Join(s.dir, filename)
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return 0, fmt.Errorf("failed to move upload into place: %w", err)
	}

	s.logger.Debug().
		Str("filename", filename).
		Int64("size", written).
		Msg("file stored")

	return written, nil
}

// Open retrieves stored content by filename.
func (s *FilesystemStore) Open(ctx context.Context, filename string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(s.dir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, os.ErrNotExist
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// Delete removes a file by filename.
func (s *FilesystemStore) Delete(ctx context.Context, filename string) (DeleteOutcome, error) {
	if err := ctx.Err(); err != nil {
		return AlreadyAbsent, err
	}

	err := os.Remove(filepath.Join(s.dir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return AlreadyAbsent, nil
		}
		return AlreadyAbsent, fmt.Errorf("failed to delete file: %w", err)
	}

	return Deleted, nil
}

// Exists checks if a file with the given name exists.
func (s *FilesystemStore) Exists(ctx context.Context, filename string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := os.Stat(filepath.Join(s.dir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat file: %w", err)
	}
	return true, nil
}

// List returns the names of all stored files.
// The temp directory and other subdirectories are skipped; staged
// writes must not show up as orphans.
func (s *FilesystemStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read upload directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

// Ensure FilesystemStore implements UploadStore.
var _ UploadStore = (*FilesystemStore)(nil)
