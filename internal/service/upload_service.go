package service

import (
	"bytes"
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/beacon-tracker/internal/domain"
	"github.com/prn-tf/beacon-tracker/internal/imaging"
	"github.com/prn-tf/beacon-tracker/internal/metrics"
	"github.com/prn-tf/beacon-tracker/internal/repository"
	"github.com/prn-tf/beacon-tracker/internal/storage"
)

// UploadService processes and stores issue images.
type UploadService struct {
	issueRepo repository.IssueRepository
	imageRepo repository.ImageRepository
	store     storage.UploadStore
	processor *imaging.Processor
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	maxFiles  int
}

// NewUploadService creates a new upload service.
func NewUploadService(
	issueRepo repository.IssueRepository,
	imageRepo repository.ImageRepository,
	store storage.UploadStore,
	processor *imaging.Processor,
	m *metrics.Metrics,
	logger zerolog.Logger,
	maxFiles int,
) *UploadService {
	return &UploadService{
		issueRepo: issueRepo,
		imageRepo: imageRepo,
		store:     store,
		processor: processor,
		metrics:   m,
		logger:    logger.With().Str("service", "upload").Logger(),
		maxFiles:  maxFiles,
	}
}

// UploadFile is one file from a multipart upload request.
type UploadFile struct {
	// Name is the client-supplied filename. Only its extension is
	// used, and only after sanitization.
	Name string

	// Data is the raw file content.
	Data []byte
}

// FileError describes one file that could not be processed.
type FileError struct {
	Name string `json:"name"`
	Err  error  `json:"-"`

	// Reason is the client-safe message.
	Reason string `json:"reason"`
}

// UploadResult reports the per-file outcome of an upload request.
type UploadResult struct {
	// Images are the stored image records, in request order.
	Images []*domain.Image `json:"images"`

	// Failed lists files that were rejected or failed processing.
	Failed []FileError `json:"failed,omitempty"`
}

// AttachImages validates, processes and stores the uploaded files for
// an issue. Files are handled independently: one bad file does not
// reject its siblings. The whole request fails only when the issue does
// not exist, the file count limit is exceeded, or nothing could be
// processed at all.
func (s *UploadService) AttachImages(ctx context.Context, issueID int64, files []UploadFile, adminImage bool) (*UploadResult, error) {
	if len(files) == 0 {
		return nil, domain.ErrNoFiles
	}
	if len(files) > s.maxFiles {
		return nil, domain.NewDomainError(domain.ErrTooManyFiles, "", "")
	}

	issue, err := s.issueRepo.GetByID(ctx, issueID)
	if err != nil {
		return nil, err
	}

	result := &UploadResult{}
	for _, file := range files {
		img, err := s.processOne(ctx, issue.ID, file, adminImage)
		if err != nil {
			if s.metrics != nil {
				s.metrics.UploadsTotal.WithLabelValues("failed").Inc()
			}
			s.logger.Warn().
				Err(err).
				Int64("issue_id", issue.ID).
				Str("filename", file.Name).
				Msg("upload rejected")
			result.Failed = append(result.Failed, FileError{
				Name:   file.Name,
				Err:    err,
				Reason: err.Error(),
			})
			continue
		}

		if s.metrics != nil {
			s.metrics.UploadsTotal.WithLabelValues("stored").Inc()
			s.metrics.UploadBytesStored.Add(float64(img.Size))
		}
		result.Images = append(result.Images, img)
	}

	if len(result.Images) == 0 {
		return nil, domain.NewDomainError(domain.ErrProcessingFailed, "no file could be processed", "")
	}

	s.logger.Info().
		Int64("issue_id", issue.ID).
		Int("stored", len(result.Images)).
		Int("failed", len(result.Failed)).
		Msg("images attached")

	return result, nil
}

// DeleteImage removes a single image: the stored file best-effort
// first, then the record. A missing file does not block the record
// delete; it is the same dangling state the reconciliation pass
// tolerates.
func (s *UploadService) DeleteImage(ctx context.Context, imageID int64) error {
	img, err := s.imageRepo.GetByID(ctx, imageID)
	if err != nil {
		return err
	}

	outcome, err := s.store.Delete(ctx, img.Path)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("path", img.Path).
			Msg("failed to delete image file, removing record anyway")
	} else if outcome == storage.AlreadyAbsent {
		s.logger.Debug().Str("path", img.Path).Msg("image file already absent")
	}

	if err := s.imageRepo.Delete(ctx, img.ID); err != nil {
		return err
	}

	s.logger.Info().
		Int64("image_id", img.ID).
		Int64("issue_id", img.IssueID).
		Str("path", img.Path).
		Msg("image deleted")

	return nil
}

// processOne runs the pipeline for a single file: process, store,
// record. The file is written to storage before the row is inserted;
// if the insert fails the stored file is removed again.
func (s *UploadService) processOne(ctx context.Context, issueID int64, file UploadFile, adminImage bool) (*domain.Image, error) {
	processed, err := s.processor.Process(file.Data)
	if err != nil {
		return nil, err
	}

	filename := domain.NewImageFilename(issueID, file.Name, time.Now())

	written, err := s.store.Write(ctx, filename, bytes.NewReader(processed.Data))
	if err != nil {
		return nil, domain.WrapError(err, "failed to store image")
	}

	img := &domain.Image{
		IssueID:    issueID,
		Path:       filename,
		Size:       written,
		MimeType:   processed.MimeType,
		AdminImage: adminImage,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.imageRepo.Create(ctx, img); err != nil {
		// Roll back the stored file so it doesn't linger as an orphan
		// until the next reconciliation pass.
		if _, delErr := s.store.Delete(ctx, filename); delErr != nil {
			s.logger.Error().
				Err(delErr).
				Str("path", filename).
				Msg("failed to remove file after record insert failure")
		}
		return nil, err
	}

	return img, nil
}
