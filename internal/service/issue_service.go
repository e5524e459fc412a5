// Package service provides business logic services for Beacon Tracker.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/beacon-tracker/internal/domain"
	"github.com/prn-tf/beacon-tracker/internal/metrics"
	"github.com/prn-tf/beacon-tracker/internal/repository"
	"github.com/prn-tf/beacon-tracker/internal/storage"
)

// trackingCodeMaxAttempts bounds the collision retry loop when
// generating a tracking code.
const trackingCodeMaxAttempts = 5

// IssueService handles issue lifecycle operations.
type IssueService struct {
	issueRepo repository.IssueRepository
	imageRepo repository.ImageRepository
	store     storage.UploadStore
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewIssueService creates a new issue service.
func NewIssueService(
	issueRepo repository.IssueRepository,
	imageRepo repository.ImageRepository,
	store storage.UploadStore,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *IssueService {
	return &IssueService{
		issueRepo: issueRepo,
		imageRepo: imageRepo,
		store:     store,
		metrics:   m,
		logger:    logger.With().Str("service", "issue").Logger(),
	}
}

// CreateIssueInput contains the fields for a new issue report.
type CreateIssueInput struct {
	CustomerLineName   string
	Emails             []string
	ProblemType        domain.ProblemType
	ProblemDescription string
}

// CreateIssue validates the input, generates a unique tracking code and
// persists the issue with status pending.
func (s *IssueService) CreateIssue(ctx context.Context, input CreateIssueInput) (*domain.Issue, error) {
	if err := domain.ValidateNewIssue(input.CustomerLineName, input.Emails, input.ProblemType, input.ProblemDescription); err != nil {
		return nil, err
	}

	code, err := s.generateTrackingCode(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	issue := &domain.Issue{
		TrackingCode:       code,
		CustomerLineName:   input.CustomerLineName,
		Emails:             input.Emails,
		ProblemType:        input.ProblemType,
		ProblemDescription: input.ProblemDescription,
		Status:             domain.StatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.issueRepo.Create(ctx, issue); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IssuesCreatedTotal.Inc()
	}

	s.logger.Info().
		Int64("issue_id", issue.ID).
		Str("tracking_code", issue.TrackingCode).
		Str("problem_type", string(issue.ProblemType)).
		Msg("issue created")

	return issue, nil
}

// generateTrackingCode produces a tracking code that is not yet taken.
// Codes embed a millisecond timestamp, so collisions are rare; a bounded
// retry absorbs the unlucky cases.
func (s *IssueService) generateTrackingCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < trackingCodeMaxAttempts; attempt++ {
		code := domain.NewTrackingCode(time.Now())

		exists, err := s.issueRepo.ExistsByTrackingCode(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check tracking code: %w", err)
		}
		if !exists {
			return code, nil
		}

		s.logger.Debug().
			Str("tracking_code", code).
			Int("attempt", attempt+1).
			Msg("tracking code collision, regenerating")
	}
	return "", fmt.Errorf("failed to generate unique tracking code after %d attempts", trackingCodeMaxAttempts)
}

// Track retrieves an issue by tracking code with its images loaded.
// This is the customer-facing lookup.
func (s *IssueService) Track(ctx context.Context, code string) (*domain.Issue, error) {
	issue, err := s.issueRepo.GetByTrackingCode(ctx, code)
	if err != nil {
		return nil, err
	}

	images, err := s.imageRepo.ListByIssue(ctx, issue.ID)
	if err != nil {
		return nil, err
	}
	issue.Images = images

	return issue, nil
}

// Get retrieves an issue by internal ID with its images loaded.
func (s *IssueService) Get(ctx context.Context, id int64) (*domain.Issue, error) {
	issue, err := s.issueRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	images, err := s.imageRepo.ListByIssue(ctx, issue.ID)
	if err != nil {
		return nil, err
	}
	issue.Images = images

	return issue, nil
}

// List returns issues matching the filter with pagination.
func (s *IssueService) List(ctx context.Context, filter repository.IssueFilter) (*repository.IssueListResult, error) {
	return s.issueRepo.List(ctx, filter)
}

// UpdateStatus transitions an issue to a new status, optionally setting
// the admin response. The transition is recorded in status history.
func (s *IssueService) UpdateStatus(ctx context.Context, id int64, status domain.Status, adminResponse, changedBy string) (*domain.Issue, error) {
	if !status.Valid() {
		return nil, domain.NewDomainError(domain.ErrInvalidStatus, "unknown status", string(status))
	}

	if err := s.issueRepo.UpdateStatus(ctx, id, status, adminResponse, changedBy); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.StatusChangesTotal.WithLabelValues(string(status)).Inc()
	}

	s.logger.Info().
		Int64("issue_id", id).
		Str("status", string(status)).
		Str("changed_by", changedBy).
		Msg("issue status updated")

	return s.Get(ctx, id)
}

// Delete removes a terminal issue along with its stored image files.
// Files are deleted before the database rows so a crash cannot leave
// rows pointing at removed records while files survive untracked.
func (s *IssueService) Delete(ctx context.Context, id int64) error {
	issue, err := s.issueRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if !issue.CanDelete() {
		return domain.NewDomainError(domain.ErrIssueNotTerminal,
			"only completed issues can be deleted", issue.TrackingCode)
	}

	images, err := s.imageRepo.ListByIssue(ctx, id)
	if err != nil {
		return err
	}

	// Best effort per file: a failed unlink becomes an orphan that the
	// reconciliation pass picks up later.
	for _, img := range images {
		outcome, err := s.store.Delete(ctx, img.Path)
		if err != nil {
			s.logger.Error().
				Err(err).
				Str("path", img.Path).
				Msg("failed to delete image file")
			continue
		}
		if outcome == storage.AlreadyAbsent {
			s.logger.Debug().Str("path", img.Path).Msg("image file already absent")
		}
	}

	if err := s.issueRepo.Delete(ctx, id); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.IssuesDeletedManual.Inc()
	}

	s.logger.Info().
		Int64("issue_id", id).
		Str("tracking_code", issue.TrackingCode).
		Int("images", len(images)).
		Msg("issue deleted")

	return nil
}

// History returns the status transitions of an issue. The issue must
// exist.
func (s *IssueService) History(ctx context.Context, id int64) ([]*domain.StatusChange, error) {
	if _, err := s.issueRepo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.issueRepo.History(ctx, id)
}

// IsNotFound reports whether err is any of the not-found domain errors.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrIssueNotFound) ||
		errors.Is(err, domain.ErrTrackingCodeNotFound) ||
		errors.Is(err, domain.ErrImageNotFound) ||
		errors.Is(err, domain.ErrAdminNotFound)
}
