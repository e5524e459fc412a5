package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/beacon-tracker/internal/domain"
	"github.com/prn-tf/beacon-tracker/internal/lock"
	"github.com/prn-tf/beacon-tracker/internal/metrics"
	"github.com/prn-tf/beacon-tracker/internal/repository"
	"github.com/prn-tf/beacon-tracker/internal/storage"
)

// cleanupLockTTL caps how long a crashed run can block the next one.
const cleanupLockTTL = 30 * time.Minute

// CleanupService purges expired completed issues and reconciles the
// upload store against the database.
type CleanupService struct {
	issueRepo repository.IssueRepository
	imageRepo repository.ImageRepository
	store     storage.UploadStore
	locker    lock.Locker
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	config    CleanupConfig
}

// CleanupConfig contains retention cleanup configuration.
type CleanupConfig struct {
	// Retention is the age past which completed issues are purged.
	// Eligibility compares updated_at strictly against now minus
	// retention: an issue exactly at the boundary is kept.
	Retention time.Duration

	// DryRun logs what would be deleted without actually deleting.
	DryRun bool
}

// NewCleanupService creates a new cleanup service.
func NewCleanupService(
	issueRepo repository.IssueRepository,
	imageRepo repository.ImageRepository,
	store storage.UploadStore,
	locker lock.Locker,
	m *metrics.Metrics,
	logger zerolog.Logger,
	config CleanupConfig,
) *CleanupService {
	return &CleanupService{
		issueRepo: issueRepo,
		imageRepo: imageRepo,
		store:     store,
		locker:    locker,
		metrics:   m,
		logger:    logger.With().Str("service", "cleanup").Logger(),
		config:    config,
	}
}

// CleanupResult contains the result of a cleanup run.
type CleanupResult struct {
	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// Duration is how long the run took.
	Duration time.Duration `json:"duration"`

	// IssuesDeleted is the number of expired issues purged.
	IssuesDeleted int64 `json:"issues_deleted"`

	// FilesDeleted is the number of image files removed from storage,
	// across both the expiry and orphan phases.
	FilesDeleted int `json:"files_deleted"`

	// FilesAlreadyAbsent counts expected files that were not on disk.
	// These are treated as already cleaned up, not as failures.
	FilesAlreadyAbsent int `json:"files_already_absent"`

	// OrphansDeleted is the number of files removed because no
	// database row referenced them.
	OrphansDeleted int `json:"orphans_deleted"`

	// Errors is the number of failures encountered. Each failure
	// affects only its own item; the run continues.
	Errors int `json:"errors"`

	// DryRun indicates nothing was actually deleted.
	DryRun bool `json:"dry_run"`
}

// RunOnce executes a single cleanup run. Returns
// domain.ErrCleanupAlreadyRunning when another run holds the guard.
// The two phases are independent: a failure in the expiry phase does
// not prevent orphan reconciliation.
func (s *CleanupService) RunOnce(ctx context.Context) (*CleanupResult, error) {
	acquired, err := s.locker.Acquire(ctx, lock.Keys.CleanupRun(), cleanupLockTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		s.logger.Info().Msg("cleanup run already in progress, skipping")
		return nil, domain.ErrCleanupAlreadyRunning
	}
	defer func() {
		if _, err := s.locker.Release(ctx, lock.Keys.CleanupRun()); err != nil {
			s.logger.Error().Err(err).Msg("failed to release cleanup lock")
		}
	}()

	start := time.Now()
	result := &CleanupResult{
		StartedAt: start.UTC(),
		DryRun:    s.config.DryRun,
	}

	s.logger.Info().
		Dur("retention", s.config.Retention).
		Bool("dry_run", s.config.DryRun).
		Msg("cleanup run started")

	s.purgeExpired(ctx, result)
	s.reconcileOrphans(ctx, result)

	result.Duration = time.Since(start)

	if s.metrics != nil {
		outcome := "ok"
		if result.Errors > 0 {
			outcome = "partial"
		}
		s.metrics.RecordCleanupRun(outcome, result.Duration,
			int(result.IssuesDeleted), result.FilesDeleted+result.OrphansDeleted)
	}

	s.logger.Info().
		Int64("issues_deleted", result.IssuesDeleted).
		Int("files_deleted", result.FilesDeleted).
		Int("files_already_absent", result.FilesAlreadyAbsent).
		Int("orphans_deleted", result.OrphansDeleted).
		Int("errors", result.Errors).
		Dur("duration", result.Duration).
		Msg("cleanup run completed")

	return result, nil
}

// purgeExpired removes completed issues older than the retention window.
// Image files are deleted before the rows: a crash between the two
// steps leaves rows whose files are gone, which the expiry phase of the
// next run tolerates, instead of untracked files that only the orphan
// scan would ever find.
func (s *CleanupService) purgeExpired(ctx context.Context, result *CleanupResult) {
	cutoff := time.Now().UTC().Add(-s.config.Retention)

	images, err := s.imageRepo.ListForIssuesOlderThan(ctx, domain.StatusCompleted, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list images of expired issues")
		result.Errors++
		return
	}

	if s.config.DryRun {
		count, err := s.issueRepo.CountOlderThan(ctx, domain.StatusCompleted, cutoff)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to count expired issues")
			result.Errors++
			return
		}
		s.logger.Info().
			Int64("issues", count).
			Int("files", len(images)).
			Time("cutoff", cutoff).
			Msg("[dry run] would purge expired issues")
		result.IssuesDeleted = count
		result.FilesDeleted += len(images)
		return
	}

	for _, img := range images {
		outcome, err := s.store.Delete(ctx, img.Path)
		if err != nil {
			s.logger.Error().
				Err(err).
				Str("path", img.Path).
				Int64("issue_id", img.IssueID).
				Msg("failed to delete image file")
			result.Errors++
			continue
		}
		if outcome == storage.AlreadyAbsent {
			s.logger.Debug().Str("path", img.Path).Msg("image file already absent")
			result.FilesAlreadyAbsent++
			continue
		}
		result.FilesDeleted++
	}

	deleted, err := s.issueRepo.DeleteOlderThan(ctx, domain.StatusCompleted, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to delete expired issues")
		result.Errors++
		return
	}
	result.IssuesDeleted = deleted

	if deleted > 0 {
		s.logger.Info().
			Int64("count", deleted).
			Time("cutoff", cutoff).
			Msg("expired issues purged")
	}
}

// reconcileOrphans deletes stored files that no image row references.
// The asymmetry is deliberate: files without rows are junk from crashed
// uploads, while rows without files stay untouched here because the row
// is the source of truth for the issue's history.
func (s *CleanupService) reconcileOrphans(ctx context.Context, result *CleanupResult) {
	stored, err := s.store.List(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list stored files")
		result.Errors++
		return
	}

	known, err := s.imageRepo.ListAllPaths(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list known image paths")
		result.Errors++
		return
	}

	knownSet := make(map[string]struct{}, len(known))
	for _, path := range known {
		knownSet[path] = struct{}{}
	}

	var orphans []string
	for _, name := range stored {
		if _, ok := knownSet[name]; !ok {
			orphans = append(orphans, name)
		}
	}

	if s.metrics != nil {
		s.metrics.CleanupOrphanFiles.Set(float64(len(orphans)))
	}

	if len(orphans) == 0 {
		return
	}

	s.logger.Info().Int("count", len(orphans)).Msg("orphan files found")

	for _, name := range orphans {
		if s.config.DryRun {
			s.logger.Info().Str("path", name).Msg("[dry run] would delete orphan file")
			result.OrphansDeleted++
			continue
		}

		outcome, err := s.store.Delete(ctx, name)
		if err != nil {
			s.logger.Error().Err(err).Str("path", name).Msg("failed to delete orphan file")
			result.Errors++
			continue
		}
		if outcome == storage.Deleted {
			s.logger.Debug().Str("path", name).Msg("orphan file deleted")
			result.OrphansDeleted++
		}
	}
}

// CleanupStats describes what the next cleanup run would remove.
type CleanupStats struct {
	// ExpiredIssues is the number of issues currently past retention.
	ExpiredIssues int64 `json:"expired_issues"`

	// ExpiredFiles is the number of files those issues own.
	ExpiredFiles int `json:"expired_files"`

	// OrphanFiles is the number of stored files with no database row.
	OrphanFiles int `json:"orphan_files"`

	// Retention is the configured retention window.
	Retention time.Duration `json:"retention"`
}

// Stats reports current cleanup eligibility without deleting anything.
func (s *CleanupService) Stats(ctx context.Context) (*CleanupStats, error) {
	cutoff := time.Now().UTC().Add(-s.config.Retention)

	expired, err := s.issueRepo.CountOlderThan(ctx, domain.StatusCompleted, cutoff)
	if err != nil {
		return nil, err
	}

	images, err := s.imageRepo.ListForIssuesOlderThan(ctx, domain.StatusCompleted, cutoff)
	if err != nil {
		return nil, err
	}

	stored, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	known, err := s.imageRepo.ListAllPaths(ctx)
	if err != nil {
		return nil, err
	}

	knownSet := make(map[string]struct{}, len(known))
	for _, path := range known {
		knownSet[path] = struct{}{}
	}
	orphans := 0
	for _, name := range stored {
		if _, ok := knownSet[name]; !ok {
			orphans++
		}
	}

	return &CleanupStats{
		ExpiredIssues: expired,
		ExpiredFiles:  len(images),
		OrphanFiles:   orphans,
		Retention:     s.config.Retention,
	}, nil
}
