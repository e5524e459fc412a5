package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/beacon-tracker/internal/domain"
	"github.com/prn-tf/beacon-tracker/internal/lock"
	"github.com/prn-tf/beacon-tracker/internal/storage"
)

func newTestCleanupService(cfg CleanupConfig) (*CleanupService, *mockIssueRepository, *mockImageRepository, *mockUploadStore, *mockLocker) {
	issueRepo := new(mockIssueRepository)
	imageRepo := new(mockImageRepository)
	store := new(mockUploadStore)
	locker := new(mockLocker)

	svc := NewCleanupService(issueRepo, imageRepo, store, locker, nil, zerolog.Nop(), cfg)
	return svc, issueRepo, imageRepo, store, locker
}

func grantLock(locker *mockLocker) {
	locker.On("Acquire", mock.Anything, lock.Keys.CleanupRun(), mock.AnythingOfType("time.Duration")).Return(true, nil)
	locker.On("Release", mock.Anything, lock.Keys.CleanupRun()).Return(true, nil)
}

func TestCleanupService_RunOnce_PurgesExpired(t *testing.T) {
	svc, issueRepo, imageRepo, store, locker := newTestCleanupService(CleanupConfig{
		Retention: 30 * 24 * time.Hour,
	})
	grantLock(locker)

	expiredImages := []*domain.Image{
		{ID: 1, IssueID: 10, Path: "issue_10_1_1.jpg"},
		{ID: 2, IssueID: 11, Path: "issue_11_2_2.jpg"},
	}

	imageRepo.On("ListForIssuesOlderThan", mock.Anything, domain.StatusCompleted, mock.AnythingOfType("time.Time")).
		Return(expiredImages, nil)

	// Files are removed before the rows so the cascade cannot orphan them.
	store.On("Delete", mock.Anything, "issue_10_1_1.jpg").Return(storage.Deleted, nil)
	store.On("Delete", mock.Anything, "issue_11_2_2.jpg").Return(storage.Deleted, nil)
	issueRepo.On("DeleteOlderThan", mock.Anything, domain.StatusCompleted, mock.AnythingOfType("time.Time")).
		Return(int64(2), nil)

	// Orphan phase finds nothing.
	store.On("List", mock.Anything).Return([]string{}, nil)
	imageRepo.On("ListAllPaths", mock.Anything).Return([]string{}, nil)

	result, err := svc.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), result.IssuesDeleted)
	assert.Equal(t, 2, result.FilesDeleted)
	assert.Equal(t, 0, result.FilesAlreadyAbsent)
	assert.Equal(t, 0, result.Errors)
	assert.False(t, result.DryRun)

	issueRepo.AssertExpectations(t)
	store.AssertExpectations(t)
	locker.AssertExpectations(t)
}

func TestCleanupService_RunOnce_CutoffUsesRetention(t *testing.T) {
	retention := 30 * 24 * time.Hour
	svc, issueRepo, imageRepo, store, locker := newTestCleanupService(CleanupConfig{Retention: retention})
	grantLock(locker)

	var gotCutoff time.Time
	imageRepo.On("ListForIssuesOlderThan", mock.Anything, domain.StatusCompleted, mock.AnythingOfType("time.Time")).
		Run(func(args mock.Arguments) {
			gotCutoff = args.Get(2).(time.Time)
		}).Return([]*domain.Image{}, nil)
	issueRepo.On("DeleteOlderThan", mock.Anything, domain.StatusCompleted, mock.AnythingOfType("time.Time")).
		Return(int64(0), nil)
	store.On("List", mock.Anything).Return([]string{}, nil)
	imageRepo.On("ListAllPaths", mock.Anything).Return([]string{}, nil)

	_, err := svc.RunOnce(context.Background())
	require.NoError(t, err)

	want := time.Now().UTC().Add(-retention)
	assert.WithinDuration(t, want, gotCutoff, 5*time.Second)
}

func TestCleanupService_RunOnce_AlreadyRunning(t *testing.T) {
	svc, issueRepo, _, _, locker := newTestCleanupService(CleanupConfig{Retention: time.Hour})

	locker.On("Acquire", mock.Anything, lock.Keys.CleanupRun(), mock.AnythingOfType("time.Duration")).
		Return(false, nil)

	_, err := svc.RunOnce(context.Background())
	assert.ErrorIs(t, err, domain.ErrCleanupAlreadyRunning)

	issueRepo.AssertNotCalled(t, "DeleteOlderThan", mock.Anything, mock.Anything, mock.Anything)
	locker.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
}

func TestCleanupService_RunOnce_MissingFilesAreNotErrors(t *testing.T) {
	svc, issueRepo, imageRepo, store, locker := newTestCleanupService(CleanupConfig{Retention: time.Hour})
	grantLock(locker)

	images := []*domain.Image{
		{ID: 1, IssueID: 10, Path: "present.jpg"},
		{ID: 2, IssueID: 10, Path: "gone.jpg"},
	}

	imageRepo.On("ListForIssuesOlderThan", mock.Anything, domain.StatusCompleted, mock.AnythingOfType("time.Time")).
		Return(images, nil)
	store.On("Delete", mock.Anything, "present.jpg").Return(storage.Deleted, nil)
	store.On("Delete", mock.Anything, "gone.jpg").Return(storage.AlreadyAbsent, nil)
	issueRepo.On("DeleteOlderThan", mock.Anything, domain.StatusCompleted, mock.AnythingOfType("time.Time")).
		Return(int64(1), nil)
	store.On("List", mock.Anything).Return([]string{}, nil)
	imageRepo.On("ListAllPaths", mock.Anything).Return([]string{}, nil)

	result, err := svc.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.FilesDeleted)
	assert.Equal(t, 1, result.FilesAlreadyAbsent)
	assert.Equal(t, 0, result.Errors)

	// The row delete still happens even though a file was missing.
	issueRepo.AssertExpectations(t)
}

func TestCleanupService_RunOnce_FileErrorDoesNotStopRun(t *testing.T) {
	svc, issueRepo, imageRepo, store, locker := newTestCleanupService(CleanupConfig{Retention: time.Hour})
	grantLock(locker)

	images := []*domain.Image{
		{ID: 1, IssueID: 10, Path: "bad.jpg"},
		{ID: 2, IssueID: 10, Path: "good.jpg"},
	}

	imageRepo.On("ListForIssuesOlderThan", mock.Anything, domain.StatusCompleted, mock.AnythingOfType("time.Time")).
		Return(images, nil)
	store.On("Delete", mock.Anything, "bad.jpg").Return(storage.AlreadyAbsent, errors.New("io error"))
	store.On("Delete", mock.Anything, "good.jpg").Return(storage.Deleted, nil)
	issueRepo.On("DeleteOlderThan", mock.Anything, domain.StatusCompleted, mock.AnythingOfType("time.Time")).
		Return(int64(1), nil)
	store.On("List", mock.Anything).Return([]string{}, nil)
	imageRepo.On("ListAllPaths", mock.Anything).Return([]string{}, nil)

	result, err := svc.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.FilesDeleted)
	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, int64(1), result.IssuesDeleted)
}

func TestCleanupService_RunOnce_OrphanReconciliation(t *testing.T) {
	svc, issueRepo, imageRepo, store, locker := newTestCleanupService(CleanupConfig{Retention: time.Hour})
	grantLock(locker)

	imageRepo.On("ListForIssuesOlderThan", mock.Anything, domain.StatusCompleted, mock.AnythingOfType("time.Time")).
		Return([]*domain.Image{}, nil)
	issueRepo.On("DeleteOlderThan", mock.Anything, domain.StatusCompleted, mock.AnythingOfType("time.Time")).
		Return(int64(0), nil)

	// Two stored files, one known to the database. The unknown one is an
	// orphan and gets removed; rows without files are left alone.
	store.On("List", mock.Anything).Return([]string{"known.jpg", "stray.jpg"}, nil)
	imageRepo.On("ListAllPaths", mock.Anything).Return([]string{"known.jpg", "row_without_file.jpg"}, nil)
	store.On("Delete", mock.Anything, "stray.jpg").Return(storage.Deleted, nil)

	result, err := svc.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.OrphansDeleted)
	store.AssertNotCalled(t, "Delete", mock.Anything, "known.jpg")
	store.AssertNotCalled(t, "Delete", mock.Anything, "row_without_file.jpg")
}

func TestCleanupService_RunOnce_ExpiryFailureStillReconciles(t *testing.T) {
	svc, _, imageRepo, store, locker := newTestCleanupService(CleanupConfig{Retention: time.Hour})
	grantLock(locker)

	imageRepo.On("ListForIssuesOlderThan", mock.Anything, domain.StatusCompleted, mock.AnythingOfType("time.Time")).
		Return(nil, errors.New("db timeout"))

	store.On("List", mock.Anything).Return([]string{"stray.jpg"}, nil)
	imageRepo.On("ListAllPaths", mock.Anything).Return([]string{}, nil)
	store.On("Delete", mock.Anything, "stray.jpg").Return(storage.Deleted, nil)

	result, err := svc.RunOnce(context.Background())
	require.NoError(t, err)

	// The phases are independent: the orphan scan ran despite the
	// expiry phase failing.
	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, 1, result.OrphansDeleted)
}

func TestCleanupService_RunOnce_DryRun(t *testing.T) {
	svc, issueRepo, imageRepo, store, locker := newTestCleanupService(CleanupConfig{
		Retention: time.Hour,
		DryRun:    true,
	})
	grantLock(locker)

	images := []*domain.Image{{ID: 1, IssueID: 10, Path: "a.jpg"}}
	imageRepo.On("ListForIssuesOlderThan", mock.Anything, domain.StatusCompleted, mock.AnythingOfType("time.Time")).
		Return(images, nil)
	issueRepo.On("CountOlderThan", mock.Anything, domain.StatusCompleted, mock.AnythingOfType("time.Time")).
		Return(int64(3), nil)
	store.On("List", mock.Anything).Return([]string{"a.jpg", "stray.jpg"}, nil)
	imageRepo.On("ListAllPaths", mock.Anything).Return([]string{"a.jpg"}, nil)

	result, err := svc.RunOnce(context.Background())
	require.NoError(t, err)

	assert.True(t, result.DryRun)
	assert.Equal(t, int64(3), result.IssuesDeleted)
	assert.Equal(t, 1, result.OrphansDeleted)

	// Nothing is actually deleted in dry run mode.
	store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	issueRepo.AssertNotCalled(t, "DeleteOlderThan", mock.Anything, mock.Anything, mock.Anything)
}

func TestCleanupService_Stats(t *testing.T) {
	retention := 30 * 24 * time.Hour
	svc, issueRepo, imageRepo, store, _ := newTestCleanupService(CleanupConfig{Retention: retention})

	issueRepo.On("CountOlderThan", mock.Anything, domain.StatusCompleted, mock.AnythingOfType("time.Time")).
		Return(int64(4), nil)
	imageRepo.On("ListForIssuesOlderThan", mock.Anything, domain.StatusCompleted, mock.AnythingOfType("time.Time")).
		Return([]*domain.Image{{ID: 1}, {ID: 2}}, nil)
	store.On("List", mock.Anything).Return([]string{"a.jpg", "stray.jpg"}, nil)
	imageRepo.On("ListAllPaths", mock.Anything).Return([]string{"a.jpg"}, nil)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(4), stats.ExpiredIssues)
	assert.Equal(t, 2, stats.ExpiredFiles)
	assert.Equal(t, 1, stats.OrphanFiles)
	assert.Equal(t, retention, stats.Retention)
}

func TestCleanupService_Stats_NeverLocks(t *testing.T) {
	svc, issueRepo, imageRepo, store, locker := newTestCleanupService(CleanupConfig{Retention: time.Hour})

	issueRepo.On("CountOlderThan", mock.Anything, domain.StatusCompleted, mock.AnythingOfType("time.Time")).
		Return(int64(0), nil)
	imageRepo.On("ListForIssuesOlderThan", mock.Anything, domain.StatusCompleted, mock.AnythingOfType("time.Time")).
		Return([]*domain.Image{}, nil)
	store.On("List", mock.Anything).Return([]string{}, nil)
	imageRepo.On("ListAllPaths", mock.Anything).Return([]string{}, nil)

	_, err := svc.Stats(context.Background())
	require.NoError(t, err)

	locker.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything, mock.Anything)
}
