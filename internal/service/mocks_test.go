package service

import (
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/prn-tf/beacon-tracker/internal/domain"
	"github.com/prn-tf/beacon-tracker/internal/repository"
	"github.com/prn-tf/beacon-tracker/internal/storage"
)

// =============================================================================
// Mock Repositories
// =============================================================================

type mockIssueRepository struct {
	mock.Mock
}

func (m *mockIssueRepository) Create(ctx context.Context, issue *domain.Issue) error {
	args := m.Called(ctx, issue)
	return args.Error(0)
}

func (m *mockIssueRepository) GetByID(ctx context.Context, id int64) (*domain.Issue, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Issue), args.Error(1)
}

func (m *mockIssueRepository) GetByTrackingCode(ctx context.Context, code string) (*domain.Issue, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Issue), args.Error(1)
}

func (m *mockIssueRepository) ExistsByTrackingCode(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *mockIssueRepository) List(ctx context.Context, filter repository.IssueFilter) (*repository.IssueListResult, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.IssueListResult), args.Error(1)
}

func (m *mockIssueRepository) UpdateStatus(ctx context.Context, id int64, status domain.Status, adminResponse, changedBy string) error {
	args := m.Called(ctx, id, status, adminResponse, changedBy)
	return args.Error(0)
}

func (m *mockIssueRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockIssueRepository) DeleteOlderThan(ctx context.Context, status domain.Status, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, status, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockIssueRepository) CountOlderThan(ctx context.Context, status domain.Status, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, status, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockIssueRepository) History(ctx context.Context, issueID int64) ([]*domain.StatusChange, error) {
	args := m.Called(ctx, issueID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.StatusChange), args.Error(1)
}

type mockImageRepository struct {
	mock.Mock
}

func (m *mockImageRepository) Create(ctx context.Context, img *domain.Image) error {
	args := m.Called(ctx, img)
	return args.Error(0)
}

func (m *mockImageRepository) GetByID(ctx context.Context, id int64) (*domain.Image, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Image), args.Error(1)
}

func (m *mockImageRepository) ListByIssue(ctx context.Context, issueID int64) ([]*domain.Image, error) {
	args := m.Called(ctx, issueID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Image), args.Error(1)
}

func (m *mockImageRepository) ListForIssuesOlderThan(ctx context.Context, status domain.Status, cutoff time.Time) ([]*domain.Image, error) {
	args := m.Called(ctx, status, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Image), args.Error(1)
}

func (m *mockImageRepository) ListAllPaths(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockImageRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// =============================================================================
// Mock Upload Store
// =============================================================================

type mockUploadStore struct {
	mock.Mock
}

func (m *mockUploadStore) EnsureReady(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockUploadStore) Write(ctx context.Context, filename string, reader io.Reader) (int64, error) {
	args := m.Called(ctx, filename, reader)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockUploadStore) Open(ctx context.Context, filename string) (io.ReadCloser, error) {
	args := m.Called(ctx, filename)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *mockUploadStore) Delete(ctx context.Context, filename string) (storage.DeleteOutcome, error) {
	args := m.Called(ctx, filename)
	return args.Get(0).(storage.DeleteOutcome), args.Error(1)
}

func (m *mockUploadStore) Exists(ctx context.Context, filename string) (bool, error) {
	args := m.Called(ctx, filename)
	return args.Bool(0), args.Error(1)
}

func (m *mockUploadStore) List(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// =============================================================================
// Mock Locker
// =============================================================================

type mockLocker struct {
	mock.Mock
}

func (m *mockLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *mockLocker) AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl, maxRetries, retryDelay)
	return args.Bool(0), args.Error(1)
}

func (m *mockLocker) Release(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *mockLocker) Extend(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *mockLocker) IsHeld(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}
