package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/beacon-tracker/internal/domain"
)

func TestImageRepository_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	issues := NewIssueRepository(db)
	repo := NewImageRepository(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	issue := seedIssue(t, issues, "OAA300000001", domain.StatusPending, now)

	img := &domain.Image{
		IssueID:    issue.ID,
		Path:       "issue_1_1000_42.jpg",
		Size:       2048,
		MimeType:   "image/jpeg",
		AdminImage: true,
	}
	require.NoError(t, repo.Create(ctx, img))
	assert.NotZero(t, img.ID)

	got, err := repo.GetByID(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, issue.ID, got.IssueID)
	assert.Equal(t, "issue_1_1000_42.jpg", got.Path)
	assert.Equal(t, int64(2048), got.Size)
	assert.Equal(t, "image/jpeg", got.MimeType)
	assert.True(t, got.AdminImage)
}

func TestImageRepository_GetNotFound(t *testing.T) {
	db := newTestDB(t)
	repo := NewImageRepository(db)

	_, err := repo.GetByID(context.Background(), 9999)
	assert.ErrorIs(t, err, domain.ErrImageNotFound)
}

func TestImageRepository_ListByIssue(t *testing.T) {
	db := newTestDB(t)
	issues := NewIssueRepository(db)
	repo := NewImageRepository(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	issue := seedIssue(t, issues, "OAA300000002", domain.StatusPending, now)
	other := seedIssue(t, issues, "OAA300000003", domain.StatusPending, now)

	first := &domain.Image{IssueID: issue.ID, Path: "a.jpg", Size: 1, MimeType: "image/jpeg", CreatedAt: now}
	second := &domain.Image{IssueID: issue.ID, Path: "b.jpg", Size: 2, MimeType: "image/jpeg", CreatedAt: now.Add(time.Second)}
	stray := &domain.Image{IssueID: other.ID, Path: "c.jpg", Size: 3, MimeType: "image/jpeg", CreatedAt: now}
	for _, img := range []*domain.Image{second, first, stray} {
		require.NoError(t, repo.Create(ctx, img))
	}

	got, err := repo.ListByIssue(ctx, issue.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a.jpg", got[0].Path)
	assert.Equal(t, "b.jpg", got[1].Path)
}

func TestImageRepository_ListForIssuesOlderThan(t *testing.T) {
	db := newTestDB(t)
	issues := NewIssueRepository(db)
	repo := NewImageRepository(db)
	ctx := context.Background()
	cutoff := time.Now().UTC().Truncate(time.Second).Add(-30 * 24 * time.Hour)

	expired := seedIssue(t, issues, "OAA300000004", domain.StatusCompleted, cutoff.Add(-time.Hour))
	fresh := seedIssue(t, issues, "OAA300000005", domain.StatusCompleted, cutoff.Add(time.Hour))
	oldPending := seedIssue(t, issues, "OAA300000006", domain.StatusPending, cutoff.Add(-time.Hour))

	require.NoError(t, repo.Create(ctx, &domain.Image{IssueID: expired.ID, Path: "expired.jpg", Size: 1, MimeType: "image/jpeg"}))
	require.NoError(t, repo.Create(ctx, &domain.Image{IssueID: fresh.ID, Path: "fresh.jpg", Size: 1, MimeType: "image/jpeg"}))
	require.NoError(t, repo.Create(ctx, &domain.Image{IssueID: oldPending.ID, Path: "pending.jpg", Size: 1, MimeType: "image/jpeg"}))

	got, err := repo.ListForIssuesOlderThan(ctx, domain.StatusCompleted, cutoff)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "expired.jpg", got[0].Path)
}

func TestImageRepository_ListAllPaths(t *testing.T) {
	db := newTestDB(t)
	issues := NewIssueRepository(db)
	repo := NewImageRepository(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	issue := seedIssue(t, issues, "OAA300000007", domain.StatusPending, now)
	require.NoError(t, repo.Create(ctx, &domain.Image{IssueID: issue.ID, Path: "one.jpg", Size: 1, MimeType: "image/jpeg"}))
	require.NoError(t, repo.Create(ctx, &domain.Image{IssueID: issue.ID, Path: "two.jpg", Size: 1, MimeType: "image/jpeg"}))

	paths, err := repo.ListAllPaths(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"one.jpg", "two.jpg"}, paths)
}

func TestImageRepository_Delete(t *testing.T) {
	db := newTestDB(t)
	issues := NewIssueRepository(db)
	repo := NewImageRepository(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	issue := seedIssue(t, issues, "OAA300000008", domain.StatusPending, now)
	img := &domain.Image{IssueID: issue.ID, Path: "gone.jpg", Size: 1, MimeType: "image/jpeg"}
	require.NoError(t, repo.Create(ctx, img))

	require.NoError(t, repo.Delete(ctx, img.ID))

	_, err := repo.GetByID(ctx, img.ID)
	assert.ErrorIs(t, err, domain.ErrImageNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, img.ID), domain.ErrImageNotFound)
}
