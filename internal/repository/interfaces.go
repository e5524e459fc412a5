// Package repository defines data access interfaces for Beacon Tracker.
// These interfaces abstract database operations, allowing for different
// implementations (PostgreSQL, SQLite, mocks for testing) while keeping
// the service layer clean.
package repository

import (
	"context"
	"time"

	"github.com/prn-tf/beacon-tracker/internal/domain"
)

// =============================================================================
// Issue Repository
// =============================================================================

// IssueRepository defines the interface for issue data access.
type IssueRepository interface {
	// Create inserts a new issue and fills in its generated ID.
	Create(ctx context.Context, issue *domain.Issue) error

	// GetByID retrieves an issue by internal ID.
	GetByID(ctx context.Context, id int64) (*domain.Issue, error)

	// GetByTrackingCode retrieves an issue by its customer-facing code.
	GetByTrackingCode(ctx context.Context, code string) (*domain.Issue, error)

	// ExistsByTrackingCode checks if a tracking code is already taken.
	ExistsByTrackingCode(ctx context.Context, code string) (bool, error)

	// List returns issues matching the filter with pagination.
	List(ctx context.Context, filter IssueFilter) (*IssueListResult, error)

	// UpdateStatus sets the status and admin response of an issue,
	// bumps updated_at, and records a status history row.
	UpdateStatus(ctx context.Context, id int64, status domain.Status, adminResponse, changedBy string) error

	// Delete hard-deletes an issue by ID. Dependent image and history
	// rows are removed by foreign-key cascade.
	Delete(ctx context.Context, id int64) error

	// DeleteOlderThan bulk-deletes issues with the given status whose
	// updated_at is strictly before cutoff. Returns the number of
	// deleted issues. Dependent rows cascade.
	DeleteOlderThan(ctx context.Context, status domain.Status, cutoff time.Time) (int64, error)

	// CountOlderThan counts issues that DeleteOlderThan would remove.
	// Used for cleanup statistics without deleting anything.
	CountOlderThan(ctx context.Context, status domain.Status, cutoff time.Time) (int64, error)

	// History returns the status transitions of an issue in order.
	History(ctx context.Context, issueID int64) ([]*domain.StatusChange, error)
}

// IssueFilter contains filtering and pagination options for listing issues.
type IssueFilter struct {
	// Status filters by issue status when non-empty.
	Status domain.Status

	// ProblemType filters by problem type when non-empty.
	ProblemType domain.ProblemType

	// Search matches against tracking code and customer line name.
	Search string

	// Offset is the number of records to skip.
	Offset int

	// Limit is the maximum number of records to return.
	Limit int

	// Descending orders by created_at descending if true.
	Descending bool
}

// IssueListResult contains the result of a list issues operation.
type IssueListResult struct {
	// Issues is the page of issues, with images preloaded.
	Issues []*domain.Issue

	// Total is the total number of matches (without pagination).
	Total int64

	// Offset is the current offset.
	Offset int

	// Limit is the current limit.
	Limit int
}

// =============================================================================
// Image Repository
// =============================================================================

// ImageRepository defines the interface for issue image metadata access.
type ImageRepository interface {
	// Create inserts a new image record and fills in its generated ID.
	Create(ctx context.Context, img *domain.Image) error

	// GetByID retrieves an image record by ID.
	GetByID(ctx context.Context, id int64) (*domain.Image, error)

	// ListByIssue returns the images belonging to an issue in
	// chronological order.
	ListByIssue(ctx context.Context, issueID int64) ([]*domain.Image, error)

	// ListForIssuesOlderThan returns the images of all issues with the
	// given status whose updated_at is strictly before cutoff. The
	// retention engine calls this before deleting rows so file paths
	// are not lost to the cascade.
	ListForIssuesOlderThan(ctx context.Context, status domain.Status, cutoff time.Time) ([]*domain.Image, error)

	// ListAllPaths returns every image path known to the database.
	// Used by orphan reconciliation.
	ListAllPaths(ctx context.Context) ([]string, error)

	// Delete removes an image record by ID.
	Delete(ctx context.Context, id int64) error
}

// =============================================================================
// Admin Repository
// =============================================================================

// AdminRepository defines the interface for admin account access.
type AdminRepository interface {
	// Create inserts a new admin account.
	Create(ctx context.Context, admin *domain.Admin) error

	// GetByID retrieves an admin by ID.
	GetByID(ctx context.Context, id int64) (*domain.Admin, error)

	// GetByUsername retrieves an admin by username.
	GetByUsername(ctx context.Context, username string) (*domain.Admin, error)

	// ExistsByUsername checks if an admin with the given username exists.
	ExistsByUsername(ctx context.Context, username string) (bool, error)
}

// =============================================================================
// Transaction Support
// =============================================================================

// TxManager defines the interface for transaction management.
type TxManager interface {
	// WithTx executes the given function within a transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
