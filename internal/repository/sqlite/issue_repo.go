package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prn-tf/beacon-tracker/internal/domain"
	"github.com/prn-tf/beacon-tracker/internal/repository"
)

// issueRepository implements repository.IssueRepository for SQLite.
type issueRepository struct {
	db *DB
}

// NewIssueRepository creates a new SQLite issue repository.
func NewIssueRepository(db *DB) repository.IssueRepository {
	return &issueRepository{db: db}
}

const issueColumns = `id, tracking_code, customer_line_name, emails, problem_type,
	problem_description, status, admin_response, created_at, updated_at`

// scanIssue scans a single issue row from either *sql.Row or *sql.Rows.
func scanIssue(scan func(dest ...interface{}) error) (*domain.Issue, error) {
	issue := &domain.Issue{}
	var emails, status, problemType, createdAt, updatedAt string

	err := scan(
		&issue.ID,
		&issue.TrackingCode,
		&issue.CustomerLineName,
		&emails,
		&problemType,
		&issue.ProblemDescription,
		&status,
		&issue.AdminResponse,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	issue.Status = domain.Status(status)
	issue.ProblemType = domain.ProblemType(problemType)
	if err := json.Unmarshal([]byte(emails), &issue.Emails); err != nil {
		// Legacy rows may hold a bare address instead of a JSON array.
		issue.Emails = []string{emails}
	}
	issue.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	issue.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return issue, nil
}

// Create inserts a new issue and fills in its generated ID.
func (r *issueRepository) Create(ctx context.Context, issue *domain.Issue) error {
	emails, err := json.Marshal(issue.Emails)
	if err != nil {
		return fmt.Errorf("failed to marshal emails: %w", err)
	}

	now := time.Now().UTC()
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = now
	}
	if issue.UpdatedAt.IsZero() {
		issue.UpdatedAt = issue.CreatedAt
	}
	if issue.Status == "" {
		issue.Status = domain.StatusPending
	}

	query := `
		INSERT INTO issues (tracking_code, customer_line_name, emails, problem_type,
			problem_description, status, admin_response, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		issue.TrackingCode,
		issue.CustomerLineName,
		string(emails),
		string(issue.ProblemType),
		issue.ProblemDescription,
		string(issue.Status),
		issue.AdminResponse,
		issue.CreatedAt.Format(time.RFC3339),
		issue.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewDomainError(domain.ErrInvalidIssueInput, "tracking code already exists", issue.TrackingCode)
		}
		return fmt.Errorf("failed to insert issue: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted issue id: %w", err)
	}
	issue.ID = id

	return nil
}

// GetByID retrieves an issue by internal ID.
func (r *issueRepository) GetByID(ctx context.Context, id int64) (*domain.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues WHERE id = ?`

	issue, err := scanIssue(r.db.QueryRowContext(ctx, query, id).Scan)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrIssueNotFound
		}
		return nil, fmt.Errorf("failed to get issue by id: %w", err)
	}
	return issue, nil
}

// GetByTrackingCode retrieves an issue by its customer-facing code.
func (r *issueRepository) GetByTrackingCode(ctx context.Context, code string) (*domain.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues WHERE tracking_code = ?`

	issue, err := scanIssue(r.db.QueryRowContext(ctx, query, code).Scan)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrTrackingCodeNotFound
		}
		return nil, fmt.Errorf("failed to get issue by tracking code: %w", err)
	}
	return issue, nil
}

// ExistsByTrackingCode checks if a tracking code is already taken.
func (r *issueRepository) ExistsByTrackingCode(ctx context.Context, code string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM issues WHERE tracking_code = ?`,
		code,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check tracking code existence: %w", err)
	}
	return count > 0, nil
}

// List returns issues matching the filter with pagination.
func (r *issueRepository) List(ctx context.Context, filter repository.IssueFilter) (*repository.IssueListResult, error) {
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.ProblemType != "" {
		conditions = append(conditions, "problem_type = ?")
		args = append(args, string(filter.ProblemType))
	}
	if filter.Search != "" {
		conditions = append(conditions, "(tracking_code LIKE ? OR customer_line_name LIKE ?)")
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM issues ` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count issues: %w", err)
	}

	order := "ORDER BY created_at ASC"
	if filter.Descending {
		order = "ORDER BY created_at DESC"
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	query := fmt.Sprintf(`SELECT %s FROM issues %s %s LIMIT ? OFFSET ?`, issueColumns, where, order)
	pageArgs := append(append([]interface{}{}, args...), limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, pageArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	defer rows.Close()

	var issues []*domain.Issue
	for rows.Next() {
		issue, err := scanIssue(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating issues: %w", err)
	}

	if err := r.attachImages(ctx, issues); err != nil {
		return nil, err
	}

	return &repository.IssueListResult{
		Issues: issues,
		Total:  total,
		Offset: filter.Offset,
		Limit:  limit,
	}, nil
}

// attachImages loads the images for a page of issues in one query.
func (r *issueRepository) attachImages(ctx context.Context, issues []*domain.Issue) error {
	if len(issues) == 0 {
		return nil
	}

	byID := make(map[int64]*domain.Issue, len(issues))
	placeholders := make([]string, 0, len(issues))
	args := make([]interface{}, 0, len(issues))
	for _, issue := range issues {
		byID[issue.ID] = issue
		placeholders = append(placeholders, "?")
		args = append(args, issue.ID)
	}

	query := fmt.Sprintf(`
		SELECT id, issue_id, image_path, image_size, mime_type, is_admin_image, created_at
		FROM issue_images
		WHERE issue_id IN (%s)
		ORDER BY created_at ASC
	`, strings.Join(placeholders, ","))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to load issue images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		img, err := scanImage(rows.Scan)
		if err != nil {
			return fmt.Errorf("failed to scan image: %w", err)
		}
		if issue, ok := byID[img.IssueID]; ok {
			issue.Images = append(issue.Images, img)
		}
	}
	return rows.Err()
}

// UpdateStatus sets the status and admin response of an issue, bumps
// updated_at, and records a status history row in one transaction.
func (r *issueRepository) UpdateStatus(ctx context.Context, id int64, status domain.Status, adminResponse, changedBy string) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		var previous string
		err := tx.QueryRowContext(ctx, `SELECT status FROM issues WHERE id = ?`, id).Scan(&previous)
		if err != nil {
			if isNoRows(err) {
				return domain.ErrIssueNotFound
			}
			return fmt.Errorf("failed to read current status: %w", err)
		}

		now := time.Now().UTC().Format(time.RFC3339)
		_, err = tx.ExecContext(ctx, `
			UPDATE issues SET status = ?, admin_response = ?, updated_at = ?
			WHERE id = ?
		`, string(status), adminResponse, now, id)
		if err != nil {
			return fmt.Errorf("failed to update issue status: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO status_history (issue_id, previous_status, new_status, changed_by, changed_at)
			VALUES (?, ?, ?, ?, ?)
		`, id, previous, string(status), changedBy, now)
		if err != nil {
			return fmt.Errorf("failed to record status history: %w", err)
		}

		return nil
	})
}

// Delete hard-deletes an issue by ID. Image and history rows cascade.
func (r *issueRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM issues WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete issue: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrIssueNotFound
	}

	return nil
}

// DeleteOlderThan bulk-deletes issues with the given status whose
// updated_at is strictly before cutoff.
func (r *issueRepository) DeleteOlderThan(ctx context.Context, status domain.Status, cutoff time.Time) (int64, error) {
	query := `DELETE FROM issues WHERE status = ? AND updated_at < ?`

	result, err := r.db.ExecContext(ctx, query,
		string(status), cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired issues: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get deleted row count: %w", err)
	}

	return deleted, nil
}

// CountOlderThan counts issues that DeleteOlderThan would remove.
func (r *issueRepository) CountOlderThan(ctx context.Context, status domain.Status, cutoff time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM issues WHERE status = ? AND updated_at < ?`,
		string(status), cutoff.UTC().Format(time.RFC3339),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count expired issues: %w", err)
	}
	return count, nil
}

// History returns the status transitions of an issue in order.
func (r *issueRepository) History(ctx context.Context, issueID int64) ([]*domain.StatusChange, error) {
	query := `
		SELECT id, issue_id, previous_status, new_status, changed_by, changed_at
		FROM status_history
		WHERE issue_id = ?
		ORDER BY changed_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, issueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list status history: %w", err)
	}
	defer rows.Close()

	var changes []*domain.StatusChange
	for rows.Next() {
		change := &domain.StatusChange{}
		var previous, next, changedAt string

		err := rows.Scan(&change.ID, &change.IssueID, &previous, &next, &change.ChangedBy, &changedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan status change: %w", err)
		}

		change.PreviousStatus = domain.Status(previous)
		change.NewStatus = domain.Status(next)
		change.ChangedAt, _ = time.Parse(time.RFC3339, changedAt)

		changes = append(changes, change)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status history: %w", err)
	}

	return changes, nil
}

// Ensure issueRepository implements repository.IssueRepository.
var _ repository.IssueRepository = (*issueRepository)(nil)
