package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/prn-tf/beacon-tracker/internal/domain"
	"github.com/prn-tf/beacon-tracker/internal/repository"
)

// issueRepository implements repository.IssueRepository.
type issueRepository struct {
	db *DB
}

// NewIssueRepository creates a new PostgreSQL issue repository.
func NewIssueRepository(db *DB) repository.IssueRepository {
	return &issueRepository{db: db}
}

const issueColumns = `id, tracking_code, customer_line_name, emails, problem_type,
	problem_description, status, admin_response, created_at, updated_at`

// isUniqueViolation checks for a PostgreSQL unique constraint error.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func scanIssue(row pgx.Row) (*domain.Issue, error) {
	issue := &domain.Issue{}
	var emails []byte
	var status, problemType string

	err := row.Scan(
		&issue.ID,
		&issue.TrackingCode,
		&issue.CustomerLineName,
		&emails,
		&problemType,
		&issue.ProblemDescription,
		&status,
		&issue.AdminResponse,
		&issue.CreatedAt,
		&issue.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	issue.Status = domain.Status(status)
	issue.ProblemType = domain.ProblemType(problemType)
	if err := json.Unmarshal(emails, &issue.Emails); err != nil {
		return nil, fmt.Errorf("failed to unmarshal emails: %w", err)
	}

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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err = r.db.Pool.QueryRow(ctx, query,
		issue.TrackingCode,
		issue.CustomerLineName,
		emails,
		string(issue.ProblemType),
		issue.ProblemDescription,
		string(issue.Status),
		issue.AdminResponse,
		issue.CreatedAt,
		issue.UpdatedAt,
	).Scan(&issue.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewDomainError(domain.ErrInvalidIssueInput, "tracking code already exists", issue.TrackingCode)
		}
		return fmt.Errorf("failed to insert issue: %w", err)
	}

	return nil
}

// GetByID retrieves an issue by internal ID.
func (r *issueRepository) GetByID(ctx context.Context, id int64) (*domain.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues WHERE id = $1`

	issue, err := scanIssue(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrIssueNotFound
		}
		return nil, fmt.Errorf("failed to get issue by id: %w", err)
	}
	return issue, nil
}

// GetByTrackingCode retrieves an issue by its customer-facing code.
func (r *issueRepository) GetByTrackingCode(ctx context.Context, code string) (*domain.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues WHERE tracking_code = $1`

	issue, err := scanIssue(r.db.Pool.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTrackingCodeNotFound
		}
		return nil, fmt.Errorf("failed to get issue by tracking code: %w", err)
	}
	return issue, nil
}

// ExistsByTrackingCode checks if a tracking code is already taken.
func (r *issueRepository) ExistsByTrackingCode(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM issues WHERE tracking_code = $1)`,
		code,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check tracking code existence: %w", err)
	}
	return exists, nil
}

// List returns issues matching the filter with pagination.
func (r *issueRepository) List(ctx context.Context, filter repository.IssueFilter) (*repository.IssueListResult, error) {
	var conditions []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Status != "" {
		conditions = append(conditions, "status = "+arg(string(filter.Status)))
	}
	if filter.ProblemType != "" {
		conditions = append(conditions, "problem_type = "+arg(string(filter.ProblemType)))
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		conditions = append(conditions, fmt.Sprintf(
			"(tracking_code ILIKE %s OR customer_line_name ILIKE %s)",
			arg(pattern), arg(pattern)))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM issues `+where, args...).Scan(&total); err != nil {
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

	query := fmt.Sprintf(`SELECT %s FROM issues %s %s LIMIT %s OFFSET %s`,
		issueColumns, where, order, arg(limit), arg(filter.Offset))

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	defer rows.Close()

	var issues []*domain.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
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
	ids := make([]int64, 0, len(issues))
	for _, issue := range issues {
		byID[issue.ID] = issue
		ids = append(ids, issue.ID)
	}

	query := `
		SELECT id, issue_id, image_path, image_size, mime_type, is_admin_image, created_at
		FROM issue_images
		WHERE issue_id = ANY($1)
		ORDER BY created_at ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("failed to load issue images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		img, err := scanImage(rows)
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
	return r.db.WithTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var previous string
		err := tx.QueryRow(ctx, `SELECT status FROM issues WHERE id = $1 FOR UPDATE`, id).Scan(&previous)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrIssueNotFound
			}
			return fmt.Errorf("failed to read current status: %w", err)
		}

		now := time.Now().UTC()
		_, err = tx.Exec(ctx, `
			UPDATE issues SET status = $1, admin_response = $2, updated_at = $3
			WHERE id = $4
		`, string(status), adminResponse, now, id)
		if err != nil {
			return fmt.Errorf("failed to update issue status: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO status_history (issue_id, previous_status, new_status, changed_by, changed_at)
			VALUES ($1, $2, $3, $4, $5)
		`, id, previous, string(status), changedBy, now)
		if err != nil {
			return fmt.Errorf("failed to record status history: %w", err)
		}

		return nil
	})
}

// Delete hard-deletes an issue by ID. Image and history rows cascade.
func (r *issueRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM issues WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete issue: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrIssueNotFound
	}

	return nil
}

// DeleteOlderThan bulk-deletes issues with the given status whose
// updated_at is strictly before cutoff.
func (r *issueRepository) DeleteOlderThan(ctx context.Context, status domain.Status, cutoff time.Time) (int64, error) {
	result, err := r.db.Pool.Exec(ctx,
		`DELETE FROM issues WHERE status = $1 AND updated_at < $2`,
		string(status), cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired issues: %w", err)
	}

	return result.RowsAffected(), nil
}

// CountOlderThan counts issues that DeleteOlderThan would remove.
func (r *issueRepository) CountOlderThan(ctx context.Context, status domain.Status, cutoff time.Time) (int64, error) {
	var count int64
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM issues WHERE status = $1 AND updated_at < $2`,
		string(status), cutoff.UTC(),
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
		WHERE issue_id = $1
		ORDER BY changed_at ASC, id ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, issueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list status history: %w", err)
	}
	defer rows.Close()

	var changes []*domain.StatusChange
	for rows.Next() {
		change := &domain.StatusChange{}
		var previous, next string

		err := rows.Scan(&change.ID, &change.IssueID, &previous, &next, &change.ChangedBy, &change.ChangedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan status change: %w", err)
		}

		change.PreviousStatus = domain.Status(previous)
		change.NewStatus = domain.Status(next)

		changes = append(changes, change)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status history: %w", err)
	}

	return changes, nil
}

// Ensure issueRepository implements repository.IssueRepository
var _ repository.IssueRepository = (*issueRepository)(nil)
