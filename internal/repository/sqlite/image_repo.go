package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/prn-tf/beacon-tracker/internal/domain"
	"github.com/prn-tf/beacon-tracker/internal/repository"
)

// imageRepository implements repository.ImageRepository for SQLite.
type imageRepository struct {
	db *DB
}

// NewImageRepository creates a new SQLite image repository.
func NewImageRepository(db *DB) repository.ImageRepository {
	return &imageRepository{db: db}
}

// scanImage scans a single image row.
func scanImage(scan func(dest ...interface{}) error) (*domain.Image, error) {
	img := &domain.Image{}
	var adminImage int
	var createdAt string

	err := scan(
		&img.ID,
		&img.IssueID,
		&img.Path,
		&img.Size,
		&img.MimeType,
		&adminImage,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	img.AdminImage = adminImage != 0
	img.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	return img, nil
}

// Create inserts a new image record and fills in its generated ID.
func (r *imageRepository) Create(ctx context.Context, img *domain.Image) error {
	if img.CreatedAt.IsZero() {
		img.CreatedAt = time.Now().UTC()
	}

	adminImage := 0
	if img.AdminImage {
		adminImage = 1
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO issue_images (issue_id, image_path, image_size, mime_type, is_admin_image, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, img.IssueID, img.Path, img.Size, img.MimeType, adminImage, img.CreatedAt.Format(time.RFC3339))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewDomainError(domain.ErrProcessingFailed, "image path already recorded", img.Path)
		}
		return fmt.Errorf("failed to insert image record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted image id: %w", err)
	}
	img.ID = id

	return nil
}

// GetByID retrieves an image record by ID.
func (r *imageRepository) GetByID(ctx context.Context, id int64) (*domain.Image, error) {
	query := `
		SELECT id, issue_id, image_path, image_size, mime_type, is_admin_image, created_at
		FROM issue_images WHERE id = ?
	`

	img, err := scanImage(r.db.QueryRowContext(ctx, query, id).Scan)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrImageNotFound
		}
		return nil, fmt.Errorf("failed to get image by id: %w", err)
	}
	return img, nil
}

// ListByIssue returns the images of an issue in chronological order.
func (r *imageRepository) ListByIssue(ctx context.Context, issueID int64) ([]*domain.Image, error) {
	query := `
		SELECT id, issue_id, image_path, image_size, mime_type, is_admin_image, created_at
		FROM issue_images
		WHERE issue_id = ?
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, issueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list issue images: %w", err)
	}
	defer rows.Close()

	var images []*domain.Image
	for rows.Next() {
		img, err := scanImage(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating images: %w", err)
	}

	return images, nil
}

// ListForIssuesOlderThan returns the images of all issues with the given
// status whose updated_at is strictly before cutoff. Called before the
// bulk row delete so file paths are not lost to the cascade.
func (r *imageRepository) ListForIssuesOlderThan(ctx context.Context, status domain.Status, cutoff time.Time) ([]*domain.Image, error) {
	query := `
		SELECT i.id, i.issue_id, i.image_path, i.image_size, i.mime_type, i.is_admin_image, i.created_at
		FROM issue_images i
		JOIN issues s ON s.id = i.issue_id
		WHERE s.status = ? AND s.updated_at < ?
	`

	rows, err := r.db.QueryContext(ctx, query,
		string(status), cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to list images of expired issues: %w", err)
	}
	defer rows.Close()

	var images []*domain.Image
	for rows.Next() {
		img, err := scanImage(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating images: %w", err)
	}

	return images, nil
}

// ListAllPaths returns every image path known to the database.
func (r *imageRepository) ListAllPaths(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT image_path FROM issue_images`)
	if err != nil {
		return nil, fmt.Errorf("failed to list image paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("failed to scan image path: %w", err)
		}
		paths = append(paths, path)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating image paths: %w", err)
	}

	return paths, nil
}

// Delete removes an image record by ID.
func (r *imageRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM issue_images WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete image record: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrImageNotFound
	}

	return nil
}

// Ensure imageRepository implements repository.ImageRepository.
var _ repository.ImageRepository = (*imageRepository)(nil)
