package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/prn-tf/beacon-tracker/internal/domain"
	"github.com/prn-tf/beacon-tracker/internal/repository"
)

// imageRepository implements repository.ImageRepository.
type imageRepository struct {
	db *DB
}

// NewImageRepository creates a new PostgreSQL image repository.
func NewImageRepository(db *DB) repository.ImageRepository {
	return &imageRepository{db: db}
}

func scanImage(row pgx.Row) (*domain.Image, error) {
	img := &domain.Image{}
	err := row.Scan(
		&img.ID,
		&img.IssueID,
		&img.Path,
		&img.Size,
		&img.MimeType,
		&img.AdminImage,
		&img.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// Create inserts a new image record and fills in its generated ID.
func (r *imageRepository) Create(ctx context.Context, img *domain.Image) error {
	if img.CreatedAt.IsZero() {
		img.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO issue_images (issue_id, image_path, image_size, mime_type, is_admin_image, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := r.db.Pool.QueryRow(ctx, query,
		img.IssueID, img.Path, img.Size, img.MimeType, img.AdminImage, img.CreatedAt,
	).Scan(&img.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewDomainError(domain.ErrProcessingFailed, "image path already recorded", img.Path)
		}
		return fmt.Errorf("failed to insert image record: %w", err)
	}

	return nil
}

// GetByID retrieves an image record by ID.
func (r *imageRepository) GetByID(ctx context.Context, id int64) (*domain.Image, error) {
	query := `
		SELECT id, issue_id, image_path, image_size, mime_type, is_admin_image, created_at
		FROM issue_images WHERE id = $1
	`

	img, err := scanImage(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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
		WHERE issue_id = $1
		ORDER BY created_at ASC
	`
	return r.list(ctx, query, issueID)
}

// ListForIssuesOlderThan returns the images of all issues with the given
// status whose updated_at is strictly before cutoff.
func (r *imageRepository) ListForIssuesOlderThan(ctx context.Context, status domain.Status, cutoff time.Time) ([]*domain.Image, error) {
	query := `
		SELECT i.id, i.issue_id, i.image_path, i.image_size, i.mime_type, i.is_admin_image, i.created_at
		FROM issue_images i
		JOIN issues s ON s.id = i.issue_id
		WHERE s.status = $1 AND s.updated_at < $2
	`
	return r.list(ctx, query, string(status), cutoff.UTC())
}

func (r *imageRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Image, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer rows.Close()

	var images []*domain.Image
	for rows.Next() {
		img, err := scanImage(rows)
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
	rows, err := r.db.Pool.Query(ctx, `SELECT image_path FROM issue_images`)
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
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM issue_images WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete image record: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrImageNotFound
	}

	return nil
}

// Ensure imageRepository implements repository.ImageRepository
var _ repository.ImageRepository = (*imageRepository)(nil)
