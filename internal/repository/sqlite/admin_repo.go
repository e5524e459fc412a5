package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/prn-tf/beacon-tracker/internal/domain"
	"github.com/prn-tf/beacon-tracker/internal/repository"
)

// adminRepository implements repository.AdminRepository for SQLite.
type adminRepository struct {
	db *DB
}

// NewAdminRepository creates a new SQLite admin repository.
func NewAdminRepository(db *DB) repository.AdminRepository {
	return &adminRepository{db: db}
}

// Create inserts a new admin account.
func (r *adminRepository) Create(ctx context.Context, admin *domain.Admin) error {
	if admin.CreatedAt.IsZero() {
		admin.CreatedAt = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO admins (username, password_hash, created_at)
		VALUES (?, ?, ?)
	`, admin.Username, admin.PasswordHash, admin.CreatedAt.Format(time.RFC3339))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAdminAlreadyExists
		}
		return fmt.Errorf("failed to insert admin: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted admin id: %w", err)
	}
	admin.ID = id

	return nil
}

// GetByID retrieves an admin by ID.
func (r *adminRepository) GetByID(ctx context.Context, id int64) (*domain.Admin, error) {
	return r.get(ctx, `SELECT id, username, password_hash, created_at FROM admins WHERE id = ?`, id)
}

// GetByUsername retrieves an admin by username.
func (r *adminRepository) GetByUsername(ctx context.Context, username string) (*domain.Admin, error) {
	return r.get(ctx, `SELECT id, username, password_hash, created_at FROM admins WHERE username = ?`, username)
}

func (r *adminRepository) get(ctx context.Context, query string, arg interface{}) (*domain.Admin, error) {
	admin := &domain.Admin{}
	var createdAt string

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&admin.ID,
		&admin.Username,
		&admin.PasswordHash,
		&createdAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrAdminNotFound
		}
		return nil, fmt.Errorf("failed to get admin: %w", err)
	}

	admin.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	return admin, nil
}

// ExistsByUsername checks if an admin with the given username exists.
func (r *adminRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM admins WHERE username = ?`,
		username,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check admin existence: %w", err)
	}
	return count > 0, nil
}

// Ensure adminRepository implements repository.AdminRepository.
var _ repository.AdminRepository = (*adminRepository)(nil)
