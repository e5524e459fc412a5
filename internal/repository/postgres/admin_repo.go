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

// adminRepository implements repository.AdminRepository.
type adminRepository struct {
	db *DB
}

// NewAdminRepository creates a new PostgreSQL admin repository.
func NewAdminRepository(db *DB) repository.AdminRepository {
	return &adminRepository{db: db}
}

// Create inserts a new admin account.
func (r *adminRepository) Create(ctx context.Context, admin *domain.Admin) error {
	if admin.CreatedAt.IsZero() {
		admin.CreatedAt = time.Now().UTC()
	}

	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO admins (username, password_hash, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`, admin.Username, admin.PasswordHash, admin.CreatedAt).Scan(&admin.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAdminAlreadyExists
		}
		return fmt.Errorf("failed to insert admin: %w", err)
	}

	return nil
}

// GetByID retrieves an admin by ID.
func (r *adminRepository) GetByID(ctx context.Context, id int64) (*domain.Admin, error) {
	return r.get(ctx, `SELECT id, username, password_hash, created_at FROM admins WHERE id = $1`, id)
}

// GetByUsername retrieves an admin by username.
func (r *adminRepository) GetByUsername(ctx context.Context, username string) (*domain.Admin, error) {
	return r.get(ctx, `SELECT id, username, password_hash, created_at FROM admins WHERE username = $1`, username)
}

func (r *adminRepository) get(ctx context.Context, query string, arg any) (*domain.Admin, error) {
	admin := &domain.Admin{}
	err := r.db.Pool.QueryRow(ctx, query, arg).Scan(
		&admin.ID,
		&admin.Username,
		&admin.PasswordHash,
		&admin.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAdminNotFound
		}
		return nil, fmt.Errorf("failed to get admin: %w", err)
	}

	return admin, nil
}

// ExistsByUsername checks if an admin with the given username exists.
func (r *adminRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM admins WHERE username = $1)`,
		username,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check admin existence: %w", err)
	}
	return exists, nil
}

// Ensure adminRepository implements repository.AdminRepository
var _ repository.AdminRepository = (*adminRepository)(nil)
