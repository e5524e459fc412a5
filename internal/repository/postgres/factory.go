package postgres

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/prn-tf/beacon-tracker/internal/config"
	"github.com/prn-tf/beacon-tracker/internal/repository"
)

// NewRepositories opens the PostgreSQL pool, runs migrations, and
// returns the full repository bundle.
func NewRepositories(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*repository.Repositories, *DB, error) {
	db, err := NewDB(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}

	repos := &repository.Repositories{
		Issue: NewIssueRepository(db),
		Image: NewImageRepository(db),
		Admin: NewAdminRepository(db),
	}

	return repos, db, nil
}
