package sqlite

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/prn-tf/beacon-tracker/internal/config"
	"github.com/prn-tf/beacon-tracker/internal/repository"
)

// NewRepositories opens the SQLite database, runs migrations, and
// returns the full repository bundle.
func NewRepositories(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*repository.Repositories, *DB, error) {
	dbCfg := DefaultConfig(cfg.Path)
	if cfg.JournalMode != "" {
		dbCfg.JournalMode = cfg.JournalMode
	}
	if cfg.BusyTimeout > 0 {
		dbCfg.BusyTimeout = cfg.BusyTimeout
	}
	if cfg.CacheSize != 0 {
		dbCfg.CacheSize = cfg.CacheSize
	}
	if cfg.SynchronousMode != "" {
		dbCfg.SynchronousMode = cfg.SynchronousMode
	}

	db, err := NewDB(ctx, dbCfg, logger)
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
