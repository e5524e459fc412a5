// Package main is the entry point for the Beacon Tracker server.
// Beacon Tracker is a customer support issue tracking service with
// image attachments and automatic retention cleanup.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/beacon-tracker/internal/auth"
	"github.com/prn-tf/beacon-tracker/internal/cache/memory"
	cacheredis "github.com/prn-tf/beacon-tracker/internal/cache/redis"
	"github.com/prn-tf/beacon-tracker/internal/config"
	"github.com/prn-tf/beacon-tracker/internal/domain"
	"github.com/prn-tf/beacon-tracker/internal/handler"
	"github.com/prn-tf/beacon-tracker/internal/imaging"
	"github.com/prn-tf/beacon-tracker/internal/lock"
	"github.com/prn-tf/beacon-tracker/internal/metrics"
	"github.com/prn-tf/beacon-tracker/internal/repository"
	"github.com/prn-tf/beacon-tracker/internal/repository/postgres"
	"github.com/prn-tf/beacon-tracker/internal/repository/sqlite"
	"github.com/prn-tf/beacon-tracker/internal/scheduler"
	"github.com/prn-tf/beacon-tracker/internal/service"
	"github.com/prn-tf/beacon-tracker/internal/storage"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := newLogger(cfg.Logging)

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("starting Beacon Tracker server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	// Database
	repos, db, err := openRepositories(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	// Cache and cleanup run guard. Redis is optional; without it both
	// fall back to process-local implementations.
	var cache repository.Cache
	var locker lock.Locker
	if cfg.Redis.Enabled {
		client, err := cacheredis.NewClient(ctx, cfg.Redis, logger)
		if err != nil {
			return err
		}
		defer client.Close()
		cache = client
		locker = lock.NewRedisLocker(client)
	} else {
		memCache := memory.NewCache()
		defer memCache.Stop()
		cache = memCache
		locker = lock.NewMemoryLocker()
	}

	// Upload store
	store, err := openUploadStore(ctx, cfg.Uploads, logger)
	if err != nil {
		return err
	}
	if err := store.EnsureReady(ctx); err != nil {
		return err
	}

	// Services
	processor := imaging.NewProcessor(cfg.Uploads, logger)
	issueService := service.NewIssueService(repos.Issue, repos.Image, store, m, logger)
	uploadService := service.NewUploadService(repos.Issue, repos.Image, store, processor, m, logger, cfg.Uploads.MaxFilesPerRequest)
	cleanupService := service.NewCleanupService(repos.Issue, repos.Image, store, locker, m, logger, service.CleanupConfig{
		Retention: cfg.Cleanup.RetentionWindow(),
		DryRun:    cfg.Cleanup.DryRun,
	})
	authService := auth.NewService(repos.Admin, cache, cfg.Auth.SessionTTL, cfg.Auth.BcryptCost, logger)

	// Daily cleanup scheduler
	if cfg.Cleanup.Enabled {
		sched, err := scheduler.New(cfg.Cleanup.Schedule, func(ctx context.Context) {
			if _, err := cleanupService.RunOnce(ctx); err != nil {
				// Already-running is expected when a manual run overlaps
				// the schedule; anything else is a real failure.
				event := logger.Error()
				if errors.Is(err, domain.ErrCleanupAlreadyRunning) {
					event = logger.Info()
				}
				event.Err(err).Msg("scheduled cleanup run did not complete")
			}
		}, logger)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()

		logger.Info().
			Str("schedule", cfg.Cleanup.Schedule).
			Time("next_run", sched.NextRun()).
			Msg("cleanup scheduler enabled")
	}

	// HTTP server
	router := handler.NewRouter(handler.RouterConfig{
		IssueHandler: handler.NewIssueHandler(issueService, uploadService, store, logger),
		AdminHandler: handler.NewAdminHandler(authService, issueService, uploadService, cleanupService, logger),
		Database:     db,
		Metrics:      m,
		MetricsPath:  cfg.Metrics.Path,
		MaxBodySize:  cfg.Server.MaxBodySize,
		Logger:       logger,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info().Msg("server stopped")
	return nil
}

// openRepositories selects the database driver from configuration.
func openRepositories(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*repository.Repositories, repository.DatabaseHealth, error) {
	switch cfg.Driver {
	case "postgres":
		repos, db, err := postgres.NewRepositories(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return repos, db, nil
	default:
		repos, db, err := sqlite.NewRepositories(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return repos, db, nil
	}
}

// openUploadStore selects the upload backend from configuration.
func openUploadStore(ctx context.Context, cfg config.UploadsConfig, logger zerolog.Logger) (storage.UploadStore, error) {
	if cfg.Backend == "s3" {
		return storage.NewS3Store(ctx, cfg.S3, logger)
	}
	return storage.NewFilesystemStore(cfg.Dir, cfg.TempDir, logger), nil
}

// newLogger builds the root logger from configuration.
func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out = os.Stdout
	if cfg.Output == "stderr" {
		out = os.Stderr
	}

	zerolog.TimeFieldFormat = cfg.TimeFormat

	if cfg.Format == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).
			Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
