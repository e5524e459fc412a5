// Package main is the Beacon Tracker operations tool.
// It creates admin accounts and runs retention cleanup from the command
// line, sharing configuration with the server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/prn-tf/beacon-tracker/internal/auth"
	"github.com/prn-tf/beacon-tracker/internal/cache/memory"
	cacheredis "github.com/prn-tf/beacon-tracker/internal/cache/redis"
	"github.com/prn-tf/beacon-tracker/internal/config"
	"github.com/prn-tf/beacon-tracker/internal/lock"
	"github.com/prn-tf/beacon-tracker/internal/repository"
	"github.com/prn-tf/beacon-tracker/internal/repository/postgres"
	"github.com/prn-tf/beacon-tracker/internal/repository/sqlite"
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

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(zerolog.WarnLevel).With().Timestamp().Logger()

	ctx := context.Background()

	var err error
	switch args[0] {
	case "version":
		fmt.Printf("Beacon Tracker Admin Tool\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "create-admin":
		err = runCreateAdmin(ctx, *configPath, args[1:], logger)

	case "cleanup":
		if len(args) < 2 {
			printUsage()
			os.Exit(1)
		}
		switch args[1] {
		case "run":
			err = runCleanup(ctx, *configPath, false, logger)
		case "dry-run":
			err = runCleanup(ctx, *configPath, true, logger)
		case "stats":
			err = runCleanupStats(ctx, *configPath, logger)
		default:
			printUsage()
			os.Exit(1)
		}

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runCreateAdmin creates an admin account, prompting for the password.
func runCreateAdmin(ctx context.Context, configPath string, args []string, logger zerolog.Logger) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: beacon-admin create-admin <username>")
	}
	username := args[0]

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	repos, db, err := openRepositories(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if len(password) == 0 {
		return fmt.Errorf("password must not be empty")
	}

	cache := memory.NewCache()
	defer cache.Stop()

	authService := auth.NewService(repos.Admin, cache, cfg.Auth.SessionTTL, cfg.Auth.BcryptCost, logger)
	admin, err := authService.CreateAdmin(ctx, username, string(password))
	if err != nil {
		return err
	}

	fmt.Printf("Created admin %q (id %d)\n", admin.Username, admin.ID)
	return nil
}

// runCleanup executes one retention cleanup pass.
func runCleanup(ctx context.Context, configPath string, dryRun bool, logger zerolog.Logger) error {
	cleanup, db, closeFn, err := buildCleanup(ctx, configPath, dryRun, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	defer closeFn()

	result, err := cleanup.RunOnce(ctx)
	if err != nil {
		return err
	}

	return printJSON(result)
}

// runCleanupStats reports what the next cleanup run would remove.
func runCleanupStats(ctx context.Context, configPath string, logger zerolog.Logger) error {
	cleanup, db, closeFn, err := buildCleanup(ctx, configPath, false, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	defer closeFn()

	stats, err := cleanup.Stats(ctx)
	if err != nil {
		return err
	}

	return printJSON(stats)
}

// buildCleanup wires a cleanup service from configuration. With Redis
// enabled the run guard is shared with running server instances;
// otherwise a no-op guard is used since the CLI runs alone.
func buildCleanup(ctx context.Context, configPath string, dryRun bool, logger zerolog.Logger) (*service.CleanupService, repository.DatabaseHealth, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	repos, db, err := openRepositories(ctx, cfg.Database, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	closeFn := func() {}
	var locker lock.Locker = lock.NewNoOpLocker()
	if cfg.Redis.Enabled {
		client, err := cacheredis.NewClient(ctx, cfg.Redis, logger)
		if err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		locker = lock.NewRedisLocker(client)
		closeFn = func() { client.Close() }
	}

	store, err := openUploadStore(ctx, cfg.Uploads, logger)
	if err != nil {
		db.Close()
		closeFn()
		return nil, nil, nil, err
	}

	cleanup := service.NewCleanupService(repos.Issue, repos.Image, store, locker, nil, logger, service.CleanupConfig{
		Retention: cfg.Cleanup.RetentionWindow(),
		DryRun:    dryRun || cfg.Cleanup.DryRun,
	})

	return cleanup, db, closeFn, nil
}

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

func openUploadStore(ctx context.Context, cfg config.UploadsConfig, logger zerolog.Logger) (storage.UploadStore, error) {
	if cfg.Backend == "s3" {
		return storage.NewS3Store(ctx, cfg.S3, logger)
	}
	return storage.NewFilesystemStore(cfg.Dir, cfg.TempDir, logger), nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func printUsage() {
	fmt.Println(strings.TrimSpace(`
Beacon Tracker Admin Tool

Usage:
  beacon-admin [-config path] <command> [arguments]

Commands:
  create-admin <username>   Create an admin account (prompts for password)
  cleanup run               Run one retention cleanup pass now
  cleanup dry-run           Show what a cleanup pass would delete
  cleanup stats             Show current cleanup eligibility
  version                   Print version information
  help                      Show this help message

Configuration is read the same way as the server: config file plus
BEACON_-prefixed environment variables.

Examples:
  beacon-admin create-admin ops
  beacon-admin -config /etc/beacon/config.yaml cleanup run
  beacon-admin cleanup stats
`))
}
