// Package main is the Beacon Tracker migration tool.
// The server applies migrations on startup; this tool exists for
// deployments that migrate as a separate release step.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/beacon-tracker/internal/config"
	"github.com/prn-tf/beacon-tracker/internal/repository/postgres"
	"github.com/prn-tf/beacon-tracker/internal/repository/sqlite"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// migrator is the slice of the driver DB types the tool needs.
type migrator interface {
	Migrate(ctx context.Context) error
	MigrationVersion(ctx context.Context) (int, error)
	Close() error
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(zerolog.InfoLevel).With().Timestamp().Logger()

	ctx := context.Background()

	var err error
	switch args[0] {
	case "version":
		fmt.Printf("Beacon Tracker Migration Tool\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "up":
		err = withDB(ctx, *configPath, logger, func(db migrator) error {
			if err := db.Migrate(ctx); err != nil {
				return err
			}
			version, err := db.MigrationVersion(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Database is at migration version %d\n", version)
			return nil
		})

	case "status":
		err = withDB(ctx, *configPath, logger, func(db migrator) error {
			version, err := db.MigrationVersion(ctx)
			if err != nil {
				return err
			}
			if version == 0 {
				fmt.Println("No migrations applied")
			} else {
				fmt.Printf("Current migration version: %d\n", version)
			}
			return nil
		})

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

// withDB opens the configured database driver and runs fn against it.
func withDB(ctx context.Context, configPath string, logger zerolog.Logger, fn func(db migrator) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	var db migrator
	switch cfg.Database.Driver {
	case "postgres":
		db, err = postgres.NewDB(ctx, cfg.Database, logger)
	default:
		db, err = sqlite.NewDB(ctx, sqlite.DefaultConfig(cfg.Database.Path), logger)
	}
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(db)
}

func printUsage() {
	fmt.Println(strings.TrimSpace(`
Beacon Tracker Migration Tool

Usage:
  beacon-migrate [-config path] <command>

Commands:
  up        Apply pending migrations
  status    Show the current migration version
  version   Print version information
  help      Show this help message

The database driver and connection settings come from the config file
and BEACON_-prefixed environment variables, the same as the server.

Examples:
  beacon-migrate up
  beacon-migrate -config /etc/beacon/config.yaml status
  BEACON_DATABASE_DRIVER=postgres beacon-migrate up
`))
}
