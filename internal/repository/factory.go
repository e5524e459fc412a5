// Package repository provides the data access layer for Beacon Tracker.
// This file contains the repository bundle returned by the driver
// packages and the health view of a database connection.
package repository

import (
	"context"
)

// Repositories holds all repository instances.
type Repositories struct {
	Issue IssueRepository
	Image ImageRepository
	Admin AdminRepository
}

// DatabaseHealth is an interface for database health checks.
// Both driver DB wrappers satisfy it; the health endpoint and the
// shutdown path only need these three methods.
type DatabaseHealth interface {
	Ping(ctx context.Context) error
	Health(ctx context.Context) error
	Close() error
}
