// Package lock guards operations that must not run concurrently.
// Its one consumer is the retention cleanup: a run takes the CleanupRun
// key before touching files so a manual trigger cannot race the
// scheduled one. Single-node deployments use the in-process locker,
// multi-instance deployments the Redis-backed one.
package lock

import (
	"context"
	"time"
)

// Locker is a TTL lock. Locks expire on their own so a crashed holder
// cannot wedge the system; TTLs should comfortably exceed the guarded
// operation's worst-case duration.
type Locker interface {
	// Acquire takes the lock if it is free or expired.
	// Returns false without error when another holder has it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// AcquireWithRetry retries Acquire up to maxRetries times, waiting
	// retryDelay between attempts.
	AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error)

	// Release frees the lock. Returns false when it was not held.
	Release(ctx context.Context, key string) (bool, error)

	// Extend pushes out the expiry of a held lock.
	// Returns false when the lock is not held anymore.
	Extend(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsHeld reports whether the lock is currently held.
	IsHeld(ctx context.Context, key string) (bool, error)
}

// Keys holds the well-known lock keys.
var Keys = lockKeys{}

type lockKeys struct{}

// CleanupRun returns the lock key guarding the retention cleanup run.
// Only one cleanup pass may execute at a time across all instances.
func (lockKeys) CleanupRun() string {
	return "lock:cleanup:run"
}
