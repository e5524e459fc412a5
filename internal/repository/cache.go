// Package repository defines data access interfaces for Beacon Tracker.
package repository

import (
	"context"
	"time"
)

// =============================================================================
// Cache Interface
// =============================================================================

// Cache is the key/value store backing admin sessions. Multi-instance
// deployments point it at Redis; a single node uses the in-memory
// implementation.
type Cache interface {
	// Get retrieves a value by key, or ErrCacheMiss when absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value. A ttl of 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX stores a value only when the key is absent.
	// Returns whether the value was stored.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Delete removes a value by key.
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists.
	Exists(ctx context.Context, key string) (bool, error)

	// Expire sets or updates the TTL for a key.
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// CacheError represents a cache error type.
type CacheError string

const (
	// ErrCacheMiss indicates the key was not found in cache.
	ErrCacheMiss CacheError = "cache miss"
)

func (e CacheError) Error() string {
	return string(e)
}

// =============================================================================
// Distributed Lock Interface
// =============================================================================

// DistributedLock coordinates the cleanup run guard across server
// instances. Locks carry a TTL so a crashed holder cannot block
// cleanup forever. The lock package adapts implementations of this
// interface to its Locker.
type DistributedLock interface {
	// Acquire takes the lock if it is free or expired.
	// Returns false without error when another process holds it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// AcquireWithRetry retries Acquire up to maxRetries times, waiting
	// retryDelay between attempts.
	AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error)

	// Release frees the lock. Returns false when this process did not
	// hold it.
	Release(ctx context.Context, key string) (bool, error)

	// Extend pushes out the expiry of a held lock.
	// Returns false when the lock is not held by this process anymore.
	Extend(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsHeld reports whether any process currently holds the lock.
	IsHeld(ctx context.Context, key string) (bool, error)
}

// =============================================================================
// Common Keys
// =============================================================================

// CacheKey generates cache keys for common scenarios.
type CacheKey struct{}

// Session returns the cache key for an admin session token.
func (CacheKey) Session(token string) string {
	return "cache:session:" + token
}
