package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker is a process-local Locker for single-node deployments.
// Expired entries are reclaimed lazily on the next access to their key;
// with a handful of well-known keys there is nothing to sweep.
type MemoryLocker struct {
	mu     sync.Mutex
	expiry map[string]time.Time
}

// NewMemoryLocker creates a new in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		expiry: make(map[string]time.Time),
	}
}

// Acquire takes the lock if it is free or expired.
func (m *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if deadline, held := m.expiry[key]; held && now.Before(deadline) {
		return false, nil
	}

	m.expiry[key] = now.Add(ttl)
	return true, nil
}

// AcquireWithRetry retries Acquire with a fixed delay between attempts.
func (m *MemoryLocker) AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error) {
	for attempt := 0; ; attempt++ {
		acquired, err := m.Acquire(ctx, key, ttl)
		if err != nil || acquired {
			return acquired, err
		}
		if attempt >= maxRetries {
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
}

// Release frees the lock.
func (m *MemoryLocker) Release(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, held := m.expiry[key]; !held {
		return false, nil
	}
	delete(m.expiry, key)
	return true, nil
}

// Extend pushes out the expiry of a held lock.
func (m *MemoryLocker) Extend(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	deadline, held := m.expiry[key]
	if !held || time.Now().After(deadline) {
		delete(m.expiry, key)
		return false, nil
	}

	m.expiry[key] = time.Now().Add(ttl)
	return true, nil
}

// IsHeld reports whether the lock is currently held.
func (m *MemoryLocker) IsHeld(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	deadline, held := m.expiry[key]
	if !held {
		return false, nil
	}
	if time.Now().After(deadline) {
		delete(m.expiry, key)
		return false, nil
	}
	return true, nil
}

var _ Locker = (*MemoryLocker)(nil)
