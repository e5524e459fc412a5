// Package memory provides an in-process repository.Cache.
// It backs admin sessions on single-node deployments where running
// Redis would be overkill.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/prn-tf/beacon-tracker/internal/repository"
)

// sweepInterval is how often the expiry sweep runs. Session tokens are
// the dominant tenant, so a slow sweep is fine; Get and SetNX treat
// expired entries as absent regardless.
const sweepInterval = time.Minute

// Cache implements repository.Cache on a mutex-guarded map.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	stopCh  chan struct{}
	stopped bool
}

type entry struct {
	value    []byte
	deadline time.Time // zero means no expiry
}

func (e entry) expired() bool {
	return !e.deadline.IsZero() && time.Now().After(e.deadline)
}

// NewCache creates the cache and starts its expiry sweep.
func NewCache() *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		stopCh:  make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

func (c *Cache) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		if e.expired() {
			delete(c.entries, key)
		}
	}
}

// Stop terminates the expiry sweep. Safe to call more than once.
func (c *Cache) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.stopped {
		close(c.stopCh)
		c.stopped = true
	}
}

// Get retrieves a value by key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || e.expired() {
		return nil, repository.ErrCacheMiss
	}

	// Callers get their own copy; the stored slice stays immutable.
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set stores a value. A ttl of 0 means the value does not expire.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = newEntry(value, ttl)
	return nil
}

// SetNX stores a value only when the key is absent or expired.
func (c *Cache) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok && !e.expired() {
		return false, nil
	}

	c.entries[key] = newEntry(value, ttl)
	return true, nil
}

func newEntry(value []byte, ttl time.Duration) entry {
	stored := make([]byte, len(value))
	copy(stored, value)

	e := entry{value: stored}
	if ttl > 0 {
		e.deadline = time.Now().Add(ttl)
	}
	return e
}

// Delete removes a value by key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return nil
}

// Exists checks if a key exists and has not expired.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	return ok && !e.expired(), nil
}

// Expire sets or updates the TTL for a key. A ttl of 0 removes the
// expiry.
func (c *Cache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil
	}

	if ttl > 0 {
		e.deadline = time.Now().Add(ttl)
	} else {
		e.deadline = time.Time{}
	}
	c.entries[key] = e

	return nil
}

var _ repository.Cache = (*Cache)(nil)
