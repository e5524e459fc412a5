package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker_AcquireRelease(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	acquired, err := locker.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)

	// Second acquire on the same key fails while held.
	acquired, err = locker.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, acquired)

	held, err := locker.IsHeld(ctx, "k")
	require.NoError(t, err)
	assert.True(t, held)

	released, err := locker.Release(ctx, "k")
	require.NoError(t, err)
	assert.True(t, released)

	// After release the key is free again.
	acquired, err = locker.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestMemoryLocker_ReleaseUnheld(t *testing.T) {
	locker := NewMemoryLocker()

	released, err := locker.Release(context.Background(), "never-held")
	require.NoError(t, err)
	assert.False(t, released)
}

func TestMemoryLocker_TTLExpiry(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	acquired, err := locker.Acquire(ctx, "k", 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, acquired)

	time.Sleep(20 * time.Millisecond)

	// An expired lock can be taken over.
	acquired, err = locker.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestMemoryLocker_Extend(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	_, err := locker.Acquire(ctx, "k", 50*time.Millisecond)
	require.NoError(t, err)

	extended, err := locker.Extend(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, extended)

	// Extending an unheld lock fails.
	extended, err = locker.Extend(ctx, "other", time.Minute)
	require.NoError(t, err)
	assert.False(t, extended)
}

func TestMemoryLocker_AcquireWithRetry(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	// Hold the lock briefly, then let the retry loop win.
	acquired, err := locker.Acquire(ctx, "k", 30*time.Millisecond)
	require.NoError(t, err)
	require.True(t, acquired)

	acquired, err = locker.AcquireWithRetry(ctx, "k", time.Minute, 10, 10*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestMemoryLocker_AcquireWithRetry_GivesUp(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	_, err := locker.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)

	acquired, err := locker.AcquireWithRetry(ctx, "k", time.Minute, 2, time.Millisecond)
	require.NoError(t, err)
	assert.False(t, acquired)
}

func TestMemoryLocker_CancelledContext(t *testing.T) {
	locker := NewMemoryLocker()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := locker.Acquire(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNoOpLocker_AlwaysAcquires(t *testing.T) {
	locker := NewNoOpLocker()
	ctx := context.Background()

	acquired, err := locker.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)

	// Even "concurrent" acquires succeed; this locker is for callers
	// that run alone by construction.
	acquired, err = locker.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestLockKeys_CleanupRun(t *testing.T) {
	assert.Equal(t, "lock:cleanup:run", Keys.CleanupRun())
}
