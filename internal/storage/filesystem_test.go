package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *FilesystemStore {
	t.Helper()
	store := NewFilesystemStore(t.TempDir(), "", zerolog.Nop())
	require.NoError(t, store.EnsureReady(context.Background()))
	return store
}

func TestFilesystemStore_WriteAndOpen(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	content := []byte("jpeg bytes here")
	written, err := store.Write(ctx, "issue_1_1700000000000_123.jpg", bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), written)

	rc, err := store.Open(ctx, "issue_1_1700000000000_123.jpg")
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestFilesystemStore_OpenMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Open(context.Background(), "nope.jpg")
	assert.Error(t, err)
}

func TestFilesystemStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Write(ctx, "a.jpg", strings.NewReader("data"))
	require.NoError(t, err)

	outcome, err := store.Delete(ctx, "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, Deleted, outcome)

	// Second delete reports the file as already gone, not an error.
	outcome, err = store.Delete(ctx, "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, AlreadyAbsent, outcome)
}

func TestFilesystemStore_Exists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	exists, err := store.Exists(ctx, "a.jpg")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.Write(ctx, "a.jpg", strings.NewReader("data"))
	require.NoError(t, err)

	exists, err = store.Exists(ctx, "a.jpg")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestFilesystemStore_ListSkipsTempDir(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Write(ctx, "a.jpg", strings.NewReader("a"))
	require.NoError(t, err)
	_, err = store.Write(ctx, "b.jpg", strings.NewReader("b"))
	require.NoError(t, err)

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.jpg", "b.jpg"}, names)

	// The staging directory must never appear in listings.
	for _, name := range names {
		assert.NotEqual(t, ".tmp", name)
	}
}

func TestFilesystemStore_CancelledContext(t *testing.T) {
	store := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Write(ctx, "a.jpg", strings.NewReader("data"))
	assert.ErrorIs(t, err, context.Canceled)

	_, err = store.List(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
