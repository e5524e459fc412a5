package domain

import (
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeExtension(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{"jpg", "photo.jpg", ".jpg"},
		{"jpeg", "photo.jpeg", ".jpeg"},
		{"png", "screenshot.png", ".png"},
		{"gif", "anim.gif", ".gif"},
		{"webp", "modern.webp", ".webp"},
		{"uppercase", "PHOTO.JPG", ".jpg"},
		{"no extension", "photo", ".jpg"},
		{"unknown extension", "payload.exe", ".jpg"},
		{"only final extension counts", "photo.png.svg", ".jpg"},
		{"empty", "", ".jpg"},
		{"traversal attempt", "../../etc/passwd", ".jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeExtension(tt.filename))
		})
	}
}

func TestNewImageFilename(t *testing.T) {
	now := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)

	filename := NewImageFilename(42, "screenshot.png", now)

	assert.True(t, strings.HasPrefix(filename, fmt.Sprintf("issue_42_%d_", now.UnixMilli())))
	assert.True(t, strings.HasSuffix(filename, ".png"))

	// The random part sits between the last underscore and the extension.
	trimmed := strings.TrimSuffix(filename, ".png")
	idx := strings.LastIndex(trimmed, "_")
	require.Greater(t, idx, 0)
	n, err := strconv.Atoi(trimmed[idx+1:])
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 0)
	assert.Less(t, n, 1000)
}

func TestNewImageFilename_SanitizesUserInput(t *testing.T) {
	now := time.Now()

	filename := NewImageFilename(7, "../../../evil.sh", now)

	assert.NotContains(t, filename, "/")
	assert.NotContains(t, filename, "..")
	assert.True(t, strings.HasSuffix(filename, ".jpg"))
}
