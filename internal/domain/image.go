// Package domain contains the core business entities for Beacon Tracker.
package domain

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"time"
)

// Image represents a stored image attached to an issue.
// An issue exclusively owns its images: deleting the issue row cascades
// to its image rows, and the retention engine deletes the files first.
type Image struct {
	// ID is the internal numeric identifier.
	ID int64 `json:"id"`

	// IssueID is the owning issue.
	IssueID int64 `json:"issue_id"`

	// Path is the filename within the upload directory. It is always
	// generated server-side (never derived from user input) so it can
	// be joined to the upload directory without traversal checks.
	Path string `json:"path"`

	// Size is the stored (post-processing) size in bytes.
	Size int64 `json:"size"`

	// MimeType is the stored MIME type. Always image/jpeg after
	// normalization.
	MimeType string `json:"mime_type"`

	// AdminImage distinguishes admin-attached images from
	// customer-submitted ones.
	AdminImage bool `json:"is_admin_image"`

	CreatedAt time.Time `json:"created_at"`
}

// allowedExtensions are the extensions carried over from the original
// filename. Anything else falls back to ".jpg".
var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// SanitizeExtension extracts a safe file extension from an uploaded
// filename. Unknown or missing extensions become ".jpg", which matches
// the normalized storage format.
func SanitizeExtension(originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !allowedExtensions[ext] {
		return ".jpg"
	}
	return ext
}

// NewImageFilename generates an upload filename for an issue image:
//
//	issue_{issueID}_{unixMillis}_{random}{ext}
//
// The timestamp plus random suffix makes collisions negligible without
// any coordination; the extension is sanitized from the original name.
func NewImageFilename(issueID int64, originalName string, now time.Time) string {
	return fmt.Sprintf("issue_%d_%d_%d%s",
		issueID, now.UnixMilli(), rand.Intn(1000), SanitizeExtension(originalName))
}
