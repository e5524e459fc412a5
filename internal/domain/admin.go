// Package domain contains the core business entities for Beacon Tracker.
package domain

import "time"

// Admin represents an administrator account.
// Passwords are stored as bcrypt hashes; authentication issues an
// opaque session token kept in the cache layer.
type Admin struct {
	ID int64 `json:"id"`

	Username string `json:"username"`

	// PasswordHash is the bcrypt hash of the password.
	// Never serialized in API responses.
	PasswordHash string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
}
