// Package domain contains the core business entities for Beacon Tracker.
package domain

import (
	"fmt"
	"math/rand"
	"net/mail"
	"time"
)

// Status is the lifecycle state of an issue.
type Status string

// Issue statuses. Completed is the only terminal status; issues become
// eligible for retention cleanup once terminal and older than the
// retention window.
const (
	StatusPending      Status = "pending"
	StatusInProgress   Status = "in_progress"
	StatusContactAdmin Status = "contact_admin"
	StatusCompleted    Status = "completed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusContactAdmin, StatusCompleted:
		return true
	}
	return false
}

// Terminal reports whether an issue in this status can be deleted.
func (s Status) Terminal() bool {
	return s == StatusCompleted
}

// ProblemType categorizes a customer report.
type ProblemType string

// Supported problem types.
const (
	ProblemYoutubePremium  ProblemType = "youtube_premium"
	ProblemFamilyPlan      ProblemType = "family_plan"
	ProblemEmailNotWorking ProblemType = "email_not_working"
)

// ProblemTypes lists all supported problem types in display order.
func ProblemTypes() []ProblemType {
	return []ProblemType{ProblemYoutubePremium, ProblemFamilyPlan, ProblemEmailNotWorking}
}

// Valid reports whether p is a known problem type.
func (p ProblemType) Valid() bool {
	switch p {
	case ProblemYoutubePremium, ProblemFamilyPlan, ProblemEmailNotWorking:
		return true
	}
	return false
}

// Issue represents a customer-submitted problem report.
type Issue struct {
	// ID is the internal numeric identifier.
	ID int64 `json:"id"`

	// TrackingCode is the unique customer-facing identifier,
	// distinct from the internal ID.
	TrackingCode string `json:"tracking_code"`

	// CustomerLineName is the customer's LINE display name.
	CustomerLineName string `json:"customer_line_name"`

	// Emails are the contact addresses supplied with the report.
	Emails []string `json:"emails"`

	ProblemType        ProblemType `json:"problem_type"`
	ProblemDescription string      `json:"problem_description"`

	Status        Status `json:"status"`
	AdminResponse string `json:"admin_response,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Images are loaded on demand; nil means not loaded.
	Images []*Image `json:"images,omitempty"`
}

// CanDelete reports whether the issue may be deleted manually.
// Only terminal issues are deletable; the retention engine applies the
// same rule plus the age window.
func (i *Issue) CanDelete() bool {
	return i.Status.Terminal()
}

// StatusChange records a single status transition of an issue.
type StatusChange struct {
	ID             int64     `json:"id"`
	IssueID        int64     `json:"issue_id"`
	PreviousStatus Status    `json:"previous_status"`
	NewStatus      Status    `json:"new_status"`
	ChangedBy      string    `json:"changed_by"`
	ChangedAt      time.Time `json:"changed_at"`
}

// Description length bounds for issue validation.
const (
	MinDescriptionLen = 10
	MaxDescriptionLen = 5000
	MaxLineNameLen    = 255
)

// ValidateNewIssue checks the fields of an issue being created.
// Returns the first violated rule as a domain error.
func ValidateNewIssue(lineName string, emails []string, problemType ProblemType, description string) error {
	if lineName == "" {
		return NewDomainError(ErrInvalidIssueInput, "customer line name is required", "")
	}
	if len(lineName) > MaxLineNameLen {
		return NewDomainError(ErrInvalidIssueInput, fmt.Sprintf("customer line name exceeds %d characters", MaxLineNameLen), "")
	}
	if len(emails) == 0 {
		return NewDomainError(ErrInvalidIssueInput, "at least one email is required", "")
	}
	for _, e := range emails {
		if _, err := mail.ParseAddress(e); err != nil {
			return NewDomainError(ErrInvalidIssueInput, "invalid email address", e)
		}
	}
	if !problemType.Valid() {
		return NewDomainError(ErrInvalidIssueInput, "unknown problem type", string(problemType))
	}
	if n := len(description); n < MinDescriptionLen || n > MaxDescriptionLen {
		return NewDomainError(ErrInvalidIssueInput,
			fmt.Sprintf("description must be between %d and %d characters", MinDescriptionLen, MaxDescriptionLen), "")
	}
	return nil
}

// TrackingCodePrefix is prepended to every generated tracking code.
const TrackingCodePrefix = "OAA"

// NewTrackingCode generates a tracking code candidate:
// prefix + last 6 digits of the unix-millisecond timestamp + 3 random
// digits. Uniqueness is not guaranteed here; callers must check the
// repository and regenerate on collision.
func NewTrackingCode(now time.Time) string {
	millis := fmt.Sprintf("%d", now.UnixMilli())
	if len(millis) > 6 {
		millis = millis[len(millis)-6:]
	}
	return fmt.Sprintf("%s%s%03d", TrackingCodePrefix, millis, rand.Intn(1000))
}
