package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Unwrap(t *testing.T) {
	err := NewDomainError(ErrIssueNotFound, "lookup failed", "OAA123456789")

	assert.True(t, errors.Is(err, ErrIssueNotFound))
	assert.False(t, errors.Is(err, ErrImageNotFound))

	var domainErr *DomainError
	assert.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "OAA123456789", domainErr.Resource)
}

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *DomainError
		want string
	}{
		{
			name: "with resource",
			err:  NewDomainError(ErrImageNotFound, "no such image", "issue_1_2_3.jpg"),
			want: "image not found: no such image (issue_1_2_3.jpg)",
		},
		{
			name: "message only",
			err:  NewDomainError(ErrInvalidStatus, "unknown status", ""),
			want: "invalid issue status: unknown status",
		},
		{
			name: "bare",
			err:  NewDomainError(ErrNoFiles, "", ""),
			want: "no files in request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestWrapError(t *testing.T) {
	assert.Nil(t, WrapError(nil, "ignored"))

	base := errors.New("disk full")
	wrapped := WrapError(base, "failed to store image")
	assert.True(t, errors.Is(wrapped, base))

	// Already-wrapped errors pass through unchanged.
	already := NewDomainError(ErrPayloadTooLarge, "too big", "")
	assert.Equal(t, error(already), WrapError(already, "other context"))
}
