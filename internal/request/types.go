// Package request implements the access-request lifecycle: creation against
// the software catalog, the one-shot Pending→Approved/Rejected transition,
// and the append-only decision history.
package request

import (
	"errors"
	"strings"
	"time"

	"accessdesk.org/internal/auth"
	"accessdesk.org/internal/catalog"
)

var (
	ErrNotFound          = errors.New("request: not found")
	ErrInvalidStatus     = errors.New("request: invalid status")
	ErrInvalidAccessType = errors.New("request: invalid access type")
	ErrValidation        = errors.New("request: invalid input")
	ErrAlreadyDecided    = errors.New("request: already decided")
)

// Status is the lifecycle state of an access request. Pending is the sole
// initial state; Approved and Rejected are terminal.
type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

// Valid reports whether the status is a member of the closed set.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether the status ends the lifecycle.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// ParseStatus normalizes free-form input into a Status.
func ParseStatus(raw string) (Status, error) {
	raw = strings.TrimSpace(raw)
	for _, s := range []Status{StatusPending, StatusApproved, StatusRejected} {
		if strings.EqualFold(raw, string(s)) {
			return s, nil
		}
	}
	return "", ErrInvalidStatus
}

// AccessRequest is a pending or decided request for software access.
// User and Software are populated by listing queries that join them.
type AccessRequest struct {
	ID         string              `json:"id"`
	UserID     string              `json:"user_id"`
	SoftwareID string              `json:"software_id"`
	AccessType catalog.AccessLevel `json:"access_type"`
	Reason     string              `json:"reason"`
	Status     Status              `json:"status"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  *time.Time          `json:"updated_at,omitempty"`

	User     *auth.User        `json:"user,omitempty"`
	Software *catalog.Software `json:"software,omitempty"`
}

// HistoryRecord documents one status transition. Records are append-only:
// never mutated or deleted once written.
type HistoryRecord struct {
	ID          string    `json:"id"`
	RequestID   string    `json:"request_id"`
	ChangedByID string    `json:"changed_by_id"`
	OldStatus   Status    `json:"old_status"`
	NewStatus   Status    `json:"new_status"`
	Comment     *string   `json:"comment"`
	ChangedAt   time.Time `json:"changed_at"`

	ChangedBy *auth.User `json:"changed_by,omitempty"`
}

// Decision pairs the updated request with the history record produced by a
// transition.
type Decision struct {
	Request AccessRequest `json:"request"`
	History HistoryRecord `json:"history"`
}
