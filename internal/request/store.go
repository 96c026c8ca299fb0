package request

import (
	"context"

	"accessdesk.org/internal/auth"
	"accessdesk.org/internal/catalog"
)

// Store describes the persistence operations the lifecycle requires.
//
// Transition must be atomic: the status update and the history insert either
// both become visible or neither does, and concurrent transitions against
// the same request must serialize so only the first one out of Pending
// succeeds.
type Store interface {
	Create(ctx context.Context, r *AccessRequest) error
	Find(ctx context.Context, id string) (AccessRequest, error)
	// ListByUser returns the user's requests newest-first, software joined.
	ListByUser(ctx context.Context, userID string) ([]AccessRequest, error)
	// ListPending returns Pending requests oldest-first (first-in-first-out
	// triage for approvers), user and software joined.
	ListPending(ctx context.Context) ([]AccessRequest, error)
	Transition(ctx context.Context, requestID, actorID string, newStatus Status, comment *string) (Decision, error)
	// History returns a request's transitions newest-first, acting user joined.
	History(ctx context.Context, requestID string) ([]HistoryRecord, error)
}

// UserDirectory is the read-only slice of the identity store the lifecycle
// needs: request creation verifies the requester exists.
type UserDirectory interface {
	Find(ctx context.Context, id string) (*auth.User, error)
}

// Catalog is the read-only slice of the software catalog the lifecycle
// needs: request creation validates the access type against the entry.
type Catalog interface {
	Find(ctx context.Context, id string) (catalog.Software, error)
}
