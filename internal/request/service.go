package request

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"accessdesk.org/internal/catalog"
)

const minReasonLen = 10

// Service is the access-request lifecycle component. It owns no state: all
// dependencies are injected and all durable state lives in the Store.
type Service struct {
	store    Store
	users    UserDirectory
	software Catalog
}

// NewService constructs Service.
func NewService(store Store, users UserDirectory, software Catalog) (*Service, error) {
	if store == nil || users == nil || software == nil {
		return nil, errors.New("request: store, user directory and catalog are required")
	}
	return &Service{store: store, users: users, software: software}, nil
}

// Create files a new access request with status Pending. The access type
// must be one of the referenced software's levels; the rejection message
// enumerates the allowed set. No history record is written for the initial
// state: history begins at the first transition.
func (s *Service) Create(ctx context.Context, userID, softwareID string, accessType catalog.AccessLevel, reason string) (AccessRequest, error) {
	userID = strings.TrimSpace(userID)
	softwareID = strings.TrimSpace(softwareID)
	if userID == "" || softwareID == "" {
		return AccessRequest{}, fmt.Errorf("%w: user and software are required", ErrValidation)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return AccessRequest{}, fmt.Errorf("%w: reason is required", ErrValidation)
	}
	if len(reason) < minReasonLen {
		return AccessRequest{}, fmt.Errorf("%w: reason must be at least %d characters long", ErrValidation, minReasonLen)
	}
	if !accessType.Valid() {
		return AccessRequest{}, fmt.Errorf("%w: access type must be one of %s", ErrInvalidAccessType, catalog.JoinLevels(catalog.AccessLevels()))
	}

	if _, err := s.users.Find(ctx, userID); err != nil {
		return AccessRequest{}, fmt.Errorf("%w: user not found", ErrNotFound)
	}
	sw, err := s.software.Find(ctx, softwareID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return AccessRequest{}, fmt.Errorf("%w: software not found", ErrNotFound)
		}
		return AccessRequest{}, err
	}
	if !sw.Allows(accessType) {
		return AccessRequest{}, fmt.Errorf("%w. Available types: %s", ErrInvalidAccessType, catalog.JoinLevels(sw.AccessLevels))
	}

	req := AccessRequest{
		UserID:     userID,
		SoftwareID: softwareID,
		AccessType: accessType,
		Reason:     reason,
		Status:     StatusPending,
	}
	if err := s.store.Create(ctx, &req); err != nil {
		return AccessRequest{}, err
	}
	return req, nil
}

// Transition moves a Pending request into Approved or Rejected and appends
// the matching history record as one atomic unit. Requests that have already
// been decided are rejected with ErrAlreadyDecided; the role check on the
// actor happens at the HTTP gate before this is invoked.
func (s *Service) Transition(ctx context.Context, requestID, actorID string, newStatus Status, comment *string) (Decision, error) {
	requestID = strings.TrimSpace(requestID)
	actorID = strings.TrimSpace(actorID)
	if requestID == "" || actorID == "" {
		return Decision{}, fmt.Errorf("%w: request and actor are required", ErrValidation)
	}
	if newStatus != StatusApproved && newStatus != StatusRejected {
		return Decision{}, fmt.Errorf("%w: status must be %s or %s", ErrInvalidStatus, StatusApproved, StatusRejected)
	}
	if comment != nil {
		trimmed := strings.TrimSpace(*comment)
		if trimmed == "" {
			comment = nil
		} else {
			comment = &trimmed
		}
	}
	return s.store.Transition(ctx, requestID, actorID, newStatus, comment)
}

// Get returns a single request by id.
func (s *Service) Get(ctx context.Context, requestID string) (AccessRequest, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return AccessRequest{}, fmt.Errorf("%w: request is required", ErrValidation)
	}
	return s.store.Find(ctx, requestID)
}

// ListForUser returns the user's requests newest-first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]AccessRequest, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user is required", ErrValidation)
	}
	return s.store.ListByUser(ctx, userID)
}

// ListPending returns all Pending requests oldest-first.
func (s *Service) ListPending(ctx context.Context) ([]AccessRequest, error) {
	return s.store.ListPending(ctx)
}

// History returns a request's decision trail newest-first.
func (s *Service) History(ctx context.Context, requestID string) ([]HistoryRecord, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return nil, fmt.Errorf("%w: request is required", ErrValidation)
	}
	return s.store.History(ctx, requestID)
}
