package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserService provides profile self-service and admin user management.
// Role and active-status mutations carry a self-action guard: an admin can
// never change their own role or deactivate themselves.
type UserService struct {
	store UserStore
}

// NewUserService constructs UserService.
func NewUserService(store UserStore) (*UserService, error) {
	if store == nil {
		return nil, errors.New("auth: user store is required")
	}
	return &UserService{store: store}, nil
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, userID string) (*User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	return s.store.Find(ctx, userID)
}

// ProfileUpdate is the subset of fields a user may change on their own
// account. Password, role, active flag and refresh token are deliberately
// not reachable from here.
type ProfileUpdate struct {
	Username *string
	Email    *string
}

// UpdateProfile changes the caller's own username and/or email, enforcing
// uniqueness of both.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	var stored UserUpdate
	if upd.Username != nil {
		username := strings.TrimSpace(*upd.Username)
		if len(username) < minUsernameLen {
			return nil, fmt.Errorf("%w: username must be at least %d characters long", ErrInvalidInput, minUsernameLen)
		}
		if err := s.ensureFree(ctx, username, userID, "username already in use"); err != nil {
			return nil, err
		}
		stored.Username = &username
	}
	if upd.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*upd.Email))
		if email == "" || !strings.Contains(email, "@") {
			return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
		}
		if err := s.ensureFree(ctx, email, userID, "email already in use"); err != nil {
			return nil, err
		}
		stored.Email = &email
	}
	if stored.Username == nil && stored.Email == nil {
		return s.store.Find(ctx, userID)
	}
	return s.store.Update(ctx, userID, stored)
}

// UpdateRole sets a user's role. The actor must not be the target.
func (s *UserService) UpdateRole(ctx context.Context, userID string, role Role, actorID string) (*User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	if userID == actorID {
		return nil, fmt.Errorf("%w: cannot modify your own role", ErrForbidden)
	}
	if _, err := s.store.Find(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.Update(ctx, userID, UserUpdate{Role: &role})
}

// SetActive toggles a user's active flag. The actor must not be the target.
// Deactivation also revokes the stored refresh token so the account cannot
// mint new access tokens.
func (s *UserService) SetActive(ctx context.Context, userID string, active bool, actorID string) (*User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if userID == actorID {
		return nil, fmt.Errorf("%w: cannot modify your own status", ErrForbidden)
	}
	if _, err := s.store.Find(ctx, userID); err != nil {
		return nil, err
	}
	user, err := s.store.Update(ctx, userID, UserUpdate{IsActive: &active})
	if err != nil {
		return nil, err
	}
	if !active {
		if err := s.store.UpdateRefreshToken(ctx, userID, nil); err != nil {
			return nil, err
		}
	}
	return user, nil
}

// List returns all users.
func (s *UserService) List(ctx context.Context) ([]*User, error) {
	return s.store.List(ctx)
}

// ListByRole returns users holding the given role.
func (s *UserService) ListByRole(ctx context.Context, role Role) ([]*User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	return s.store.ListByRole(ctx, role)
}

// Search matches users whose username or email contains the query.
func (s *UserService) Search(ctx context.Context, query string) ([]*User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query is required", ErrInvalidInput)
	}
	return s.store.Search(ctx, query)
}

// Stats aggregates totals and the per-role distribution.
func (s *UserService) Stats(ctx context.Context) (Statistics, error) {
	users, err := s.store.List(ctx)
	if err != nil {
		return Statistics{}, err
	}
	byRole, err := s.store.CountByRole(ctx)
	if err != nil {
		return Statistics{}, err
	}
	stats := Statistics{RoleDistribution: byRole}
	for _, u := range users {
		stats.Total++
		if u.IsActive {
			stats.Active++
		} else {
			stats.Inactive++
		}
	}
	return stats, nil
}

func (s *UserService) ensureFree(ctx context.Context, usernameOrEmail, selfID, msg string) error {
	existing, err := s.store.FindByUsernameOrEmail(ctx, usernameOrEmail)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if existing.ID != selfID {
		return fmt.Errorf("%w: %s", ErrConflict, msg)
	}
	return nil
}
