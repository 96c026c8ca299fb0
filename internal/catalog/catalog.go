// Package catalog maintains the software entries employees can request
// access to, each with the set of access levels it supports.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound     = errors.New("catalog: software not found")
	ErrConflict     = errors.New("catalog: already exists")
	ErrInvalidInput = errors.New("catalog: invalid input")
)

// AccessLevel is the granularity at which software access can be requested.
type AccessLevel string

const (
	AccessRead  AccessLevel = "Read"
	AccessWrite AccessLevel = "Write"
	AccessAdmin AccessLevel = "Admin"
)

// AccessLevels lists all valid levels in a stable order.
func AccessLevels() []AccessLevel {
	return []AccessLevel{AccessRead, AccessWrite, AccessAdmin}
}

// Valid reports whether the level is a member of the closed set.
func (l AccessLevel) Valid() bool {
	switch l {
	case AccessRead, AccessWrite, AccessAdmin:
		return true
	}
	return false
}

// ParseAccessLevel normalizes free-form input into an AccessLevel.
func ParseAccessLevel(s string) (AccessLevel, error) {
	s = strings.TrimSpace(s)
	for _, l := range AccessLevels() {
		if strings.EqualFold(s, string(l)) {
			return l, nil
		}
	}
	return "", fmt.Errorf("%w: unknown access level %q", ErrInvalidInput, s)
}

// JoinLevels renders a level set for error messages and storage,
// e.g. "Read, Write".
func JoinLevels(levels []AccessLevel) string {
	parts := make([]string, len(levels))
	for i, l := range levels {
		parts[i] = string(l)
	}
	return strings.Join(parts, ", ")
}

// Software is a catalog entry. AccessLevels is always a non-empty subset of
// {Read, Write, Admin}.
type Software struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	AccessLevels []AccessLevel `json:"access_levels"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Allows reports whether the software supports the given access level.
func (s Software) Allows(level AccessLevel) bool {
	for _, l := range s.AccessLevels {
		if l == level {
			return true
		}
	}
	return false
}

// SoftwareUpdate describes a partial mutation. Nil fields are left untouched.
type SoftwareUpdate struct {
	Name         *string
	Description  *string
	AccessLevels []AccessLevel
}

// Store describes the persistence operations the catalog requires.
type Store interface {
	Create(ctx context.Context, sw *Software) error
	Find(ctx context.Context, id string) (Software, error)
	FindByName(ctx context.Context, name string) (Software, error)
	List(ctx context.Context) ([]Software, error)
	Update(ctx context.Context, id string, upd SoftwareUpdate) (Software, error)
	Delete(ctx context.Context, id string) error
}

const (
	minNameLen        = 2
	minDescriptionLen = 10
)

// Service validates catalog mutations and delegates persistence.
type Service struct {
	store Store
}

// NewService constructs Service.
func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("catalog: store is required")
	}
	return &Service{store: store}, nil
}

// Create adds a software entry with a unique name and a validated level set.
func (s *Service) Create(ctx context.Context, name, description string, levels []AccessLevel) (Software, error) {
	name = strings.TrimSpace(name)
	if len(name) < minNameLen {
		return Software{}, fmt.Errorf("%w: software name must be at least %d characters long", ErrInvalidInput, minNameLen)
	}
	description = strings.TrimSpace(description)
	if len(description) < minDescriptionLen {
		return Software{}, fmt.Errorf("%w: description must be at least %d characters long", ErrInvalidInput, minDescriptionLen)
	}
	normalized, err := normalizeLevels(levels)
	if err != nil {
		return Software{}, err
	}

	if _, err := s.store.FindByName(ctx, name); err == nil {
		return Software{}, fmt.Errorf("%w: software with this name already exists", ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return Software{}, err
	}

	sw := Software{
		Name:         name,
		Description:  description,
		AccessLevels: normalized,
	}
	if err := s.store.Create(ctx, &sw); err != nil {
		return Software{}, err
	}
	return sw, nil
}

// Update applies a partial mutation with the same validation as Create.
func (s *Service) Update(ctx context.Context, id string, upd SoftwareUpdate) (Software, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Software{}, fmt.Errorf("%w: software id is required", ErrInvalidInput)
	}
	current, err := s.store.Find(ctx, id)
	if err != nil {
		return Software{}, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if len(name) < minNameLen {
			return Software{}, fmt.Errorf("%w: software name must be at least %d characters long", ErrInvalidInput, minNameLen)
		}
		if name != current.Name {
			if _, err := s.store.FindByName(ctx, name); err == nil {
				return Software{}, fmt.Errorf("%w: software with this name already exists", ErrConflict)
			} else if !errors.Is(err, ErrNotFound) {
				return Software{}, err
			}
		}
		upd.Name = &name
	}
	if upd.Description != nil {
		description := strings.TrimSpace(*upd.Description)
		if len(description) < minDescriptionLen {
			return Software{}, fmt.Errorf("%w: description must be at least %d characters long", ErrInvalidInput, minDescriptionLen)
		}
		upd.Description = &description
	}
	if upd.AccessLevels != nil {
		normalized, err := normalizeLevels(upd.AccessLevels)
		if err != nil {
			return Software{}, err
		}
		upd.AccessLevels = normalized
	}
	return s.store.Update(ctx, id, upd)
}

// Delete removes a software entry.
func (s *Service) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: software id is required", ErrInvalidInput)
	}
	if _, err := s.store.Find(ctx, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// Get returns a software entry by id.
func (s *Service) Get(ctx context.Context, id string) (Software, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Software{}, fmt.Errorf("%w: software id is required", ErrInvalidInput)
	}
	return s.store.Find(ctx, id)
}

// List returns the full catalog.
func (s *Service) List(ctx context.Context) ([]Software, error) {
	return s.store.List(ctx)
}

// normalizeLevels deduplicates the set, rejects unknown levels (naming the
// offenders) and requires at least one level.
func normalizeLevels(levels []AccessLevel) ([]AccessLevel, error) {
	var invalid []string
	seen := make(map[AccessLevel]struct{}, len(levels))
	var out []AccessLevel
	for _, l := range levels {
		if !l.Valid() {
			invalid = append(invalid, string(l))
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("%w: invalid access levels: %s", ErrInvalidInput, strings.Join(invalid, ", "))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: at least one access level is required", ErrInvalidInput)
	}
	return out, nil
}
