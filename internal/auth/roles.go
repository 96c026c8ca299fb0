package auth

import (
	"fmt"
	"strings"
)

// Role is the single closed enumeration of user roles. Every layer (token
// claims, validation, persistence, HTTP gating) consumes these constants so
// the role vocabulary cannot drift between components.
type Role string

const (
	RoleEmployee Role = "Employee"
	RoleManager  Role = "Manager"
	RoleAdmin    Role = "Admin"
)

// Roles lists all valid roles in a stable order.
func Roles() []Role {
	return []Role{RoleEmployee, RoleManager, RoleAdmin}
}

// Valid reports whether the role is a member of the closed set.
func (r Role) Valid() bool {
	switch r {
	case RoleEmployee, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// ParseRole normalizes free-form input into a Role, accepting any casing.
func ParseRole(s string) (Role, error) {
	s = strings.TrimSpace(s)
	for _, r := range Roles() {
		if strings.EqualFold(s, string(r)) {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
}
