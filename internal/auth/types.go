package auth

import "time"

// User is an account in the identity store. PasswordHash and RefreshToken
// never leave the service boundary.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	IsActive     bool       `json:"is_active"`
	RefreshToken *string    `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// UserUpdate describes a partial mutation of a user row. Nil fields are left
// untouched.
type UserUpdate struct {
	Username     *string
	Email        *string
	PasswordHash *string
	Role         *Role
	IsActive     *bool
}

// Statistics summarizes the identity store for the admin dashboard.
type Statistics struct {
	Total            int          `json:"total"`
	Active           int          `json:"active"`
	Inactive         int          `json:"inactive"`
	RoleDistribution map[Role]int `json:"role_distribution"`
}
