package auth

import "context"

// UserStore describes the persistence operations the identity subsystem
// requires. Implementations live in internal/store; tests use in-memory
// fakes.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByUsernameOrEmail(ctx context.Context, usernameOrEmail string) (*User, error)
	FindByRefreshToken(ctx context.Context, token string) (*User, error)
	UpdateRefreshToken(ctx context.Context, userID string, token *string) error
	Update(ctx context.Context, userID string, upd UserUpdate) (*User, error)
	List(ctx context.Context) ([]*User, error)
	ListByRole(ctx context.Context, role Role) ([]*User, error)
	Search(ctx context.Context, query string) ([]*User, error)
	CountByRole(ctx context.Context) (map[Role]int, error)
}
