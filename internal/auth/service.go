package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	defaultAccessTTL  = time.Hour
	defaultRefreshTTL = 7 * 24 * time.Hour

	minUsernameLen = 3
	minPasswordLen = 6
)

// Service implements registration, login and token lifecycle over a UserStore.
type Service struct {
	store UserStore
	now   func() time.Time

	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithSecrets sets the HS256 signing secrets for access and refresh tokens.
func WithSecrets(access, refresh string) ServiceOption {
	return func(s *Service) error {
		if strings.TrimSpace(access) == "" || strings.TrimSpace(refresh) == "" {
			return errors.New("auth: both access and refresh secrets are required")
		}
		s.accessSecret = []byte(access)
		s.refreshSecret = []byte(refresh)
		return nil
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs Service with the given configuration. Signing secrets
// are mandatory.
func NewService(store UserStore, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: user store is required")
	}
	svc := &Service{
		store:      store,
		now:        time.Now,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	if len(svc.accessSecret) == 0 || len(svc.refreshSecret) == 0 {
		return nil, errors.New("auth: signing secrets are not configured")
	}
	return svc, nil
}

// TokenPair carries a freshly issued access/refresh token pair.
type TokenPair struct {
	AccessToken     string    `json:"access_token"`
	RefreshToken    string    `json:"refresh_token"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
}

// Register creates a new active user. Role defaults to Employee.
func (s *Service) Register(ctx context.Context, username, email, password string, role Role) (*User, error) {
	username = strings.TrimSpace(username)
	if len(username) < minUsernameLen {
		return nil, fmt.Errorf("%w: username must be at least %d characters long", ErrInvalidInput, minUsernameLen)
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	password = strings.TrimSpace(password)
	if len(password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters long", ErrInvalidInput, minPasswordLen)
	}
	if role == "" {
		role = RoleEmployee
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}

	if existing, err := s.store.FindByUsernameOrEmail(ctx, username); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: username already exists", ErrConflict)
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if existing, err := s.store.FindByUsernameOrEmail(ctx, email); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: email already exists", ErrConflict)
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := s.store.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login authenticates credentials and issues a fresh token pair. The issued
// refresh token replaces any previously stored one, so at most one refresh
// token is active per user.
func (s *Service) Login(ctx context.Context, usernameOrEmail, password string) (*User, TokenPair, error) {
	usernameOrEmail = strings.TrimSpace(usernameOrEmail)
	if usernameOrEmail == "" || password == "" {
		return nil, TokenPair{}, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}
	user, err := s.store.FindByUsernameOrEmail(ctx, usernameOrEmail)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, TokenPair{}, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
		}
		return nil, TokenPair{}, err
	}
	if !user.IsActive {
		return nil, TokenPair{}, fmt.Errorf("%w: account is deactivated", ErrUnauthorized)
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, TokenPair{}, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}

	pair, err := s.mintTokens(ctx, user)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return user, pair, nil
}

// Refresh rotates the refresh token and issues new access credentials.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := parseRefreshToken(s.refreshSecret, refreshToken, s.now().UTC())
	if err != nil {
		return TokenPair{}, ErrInvalidToken
	}
	user, err := s.store.FindByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrInvalidToken
		}
		return TokenPair{}, err
	}
	if user.ID != claims.Subject {
		return TokenPair{}, ErrInvalidToken
	}
	if !user.IsActive {
		return TokenPair{}, fmt.Errorf("%w: account is deactivated", ErrUnauthorized)
	}
	return s.mintTokens(ctx, user)
}

// Logout invalidates the stored refresh token. Unknown tokens are treated as
// success so logout stays idempotent.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	user, err := s.store.FindByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	return s.store.UpdateRefreshToken(ctx, user.ID, nil)
}

// AuthenticateToken validates an access token and resolves its principal.
func (s *Service) AuthenticateToken(ctx context.Context, token string) (*User, error) {
	claims, err := parseAccessToken(s.accessSecret, token, s.now().UTC())
	if err != nil {
		return nil, ErrInvalidToken
	}
	user, err := s.store.Find(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: account is deactivated", ErrUnauthorized)
	}
	return user, nil
}

func (s *Service) mintTokens(ctx context.Context, user *User) (TokenPair, error) {
	now := s.now().UTC()
	access, accessExp, err := signAccessToken(s.accessSecret, user, s.accessTTL, now)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := signRefreshToken(s.refreshSecret, user.ID, s.refreshTTL, now)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.store.UpdateRefreshToken(ctx, user.ID, &refresh); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:     access,
		RefreshToken:    refresh,
		AccessExpiresAt: accessExp,
	}, nil
}
