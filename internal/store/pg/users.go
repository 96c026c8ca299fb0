package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"accessdesk.org/internal/auth"
	"accessdesk.org/internal/ids"
)

type UserStore struct {
	db *sql.DB
}

var _ auth.UserStore = (*UserStore)(nil)

const userColumns = `id, username, email, password_hash, role, is_active, refresh_token, created_at, updated_at`

func (s *UserStore) Create(ctx context.Context, u *auth.User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	err := s.db.QueryRowContext(ctx, `
		insert into users (id, username, email, password_hash, role, is_active)
		values ($1, $2, $3, $4, $5, $6)
		returning created_at
	`, u.ID, u.Username, u.Email, u.PasswordHash, string(u.Role), u.IsActive).Scan(&u.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.ErrConflict
		}
		return err
	}
	return nil
}

func (s *UserStore) Find(ctx context.Context, id string) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where id = $1`, id)
	return scanUser(row)
}

func (s *UserStore) FindByUsernameOrEmail(ctx context.Context, usernameOrEmail string) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+userColumns+` from users where username = $1 or email = $1
	`, usernameOrEmail)
	return scanUser(row)
}

func (s *UserStore) FindByRefreshToken(ctx context.Context, token string) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where refresh_token = $1`, token)
	return scanUser(row)
}

func (s *UserStore) UpdateRefreshToken(ctx context.Context, userID string, token *string) error {
	res, err := s.db.ExecContext(ctx, `
		update users set refresh_token = $2, updated_at = now() where id = $1
	`, userID, token)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *UserStore) Update(ctx context.Context, userID string, upd auth.UserUpdate) (*auth.User, error) {
	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.Username != nil {
		sets = append(sets, fmt.Sprintf("username = $%d", idx))
		args = append(args, *upd.Username)
		idx++
	}
	if upd.Email != nil {
		sets = append(sets, fmt.Sprintf("email = $%d", idx))
		args = append(args, *upd.Email)
		idx++
	}
	if upd.PasswordHash != nil {
		sets = append(sets, fmt.Sprintf("password_hash = $%d", idx))
		args = append(args, *upd.PasswordHash)
		idx++
	}
	if upd.Role != nil {
		sets = append(sets, fmt.Sprintf("role = $%d", idx))
		args = append(args, string(*upd.Role))
		idx++
	}
	if upd.IsActive != nil {
		sets = append(sets, fmt.Sprintf("is_active = $%d", idx))
		args = append(args, *upd.IsActive)
		idx++
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update users set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, userID)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
				return nil, auth.ErrConflict
			}
			return nil, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if aff == 0 {
			return nil, auth.ErrNotFound
		}
	}
	return s.Find(ctx, userID)
}

func (s *UserStore) List(ctx context.Context) ([]*auth.User, error) {
	return s.queryUsers(ctx, `select `+userColumns+` from users order by created_at desc`)
}

func (s *UserStore) ListByRole(ctx context.Context, role auth.Role) ([]*auth.User, error) {
	return s.queryUsers(ctx, `
		select `+userColumns+` from users where role = $1 order by created_at desc
	`, string(role))
}

func (s *UserStore) Search(ctx context.Context, query string) ([]*auth.User, error) {
	pattern := "%" + query + "%"
	return s.queryUsers(ctx, `
		select `+userColumns+` from users
		where username ilike $1 or email ilike $1
		order by created_at desc
	`, pattern)
}

func (s *UserStore) CountByRole(ctx context.Context) (map[auth.Role]int, error) {
	rows, err := s.db.QueryContext(ctx, `select role, count(*) from users group by role`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[auth.Role]int{}
	for rows.Next() {
		var role string
		var n int
		if err := rows.Scan(&role, &n); err != nil {
			return nil, err
		}
		counts[auth.Role(role)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

func (s *UserStore) queryUsers(ctx context.Context, query string, args ...any) ([]*auth.User, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*auth.User
	for rows.Next() {
		u, err := scanUserRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row *sql.Row) (*auth.User, error) {
	u, err := scanUserRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	return u, err
}

func scanUserRow(row rowScanner) (*auth.User, error) {
	var (
		u       auth.User
		role    string
		refresh sql.NullString
		updated sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role, &u.IsActive, &refresh, &u.CreatedAt, &updated); err != nil {
		return nil, err
	}
	u.Role = auth.Role(role)
	if refresh.Valid {
		u.RefreshToken = &refresh.String
	}
	if updated.Valid {
		u.UpdatedAt = &updated.Time
	}
	return &u, nil
}
