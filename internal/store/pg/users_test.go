package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"accessdesk.org/internal/auth"
)

func TestUserCreateMapsUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("insert into users").
		WithArgs(sqlmock.AnyArg(), "alice", "alice@example.com", sqlmock.AnyArg(), "Employee", true).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	u := auth.User{Username: "alice", Email: "alice@example.com", PasswordHash: "hash", Role: auth.RoleEmployee, IsActive: true}
	err := store.Users().Create(context.Background(), &u)
	if !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserFindDecodesNullableColumns(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	cols := []string{"id", "username", "email", "password_hash", "role", "is_active", "refresh_token", "created_at", "updated_at"}
	mock.ExpectQuery("select .* from users where id").
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("u-1", "alice", "alice@example.com", "hash", "Manager", true, "tok", now, now))

	u, err := store.Users().Find(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if u.Role != auth.RoleManager {
		t.Fatalf("unexpected role: %s", u.Role)
	}
	if u.RefreshToken == nil || *u.RefreshToken != "tok" {
		t.Fatalf("refresh token not decoded: %v", u.RefreshToken)
	}
	if u.UpdatedAt == nil {
		t.Fatal("expected updated_at")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserFindNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	cols := []string{"id", "username", "email", "password_hash", "role", "is_active", "refresh_token", "created_at", "updated_at"}
	mock.ExpectQuery("select .* from users where id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(cols))

	_, err := store.Users().Find(context.Background(), "missing")
	if !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateRefreshTokenUnknownUser(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("update users set refresh_token").
		WithArgs("missing", nil).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Users().UpdateRefreshToken(context.Background(), "missing", nil)
	if !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserUpdateBuildsPartialSet(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	role := auth.RoleManager
	mock.ExpectExec(`update users set role = \$1, updated_at = now\(\) where id = \$2`).
		WithArgs("Manager", "u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	cols := []string{"id", "username", "email", "password_hash", "role", "is_active", "refresh_token", "created_at", "updated_at"}
	mock.ExpectQuery("select .* from users where id").
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("u-1", "alice", "alice@example.com", "hash", "Manager", true, nil, now, now))

	u, err := store.Users().Update(context.Background(), "u-1", auth.UserUpdate{Role: &role})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if u.Role != auth.RoleManager {
		t.Fatalf("unexpected role: %s", u.Role)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCountByRole(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select role, count").
		WillReturnRows(sqlmock.NewRows([]string{"role", "count"}).
			AddRow("Employee", 7).
			AddRow("Manager", 2).
			AddRow("Admin", 1))

	counts, err := store.Users().CountByRole(context.Background())
	if err != nil {
		t.Fatalf("CountByRole: %v", err)
	}
	if counts[auth.RoleEmployee] != 7 || counts[auth.RoleManager] != 2 || counts[auth.RoleAdmin] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
