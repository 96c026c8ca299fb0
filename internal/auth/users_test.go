package auth

import (
	"context"
	"errors"
	"testing"
)

func newTestUserService(t *testing.T) (*UserService, *fakeStore, string, string) {
	t.Helper()
	store := newFakeStore()
	svc, err := NewUserService(store)
	if err != nil {
		t.Fatalf("NewUserService: %v", err)
	}
	ctx := context.Background()

	admin := &User{Username: "admin", Email: "admin@example.com", PasswordHash: "hash", Role: RoleAdmin, IsActive: true}
	if err := store.Create(ctx, admin); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	bob := &User{Username: "bob", Email: "bob@example.com", PasswordHash: "hash", Role: RoleEmployee, IsActive: true}
	if err := store.Create(ctx, bob); err != nil {
		t.Fatalf("create bob: %v", err)
	}
	return svc, store, admin.ID, bob.ID
}

func TestUpdateRoleSelfGuard(t *testing.T) {
	svc, _, adminID, bobID := newTestUserService(t)
	ctx := context.Background()

	updated, err := svc.UpdateRole(ctx, bobID, RoleManager, adminID)
	if err != nil {
		t.Fatalf("UpdateRole: %v", err)
	}
	if updated.Role != RoleManager {
		t.Fatalf("expected Manager, got %s", updated.Role)
	}

	if _, err := svc.UpdateRole(ctx, adminID, RoleEmployee, adminID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for self role change, got %v", err)
	}
	if _, err := svc.UpdateRole(ctx, "ghost", RoleManager, adminID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.UpdateRole(ctx, bobID, Role("Superuser"), adminID); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSetActiveRevokesRefreshToken(t *testing.T) {
	svc, store, adminID, bobID := newTestUserService(t)
	ctx := context.Background()

	token := "some-refresh-token"
	if err := store.UpdateRefreshToken(ctx, bobID, &token); err != nil {
		t.Fatalf("seed refresh token: %v", err)
	}

	updated, err := svc.SetActive(ctx, bobID, false, adminID)
	if err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if updated.IsActive {
		t.Fatal("expected deactivated user")
	}
	stored, err := store.Find(ctx, bobID)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if stored.RefreshToken != nil {
		t.Fatal("expected refresh token revoked on deactivation")
	}

	if _, err := svc.SetActive(ctx, adminID, false, adminID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for self deactivation, got %v", err)
	}
}

func TestUpdateProfileUniqueness(t *testing.T) {
	svc, _, _, bobID := newTestUserService(t)
	ctx := context.Background()

	taken := "admin"
	if _, err := svc.UpdateProfile(ctx, bobID, ProfileUpdate{Username: &taken}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for taken username, got %v", err)
	}

	fresh := "robert"
	updated, err := svc.UpdateProfile(ctx, bobID, ProfileUpdate{Username: &fresh})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if updated.Username != "robert" {
		t.Fatalf("unexpected username: %s", updated.Username)
	}

	// renaming to your own current name is not a conflict
	if _, err := svc.UpdateProfile(ctx, bobID, ProfileUpdate{Username: &fresh}); err != nil {
		t.Fatalf("UpdateProfile to same name: %v", err)
	}
}

func TestStats(t *testing.T) {
	svc, store, _, bobID := newTestUserService(t)
	ctx := context.Background()

	inactive := false
	if _, err := store.Update(ctx, bobID, UserUpdate{IsActive: &inactive}); err != nil {
		t.Fatalf("deactivate bob: %v", err)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 2 || stats.Active != 1 || stats.Inactive != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.RoleDistribution[RoleAdmin] != 1 || stats.RoleDistribution[RoleEmployee] != 1 {
		t.Fatalf("unexpected role distribution: %v", stats.RoleDistribution)
	}
}
