package request

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"accessdesk.org/internal/auth"
	"accessdesk.org/internal/catalog"
)

type memStore struct {
	mu       sync.Mutex
	seq      int
	requests map[string]*AccessRequest
	history  []HistoryRecord
}

func newMemStore() *memStore {
	return &memStore{requests: map[string]*AccessRequest{}}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memStore) Create(ctx context.Context, r *AccessRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = m.nextID("req")
	r.CreatedAt = time.Now().UTC()
	cp := *r
	m.requests[r.ID] = &cp
	return nil
}

func (m *memStore) Find(ctx context.Context, id string) (AccessRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return AccessRequest{}, ErrNotFound
	}
	return *r, nil
}

func (m *memStore) ListByUser(ctx context.Context, userID string) ([]AccessRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []AccessRequest
	for _, r := range m.requests {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memStore) ListPending(ctx context.Context) ([]AccessRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []AccessRequest
	for _, r := range m.requests {
		if r.Status == StatusPending {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memStore) Transition(ctx context.Context, requestID, actorID string, newStatus Status, comment *string) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[requestID]
	if !ok {
		return Decision{}, ErrNotFound
	}
	if r.Status.Terminal() {
		return Decision{}, ErrAlreadyDecided
	}
	old := r.Status
	now := time.Now().UTC()
	r.Status = newStatus
	r.UpdatedAt = &now
	rec := HistoryRecord{
		ID:          m.nextID("hist"),
		RequestID:   requestID,
		ChangedByID: actorID,
		OldStatus:   old,
		NewStatus:   newStatus,
		Comment:     comment,
		ChangedAt:   now,
	}
	m.history = append(m.history, rec)
	return Decision{Request: *r, History: rec}, nil
}

func (m *memStore) History(ctx context.Context, requestID string) ([]HistoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[requestID]; !ok {
		return nil, ErrNotFound
	}
	var out []HistoryRecord
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].RequestID == requestID {
			out = append(out, m.history[i])
		}
	}
	return out, nil
}

type memUsers struct {
	users map[string]*auth.User
}

func (m *memUsers) Find(ctx context.Context, id string) (*auth.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return u, nil
}

type memCatalog struct {
	software map[string]catalog.Software
}

func (m *memCatalog) Find(ctx context.Context, id string) (catalog.Software, error) {
	sw, ok := m.software[id]
	if !ok {
		return catalog.Software{}, catalog.ErrNotFound
	}
	return sw, nil
}

func newTestService(t *testing.T) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	users := &memUsers{users: map[string]*auth.User{
		"emp-1": {ID: "emp-1", Username: "alice", Role: auth.RoleEmployee, IsActive: true},
		"mgr-1": {ID: "mgr-1", Username: "bob", Role: auth.RoleManager, IsActive: true},
	}}
	cat := &memCatalog{software: map[string]catalog.Software{
		"sw-1": {
			ID:           "sw-1",
			Name:         "Tableau",
			Description:  "Analytics and dashboarding platform",
			AccessLevels: []catalog.AccessLevel{catalog.AccessRead, catalog.AccessWrite},
		},
	}}
	svc, err := NewService(store, users, cat)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store
}

func TestCreateAndApprove(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	req, err := svc.Create(ctx, "emp-1", "sw-1", catalog.AccessWrite, "need dashboards for quarterly reporting")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if req.Status != StatusPending {
		t.Fatalf("expected Pending, got %s", req.Status)
	}
	if req.ID == "" {
		t.Fatalf("expected assigned id")
	}

	comment := "approved for Q3"
	dec, err := svc.Transition(ctx, req.ID, "mgr-1", StatusApproved, &comment)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if dec.Request.Status != StatusApproved {
		t.Fatalf("expected Approved, got %s", dec.Request.Status)
	}
	if dec.History.OldStatus != StatusPending || dec.History.NewStatus != StatusApproved {
		t.Fatalf("unexpected history transition: %s -> %s", dec.History.OldStatus, dec.History.NewStatus)
	}
	if dec.History.ChangedByID != "mgr-1" {
		t.Fatalf("unexpected actor: %s", dec.History.ChangedByID)
	}
	if dec.History.Comment == nil || *dec.History.Comment != comment {
		t.Fatalf("comment not preserved")
	}

	hist, err := svc.History(ctx, req.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 1 {
		t.Fatalf("expected one history record, got %d", len(hist))
	}
}

func TestCreateRejectsDisallowedAccessType(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), "emp-1", "sw-1", catalog.AccessAdmin, "need admin rights to manage the workspace")
	if !errors.Is(err, ErrInvalidAccessType) {
		t.Fatalf("expected ErrInvalidAccessType, got %v", err)
	}
	if !strings.Contains(err.Error(), "Available types: Read, Write") {
		t.Fatalf("expected allowed set in message, got %q", err.Error())
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "emp-1", "sw-1", catalog.AccessRead, "too short"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for short reason, got %v", err)
	}
	if _, err := svc.Create(ctx, "emp-1", "sw-1", catalog.AccessRead, "   "); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for blank reason, got %v", err)
	}
	if _, err := svc.Create(ctx, "emp-1", "sw-1", "Execute", "a perfectly reasonable justification"); !errors.Is(err, ErrInvalidAccessType) {
		t.Fatalf("expected ErrInvalidAccessType for unknown level, got %v", err)
	}
	if _, err := svc.Create(ctx, "ghost", "sw-1", catalog.AccessRead, "a perfectly reasonable justification"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}
	if _, err := svc.Create(ctx, "emp-1", "sw-404", catalog.AccessRead, "a perfectly reasonable justification"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown software, got %v", err)
	}
}

func TestTransitionRejectsInvalidTarget(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	req, err := svc.Create(ctx, "emp-1", "sw-1", catalog.AccessRead, "read access for the sales dashboards")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Transition(ctx, req.ID, "mgr-1", StatusPending, nil); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus for Pending target, got %v", err)
	}
	if _, err := svc.Transition(ctx, req.ID, "mgr-1", Status("Granted"), nil); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus for unknown target, got %v", err)
	}
}

func TestTransitionIsOneShot(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	req, err := svc.Create(ctx, "emp-1", "sw-1", catalog.AccessRead, "read access for the sales dashboards")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Transition(ctx, req.ID, "mgr-1", StatusRejected, nil); err != nil {
		t.Fatalf("first Transition: %v", err)
	}
	if _, err := svc.Transition(ctx, req.ID, "mgr-1", StatusApproved, nil); !errors.Is(err, ErrAlreadyDecided) {
		t.Fatalf("expected ErrAlreadyDecided, got %v", err)
	}
}

func TestConcurrentTransitionsSingleWinner(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	req, err := svc.Create(ctx, "emp-1", "sw-1", catalog.AccessRead, "read access for the sales dashboards")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		status := StatusApproved
		if i%2 == 1 {
			status = StatusRejected
		}
		go func(st Status) {
			defer wg.Done()
			_, err := svc.Transition(ctx, req.ID, "mgr-1", st, nil)
			errs <- err
		}(status)
	}
	wg.Wait()
	close(errs)

	var won, lost int
	for err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrAlreadyDecided):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 || lost != attempts-1 {
		t.Fatalf("expected exactly one winner, got won=%d lost=%d", won, lost)
	}
	if len(store.history) != 1 {
		t.Fatalf("expected one history record, got %d", len(store.history))
	}
}

func TestListPendingExcludesDecided(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, "emp-1", "sw-1", catalog.AccessRead, "read access for the sales dashboards")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create(ctx, "emp-1", "sw-1", catalog.AccessWrite, "write access for publishing workbooks"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Transition(ctx, a.ID, "mgr-1", StatusApproved, nil); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	pending, err := svc.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected one pending request, got %d", len(pending))
	}
	if pending[0].Status != StatusPending {
		t.Fatalf("expected Pending, got %s", pending[0].Status)
	}

	mine, err := svc.ListForUser(ctx, "emp-1")
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected two requests for user, got %d", len(mine))
	}
}
