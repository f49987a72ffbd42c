package escalation

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/primegate/primegate/internal/access"
	"github.com/primegate/primegate/internal/audit"
	"github.com/primegate/primegate/internal/iam"
)

func newStore(t *testing.T) (*Store, *audit.Memory) {
	t.Helper()
	sink := audit.NewMemory()
	store, err := Open(filepath.Join(t.TempDir(), "escalations.db"), access.NewGate(sink), sink)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, sink
}

func pendingTicket(requester string) Ticket {
	return Ticket{
		RequesterID:    requester,
		InputText:      "can I see account details for someone else?",
		AgentReasoning: "ambiguous intent, confidence below threshold",
		Confidence:     0.55,
	}
}

func TestAddAssignsIDAndTimestamp(t *testing.T) {
	store, sink := newStore(t)

	id, err := store.Add(context.Background(), pendingTicket("u-1"))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if id == "" {
		t.Fatal("expected assigned ticket ID")
	}

	got, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusPending {
		t.Errorf("status = %s, want pending", got.Status)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at not stamped")
	}

	if events := sink.ByType(audit.EventEscalationCreated); len(events) != 1 {
		t.Errorf("expected 1 escalation_created event, got %d", len(events))
	}
}

func TestListVisibilityByRole(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	if _, err := store.Add(ctx, pendingTicket("u-1")); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Add(ctx, pendingTicket("u-2")); err != nil {
		t.Fatal(err)
	}

	// Requester sees own ticket.
	own, err := store.List(ctx, iam.NewActor("u-1", iam.RoleUser, ""))
	if err != nil {
		t.Fatalf("list as requester: %v", err)
	}
	if len(own) != 1 || own[0].RequesterID != "u-1" {
		t.Errorf("requester should see exactly their own ticket, got %d", len(own))
	}

	// Another USER does not see it.
	other, err := store.List(ctx, iam.NewActor("u-3", iam.RoleUser, ""))
	if err != nil {
		t.Fatalf("list as other user: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("foreign user should see no tickets, got %d", len(other))
	}

	// STAFF and ADMIN see everything.
	for _, role := range []iam.Role{iam.RoleStaff, iam.RoleAdmin} {
		all, err := store.List(ctx, iam.NewActor("rev-1", role, ""))
		if err != nil {
			t.Fatalf("list as %s: %v", role, err)
		}
		if len(all) != 2 {
			t.Errorf("%s should see 2 tickets, got %d", role, len(all))
		}
	}
}

func TestListOrderedByCreation(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		tk := pendingTicket("u-1")
		tk.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if _, err := store.Add(ctx, tk); err != nil {
			t.Fatal(err)
		}
	}

	list, err := store.List(ctx, iam.NewActor("u-1", iam.RoleUser, ""))
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(list); i++ {
		if list[i].CreatedAt.Before(list[i-1].CreatedAt) {
			t.Fatal("tickets not ordered by created_at ascending")
		}
	}
}

func TestResolveStampsResolution(t *testing.T) {
	store, sink := newStore(t)
	ctx := context.Background()
	admin := iam.NewActor("admin-1", iam.RoleAdmin, "")

	id, err := store.Add(ctx, pendingTicket("u-1"))
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Resolve(ctx, admin, id, StatusApproved, "verified"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusApproved {
		t.Errorf("status = %s, want approved", got.Status)
	}
	if got.ResolvedBy != "admin-1" || got.ResolvedAt == nil {
		t.Error("resolution must stamp resolved_by and resolved_at")
	}
	if got.ResolvedAt.Before(got.CreatedAt) {
		t.Error("resolved_at must not precede created_at")
	}
	if got.ResolutionNote != "verified" {
		t.Errorf("note = %q, want verified", got.ResolutionNote)
	}

	if events := sink.ByType(audit.EventEscalationResolved); len(events) != 1 {
		t.Errorf("expected 1 escalation_resolved event, got %d", len(events))
	}
}

func TestResolveUnknownTicket(t *testing.T) {
	store, _ := newStore(t)
	admin := iam.NewActor("admin-1", iam.RoleAdmin, "")

	err := store.Resolve(context.Background(), admin, "no-such-id", StatusRejected, "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveIsWriteOnce(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	admin := iam.NewActor("admin-1", iam.RoleAdmin, "")

	id, err := store.Add(ctx, pendingTicket("u-1"))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Resolve(ctx, admin, id, StatusApproved, "ok"); err != nil {
		t.Fatal(err)
	}

	err = store.Resolve(ctx, admin, id, StatusRejected, "changed my mind")
	if !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved, got %v", err)
	}

	// First resolution must be untouched.
	got, _ := store.Get(ctx, id)
	if got.Status != StatusApproved || got.ResolutionNote != "ok" {
		t.Error("second resolve attempt must not overwrite the first")
	}
}

func TestStaffCannotResolve(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	staff := iam.NewActor("s-1", iam.RoleStaff, "")

	id, err := store.Add(ctx, pendingTicket("u-1"))
	if err != nil {
		t.Fatal(err)
	}

	err = store.Resolve(ctx, staff, id, StatusApproved, "trying anyway")
	var denied *access.DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected access.DeniedError, got %v", err)
	}

	got, _ := store.Get(ctx, id)
	if got.Status != StatusPending {
		t.Error("ticket must remain pending after denied resolution")
	}
}

// Two concurrent resolution attempts on the same ticket must yield
// exactly one success and one ErrAlreadyResolved.
func TestConcurrentResolveLinearizable(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	for round := 0; round < 10; round++ {
		id, err := store.Add(ctx, pendingTicket("u-1"))
		if err != nil {
			t.Fatal(err)
		}

		results := make(chan error, 2)
		var wg sync.WaitGroup
		for i, decision := range []Status{StatusApproved, StatusRejected} {
			wg.Add(1)
			go func(n int, d Status) {
				defer wg.Done()
				admin := iam.NewActor("admin-"+string(d), iam.RoleAdmin, "")
				results <- store.Resolve(ctx, admin, id, d, "race")
			}(i, decision)
		}
		wg.Wait()
		close(results)

		var successes, already int
		for err := range results {
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrAlreadyResolved):
				already++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if successes != 1 || already != 1 {
			t.Fatalf("round %d: successes=%d already=%d, want 1/1", round, successes, already)
		}
	}
}

func TestConcurrentAddNoCollisions(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	const n = 50
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := store.Add(ctx, pendingTicket("u-1"))
			if err != nil {
				t.Errorf("add: %v", err)
				return
			}
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate ticket ID %s", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d tickets, got %d", n, len(seen))
	}

	list, err := store.List(ctx, iam.NewActor("u-1", iam.RoleUser, ""))
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != n {
		t.Fatalf("lost writes: %d of %d tickets persisted", len(list), n)
	}
}

func TestPendingFiltersByStatus(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	admin := iam.NewActor("admin-1", iam.RoleAdmin, "")

	first, _ := store.Add(ctx, pendingTicket("u-1"))
	if _, err := store.Add(ctx, pendingTicket("u-2")); err != nil {
		t.Fatal(err)
	}
	if err := store.Resolve(ctx, admin, first, StatusApproved, "done"); err != nil {
		t.Fatal(err)
	}

	pending, err := store.Pending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
	if pending[0].Status != StatusPending {
		t.Errorf("status = %s, want pending", pending[0].Status)
	}
}

func TestStats(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	admin := iam.NewActor("admin-1", iam.RoleAdmin, "")

	a, _ := store.Add(ctx, pendingTicket("u-1"))
	b, _ := store.Add(ctx, pendingTicket("u-1"))
	if _, err := store.Add(ctx, pendingTicket("u-2")); err != nil {
		t.Fatal(err)
	}
	if err := store.Resolve(ctx, admin, a, StatusApproved, ""); err != nil {
		t.Fatal(err)
	}
	if err := store.Resolve(ctx, admin, b, StatusRejected, ""); err != nil {
		t.Fatal(err)
	}

	st, err := store.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Total != 3 || st.Pending != 1 || st.Approved != 1 || st.Rejected != 1 {
		t.Errorf("stats = %+v", st)
	}
	if st.AvgConfidence < 0.54 || st.AvgConfidence > 0.56 {
		t.Errorf("avg confidence = %f, want ~0.55", st.AvgConfidence)
	}
}

func TestTicketRoundTrip(t *testing.T) {
	resolved := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	in := Ticket{
		ID:             "abc-123",
		CreatedAt:      time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC),
		RequesterID:    "u-1",
		InputText:      "input",
		AgentReasoning: "reasoning",
		Confidence:     0.42,
		Status:         StatusApproved,
		ResolvedBy:     "admin-1",
		ResolutionNote: "fine",
		ResolvedAt:     &resolved,
	}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out Ticket
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip mismatch:\n in=%+v\nout=%+v", in, out)
	}
}
