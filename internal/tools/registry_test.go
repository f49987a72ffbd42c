package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/primegate/primegate/internal/audit"
	"github.com/primegate/primegate/internal/iam"
)

func demoRegistry() (*Registry, *audit.Memory) {
	ledger := NewLedger()
	ledger.SeedDemo()
	sink := audit.NewMemory()
	return NewRegistry(ledger, sink), sink
}

func TestBalanceTool(t *testing.T) {
	r, sink := demoRegistry()
	alice := iam.NewActor("alice", iam.RoleUser, "")

	out, err := r.Invoke(context.Background(), "get_account_balance",
		map[string]string{"account_id": "acct-1001"}, alice)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	// Seed: 120433 - 4250 + 250000 - 12000 = 354183 cents.
	if !strings.Contains(out, "$3541.83") {
		t.Errorf("balance output = %q, want $3541.83", out)
	}

	evs := sink.ByType(audit.EventAccountAccess)
	if len(evs) != 1 || !evs[0].Success || evs[0].ActorID != "alice" {
		t.Errorf("account_access events = %+v", evs)
	}
}

func TestHistoryToolOrdering(t *testing.T) {
	r, sink := demoRegistry()
	alice := iam.NewActor("alice", iam.RoleUser, "")

	out, err := r.Invoke(context.Background(), "get_transaction_history",
		map[string]string{"account_id": "acct-1001", "limit": "2"}, alice)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), out)
	}
	// Newest first: utility bill posted after payroll deposit.
	if !strings.Contains(lines[0], "utility bill") || !strings.Contains(lines[1], "payroll deposit") {
		t.Errorf("ordering wrong: %q", out)
	}

	if evs := sink.ByType(audit.EventTransactionQuery); len(evs) != 1 {
		t.Errorf("transaction_query events = %d, want 1", len(evs))
	}
}

func TestHistoryBadLimit(t *testing.T) {
	r, _ := demoRegistry()
	alice := iam.NewActor("alice", iam.RoleUser, "")
	_, err := r.Invoke(context.Background(), "get_transaction_history",
		map[string]string{"account_id": "acct-1001", "limit": "lots"}, alice)
	if !errors.Is(err, ErrBadArguments) {
		t.Errorf("got %v, want ErrBadArguments", err)
	}
}

func TestUnknownToolAndAccount(t *testing.T) {
	r, sink := demoRegistry()
	alice := iam.NewActor("alice", iam.RoleUser, "")

	if _, err := r.Invoke(context.Background(), "execute_wire_transfer", nil, alice); !errors.Is(err, ErrUnknownTool) {
		t.Errorf("got %v, want ErrUnknownTool", err)
	}

	_, err := r.Invoke(context.Background(), "get_account_balance",
		map[string]string{"account_id": "acct-9999"}, alice)
	if !errors.Is(err, ErrUnknownAccount) {
		t.Errorf("got %v, want ErrUnknownAccount", err)
	}
	// Failed invocations are still audited.
	evs := sink.ByType(audit.EventAccountAccess)
	if len(evs) != 1 || evs[0].Success || evs[0].Error == "" {
		t.Errorf("failure event = %+v", evs)
	}
}

func TestResolveOwner(t *testing.T) {
	r, _ := demoRegistry()

	owner, err := r.ResolveOwner("get_account_balance", map[string]string{"account_id": "acct-2001"})
	if err != nil {
		t.Fatalf("ResolveOwner: %v", err)
	}
	if owner != "bob" {
		t.Errorf("owner = %q, want bob", owner)
	}

	if _, err := r.ResolveOwner("get_account_balance", map[string]string{}); !errors.Is(err, ErrBadArguments) {
		t.Errorf("got %v, want ErrBadArguments", err)
	}
}

func TestRequirement(t *testing.T) {
	r, _ := demoRegistry()
	req, ok := r.Requirement("get_account_balance")
	if !ok {
		t.Fatal("requirement missing")
	}
	if req.OwnPermission != iam.PermViewOwnAccounts || req.AllPermission != iam.PermViewAllAccounts {
		t.Errorf("requirement = %+v", req)
	}
	if _, ok := r.Requirement("nope"); ok {
		t.Error("unknown tool reported a requirement")
	}
}

func TestTraceIDPropagatesToEvents(t *testing.T) {
	r, sink := demoRegistry()
	alice := iam.NewActor("alice", iam.RoleUser, "")
	ctx := audit.WithTrace(context.Background(), "trace-42")

	if _, err := r.Invoke(ctx, "get_account_balance", map[string]string{"account_id": "acct-1001"}, alice); err != nil {
		t.Fatal(err)
	}
	evs := sink.Events()
	if len(evs) != 1 || evs[0].TraceID != "trace-42" {
		t.Errorf("trace id = %+v", evs)
	}
}
