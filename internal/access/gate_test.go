package access

import (
	"context"
	"errors"
	"testing"

	"github.com/primegate/primegate/internal/audit"
	"github.com/primegate/primegate/internal/iam"
)

// Check must succeed iff the permission is in the role's set, or the
// role is SYSTEM — exercised for every role × permission pair.
func TestCheckMatchesPermissionTable(t *testing.T) {
	gate := NewGate(audit.NewMemory())
	roles := []iam.Role{iam.RoleUser, iam.RoleStaff, iam.RoleAdmin, iam.RoleSystem}

	for _, role := range roles {
		actor := iam.NewActor("actor-"+string(role), role, "")
		perms := iam.PermissionsOf(role)
		for _, p := range iam.AllPermissions {
			err := gate.Check(context.Background(), actor, p)
			want := perms[p] || role == iam.RoleSystem
			if want && err != nil {
				t.Errorf("role %s perm %s: unexpected denial: %v", role, p, err)
			}
			if !want && err == nil {
				t.Errorf("role %s perm %s: expected denial", role, p)
			}
		}
	}
}

func TestDeniedErrorCarriesContext(t *testing.T) {
	gate := NewGate(audit.NewMemory())
	actor := iam.NewActor("u-1", iam.RoleUser, "")

	err := gate.Check(context.Background(), actor, iam.PermResolveEscalations)
	var denied *DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected *DeniedError, got %T", err)
	}
	if denied.Actor.ID != "u-1" || denied.Permission != iam.PermResolveEscalations {
		t.Errorf("denial context wrong: %+v", denied)
	}
}

func TestEveryCheckEmitsAuditEvent(t *testing.T) {
	sink := audit.NewMemory()
	gate := NewGate(sink)
	actor := iam.NewActor("u-1", iam.RoleUser, "")

	_ = gate.Check(context.Background(), actor, iam.PermUseAgent)           // granted
	_ = gate.Check(context.Background(), actor, iam.PermViewAllEscalations) // denied

	events := sink.ByType(audit.EventAccessDecision)
	if len(events) != 2 {
		t.Fatalf("expected 2 access_control_decision events, got %d", len(events))
	}
	if events[0].Details["granted"] != "true" {
		t.Errorf("first event granted = %s, want true", events[0].Details["granted"])
	}
	if events[1].Details["granted"] != "false" {
		t.Errorf("second event granted = %s, want false", events[1].Details["granted"])
	}
	if events[1].Success {
		t.Error("denied check must record success=false")
	}
}

// The two-tier rule: all-scope permission beats ownership; own-scope
// permission requires ownership.
func TestCheckResourceTwoTier(t *testing.T) {
	gate := NewGate(audit.NewMemory())
	ctx := context.Background()

	owner := iam.NewActor("u-1", iam.RoleUser, "")
	other := iam.NewActor("u-2", iam.RoleUser, "")
	staff := iam.NewActor("s-1", iam.RoleStaff, "")
	sys := iam.NewActor("sys", iam.RoleSystem, "")

	cases := []struct {
		name    string
		actor   iam.Actor
		ownerID string
		wantOK  bool
	}{
		{"owner sees own resource", owner, "u-1", true},
		{"user denied on another's resource", other, "u-1", false},
		{"staff all-scope beats ownership", staff, "u-1", true},
		{"system always passes", sys, "u-1", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := gate.CheckResource(ctx, tc.actor, iam.PermViewOwnEscalations, iam.PermViewAllEscalations, tc.ownerID)
			if tc.wantOK && err != nil {
				t.Errorf("unexpected denial: %v", err)
			}
			if !tc.wantOK && err == nil {
				t.Error("expected denial")
			}
		})
	}
}

// Property-style sweep: for every role, CheckResource on a foreign
// resource succeeds iff the role holds the all-scope permission.
func TestCheckResourceForeignSweep(t *testing.T) {
	gate := NewGate(audit.NewMemory())
	ctx := context.Background()

	for _, role := range []iam.Role{iam.RoleUser, iam.RoleStaff, iam.RoleAdmin, iam.RoleSystem} {
		actor := iam.NewActor("actor-x", role, "")
		err := gate.CheckResource(ctx, actor, iam.PermViewOwnAccounts, iam.PermViewAllAccounts, "someone-else")
		wantOK := iam.HasPermission(actor, iam.PermViewAllAccounts)
		if wantOK && err != nil {
			t.Errorf("role %s: unexpected denial on foreign account: %v", role, err)
		}
		if !wantOK && err == nil {
			t.Errorf("role %s: expected denial on foreign account", role)
		}
	}
}

func TestTraceIDPropagates(t *testing.T) {
	sink := audit.NewMemory()
	gate := NewGate(sink)
	ctx := audit.WithTrace(context.Background(), "trace-42")

	_ = gate.Check(ctx, iam.NewActor("u-1", iam.RoleUser, ""), iam.PermUseAgent)

	events := sink.Events()
	if len(events) != 1 || events[0].TraceID != "trace-42" {
		t.Fatalf("trace ID not propagated: %+v", events)
	}
}
