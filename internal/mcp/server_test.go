package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/primegate/primegate/internal/escalation"
	"github.com/primegate/primegate/internal/iam"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	body := fmt.Sprintf("store_path: %s\naudit_path: %s\n",
		filepath.Join(dir, "tickets.db"), filepath.Join(dir, "audit.jsonl"))
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := New(context.Background(), Config{ConfigPath: cfgPath})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedTicket(t *testing.T, s *Server, requester string) string {
	t.Helper()
	id, err := s.governor().Store.Add(context.Background(), escalation.Ticket{
		RequesterID:    requester,
		InputText:      "transfer request",
		AgentReasoning: "needs review",
		Confidence:     0.5,
	})
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestActorFromValidation(t *testing.T) {
	if _, err := actorFrom("alice", "user"); err != nil {
		t.Errorf("valid actor rejected: %v", err)
	}
	if _, err := actorFrom("alice", "superuser"); err == nil {
		t.Error("unknown role accepted")
	}
	if _, err := actorFrom("", "user"); err == nil {
		t.Error("empty actor id accepted")
	}
}

func TestTicketVisibilityThroughHandlers(t *testing.T) {
	s := testServer(t)
	id := seedTicket(t, s, "alice")

	_, own, err := s.handleTickets(context.Background(), nil, TicketsInput{ActorID: "alice", Role: "user"})
	if err != nil {
		t.Fatalf("handleTickets: %v", err)
	}
	if len(own.Tickets) != 1 || own.Tickets[0].ID != id {
		t.Errorf("alice sees %+v", own.Tickets)
	}

	_, other, err := s.handleTickets(context.Background(), nil, TicketsInput{ActorID: "bob", Role: "user"})
	if err != nil {
		t.Fatalf("handleTickets: %v", err)
	}
	if len(other.Tickets) != 0 {
		t.Errorf("bob sees %+v", other.Tickets)
	}

	_, pending, err := s.handlePending(context.Background(), nil, PendingInput{})
	if err != nil {
		t.Fatal(err)
	}
	if len(pending.Tickets) != 1 {
		t.Errorf("pending = %+v", pending.Tickets)
	}
}

func TestResolveHandler(t *testing.T) {
	s := testServer(t)
	id := seedTicket(t, s, "alice")

	// Staff lacks resolve_escalations.
	_, _, err := s.handleResolve(context.Background(), nil, ResolveInput{
		ActorID: "carol", Role: "staff", TicketID: id, Decision: "approved",
	})
	if err == nil || !strings.Contains(err.Error(), "access denied") {
		t.Errorf("staff resolve err = %v", err)
	}

	_, out, err := s.handleResolve(context.Background(), nil, ResolveInput{
		ActorID: "root", Role: "admin", TicketID: id, Decision: "approved", Note: "verified",
	})
	if err != nil {
		t.Fatalf("admin resolve: %v", err)
	}
	if out.Status != "approved" {
		t.Errorf("status = %q", out.Status)
	}

	// Write-once.
	_, _, err = s.handleResolve(context.Background(), nil, ResolveInput{
		ActorID: "root", Role: "admin", TicketID: id, Decision: "rejected",
	})
	if err == nil || !strings.Contains(err.Error(), "already resolved") {
		t.Errorf("second resolve err = %v", err)
	}

	_, _, err = s.handleResolve(context.Background(), nil, ResolveInput{
		ActorID: "root", Role: "admin", TicketID: "nope", Decision: "approved",
	})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("missing ticket err = %v", err)
	}
}

func TestStatsHandler(t *testing.T) {
	s := testServer(t)
	seedTicket(t, s, "alice")
	id := seedTicket(t, s, "bob")
	if err := s.governor().Store.Resolve(context.Background(), iam.NewActor("root", iam.RoleAdmin, ""),
		id, escalation.StatusApproved, ""); err != nil {
		t.Fatal(err)
	}

	_, stats, err := s.handleStats(context.Background(), nil, StatsInput{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 2 || stats.Pending != 1 || stats.Approved != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestReloadSwapsGovernor(t *testing.T) {
	s := testServer(t)
	if got := s.governor().Config.Escalation.Threshold; got != 0.6 {
		t.Fatalf("initial threshold = %v", got)
	}

	body := fmt.Sprintf("escalation:\n  threshold: 0.8\nstore_path: %s\naudit_path: %s\n",
		s.governor().Config.StorePath, s.governor().Config.AuditPath)
	if err := os.WriteFile(s.configPath, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got := s.governor().Config.Escalation.Threshold; got != 0.8 {
		t.Errorf("reloaded threshold = %v, want 0.8", got)
	}
}

func TestGovernHandlerFailsClosedWithoutJudge(t *testing.T) {
	s := testServer(t)
	_, out, err := s.handleGovern(context.Background(), nil, GovernInput{
		ActorID: "alice", Role: "user", Text: "what is my balance?",
	})
	if err != nil {
		t.Fatalf("handleGovern: %v", err)
	}
	if out.Action != "refuse" {
		t.Errorf("action = %q, want refuse", out.Action)
	}
	if out.Response == "" {
		t.Error("missing user-visible response")
	}
}
