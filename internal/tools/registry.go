package tools

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/primegate/primegate/internal/audit"
	"github.com/primegate/primegate/internal/iam"
)

var (
	// ErrUnknownTool reports a tool name with no registration.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrBadArguments reports missing or malformed tool arguments.
	ErrBadArguments = errors.New("bad tool arguments")
)

// Requirement documents the permission pair a tool demands: the
// own-scope permission for the requester's resources and the
// all-scope permission that overrides ownership.
type Requirement struct {
	OwnPermission iam.Permission
	AllPermission iam.Permission
}

// tool is one registered banking operation.
type tool struct {
	name        string
	description string
	requirement Requirement
	eventType   audit.EventType
	owner       func(r *Registry, args map[string]string) (string, error)
	run         func(ctx context.Context, r *Registry, args map[string]string) (string, error)
}

// Registry holds the banking tools and the ledger they read.
type Registry struct {
	ledger *Ledger
	sink   audit.Sink
	tools  map[string]*tool
}

// NewRegistry registers the standard banking tools over ledger.
func NewRegistry(ledger *Ledger, sink audit.Sink) *Registry {
	r := &Registry{ledger: ledger, sink: sink, tools: make(map[string]*tool)}
	r.register(&tool{
		name:        "get_account_balance",
		description: "Current balance for one account",
		requirement: Requirement{OwnPermission: iam.PermViewOwnAccounts, AllPermission: iam.PermViewAllAccounts},
		eventType:   audit.EventAccountAccess,
		owner:       accountOwner,
		run:         runBalance,
	})
	r.register(&tool{
		name:        "get_transaction_history",
		description: "Recent transactions for one account, newest first",
		requirement: Requirement{OwnPermission: iam.PermViewOwnAccounts, AllPermission: iam.PermViewAllAccounts},
		eventType:   audit.EventTransactionQuery,
		owner:       accountOwner,
		run:         runHistory,
	})
	return r
}

func (r *Registry) register(t *tool) { r.tools[t.name] = t }

// Names lists registered tool names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	return names
}

// Requirement returns the permission pair a tool documents.
func (r *Registry) Requirement(name string) (Requirement, bool) {
	t, ok := r.tools[name]
	if !ok {
		return Requirement{}, false
	}
	return t.requirement, true
}

// ResolveOwner maps a tool invocation to the id of the actor owning
// the touched resource, so the caller can run the two-tier check.
func (r *Registry) ResolveOwner(name string, args map[string]string) (string, error) {
	t, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return t.owner(r, args)
}

// Invoke runs a tool for actor and emits its audit event. Permission
// must already have been checked by the caller.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]string, actor iam.Actor) (string, error) {
	t, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	out, err := t.run(ctx, r, args)

	ev := audit.Event{
		TraceID: audit.TraceFrom(ctx),
		Type:    t.eventType,
		ActorID: actor.ID,
		Action:  name,
		Success: err == nil,
		Details: map[string]string{"account_id": args["account_id"]},
	}
	if err != nil {
		ev.Error = err.Error()
	}
	if emitErr := r.sink.Emit(ev); emitErr != nil {
		return "", fmt.Errorf("audit emit: %w", emitErr)
	}
	return out, err
}

func accountOwner(r *Registry, args map[string]string) (string, error) {
	id := args["account_id"]
	if id == "" {
		return "", fmt.Errorf("%w: account_id required", ErrBadArguments)
	}
	a, err := r.ledger.Account(id)
	if err != nil {
		return "", err
	}
	return a.OwnerID, nil
}

func runBalance(_ context.Context, r *Registry, args map[string]string) (string, error) {
	a, err := r.ledger.Account(args["account_id"])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("account %s (%s): balance %s", a.ID, a.Type, formatCents(a.Balance)), nil
}

func runHistory(_ context.Context, r *Registry, args map[string]string) (string, error) {
	limit := 10
	if raw := args["limit"]; raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return "", fmt.Errorf("%w: limit %q", ErrBadArguments, raw)
		}
		limit = n
	}
	txs, err := r.ledger.Transactions(args["account_id"], limit)
	if err != nil {
		return "", err
	}
	if len(txs) == 0 {
		return "no transactions", nil
	}
	var b strings.Builder
	for _, tx := range txs {
		fmt.Fprintf(&b, "%s  %s  %s\n", tx.PostedAt.Format("2006-01-02"), formatCents(tx.Amount), tx.Description)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func formatCents(c int64) string {
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s$%d.%02d", sign, c/100, c%100)
}
