package mcp

import (
	"context"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/primegate/primegate/internal/access"
	"github.com/primegate/primegate/internal/escalation"
	"github.com/primegate/primegate/internal/iam"
)

// GovernInput defines parameters for the primegate_govern tool.
type GovernInput struct {
	ActorID  string `json:"actor_id" jsonschema:"acting identity"`
	Role     string `json:"role" jsonschema:"actor role (user/staff/admin/system)"`
	Text     string `json:"text" jsonschema:"user request text"`
	ImageRef string `json:"image_ref,omitempty" jsonschema:"optional attached image reference"`
}

// GovernOutput is the terminal decision for one request.
type GovernOutput struct {
	TraceID      string  `json:"trace_id"`
	Action       string  `json:"action"`
	Response     string  `json:"response"`
	Reasoning    string  `json:"reasoning,omitempty"`
	Confidence   float64 `json:"confidence"`
	ViolatedRule int     `json:"violated_rule,omitempty"`
	TicketID     string  `json:"ticket_id,omitempty"`
	Rewritten    bool    `json:"rewritten,omitempty"`
}

// TicketsInput defines parameters for the primegate_tickets tool.
type TicketsInput struct {
	ActorID string `json:"actor_id" jsonschema:"acting identity"`
	Role    string `json:"role" jsonschema:"actor role (user/staff/admin/system)"`
}

// TicketsOutput lists visible tickets.
type TicketsOutput struct {
	Tickets []TicketItem `json:"tickets"`
}

// TicketItem is one ticket in a listing.
type TicketItem struct {
	ID          string  `json:"id"`
	CreatedAt   string  `json:"created_at"`
	RequesterID string  `json:"requester_id"`
	InputText   string  `json:"input_text"`
	Reasoning   string  `json:"reasoning"`
	Confidence  float64 `json:"confidence"`
	Status      string  `json:"status"`
	ResolvedBy  string  `json:"resolved_by,omitempty"`
}

// PendingInput is empty.
type PendingInput struct{}

// PendingOutput lists tickets awaiting review.
type PendingOutput struct {
	Tickets []TicketItem `json:"tickets"`
}

// ResolveInput defines parameters for the primegate_resolve tool.
type ResolveInput struct {
	ActorID  string `json:"actor_id" jsonschema:"resolving identity"`
	Role     string `json:"role" jsonschema:"actor role (must hold resolve_escalations)"`
	TicketID string `json:"ticket_id" jsonschema:"ticket to resolve"`
	Decision string `json:"decision" jsonschema:"approved or rejected"`
	Note     string `json:"note,omitempty" jsonschema:"resolution note"`
}

// ResolveOutput confirms the resolution.
type ResolveOutput struct {
	TicketID string `json:"ticket_id"`
	Status   string `json:"status"`
}

// StatsInput is empty.
type StatsInput struct{}

// StatsOutput summarizes the queue.
type StatsOutput struct {
	Total         int     `json:"total"`
	Pending       int     `json:"pending"`
	Approved      int     `json:"approved"`
	Rejected      int     `json:"rejected"`
	AvgConfidence float64 `json:"avg_confidence"`
}

func actorFrom(id, role string) (iam.Actor, error) {
	r := iam.Role(role)
	if !r.Valid() {
		return iam.Actor{}, fmt.Errorf("unknown role %q", role)
	}
	if id == "" {
		return iam.Actor{}, fmt.Errorf("actor_id required")
	}
	return iam.NewActor(id, r, ""), nil
}

func ticketItem(t escalation.Ticket) TicketItem {
	return TicketItem{
		ID:          t.ID,
		CreatedAt:   t.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		RequesterID: t.RequesterID,
		InputText:   t.InputText,
		Reasoning:   t.AgentReasoning,
		Confidence:  t.Confidence,
		Status:      string(t.Status),
		ResolvedBy:  t.ResolvedBy,
	}
}

func (s *Server) handleGovern(ctx context.Context, req *mcpsdk.CallToolRequest, input GovernInput) (*mcpsdk.CallToolResult, GovernOutput, error) {
	actor, err := actorFrom(input.ActorID, input.Role)
	if err != nil {
		return nil, GovernOutput{}, err
	}
	res, err := s.governor().Govern(ctx, actor, input.Text, input.ImageRef)
	if err != nil {
		// Fail-closed outcomes still return the safe user text.
		return nil, GovernOutput{
			TraceID:  res.TraceID,
			Action:   string(res.Action),
			Response: res.Response,
		}, nil
	}
	return nil, GovernOutput{
		TraceID:      res.TraceID,
		Action:       string(res.Action),
		Response:     res.Response,
		Reasoning:    res.Reasoning,
		Confidence:   res.Confidence,
		ViolatedRule: res.ViolatedRule,
		TicketID:     res.TicketID,
		Rewritten:    res.Rewritten,
	}, nil
}

func (s *Server) handleTickets(ctx context.Context, req *mcpsdk.CallToolRequest, input TicketsInput) (*mcpsdk.CallToolResult, TicketsOutput, error) {
	actor, err := actorFrom(input.ActorID, input.Role)
	if err != nil {
		return nil, TicketsOutput{}, err
	}
	tickets, err := s.governor().Store.List(ctx, actor)
	if err != nil {
		var denied *access.DeniedError
		if errors.As(err, &denied) {
			return nil, TicketsOutput{}, fmt.Errorf("access denied: %s", denied.Permission)
		}
		return nil, TicketsOutput{}, err
	}
	out := TicketsOutput{Tickets: make([]TicketItem, 0, len(tickets))}
	for _, t := range tickets {
		out.Tickets = append(out.Tickets, ticketItem(t))
	}
	return nil, out, nil
}

func (s *Server) handlePending(ctx context.Context, req *mcpsdk.CallToolRequest, _ PendingInput) (*mcpsdk.CallToolResult, PendingOutput, error) {
	tickets, err := s.governor().Store.Pending(ctx)
	if err != nil {
		return nil, PendingOutput{}, err
	}
	out := PendingOutput{Tickets: make([]TicketItem, 0, len(tickets))}
	for _, t := range tickets {
		out.Tickets = append(out.Tickets, ticketItem(t))
	}
	return nil, out, nil
}

func (s *Server) handleResolve(ctx context.Context, req *mcpsdk.CallToolRequest, input ResolveInput) (*mcpsdk.CallToolResult, ResolveOutput, error) {
	actor, err := actorFrom(input.ActorID, input.Role)
	if err != nil {
		return nil, ResolveOutput{}, err
	}
	decision := escalation.Status(input.Decision)
	if err := s.governor().Store.Resolve(ctx, actor, input.TicketID, decision, input.Note); err != nil {
		var denied *access.DeniedError
		switch {
		case errors.As(err, &denied):
			return nil, ResolveOutput{}, fmt.Errorf("access denied: %s", denied.Permission)
		case errors.Is(err, escalation.ErrNotFound):
			return nil, ResolveOutput{}, fmt.Errorf("ticket %s not found", input.TicketID)
		case errors.Is(err, escalation.ErrAlreadyResolved):
			return nil, ResolveOutput{}, fmt.Errorf("ticket %s already resolved", input.TicketID)
		}
		return nil, ResolveOutput{}, err
	}
	return nil, ResolveOutput{TicketID: input.TicketID, Status: input.Decision}, nil
}

func (s *Server) handleStats(ctx context.Context, req *mcpsdk.CallToolRequest, _ StatsInput) (*mcpsdk.CallToolResult, StatsOutput, error) {
	stats, err := s.governor().Store.Stats(ctx)
	if err != nil {
		return nil, StatsOutput{}, err
	}
	return nil, StatsOutput{
		Total:         stats.Total,
		Pending:       stats.Pending,
		Approved:      stats.Approved,
		Rejected:      stats.Rejected,
		AvgConfidence: stats.AvgConfidence,
	}, nil
}
