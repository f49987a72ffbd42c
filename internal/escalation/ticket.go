package escalation

import (
	"time"
)

// Status represents the review state of an escalation ticket.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Ticket is a request routed to human review. Tickets are never
// deleted; resolution is a write-once transition out of pending.
// Invariant: Status != pending implies ResolvedBy and ResolvedAt set,
// with ResolvedAt >= CreatedAt.
type Ticket struct {
	ID             string     `json:"id"`
	CreatedAt      time.Time  `json:"created_at"`
	RequesterID    string     `json:"requester_id"`
	InputText      string     `json:"input_text"`
	AgentReasoning string     `json:"agent_reasoning"`
	Confidence     float64    `json:"confidence"`
	Status         Status     `json:"status"`
	ResolvedBy     string     `json:"resolved_by,omitempty"`
	ResolutionNote string     `json:"resolution_note,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

// Stats summarizes the queue for review dashboards.
type Stats struct {
	Total         int     `json:"total"`
	Pending       int     `json:"pending"`
	Approved      int     `json:"approved"`
	Rejected      int     `json:"rejected"`
	AvgConfidence float64 `json:"avg_confidence"`
}
