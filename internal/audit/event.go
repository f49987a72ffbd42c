package audit

import "time"

// EventType classifies audit events.
type EventType string

const (
	EventUserQuery           EventType = "user_query"
	EventAccountAccess       EventType = "account_access"
	EventTransactionQuery    EventType = "transaction_query"
	EventToolCall            EventType = "tool_call"
	EventSafetyBlock         EventType = "safety_block"
	EventComplianceViolation EventType = "compliance_violation"
	EventEscalationCreated   EventType = "escalation_created"
	EventEscalationResolved  EventType = "escalation_resolved"
	EventAccessDecision      EventType = "access_control_decision"
	EventRequestIncomplete   EventType = "request_incomplete"
)

// TimestampFormat is the layout used in event timestamps.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// Event is one line in the hash-chained JSONL audit log. Details is a
// map[string]string rather than map[string]any so json.Marshal output is
// deterministic (sorted keys) and the hash chain is reproducible.
type Event struct {
	Timestamp string            `json:"ts"`
	TraceID   string            `json:"trace_id,omitempty"`
	Type      EventType         `json:"event_type"`
	ActorID   string            `json:"actor_id"`
	Action    string            `json:"action"`
	Success   bool              `json:"success"`
	Details   map[string]string `json:"details,omitempty"`
	Error     string            `json:"error,omitempty"`
	PrevHash  string            `json:"prev_hash,omitempty"`
}

// Now returns the current UTC time in the audit timestamp layout.
func Now() string {
	return time.Now().UTC().Format(TimestampFormat)
}

// Sink receives audit events. Implementations must be safe for
// concurrent use and must never drop events silently: a failed write
// is reported through the returned error.
type Sink interface {
	Emit(Event) error
}

// FailureFunc is invoked when a sink write fails. Used to raise a
// SAFETY-tier alert out of band; the original error still propagates.
type FailureFunc func(Event, error)

// alerted wraps a Sink and calls onFailure for every failed Emit.
type alerted struct {
	sink      Sink
	onFailure FailureFunc
}

// NewAlerted returns a Sink that forwards to s and invokes onFailure
// whenever s.Emit returns an error.
func NewAlerted(s Sink, onFailure FailureFunc) Sink {
	return &alerted{sink: s, onFailure: onFailure}
}

func (a *alerted) Emit(e Event) error {
	err := a.sink.Emit(e)
	if err != nil && a.onFailure != nil {
		a.onFailure(e, err)
	}
	return err
}
