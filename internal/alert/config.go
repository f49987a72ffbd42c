package alert

// Severity labels an alert's urgency. SAFETY is reserved for internal
// integrity failures (audit write failures, store corruption) and is
// always dispatched regardless of event matching.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeveritySafety  Severity = "safety"
)

// Config defines a webhook alert destination.
type Config struct {
	URL     string            `yaml:"url"     json:"url"`
	Format  string            `yaml:"format"  json:"format"` // "generic", "slack", "pagerduty"
	Events  []string          `yaml:"events"  json:"events"` // ["refuse", "escalate", "safety"]
	Headers map[string]string `yaml:"headers" json:"headers"`
}

// Event is the payload sent to webhook endpoints.
type Event struct {
	Timestamp  string   `json:"timestamp"`
	TraceID    string   `json:"trace_id,omitempty"`
	ActorID    string   `json:"actor_id,omitempty"`
	Action     string   `json:"action"` // final action, or "safety" for integrity alerts
	Reason     string   `json:"reason"`
	Severity   Severity `json:"severity"`
	ConfigHash string   `json:"config_hash,omitempty"`
}
