// Package judge wraps the LLM judgment collaborator. The model is
// trusted only at a narrow boundary: it returns either a final
// decision or a tool invocation request, in strict JSON, and anything
// else is rejected as malformed.
package judge

import (
	"context"
	"errors"

	"github.com/primegate/primegate/internal/compliance"
	"github.com/primegate/primegate/internal/iam"
)

// Action is the decision verb for a governed request.
type Action string

const (
	ActionAllow    Action = "allow"
	ActionRefuse   Action = "refuse"
	ActionRewrite  Action = "rewrite"
	ActionEscalate Action = "escalate"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionAllow, ActionRefuse, ActionRewrite, ActionEscalate:
		return true
	}
	return false
}

// DecisionRecord is a final verdict from the judgment model.
type DecisionRecord struct {
	Action           Action  `json:"action"`
	Reasoning        string  `json:"reasoning"`
	ViolatedRule     int     `json:"violated_rule,omitempty"` // 1-based rule ordinal, 0 = none
	Confidence       float64 `json:"confidence"`
	RewrittenContent string  `json:"rewritten_content,omitempty"`
}

// ToolInvocationRequest asks the engine to run a banking tool on the
// requester's behalf. The engine, not the model, enforces permission.
type ToolInvocationRequest struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments"`
	Reasoning string            `json:"reasoning"`
}

// Judgment is the tagged union returned by a Judge: exactly one of
// Decision or ToolCall is set.
type Judgment struct {
	Decision *DecisionRecord
	ToolCall *ToolInvocationRequest
}

// Input carries everything the judgment model may see for one request.
type Input struct {
	Text       string
	ActorRole  iam.Role
	Context    string // prior tool output, empty on first pass
	Rules      *compliance.RuleSet
	SafetyMode string
}

var (
	// ErrMalformedDecision reports model output that does not conform
	// to the decision contract. The engine fails closed on it.
	ErrMalformedDecision = errors.New("malformed decision output")

	// ErrUnavailable reports that the judgment backend could not be
	// reached. The engine fails closed on it.
	ErrUnavailable = errors.New("judgment unavailable")
)

// Judge produces one judgment per governed request.
type Judge interface {
	JudgeAndAct(ctx context.Context, in Input) (Judgment, error)
}
