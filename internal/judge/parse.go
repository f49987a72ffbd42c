package judge

import (
	"encoding/json"
	"fmt"
	"strings"
)

// rawJudgment is the superset wire shape; exactly one arm must be
// populated.
type rawJudgment struct {
	Action           Action            `json:"action"`
	Reasoning        string            `json:"reasoning"`
	ViolatedRule     int               `json:"violated_rule"`
	Confidence       *float64          `json:"confidence"`
	RewrittenContent string            `json:"rewritten_content"`
	ToolCall         *rawToolCall      `json:"tool_call"`
}

type rawToolCall struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments"`
}

// Parse validates model output against the judgment contract. Any
// deviation returns ErrMalformedDecision with detail.
func Parse(raw string) (Judgment, error) {
	raw = cleanJSON(raw)

	var rj rawJudgment
	if err := json.Unmarshal([]byte(raw), &rj); err != nil {
		return Judgment{}, fmt.Errorf("%w: not JSON: %s", ErrMalformedDecision, truncate(raw, 200))
	}

	if rj.ToolCall != nil {
		if rj.Action != "" {
			return Judgment{}, fmt.Errorf("%w: both decision and tool_call present", ErrMalformedDecision)
		}
		if rj.ToolCall.Name == "" {
			return Judgment{}, fmt.Errorf("%w: tool_call missing name", ErrMalformedDecision)
		}
		args := rj.ToolCall.Arguments
		if args == nil {
			args = map[string]string{}
		}
		return Judgment{ToolCall: &ToolInvocationRequest{
			Name:      rj.ToolCall.Name,
			Arguments: args,
			Reasoning: rj.Reasoning,
		}}, nil
	}

	if !rj.Action.Valid() {
		return Judgment{}, fmt.Errorf("%w: unknown action %q", ErrMalformedDecision, rj.Action)
	}
	if rj.Confidence == nil {
		return Judgment{}, fmt.Errorf("%w: missing confidence", ErrMalformedDecision)
	}
	if *rj.Confidence < 0 || *rj.Confidence > 1 {
		return Judgment{}, fmt.Errorf("%w: confidence %.2f out of [0,1]", ErrMalformedDecision, *rj.Confidence)
	}
	if rj.Action == ActionRewrite && strings.TrimSpace(rj.RewrittenContent) == "" {
		return Judgment{}, fmt.Errorf("%w: rewrite without rewritten_content", ErrMalformedDecision)
	}
	if rj.ViolatedRule < 0 {
		return Judgment{}, fmt.Errorf("%w: negative violated_rule", ErrMalformedDecision)
	}

	return Judgment{Decision: &DecisionRecord{
		Action:           rj.Action,
		Reasoning:        rj.Reasoning,
		ViolatedRule:     rj.ViolatedRule,
		Confidence:       *rj.Confidence,
		RewrittenContent: rj.RewrittenContent,
	}}, nil
}

// cleanJSON strips markdown fences and leading/trailing whitespace.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
