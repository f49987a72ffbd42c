package judge

import (
	"fmt"
	"strings"
)

const promptHeader = `You are the governance judge for a retail banking assistant. You receive one user request and must decide how the assistant may act on it.

Decide one of:
- allow: the request is compliant; the assistant may answer or act
- refuse: the request violates policy or cannot be served safely
- rewrite: the request is salvageable if rephrased; provide the rephrasing
- escalate: a human must review before the assistant acts

You may instead request exactly one banking tool call when account data is needed before deciding. Tools available: get_account_balance(account_id), get_transaction_history(account_id, limit).

Return ONLY valid JSON, no markdown fences, no commentary. Either a decision:
{"action":"<allow|refuse|rewrite|escalate>","reasoning":"<why>","violated_rule":<ordinal or 0>,"confidence":<0.0-1.0>,"rewritten_content":"<only for rewrite>"}

or a tool call:
{"tool_call":{"name":"<tool>","arguments":{"<key>":"<value>"}},"reasoning":"<why>"}

When the request violates a principle, cite its number in violated_rule.`

// BuildSystemPrompt assembles the judgment system prompt from the
// active compliance rules and safety mode.
func BuildSystemPrompt(in Input) string {
	var b strings.Builder
	b.WriteString(promptHeader)
	b.WriteString("\n\n")
	if in.Rules != nil && in.Rules.Len() > 0 {
		b.WriteString(in.Rules.FormatSection())
		b.WriteString("\n")
	}
	if in.SafetyMode != "" {
		fmt.Fprintf(&b, "Safety mode: %s. In STRICT mode, prefer refuse or escalate over allow when uncertain.\n", in.SafetyMode)
	}
	fmt.Fprintf(&b, "Requester role: %s.", in.ActorRole)
	return b.String()
}

// BuildUserMessage assembles the user turn, appending prior tool
// output when the judgment loop re-enters after a tool call.
func BuildUserMessage(in Input) string {
	if in.Context == "" {
		return in.Text
	}
	return in.Text + "\n\nTool output:\n" + in.Context
}
