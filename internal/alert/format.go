package alert

import (
	"encoding/json"
	"fmt"
)

// FormatPayload builds the webhook body for the given format.
func FormatPayload(format string, event Event) ([]byte, error) {
	switch format {
	case "slack":
		return formatSlack(event)
	case "pagerduty":
		return formatPagerDuty(event)
	default:
		return json.Marshal(event)
	}
}

func formatSlack(event Event) ([]byte, error) {
	payload := map[string]any{
		"blocks": []any{
			map[string]any{
				"type": "header",
				"text": map[string]any{
					"type": "plain_text",
					"text": fmt.Sprintf("primegate: %s", event.Action),
				},
			},
			map[string]any{
				"type": "section",
				"fields": []any{
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Actor:* %s", event.ActorID)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Severity:* %s", event.Severity)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Reason:* %s", event.Reason)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Trace:* %s", event.TraceID)},
				},
			},
		},
	}
	return json.Marshal(payload)
}

func formatPagerDuty(event Event) ([]byte, error) {
	severity := "info"
	switch event.Severity {
	case SeveritySafety:
		severity = "critical"
	case SeverityWarning:
		severity = "warning"
	}

	payload := map[string]any{
		"event_action": "trigger",
		"payload": map[string]any{
			"summary":  fmt.Sprintf("primegate %s: %s", event.Action, event.Reason),
			"severity": severity,
			"source":   "primegate",
			"custom_details": map[string]any{
				"actor_id":    event.ActorID,
				"trace_id":    event.TraceID,
				"reason":      event.Reason,
				"config_hash": event.ConfigHash,
			},
		},
	}
	return json.Marshal(payload)
}
