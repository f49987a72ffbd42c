package classifier

import (
	"context"
	"strings"
)

// Static is a keyword-based screen used when no classifier endpoint is
// configured. It catches only blatant patterns; the judgment model
// remains the real arbiter.
type Static struct{}

var staticPatterns = map[Category][]string{
	CategoryPromptInjection: {
		"ignore previous instructions",
		"ignore your instructions",
		"system prompt",
		"you are now",
	},
	CategoryIllicitFinance: {
		"launder",
		"sanctions evasion",
		"structuring deposits",
	},
	CategoryDataExfiltration: {
		"all customer records",
		"dump the database",
		"every account number",
	},
}

// Classify matches text against the static pattern table. Image
// references are not inspected.
func (Static) Classify(_ context.Context, text, _ string) (Classification, error) {
	lower := strings.ToLower(text)
	for cat, patterns := range staticPatterns {
		for _, p := range patterns {
			if strings.Contains(lower, p) {
				return Classification{Safe: false, Category: cat, Confidence: 0.9}, nil
			}
		}
	}
	return Classification{Safe: true, Category: CategoryNone, Confidence: 0.5}, nil
}
