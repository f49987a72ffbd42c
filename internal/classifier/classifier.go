// Package classifier provides the fast-path safety screen that runs
// before any request reaches the judgment model. An unsafe verdict
// short-circuits the decision pipeline.
package classifier

import (
	"context"
	"errors"
)

// Category labels why an input was flagged. NONE means the input
// passed the screen.
type Category string

const (
	CategoryNone              Category = "none"
	CategoryPromptInjection   Category = "prompt_injection"
	CategorySocialEngineering Category = "social_engineering"
	CategoryIllicitFinance    Category = "illicit_finance"
	CategoryDataExfiltration  Category = "data_exfiltration"
	CategoryHarmfulContent    Category = "harmful_content"
)

// Classification is the safety verdict for a single input.
type Classification struct {
	Safe       bool     `json:"safe"`
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"`
}

// ErrUnavailable reports that the classifier endpoint could not be
// reached. Callers fail closed on it.
var ErrUnavailable = errors.New("classifier unavailable")

// Classifier screens raw user input before judgment. imageRef is an
// optional reference to an attached image and may be empty.
type Classifier interface {
	Classify(ctx context.Context, text, imageRef string) (Classification, error)
}
