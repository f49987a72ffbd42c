package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/neurorouter"
)

// HTTPConfig holds parameters for an OpenAI-compatible judgment
// endpoint.
type HTTPConfig struct {
	APIURL    string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// HTTP is a Judge backed by an OpenAI-compatible chat endpoint.
type HTTP struct {
	cfg    HTTPConfig
	client *http.Client
}

// NewHTTP returns a Judge that calls cfg.APIURL.
func NewHTTP(cfg HTTPConfig) *HTTP {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 600
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &HTTP{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

// JudgeAndAct sends the request for judgment. Transport failures wrap
// ErrUnavailable; HTTP 429 wraps neurorouter.ErrRateLimited;
// nonconforming output wraps ErrMalformedDecision.
func (h *HTTP) JudgeAndAct(ctx context.Context, in Input) (Judgment, error) {
	messages := []map[string]string{
		{"role": "system", "content": BuildSystemPrompt(in)},
		{"role": "user", "content": BuildUserMessage(in)},
	}
	body, _ := json.Marshal(map[string]interface{}{
		"model":       h.cfg.Model,
		"messages":    messages,
		"max_tokens":  h.cfg.MaxTokens,
		"temperature": 0,
	})

	req, err := http.NewRequestWithContext(ctx, "POST", h.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return Judgment{}, fmt.Errorf("create request: %w", err)
	}
	if h.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.cfg.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return Judgment{}, fmt.Errorf("judge request failed: %w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusTooManyRequests {
		return Judgment{}, fmt.Errorf("judge: %w", neurorouter.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return Judgment{}, fmt.Errorf("judge HTTP %d: %s: %w",
			resp.StatusCode, strings.TrimSpace(truncate(string(respBody), 200)), ErrUnavailable)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil || len(result.Choices) == 0 {
		return Judgment{}, fmt.Errorf("empty judge response: %w", ErrUnavailable)
	}

	return Parse(strings.TrimSpace(result.Choices[0].Message.Content))
}
