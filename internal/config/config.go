// Package config loads governor configuration from YAML, with defaults
// when no file exists. The raw file hash is recorded so audit events
// can pin the exact configuration a decision ran under.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/primegate/primegate/internal/alert"
)

// Escalation holds the human-review routing policy.
type Escalation struct {
	// Threshold is the minimum confidence for an ALLOW to execute
	// without review. ALLOW below the threshold escalates.
	Threshold float64 `yaml:"threshold"`
}

// Safety holds the risk thresholds communicated to the judgment
// collaborator.
type Safety struct {
	Mode            string  `yaml:"mode"` // "STRICT" or "BALANCED"
	ThresholdHigh   float64 `yaml:"threshold_high"`
	ThresholdMedium float64 `yaml:"threshold_medium"`
}

// Classifier configures the fast-path safety classifier endpoint.
type Classifier struct {
	URL            string `yaml:"url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Judge configures the LLM judgment collaborator.
type Judge struct {
	Provider       string `yaml:"provider"` // "http" (OpenAI-compatible) or "bedrock"
	URL            string `yaml:"url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	MaxTokens      int    `yaml:"max_tokens"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`

	// Bedrock-specific settings.
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// Config holds all governor parameters.
type Config struct {
	Escalation Escalation     `yaml:"escalation"`
	Safety     Safety         `yaml:"safety"`
	Classifier Classifier     `yaml:"classifier"`
	Judge      Judge          `yaml:"judge"`
	StorePath  string         `yaml:"store_path"`
	AuditPath  string         `yaml:"audit_path"`
	RulesPath  string         `yaml:"rules_path"`
	Alerts     []alert.Config `yaml:"alerts"`
}

// DefaultDir returns the default primegate state directory.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "primegate")
	}
	return filepath.Join(home, ".primegate")
}

// Default returns the built-in configuration.
func Default() *Config {
	dir := DefaultDir()
	return &Config{
		Escalation: Escalation{Threshold: 0.6},
		Safety: Safety{
			Mode:            "STRICT",
			ThresholdHigh:   0.8,
			ThresholdMedium: 0.4,
		},
		Classifier: Classifier{TimeoutSeconds: 10},
		Judge: Judge{
			Provider:       "http",
			MaxTokens:      600,
			TimeoutSeconds: 60,
		},
		StorePath: filepath.Join(dir, "escalations.db"),
		AuditPath: filepath.Join(dir, "audit.jsonl"),
	}
}

// Load loads configuration from a YAML file. Empty path falls back to
// ~/.primegate/config.yaml. Missing file returns defaults. Invalid
// YAML returns an error.
func Load(path string) (*Config, error) {
	cfg, _, err := LoadWithHash(path)
	return cfg, err
}

// LoadWithHash loads configuration and returns its SHA-256 hash,
// computed over the raw YAML bytes on disk. When no file exists
// (defaults used), the hash is the SHA-256 of empty input.
func LoadWithHash(path string) (*Config, string, error) {
	if path == "" {
		path = filepath.Join(DefaultDir(), "config.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			h := sha256.Sum256(nil)
			return Default(), "sha256:" + hex.EncodeToString(h[:]), nil
		}
		return nil, "", fmt.Errorf("config: read: %w", err)
	}

	h := sha256.Sum256(data)
	hash := "sha256:" + hex.EncodeToString(h[:])

	// Start with defaults; YAML overwrites only specified fields.
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", fmt.Errorf("config: parse: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, "", err
	}
	return cfg, hash, nil
}

func (c *Config) validate() error {
	if c.Escalation.Threshold < 0 || c.Escalation.Threshold > 1 {
		return fmt.Errorf("config: escalation.threshold %.2f out of [0,1]", c.Escalation.Threshold)
	}
	if c.Safety.ThresholdMedium > c.Safety.ThresholdHigh {
		return fmt.Errorf("config: safety.threshold_medium %.2f exceeds threshold_high %.2f",
			c.Safety.ThresholdMedium, c.Safety.ThresholdHigh)
	}
	return nil
}
