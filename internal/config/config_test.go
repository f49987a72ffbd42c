package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, hash, err := LoadWithHash(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadWithHash: %v", err)
	}
	if cfg.Escalation.Threshold != 0.6 {
		t.Errorf("default escalation threshold = %v, want 0.6", cfg.Escalation.Threshold)
	}
	if cfg.Safety.Mode != "STRICT" {
		t.Errorf("default safety mode = %q, want STRICT", cfg.Safety.Mode)
	}
	// SHA-256 of empty input.
	want := "sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if hash != want {
		t.Errorf("defaults hash = %q, want %q", hash, want)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
escalation:
  threshold: 0.75
judge:
  provider: bedrock
  region: us-east-1
  model: anthropic.claude-3-5-sonnet-20241022-v2:0
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, hash, err := LoadWithHash(path)
	if err != nil {
		t.Fatalf("LoadWithHash: %v", err)
	}
	if cfg.Escalation.Threshold != 0.75 {
		t.Errorf("threshold = %v, want 0.75", cfg.Escalation.Threshold)
	}
	if cfg.Judge.Provider != "bedrock" || cfg.Judge.Region != "us-east-1" {
		t.Errorf("judge = %+v, want bedrock/us-east-1", cfg.Judge)
	}
	// Unspecified fields keep defaults.
	if cfg.Safety.ThresholdHigh != 0.8 {
		t.Errorf("threshold_high = %v, want default 0.8", cfg.Safety.ThresholdHigh)
	}
	if !strings.HasPrefix(hash, "sha256:") || len(hash) != len("sha256:")+64 {
		t.Errorf("malformed hash %q", hash)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("escalation: [not a map"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := LoadWithHash(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	for _, body := range []string{
		"escalation:\n  threshold: 1.5\n",
		"safety:\n  threshold_medium: 0.9\n  threshold_high: 0.5\n",
	} {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, _, err := LoadWithHash(path); err == nil {
			t.Errorf("expected validation error for %q", body)
		}
	}
}

func TestHashChangesWithContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("escalation:\n  threshold: 0.5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, h1, err := LoadWithHash(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("escalation:\n  threshold: 0.7\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, h2, err := LoadWithHash(path)
	if err != nil {
		t.Fatal(err)
	}
	if h1 == h2 {
		t.Error("hash did not change with content")
	}
}

func TestWatchFiresOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("escalation:\n  threshold: 0.5\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fired := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func() {
			select {
			case fired <- struct{}{}:
			default:
			}
		})
	}()

	// Give the watcher time to register before writing.
	time.Sleep(200 * time.Millisecond)
	if err := os.WriteFile(path, []byte("escalation:\n  threshold: 0.9\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("watch callback never fired")
	}

	cancel()
	if err := <-done; err != context.Canceled {
		t.Errorf("Watch returned %v, want context.Canceled", err)
	}
}
