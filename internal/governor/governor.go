// Package governor assembles the decision core from configuration:
// audit log, alert dispatcher, access gate, ticket store, compliance
// rules, collaborator clients and the engine. The CLI and the MCP
// server both build on it.
package governor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/primegate/primegate/internal/access"
	"github.com/primegate/primegate/internal/alert"
	"github.com/primegate/primegate/internal/audit"
	"github.com/primegate/primegate/internal/classifier"
	"github.com/primegate/primegate/internal/compliance"
	"github.com/primegate/primegate/internal/config"
	"github.com/primegate/primegate/internal/engine"
	"github.com/primegate/primegate/internal/escalation"
	"github.com/primegate/primegate/internal/iam"
	"github.com/primegate/primegate/internal/judge"
	"github.com/primegate/primegate/internal/tools"
)

// Governor is a fully wired decision core.
type Governor struct {
	Engine     *engine.Engine
	Store      *escalation.Store
	Gate       *access.Gate
	Sink       audit.Sink
	Dispatcher *alert.Dispatcher
	Rules      *compliance.RuleSet
	Config     *config.Config
	ConfigHash string

	log *audit.Log
}

// New builds a governor from the config file at path (empty path uses
// the default location and defaults when absent).
func New(ctx context.Context, path string) (*Governor, error) {
	cfg, hash, err := config.LoadWithHash(path)
	if err != nil {
		return nil, err
	}
	return build(ctx, cfg, hash)
}

func build(ctx context.Context, cfg *config.Config, hash string) (*Governor, error) {
	for _, p := range []string{cfg.AuditPath, cfg.StorePath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
			return nil, fmt.Errorf("governor: state dir: %w", err)
		}
	}

	log, err := audit.Open(cfg.AuditPath)
	if err != nil {
		return nil, fmt.Errorf("governor: audit log: %w", err)
	}

	dispatcher := alert.NewDispatcher(cfg.Alerts)

	// Audit write failures raise a SAFETY alert; they are never
	// dropped silently.
	sink := audit.NewAlerted(log, func(ev audit.Event, emitErr error) {
		dispatcher.Dispatch(alert.Event{
			Timestamp:  audit.Now(),
			TraceID:    ev.TraceID,
			ActorID:    ev.ActorID,
			Action:     "safety",
			Reason:     "audit write failed: " + emitErr.Error(),
			Severity:   alert.SeveritySafety,
			ConfigHash: hash,
		})
	})

	gate := access.NewGate(sink)

	store, err := escalation.Open(cfg.StorePath, gate, sink)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("governor: ticket store: %w", err)
	}

	rules, err := compliance.Load(cfg.RulesPath)
	if err != nil {
		store.Close()
		log.Close()
		return nil, fmt.Errorf("governor: compliance rules: %w", err)
	}

	cls := buildClassifier(cfg)
	jdg, err := buildJudge(ctx, cfg)
	if err != nil {
		store.Close()
		log.Close()
		return nil, err
	}

	ledger := tools.NewLedger()
	ledger.SeedDemo()
	registry := tools.NewRegistry(ledger, sink)

	eng := engine.New(cls, jdg, registry, gate, store, sink, rules, engine.Options{
		EscalationThreshold: cfg.Escalation.Threshold,
		SafetyMode:          cfg.Safety.Mode,
		ConfigHash:          hash,
	})

	return &Governor{
		Engine:     eng,
		Store:      store,
		Gate:       gate,
		Sink:       sink,
		Dispatcher: dispatcher,
		Rules:      rules,
		Config:     cfg,
		ConfigHash: hash,
		log:        log,
	}, nil
}

func buildClassifier(cfg *config.Config) classifier.Classifier {
	if cfg.Classifier.URL == "" {
		return classifier.Static{}
	}
	return classifier.NewHTTP(classifier.HTTPConfig{
		APIURL:  cfg.Classifier.URL,
		APIKey:  cfg.Classifier.APIKey,
		Timeout: time.Duration(cfg.Classifier.TimeoutSeconds) * time.Second,
	})
}

func buildJudge(ctx context.Context, cfg *config.Config) (judge.Judge, error) {
	switch cfg.Judge.Provider {
	case "bedrock":
		j, err := judge.NewBedrock(ctx, judge.BedrockConfig{
			Region:    cfg.Judge.Region,
			Model:     cfg.Judge.Model,
			MaxTokens: cfg.Judge.MaxTokens,
			AccessKey: cfg.Judge.AccessKey,
			SecretKey: cfg.Judge.SecretKey,
		})
		if err != nil {
			return nil, fmt.Errorf("governor: bedrock judge: %w", err)
		}
		return j, nil
	case "http", "":
		if cfg.Judge.URL == "" {
			// Ticket and audit commands work without a judgment
			// backend; governed requests fail closed.
			return unavailableJudge{}, nil
		}
		return judge.NewHTTP(judge.HTTPConfig{
			APIURL:    cfg.Judge.URL,
			APIKey:    cfg.Judge.APIKey,
			Model:     cfg.Judge.Model,
			MaxTokens: cfg.Judge.MaxTokens,
			Timeout:   time.Duration(cfg.Judge.TimeoutSeconds) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("governor: unknown judge provider %q", cfg.Judge.Provider)
	}
}

// unavailableJudge stands in when no judgment backend is configured.
type unavailableJudge struct{}

func (unavailableJudge) JudgeAndAct(context.Context, judge.Input) (judge.Judgment, error) {
	return judge.Judgment{}, fmt.Errorf("no judge configured: %w", judge.ErrUnavailable)
}

// Govern runs one request end to end and dispatches refusal and
// escalation alerts.
func (g *Governor) Govern(ctx context.Context, actor iam.Actor, text, imageRef string) (engine.Result, error) {
	res, err := g.Engine.Govern(ctx, engine.Request{Actor: actor, Text: text, ImageRef: imageRef})
	switch res.Action {
	case judge.ActionRefuse, judge.ActionEscalate:
		severity := alert.SeverityWarning
		if res.Action == judge.ActionRefuse {
			severity = alert.SeverityInfo
		}
		g.Dispatcher.Dispatch(alert.Event{
			Timestamp:  audit.Now(),
			TraceID:    res.TraceID,
			ActorID:    actor.ID,
			Action:     string(res.Action),
			Reason:     res.Reasoning,
			Severity:   severity,
			ConfigHash: g.ConfigHash,
		})
	}
	return res, err
}

// Close releases the store and audit log.
func (g *Governor) Close() error {
	var first error
	if err := g.Store.Close(); err != nil {
		first = err
	}
	if err := g.log.Close(); err != nil && first == nil {
		first = err
	}
	return first
}
