// Package engine implements the governance decision core. Each
// request runs through a fixed state machine: fast-path safety
// classification, LLM judgment, permission enforcement before any
// tool execution, and a terminal action of allow, refuse, rewrite or
// escalate. The engine, not the model, is the authority on
// permission, and every collaborator failure fails closed.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/primegate/primegate/internal/access"
	"github.com/primegate/primegate/internal/audit"
	"github.com/primegate/primegate/internal/classifier"
	"github.com/primegate/primegate/internal/compliance"
	"github.com/primegate/primegate/internal/escalation"
	"github.com/primegate/primegate/internal/iam"
	"github.com/primegate/primegate/internal/judge"
	"github.com/primegate/primegate/internal/tools"
)

// ErrPersistence reports that a ticket or audit write failed. The
// request fails with it rather than downgrading to a silent allow or
// refuse.
var ErrPersistence = errors.New("persistence failure")

// Collaborator bounds. One rewrite per request; tool calls are capped
// so a looping model cannot hold a request open.
const (
	maxRewrites  = 1
	maxToolCalls = 2
)

// TicketStore is the slice of the escalation store the engine needs.
type TicketStore interface {
	Add(ctx context.Context, t escalation.Ticket) (string, error)
}

// ToolRunner executes banking tools and documents their permission
// requirements.
type ToolRunner interface {
	Requirement(name string) (tools.Requirement, bool)
	ResolveOwner(name string, args map[string]string) (string, error)
	Invoke(ctx context.Context, name string, args map[string]string, actor iam.Actor) (string, error)
}

// Options are the engine policy knobs.
type Options struct {
	// EscalationThreshold is the minimum confidence for an ALLOW to
	// execute without review.
	EscalationThreshold float64
	// SafetyMode is passed through to the judgment prompt.
	SafetyMode string
	// ConfigHash pins the configuration a decision ran under; carried
	// on terminal audit events.
	ConfigHash string
}

// Request is one governed user request.
type Request struct {
	Actor    iam.Actor
	Text     string
	ImageRef string
}

// Result is the terminal outcome of one request.
type Result struct {
	TraceID      string
	Action       judge.Action
	Reasoning    string
	ViolatedRule int
	Confidence   float64
	Response     string // user-visible text
	ToolOutput   string // last tool result, set on allow after a tool ran
	TicketID     string // set when the request escalated
	Rewritten    bool   // a rewrite pass was applied
}

// Engine orchestrates one decision per request.
type Engine struct {
	classifier classifier.Classifier
	judge      judge.Judge
	tools      ToolRunner
	gate       *access.Gate
	store      TicketStore
	sink       audit.Sink
	rules      *compliance.RuleSet
	opts       Options
}

// New wires an engine. rules may be empty but not nil.
func New(c classifier.Classifier, j judge.Judge, t ToolRunner, gate *access.Gate,
	store TicketStore, sink audit.Sink, rules *compliance.RuleSet, opts Options) *Engine {
	return &Engine{
		classifier: c,
		judge:      j,
		tools:      t,
		gate:       gate,
		store:      store,
		sink:       sink,
		rules:      rules,
		opts:       opts,
	}
}

// Govern runs one request to a terminal state. The returned Result is
// always safe to show the requester; the error carries the typed
// cause when the request failed closed.
func (e *Engine) Govern(ctx context.Context, req Request) (Result, error) {
	traceID := uuid.NewString()
	ctx = audit.WithTrace(ctx, traceID)
	res := Result{TraceID: traceID}

	// The agent surface itself is permissioned.
	if err := e.gate.Check(ctx, req.Actor, iam.PermUseAgent); err != nil {
		return e.refuse(ctx, req, res, "insufficient permission", 0, 1.0)
	}

	cls, err := e.classifier.Classify(ctx, req.Text, req.ImageRef)
	if err != nil {
		if ctx.Err() != nil {
			return e.incomplete(ctx, req, res)
		}
		res, terr := e.refuse(ctx, req, res, "safety screening unavailable", 0, 1.0)
		if terr != nil {
			return res, terr
		}
		return res, fmt.Errorf("classify: %w", err)
	}
	if !cls.Safe {
		// Fast path is authoritative for blocking; the judge never runs.
		e.emit(ctx, audit.Event{
			Type:    audit.EventSafetyBlock,
			ActorID: req.Actor.ID,
			Action:  "classifier_block",
			Success: true,
			Details: map[string]string{
				"category":   string(cls.Category),
				"confidence": formatFloat(cls.Confidence),
			},
		})
		return e.refuse(ctx, req, res, string(cls.Category), 0, cls.Confidence)
	}

	text := req.Text
	toolContext := ""
	rewrites := 0
	toolCalls := 0

	for {
		if ctx.Err() != nil {
			return e.incomplete(ctx, req, res)
		}

		jm, err := e.judge.JudgeAndAct(ctx, judge.Input{
			Text:       text,
			ActorRole:  req.Actor.Role,
			Context:    toolContext,
			Rules:      e.rules,
			SafetyMode: e.opts.SafetyMode,
		})
		if err != nil {
			if ctx.Err() != nil {
				return e.incomplete(ctx, req, res)
			}
			res, terr := e.refuse(ctx, req, res, "judgment unavailable", 0, 1.0)
			if terr != nil {
				return res, terr
			}
			return res, fmt.Errorf("judge: %w", err)
		}

		if jm.ToolCall != nil {
			out, forced, err := e.runTool(ctx, req, jm.ToolCall, &toolCalls)
			if err != nil {
				return res, err
			}
			if forced != "" {
				return e.refuse(ctx, req, res, forced, 0, 1.0)
			}
			toolContext = out
			continue
		}

		d := jm.Decision
		if d.ViolatedRule > 0 {
			e.emitViolation(ctx, req, d)
		}

		switch d.Action {
		case judge.ActionAllow:
			if d.Confidence < e.opts.EscalationThreshold {
				// Low-confidence approvals are never auto-executed.
				return e.escalate(ctx, req, res, text,
					fmt.Sprintf("allow downgraded below threshold %.2f: %s", e.opts.EscalationThreshold, d.Reasoning),
					d.Confidence)
			}
			res.Action = judge.ActionAllow
			res.Reasoning = d.Reasoning
			res.Confidence = d.Confidence
			res.ViolatedRule = d.ViolatedRule
			res.ToolOutput = toolContext
			res.Response = toolContext
			res.Rewritten = rewrites > 0
			if err := e.terminal(ctx, req, res); err != nil {
				return failGeneric(res), err
			}
			return res, nil

		case judge.ActionRefuse:
			res.Rewritten = rewrites > 0
			return e.refuse(ctx, req, res, d.Reasoning, d.ViolatedRule, d.Confidence)

		case judge.ActionRewrite:
			rewrites++
			if rewrites > maxRewrites {
				return e.refuse(ctx, req, res, "request could not be safely rephrased", d.ViolatedRule, d.Confidence)
			}
			text = d.RewrittenContent
			toolContext = ""
			res.Rewritten = true

			// The rewritten text re-enters the fast path.
			cls, err := e.classifier.Classify(ctx, text, "")
			if err != nil {
				if ctx.Err() != nil {
					return e.incomplete(ctx, req, res)
				}
				res, terr := e.refuse(ctx, req, res, "safety screening unavailable", 0, 1.0)
				if terr != nil {
					return res, terr
				}
				return res, fmt.Errorf("classify rewrite: %w", err)
			}
			if !cls.Safe {
				e.emit(ctx, audit.Event{
					Type:    audit.EventSafetyBlock,
					ActorID: req.Actor.ID,
					Action:  "classifier_block_rewrite",
					Success: true,
					Details: map[string]string{"category": string(cls.Category)},
				})
				return e.refuse(ctx, req, res, string(cls.Category), 0, cls.Confidence)
			}

		case judge.ActionEscalate:
			res.Rewritten = rewrites > 0
			return e.escalate(ctx, req, res, text, d.Reasoning, d.Confidence)

		default:
			res, terr := e.refuse(ctx, req, res, "judgment unavailable", 0, 1.0)
			if terr != nil {
				return res, terr
			}
			return res, fmt.Errorf("govern: %w: action %q", judge.ErrMalformedDecision, d.Action)
		}
	}
}

// runTool enforces permission and executes one proposed tool call.
// forced is a nonempty refusal reason when the proposal must be
// refused; err is a hard failure.
func (e *Engine) runTool(ctx context.Context, req Request, tc *judge.ToolInvocationRequest, toolCalls *int) (out, forced string, err error) {
	*toolCalls++
	e.emit(ctx, audit.Event{
		Type:    audit.EventToolCall,
		ActorID: req.Actor.ID,
		Action:  tc.Name,
		Success: true,
		Details: map[string]string{"reasoning": tc.Reasoning},
	})

	if *toolCalls > maxToolCalls {
		return "", "tool call limit exceeded", nil
	}

	requirement, ok := e.tools.Requirement(tc.Name)
	if !ok {
		return "", fmt.Sprintf("unknown tool %q", tc.Name), nil
	}

	ownerID, err := e.tools.ResolveOwner(tc.Name, tc.Arguments)
	if err != nil {
		return "", "tool failure: " + err.Error(), nil
	}

	// Permission is decided here, never by the model.
	if err := e.gate.CheckResource(ctx, req.Actor, requirement.OwnPermission, requirement.AllPermission, ownerID); err != nil {
		var denied *access.DeniedError
		if errors.As(err, &denied) {
			return "", "insufficient permission", nil
		}
		return "", "", err
	}

	result, err := e.tools.Invoke(ctx, tc.Name, tc.Arguments, req.Actor)
	if err != nil {
		return "", "tool failure: " + err.Error(), nil
	}
	return result, "", nil
}

// escalate persists a review ticket. Store failure fails the request;
// an unrecorded escalation is worse than a visible error.
func (e *Engine) escalate(ctx context.Context, req Request, res Result, text, reasoning string, confidence float64) (Result, error) {
	ticketID, err := e.store.Add(ctx, escalation.Ticket{
		RequesterID:    req.Actor.ID,
		InputText:      text,
		AgentReasoning: reasoning,
		Confidence:     confidence,
	})
	if err != nil {
		res.Action = judge.ActionEscalate
		e.emit(ctx, audit.Event{
			Type:    audit.EventUserQuery,
			ActorID: req.Actor.ID,
			Action:  string(judge.ActionEscalate),
			Success: false,
			Error:   "ticket write failed",
		})
		return failGeneric(res), fmt.Errorf("%w: ticket add: %v", ErrPersistence, err)
	}

	res.Action = judge.ActionEscalate
	res.Reasoning = reasoning
	res.Confidence = confidence
	res.TicketID = ticketID
	res.Response = fmt.Sprintf("Your request needs review by our team. Reference: %s.", ticketID)
	if err := e.terminal(ctx, req, res); err != nil {
		return failGeneric(res), err
	}
	return res, nil
}

// refuse renders a terminal refusal. The user-visible text stays
// polite and non-technical.
func (e *Engine) refuse(ctx context.Context, req Request, res Result, reasoning string, violatedRule int, confidence float64) (Result, error) {
	res.Action = judge.ActionRefuse
	res.Reasoning = reasoning
	res.ViolatedRule = violatedRule
	res.Confidence = confidence
	res.Response = "I'm not able to help with that request."
	if violatedRule > 0 {
		if rule, ok := e.rules.ByOrdinal(violatedRule); ok {
			res.Response = fmt.Sprintf("I'm not able to help with that request. It conflicts with our policy: %s", rule.Text)
		}
	}
	if err := e.terminal(ctx, req, res); err != nil {
		return failGeneric(res), err
	}
	return res, nil
}

// terminal emits the single summarizing audit event for a request.
func (e *Engine) terminal(ctx context.Context, req Request, res Result) error {
	details := map[string]string{
		"action":     string(res.Action),
		"reasoning":  res.Reasoning,
		"confidence": formatFloat(res.Confidence),
	}
	if res.TicketID != "" {
		details["ticket_id"] = res.TicketID
	}
	if res.ViolatedRule > 0 {
		details["violated_rule"] = strconv.Itoa(res.ViolatedRule)
	}
	if res.Rewritten {
		details["rewritten"] = "true"
	}
	if e.opts.ConfigHash != "" {
		details["config_hash"] = e.opts.ConfigHash
	}
	err := e.sink.Emit(audit.Event{
		TraceID: audit.TraceFrom(ctx),
		Type:    audit.EventUserQuery,
		ActorID: req.Actor.ID,
		Action:  string(res.Action),
		Success: res.Action == judge.ActionAllow,
		Details: details,
	})
	if err != nil {
		return fmt.Errorf("%w: audit emit: %v", ErrPersistence, err)
	}
	return nil
}

// incomplete marks a cancelled request so the trail shows it never
// reached a terminal state.
func (e *Engine) incomplete(ctx context.Context, req Request, res Result) (Result, error) {
	e.emit(ctx, audit.Event{
		Type:    audit.EventRequestIncomplete,
		ActorID: req.Actor.ID,
		Action:  "cancelled",
		Success: false,
		Error:   context.Cause(ctx).Error(),
	})
	return failGeneric(res), ctx.Err()
}

func (e *Engine) emitViolation(ctx context.Context, req Request, d *judge.DecisionRecord) {
	details := map[string]string{
		"rule":   strconv.Itoa(d.ViolatedRule),
		"action": string(d.Action),
	}
	if rule, ok := e.rules.ByOrdinal(d.ViolatedRule); ok {
		details["rule_text"] = rule.Text
	}
	e.emit(ctx, audit.Event{
		Type:    audit.EventComplianceViolation,
		ActorID: req.Actor.ID,
		Action:  "rule_cited",
		Success: true,
		Details: details,
	})
}

// emit writes a non-terminal event. Failures here do not change the
// decision; the alerted sink wrapper surfaces them.
func (e *Engine) emit(ctx context.Context, ev audit.Event) {
	ev.TraceID = audit.TraceFrom(ctx)
	_ = e.sink.Emit(ev)
}

func failGeneric(res Result) Result {
	res.Response = "Something went wrong handling your request. Please try again."
	return res
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
