// Package access is the single authorization enforcement point. Every
// tool invocation and every ticket-store read/write goes through the
// Gate; there is no alternate path.
package access

import (
	"context"
	"fmt"

	"github.com/primegate/primegate/internal/audit"
	"github.com/primegate/primegate/internal/iam"
)

// DeniedError is returned when an actor lacks a required permission.
// Callers surface it to the actor as a refusal, never a crash.
type DeniedError struct {
	Actor      iam.Actor
	Permission iam.Permission
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("access denied: %s (role: %s) does not have permission: %s",
		e.Actor.ID, e.Actor.Role, e.Permission)
}

// Gate evaluates permission checks and records every decision — grants
// and denials — to the audit sink, so denials stay forensically visible
// even though the caller only sees a typed error.
type Gate struct {
	sink audit.Sink
}

// NewGate creates a Gate writing decisions to the given sink.
func NewGate(sink audit.Sink) *Gate {
	return &Gate{sink: sink}
}

// Check returns nil if the actor's role grants the permission, or a
// *DeniedError otherwise. Emits an access_control_decision event on
// every call.
func (g *Gate) Check(ctx context.Context, actor iam.Actor, perm iam.Permission) error {
	granted := iam.HasPermission(actor, perm)
	g.emit(ctx, actor, perm, granted, "")
	if !granted {
		return &DeniedError{Actor: actor, Permission: perm}
	}
	return nil
}

// CheckResource applies the two-tier authorization rule for
// resource-owned operations: the all-scope permission grants access to
// any resource; otherwise the own-scope permission grants access only
// when the actor owns the resource.
func (g *Gate) CheckResource(ctx context.Context, actor iam.Actor, ownPerm, allPerm iam.Permission, resourceOwnerID string) error {
	if iam.HasPermission(actor, allPerm) {
		g.emit(ctx, actor, allPerm, true, resourceOwnerID)
		return nil
	}
	granted := iam.HasPermission(actor, ownPerm) && resourceOwnerID == actor.ID
	g.emit(ctx, actor, ownPerm, granted, resourceOwnerID)
	if !granted {
		return &DeniedError{Actor: actor, Permission: ownPerm}
	}
	return nil
}

func (g *Gate) emit(ctx context.Context, actor iam.Actor, perm iam.Permission, granted bool, ownerID string) {
	if g.sink == nil {
		return
	}
	details := map[string]string{
		"permission": string(perm),
		"role":       string(actor.Role),
		"granted":    fmt.Sprintf("%t", granted),
	}
	if ownerID != "" {
		details["resource_owner"] = ownerID
	}
	// Emit failures surface through the sink's own failure hook; the
	// authorization outcome itself is not changed by a logging error.
	_ = g.sink.Emit(audit.Event{
		TraceID: audit.TraceFrom(ctx),
		Type:    audit.EventAccessDecision,
		ActorID: actor.ID,
		Action:  "check_permission",
		Success: granted,
		Details: details,
	})
}
