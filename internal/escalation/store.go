// Package escalation persists human-review tickets in SQLite. The store
// owns its locking discipline: callers never lock it externally, and
// resolution is linearizable per ticket.
package escalation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/primegate/primegate/internal/access"
	"github.com/primegate/primegate/internal/audit"
	"github.com/primegate/primegate/internal/iam"
)

var (
	// ErrNotFound is returned when the ticket ID is unknown.
	ErrNotFound = errors.New("escalation: ticket not found")

	// ErrAlreadyResolved is returned when resolving a ticket that has
	// already left pending. Resolution is write-once: two reviewers
	// racing to different outcomes is an error, not a silent overwrite.
	ErrAlreadyResolved = errors.New("escalation: ticket already resolved")
)

const schema = `
CREATE TABLE IF NOT EXISTS escalations (
	id              TEXT PRIMARY KEY,
	created_at      TEXT NOT NULL,
	requester_id    TEXT NOT NULL,
	input_text      TEXT NOT NULL,
	agent_reasoning TEXT NOT NULL,
	confidence      REAL NOT NULL,
	status          TEXT NOT NULL DEFAULT 'pending',
	resolved_by     TEXT,
	resolution_note TEXT,
	resolved_at     TEXT
);
CREATE INDEX IF NOT EXISTS idx_escalations_requester ON escalations(requester_id);
CREATE INDEX IF NOT EXISTS idx_escalations_status    ON escalations(status);
`

// timeLayout is the stored timestamp format. Fixed-width (no trimmed
// fractional digits) so lexicographic ORDER BY matches chronological
// order; all timestamps are stored in UTC.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store is a durable, concurrency-safe escalation queue. Reads and
// writes are gated through the access package; the Decision Engine is
// the only unauthenticated writer (Add runs under the engine's own
// authority, mirroring the agent interface of the review queue).
type Store struct {
	db   *sql.DB
	gate *access.Gate
	sink audit.Sink
}

// Open opens (or creates) the SQLite-backed store at path.
func Open(path string, gate *access.Gate, sink audit.Sink) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("escalation: open database: %w", err)
	}
	// Single writer connection: SQLite serializes writes anyway, and a
	// single connection makes every statement atomic from Go's side.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("escalation: init schema: %w", err)
	}
	return &Store{db: db, gate: gate, sink: sink}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add persists a new ticket, assigning a unique ID and creation
// timestamp when absent. Each insert is atomic; concurrent inserts
// cannot collide or lose writes. Emits escalation_created.
func (s *Store) Add(ctx context.Context, t Ticket) (string, error) {
	if t.RequesterID == "" {
		return "", fmt.Errorf("escalation: requester_id is required")
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Status == "" {
		t.Status = StatusPending
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO escalations
		(id, created_at, requester_id, input_text, agent_reasoning, confidence, status, resolved_by, resolution_note, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		t.CreatedAt.UTC().Format(timeLayout),
		t.RequesterID,
		t.InputText,
		t.AgentReasoning,
		t.Confidence,
		string(t.Status),
		nullable(t.ResolvedBy),
		nullable(t.ResolutionNote),
		nullableTime(t.ResolvedAt),
	)
	if err != nil {
		return "", fmt.Errorf("escalation: insert ticket: %w", err)
	}

	s.emit(ctx, audit.EventEscalationCreated, t.RequesterID, "escalation_created", true, map[string]string{
		"ticket_id":  t.ID,
		"confidence": fmt.Sprintf("%.2f", t.Confidence),
	})
	return t.ID, nil
}

// List returns the tickets visible to the actor, ordered by creation
// time ascending. USER sees only its own tickets; STAFF, ADMIN, and
// SYSTEM see all. The returned slice is a snapshot.
func (s *Store) List(ctx context.Context, actor iam.Actor) ([]Ticket, error) {
	var rows *sql.Rows
	var err error

	if iam.HasPermission(actor, iam.PermViewAllEscalations) {
		if gateErr := s.gate.Check(ctx, actor, iam.PermViewAllEscalations); gateErr != nil {
			return nil, gateErr
		}
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, created_at, requester_id, input_text, agent_reasoning, confidence, status, resolved_by, resolution_note, resolved_at
			 FROM escalations ORDER BY created_at ASC`)
	} else {
		if gateErr := s.gate.CheckResource(ctx, actor, iam.PermViewOwnEscalations, iam.PermViewAllEscalations, actor.ID); gateErr != nil {
			return nil, gateErr
		}
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, created_at, requester_id, input_text, agent_reasoning, confidence, status, resolved_by, resolution_note, resolved_at
			 FROM escalations WHERE requester_id = ? ORDER BY created_at ASC`, actor.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("escalation: list tickets: %w", err)
	}
	defer rows.Close()

	return scanTickets(rows)
}

// Pending returns all tickets still awaiting review, oldest first.
// No permission check here: human surfaces authorize via List, and the
// review dashboard runs under the application's own authority.
func (s *Store) Pending(ctx context.Context) ([]Ticket, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, requester_id, input_text, agent_reasoning, confidence, status, resolved_by, resolution_note, resolved_at
		 FROM escalations WHERE status = ? ORDER BY created_at ASC`, string(StatusPending))
	if err != nil {
		return nil, fmt.Errorf("escalation: list pending: %w", err)
	}
	defer rows.Close()

	return scanTickets(rows)
}

// Get returns a single ticket by ID.
func (s *Store) Get(ctx context.Context, id string) (Ticket, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, requester_id, input_text, agent_reasoning, confidence, status, resolved_by, resolution_note, resolved_at
		 FROM escalations WHERE id = ?`, id)
	t, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Ticket{}, ErrNotFound
	}
	return t, err
}

// Resolve transitions a pending ticket to approved or rejected,
// stamping resolvedBy and resolvedAt. Requires RESOLVE_ESCALATIONS.
// The transition is a single conditional UPDATE, so two concurrent
// resolvers get exactly one success and one ErrAlreadyResolved.
func (s *Store) Resolve(ctx context.Context, actor iam.Actor, id string, decision Status, note string) error {
	if decision != StatusApproved && decision != StatusRejected {
		return fmt.Errorf("escalation: invalid resolution decision %q", decision)
	}
	if err := s.gate.Check(ctx, actor, iam.PermResolveEscalations); err != nil {
		return err
	}

	resolvedAt := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE escalations
		SET status = ?, resolved_by = ?, resolution_note = ?, resolved_at = ?
		WHERE id = ? AND status = ?`,
		string(decision), actor.ID, note, resolvedAt.Format(timeLayout),
		id, string(StatusPending),
	)
	if err != nil {
		return fmt.Errorf("escalation: resolve ticket: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("escalation: resolve ticket: %w", err)
	}
	if affected == 0 {
		// Either the ticket does not exist or it already left pending.
		if _, getErr := s.Get(ctx, id); errors.Is(getErr, ErrNotFound) {
			return ErrNotFound
		}
		return ErrAlreadyResolved
	}

	s.emit(ctx, audit.EventEscalationResolved, actor.ID, "escalation_resolved", true, map[string]string{
		"ticket_id": id,
		"decision":  string(decision),
	})
	return nil
}

// Stats returns queue counts by status and the average confidence.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'pending'  THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'approved' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'rejected' THEN 1 ELSE 0 END), 0),
		       COALESCE(AVG(confidence), 0)
		FROM escalations`)

	var st Stats
	if err := row.Scan(&st.Total, &st.Pending, &st.Approved, &st.Rejected, &st.AvgConfidence); err != nil {
		return Stats{}, fmt.Errorf("escalation: stats: %w", err)
	}
	return st, nil
}

func (s *Store) emit(ctx context.Context, typ audit.EventType, actorID, action string, success bool, details map[string]string) {
	if s.sink == nil {
		return
	}
	_ = s.sink.Emit(audit.Event{
		TraceID: audit.TraceFrom(ctx),
		Type:    typ,
		ActorID: actorID,
		Action:  action,
		Success: success,
		Details: details,
	})
}

func scanTickets(rows *sql.Rows) ([]Ticket, error) {
	var tickets []Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("escalation: scan tickets: %w", err)
	}
	return tickets, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTicket(row scanner) (Ticket, error) {
	var t Ticket
	var createdAt string
	var resolvedBy, resolutionNote, resolvedAt sql.NullString
	var status string

	err := row.Scan(&t.ID, &createdAt, &t.RequesterID, &t.InputText, &t.AgentReasoning,
		&t.Confidence, &status, &resolvedBy, &resolutionNote, &resolvedAt)
	if err != nil {
		return Ticket{}, err
	}

	t.Status = Status(status)
	t.CreatedAt, err = time.Parse(timeLayout, createdAt)
	if err != nil {
		return Ticket{}, fmt.Errorf("escalation: parse created_at: %w", err)
	}
	t.ResolvedBy = resolvedBy.String
	t.ResolutionNote = resolutionNote.String
	if resolvedAt.Valid && resolvedAt.String != "" {
		ts, err := time.Parse(timeLayout, resolvedAt.String)
		if err != nil {
			return Ticket{}, fmt.Errorf("escalation: parse resolved_at: %w", err)
		}
		t.ResolvedAt = &ts
	}
	return t, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}
