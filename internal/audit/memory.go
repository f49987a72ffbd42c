package audit

import "sync"

// Memory is an in-memory Sink for tests and embedded use. It keeps
// append-only per-process ordering like the file-backed Log.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

// NewMemory returns an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{}
}

// Emit appends the event, stamping the timestamp if empty.
func (m *Memory) Emit(event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if event.Timestamp == "" {
		event.Timestamp = Now()
	}
	m.events = append(m.events, event)
	return nil
}

// Events returns a snapshot of everything emitted so far.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// ByType returns a snapshot of events of the given type.
func (m *Memory) ByType(t EventType) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
