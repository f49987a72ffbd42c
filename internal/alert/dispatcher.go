package alert

// Dispatcher fans out alert events to matching webhook configurations.
type Dispatcher struct {
	configs []Config
}

// NewDispatcher creates a Dispatcher from webhook configurations.
// Returns nil if configs is empty (callers should nil-check).
func NewDispatcher(configs []Config) *Dispatcher {
	if len(configs) == 0 {
		return nil
	}
	return &Dispatcher{configs: configs}
}

// Dispatch sends the event to all webhooks whose Events list matches.
// SAFETY-severity events match every destination. Fires goroutines —
// does not block the caller.
func (d *Dispatcher) Dispatch(event Event) {
	if d == nil {
		return
	}
	for _, cfg := range d.configs {
		if event.Severity == SeveritySafety || matches(cfg.Events, event) {
			go Send(cfg, event)
		}
	}
}

func matches(events []string, event Event) bool {
	for _, e := range events {
		if e == event.Action {
			return true
		}
		if e == string(event.Severity) {
			return true
		}
	}
	return false
}
