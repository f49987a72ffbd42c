package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// ReplayFilter holds filtering criteria for reading back a log.
type ReplayFilter struct {
	TraceID string // empty = all traces
	ActorID string // empty = all actors
}

// ReplaySummary holds event counts for a replayed slice of the log.
type ReplaySummary struct {
	Total          int               `json:"total"`
	Failures       int               `json:"failures"`
	ByType         map[EventType]int `json:"by_type"`
	FirstTimestamp string            `json:"first_timestamp,omitempty"`
	LastTimestamp  string            `json:"last_timestamp,omitempty"`
}

// ReplayResult holds filtered events and their summary.
type ReplayResult struct {
	Events  []Event       `json:"events"`
	Summary ReplaySummary `json:"summary"`
}

// Replay reads a JSONL audit log and returns the events matching the
// filter, in file order. The chain is not verified here; use Verify.
func Replay(path string, filter ReplayFilter) (*ReplayResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audit: open log: %w", err)
	}
	defer f.Close()

	result := &ReplayResult{
		Summary: ReplaySummary{ByType: make(map[EventType]int)},
	}

	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			return nil, fmt.Errorf("audit: parse line %d: %w", lineNum, err)
		}
		if filter.TraceID != "" && event.TraceID != filter.TraceID {
			continue
		}
		if filter.ActorID != "" && event.ActorID != filter.ActorID {
			continue
		}

		result.Events = append(result.Events, event)
		result.Summary.Total++
		result.Summary.ByType[event.Type]++
		if !event.Success {
			result.Summary.Failures++
		}
		if result.Summary.FirstTimestamp == "" {
			result.Summary.FirstTimestamp = event.Timestamp
		}
		result.Summary.LastTimestamp = event.Timestamp
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("audit: scan log: %w", err)
	}

	return result, nil
}
