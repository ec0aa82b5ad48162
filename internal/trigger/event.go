// internal/trigger/event.go
package trigger

import (
	"fmt"
	"time"
)

// Event represents one occurrence from any source. Events are constructed
// once and never mutated afterwards; every handler observes the same value.
type Event struct {
	EventType   string         `json:"event_type"`
	Payload     map[string]any `json:"payload"`
	Source      string         `json:"source"`
	Timestamp   time.Time      `json:"timestamp"`
	ADWID       string         `json:"adw_id,omitempty"`
	IssueNumber int            `json:"issue_number,omitempty"`
	RepoPath    string         `json:"repo_path,omitempty"`
}

// Result is the outcome of one handler processing one event. When Success is
// false, Error should carry the diagnostic detail; that convention is left to
// handler discipline and is not enforced here.
type Result struct {
	Success  bool   `json:"success"`
	ADWID    string `json:"adw_id,omitempty"`
	Workflow string `json:"workflow,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// NewEvent builds an Event with the timestamp set to now. EventType and
// source must be non-empty. The payload is deep-copied so later mutation of
// the caller's map cannot leak into the event; a nil payload becomes an empty
// map. Payload values are restricted to serializable kinds: strings, bools,
// numbers, nil, and nested map[string]any / []any.
func NewEvent(eventType, source string, payload map[string]any) (Event, error) {
	if eventType == "" {
		return Event{}, fmt.Errorf("event type must not be empty")
	}
	if source == "" {
		return Event{}, fmt.Errorf("event source must not be empty")
	}

	copied, err := copyPayload(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{
		EventType: eventType,
		Source:    source,
		Payload:   copied,
		Timestamp: time.Now(),
	}, nil
}

func copyPayload(payload map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		cv, err := copyPayloadValue(v)
		if err != nil {
			return nil, fmt.Errorf("payload key %q: %w", k, err)
		}
		out[k] = cv
	}
	return out, nil
}

func copyPayloadValue(v any) (any, error) {
	switch val := v.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return val, nil
	case map[string]any:
		return copyPayload(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			ci, err := copyPayloadValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = ci
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported payload value type %T", v)
	}
}
