package protocol

import (
	"encoding/json"
	"fmt"
)

// Reserved event kinds. Application events may use any other kind.
const (
	// EventJSYield is the reply to a run_script command issued with a
	// submission wrapper. Its Task field matches the command's and its
	// Data field holds the evaluated result, or nil when the script
	// produced no value.
	EventJSYield = "js_yield"
)

// Event is a single client-to-server message.
//
// Task, when non-zero, correlates the event with the execution unit
// that issued the triggering command; such events are routed to that
// unit only. Uncorrelated events go to the session's shared queue.
type Event struct {
	Kind string `json:"event"`
	Task int64  `json:"task_id,omitempty"`
	Data any    `json:"data"`
}

// DecodeEvent parses a client message. The kind must be present;
// everything else is optional.
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("protocol: malformed event: %w", err)
	}
	if ev.Kind == "" {
		return Event{}, fmt.Errorf("protocol: event kind is empty")
	}
	return ev, nil
}

// EncodeEvent serializes an event. Mostly used by tests and client
// stubs; real clients produce this shape in JavaScript.
func EncodeEvent(ev Event) ([]byte, error) {
	if ev.Kind == "" {
		return nil, fmt.Errorf("protocol: event kind is empty")
	}
	return json.Marshal(ev)
}
