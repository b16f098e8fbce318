package model

import (
	"time"

	"github.com/google/uuid"
)

// EventKind represents the category of a session event.
type EventKind string

const (
	// EventState carries a world-state snapshot.
	EventState EventKind = "state"
	// EventAction records a tool execution and its outcome.
	EventAction EventKind = "action"
	// EventObservation records something the agent perceived in the world.
	EventObservation EventKind = "observation"
	// EventMessage records dialogue to or from the agent.
	EventMessage EventKind = "message"
	// EventReward records a scalar feedback signal.
	EventReward EventKind = "reward"
	// EventError records a domain or cycle failure.
	EventError EventKind = "error"
	// EventThought records a reasoning chunk streamed from the model.
	EventThought EventKind = "thought"
)

// ValidEventKinds is the set of accepted event kinds.
var ValidEventKinds = map[EventKind]bool{
	EventState:       true,
	EventAction:      true,
	EventObservation: true,
	EventMessage:     true,
	EventReward:      true,
	EventError:       true,
	EventThought:     true,
}

// Event is an append-only record in a session's event log.
// Source of truth for evaluation and prompting. Never mutated after append.
type Event struct {
	ID         uuid.UUID      `json:"id"`
	SessionID  uuid.UUID      `json:"session_id"`
	Kind       EventKind      `json:"kind"`
	Source     string         `json:"source"`
	Payload    map[string]any `json:"payload"`
	Tags       []string       `json:"tags,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// ActionPayload is the payload for action events.
type ActionPayload struct {
	Tool        string         `json:"tool"`
	Arguments   map[string]any `json:"arguments,omitempty"`
	Success     bool           `json:"success"`
	Reward      float64        `json:"reward"`
	Description string         `json:"description,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// RewardPayload is the payload for reward events.
type RewardPayload struct {
	Value float64 `json:"value"`
	Tool  string  `json:"tool,omitempty"`
}

// ErrorPayload is the payload for error events.
type ErrorPayload struct {
	Stage   string `json:"stage,omitempty"`
	Tool    string `json:"tool,omitempty"`
	Message string `json:"message"`
}

// ThoughtPayload is the payload for thought events.
type ThoughtPayload struct {
	Text string `json:"text"`
}

// Severity maps an event kind to an export log level.
func (k EventKind) Severity() string {
	switch k {
	case EventError:
		return "error"
	case EventAction, EventReward:
		return "info"
	default:
		return "debug"
	}
}
