package questweaver

import (
	"time"

	"github.com/google/uuid"
)

// Event is a public view of one record in a session's event log.
type Event struct {
	ID         uuid.UUID      `json:"id"`
	SessionID  uuid.UUID      `json:"session_id"`
	Kind       string         `json:"kind"`
	Source     string         `json:"source"`
	Payload    map[string]any `json:"payload"`
	Tags       []string       `json:"tags,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// MemoryEntry is a public view of one learned item in a session's memory.
type MemoryEntry struct {
	ID                 uuid.UUID `json:"id"`
	SessionID          uuid.UUID `json:"session_id"`
	Type               string    `json:"type"`
	Content            string    `json:"content"`
	Confidence         float64   `json:"confidence"`
	ReinforcementCount int       `json:"reinforcement_count"`
	LearnedAt          time.Time `json:"learned_at"`
	LastAccessedAt     time.Time `json:"last_accessed_at"`
}

// ToolSpec describes one callable tool offered to the reasoning model.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ReasoningRequest is one reasoning turn: a compiled prompt plus the tool
// catalog the model may call into.
type ReasoningRequest struct {
	System      string
	Prompt      string
	Tools       []ToolSpec
	Temperature float64
	MaxTokens   int
}

// ToolCall is a single tool invocation emitted by the reasoning model.
// Arguments is the raw JSON argument object.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ReasoningResult is the final output of one reasoning turn.
type ReasoningResult struct {
	Text      string
	ToolCalls []ToolCall
}
