package runtime

import "github.com/google/uuid"

// ChunkType discriminates the typed values pushed to a decision stream.
type ChunkType string

const (
	// ChunkThought carries an incremental reasoning text delta.
	ChunkThought ChunkType = "thought"
	// ChunkAction reports one executed tool invocation.
	ChunkAction ChunkType = "action"
	// ChunkReward reports the reward attached to the preceding action.
	ChunkReward ChunkType = "reward"
	// ChunkError reports a cycle failure. It is the last chunk of its cycle.
	ChunkError ChunkType = "error"
	// ChunkCycleEnd closes one completed cycle.
	ChunkCycleEnd ChunkType = "cycle_end"
)

// Chunk is one typed value on a decision stream.
type Chunk struct {
	Type      ChunkType `json:"type"`
	SessionID uuid.UUID `json:"session_id"`
	Step      int       `json:"step,omitempty"`
	Template  string    `json:"template,omitempty"`
	Text      string    `json:"text,omitempty"`
	Tool      string    `json:"tool,omitempty"`
	Success   bool      `json:"success,omitempty"`
	Reward    float64   `json:"reward,omitempty"`
}
