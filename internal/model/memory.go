package model

import (
	"time"

	"github.com/google/uuid"
)

// MemoryType categorizes what a memory entry represents.
type MemoryType string

const (
	MemoryFact         MemoryType = "fact"
	MemoryPattern      MemoryType = "pattern"
	MemoryRelationship MemoryType = "relationship"
	MemoryGoal         MemoryType = "goal"
	MemoryLesson       MemoryType = "lesson"
)

// ValidMemoryTypes is the set of accepted memory types.
var ValidMemoryTypes = map[MemoryType]bool{
	MemoryFact:         true,
	MemoryPattern:      true,
	MemoryRelationship: true,
	MemoryGoal:         true,
	MemoryLesson:       true,
}

// MemoryEntry is one confidence-weighted learned item in a session's memory.
// Entries are append-only; learning a duplicate reinforces the existing entry
// instead of creating a new one.
type MemoryEntry struct {
	ID                 uuid.UUID  `json:"id"`
	SessionID          uuid.UUID  `json:"session_id"`
	Type               MemoryType `json:"type"`
	Content            string     `json:"content"`
	Confidence         float64    `json:"confidence"`
	ReinforcementCount int        `json:"reinforcement_count"`
	LearnedAt          time.Time  `json:"learned_at"`
	LastAccessedAt     time.Time  `json:"last_accessed_at"`
}
