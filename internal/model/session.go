package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the runtime state machine for one session.
type SessionStatus string

const (
	// StatusIdle means the session is ready to begin a decision cycle.
	StatusIdle SessionStatus = "idle"
	// StatusProcessing means a decision cycle is in flight.
	StatusProcessing SessionStatus = "processing"
	// StatusWaiting means the session is paused; Resume returns it to idle.
	StatusWaiting SessionStatus = "waiting"
	// StatusError means the last cycle aborted. The session stays queryable
	// and a fresh cycle may be started.
	StatusError SessionStatus = "error"
)

// SessionMetrics are cumulative per-session performance counters.
type SessionMetrics struct {
	CyclesRun       int     `json:"cycles_run"`
	ActionsExecuted int     `json:"actions_executed"`
	ActionsFailed   int     `json:"actions_failed"`
	TotalReward     float64 `json:"total_reward"`
}

// RewardPerAction returns total reward divided by executed actions,
// or zero before any action ran.
func (m SessionMetrics) RewardPerAction() float64 {
	if m.ActionsExecuted == 0 {
		return 0
	}
	return m.TotalReward / float64(m.ActionsExecuted)
}

// RuntimeState is the queryable view of one session.
type RuntimeState struct {
	SessionID    uuid.UUID      `json:"session_id"`
	Status       SessionStatus  `json:"status"`
	WorldState   WorldState     `json:"world_state"`
	Metrics      SessionMetrics `json:"metrics"`
	LastActivity time.Time      `json:"last_activity"`
	LastError    string         `json:"last_error,omitempty"`
}

// Clone returns a copy with an independent WorldState.
func (s RuntimeState) Clone() RuntimeState {
	out := s
	out.WorldState = s.WorldState.Clone()
	return out
}
