package model

// ToolInvocation is a structured tool call emitted by the reasoning service.
type ToolInvocation struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResult is the outcome of executing one tool invocation.
//
// A failed result carries the input world state unchanged; domain failures
// (missing target, bad item) are outcomes the agent learns from, not system
// faults.
type ToolResult struct {
	Success     bool       `json:"success"`
	WorldState  WorldState `json:"world_state"`
	Reward      float64    `json:"reward"`
	Description string     `json:"description"`
	Error       string     `json:"error,omitempty"`
}

// Failure builds a failed ToolResult that preserves the input state.
func Failure(state WorldState, penalty float64, description string) ToolResult {
	return ToolResult{
		Success:     false,
		WorldState:  state,
		Reward:      penalty,
		Description: description,
		Error:       description,
	}
}
