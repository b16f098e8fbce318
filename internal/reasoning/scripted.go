package reasoning

import (
	"context"
	"sync"
)

// Step is one canned response from a scripted service.
type Step struct {
	Text      string
	ToolCalls []ToolCall
	Err       error
}

// Scripted replays a fixed sequence of responses. It backs tests and runs
// without any model credentials; once the script is exhausted the last
// step repeats.
type Scripted struct {
	mu    sync.Mutex
	steps []Step
	next  int

	// Requests records every request seen, in order.
	Requests []Request
}

// NewScripted creates a scripted service. At least one step is required;
// an empty script always waits.
func NewScripted(steps ...Step) *Scripted {
	if len(steps) == 0 {
		steps = []Step{{
			Text:      "Nothing demands attention. Waiting.",
			ToolCalls: []ToolCall{{ID: "call_wait", Name: "wait", Arguments: "{}"}},
		}}
	}
	return &Scripted{steps: steps}
}

// Name returns the backend identifier.
func (s *Scripted) Name() string { return "scripted" }

// Stream replays the next scripted step, emitting its text as a single
// chunk.
func (s *Scripted) Stream(ctx context.Context, req Request, onText TextFunc) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	s.mu.Lock()
	s.Requests = append(s.Requests, req)
	step := s.steps[s.next]
	if s.next < len(s.steps)-1 {
		s.next++
	}
	s.mu.Unlock()

	if step.Err != nil {
		return Result{}, step.Err
	}
	if step.Text != "" && onText != nil {
		if err := onText(step.Text); err != nil {
			return Result{}, err
		}
	}
	return Result{Text: step.Text, ToolCalls: step.ToolCalls}, nil
}
