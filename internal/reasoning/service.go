// Package reasoning abstracts the language-model backend that turns a
// compiled prompt into streamed text and tool calls.
package reasoning

import (
	"context"
	"errors"
	"time"
)

// DefaultTimeout bounds a single reasoning call when the caller does not
// set its own deadline.
const DefaultTimeout = 30 * time.Second

// ErrNoDecision is returned when a reasoning call finishes without any
// tool call.
var ErrNoDecision = errors.New("reasoning: model produced no tool call")

// ToolSpec describes one callable tool offered to the model.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Request is one reasoning call.
type Request struct {
	System      string
	Prompt      string
	Tools       []ToolSpec
	Temperature float64
	MaxTokens   int
}

// ToolCall is a complete tool invocation emitted by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Result is the final outcome of a streamed reasoning call.
type Result struct {
	Text      string
	ToolCalls []ToolCall
}

// TextFunc receives each text chunk as it arrives. Returning an error
// aborts the stream.
type TextFunc func(chunk string) error

// Service streams a model response for a request. Implementations must
// respect ctx cancellation and return the accumulated result when the
// stream completes.
type Service interface {
	Name() string
	Stream(ctx context.Context, req Request, onText TextFunc) (Result, error)
}
