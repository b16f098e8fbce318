package questweaver

import "context"

// ReasoningService produces decisions from compiled prompts. Implement this
// to bring your own model backend in place of the built-in OpenAI streaming
// client. onText is called for each streamed text chunk in order.
type ReasoningService interface {
	// Name identifies the backend in logs and events.
	Name() string
	// Stream runs one reasoning turn, streaming text through onText and
	// returning the final text and tool calls.
	Stream(ctx context.Context, req ReasoningRequest, onText func(chunk string) error) (ReasoningResult, error)
}

// EventSink receives durable copies of appended events. Writes happen off
// the decision path; a failing sink never fails a cycle.
type EventSink interface {
	WriteEvents(ctx context.Context, events []Event) error
	Close() error
}

// MemorySink receives durable copies of learned memory entries.
type MemorySink interface {
	WriteMemories(ctx context.Context, entries []MemoryEntry) error
	Close() error
}
