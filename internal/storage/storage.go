// Package storage provides optional durable sinks for events and memories.
//
// The runtime is fully functional without a sink; when one is wired in,
// writes are fire-and-forget so a slow or failed database never stalls a
// decision cycle.
package storage

import (
	"context"

	"github.com/questweaver-ai/questweaver/internal/model"
)

// EventSink receives copies of appended events.
type EventSink interface {
	WriteEvents(ctx context.Context, events []model.Event) error
	Close() error
}

// MemorySink receives copies of learned memory entries.
type MemorySink interface {
	WriteMemories(ctx context.Context, entries []model.MemoryEntry) error
	Close() error
}
