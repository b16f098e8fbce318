// Package eventlog provides the append-only, per-session event log.
//
// Each session owns an independent bounded partition: appends and queries on
// one session never contend with other sessions beyond the partition lookup.
// On overflow the oldest events are dropped silently (FIFO eviction).
package eventlog

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/questweaver-ai/questweaver/internal/model"
)

// DefaultCap is the per-session retention cap used when none is configured.
const DefaultCap = 1000

// Log is the append-only event log, partitioned by session.
type Log struct {
	logger *slog.Logger
	cap    int

	mu         sync.RWMutex
	partitions map[uuid.UUID]*partition

	evicted atomic.Int64 // total events dropped by FIFO eviction
}

// partition holds one session's events. Guarded by its own lock so writes to
// one session never block reads of another.
type partition struct {
	mu     sync.RWMutex
	events []model.Event
}

// New creates an event log with the given per-session retention cap.
// A cap of zero or less falls back to DefaultCap.
func New(logger *slog.Logger, cap int) *Log {
	if cap <= 0 {
		cap = DefaultCap
	}
	return &Log{
		logger:     logger,
		cap:        cap,
		partitions: make(map[uuid.UUID]*partition),
	}
}

// Append adds an event to its session partition and returns the assigned id.
// Missing ids and timestamps are filled in; the stored event is never mutated
// afterwards.
func (l *Log) Append(ev model.Event) uuid.UUID {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	p := l.partition(ev.SessionID)

	p.mu.Lock()
	p.events = append(p.events, ev)
	if over := len(p.events) - l.cap; over > 0 {
		// FIFO eviction: drop the oldest. Silent by contract, but counted.
		p.events = append(p.events[:0:0], p.events[over:]...)
		l.evicted.Add(int64(over))
	}
	p.mu.Unlock()

	return ev.ID
}

// Query returns up to limit events for a session, oldest first
// (most-recent-last). A nil kind filter matches every kind; limit <= 0 means
// no limit. The returned slice is a copy.
func (l *Log) Query(sessionID uuid.UUID, kinds []model.EventKind, limit int) []model.Event {
	p := l.lookup(sessionID)
	if p == nil {
		return nil
	}

	var kindSet map[model.EventKind]bool
	if len(kinds) > 0 {
		kindSet = make(map[model.EventKind]bool, len(kinds))
		for _, k := range kinds {
			kindSet[k] = true
		}
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	matched := make([]model.Event, 0, len(p.events))
	for _, ev := range p.events {
		if kindSet == nil || kindSet[ev.Kind] {
			matched = append(matched, ev)
		}
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched
}

// Recent returns the last n events for a session regardless of kind.
func (l *Log) Recent(sessionID uuid.UUID, n int) []model.Event {
	return l.Query(sessionID, nil, n)
}

// Len returns the number of retained events for a session.
func (l *Log) Len(sessionID uuid.UUID) int {
	p := l.lookup(sessionID)
	if p == nil {
		return 0
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.events)
}

// Clear drops all events for a session.
func (l *Log) Clear(sessionID uuid.UUID) {
	l.mu.Lock()
	delete(l.partitions, sessionID)
	l.mu.Unlock()
}

// Evicted returns the total number of events dropped by FIFO eviction
// across all sessions.
func (l *Log) Evicted() int64 {
	return l.evicted.Load()
}

func (l *Log) partition(sessionID uuid.UUID) *partition {
	l.mu.RLock()
	p := l.partitions[sessionID]
	l.mu.RUnlock()
	if p != nil {
		return p
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if p = l.partitions[sessionID]; p == nil {
		p = &partition{}
		l.partitions[sessionID] = p
	}
	return p
}

func (l *Log) lookup(sessionID uuid.UUID) *partition {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.partitions[sessionID]
}
