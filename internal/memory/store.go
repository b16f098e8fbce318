// Package memory implements the per-session, confidence-weighted memory store.
//
// Entries are appended by evaluators via the runtime and read by the prompt
// compiler and the memory provider. Learning a duplicate fact reinforces the
// existing entry instead of appending: the dedup key is (type, normalized
// content), where normalization lowercases and collapses whitespace.
package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/questweaver-ai/questweaver/internal/model"
)

// reinforceBoost is the confidence increment applied when a known fact is
// learned again. Confidence never exceeds 1.0.
const reinforceBoost = 0.1

// Store holds per-session memory partitions.
type Store struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*partition

	now func() time.Time
}

type partition struct {
	mu      sync.RWMutex
	entries []*model.MemoryEntry
	byKey   map[string]*model.MemoryEntry
}

// NewStore creates an empty memory store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[uuid.UUID]*partition),
		now:      time.Now,
	}
}

// Learn records a fact for a session. A fact whose dedup key matches an
// existing entry reinforces it: confidence rises by 0.1 (capped at 1.0, and
// never lowered below what a repeat observation reports), the reinforcement
// counter increments, and the access time refreshes. Otherwise a new entry is
// appended. Returns the affected entry.
func (s *Store) Learn(sessionID uuid.UUID, fact model.Fact) model.MemoryEntry {
	p := s.partition(sessionID)
	now := s.now().UTC()
	key := dedupKey(fact.Type, fact.Content)

	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.byKey[key]; ok {
		existing.ReinforcementCount++
		existing.Confidence = min(1.0, max(existing.Confidence, fact.Confidence)+reinforceBoost)
		existing.LastAccessedAt = now
		return *existing
	}

	entry := &model.MemoryEntry{
		ID:             uuid.New(),
		SessionID:      sessionID,
		Type:           fact.Type,
		Content:        fact.Content,
		Confidence:     clamp01(fact.Confidence),
		LearnedAt:      now,
		LastAccessedAt: now,
	}
	p.entries = append(p.entries, entry)
	p.byKey[key] = entry
	return *entry
}

// Top returns up to n entries for a session, sorted by confidence descending;
// equal confidence prefers the most recently learned. Returned entries are
// copies.
func (s *Store) Top(sessionID uuid.UUID, n int) []model.MemoryEntry {
	p := s.lookup(sessionID)
	if p == nil || n <= 0 {
		return nil
	}

	p.mu.RLock()
	sorted := make([]*model.MemoryEntry, len(p.entries))
	copy(sorted, p.entries)
	p.mu.RUnlock()

	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Confidence != sorted[j].Confidence {
			return sorted[i].Confidence > sorted[j].Confidence
		}
		return sorted[i].LearnedAt.After(sorted[j].LearnedAt)
	})

	if len(sorted) > n {
		sorted = sorted[:n]
	}
	out := make([]model.MemoryEntry, len(sorted))
	for i, e := range sorted {
		out[i] = *e
	}
	return out
}

// All returns every entry for a session in learn order.
func (s *Store) All(sessionID uuid.UUID) []model.MemoryEntry {
	p := s.lookup(sessionID)
	if p == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]model.MemoryEntry, len(p.entries))
	for i, e := range p.entries {
		out[i] = *e
	}
	return out
}

// Len returns the number of entries for a session.
func (s *Store) Len(sessionID uuid.UUID) int {
	p := s.lookup(sessionID)
	if p == nil {
		return 0
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// Clear drops a session's memory.
func (s *Store) Clear(sessionID uuid.UUID) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

// dedupKey builds the reinforcement key for a fact.
func dedupKey(t model.MemoryType, content string) string {
	return string(t) + "\x00" + strings.Join(strings.Fields(strings.ToLower(content)), " ")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func (s *Store) partition(sessionID uuid.UUID) *partition {
	s.mu.RLock()
	p := s.sessions[sessionID]
	s.mu.RUnlock()
	if p != nil {
		return p
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p = s.sessions[sessionID]; p == nil {
		p = &partition{byKey: make(map[string]*model.MemoryEntry)}
		s.sessions[sessionID] = p
	}
	return p
}

func (s *Store) lookup(sessionID uuid.UUID) *partition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[sessionID]
}
