package providers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/questweaver-ai/questweaver/internal/model"
)

// Provider names and priorities. Higher priority sorts first in the compiled
// prompt.
const (
	NameWorldState   = "world_state"
	NameGoals        = "goals"
	NameMemory       = "memory"
	NamePerformance  = "performance"
	NameRecentEvents = "recent_events"

	priorityWorldState   = 100
	priorityGoals        = 90
	priorityMemory       = 80
	priorityPerformance  = 70
	priorityRecentEvents = 60
)

// MemorySource is the read surface the memory provider needs.
type MemorySource interface {
	Top(sessionID uuid.UUID, n int) []model.MemoryEntry
}

// EventSource is the read surface the recent-events provider needs.
type EventSource interface {
	Recent(sessionID uuid.UUID, n int) []model.Event
}

// RegisterDefaults registers the five standard providers.
func RegisterDefaults(r *Registry, memories MemorySource, events EventSource) error {
	defaults := []Provider{
		WorldStateProvider{},
		GoalsProvider{},
		&MemoryProvider{Source: memories, Limit: 10},
		PerformanceProvider{},
		&RecentEventsProvider{Source: events, Limit: 10},
	}
	for _, p := range defaults {
		if err := r.Register(p); err != nil {
			return err
		}
	}
	return nil
}

// WorldStateProvider renders the current world snapshot.
type WorldStateProvider struct{}

func (WorldStateProvider) Name() string { return NameWorldState }

func (WorldStateProvider) Context(_ context.Context, view View) (model.ProviderContext, error) {
	w := view.World
	var b strings.Builder
	fmt.Fprintf(&b, "Environment: %s\n", w.Environment)
	fmt.Fprintf(&b, "Position: (%.1f, %.1f, %.1f)\n", w.Position.X, w.Position.Y, w.Position.Z)

	if len(w.Stats) > 0 {
		b.WriteString("Stats:")
		for _, k := range sortedKeys(w.Stats) {
			fmt.Fprintf(&b, " %s=%d", k, w.Stats[k])
		}
		b.WriteString("\n")
	}
	if len(w.Inventory) > 0 {
		b.WriteString("Inventory:\n")
		for _, it := range w.Inventory {
			fmt.Fprintf(&b, "- %s x%d (%s)\n", it.Name, it.Quantity, it.ID)
		}
	}
	if len(w.VisibleEntities) > 0 {
		b.WriteString("Visible entities:\n")
		for _, e := range w.VisibleEntities {
			fmt.Fprintf(&b, "- %s %q at (%.1f, %.1f, %.1f)\n", e.Type, e.ID, e.Position.X, e.Position.Y, e.Position.Z)
		}
	}
	if len(w.AvailableActions) > 0 {
		fmt.Fprintf(&b, "Available actions: %s\n", strings.Join(w.AvailableActions, ", "))
	}
	if w.ActiveDialogue != nil {
		fmt.Fprintf(&b, "In dialogue with %q", w.ActiveDialogue.SpeakerID)
		if w.ActiveDialogue.Topic != "" {
			fmt.Fprintf(&b, " about %s", w.ActiveDialogue.Topic)
		}
		b.WriteString("\n")
	}

	return model.ProviderContext{
		Content:  strings.TrimRight(b.String(), "\n"),
		Priority: priorityWorldState,
	}, nil
}

// GoalsProvider renders active quests and their objectives.
type GoalsProvider struct{}

func (GoalsProvider) Name() string { return NameGoals }

func (GoalsProvider) Context(_ context.Context, view View) (model.ProviderContext, error) {
	quests := view.World.ActiveQuests
	if len(quests) == 0 {
		return model.ProviderContext{
			Content:  "No active quests.",
			Priority: priorityGoals,
		}, nil
	}

	var b strings.Builder
	for _, q := range quests {
		status := "in progress"
		if q.Completed {
			status = "complete"
		}
		fmt.Fprintf(&b, "Quest %q (%s):\n", q.Name, status)
		for _, o := range q.Objectives {
			mark := "[ ]"
			if o.Completed {
				mark = "[x]"
			}
			fmt.Fprintf(&b, "  %s %s\n", mark, o.Description)
		}
	}
	return model.ProviderContext{
		Content:  strings.TrimRight(b.String(), "\n"),
		Priority: priorityGoals,
	}, nil
}

// MemoryProvider renders the highest-confidence memories for the session.
type MemoryProvider struct {
	Source MemorySource
	Limit  int
}

func (*MemoryProvider) Name() string { return NameMemory }

func (p *MemoryProvider) Context(_ context.Context, view View) (model.ProviderContext, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 10
	}
	entries := p.Source.Top(view.SessionID, limit)
	if len(entries) == 0 {
		return model.ProviderContext{
			Content:  "No memories yet.",
			Priority: priorityMemory,
		}, nil
	}

	var b strings.Builder
	for _, m := range entries {
		fmt.Fprintf(&b, "- [%s, confidence %.2f] %s\n", m.Type, m.Confidence, m.Content)
	}
	return model.ProviderContext{
		Content:  strings.TrimRight(b.String(), "\n"),
		Priority: priorityMemory,
	}, nil
}

// PerformanceProvider renders cumulative session performance counters.
type PerformanceProvider struct{}

func (PerformanceProvider) Name() string { return NamePerformance }

func (PerformanceProvider) Context(_ context.Context, view View) (model.ProviderContext, error) {
	m := view.Metrics
	content := fmt.Sprintf(
		"Cycles: %d, actions: %d (%d failed), total reward: %.2f, reward/action: %.2f",
		m.CyclesRun, m.ActionsExecuted, m.ActionsFailed, m.TotalReward, m.RewardPerAction(),
	)
	return model.ProviderContext{Content: content, Priority: priorityPerformance}, nil
}

// RecentEventsProvider renders a digest of the session's latest events.
type RecentEventsProvider struct {
	Source EventSource
	Limit  int
}

func (*RecentEventsProvider) Name() string { return NameRecentEvents }

func (p *RecentEventsProvider) Context(_ context.Context, view View) (model.ProviderContext, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 10
	}
	events := p.Source.Recent(view.SessionID, limit)
	if len(events) == 0 {
		return model.ProviderContext{
			Content:  "No recent events.",
			Priority: priorityRecentEvents,
		}, nil
	}

	var b strings.Builder
	for _, ev := range events {
		fmt.Fprintf(&b, "- %s: %s\n", ev.Kind, summarizeEvent(ev))
	}
	return model.ProviderContext{
		Content:  strings.TrimRight(b.String(), "\n"),
		Priority: priorityRecentEvents,
	}, nil
}

// summarizeEvent renders one event payload as a short line.
func summarizeEvent(ev model.Event) string {
	switch ev.Kind {
	case model.EventAction:
		if desc, ok := ev.Payload["description"].(string); ok && desc != "" {
			return desc
		}
		if tool, ok := ev.Payload["tool"].(string); ok {
			return tool
		}
	case model.EventThought:
		if text, ok := ev.Payload["text"].(string); ok {
			return truncate(text, 120)
		}
	case model.EventReward:
		if v, ok := ev.Payload["value"].(float64); ok {
			return fmt.Sprintf("%+.2f", v)
		}
	case model.EventError:
		if msg, ok := ev.Payload["message"].(string); ok {
			return msg
		}
	}
	if len(ev.Payload) == 0 {
		return string(ev.Kind)
	}
	return fmt.Sprintf("%v", ev.Payload)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// Back up to a rune boundary so the cut never splits a code point.
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
