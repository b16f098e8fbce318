package providers

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questweaver-ai/questweaver/internal/model"
)

type stubProvider struct {
	name     string
	priority int
	content  string
	err      error
	panics   bool
}

func (s stubProvider) Name() string { return s.name }

func (s stubProvider) Context(_ context.Context, _ View) (model.ProviderContext, error) {
	if s.panics {
		panic("stub panic")
	}
	if s.err != nil {
		return model.ProviderContext{}, s.err
	}
	return model.ProviderContext{Content: s.content, Priority: s.priority}, nil
}

func TestGetAllContextsPriorityOrdering(t *testing.T) {
	r := NewRegistry(slog.Default())
	require.NoError(t, r.Register(stubProvider{name: "low", priority: 1, content: "l"}))
	require.NoError(t, r.Register(stubProvider{name: "high", priority: 10, content: "h"}))
	require.NoError(t, r.Register(stubProvider{name: "mid", priority: 5, content: "m"}))

	out := r.GetAllContexts(context.Background(), View{SessionID: uuid.New()})
	require.Len(t, out, 3)
	assert.Equal(t, []string{"high", "mid", "low"}, []string{out[0].Provider, out[1].Provider, out[2].Provider})
}

func TestGetAllContextsTiesPreserveRegistrationOrder(t *testing.T) {
	r := NewRegistry(slog.Default())
	require.NoError(t, r.Register(stubProvider{name: "first", priority: 5}))
	require.NoError(t, r.Register(stubProvider{name: "second", priority: 5}))
	require.NoError(t, r.Register(stubProvider{name: "third", priority: 5}))

	for i := 0; i < 10; i++ {
		out := r.GetAllContexts(context.Background(), View{})
		require.Len(t, out, 3)
		assert.Equal(t, "first", out[0].Provider)
		assert.Equal(t, "second", out[1].Provider)
		assert.Equal(t, "third", out[2].Provider)
	}
}

func TestGetAllContextsFailureIsolation(t *testing.T) {
	r := NewRegistry(slog.Default())
	require.NoError(t, r.Register(stubProvider{name: "ok1", priority: 3, content: "a"}))
	require.NoError(t, r.Register(stubProvider{name: "broken", priority: 9, err: errors.New("boom")}))
	require.NoError(t, r.Register(stubProvider{name: "ok2", priority: 1, content: "b"}))

	out := r.GetAllContexts(context.Background(), View{})
	require.Len(t, out, 2, "exactly K-1 results when one of K providers fails")
	assert.Equal(t, "ok1", out[0].Provider)
	assert.Equal(t, "ok2", out[1].Provider)
}

func TestGetAllContextsPanicIsolation(t *testing.T) {
	r := NewRegistry(slog.Default())
	require.NoError(t, r.Register(stubProvider{name: "panicky", priority: 9, panics: true}))
	require.NoError(t, r.Register(stubProvider{name: "ok", priority: 1, content: "fine"}))

	out := r.GetAllContexts(context.Background(), View{})
	require.Len(t, out, 1)
	assert.Equal(t, "ok", out[0].Provider)
}

func TestGetUnknownProvider(t *testing.T) {
	r := NewRegistry(slog.Default())
	_, err := r.Get("nope")
	require.ErrorIs(t, err, ErrProviderNotFound)
}

type stubMemories struct{ entries []model.MemoryEntry }

func (s stubMemories) Top(_ uuid.UUID, n int) []model.MemoryEntry {
	if len(s.entries) > n {
		return s.entries[:n]
	}
	return s.entries
}

type stubEvents struct{ events []model.Event }

func (s stubEvents) Recent(_ uuid.UUID, n int) []model.Event {
	if len(s.events) > n {
		return s.events[len(s.events)-n:]
	}
	return s.events
}

func TestDefaultProviders(t *testing.T) {
	r := NewRegistry(slog.Default())
	memories := stubMemories{entries: []model.MemoryEntry{
		{Type: model.MemoryLesson, Content: "goblins flee at low health", Confidence: 0.8},
	}}
	events := stubEvents{events: []model.Event{
		{Kind: model.EventAction, Payload: map[string]any{"description": "attacked goblin"}},
	}}
	require.NoError(t, RegisterDefaults(r, memories, events))

	view := View{
		SessionID: uuid.New(),
		World: model.WorldState{
			Environment:     "darkwood",
			VisibleEntities: []model.Entity{{ID: "goblin_1", Type: "goblin"}},
			ActiveQuests: []model.Quest{{
				ID: "q1", Name: "Clear the Woods",
				Objectives: []model.QuestObjective{{ID: "o1", Description: "defeat the goblin"}},
			}},
		},
		Metrics: model.SessionMetrics{CyclesRun: 2, ActionsExecuted: 3, TotalReward: 5.6},
	}

	out := r.GetAllContexts(context.Background(), view)
	require.Len(t, out, 5)

	// Priority descending: world_state, goals, memory, performance, recent_events.
	names := make([]string, len(out))
	for i, pc := range out {
		names[i] = pc.Provider
		assert.NotEmpty(t, pc.Content)
	}
	assert.Equal(t, []string{NameWorldState, NameGoals, NameMemory, NamePerformance, NameRecentEvents}, names)

	assert.Contains(t, out[0].Content, "darkwood")
	assert.Contains(t, out[1].Content, "Clear the Woods")
	assert.Contains(t, out[2].Content, "goblins flee")
	assert.Contains(t, out[3].Content, "reward")
	assert.Contains(t, out[4].Content, "attacked goblin")
}

func TestEmptySectionsRenderPlaceholders(t *testing.T) {
	r := NewRegistry(slog.Default())
	require.NoError(t, RegisterDefaults(r, stubMemories{}, stubEvents{}))

	out := r.GetAllContexts(context.Background(), View{})
	require.Len(t, out, 5)

	byName := map[string]string{}
	for _, pc := range out {
		byName[pc.Provider] = pc.Content
	}
	assert.Equal(t, "No active quests.", byName[NameGoals])
	assert.Equal(t, "No memories yet.", byName[NameMemory])
	assert.Equal(t, "No recent events.", byName[NameRecentEvents])
}

func TestRecentEventsDigestsThoughts(t *testing.T) {
	r := NewRegistry(slog.Default())
	events := stubEvents{events: []model.Event{
		{Kind: model.EventThought, Payload: map[string]any{"text": "the bridge looks unstable"}},
	}}
	require.NoError(t, RegisterDefaults(r, stubMemories{}, events))

	out := r.GetAllContexts(context.Background(), View{SessionID: uuid.New()})
	var recent string
	for _, pc := range out {
		if pc.Provider == NameRecentEvents {
			recent = pc.Content
		}
	}
	assert.Contains(t, recent, "the bridge looks unstable")
	assert.NotContains(t, recent, "map[")
}

func TestTruncateRuneBoundary(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 120))

	long := strings.Repeat("a", 119) + "世界"
	got := truncate(long, 120)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", 119)+"…", got)
}
