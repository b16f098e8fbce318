package evaluators

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questweaver-ai/questweaver/internal/model"
)

func actionEvent(tool string, success bool, reward float64, targetID string) model.Event {
	payload := map[string]any{
		"tool":        tool,
		"success":     success,
		"reward":      reward,
		"description": tool + " outcome",
	}
	if targetID != "" {
		payload["arguments"] = map[string]any{"target_id": targetID}
	}
	return model.Event{Kind: model.EventAction, Payload: payload}
}

func TestSuccessPatternEvaluator(t *testing.T) {
	events := []model.Event{
		actionEvent("attack", true, 5, "goblin_1"),
		actionEvent("attack", true, 4, "goblin_1"),
		actionEvent("attack", true, 6, "goblin_1"),
		{Kind: model.EventThought, Payload: map[string]any{"text": "hm"}},
	}

	res, err := SuccessPatternEvaluator{}.Evaluate(events, uuid.New())
	require.NoError(t, err)

	require.Len(t, res.Patterns, 1)
	assert.Equal(t, "success:attack", res.Patterns[0].ID)
	assert.Equal(t, 3, res.Patterns[0].Occurrences)
	assert.InDelta(t, 0.3, res.Patterns[0].Significance, 1e-9)

	require.Len(t, res.Facts, 1)
	assert.Equal(t, model.MemoryPattern, res.Facts[0].Type)
	assert.Contains(t, res.Facts[0].Content, "attack succeeded 3 times with average reward 5.0")
	assert.InDelta(t, 0.3, res.Facts[0].Confidence, 1e-9)
}

func TestSuccessPatternConfidenceCaps(t *testing.T) {
	var events []model.Event
	for i := 0; i < 25; i++ {
		events = append(events, actionEvent("move", true, 0.1, ""))
	}

	res, err := SuccessPatternEvaluator{}.Evaluate(events, uuid.New())
	require.NoError(t, err)
	require.Len(t, res.Facts, 1)
	assert.Equal(t, 1.0, res.Facts[0].Confidence)
}

func TestMistakeLearningEvaluator(t *testing.T) {
	events := []model.Event{
		actionEvent("interact", false, -0.5, "ghost_9"),
		actionEvent("interact", false, -0.5, "ghost_9"),
		actionEvent("move", true, 0.1, ""),
	}

	res, err := MistakeLearningEvaluator{}.Evaluate(events, uuid.New())
	require.NoError(t, err)
	require.Len(t, res.Facts, 1)
	assert.Equal(t, model.MemoryLesson, res.Facts[0].Type)
	assert.Contains(t, res.Facts[0].Content, "avoid repeating")
	assert.InDelta(t, 0.4, res.Facts[0].Confidence, 1e-9)
	assert.NotEmpty(t, res.Recommendations)
}

func TestGoalProgressEvaluator(t *testing.T) {
	events := []model.Event{
		actionEvent("quest_action", true, 2, ""),
		actionEvent("quest_action", true, 10, ""),
		actionEvent("move", true, 0.1, ""),
	}

	res, err := GoalProgressEvaluator{}.Evaluate(events, uuid.New())
	require.NoError(t, err)
	require.Len(t, res.Facts, 1)
	assert.Equal(t, model.MemoryGoal, res.Facts[0].Type)
	assert.Contains(t, res.Facts[0].Content, "2 actions worth 12.0 reward")
}

func TestRelationshipBuckets(t *testing.T) {
	var events []model.Event
	// 1 interaction: initial. 3: developing. 6: strong.
	events = append(events, actionEvent("speak", true, 0.5, "npc_initial"))
	for i := 0; i < 3; i++ {
		events = append(events, actionEvent("speak", true, 0.5, "npc_developing"))
	}
	for i := 0; i < 6; i++ {
		events = append(events, actionEvent("interact", true, 1, "npc_strong"))
	}

	res, err := RelationshipEvaluator{}.Evaluate(events, uuid.New())
	require.NoError(t, err)
	require.Len(t, res.Facts, 3)

	for _, f := range res.Facts {
		assert.Equal(t, model.MemoryRelationship, f.Type)
	}
	// Facts sort by entity id for determinism.
	assert.Contains(t, res.Facts[1].Content, "npc_initial: initial (1 interactions)")
	assert.Contains(t, res.Facts[0].Content, "npc_developing: developing (3 interactions)")
	assert.Contains(t, res.Facts[2].Content, "npc_strong: strong (6 interactions)")
}

func TestEfficiencyRatings(t *testing.T) {
	tests := []struct {
		name    string
		rewards []float64
		rating  string
	}{
		{"excellent single attack", []float64{5}, "excellent"},
		{"good", []float64{1.5, 1.5}, "good"},
		{"fair", []float64{0.5, 0.5}, "fair"},
		{"poor", []float64{-0.5, 0.5}, "poor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var events []model.Event
			for _, r := range tt.rewards {
				events = append(events, actionEvent("attack", r > 0, r, ""))
			}
			res, err := EfficiencyEvaluator{}.Evaluate(events, uuid.New())
			require.NoError(t, err)
			require.Len(t, res.Facts, 1)
			assert.Contains(t, res.Facts[0].Content, "efficiency "+tt.rating)
		})
	}
}

func TestEfficiencyEmptyWindow(t *testing.T) {
	res, err := EfficiencyEvaluator{}.Evaluate(nil, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, res.Facts)
}

type failingEvaluator struct{ name string }

func (f failingEvaluator) Name() string { return f.name }

func (failingEvaluator) Evaluate([]model.Event, uuid.UUID) (model.EvaluationResult, error) {
	return model.EvaluationResult{}, errors.New("boom")
}

func TestEvaluateAllIsolation(t *testing.T) {
	r, err := NewDefaultRegistry(slog.Default())
	require.NoError(t, err)
	require.NoError(t, r.Register(failingEvaluator{name: "broken"}))

	events := []model.Event{actionEvent("attack", true, 5, "goblin_1")}
	results := r.EvaluateAll(events, uuid.New())

	// Five standard evaluators report; the broken one is excluded.
	require.Len(t, results, 5)
	names := make([]string, len(results))
	for i, res := range results {
		names[i] = res.Evaluator
	}
	assert.Equal(t, []string{
		NameSuccessPattern, NameMistakeLearning, NameGoalProgress, NameRelationship, NameEfficiency,
	}, names)
}
