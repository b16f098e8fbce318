package reasoning

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptedReplaysSteps(t *testing.T) {
	svc := NewScripted(
		Step{
			Text:      "Moving north toward the shrine.",
			ToolCalls: []ToolCall{{ID: "c1", Name: "move", Arguments: `{"destination":"shrine"}`}},
		},
		Step{
			Text:      "Resting here.",
			ToolCalls: []ToolCall{{ID: "c2", Name: "wait", Arguments: "{}"}},
		},
	)

	var chunks []string
	collect := func(chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	}

	res, err := svc.Stream(context.Background(), Request{Prompt: "first"}, collect)
	require.NoError(t, err)
	assert.Equal(t, "Moving north toward the shrine.", res.Text)
	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, "move", res.ToolCalls[0].Name)

	// The last step repeats once the script is exhausted.
	for i := 0; i < 3; i++ {
		res, err = svc.Stream(context.Background(), Request{Prompt: "again"}, collect)
		require.NoError(t, err)
		assert.Equal(t, "wait", res.ToolCalls[0].Name)
	}

	assert.Equal(t, []string{
		"Moving north toward the shrine.",
		"Resting here.", "Resting here.", "Resting here.",
	}, chunks)
	require.Len(t, svc.Requests, 4)
	assert.Equal(t, "first", svc.Requests[0].Prompt)
}

func TestScriptedErrorStep(t *testing.T) {
	boom := errors.New("model unavailable")
	svc := NewScripted(Step{Err: boom})

	_, err := svc.Stream(context.Background(), Request{}, nil)
	require.ErrorIs(t, err, boom)
}

func TestScriptedHonorsContext(t *testing.T) {
	svc := NewScripted()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Stream(ctx, Request{}, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestScriptedStopsOnTextError(t *testing.T) {
	svc := NewScripted(Step{Text: "thinking", ToolCalls: []ToolCall{{Name: "wait"}}})
	abort := errors.New("subscriber gone")

	_, err := svc.Stream(context.Background(), Request{}, func(string) error { return abort })
	require.ErrorIs(t, err, abort)
}

func TestEnsureObjectType(t *testing.T) {
	assert.Equal(t, map[string]any{"type": "object"}, ensureObjectType(nil))

	params := map[string]any{"properties": map[string]any{}}
	got := ensureObjectType(params)
	assert.Equal(t, "object", got["type"])
	// The caller's map is shared with the tool catalog and must not change.
	_, mutated := params["type"]
	assert.False(t, mutated)

	typed := map[string]any{"type": "object", "properties": map[string]any{}}
	assert.Equal(t, typed, ensureObjectType(typed))
}

func TestOpenAIServiceConfig(t *testing.T) {
	_, err := NewOpenAIService(OpenAIConfig{}, nil)
	require.Error(t, err)

	svc, err := NewOpenAIService(OpenAIConfig{APIKey: "sk-test"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "openai", svc.Name())
	assert.Equal(t, "gpt-4o-mini", svc.cfg.Model)
	assert.Equal(t, 1024, svc.cfg.MaxTokens)
}
