package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/questweaver-ai/questweaver/internal/model"
	"github.com/questweaver-ai/questweaver/internal/reasoning"
	"github.com/questweaver-ai/questweaver/internal/runtime"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	rt, err := runtime.New(runtime.Config{
		Logger: logger,
		Reasoner: reasoning.NewScripted(reasoning.Step{
			Text: "Attacking the goblin.",
			ToolCalls: []reasoning.ToolCall{
				{ID: "c1", Name: "attack", Arguments: `{"target_id":"goblin_1"}`},
			},
		}),
		CycleDelay: time.Millisecond,
	})
	require.NoError(t, err)
	return New(rt, logger, "test")
}

func callRequest(name string, args map[string]any) mcplib.CallToolRequest {
	return mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// parseToolText extracts the first TextContent text from a CallToolResult.
func parseToolText(t *testing.T, result *mcplib.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcplib.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return text.Text
}

func initializeSession(t *testing.T, s *Server) model.RuntimeState {
	t.Helper()
	result, err := s.handleInitialize(context.Background(), callRequest("agent_initialize", map[string]any{
		"world_state": `{"environment":"darkwood","visible_entities":[{"id":"goblin_1","type":"goblin"}]}`,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, "initialize should succeed: %s", parseToolText(t, result))

	var state model.RuntimeState
	require.NoError(t, json.Unmarshal([]byte(parseToolText(t, result)), &state))
	return state
}

func TestInitializeValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing world_state", map[string]any{}},
		{"malformed json", map[string]any{"world_state": `{"environment":`}},
		{"missing environment", map[string]any{"world_state": `{}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.handleInitialize(context.Background(), callRequest("agent_initialize", tt.args))
			require.NoError(t, err)
			assert.True(t, result.IsError)
		})
	}
}

func TestDecideTool(t *testing.T) {
	s := newTestServer(t)
	state := initializeSession(t, s)

	result, err := s.handleDecide(context.Background(), callRequest("agent_decide", map[string]any{
		"session_id": state.SessionID.String(),
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, parseToolText(t, result))

	var summary cycleSummary
	require.NoError(t, json.Unmarshal([]byte(parseToolText(t, result)), &summary))
	assert.Contains(t, summary.Reasoning, "Attacking the goblin")
	require.Len(t, summary.Actions, 1)
	assert.Equal(t, "attack", summary.Actions[0].Tool)
	assert.True(t, summary.Actions[0].Success)
	assert.InDelta(t, 5.0, summary.Actions[0].Reward, 1e-9)
	require.Len(t, summary.Cycles, 1)
	assert.Equal(t, "combat", summary.Cycles[0].Template)
}

func TestDecideUnknownSession(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleDecide(context.Background(), callRequest("agent_decide", map[string]any{
		"session_id": "00000000-0000-0000-0000-000000000001",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = s.handleDecide(context.Background(), callRequest("agent_decide", map[string]any{
		"session_id": "nope",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestAutonomousTool(t *testing.T) {
	s := newTestServer(t)
	state := initializeSession(t, s)

	result, err := s.handleAutonomous(context.Background(), callRequest("agent_autonomous", map[string]any{
		"session_id": state.SessionID.String(),
		"steps":      2,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, parseToolText(t, result))

	var summary cycleSummary
	require.NoError(t, json.Unmarshal([]byte(parseToolText(t, result)), &summary))
	assert.Len(t, summary.Cycles, 2)
}

func TestPauseResumeStateTools(t *testing.T) {
	s := newTestServer(t)
	state := initializeSession(t, s)
	args := map[string]any{"session_id": state.SessionID.String()}

	result, err := s.handlePause(context.Background(), callRequest("agent_pause", args))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var paused model.RuntimeState
	require.NoError(t, json.Unmarshal([]byte(parseToolText(t, result)), &paused))
	assert.Equal(t, model.StatusWaiting, paused.Status)

	// A paused session refuses to decide.
	result, err = s.handleDecide(context.Background(), callRequest("agent_decide", args))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = s.handleResume(context.Background(), callRequest("agent_resume", args))
	require.NoError(t, err)
	require.False(t, result.IsError)

	result, err = s.handleState(context.Background(), callRequest("agent_state", args))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var got model.RuntimeState
	require.NoError(t, json.Unmarshal([]byte(parseToolText(t, result)), &got))
	assert.Equal(t, model.StatusIdle, got.Status)
	assert.Equal(t, "darkwood", got.WorldState.Environment)
}

func TestEventsAndEndTools(t *testing.T) {
	s := newTestServer(t)
	state := initializeSession(t, s)
	args := map[string]any{"session_id": state.SessionID.String()}

	_, err := s.handleDecide(context.Background(), callRequest("agent_decide", args))
	require.NoError(t, err)

	result, err := s.handleEvents(context.Background(), callRequest("agent_events", map[string]any{
		"session_id": state.SessionID.String(),
		"kinds":      "reward",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var batch struct {
		Count  int `json:"count"`
		Events []struct {
			Kind string `json:"kind"`
		} `json:"events"`
	}
	require.NoError(t, json.Unmarshal([]byte(parseToolText(t, result)), &batch))
	require.Equal(t, 1, batch.Count)
	assert.Equal(t, "reward", batch.Events[0].Kind)

	result, err = s.handleEvents(context.Background(), callRequest("agent_events", map[string]any{
		"session_id": state.SessionID.String(),
		"kinds":      "bogus",
	}))
	require.NoError(t, err)
	require.True(t, result.IsError)
	assert.Contains(t, parseToolText(t, result), "unknown event kind")

	result, err = s.handleEnd(context.Background(), callRequest("agent_end", args))
	require.NoError(t, err)
	require.False(t, result.IsError)

	result, err = s.handleState(context.Background(), callRequest("agent_state", args))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestSessionsResource(t *testing.T) {
	s := newTestServer(t)
	state := initializeSession(t, s)

	contents, err := s.handleSessionsResource(context.Background(), mcplib.ReadResourceRequest{
		Params: mcplib.ReadResourceParams{URI: "questweaver://sessions"},
	})
	require.NoError(t, err)
	require.Len(t, contents, 1)

	text, ok := contents[0].(mcplib.TextResourceContents)
	require.True(t, ok)
	assert.Contains(t, text.Text, state.SessionID.String())
}

func TestMemoriesResource(t *testing.T) {
	s := newTestServer(t)
	state := initializeSession(t, s)

	_, err := s.handleDecide(context.Background(), callRequest("agent_decide", map[string]any{
		"session_id": state.SessionID.String(),
	}))
	require.NoError(t, err)

	uri := "questweaver://session/" + state.SessionID.String() + "/memories"
	contents, err := s.handleMemoriesResource(context.Background(), mcplib.ReadResourceRequest{
		Params: mcplib.ReadResourceParams{URI: uri},
	})
	require.NoError(t, err)
	require.Len(t, contents, 1)

	text, ok := contents[0].(mcplib.TextResourceContents)
	require.True(t, ok)
	assert.Contains(t, text.Text, "confidence")

	_, err = s.handleMemoriesResource(context.Background(), mcplib.ReadResourceRequest{
		Params: mcplib.ReadResourceParams{URI: "questweaver://session/nope/memories"},
	})
	require.Error(t, err)
}
