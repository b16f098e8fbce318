package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/questweaver-ai/questweaver/internal/model"
	"github.com/questweaver-ai/questweaver/internal/runtime"
)

func (s *Server) registerTools() {
	// agent_initialize: start a session around an initial world state.
	s.mcpServer.AddTool(
		mcplib.NewTool("agent_initialize",
			mcplib.WithDescription(`Start a new agent session from an initial world state.

The world state is a JSON object with at least an "environment" name;
position, stats, inventory, visible_entities, active_quests, and
available_actions are optional. Returns the new session's runtime state,
including its session_id, which every other tool requires.`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(false),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("world_state",
				mcplib.Description("Initial world state as a JSON object"),
				mcplib.Required(),
			),
		),
		s.handleInitialize,
	)

	// agent_decide: run one decision cycle.
	s.mcpServer.AddTool(
		mcplib.NewTool("agent_decide",
			mcplib.WithDescription(`Run one decision cycle for a session.

The agent gathers context, reasons, executes the tools it chooses, and
learns from the outcome. Returns the full reasoning text, every action
taken with its reward, and the cycle's template.`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithOpenWorldHintAnnotation(true),
			mcplib.WithString("session_id",
				mcplib.Description("Session to decide for"),
				mcplib.Required(),
			),
		),
		s.handleDecide,
	)

	// agent_autonomous: run a bounded autonomous loop.
	s.mcpServer.AddTool(
		mcplib.NewTool("agent_autonomous",
			mcplib.WithDescription(`Run up to N decision cycles back to back.

The loop stops early if the session is paused or errors. Returns a
per-cycle summary of actions and rewards.`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithOpenWorldHintAnnotation(true),
			mcplib.WithString("session_id",
				mcplib.Description("Session to run"),
				mcplib.Required(),
			),
			mcplib.WithNumber("steps",
				mcplib.Description("Step budget for the loop"),
				mcplib.Min(1),
				mcplib.Max(50),
				mcplib.DefaultNumber(5),
			),
		),
		s.handleAutonomous,
	)

	// agent_pause / agent_resume: lifecycle control.
	s.mcpServer.AddTool(
		mcplib.NewTool("agent_pause",
			mcplib.WithDescription("Pause a session. A processing session pauses after its in-flight cycle."),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithString("session_id", mcplib.Required()),
		),
		s.handlePause,
	)
	s.mcpServer.AddTool(
		mcplib.NewTool("agent_resume",
			mcplib.WithDescription("Resume a paused session."),
			mcplib.WithString("session_id", mcplib.Required()),
		),
		s.handleResume,
	)

	// agent_state: runtime state snapshot.
	s.mcpServer.AddTool(
		mcplib.NewTool("agent_state",
			mcplib.WithDescription("Get a session's runtime state: status, world state, and metrics."),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithString("session_id", mcplib.Required()),
		),
		s.handleState,
	)

	// agent_events: export an event batch.
	s.mcpServer.AddTool(
		mcplib.NewTool("agent_events",
			mcplib.WithDescription("Export a session's recent events, optionally filtered by kind."),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithString("session_id", mcplib.Required()),
			mcplib.WithString("kinds",
				mcplib.Description("Comma-separated event kinds: state, action, observation, message, reward, error, thought"),
			),
			mcplib.WithNumber("limit",
				mcplib.Description("Maximum events to return"),
				mcplib.Min(1),
				mcplib.Max(1000),
				mcplib.DefaultNumber(50),
			),
		),
		s.handleEvents,
	)

	// agent_end: end a session.
	s.mcpServer.AddTool(
		mcplib.NewTool("agent_end",
			mcplib.WithDescription("End a session and discard its event log and memories."),
			mcplib.WithDestructiveHintAnnotation(true),
			mcplib.WithString("session_id", mcplib.Required()),
		),
		s.handleEnd,
	)
}

func (s *Server) handleInitialize(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	raw := request.GetString("world_state", "")
	if raw == "" {
		return errorResult("world_state is required"), nil
	}

	var world model.WorldState
	if err := json.Unmarshal([]byte(raw), &world); err != nil {
		return errorResult(fmt.Sprintf("invalid world_state: %v", err)), nil
	}
	if world.Environment == "" {
		return errorResult("world_state.environment is required"), nil
	}

	state := s.runtime.CreateSession(world)
	return jsonResult(state)
}

func (s *Server) handleDecide(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	id, res := s.sessionID(request)
	if res != nil {
		return res, nil
	}

	ch, err := s.runtime.Decide(ctx, id)
	if err != nil {
		return errorResult(fmt.Sprintf("decide failed: %v", err)), nil
	}
	summary := collect(ch)
	if summary.Error != "" {
		return errorResult("cycle failed: " + summary.Error), nil
	}
	return jsonResult(summary)
}

func (s *Server) handleAutonomous(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	id, res := s.sessionID(request)
	if res != nil {
		return res, nil
	}
	steps := request.GetInt("steps", 5)

	ch, err := s.runtime.RunAutonomous(ctx, id, steps)
	if err != nil {
		return errorResult(fmt.Sprintf("autonomous run failed: %v", err)), nil
	}
	return jsonResult(collect(ch))
}

func (s *Server) handlePause(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	id, res := s.sessionID(request)
	if res != nil {
		return res, nil
	}
	state, err := s.runtime.Pause(id)
	if err != nil {
		return errorResult(fmt.Sprintf("pause failed: %v", err)), nil
	}
	return jsonResult(state)
}

func (s *Server) handleResume(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	id, res := s.sessionID(request)
	if res != nil {
		return res, nil
	}
	state, err := s.runtime.Resume(id)
	if err != nil {
		return errorResult(fmt.Sprintf("resume failed: %v", err)), nil
	}
	return jsonResult(state)
}

func (s *Server) handleState(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	id, res := s.sessionID(request)
	if res != nil {
		return res, nil
	}
	state, err := s.runtime.State(id)
	if err != nil {
		return errorResult(fmt.Sprintf("state lookup failed: %v", err)), nil
	}
	return jsonResult(state)
}

func (s *Server) handleEvents(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	id, res := s.sessionID(request)
	if res != nil {
		return res, nil
	}

	var kinds []model.EventKind
	if raw := request.GetString("kinds", ""); raw != "" {
		for _, k := range strings.Split(raw, ",") {
			kind := model.EventKind(strings.TrimSpace(k))
			if !model.ValidEventKinds[kind] {
				return errorResult(fmt.Sprintf("unknown event kind %q", kind)), nil
			}
			kinds = append(kinds, kind)
		}
	}
	limit := request.GetInt("limit", 50)

	batch, err := s.runtime.ExportEvents(id, kinds, limit)
	if err != nil {
		return errorResult(fmt.Sprintf("event export failed: %v", err)), nil
	}
	return jsonResult(batch)
}

func (s *Server) handleEnd(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	id, res := s.sessionID(request)
	if res != nil {
		return res, nil
	}
	if err := s.runtime.EndSession(id); err != nil {
		return errorResult(fmt.Sprintf("end failed: %v", err)), nil
	}
	return textResult(fmt.Sprintf("session %s ended", id)), nil
}

func (s *Server) sessionID(request mcplib.CallToolRequest) (uuid.UUID, *mcplib.CallToolResult) {
	raw := request.GetString("session_id", "")
	if raw == "" {
		return uuid.Nil, errorResult("session_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errorResult("invalid session_id: " + raw)
	}
	return id, nil
}

// cycleSummary is the drained form of a decision stream for MCP clients,
// which consume a single response rather than an incremental stream.
type cycleSummary struct {
	Reasoning string          `json:"reasoning"`
	Actions   []actionSummary `json:"actions"`
	Cycles    []cycleOutcome  `json:"cycles"`
	Error     string          `json:"error,omitempty"`
}

type actionSummary struct {
	Step    int     `json:"step,omitempty"`
	Tool    string  `json:"tool"`
	Success bool    `json:"success"`
	Detail  string  `json:"detail,omitempty"`
	Reward  float64 `json:"reward"`
}

type cycleOutcome struct {
	Step     int     `json:"step,omitempty"`
	Template string  `json:"template"`
	Reward   float64 `json:"reward"`
}

func collect(ch <-chan runtime.Chunk) cycleSummary {
	var summary cycleSummary
	var reasoning strings.Builder

	for chunk := range ch {
		switch chunk.Type {
		case runtime.ChunkThought:
			reasoning.WriteString(chunk.Text)
		case runtime.ChunkAction:
			summary.Actions = append(summary.Actions, actionSummary{
				Step:    chunk.Step,
				Tool:    chunk.Tool,
				Success: chunk.Success,
				Detail:  chunk.Text,
			})
		case runtime.ChunkReward:
			if n := len(summary.Actions); n > 0 && summary.Actions[n-1].Tool == chunk.Tool {
				summary.Actions[n-1].Reward = chunk.Reward
			}
		case runtime.ChunkCycleEnd:
			summary.Cycles = append(summary.Cycles, cycleOutcome{
				Step:     chunk.Step,
				Template: chunk.Template,
				Reward:   chunk.Reward,
			})
		case runtime.ChunkError:
			summary.Error = chunk.Text
		}
	}
	summary.Reasoning = reasoning.String()
	return summary
}

func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return textResult(string(data)), nil
}
