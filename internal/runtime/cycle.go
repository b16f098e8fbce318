package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/questweaver-ai/questweaver/internal/model"
	"github.com/questweaver-ai/questweaver/internal/prompt"
	"github.com/questweaver-ai/questweaver/internal/providers"
	"github.com/questweaver-ai/questweaver/internal/reasoning"
)

var tracer = otel.Tracer("questweaver/runtime")

// Decide runs a single decision cycle and streams its chunks. The returned
// channel is closed when the cycle finishes; cancellation of ctx abandons
// the stream.
func (r *Runtime) Decide(ctx context.Context, id uuid.UUID) (<-chan Chunk, error) {
	sess, err := r.session(id)
	if err != nil {
		return nil, err
	}
	if err := sess.begin(); err != nil {
		return nil, err
	}

	ch := make(chan Chunk, 16)
	go func() {
		defer close(ch)
		r.runCycle(ctx, id, sess, 0, ch)
	}()
	return ch, nil
}

// RunAutonomous runs up to maxSteps decision cycles, streaming all chunks.
// The loop checks pause and cancellation between cycles and inserts a fixed
// delay to respect external rate limits.
func (r *Runtime) RunAutonomous(ctx context.Context, id uuid.UUID, maxSteps int) (<-chan Chunk, error) {
	if maxSteps <= 0 {
		return nil, fmt.Errorf("runtime: step budget must be positive, got %d", maxSteps)
	}
	sess, err := r.session(id)
	if err != nil {
		return nil, err
	}
	if err := sess.begin(); err != nil {
		return nil, err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	sess.mu.Lock()
	sess.cancel = cancel
	sess.mu.Unlock()

	ch := make(chan Chunk, 16)
	go func() {
		defer close(ch)
		defer cancel()
		defer func() {
			sess.mu.Lock()
			sess.cancel = nil
			sess.mu.Unlock()
		}()

		for step := 1; step <= maxSteps; step++ {
			if step > 1 {
				select {
				case <-loopCtx.Done():
					return
				case <-time.After(r.cycleDelay):
				}
				if err := sess.begin(); err != nil {
					r.logger.Info("runtime: autonomous loop stopped",
						"session_id", id, "step", step, "reason", err)
					return
				}
			}
			if err := r.runCycle(loopCtx, id, sess, step, ch); err != nil {
				return
			}
		}
	}()
	return ch, nil
}

// runCycle executes one full decision cycle. The session must already be in
// processing; runCycle always leaves it in idle, waiting, or error.
func (r *Runtime) runCycle(ctx context.Context, id uuid.UUID, sess *session, step int, ch chan<- Chunk) error {
	ctx, span := tracer.Start(ctx, "runtime.cycle", trace.WithAttributes(
		attribute.String("session.id", id.String()),
		attribute.Int("cycle.step", step),
	))
	defer span.End()
	start := time.Now()

	sess.mu.Lock()
	world := sess.state.WorldState.Clone()
	metrics := sess.state.Metrics
	sess.mu.Unlock()

	contexts := r.providers.GetAllContexts(ctx, providers.View{
		SessionID: id,
		World:     world,
		Metrics:   metrics,
	})

	recent := r.events.Recent(id, promptEventWindow)
	templateName := prompt.Select(world, recent)
	span.SetAttributes(attribute.String("cycle.template", templateName))

	compiled, err := r.compiler.Compile(templateName, contexts, recent, r.memories.Top(id, prompt.DefaultMemoryLimit))
	if err != nil {
		return r.abortCycle(ctx, id, sess, step, ch, "compile", err)
	}

	result, err := r.reason(ctx, id, step, compiled, ch)
	if err != nil {
		return r.abortCycle(ctx, id, sess, step, ch, "reasoning", err)
	}

	cycleReward := r.dispatch(ctx, id, sess, step, result.ToolCalls, ch)

	// Evaluators see only the trailing window, including this cycle's
	// events.
	evals := r.evaluators.EvaluateAll(r.events.Recent(id, evalWindow), id)
	learned := r.persistFacts(id, evals)

	sess.mu.Lock()
	sess.state.Metrics.CyclesRun++
	sess.mu.Unlock()
	sess.finish("")

	r.cyclesRun.Add(ctx, 1)
	r.cycleDuration.Record(ctx, float64(time.Since(start).Milliseconds()))
	r.logger.Info("runtime: cycle complete",
		"session_id", id,
		"template", templateName,
		"tool_calls", len(result.ToolCalls),
		"reward", cycleReward,
		"facts_learned", learned,
		"duration", time.Since(start),
	)

	send(ctx, ch, Chunk{
		Type:      ChunkCycleEnd,
		SessionID: id,
		Step:      step,
		Template:  templateName,
		Reward:    cycleReward,
	})
	return nil
}

// reason streams the model response, logging each text delta as a thought
// event and forwarding it to the chunk stream.
func (r *Runtime) reason(ctx context.Context, id uuid.UUID, step int, compiled prompt.CompiledPrompt, ch chan<- Chunk) (reasoning.Result, error) {
	catalog := r.tools.Catalog()
	specs := make([]reasoning.ToolSpec, len(catalog))
	for i, entry := range catalog {
		specs[i] = reasoning.ToolSpec{
			Name:        entry.Name,
			Description: entry.Description,
			Parameters:  entry.Parameters,
		}
	}

	rctx, cancel := context.WithTimeout(ctx, r.reasoningTimeout)
	defer cancel()

	result, err := r.reasoner.Stream(rctx, reasoning.Request{
		System:      compiled.System,
		Prompt:      compiled.User,
		Tools:       specs,
		Temperature: r.temperature,
		MaxTokens:   r.maxTokens,
	}, func(chunk string) error {
		r.record(model.Event{
			SessionID: id,
			Kind:      model.EventThought,
			Source:    r.reasoner.Name(),
			Payload:   eventPayload(model.ThoughtPayload{Text: chunk}),
		})
		if !send(ctx, ch, Chunk{Type: ChunkThought, SessionID: id, Step: step, Text: chunk}) {
			return ctx.Err()
		}
		return nil
	})
	if err != nil {
		return result, err
	}
	if len(result.ToolCalls) == 0 {
		return result, reasoning.ErrNoDecision
	}
	return result, nil
}

// dispatch validates and executes each tool call, logging action and reward
// events and replacing the session's world state on success. Tool failures
// are absorbed; they never abort the cycle.
func (r *Runtime) dispatch(ctx context.Context, id uuid.UUID, sess *session, step int, calls []reasoning.ToolCall, ch chan<- Chunk) float64 {
	var cycleReward float64
	for _, call := range calls {
		r.toolCalls.Add(ctx, 1)

		args := map[string]any{}
		if call.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
				r.recordToolError(id, call.Name, fmt.Sprintf("malformed arguments: %v", err))
				r.countFailure(sess)
				continue
			}
		}

		sess.mu.Lock()
		world := sess.state.WorldState.Clone()
		sess.mu.Unlock()

		result, err := r.tools.Execute(model.ToolInvocation{Tool: call.Name, Arguments: args}, world)
		if err != nil {
			r.recordToolError(id, call.Name, err.Error())
			r.countFailure(sess)
			continue
		}

		r.record(model.Event{
			SessionID: id,
			Kind:      model.EventAction,
			Source:    "runtime",
			Payload: eventPayload(model.ActionPayload{
				Tool:        call.Name,
				Arguments:   args,
				Success:     result.Success,
				Reward:      result.Reward,
				Description: result.Description,
			}),
		})
		if result.Reward != 0 {
			r.record(model.Event{
				SessionID: id,
				Kind:      model.EventReward,
				Source:    "runtime",
				Payload:   eventPayload(model.RewardPayload{Value: result.Reward, Tool: call.Name}),
			})
		}

		sess.mu.Lock()
		if result.Success {
			sess.state.WorldState = result.WorldState
			sess.state.Metrics.ActionsExecuted++
		} else {
			sess.state.Metrics.ActionsFailed++
		}
		sess.state.Metrics.TotalReward += result.Reward
		sess.mu.Unlock()
		cycleReward += result.Reward

		send(ctx, ch, Chunk{
			Type:      ChunkAction,
			SessionID: id,
			Step:      step,
			Tool:      call.Name,
			Success:   result.Success,
			Text:      result.Description,
		})
		if result.Reward != 0 {
			send(ctx, ch, Chunk{
				Type:      ChunkReward,
				SessionID: id,
				Step:      step,
				Tool:      call.Name,
				Reward:    result.Reward,
			})
		}
	}
	return cycleReward
}

// persistFacts writes every evaluator fact into the memory store and
// forwards learned entries to the durable sink.
func (r *Runtime) persistFacts(id uuid.UUID, evals []model.EvaluationResult) int {
	var entries []model.MemoryEntry
	for _, ev := range evals {
		for _, fact := range ev.Facts {
			entries = append(entries, r.memories.Learn(id, fact))
		}
	}
	if r.memorySink != nil && len(entries) > 0 {
		go func(entries []model.MemoryEntry) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := r.memorySink.WriteMemories(ctx, entries); err != nil {
				r.logger.Warn("runtime: memory sink write failed", "error", err)
			}
		}(entries)
	}
	return len(entries)
}

// abortCycle handles a cycle failure: it logs a descriptive error event,
// moves the session to error, and emits a terminal error chunk.
func (r *Runtime) abortCycle(ctx context.Context, id uuid.UUID, sess *session, step int, ch chan<- Chunk, stage string, err error) error {
	if errors.Is(err, context.Canceled) {
		// Caller went away; the session itself is healthy.
		sess.finish("")
		return err
	}
	msg := fmt.Sprintf("%s: %v", stage, err)
	r.logger.Error("runtime: cycle failed", "session_id", id, "step", step, "stage", stage, "error", err)
	r.record(model.Event{
		SessionID: id,
		Kind:      model.EventError,
		Source:    "runtime",
		Payload:   eventPayload(model.ErrorPayload{Stage: stage, Message: err.Error()}),
	})
	sess.finish(msg)
	send(ctx, ch, Chunk{Type: ChunkError, SessionID: id, Step: step, Text: msg})
	return err
}

func (r *Runtime) recordToolError(id uuid.UUID, tool, msg string) {
	r.logger.Warn("runtime: tool call rejected", "session_id", id, "tool", tool, "error", msg)
	r.record(model.Event{
		SessionID: id,
		Kind:      model.EventError,
		Source:    "runtime",
		Payload:   eventPayload(model.ErrorPayload{Tool: tool, Message: msg}),
	})
}

// eventPayload converts a typed payload struct into the event log's map
// form. Keys come from the struct's JSON tags, so consumers that read
// payloads by key stay in step with the payload types.
func eventPayload(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return map[string]any{"message": fmt.Sprintf("%v", v)}
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{"message": string(raw)}
	}
	return out
}

func (r *Runtime) countFailure(sess *session) {
	sess.mu.Lock()
	sess.state.Metrics.ActionsFailed++
	sess.mu.Unlock()
}

// send delivers a chunk unless the consumer's context is gone.
func send(ctx context.Context, ch chan<- Chunk, c Chunk) bool {
	select {
	case ch <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
