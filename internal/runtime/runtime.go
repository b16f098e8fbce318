// Package runtime orchestrates per-session decision cycles: context
// gathering, prompt compilation, streamed reasoning, tool dispatch,
// evaluation, and memory updates.
package runtime

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/questweaver-ai/questweaver/internal/eventlog"
	"github.com/questweaver-ai/questweaver/internal/evaluators"
	"github.com/questweaver-ai/questweaver/internal/memory"
	"github.com/questweaver-ai/questweaver/internal/model"
	"github.com/questweaver-ai/questweaver/internal/prompt"
	"github.com/questweaver-ai/questweaver/internal/providers"
	"github.com/questweaver-ai/questweaver/internal/reasoning"
	"github.com/questweaver-ai/questweaver/internal/storage"
	"github.com/questweaver-ai/questweaver/internal/telemetry"
	"github.com/questweaver-ai/questweaver/internal/tools"
)

// Lifecycle errors.
var (
	ErrSessionNotFound  = errors.New("runtime: session not found")
	ErrSessionBusy      = errors.New("runtime: session is processing")
	ErrSessionPaused    = errors.New("runtime: session is paused")
	ErrSessionNotPaused = errors.New("runtime: session is not paused")
)

const (
	// DefaultCycleDelay spaces autonomous cycles to respect provider rate
	// limits.
	DefaultCycleDelay = 1 * time.Second
	// evalWindow is the number of trailing events evaluators see per cycle.
	evalWindow = 20
	// promptEventWindow is how much history the prompt compiler may draw
	// from before applying the template's own window.
	promptEventWindow = 50
)

// Config wires a Runtime. Nil registries fall back to the defaults; Reasoner
// is required.
type Config struct {
	Logger     *slog.Logger
	Events     *eventlog.Log
	Memories   *memory.Store
	Tools      *tools.Registry
	Providers  *providers.Registry
	Evaluators *evaluators.Registry
	Templates  *prompt.Registry
	Reasoner   reasoning.Service

	// EventSink and MemorySink receive durable copies when configured.
	EventSink  storage.EventSink
	MemorySink storage.MemorySink

	ReasoningTimeout time.Duration
	CycleDelay       time.Duration
	Temperature      float64
	MaxTokens        int
}

// Runtime owns all sessions and drives their decision cycles.
type Runtime struct {
	logger     *slog.Logger
	events     *eventlog.Log
	memories   *memory.Store
	tools      *tools.Registry
	providers  *providers.Registry
	evaluators *evaluators.Registry
	compiler   *prompt.Compiler
	reasoner   reasoning.Service
	eventSink  storage.EventSink
	memorySink storage.MemorySink

	reasoningTimeout time.Duration
	cycleDelay       time.Duration
	temperature      float64
	maxTokens        int

	mu       sync.RWMutex
	sessions map[uuid.UUID]*session

	cyclesRun     metric.Int64Counter
	cycleDuration metric.Float64Histogram
	toolCalls     metric.Int64Counter
}

type session struct {
	mu             sync.Mutex
	state          model.RuntimeState
	pauseRequested bool
	cancel         context.CancelFunc // active autonomous loop, if any
}

// New creates a runtime from the given config.
func New(cfg Config) (*Runtime, error) {
	if cfg.Reasoner == nil {
		return nil, errors.New("runtime: reasoning service is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Events == nil {
		cfg.Events = eventlog.New(logger, eventlog.DefaultCap)
	}
	if cfg.Memories == nil {
		cfg.Memories = memory.NewStore()
	}
	if cfg.Tools == nil {
		reg, err := tools.NewDefaultRegistry()
		if err != nil {
			return nil, err
		}
		cfg.Tools = reg
	}
	if cfg.Providers == nil {
		reg := providers.NewRegistry(logger)
		if err := providers.RegisterDefaults(reg, cfg.Memories, cfg.Events); err != nil {
			return nil, err
		}
		cfg.Providers = reg
	}
	if cfg.Evaluators == nil {
		reg, err := evaluators.NewDefaultRegistry(logger)
		if err != nil {
			return nil, err
		}
		cfg.Evaluators = reg
	}
	if cfg.Templates == nil {
		cfg.Templates = prompt.NewDefaultRegistry()
	}
	if cfg.ReasoningTimeout <= 0 {
		cfg.ReasoningTimeout = reasoning.DefaultTimeout
	}
	if cfg.CycleDelay <= 0 {
		cfg.CycleDelay = DefaultCycleDelay
	}

	meter := telemetry.Meter("questweaver/runtime")
	cycles, _ := meter.Int64Counter("questweaver.cycles.run",
		metric.WithDescription("Completed decision cycles"),
	)
	cycleDur, _ := meter.Float64Histogram("questweaver.cycle.duration",
		metric.WithDescription("Decision cycle duration (ms)"),
		metric.WithUnit("ms"),
	)
	toolCalls, _ := meter.Int64Counter("questweaver.tool.calls",
		metric.WithDescription("Tool invocations dispatched"),
	)

	return &Runtime{
		logger:           logger,
		events:           cfg.Events,
		memories:         cfg.Memories,
		tools:            cfg.Tools,
		providers:        cfg.Providers,
		evaluators:       cfg.Evaluators,
		compiler:         prompt.NewCompiler(cfg.Templates),
		reasoner:         cfg.Reasoner,
		eventSink:        cfg.EventSink,
		memorySink:       cfg.MemorySink,
		reasoningTimeout: cfg.ReasoningTimeout,
		cycleDelay:       cfg.CycleDelay,
		temperature:      cfg.Temperature,
		maxTokens:        cfg.MaxTokens,
		sessions:         make(map[uuid.UUID]*session),
		cyclesRun:        cycles,
		cycleDuration:    cycleDur,
		toolCalls:        toolCalls,
	}, nil
}

// CreateSession registers a new session around the given initial world state.
func (r *Runtime) CreateSession(world model.WorldState) model.RuntimeState {
	id := uuid.New()
	now := time.Now().UTC()
	sess := &session{
		state: model.RuntimeState{
			SessionID:    id,
			Status:       model.StatusIdle,
			WorldState:   world.Clone(),
			LastActivity: now,
		},
	}

	r.mu.Lock()
	r.sessions[id] = sess
	r.mu.Unlock()

	r.record(model.Event{
		SessionID: id,
		Kind:      model.EventState,
		Source:    "runtime",
		Payload:   map[string]any{"description": "session initialized", "environment": world.Environment},
	})
	r.logger.Info("runtime: session created", "session_id", id, "environment", world.Environment)
	return sess.snapshot()
}

// State returns the current runtime state for a session.
func (r *Runtime) State(id uuid.UUID) (model.RuntimeState, error) {
	sess, err := r.session(id)
	if err != nil {
		return model.RuntimeState{}, err
	}
	return sess.snapshot(), nil
}

// Sessions lists all live sessions, newest activity first.
func (r *Runtime) Sessions() []model.RuntimeState {
	r.mu.RLock()
	out := make([]model.RuntimeState, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, sess.snapshot())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastActivity.Equal(out[j].LastActivity) {
			return out[i].LastActivity.After(out[j].LastActivity)
		}
		return out[i].SessionID.String() < out[j].SessionID.String()
	})
	return out
}

// Pause moves an idle session to waiting. A processing session pauses after
// its in-flight cycle completes.
func (r *Runtime) Pause(id uuid.UUID) (model.RuntimeState, error) {
	sess, err := r.session(id)
	if err != nil {
		return model.RuntimeState{}, err
	}

	sess.mu.Lock()
	switch sess.state.Status {
	case model.StatusWaiting:
		// Already paused.
	case model.StatusProcessing:
		sess.pauseRequested = true
	default:
		sess.state.Status = model.StatusWaiting
	}
	sess.state.LastActivity = time.Now().UTC()
	state := sess.state.Clone()
	sess.mu.Unlock()

	r.logger.Info("runtime: session paused", "session_id", id)
	return state, nil
}

// Resume moves a waiting session back to idle.
func (r *Runtime) Resume(id uuid.UUID) (model.RuntimeState, error) {
	sess, err := r.session(id)
	if err != nil {
		return model.RuntimeState{}, err
	}

	sess.mu.Lock()
	if sess.state.Status != model.StatusWaiting && !sess.pauseRequested {
		sess.mu.Unlock()
		return model.RuntimeState{}, ErrSessionNotPaused
	}
	sess.pauseRequested = false
	if sess.state.Status == model.StatusWaiting {
		sess.state.Status = model.StatusIdle
	}
	sess.state.LastActivity = time.Now().UTC()
	state := sess.state.Clone()
	sess.mu.Unlock()

	r.logger.Info("runtime: session resumed", "session_id", id)
	return state, nil
}

// EndSession cancels any autonomous loop and drops the session with its
// event-log and memory partitions.
func (r *Runtime) EndSession(id uuid.UUID) error {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	sess.mu.Lock()
	if sess.cancel != nil {
		sess.cancel()
	}
	sess.mu.Unlock()

	r.events.Clear(id)
	r.memories.Clear(id)
	r.logger.Info("runtime: session ended", "session_id", id)
	return nil
}

// Memories returns the session's memory entries ordered by confidence.
func (r *Runtime) Memories(id uuid.UUID, limit int) ([]model.MemoryEntry, error) {
	if _, err := r.session(id); err != nil {
		return nil, err
	}
	return r.memories.Top(id, limit), nil
}

// ExportEvents returns a bounded, optionally kind-filtered export batch.
func (r *Runtime) ExportEvents(id uuid.UUID, kinds []model.EventKind, limit int) (eventlog.ExportBatch, error) {
	if _, err := r.session(id); err != nil {
		return eventlog.ExportBatch{}, err
	}
	return r.events.Export(id, kinds, limit), nil
}

func (r *Runtime) session(id uuid.UUID) (*session, error) {
	r.mu.RLock()
	sess, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// record appends an event and forwards a copy to the durable sink.
func (r *Runtime) record(ev model.Event) model.Event {
	ev.ID = r.events.Append(ev)
	if r.eventSink != nil {
		go func(ev model.Event) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := r.eventSink.WriteEvents(ctx, []model.Event{ev}); err != nil {
				r.logger.Warn("runtime: event sink write failed", "error", err)
			}
		}(ev)
	}
	return ev
}

// begin transitions the session into processing for one cycle.
func (s *session) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state.Status {
	case model.StatusProcessing:
		return ErrSessionBusy
	case model.StatusWaiting:
		return ErrSessionPaused
	}
	if s.pauseRequested {
		s.pauseRequested = false
		s.state.Status = model.StatusWaiting
		return ErrSessionPaused
	}
	s.state.Status = model.StatusProcessing
	s.state.LastActivity = time.Now().UTC()
	return nil
}

// finish leaves processing: back to idle, to waiting when a pause was
// requested mid-cycle, or to error.
func (s *session) finish(errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case errMsg != "":
		s.state.Status = model.StatusError
		s.state.LastError = errMsg
	case s.pauseRequested:
		s.pauseRequested = false
		s.state.Status = model.StatusWaiting
		s.state.LastError = ""
	default:
		s.state.Status = model.StatusIdle
		s.state.LastError = ""
	}
	s.state.LastActivity = time.Now().UTC()
}

func (s *session) snapshot() model.RuntimeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}
