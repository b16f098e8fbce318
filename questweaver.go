// Package questweaver is the public API for embedding the QuestWeaver agent
// runtime.
//
// Host games and tooling import this package to construct and extend the
// server without forking it:
//
//	app, err := questweaver.New(
//	    questweaver.WithVersion(version),
//	    questweaver.WithLogger(logger),
//	    questweaver.WithReasoningService(myBackend),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// The import graph enforces a strict no-cycle rule: questweaver (root)
// imports internal/*, but internal/* never imports questweaver (root).
// Public types (Event, MemoryEntry, ReasoningRequest) are standalone structs
// with no internal imports; conversion adapters live here because this is
// the only file that sees both sides of the boundary.
package questweaver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/joho/godotenv"

	"github.com/questweaver-ai/questweaver/internal/config"
	"github.com/questweaver-ai/questweaver/internal/eventlog"
	"github.com/questweaver-ai/questweaver/internal/mcp"
	"github.com/questweaver-ai/questweaver/internal/memory"
	"github.com/questweaver-ai/questweaver/internal/model"
	"github.com/questweaver-ai/questweaver/internal/reasoning"
	"github.com/questweaver-ai/questweaver/internal/runtime"
	"github.com/questweaver-ai/questweaver/internal/server"
	"github.com/questweaver-ai/questweaver/internal/storage"
	"github.com/questweaver-ai/questweaver/internal/telemetry"
)

// App is the QuestWeaver server lifecycle. Construct with New(), run with
// Run(). App has no public fields; use New() options to configure it.
type App struct {
	cfg          config.Config
	rt           *runtime.Runtime
	srv          *server.Server
	broker       *server.Broker
	otelShutdown telemetry.Shutdown
	closers      []func() error
	logger       *slog.Logger
	version      string
}

// New initialises the QuestWeaver server. It wires the reasoning backend,
// durable sinks, runtime, MCP server, and HTTP server, and returns a
// ready-to-run App. It does NOT start any goroutines or accept HTTP
// connections; call Run().
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	// Load configuration (env vars), then apply option overrides.
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.eventLogCap != 0 {
		cfg.EventLogCap = o.eventLogCap
	}
	if o.cycleDelay != 0 {
		cfg.CycleDelay = o.cycleDelay
	}
	if o.reasoningTimeout != 0 {
		cfg.ReasoningTimeout = o.reasoningTimeout
	}
	if o.maxAutonomousSteps != 0 {
		cfg.MaxAutonomousSteps = o.maxAutonomousSteps
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("questweaver starting", "version", version, "port", cfg.Port)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	app := &App{
		cfg:          cfg,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}

	// Reasoning backend; external override takes priority over config.
	var reasoner reasoning.Service
	if o.reasoner != nil {
		reasoner = &reasonerAdapter{svc: o.reasoner}
	} else {
		reasoner, err = newReasoningService(cfg, logger)
		if err != nil {
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("reasoning: %w", err)
		}
	}

	// Durable sinks; external overrides take priority over config.
	var eventSink storage.EventSink
	var memorySink storage.MemorySink
	if o.eventSink != nil {
		a := &eventSinkAdapter{sink: o.eventSink}
		eventSink = a
		app.closers = append(app.closers, a.Close)
	}
	if o.memorySink != nil {
		a := &memorySinkAdapter{sink: o.memorySink}
		memorySink = a
		app.closers = append(app.closers, a.Close)
	}
	if eventSink == nil && memorySink == nil {
		eventSink, memorySink, err = app.newConfiguredSinks(cfg, logger)
		if err != nil {
			_ = otelShutdown(context.Background())
			return nil, err
		}
	}

	// Runtime.
	rt, err := runtime.New(runtime.Config{
		Logger:           logger,
		Events:           eventlog.New(logger, cfg.EventLogCap),
		Memories:         memory.NewStore(),
		Reasoner:         reasoner,
		EventSink:        eventSink,
		MemorySink:       memorySink,
		ReasoningTimeout: cfg.ReasoningTimeout,
		CycleDelay:       cfg.CycleDelay,
		Temperature:      cfg.Temperature,
		MaxTokens:        cfg.MaxTokens,
	})
	if err != nil {
		_ = app.closeSinks()
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("runtime: %w", err)
	}
	app.rt = rt

	// MCP server.
	mcpSrv := mcp.New(rt, logger, version)

	// SSE firehose broker.
	app.broker = server.NewBroker(logger)

	// HTTP server.
	app.srv = server.New(server.Config{
		Runtime:             rt,
		Logger:              logger,
		Broker:              app.broker,
		MCPServer:           mcpSrv.MCPServer(),
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		MaxAutonomousSteps:  cfg.MaxAutonomousSteps,
	})

	return app, nil
}

// Run starts the HTTP server and blocks until ctx is cancelled or a fatal
// server error occurs. On return, Shutdown is called automatically;
// callers should not call Shutdown separately.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	return a.Shutdown(context.Background())
}

// Shutdown stops accepting HTTP requests, drains in-flight handlers, then
// closes the durable sinks and the OTEL providers.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("questweaver shutting down")

	if err := a.srv.Shutdown(ctx); err != nil {
		a.logger.Error("http shutdown error", "error", err)
	}
	if err := a.closeSinks(); err != nil {
		a.logger.Error("sink close error", "error", err)
	}
	_ = a.otelShutdown(context.Background())

	a.logger.Info("questweaver stopped")
	return nil
}

// Handler returns the root HTTP handler, for embedding in an existing server
// or for tests.
func (a *App) Handler() http.Handler {
	return a.srv.Handler()
}

func (a *App) closeSinks() error {
	var firstErr error
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}

// newConfiguredSinks selects the durable backend from config: Postgres when
// a DSN is set, SQLite when a path is set, neither otherwise. A single
// connection serves both sinks.
func (a *App) newConfiguredSinks(cfg config.Config, logger *slog.Logger) (storage.EventSink, storage.MemorySink, error) {
	switch {
	case cfg.PostgresURL != "":
		pg, err := storage.NewPostgres(context.Background(), cfg.PostgresURL, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("storage: %w", err)
		}
		logger.Info("durable sink: postgres")
		a.closers = append(a.closers, pg.Close)
		return pg, pg, nil
	case cfg.SQLitePath != "":
		sq, err := storage.NewSQLite(context.Background(), cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("storage: %w", err)
		}
		logger.Info("durable sink: sqlite", "path", cfg.SQLitePath)
		a.closers = append(a.closers, sq.Close)
		return sq, sq, nil
	default:
		logger.Info("durable sink: disabled (in-memory only)")
		return nil, nil, nil
	}
}

// newReasoningService builds the backend the config asks for. "auto" picks
// OpenAI when an API key is present and falls back to the scripted backend
// otherwise.
func newReasoningService(cfg config.Config, logger *slog.Logger) (reasoning.Service, error) {
	useOpenAI := cfg.ReasoningProvider == "openai" ||
		(cfg.ReasoningProvider == "auto" && cfg.OpenAIAPIKey != "")
	if useOpenAI {
		svc, err := reasoning.NewOpenAIService(reasoning.OpenAIConfig{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.ReasoningModel,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		}, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("reasoning: openai", "model", cfg.ReasoningModel)
		return svc, nil
	}
	if cfg.ReasoningProvider == "auto" {
		logger.Warn("reasoning: scripted backend (no OPENAI_API_KEY set)")
	} else {
		logger.Info("reasoning: scripted backend")
	}
	return reasoning.NewScripted(), nil
}

// ── Public/internal adapters ──────────────────────────────────────────────────

type reasonerAdapter struct {
	svc ReasoningService
}

func (a *reasonerAdapter) Name() string { return a.svc.Name() }

func (a *reasonerAdapter) Stream(ctx context.Context, req reasoning.Request, onText reasoning.TextFunc) (reasoning.Result, error) {
	pubTools := make([]ToolSpec, len(req.Tools))
	for i, t := range req.Tools {
		pubTools[i] = ToolSpec{Name: t.Name, Description: t.Description, Parameters: t.Parameters}
	}
	res, err := a.svc.Stream(ctx, ReasoningRequest{
		System:      req.System,
		Prompt:      req.Prompt,
		Tools:       pubTools,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}, onText)
	if err != nil {
		return reasoning.Result{}, err
	}
	out := reasoning.Result{Text: res.Text}
	for _, tc := range res.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, reasoning.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
	}
	return out, nil
}

type eventSinkAdapter struct {
	sink EventSink
}

func (a *eventSinkAdapter) WriteEvents(ctx context.Context, events []model.Event) error {
	out := make([]Event, len(events))
	for i, e := range events {
		out[i] = toPublicEvent(e)
	}
	return a.sink.WriteEvents(ctx, out)
}

func (a *eventSinkAdapter) Close() error { return a.sink.Close() }

type memorySinkAdapter struct {
	sink MemorySink
}

func (a *memorySinkAdapter) WriteMemories(ctx context.Context, entries []model.MemoryEntry) error {
	out := make([]MemoryEntry, len(entries))
	for i, m := range entries {
		out[i] = toPublicMemory(m)
	}
	return a.sink.WriteMemories(ctx, out)
}

func (a *memorySinkAdapter) Close() error { return a.sink.Close() }

func toPublicEvent(e model.Event) Event {
	return Event{
		ID:         e.ID,
		SessionID:  e.SessionID,
		Kind:       string(e.Kind),
		Source:     e.Source,
		Payload:    e.Payload,
		Tags:       e.Tags,
		OccurredAt: e.OccurredAt,
	}
}

func toPublicMemory(m model.MemoryEntry) MemoryEntry {
	return MemoryEntry{
		ID:                 m.ID,
		SessionID:          m.SessionID,
		Type:               string(m.Type),
		Content:            m.Content,
		Confidence:         m.Confidence,
		ReinforcementCount: m.ReinforcementCount,
		LearnedAt:          m.LearnedAt,
		LastAccessedAt:     m.LastAccessedAt,
	}
}
