package questweaver

import (
	"log/slog"
	"time"
)

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported; callers use the With* functions.
type resolvedOptions struct {
	port               int
	logger             *slog.Logger
	version            string
	reasoner           ReasoningService
	eventSink          EventSink
	memorySink         MemorySink
	eventLogCap        int
	cycleDelay         time.Duration
	reasoningTimeout   time.Duration
	maxAutonomousSteps int
}

// WithPort overrides the TCP port from config (QUESTWEAVER_PORT env var).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in the health endpoint and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithReasoningService replaces the config-selected reasoning backend
// (OpenAI when an API key is configured, scripted otherwise).
func WithReasoningService(s ReasoningService) Option {
	return func(o *resolvedOptions) { o.reasoner = s }
}

// WithEventSink replaces the config-selected durable event sink
// (Postgres or SQLite, depending on which DSN is set).
func WithEventSink(s EventSink) Option {
	return func(o *resolvedOptions) { o.eventSink = s }
}

// WithMemorySink replaces the config-selected durable memory sink.
func WithMemorySink(s MemorySink) Option {
	return func(o *resolvedOptions) { o.memorySink = s }
}

// WithEventLogCap overrides the in-memory event log capacity
// (QUESTWEAVER_EVENT_LOG_CAP env var).
func WithEventLogCap(n int) Option {
	return func(o *resolvedOptions) { o.eventLogCap = n }
}

// WithCycleDelay overrides the delay between autonomous cycles
// (QUESTWEAVER_CYCLE_DELAY env var).
func WithCycleDelay(d time.Duration) Option {
	return func(o *resolvedOptions) { o.cycleDelay = d }
}

// WithReasoningTimeout overrides the per-turn reasoning deadline
// (QUESTWEAVER_REASONING_TIMEOUT env var).
func WithReasoningTimeout(d time.Duration) Option {
	return func(o *resolvedOptions) { o.reasoningTimeout = d }
}

// WithMaxAutonomousSteps overrides the per-request cap on autonomous cycles
// (QUESTWEAVER_MAX_AUTONOMOUS_STEPS env var).
func WithMaxAutonomousSteps(n int) Option {
	return func(o *resolvedOptions) { o.maxAutonomousSteps = n }
}
