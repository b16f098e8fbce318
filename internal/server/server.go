package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/questweaver-ai/questweaver/internal/runtime"
)

// Server is the QuestWeaver HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Config holds all dependencies and settings for creating a Server.
// Optional fields (nil-safe): Broker, MCPServer.
type Config struct {
	Runtime *runtime.Runtime
	Logger  *slog.Logger

	Broker    *Broker
	MCPServer *mcpserver.MCPServer

	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64
	MaxAutonomousSteps  int
}

// New creates a new HTTP server with all routes configured.
func New(cfg Config) *Server {
	h := NewHandlers(HandlersDeps{
		Runtime:             cfg.Runtime,
		Broker:              cfg.Broker,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		MaxAutonomousSteps:  cfg.MaxAutonomousSteps,
	})

	mux := http.NewServeMux()

	// Session lifecycle.
	mux.HandleFunc("POST /v1/sessions", h.HandleCreateSession)
	mux.HandleFunc("GET /v1/sessions", h.HandleListSessions)
	mux.HandleFunc("GET /v1/sessions/{session_id}", h.HandleGetSession)
	mux.HandleFunc("POST /v1/sessions/{session_id}/pause", h.HandlePauseSession)
	mux.HandleFunc("POST /v1/sessions/{session_id}/resume", h.HandleResumeSession)
	mux.HandleFunc("DELETE /v1/sessions/{session_id}", h.HandleEndSession)

	// Decision streams (SSE, long-lived).
	mux.HandleFunc("POST /v1/sessions/{session_id}/decide", h.HandleDecide)
	mux.HandleFunc("POST /v1/sessions/{session_id}/autonomous", h.HandleAutonomous)
	mux.HandleFunc("GET /v1/subscribe", h.HandleSubscribe)

	// Introspection.
	mux.HandleFunc("GET /v1/sessions/{session_id}/events", h.HandleExportEvents)
	mux.HandleFunc("GET /v1/sessions/{session_id}/memories", h.HandleListMemories)

	// MCP StreamableHTTP transport.
	if cfg.MCPServer != nil {
		mux.Handle("/mcp", mcpserver.NewStreamableHTTPServer(cfg.MCPServer))
	}

	mux.HandleFunc("GET /health", h.HandleHealth)

	// Middleware chain (outermost executes first):
	// request ID → security headers → tracing → logging → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   cfg.Logger,
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
