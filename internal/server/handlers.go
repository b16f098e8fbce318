package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/questweaver-ai/questweaver/internal/model"
	"github.com/questweaver-ai/questweaver/internal/runtime"
)

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	runtime             *runtime.Runtime
	broker              *Broker
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	maxRequestBodyBytes int64
	maxAutonomousSteps  int
}

// HandlersDeps holds all dependencies for constructing Handlers.
// Broker is optional (nil = firehose disabled).
type HandlersDeps struct {
	Runtime             *runtime.Runtime
	Broker              *Broker
	Logger              *slog.Logger
	Version             string
	MaxRequestBodyBytes int64
	MaxAutonomousSteps  int
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	if d.MaxAutonomousSteps <= 0 {
		d.MaxAutonomousSteps = 50
	}
	return &Handlers{
		runtime:             d.Runtime,
		broker:              d.Broker,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
		maxAutonomousSteps:  d.MaxAutonomousSteps,
	}
}

// HandleCreateSession handles POST /v1/sessions.
func (h *Handlers) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WorldState model.WorldState `json:"world_state"`
	}
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.WorldState.Environment == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "world_state.environment is required")
		return
	}

	state := h.runtime.CreateSession(req.WorldState)
	writeJSON(w, r, http.StatusCreated, state)
}

// HandleListSessions handles GET /v1/sessions.
func (h *Handlers) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"sessions": h.runtime.Sessions(),
	})
}

// HandleGetSession handles GET /v1/sessions/{session_id}.
func (h *Handlers) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	state, err := h.runtime.State(id)
	if err != nil {
		h.writeRuntimeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, state)
}

// HandlePauseSession handles POST /v1/sessions/{session_id}/pause.
func (h *Handlers) HandlePauseSession(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	state, err := h.runtime.Pause(id)
	if err != nil {
		h.writeRuntimeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, state)
}

// HandleResumeSession handles POST /v1/sessions/{session_id}/resume.
func (h *Handlers) HandleResumeSession(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	state, err := h.runtime.Resume(id)
	if err != nil {
		h.writeRuntimeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, state)
}

// HandleEndSession handles DELETE /v1/sessions/{session_id}.
func (h *Handlers) HandleEndSession(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	if err := h.runtime.EndSession(id); err != nil {
		h.writeRuntimeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"session_id": id, "ended": true})
}

// HandleExportEvents handles GET /v1/sessions/{session_id}/events.
// Query params: kinds (comma-separated), limit.
func (h *Handlers) HandleExportEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var kinds []model.EventKind
	if raw := r.URL.Query().Get("kinds"); raw != "" {
		for _, k := range strings.Split(raw, ",") {
			kind := model.EventKind(strings.TrimSpace(k))
			if !model.ValidEventKinds[kind] {
				writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation,
					fmt.Sprintf("unknown event kind %q", kind))
				return
			}
			kinds = append(kinds, kind)
		}
	}
	limit := queryInt(r, "limit", 0)

	batch, err := h.runtime.ExportEvents(id, kinds, limit)
	if err != nil {
		h.writeRuntimeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, batch)
}

// HandleListMemories handles GET /v1/sessions/{session_id}/memories.
func (h *Handlers) HandleListMemories(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	limit := queryInt(r, "limit", 20)

	memories, err := h.runtime.Memories(id, limit)
	if err != nil {
		h.writeRuntimeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"session_id": id,
		"memories":   memories,
		"count":      len(memories),
	})
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        h.version,
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
	})
}

func (h *Handlers) sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("session_id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid session id")
		return uuid.Nil, false
	}
	return id, true
}

// writeRuntimeError maps runtime errors onto HTTP statuses.
func (h *Handlers) writeRuntimeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, runtime.ErrSessionNotFound):
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "session not found")
	case errors.Is(err, runtime.ErrSessionBusy):
		writeError(w, r, http.StatusConflict, model.ErrCodeSessionBusy, "session is processing a cycle")
	case errors.Is(err, runtime.ErrSessionPaused):
		writeError(w, r, http.StatusConflict, model.ErrCodeSessionBusy, "session is paused; resume it first")
	case errors.Is(err, runtime.ErrSessionNotPaused):
		writeError(w, r, http.StatusConflict, model.ErrCodeValidation, "session is not paused")
	default:
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, err.Error())
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
