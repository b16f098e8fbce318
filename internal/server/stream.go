package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/questweaver-ai/questweaver/internal/model"
	"github.com/questweaver-ai/questweaver/internal/runtime"
)

// HandleDecide handles POST /v1/sessions/{session_id}/decide (SSE).
// One decision cycle is run and its chunks are streamed as they arrive.
func (h *Handlers) HandleDecide(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	ch, err := h.runtime.Decide(r.Context(), id)
	if err != nil {
		h.writeRuntimeError(w, r, err)
		return
	}
	h.streamChunks(w, r, ch)
}

// HandleAutonomous handles POST /v1/sessions/{session_id}/autonomous (SSE).
// Query param: steps (step budget, capped server-side).
func (h *Handlers) HandleAutonomous(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	steps := queryInt(r, "steps", 5)
	if steps <= 0 {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "steps must be positive")
		return
	}
	if steps > h.maxAutonomousSteps {
		steps = h.maxAutonomousSteps
	}

	ch, err := h.runtime.RunAutonomous(r.Context(), id, steps)
	if err != nil {
		h.writeRuntimeError(w, r, err)
		return
	}
	h.streamChunks(w, r, ch)
}

// streamChunks writes each runtime chunk as an SSE event until the stream
// closes or the client goes away.
func (h *Handlers) streamChunks(w http.ResponseWriter, r *http.Request, ch <-chan runtime.Chunk) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternal, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Disable the server's WriteTimeout for this long-lived connection.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-ch:
			if !ok {
				return
			}
			if h.broker != nil {
				h.broker.Publish(chunk)
			}
			data, err := json.Marshal(chunk)
			if err != nil {
				h.logger.Warn("stream: marshal chunk", "error", err)
				continue
			}
			if _, err := w.Write(formatSSE(string(chunk.Type), string(data))); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// HandleSubscribe handles GET /v1/subscribe (SSE). It streams every chunk
// from every session for observers and debug tooling.
func (h *Handlers) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	if h.broker == nil {
		writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeInternal, "subscription feed not enabled")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternal, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	ch := h.broker.Subscribe()
	defer h.broker.Unsubscribe(ch)

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			if _, err := w.Write([]byte(":keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case event, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(event); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
