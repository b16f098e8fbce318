package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questweaver-ai/questweaver/internal/model"
	"github.com/questweaver-ai/questweaver/internal/reasoning"
	"github.com/questweaver-ai/questweaver/internal/runtime"
)

func newTestServer(t *testing.T) *httptest.Server {
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

	srv := New(Config{
		Runtime:             rt,
		Logger:              logger,
		Broker:              NewBroker(logger),
		Version:             "test",
		MaxRequestBodyBytes: 1 << 20,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func createSession(t *testing.T, ts *httptest.Server) model.RuntimeState {
	t.Helper()
	body := `{"world_state":{"environment":"darkwood","visible_entities":[{"id":"goblin_1","type":"goblin"}]}}`
	resp, err := http.Post(ts.URL+"/v1/sessions", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var envelope struct {
		Data model.RuntimeState `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope.Data
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	var envelope model.APIError
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope.Error.Code
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	var envelope struct {
		Data struct {
			Status  string `json:"status"`
			Version string `json:"version"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.Equal(t, "ok", envelope.Data.Status)
	assert.Equal(t, "test", envelope.Data.Version)
}

func TestCreateSessionValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"malformed json", `{"world_state":`, model.ErrCodeValidation},
		{"unknown field", `{"world":"nope"}`, model.ErrCodeValidation},
		{"missing environment", `{"world_state":{}}`, model.ErrCodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/v1/sessions", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.code, errorCode(t, resp))
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t)
	state := createSession(t, ts)
	base := ts.URL + "/v1/sessions/" + state.SessionID.String()

	resp, err := http.Get(base)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Pause, then resume.
	resp, err = http.Post(base+"/pause", "application/json", nil)
	require.NoError(t, err)
	var envelope struct {
		Data model.RuntimeState `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	resp.Body.Close()
	assert.Equal(t, model.StatusWaiting, envelope.Data.Status)

	// A paused session refuses to decide.
	resp, err = http.Post(base+"/decide", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, model.ErrCodeSessionBusy, errorCode(t, resp))
	resp.Body.Close()

	resp, err = http.Post(base+"/resume", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Resume when idle is a conflict.
	resp, err = http.Post(base+"/resume", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// List contains the session.
	resp, err = http.Get(ts.URL + "/v1/sessions")
	require.NoError(t, err)
	var list struct {
		Data struct {
			Sessions []model.RuntimeState `json:"sessions"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	require.Len(t, list.Data.Sessions, 1)

	// End it; subsequent lookups 404.
	req, err := http.NewRequest(http.MethodDelete, base, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(base)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, model.ErrCodeNotFound, errorCode(t, resp))
	resp.Body.Close()
}

func TestUnknownSessionRoutes(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/sessions/not-a-uuid")
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/v1/sessions/00000000-0000-0000-0000-000000000001")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

// sseEvents reads an SSE body to EOF and returns the event names in order.
func sseEvents(t *testing.T, resp *http.Response) []string {
	t.Helper()
	var events []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			events = append(events, strings.TrimPrefix(line, "event: "))
		}
	}
	return events
}

func TestDecideStream(t *testing.T) {
	ts := newTestServer(t)
	state := createSession(t, ts)

	resp, err := http.Post(ts.URL+"/v1/sessions/"+state.SessionID.String()+"/decide", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := sseEvents(t, resp)
	assert.Contains(t, events, "thought")
	assert.Contains(t, events, "action")
	assert.Contains(t, events, "reward")
	require.NotEmpty(t, events)
	assert.Equal(t, "cycle_end", events[len(events)-1])
}

func TestAutonomousStream(t *testing.T) {
	ts := newTestServer(t)
	state := createSession(t, ts)
	base := ts.URL + "/v1/sessions/" + state.SessionID.String()

	resp, err := http.Post(base+"/autonomous?steps=0", "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Post(base+"/autonomous?steps=2", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	events := sseEvents(t, resp)
	ends := 0
	for _, e := range events {
		if e == "cycle_end" {
			ends++
		}
	}
	assert.Equal(t, 2, ends)
}

func TestExportAndMemories(t *testing.T) {
	ts := newTestServer(t)
	state := createSession(t, ts)
	base := ts.URL + "/v1/sessions/" + state.SessionID.String()

	resp, err := http.Post(base+"/decide", "application/json", nil)
	require.NoError(t, err)
	sseEvents(t, resp)
	resp.Body.Close()

	resp, err = http.Get(base + "/events?kinds=reward&limit=10")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var export struct {
		Data struct {
			Count  int `json:"count"`
			Events []struct {
				Kind     string         `json:"kind"`
				Severity string         `json:"severity"`
				Payload  map[string]any `json:"payload"`
			} `json:"events"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&export))
	require.Equal(t, 1, export.Data.Count)
	assert.Equal(t, "reward", export.Data.Events[0].Kind)
	assert.Equal(t, "info", export.Data.Events[0].Severity)
	assert.InDelta(t, 5.0, export.Data.Events[0].Payload["value"], 1e-9)

	resp2, err := http.Get(base + "/memories")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	var memories struct {
		Data struct {
			Count int `json:"count"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&memories))
	assert.Greater(t, memories.Data.Count, 0)
}

func TestExportRejectsUnknownKind(t *testing.T) {
	ts := newTestServer(t)
	state := createSession(t, ts)
	base := ts.URL + "/v1/sessions/" + state.SessionID.String()

	resp, err := http.Get(base + "/events?kinds=reward,bogus")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, model.ErrCodeValidation, errorCode(t, resp))
}

func TestSubscribeFirehose(t *testing.T) {
	ts := newTestServer(t)
	state := createSession(t, ts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/subscribe", nil)
	require.NoError(t, err)
	sub, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer sub.Body.Close()
	require.Equal(t, http.StatusOK, sub.StatusCode)

	// Drive a cycle; its chunks must appear on the firehose.
	resp, err := http.Post(ts.URL+"/v1/sessions/"+state.SessionID.String()+"/decide", "application/json", nil)
	require.NoError(t, err)
	sseEvents(t, resp)
	resp.Body.Close()

	scanner := bufio.NewScanner(sub.Body)
	var sawCycleEnd bool
	for scanner.Scan() {
		line := scanner.Text()
		if line == "event: cycle_end" {
			sawCycleEnd = true
			cancel()
			break
		}
	}
	assert.True(t, sawCycleEnd, "expected a cycle_end event on the firehose")
}

func TestPayloadTooLarge(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	rt, err := runtime.New(runtime.Config{Logger: logger, Reasoner: reasoning.NewScripted()})
	require.NoError(t, err)
	srv := New(Config{Runtime: rt, Logger: logger, MaxRequestBodyBytes: 64})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	big := fmt.Sprintf(`{"world_state":{"environment":%q}}`, strings.Repeat("x", 256))
	resp, err := http.Post(ts.URL+"/v1/sessions", "application/json", bytes.NewReader([]byte(big)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, model.ErrCodePayloadTooLarge, errorCode(t, resp))
}
