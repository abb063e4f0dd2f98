package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hellooo-cards/iconbridge/internal/bus"
	"github.com/hellooo-cards/iconbridge/internal/common/cnst"
	"github.com/hellooo-cards/iconbridge/internal/common/config"
	"github.com/hellooo-cards/iconbridge/internal/common/dto"
	"github.com/hellooo-cards/iconbridge/internal/session"
)

type fakeBroker struct {
	ack *dto.Ack
}

func (f *fakeBroker) HandleBatchRequest(context.Context, *dto.BatchRequest) *dto.Ack {
	return f.ack
}

func newTestServer(t *testing.T, broker BatchHandler) (*Server, *bus.MemoryBus, *session.MemoryRegistry) {
	t.Helper()
	logger := zap.NewNop()
	b := bus.NewMemoryBus(logger)
	t.Cleanup(func() { _ = b.Close() })
	reg := session.NewMemoryRegistry(logger)
	s := New(logger, broker, b, reg, nil, config.ServerConfig{Port: 0})
	return s, b, reg
}

func TestHandleBatch_OK(t *testing.T) {
	s, _, _ := newTestServer(t, &fakeBroker{ack: dto.AckOK("session-1")})

	body, _ := json.Marshal(dto.BatchRequest{Accounts: []string{"alice"}})
	req := httptest.NewRequest(http.MethodPost, "/api/icons", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var ack dto.Ack
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	assert.Equal(t, "session-1", ack.SessionID)
	assert.True(t, ack.OK())
}

func TestHandleBatch_Rejected(t *testing.T) {
	s, _, _ := newTestServer(t, &fakeBroker{ack: dto.AckFailed(cnst.ReasonMissingAccounts)})

	body, _ := json.Marshal(dto.BatchRequest{})
	req := httptest.NewRequest(http.MethodPost, "/api/icons", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var ack dto.Ack
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	assert.False(t, ack.OK())
	assert.Equal(t, cnst.ReasonMissingAccounts, ack.Reason)
}

func TestHandleBatch_InvalidBody(t *testing.T) {
	s, _, _ := newTestServer(t, &fakeBroker{ack: dto.AckOK("never")})

	req := httptest.NewRequest(http.MethodPost, "/api/icons", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleEvents_UnknownSession(t *testing.T) {
	s, _, _ := newTestServer(t, &fakeBroker{})

	req := httptest.NewRequest(http.MethodGet, "/api/icons/nope/events", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleEvents_StreamsUntilResult(t *testing.T) {
	s, b, reg := newTestServer(t, &fakeBroker{})
	require.NoError(t, reg.Register(context.Background(), &session.Meta{
		ID:        "session-1",
		Accounts:  []string{"alice"},
		Platform:  cnst.PlatformX,
		CreatedAt: time.Now(),
	}))

	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)

	// Give the handler time to subscribe, then feed the stream. A frame for
	// a foreign session must not leak into it.
	go func() {
		time.Sleep(100 * time.Millisecond)
		publish(b, cnst.TopicIconsProgress, dto.Progress{SessionID: "session-1", Event: cnst.ProgressStartGetIcons})
		publish(b, cnst.TopicIconsResult, dto.BatchResult{SessionID: "other", Icons: nil})
		publish(b, cnst.TopicIconsResult, dto.BatchResult{
			SessionID: "session-1",
			Icons:     []dto.IconResult{{Account: "alice", URL: "u", Data: "d"}},
		})
	}()

	resp, err := http.Get(srv.URL + "/api/icons/session-1/events")
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// The stream terminates after the result frame, so the body drains.
	var events []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			events = append(events, strings.TrimPrefix(line, "event: "))
		}
		if strings.HasPrefix(line, "data: ") && strings.Contains(line, "\"icons\"") {
			assert.Contains(t, line, "alice")
			assert.NotContains(t, line, "other")
		}
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, []string{"progress", "result"}, events)
}

func TestHandleSessions_List(t *testing.T) {
	s, _, reg := newTestServer(t, &fakeBroker{})
	require.NoError(t, reg.Register(context.Background(), &session.Meta{
		ID: "session-1", Accounts: []string{"alice"},
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var sessions []*session.Meta
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, "session-1", sessions[0].ID)
}

func TestHandleHealth(t *testing.T) {
	s, _, _ := newTestServer(t, &fakeBroker{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func publish(b bus.Bus, topic string, payload any) {
	msg, err := bus.NewMessage(topic, payload)
	if err != nil {
		return
	}
	_ = b.Publish(context.Background(), msg)
}
