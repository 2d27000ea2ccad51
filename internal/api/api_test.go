package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/recruitpipe/recruitpipe/internal/channels"
	"github.com/recruitpipe/recruitpipe/internal/genai"
	"github.com/recruitpipe/recruitpipe/internal/models"
	"github.com/recruitpipe/recruitpipe/internal/orchestrator"
	"github.com/recruitpipe/recruitpipe/internal/store"
)

func newTestServer(t *testing.T) (*Server, store.Store) {
	t.Helper()
	st := store.NewInMemoryStore()
	engine := orchestrator.NewEngine(st, genai.NewMockClient(), nil, nil, nil, orchestrator.Config{})
	return NewServer(engine, st), st
}

func seedConversation(t *testing.T, engine *orchestrator.Engine, threadID string) {
	t.Helper()
	_, err := engine.HandleInbound(context.Background(), channels.Inbound{
		ThreadID: threadID,
		Channel:  models.ChannelEmail,
		Content:  "We have a role for you.",
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v\n%s", err, rec.Body.String())
	}
	return resp
}

func TestStatusHandler(t *testing.T) {
	st := store.NewInMemoryStore()
	engine := orchestrator.NewEngine(st, genai.NewMockClient(), nil, nil, nil, orchestrator.Config{})
	srv := NewServer(engine, st)
	seedConversation(t, engine, "thread-1")

	rec := httptest.NewRecorder()
	srv.statusHandler(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp.Status != string(models.APIStatusOK) {
		t.Errorf("unexpected response status: %+v", resp)
	}
}

func TestStatusHandlerMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.statusHandler(rec, httptest.NewRequest(http.MethodPost, "/status", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestConversationsHandler(t *testing.T) {
	st := store.NewInMemoryStore()
	engine := orchestrator.NewEngine(st, genai.NewMockClient(), nil, nil, nil, orchestrator.Config{})
	srv := NewServer(engine, st)
	seedConversation(t, engine, "thread-1")
	seedConversation(t, engine, "thread-2")

	rec := httptest.NewRecorder()
	srv.conversationsHandler(rec, httptest.NewRequest(http.MethodGet, "/conversations", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeResponse(t, rec)
	result, ok := resp.Result.([]interface{})
	if !ok || len(result) != 2 {
		t.Errorf("expected 2 conversations, got %+v", resp.Result)
	}
}

func TestConversationHandler(t *testing.T) {
	st := store.NewInMemoryStore()
	engine := orchestrator.NewEngine(st, genai.NewMockClient(), nil, nil, nil, orchestrator.Config{})
	srv := NewServer(engine, st)
	seedConversation(t, engine, "thread-1")

	rec := httptest.NewRecorder()
	srv.conversationHandler(rec, httptest.NewRequest(http.MethodGet, "/conversations/thread-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.conversationHandler(rec, httptest.NewRequest(http.MethodGet, "/conversations/absent", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.conversationHandler(rec, httptest.NewRequest(http.MethodGet, "/conversations/", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
