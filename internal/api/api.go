// Package api exposes the operator endpoints of RecruitPipe: status
// aggregation and read-only access to conversation threads.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/recruitpipe/recruitpipe/internal/models"
	"github.com/recruitpipe/recruitpipe/internal/orchestrator"
	"github.com/recruitpipe/recruitpipe/internal/store"
)

// requestIDHeader carries the per-request correlation id.
const requestIDHeader = "X-Request-ID"

// withRequestID tags every request with a correlation id and logs it.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, reqID)
		slog.Debug("Server: request", "requestID", reqID, "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

// DefaultAddr is the listen address when none is configured.
const DefaultAddr = ":8080"

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server serves the operator HTTP surface.
type Server struct {
	engine *orchestrator.Engine
	st     store.Store
	srv    *http.Server
}

// NewServer creates the operator API server.
func NewServer(engine *orchestrator.Engine, st store.Store, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Server{engine: engine, st: st}
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.statusHandler)
	mux.HandleFunc("/conversations", s.conversationsHandler)
	mux.HandleFunc("/conversations/", s.conversationHandler)
	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      withRequestID(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	slog.Info("Server.Start: API listening", "addr", s.srv.Addr)
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// statusHandler handles GET /status.
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	report, err := s.engine.StatusReport()
	if err != nil {
		slog.Error("Server.statusHandler: report failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to build status report"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(report))
}

// conversationsHandler handles GET /conversations.
func (s *Server) conversationsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	active, err := s.st.ListActiveConversations()
	if err != nil {
		slog.Error("Server.conversationsHandler: list failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list conversations"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(active))
}

// conversationHandler handles GET /conversations/{thread_id}.
func (s *Server) conversationHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	threadID := strings.TrimPrefix(r.URL.Path, "/conversations/")
	if threadID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Thread id is required"))
		return
	}
	state, err := s.st.GetConversation(threadID)
	if err != nil {
		slog.Error("Server.conversationHandler: get failed", "threadID", threadID, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load conversation"))
		return
	}
	if state == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(state))
}
