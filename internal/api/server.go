// Package api implements the HTTP surface: the chat endpoint, health
// and decision-audit endpoints, and the live log websocket.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/yuin/goldmark"

	"github.com/ivivacare/smartclinic/internal/agent"
	"github.com/ivivacare/smartclinic/internal/buildinfo"
	"github.com/ivivacare/smartclinic/internal/decisionlog"
	"github.com/ivivacare/smartclinic/internal/logstream"
	"github.com/ivivacare/smartclinic/internal/tools"
	"github.com/ivivacare/smartclinic/internal/web"

	"github.com/ivivacare/smartclinic/internal/llm"
)

// writeJSON encodes v as JSON to w, logging failures at debug level.
// Errors here typically mean the client disconnected mid-response.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// session is one conversation: an agent instance plus a lock, because
// the agent's history is single-writer.
type session struct {
	mu    sync.Mutex
	agent *agent.Agent
}

// Server is the HTTP server.
type Server struct {
	address   string
	port      int
	model     llm.Client
	registry  *tools.Registry
	decisions *decisionlog.Store     // optional
	logs      *logstream.Broadcaster // optional
	logger    *slog.Logger
	server    *http.Server

	mu       sync.Mutex
	sessions map[string]*session
}

// NewServer creates the HTTP server. decisions and logs may be nil;
// the corresponding endpoints then report unavailable.
func NewServer(address string, port int, model llm.Client, registry *tools.Registry,
	decisions *decisionlog.Store, logs *logstream.Broadcaster, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		address:   address,
		port:      port,
		model:     model,
		registry:  registry,
		decisions: decisions,
		logs:      logs,
		logger:    logger,
		sessions:  make(map[string]*session),
	}
}

// Handler builds the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/decisions", s.handleDecisions)
	mux.HandleFunc("GET /api/version", s.handleVersion)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /ws/logs", s.handleLogSocket)

	web.RegisterRoutes(mux)

	return s.withLogging(mux)
}

// Start runs the server until it fails or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // chat turns block on model and tool calls
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting HTTP server", "address", addr, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	RequestID string `json:"request_id"`
	Answer    string `json:"answer"`
	HTML      string `json:"html,omitempty"`
}

// sessionFor returns the session for an ID, creating it on first use.
func (s *Server) sessionFor(id string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess
	}
	var opts []agent.Option
	if s.decisions != nil {
		opts = append(opts, agent.WithRecorder(s.decisions))
	}
	sess := &session{
		agent: agent.New(s.model, s.registry, s.logger.With("session", id), opts...),
	}
	s.sessions[id] = sess
	return sess
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	requestID := uuid.NewString()
	logger := s.logger.With("request_id", requestID, "session", req.SessionID)
	logger.Info("chat turn received")

	sess := s.sessionFor(req.SessionID)
	sess.mu.Lock()
	answer := sess.agent.Chat(r.Context(), req.Message)
	sess.mu.Unlock()

	writeJSON(w, chatResponse{
		SessionID: req.SessionID,
		RequestID: requestID,
		Answer:    answer,
		HTML:      renderMarkdown(answer, logger),
	}, logger)
}

// renderMarkdown converts the answer to an HTML fragment for the chat
// page. On failure the page falls back to the plain text answer.
func renderMarkdown(md string, logger *slog.Logger) string {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		logger.Debug("markdown render failed", "error", err)
		return ""
	}
	return buf.String()
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	if s.decisions == nil {
		http.Error(w, "decision log not configured", http.StatusNotFound)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := s.decisions.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("decision query failed", "error", err)
		http.Error(w, "decision query failed", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []decisionlog.Record{}
	}
	writeJSON(w, map[string]any{"decisions": records}, s.logger)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, buildinfo.Info(), s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"status":  "healthy",
		"version": buildinfo.Version,
	}, s.logger)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The log view is same-origin only in practice; logs carry no
	// secrets beyond what the page already shows.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleLogSocket streams formatted log lines: replay first, then live
// until the client goes away.
func (s *Server) handleLogSocket(w http.ResponseWriter, r *http.Request) {
	if s.logs == nil {
		http.Error(w, "log stream not configured", http.StatusNotFound)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	lines, cancel := s.logs.Subscribe()
	defer cancel()

	// Reader goroutine notices the client closing.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
