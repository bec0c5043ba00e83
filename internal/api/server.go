// Package api provides the HTTP and websocket surface of the agent.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tokamak-network/ai-tokamak/internal/buildinfo"
	"github.com/tokamak-network/ai-tokamak/internal/bus"
	"github.com/tokamak-network/ai-tokamak/internal/format"
	"github.com/tokamak-network/ai-tokamak/internal/llm"
	"github.com/tokamak-network/ai-tokamak/internal/session"
)

// ChannelAPI is the bus channel name recorded for synchronous HTTP chat.
const ChannelAPI = "api"

// maxBodyBytes bounds request bodies on JSON endpoints.
const maxBodyBytes = 1 << 20

// writeJSON encodes v as JSON to w, logging any encoding error.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

// Chatter runs one inbound message through its session.
type Chatter interface {
	Handle(ctx context.Context, msg bus.InboundMessage) (string, bool)
}

// ToolLister describes the registered tools.
type ToolLister interface {
	Definitions() []llm.ToolDefinition
}

// Deps are the components the server exposes. Tools, Metrics and Bus
// are optional; the matching endpoints are omitted when nil.
type Deps struct {
	Chat     Chatter
	Sessions *session.Store
	Tools    ToolLister
	Metrics  http.Handler
	Bus      *bus.Bus
}

// Server is the HTTP API server.
type Server struct {
	address string
	port    int
	deps    Deps
	logger  *slog.Logger
	ws      *wsHub
	server  *http.Server
}

// NewServer creates a server listening on address:port.
func NewServer(address string, port int, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		address: address,
		port:    port,
		deps:    deps,
		logger:  logger,
	}
	if deps.Bus != nil {
		s.ws = newWSHub(deps.Bus, logger)
	}
	return s
}

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/version", s.handleVersion)
	mux.HandleFunc("POST /v1/chat", s.handleChat)
	mux.HandleFunc("GET /v1/sessions", s.handleSessionList)
	mux.HandleFunc("GET /v1/sessions/{key}", s.handleSessionGet)
	mux.HandleFunc("DELETE /v1/sessions/{key}", s.handleSessionDelete)
	if s.deps.Tools != nil {
		mux.HandleFunc("GET /v1/tools", s.handleTools)
	}
	if s.deps.Metrics != nil {
		mux.Handle("GET /metrics", s.deps.Metrics)
	}
	if s.ws != nil {
		mux.HandleFunc("GET /v1/ws", s.ws.serve)
	}

	return s.withLogging(mux)
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.server = &http.Server{
		Addr:         net.JoinHostPort(addr, strconv.Itoa(s.port)),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second, // agent runs can take several LLM round trips
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server", "address", addr, "port", s.port)
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if s.ws != nil {
		s.ws.closeAll()
	}
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("API server stopped")
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Hijack passes through to the underlying writer for websocket upgrades.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		level := slog.LevelInfo
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			level = slog.LevelDebug
		}
		s.logger.Log(r.Context(), level, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"request_id", reqID,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "healthy"}, s.logger)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, buildinfo.Info(), s.logger)
}

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	SenderID  string `json:"sender_id,omitempty"`
	Message   string `json:"message"`
}

// ChatResponse is the reply to POST /v1/chat.
type ChatResponse struct {
	Reply   string `json:"reply"`
	HTML    string `json:"html,omitempty"`
	Ended   bool   `json:"ended"`
	Session string `json:"session"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.errorResponse(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.SessionID == "" {
		req.SessionID = "default"
	}
	if req.SenderID == "" {
		req.SenderID = "anonymous"
	}

	msg := bus.InboundMessage{
		Channel:   ChannelAPI,
		SenderID:  req.SenderID,
		ChatID:    req.SessionID,
		Content:   req.Message,
		// A direct API request is addressed to the agent, so it
		// reactivates an ended session.
		Mention:   true,
		Timestamp: time.Now(),
	}
	reply, _ := s.deps.Chat.Handle(r.Context(), msg)

	resp := ChatResponse{Reply: reply, Session: msg.SessionKey()}
	if reply != "" {
		html, err := format.ToHTML(reply)
		if err != nil {
			s.logger.Warn("render reply html failed", "error", err)
		}
		resp.HTML = html
	}
	if sess, ok := s.deps.Sessions.Get(msg.SessionKey()); ok {
		resp.Ended = sess.IsEnded()
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, resp, s.logger)
}

func (s *Server) handleSessionList(w http.ResponseWriter, r *http.Request) {
	infos := s.deps.Sessions.List()
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"sessions": infos,
		"count":    len(infos),
	}, s.logger)
}

// SessionDetail is the body of GET /v1/sessions/{key}.
type SessionDetail struct {
	session.Info
	Messages []session.Message `json:"messages"`
}

func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	sess, ok := s.deps.Sessions.Get(key)
	if !ok {
		s.errorResponse(w, http.StatusNotFound, "session not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, SessionDetail{Info: sess.Info(), Messages: sess.Messages()}, s.logger)
}

func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if !s.deps.Sessions.Delete(key) {
		s.errorResponse(w, http.StatusNotFound, "session not found")
		return
	}
	s.logger.Info("session deleted via API", "session", key)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	defs := s.deps.Tools.Definitions()
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"tools": defs,
		"count": len(defs),
	}, s.logger)
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    code,
		},
	}, s.logger)
}
