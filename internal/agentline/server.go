package agentline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/agentline/agentline/internal/session"
	"github.com/agentline/agentline/internal/timeline"
)

// Server exposes the engine over HTTP: invocation, registry status, and the
// reconciled snapshot and timeline views.
type Server struct {
	engine *Engine
	server *http.Server
	logger *slog.Logger
}

// NewServer creates the HTTP API server for the engine.
func NewServer(engine *Engine) *Server {
	s := &Server{
		engine: engine,
		logger: engine.Logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /invoke", s.handleInvoke)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /snapshot", s.handleSnapshot)
	mux.HandleFunc("POST /timeline", s.handleTimeline)

	s.server = &http.Server{
		Addr:    engine.Config.GetAPIAddress(),
		Handler: mux,
	}
	return s
}

// Start runs the API server until the listener fails or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	s.logger.InfoContext(ctx, "API server listening", "addr", s.server.Addr)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the API server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type invokeRequest struct {
	Agent string `json:"agent"`
	Text  string `json:"text"`
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	var req invokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Agent == "" || req.Text == "" {
		s.writeError(w, http.StatusBadRequest, "agent and text are required")
		return
	}

	payload, err := s.engine.Invoke(r.Context(), req.Agent, req.Text)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Invocation failed",
			"agent_key", req.Agent,
			"error", err,
		)
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"agents": s.engine.Registry.Descriptors(),
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	scope := session.Filter{ContextScope: r.URL.Query().Get("context")}
	snapshot, err := s.engine.Snapshot(r.Context(), scope)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, snapshot)
}

type timelineRequest struct {
	Context string `json:"context,omitempty"`
	Turns   []struct {
		ID        string    `json:"id"`
		Role      string    `json:"role"`
		StartedAt time.Time `json:"startedAt"`
	} `json:"turns"`
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	var req timelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	turns := make([]timeline.Turn, 0, len(req.Turns))
	for _, t := range req.Turns {
		turns = append(turns, timeline.Turn{ID: t.ID, Role: t.Role, StartedAt: t.StartedAt})
	}

	entries, err := s.engine.Timeline(r.Context(), turns, session.Filter{ContextScope: req.Context})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
