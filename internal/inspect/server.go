package inspect

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server exposes an Inspector over HTTP.
type Server struct {
	inspector *Inspector
	logger    *log.Logger
}

func NewServer(inspector *Inspector, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{inspector: inspector, logger: logger}
}

// Routes sets up the HTTP routes.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))
	r.Use(middleware.Heartbeat("/health"))

	r.Get("/focus", s.handleFocus)
	r.Put("/focus/{id}", s.handleSetFocus)
	r.Get("/agents", s.handleAgents)
	r.Get("/agents/{id}/fitness", s.handleAgentFitness)
	r.Get("/stats", s.handleStats)

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Printf("request_completed method=%s path=%s status=%d duration=%v request_id=%s",
			r.Method, r.URL.Path, ww.Status(), time.Since(start), middleware.GetReqID(r.Context()))
	})
}

func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request) {
	view, ok := s.inspector.Focus()
	if !ok {
		s.writeError(w, http.StatusNotFound, "no focused agent")
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSetFocus(w http.ResponseWriter, r *http.Request) {
	id, ok := s.agentID(w, r)
	if !ok {
		return
	}
	if !s.inspector.SetFocus(id) {
		s.writeError(w, http.StatusNotFound, "unknown agent")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]uint64{"focus": id})
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.inspector.Agents())
}

func (s *Server) handleAgentFitness(w http.ResponseWriter, r *http.Request) {
	id, ok := s.agentID(w, r)
	if !ok {
		return
	}
	values, found := s.inspector.Fitness(id)
	if !found {
		s.writeError(w, http.StatusNotFound, "unknown agent")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"id": id, "fitness": values})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.inspector.Stats())
}

func (s *Server) agentID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid agent id")
		return 0, false
	}
	return id, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Printf("response_encode_failed status=%d err=%v", status, err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
