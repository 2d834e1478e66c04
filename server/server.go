// Package server exposes a Router over HTTP.
//
//	POST   /v1/run                    {"input": "...", "session_id": "..."}
//	GET    /v1/tools                  discovered tool descriptors
//	GET    /v1/graph                  Mermaid flowchart of the topology
//	GET    /v1/sessions/{id}/history  recorded turns
//	DELETE /v1/sessions/{id}
//	GET    /metrics                   Prometheus exposition
//	GET    /healthz
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hupe1980/payroute"
	"github.com/hupe1980/payroute/logging"
	"github.com/hupe1980/payroute/session"
	"github.com/hupe1980/payroute/tool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultMaxBodyBytes bounds request bodies.
const DefaultMaxBodyBytes = 64 << 10

// Runner is the part of payroute.Router the server needs.
type Runner interface {
	RunSync(ctx context.Context, input string) (payroute.RunResult, error)
	Tools(ctx context.Context) ([]tool.Descriptor, error)
	Mermaid() string
}

// Options configures the handler.
type Options struct {
	// Sessions records turns when set.
	Sessions session.Store
	// Gatherer backs /metrics; prometheus.DefaultGatherer when nil.
	Gatherer     prometheus.Gatherer
	MaxBodyBytes int64
	Logger       logging.Logger
	Now          func() time.Time
}

// Server implements the HTTP endpoints.
type Server struct {
	runner Runner
	opts   Options
}

// RunRequest is the body of POST /v1/run.
type RunRequest struct {
	Input     string `json:"input"`
	SessionID string `json:"session_id,omitempty"`
}

// RunResponse is returned by POST /v1/run.
type RunResponse struct {
	Output     string   `json:"output"`
	Terminal   string   `json:"terminal"`
	Path       []string `json:"path"`
	State      any      `json:"state"`
	RunID      string   `json:"run_id"`
	SessionID  string   `json:"session_id,omitempty"`
	DurationMS int64    `json:"duration_ms"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewHandler creates the HTTP handler for runner.
func NewHandler(runner Runner, optFns ...func(o *Options)) http.Handler {
	opts := Options{
		Gatherer:     prometheus.DefaultGatherer,
		MaxBodyBytes: DefaultMaxBodyBytes,
		Now:          time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	s := &Server{runner: runner, opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.Health)
	r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/run", s.Run)
		r.Get("/tools", s.Tools)
		r.Get("/graph", s.Graph)
		r.Get("/sessions/{id}/history", s.History)
		r.Delete("/sessions/{id}", s.DeleteSession)
	})

	return r
}

// Health handles GET /healthz.
func (s *Server) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Run handles POST /v1/run.
func (s *Server) Run(w http.ResponseWriter, r *http.Request) {
	var body RunRequest

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(body.Input) == "" {
		writeError(w, http.StatusBadRequest, "input is required")
		return
	}

	res, err := s.runner.RunSync(r.Context(), body.Input)
	if err != nil {
		s.opts.Logger.Error("server.run.error", "run_id", res.RunID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := RunResponse{
		Output:     res.Output(),
		Terminal:   res.Terminal,
		Path:       res.Path,
		State:      res.State,
		RunID:      res.RunID,
		DurationMS: res.Duration.Milliseconds(),
	}

	if s.opts.Sessions != nil {
		resp.SessionID = body.SessionID
		if resp.SessionID == "" {
			resp.SessionID = session.NewID()
		}

		turn := session.Turn{
			RunID:    res.RunID,
			Input:    body.Input,
			Output:   res.Output(),
			Terminal: res.Terminal,
			Path:     res.Path,
			At:       s.opts.Now(),
		}
		if err := s.opts.Sessions.Append(r.Context(), resp.SessionID, turn); err != nil {
			s.opts.Logger.Warn("server.session.error", "session_id", resp.SessionID, "error", err.Error())
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Tools handles GET /v1/tools.
func (s *Server) Tools(w http.ResponseWriter, r *http.Request) {
	descs, err := s.runner.Tools(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if descs == nil {
		descs = []tool.Descriptor{}
	}
	writeJSON(w, http.StatusOK, descs)
}

// Graph handles GET /v1/graph.
func (s *Server) Graph(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(s.runner.Mermaid()))
}

// History handles GET /v1/sessions/{id}/history.
func (s *Server) History(w http.ResponseWriter, r *http.Request) {
	if s.opts.Sessions == nil {
		writeError(w, http.StatusNotImplemented, "session history is disabled")
		return
	}

	turns, err := s.opts.Sessions.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, turns)
}

// DeleteSession handles DELETE /v1/sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if s.opts.Sessions == nil {
		writeError(w, http.StatusNotImplemented, "session history is disabled")
		return
	}

	if err := s.opts.Sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
