package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cwygoda/nftfolder/internal/domain"
	"github.com/cwygoda/nftfolder/internal/logging"
)

// Options configures the status server.
type Options struct {
	Addr   string
	Owner  string
	RunID  string
	Logger *slog.Logger
	// Runs serves GET /runs/{id}. Optional.
	Runs *domain.RunService
	// Gatherer serves GET /metrics. Optional.
	Gatherer prometheus.Gatherer
}

// Server exposes the live state of a run over HTTP.
type Server struct {
	agg    *domain.Aggregator
	opts   Options
	log    *slog.Logger
	mux    *http.ServeMux
	server *http.Server
}

// NewServer creates a new status server reading from agg.
func NewServer(agg *domain.Aggregator, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	s := &Server{
		agg:  agg,
		opts: opts,
		log:  opts.Logger.With("component", "status"),
		mux:  http.NewServeMux(),
	}
	s.routes()
	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.mux.HandleFunc("GET /failures", s.handleFailures)
	s.mux.HandleFunc("GET /runs/{id}", s.handleGetRun)
	if s.opts.Gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	}
}

// statusResponse is the JSON response for GET /status.
type statusResponse struct {
	RunID      string `json:"run_id,omitempty"`
	Owner      string `json:"owner,omitempty"`
	Discovered int    `json:"discovered"`
	Completed  int    `json:"completed"`
	Saved      int    `json:"saved"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	Bytes      int64  `json:"bytes"`
	Succeeded  bool   `json:"succeeded"`
}

// failureResponse is one entry of GET /failures.
type failureResponse struct {
	Name  string `json:"name"`
	URL   string `json:"url,omitempty"`
	Error string `json:"error"`
}

// runResponse is the JSON response for GET /runs/{id}.
type runResponse struct {
	ID         string `json:"id"`
	Owner      string `json:"owner"`
	Dir        string `json:"dir"`
	Status     string `json:"status"`
	Discovered int    `json:"discovered"`
	Completed  int    `json:"completed"`
	Failed     int    `json:"failed"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
}

// errorResponse is the JSON error response.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.agg.Snapshot()
	s.writeJSON(w, http.StatusOK, statusResponse{
		RunID:      s.opts.RunID,
		Owner:      s.opts.Owner,
		Discovered: stats.Discovered,
		Completed:  stats.Completed,
		Saved:      stats.Saved,
		Skipped:    stats.Skipped,
		Failed:     len(stats.Failures),
		Bytes:      stats.Bytes,
		Succeeded:  len(stats.Failures) == 0,
	})
}

func (s *Server) handleFailures(w http.ResponseWriter, r *http.Request) {
	stats := s.agg.Snapshot()
	out := make([]failureResponse, 0, len(stats.Failures))
	for _, o := range stats.Failures {
		out = append(out, failureResponse{Name: o.Name, URL: o.URL, Error: o.Reason()})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.opts.Runs == nil {
		s.writeError(w, http.StatusNotFound, "run ledger disabled")
		return
	}

	run, err := s.opts.Runs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			s.writeError(w, http.StatusNotFound, "run not found")
			return
		}
		s.log.Error("get run failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.writeJSON(w, http.StatusOK, runToResponse(run))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func runToResponse(run *domain.Run) runResponse {
	resp := runResponse{
		ID:         run.ID,
		Owner:      run.Owner,
		Dir:        run.Dir,
		Status:     string(run.Status),
		Discovered: run.Discovered,
		Completed:  run.Completed,
		Failed:     run.Failed,
		StartedAt:  run.StartedAt.UTC().Format(time.RFC3339),
	}
	if !run.FinishedAt.IsZero() {
		resp.FinishedAt = run.FinishedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// ListenAndServe starts the HTTP server. It returns nil after Shutdown.
func (s *Server) ListenAndServe() error {
	s.log.Info("status server listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// ServeHTTP implements http.Handler for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.server.Addr
}
