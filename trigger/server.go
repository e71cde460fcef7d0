package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/DeafMist/oeis-bot/internal/runner"
	"github.com/DeafMist/oeis-bot/internal/selector"
)

// runTimeout bounds a whole run started by the server or the schedule.
const runTimeout = 5 * time.Minute

var errBusy = errors.New("a run is already in progress")

type postRunner interface {
	Run(ctx context.Context) (*runner.Result, error)
}

// server serializes runs: a trigger that arrives mid-run is refused.
type server struct {
	log    *slog.Logger
	runner postRunner
	mu     sync.Mutex
}

func newServer(log *slog.Logger, r postRunner) *server {
	return &server{log: log, runner: r}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Post("/run", s.handleRun)
	return r
}

// runOnce performs one run unless another is in flight. With detach set the run
// ignores ctx cancellation, so a dropped HTTP client cannot abort it between
// publish and return.
func (s *server) runOnce(ctx context.Context, detach bool) (*runner.Result, error) {
	if !s.mu.TryLock() {
		return nil, errBusy
	}
	defer s.mu.Unlock()

	if detach {
		ctx = context.WithoutCancel(ctx)
	}
	runCtx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()
	return s.runner.Run(runCtx)
}

type errorResponse struct {
	Error string `json:"error"`
}

type runResponse struct {
	RunID     string `json:"run_id"`
	Sequence  string `json:"sequence"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	StatusURL string `json:"status_url,omitempty"`
	DryRun    bool   `json:"dry_run"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleRun(w http.ResponseWriter, r *http.Request) {
	res, err := s.runOnce(r.Context(), true)
	if err != nil {
		status := statusFor(err)
		if status != http.StatusConflict {
			s.log.Error("triggered run failed", slog.Any("err", err))
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	out := runResponse{
		RunID:    res.RunID,
		Sequence: res.Sequence.ANumber(),
		Name:     res.Sequence.Name,
		Status:   res.Payload,
		DryRun:   res.DryRun,
	}
	if res.Status != nil {
		out.StatusURL = res.Status.URL
	}
	writeJSON(w, http.StatusOK, out)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBusy):
		return http.StatusConflict
	case errors.Is(err, selector.ErrExhausted):
		return http.StatusServiceUnavailable
	case errors.Is(err, runner.ErrPublish):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
