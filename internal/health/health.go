// Package health exposes the operational HTTP surface: a liveness snapshot
// and aggregate funnel statistics.
package health

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rfarias/atendebot/internal/store"
	"github.com/rfarias/atendebot/internal/supervisor"
	"github.com/rfarias/atendebot/internal/transport"
)

// PoolSizer reports how many browser workers are alive.
type PoolSizer interface {
	Size() int
}

// Server serves the health and stats endpoints.
type Server struct {
	repo      store.Repository
	transport transport.Transport
	state     *supervisor.ProcessState
	pool      PoolSizer
}

// NewServer wires the health surface.
func NewServer(repo store.Repository, t transport.Transport, state *supervisor.ProcessState, pool PoolSizer) *Server {
	return &Server{repo: repo, transport: t, state: state, pool: pool}
}

// Routes returns the chi router for the operational endpoints.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)
	return r
}

type healthResponse struct {
	Status     string `json:"status"`
	Connection string `json:"connection"`
	Received   uint64 `json:"received"`
	Responded  uint64 `json:"responded"`
	Workers    int    `json:"workers"`
	UptimeSecs int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	received, responded := s.state.Counters()
	resp := healthResponse{
		Status:     "ok",
		Connection: s.transport.ConnectionState().String(),
		Received:   received,
		Responded:  responded,
		Workers:    s.pool.Size(),
		UptimeSecs: int64(time.Since(s.state.StartedAt()).Seconds()),
	}

	code := http.StatusOK
	if err := s.repo.Ping(r.Context()); err != nil {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

type statsResponse struct {
	TrialUsers   int `json:"trial_users"`
	TrialsIssued int `json:"trials_issued"`
	Referrers    int `json:"referrers"`
	Referrals    int `json:"referrals"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var resp statsResponse

	trials, err := s.repo.ListTrials(r.Context())
	if err != nil {
		slog.Error("Stats trial query failed", "error", err)
		http.Error(w, "stats unavailable", http.StatusInternalServerError)
		return
	}
	resp.TrialUsers = len(trials)
	for _, t := range trials {
		resp.TrialsIssued += t.TimesIssued
	}

	referrals, err := s.repo.ListReferrals(r.Context())
	if err != nil {
		slog.Error("Stats referral query failed", "error", err)
		http.Error(w, "stats unavailable", http.StatusInternalServerError)
		return
	}
	resp.Referrers = len(referrals)
	for _, ref := range referrals {
		resp.Referrals += ref.Count
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
