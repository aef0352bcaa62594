// Package statusapi is the small HTTP surface every daemon (controller and
// drone) exposes alongside the bus: liveness/readiness for orchestrators
// and a Prometheus scrape endpoint (SPEC_FULL.md "Status HTTP").
package statusapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/axelav/spawner/internal/health"
)

// Server is the status/metrics HTTP server mounted by both the controller
// and drone binaries.
type Server struct {
	checker *health.Checker
}

// NewServer builds a Server backed by checker.
func NewServer(checker *health.Checker) *Server {
	return &Server{checker: checker}
}

// Handler returns the chi router with /healthz and /metrics mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

type healthzResponse struct {
	Healthy bool            `json:"healthy"`
	Checks  []health.Status `json:"checks"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := healthzResponse{
		Healthy: s.checker.IsHealthy(),
		Checks:  s.checker.Statuses(),
	}

	status := http.StatusOK
	if !resp.Healthy {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
