// Package http serves health, readiness, metrics, and the latest advisory
// state while the job runs in watch mode.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/travel-advisory-etl/internal/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LatestSource returns the latest advisory per country.
type LatestSource interface {
	Latest(ctx context.Context) ([]domain.Record, error)
}

// Server exposes the job's HTTP endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a server with /healthz, /readyz, /metrics and, when
// latest is non-nil, /advisories/latest.
func NewServer(addr string, ready sharedobs.ReadinessChecker, latest LatestSource, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	if latest != nil {
		mux.HandleFunc("GET /advisories/latest", s.handleLatest(latest))
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type advisoryJSON struct {
	CountryCode  string `json:"country_code"`
	PublishedOn  string `json:"published_on"`
	ThreatLevel  string `json:"threat_level"`
	ThreatNumber int    `json:"threat_number"`
}

func (s *Server) handleLatest(src LatestSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		latest, err := src.Latest(r.Context())
		if err != nil {
			s.logger.Error("load latest advisories failed", "error", err)
			sharedobs.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "history unavailable"})
			return
		}

		out := make([]advisoryJSON, 0, len(latest))
		for _, rec := range latest {
			out = append(out, advisoryJSON{
				CountryCode:  rec.CountryCode,
				PublishedOn:  rec.PublishedOn.Format(domain.DateLayout),
				ThreatLevel:  rec.ThreatLevel,
				ThreatNumber: rec.ThreatNumber,
			})
		}
		sharedobs.WriteJSON(w, http.StatusOK, out)
	}
}
