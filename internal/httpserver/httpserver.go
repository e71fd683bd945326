// Package httpserver exposes the engine's operational surface over HTTP:
// health/readiness/liveness probes and a Prometheus scrape endpoint. Chunk
// access itself has no inbound REST surface; it happens exclusively
// through the Engine and ChunkStore Go APIs.
package httpserver

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/maidsafe-archive/selfencrypt-go/internal/metrics"
	"github.com/maidsafe-archive/selfencrypt-go/internal/middleware"
)

// Handler serves the operational HTTP surface.
type Handler struct {
	logger           *logrus.Logger
	metrics          *metrics.Metrics
	storeHealthCheck func(context.Context) error
}

// New builds a Handler. storeHealthCheck may be nil, in which case
// readiness never depends on the ChunkStore backend.
func New(logger *logrus.Logger, m *metrics.Metrics, storeHealthCheck func(context.Context) error) *Handler {
	return &Handler{logger: logger, metrics: m, storeHealthCheck: storeHealthCheck}
}

// Router builds the mux.Router, wired with the logging and recovery
// middleware.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.LoggingMiddleware(h.logger))
	r.Use(middleware.RecoveryMiddleware(h.logger))

	r.HandleFunc("/health", metrics.HealthHandler()).Methods("GET")
	r.HandleFunc("/ready", metrics.ReadinessHandler(h.storeHealthCheck)).Methods("GET")
	r.HandleFunc("/live", metrics.LivenessHandler()).Methods("GET")

	if h.metrics != nil {
		r.Handle("/metrics", h.metrics.Handler()).Methods("GET")
	}

	return r
}

// ListenAndServe starts the HTTP server on addr, blocking until it exits.
func (h *Handler) ListenAndServe(addr string) error {
	h.logger.WithField("addr", addr).Info("starting operational HTTP server")
	srv := &http.Server{Addr: addr, Handler: h.Router()}
	return srv.ListenAndServe()
}
