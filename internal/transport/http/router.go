// Package httptransport assembles the HTTP API surface.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"metrology/internal/platform/middleware"
	"metrology/internal/transport/http/shared"
)

// Registrar mounts a handler group on the API router.
type Registrar interface {
	Register(r chi.Router)
}

// HealthChecker reports backend health for the readiness endpoint.
type HealthChecker func(ctx context.Context) error

// NewRouter wires the API under /api/v1 plus health and metrics endpoints.
func NewRouter(log *slog.Logger, ready HealthChecker, groups ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Actor)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			if err := ready(r.Context()); err != nil {
				shared.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unavailable",
					"reason": err.Error(),
				})
				return
			}
		}
		shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.ContentTypeJSON)
		for _, group := range groups {
			group.Register(api)
		}
	})
	return r
}
