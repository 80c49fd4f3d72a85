// Package httpapi assembles the engine's router: middleware chain, domain
// handlers, health, and metrics.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	assesshandler "suvidha/internal/assess/handler"
	cataloghandler "suvidha/internal/catalog/handler"
	"suvidha/internal/platform/middleware"
	profilehandler "suvidha/internal/profile/handler"
)

// Handlers collects the domain handlers mounted on the router.
type Handlers struct {
	Catalog *cataloghandler.Handler
	Profile *profilehandler.Handler
	Assess  *assesshandler.Handler
}

// NewRouter wires the middleware chain and all endpoints.
func NewRouter(h Handlers, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		h.Catalog.Register(r)
		h.Profile.Register(r)
		h.Assess.Register(r)
	})

	return r
}
