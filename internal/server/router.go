// Package server assembles the gateway: the middleware chain, the mounted
// authentication routes and the listening HTTP server.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/authgate/authgate/internal/metrics"
	"github.com/authgate/authgate/internal/middleware"
	"github.com/authgate/authgate/internal/model"
)

// AuthPrefix is where the authentication routes are mounted.
const AuthPrefix = "/api/auth"

// RouterOption customises NewRouter.
type RouterOption func(*routerOptions)

type routerOptions struct {
	metrics *metrics.Metrics
}

// WithMetrics counts every request and serves m on GET /metrics.
func WithMetrics(m *metrics.Metrics) RouterOption {
	return func(o *routerOptions) { o.metrics = m }
}

// NewRouter wraps auth with request logging, central error logging and panic
// recovery. Responses produced by auth pass through unchanged.
func NewRouter(auth http.Handler, logger *slog.Logger, opts ...RouterOption) chi.Router {
	var o routerOptions
	for _, opt := range opts {
		opt(&o)
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.ErrorLogger(logger))
	if o.metrics != nil {
		r.Use(o.metrics.Middleware)
	}
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, model.ErrorResponse{Code: "NOT_FOUND", Message: "Not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, model.ErrorResponse{Code: "METHOD_NOT_ALLOWED", Message: "Method not allowed"})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if o.metrics != nil {
		r.Method(http.MethodGet, "/metrics", o.metrics.Handler())
	}

	r.Mount(AuthPrefix, auth)
	return r
}
