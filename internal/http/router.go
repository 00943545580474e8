// Package httpapi assembles the HTTP surface: middleware chain, health and
// metrics endpoints, and the authenticated feature routes.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	hawlhandler "mizan/internal/hawl/handler"
	"mizan/internal/platform/metrics"
	wealthhandler "mizan/internal/wealth/handler"
	"mizan/pkg/platform/httputil"
	"mizan/pkg/platform/middleware/auth"
	"mizan/pkg/platform/middleware/device"
	"mizan/pkg/platform/middleware/requestid"
	"mizan/pkg/platform/middleware/requesttime"
)

// Deps carries everything the router mounts.
type Deps struct {
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Validator *auth.Validator
	Hawl      *hawlhandler.Handler
	Wealth    *wealthhandler.Handler
}

// New builds the router. Request time is pinned once per request so every
// state derivation inside it sees the same "now".
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(device.Middleware)
	r.Use(deps.Metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(deps.Validator, deps.Logger))
		deps.Hawl.Register(r)
		deps.Wealth.Register(r)
	})

	return r
}
