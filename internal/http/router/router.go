// Package router arma el chi.Router del servicio.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authctrl "github.com/tunetrail/tunetrail/internal/http/controllers/auth"
	catalogctrl "github.com/tunetrail/tunetrail/internal/http/controllers/catalog"
	healthctrl "github.com/tunetrail/tunetrail/internal/http/controllers/health"
	usersctrl "github.com/tunetrail/tunetrail/internal/http/controllers/users"
	httperrors "github.com/tunetrail/tunetrail/internal/http/errors"
	mw "github.com/tunetrail/tunetrail/internal/http/middlewares"
	"github.com/tunetrail/tunetrail/internal/jwt"
	"github.com/tunetrail/tunetrail/internal/rate"
)

// Deps contiene todo lo que el router necesita. Auth, Issuer y Health son
// obligatorios; el resto es opcional.
type Deps struct {
	Issuer *jwt.Issuer

	Auth    *authctrl.Controller
	Users   *usersctrl.Controller
	Catalog *catalogctrl.Controller
	Health  *healthctrl.HealthController

	// LoginLimiter aplica a /auth/login y /auth/register. nil = sin límite.
	LoginLimiter rate.Limiter
	// Gatherer para /metrics. nil = prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

// New devuelve el handler raíz.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		mw.WithRecover(),
		mw.WithCorrelationID(),
		mw.WithLogging(),
		mw.WithMetrics(),
	)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	r.Get("/healthz", deps.Health.Healthz)

	g := deps.Gatherer
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	registerAuthRoutes(r, deps)
	if deps.Users != nil {
		r.With(mw.RequireAuth(deps.Issuer), mw.RequireAdmin()).
			Patch("/users/{id}/invalidate-session", deps.Users.InvalidateSessions)
	}
	if deps.Catalog != nil {
		registerCatalogRoutes(r, deps)
	}
	return r
}
