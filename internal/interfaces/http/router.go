// Package http assembles the molstruct REST API on a chi router.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/turtacn/molstruct/internal/infrastructure/auth/keycloak"
	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molstruct/internal/interfaces/http/handlers"
	"github.com/turtacn/molstruct/internal/interfaces/http/middleware"
	"github.com/turtacn/molstruct/pkg/errors"
)

// RouterConfig aggregates the handlers and middleware of the route tree.
// Nil handlers leave their routes unregistered.
type RouterConfig struct {
	MoleculeHandler *handlers.MoleculeHandler
	FormatHandler   *handlers.FormatHandler
	HealthHandler   *handlers.HealthHandler

	CORS        *middleware.CORSConfig
	RateLimiter middleware.RateLimiter
	RateLimit   middleware.RateLimitConfig
	Logging     middleware.LoggingConfig

	// Auth guards /api/v1 when set.  RBAC additionally checks per-route
	// permissions and needs Auth.
	Auth *keycloak.AuthMiddleware
	RBAC *keycloak.Enforcer

	Logger         logging.Logger
	Metrics        middleware.HTTPRecorder
	MetricsHandler http.Handler
	MetricsPath    string
}

// NewRouter builds the route tree.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogging(logger, cfg.Logging))
	r.Use(chimw.Recoverer)
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	if cfg.CORS != nil {
		r.Use(middleware.CORS(*cfg.CORS))
	}
	if cfg.RateLimiter != nil {
		r.Use(middleware.RateLimit(cfg.RateLimiter, cfg.RateLimit))
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		handlers.WriteError(w, errors.NotFound("route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		handlers.WriteError(w, errors.New(errors.ErrCodeBadRequest, "method not allowed"))
	})

	if h := cfg.HealthHandler; h != nil {
		r.Get("/health", h.Health)
		r.Get("/healthz", h.Liveness)
		r.Get("/readyz", h.Readiness)
	}
	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, cfg.MetricsHandler)
	}

	r.Route("/api/v1", func(api chi.Router) {
		if cfg.Auth != nil {
			api.Use(cfg.Auth.Handler)
		}
		if cfg.FormatHandler != nil {
			api.Get("/formats", cfg.FormatHandler.List)
		}
		registerMoleculeRoutes(api, cfg.MoleculeHandler, cfg.RBAC)
	})
	return r
}

func registerMoleculeRoutes(r chi.Router, h *handlers.MoleculeHandler, rbac *keycloak.Enforcer) {
	if h == nil {
		return
	}
	read := permit(rbac, keycloak.PermMoleculeRead)
	write := permit(rbac, keycloak.PermMoleculeWrite)
	del := permit(rbac, keycloak.PermMoleculeDelete)

	r.Route("/molecules", func(mr chi.Router) {
		mr.With(read...).Get("/", h.List)
		mr.With(write...).Post("/", h.Create)
		mr.With(write...).Post("/parse", h.Parse)
		mr.With(read...).Get("/search", h.Search)

		mr.Route("/{moleculeID}", func(item chi.Router) {
			item.With(read...).Get("/", h.Get)
			item.With(del...).Delete("/", h.Delete)
			item.With(write...).Put("/geometry", h.UpdateGeometry)
			item.With(read...).Get("/distances", h.Distances)
		})
	})
}

func permit(e *keycloak.Enforcer, p keycloak.Permission) []func(http.Handler) http.Handler {
	if e == nil {
		return nil
	}
	return []func(http.Handler) http.Handler{e.Require(p)}
}

//Personal.AI order the ending
