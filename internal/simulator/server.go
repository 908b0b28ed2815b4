package simulator

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vigil/internal/platform/health"
	"vigil/internal/platform/middleware"
	"vigil/internal/token"
	"vigil/pkg/platform/validation"
)

// requestTimeout bounds REST handlers. The socket endpoint is exempt;
// its connections live as long as the client stays interested.
const requestTimeout = 30 * time.Second

// RouterConfig carries the wired dependencies for the HTTP surface.
type RouterConfig struct {
	Handler     *Handler
	Auth        *AuthHandler
	WS          *WSHandler
	Validator   middleware.TokenValidator
	Health      *health.Handler
	HTTPMetrics *middleware.Metrics
	Logger      *slog.Logger
}

// NewRouter wires the simulator's HTTP surface: health probes, the
// Prometheus endpoint, token exchange, and the presence API. Read
// endpoints require the read scope; admin actions require the admin
// scope on top.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Metadata)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Latency(cfg.HTTPMetrics))

	cfg.Health.Register(r)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Use(middleware.BodyLimit(validation.MaxBodySize))
		r.Use(middleware.ContentTypeJSON)
		r.Post("/auth/token", cfg.Auth.HandleTokenExchange)
	})

	r.Route("/api/online-users", func(r chi.Router) {
		// The socket endpoint authenticates itself; a timeout handler
		// here would sever every connection after requestTimeout.
		r.Handle("/ws", cfg.WS)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))
			r.Use(middleware.BodyLimit(validation.MaxBodySize))
			r.Use(middleware.ContentTypeJSON)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth(cfg.Validator, token.ScopePresenceRead, cfg.Logger))
				r.Get("/users", cfg.Handler.HandleUsers)
				r.Get("/stats", cfg.Handler.HandleStats)
				r.Get("/tenants/{tenantID}", cfg.Handler.HandleTenant)
				r.Get("/users/{userID}/session", cfg.Handler.HandleSession)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth(cfg.Validator, token.ScopePresenceAdmin, cfg.Logger))
				r.Post("/users/{userID}/offline", cfg.Handler.HandleForceOffline)
				r.Post("/bulk/offline", cfg.Handler.HandleBulkOffline)
				r.Post("/cleanup", cfg.Handler.HandleCleanup)
			})
		})
	})

	return r
}
