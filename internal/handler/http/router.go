// Package http exposes the session service over HTTP.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/sessionauth/internal/auth"
	"github.com/utafrali/sessionauth/internal/service"
	"github.com/utafrali/sessionauth/internal/transport"
	"github.com/utafrali/sessionauth/pkg/health"
	"github.com/utafrali/sessionauth/pkg/middleware"
)

// RouterConfig holds the cross-cutting settings of the router.
type RouterConfig struct {
	ServiceName       string
	CORS              middleware.CORSConfig
	RateLimit         middleware.RateLimitConfig
	PprofAllowedCIDRs []string
}

// NewRouter creates a chi router with all session routes registered.
func NewRouter(
	sessionService *service.SessionService,
	minter *auth.Minter,
	cookies *transport.Cookies,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.CORS(cfg.CORS))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)

	authHandler := NewAuthHandler(sessionService, cookies, logger)
	r.Route("/api/auth", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimit, logger))
		r.Use(ContentTypeJSON)

		r.Post("/signup", authHandler.Signup)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Post("/refresh-token", authHandler.RefreshToken)

		r.With(middleware.Auth(minter.VerifyAccess, cookies.AccessToken)).
			Get("/profile", authHandler.Profile)
	})

	return r
}
