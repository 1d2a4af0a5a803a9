package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/xhashpass/authworker/internal/auth"
	"github.com/xhashpass/authworker/internal/metrics"
	"github.com/xhashpass/authworker/internal/middleware"
)

// RouterConfig holds everything the HTTP surface needs.
type RouterConfig struct {
	Identity IdentityService
	Worker   *auth.WorkerAuthenticator
	Logger   *slog.Logger

	// Optional. A nil IPLimiter disables the auth endpoint rate limit and a
	// nil Gatherer disables /metrics.
	IPLimiter middleware.IPLimiter
	Metrics   metrics.Recorder
	Gatherer  prometheus.Gatherer
	DB        HealthChecker
	Cache     HealthChecker

	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Enable it only behind a proxy that overwrites those headers.
	TrustProxyHeaders bool

	CORS                 middleware.CORSConfig
	Security             middleware.SecurityConfig
	MaxBodySize          int64
	AuthRateLimitEnabled bool
	AuthRateLimitRPS     int
	AuthRateLimitBurst   int
}

// NewRouter builds the chi router with every route and middleware.
func NewRouter(cfg RouterConfig) *chi.Mux {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = 1 << 20
	}

	authHandler := NewAuthHandler(cfg.Identity, cfg.Logger)
	userHandler := NewUserHandler(cfg.Identity, cfg.Logger)
	adminHandler := NewAdminHandler(cfg.Identity, cfg.Logger)
	healthHandler := NewHealthHandler(cfg.DB, cfg.Cache, cfg.Logger)

	workerAuth := middleware.WorkerAuth(middleware.WorkerAuthConfig{
		Logger:        cfg.Logger,
		Authenticator: cfg.Worker,
	})
	session := middleware.RequireSession(middleware.SessionConfig{
		Logger:   cfg.Logger,
		Verifier: cfg.Identity,
	})
	ipLimit := middleware.RateLimitIP(middleware.RateLimitConfig{
		Logger:  cfg.Logger,
		Limiter: cfg.IPLimiter,
		Enabled: cfg.AuthRateLimitEnabled,
		RPS:     cfg.AuthRateLimitRPS,
		Burst:   cfg.AuthRateLimitBurst,
	})

	r := chi.NewRouter()

	if cfg.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recoverer(cfg.Logger))
	r.Use(middleware.Metrics(cfg.Metrics))
	r.Use(middleware.Security(cfg.Security))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.MaxBodySize(cfg.MaxBodySize))

	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", NewMetricsHandler(cfg.Gatherer))
	}

	r.Route("/auth", func(r chi.Router) {
		r.With(ipLimit).Post("/register", authHandler.Register)
		r.With(ipLimit).Post("/login", authHandler.Login)
		r.With(workerAuth, session).Get("/verify-token", authHandler.VerifyToken)
		r.With(workerAuth).Post("/verify-api-key", authHandler.VerifyAPIKey)
	})

	r.Group(func(r chi.Router) {
		r.Use(workerAuth)

		r.Post("/user", userHandler.Create)
		r.Get("/user/{id}", userHandler.Get)
		r.Post("/user/{id}", userHandler.Update)
		r.Delete("/user/{id}", userHandler.Delete)

		r.Get("/users/admins", adminHandler.ListAdmins)
		r.Get("/users/{id}/is-admin", adminHandler.IsAdmin)
		r.Post("/users/{id}/admin-status", adminHandler.SetAdminStatus)
		r.Post("/users/{id}/subscription", adminHandler.SetSubscription)
		r.Post("/users/{id}/api-key/rotate", adminHandler.RotateAPIKey)
	})

	r.NotFound(NotFound)
	r.MethodNotAllowed(MethodNotAllowed)

	return r
}
