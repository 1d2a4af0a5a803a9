// Package main is the entrypoint for the authworker API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/xhashpass/authworker/internal/auth"
	"github.com/xhashpass/authworker/internal/cache"
	"github.com/xhashpass/authworker/internal/config"
	"github.com/xhashpass/authworker/internal/handler"
	"github.com/xhashpass/authworker/internal/metrics"
	"github.com/xhashpass/authworker/internal/middleware"
	"github.com/xhashpass/authworker/internal/repository"
	"github.com/xhashpass/authworker/internal/server"
	"github.com/xhashpass/authworker/internal/service"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	if cfg.MigrateOnStart {
		if err := repository.Migrate(cfg.DatabaseURL); err != nil {
			logger.Error("failed to run migrations",
				slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			)
			os.Exit(1)
		}
		logger.Info("database migrations applied")
	}

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to database")

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		repo.Close()
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to Redis")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewPrometheus(reg)

	identity := service.NewIdentity(service.Deps{
		Store: repo,
		Hasher: auth.NewHasher(auth.Params{
			Time:    cfg.Argon2Time,
			Memory:  cfg.Argon2Memory,
			Threads: cfg.Argon2Threads,
		}),
		Tokens:         auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenIssuer, cfg.TokenTTL),
		Limiter:        apiKeyLimiter(cfg, cacheClient),
		KeyCache:       cacheClient,
		Metrics:        recorder,
		Logger:         logger,
		GatewayTimeout: cfg.GatewayTimeout,
		KeyEnv:         cfg.APIKeyEnv,
	})

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	r := handler.NewRouter(handler.RouterConfig{
		Identity:             identity,
		Worker:               auth.NewWorkerAuthenticator(cfg.WorkerSecret),
		Logger:               logger,
		IPLimiter:            cacheClient,
		Metrics:              recorder,
		Gatherer:             reg,
		DB:                   repo,
		Cache:                cacheClient,
		TrustProxyHeaders:    cfg.TrustProxyHeaders,
		CORS:                 cors,
		Security:             middleware.SecurityConfig{HSTS: cfg.IsProduction()},
		MaxBodySize:          cfg.MaxRequestBodySize,
		AuthRateLimitEnabled: cfg.RateLimitAuthEnabled,
		AuthRateLimitRPS:     cfg.RateLimitAuthRPS,
		AuthRateLimitBurst:   cfg.RateLimitAuthBurst,
	})

	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Hooks run last-registered first: Redis closes before the pool.
	srv.OnShutdown("database", func(ctx context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(ctx context.Context) error {
		return cacheClient.Close()
	})

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"key_env", cfg.APIKeyEnv,
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// apiKeyLimiter returns a nil interface when per-key limiting is disabled.
func apiKeyLimiter(cfg *config.Config, c *cache.Cache) service.RateLimiter {
	if !cfg.RateLimitAPIKeyEnabled {
		return nil
	}
	return c
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With(slog.String("service", "authworker"))
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
