// Package config loads the service configuration from environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/xhashpass/authworker/internal/auth"
)

// Config holds all application configuration.
type Config struct {
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	DatabaseURL    string `env:"DATABASE_URL,required,notEmpty"`
	MigrateOnStart bool   `env:"MIGRATE_ON_START" envDefault:"true"`
	RedisURL       string `env:"REDIS_URL,required,notEmpty"`

	// Shared secrets. JWTSecret signs session tokens and WorkerSecret is the
	// value callers present in X-Worker-Token.
	JWTSecret    string        `env:"JWT_SECRET,required,notEmpty"`
	WorkerSecret string        `env:"WORKER_SECRET,required,notEmpty"`
	TokenTTL     time.Duration `env:"TOKEN_TTL" envDefault:"1h"`
	TokenIssuer  string        `env:"TOKEN_ISSUER" envDefault:"authworker"`

	// Key environment embedded in generated api keys: live or test.
	APIKeyEnv string `env:"API_KEY_ENV" envDefault:"live"`

	GatewayTimeout time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"5s"`

	// Argon2id cost. Zero values fall back to the hasher defaults.
	Argon2Time    uint32 `env:"ARGON2_TIME" envDefault:"3"`
	Argon2Memory  uint32 `env:"ARGON2_MEMORY_KIB" envDefault:"65536"`
	Argon2Threads uint8  `env:"ARGON2_THREADS" envDefault:"4"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting. The auth limit applies per client address to register
	// and login; the api key limit applies per credential tier.
	RateLimitAuthEnabled   bool `env:"RATE_LIMIT_AUTH_ENABLED" envDefault:"true"`
	RateLimitAuthRPS       int  `env:"RATE_LIMIT_AUTH_RPS" envDefault:"5"`
	RateLimitAuthBurst     int  `env:"RATE_LIMIT_AUTH_BURST" envDefault:"10"`
	RateLimitAPIKeyEnabled bool `env:"RATE_LIMIT_API_KEY_ENABLED" envDefault:"true"`

	// Take the client address from X-Forwarded-For/X-Real-IP. Only safe
	// behind a proxy that overwrites them.
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" envDefault:"false"`

	// Comma-separated list of allowed origins. "*" allows any origin.
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

func (c *Config) validate() error {
	if c.APIKeyEnv != "live" && c.APIKeyEnv != "test" {
		return fmt.Errorf("API_KEY_ENV must be live or test, got %q", c.APIKeyEnv)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	if c.GatewayTimeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT must be positive, got %s", c.GatewayTimeout)
	}
	if c.Argon2Time > auth.MaxTime || c.Argon2Memory > auth.MaxMemoryKiB {
		return fmt.Errorf("ARGON2_TIME must be at most %d and ARGON2_MEMORY_KIB at most %d", auth.MaxTime, auth.MaxMemoryKiB)
	}
	if c.RateLimitAuthEnabled && (c.RateLimitAuthRPS <= 0 || c.RateLimitAuthBurst <= 0) {
		return fmt.Errorf("RATE_LIMIT_AUTH_RPS and RATE_LIMIT_AUTH_BURST must be positive")
	}
	return nil
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing or a value is out of range.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
