package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env      string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port     string `env:"PORT" envDefault:"8080" validate:"required"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	DatabaseURL      string `env:"DATABASE_URL,required" validate:"required"`
	DatabaseMaxConns int    `env:"DATABASE_MAX_CONNS" envDefault:"20" validate:"min=1,max=200"`

	CacheEnabled bool   `env:"CACHE_ENABLED" envDefault:"true"`
	RedisURL     string `env:"REDIS_URL"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	JWTSecret          string `env:"JWT_SECRET,required" validate:"required,min=32"`
	AccessTokenTTLMin  int    `env:"ACCESS_TOKEN_TTL_MIN" envDefault:"15" validate:"min=1,max=1440"`
	RefreshTokenTTLDay int    `env:"REFRESH_TOKEN_TTL_DAYS" envDefault:"30" validate:"min=1,max=365"`
	LockoutThreshold   int    `env:"LOCKOUT_THRESHOLD" envDefault:"5" validate:"min=1,max=20"`

	CORSOrigins string `env:"CORS_ORIGINS" envDefault:"http://localhost:3000"`

	SolverTimeBudgetSec int `env:"SOLVER_TIME_BUDGET_SEC" envDefault:"10" validate:"min=1,max=120"`
	SolverWorkers       int `env:"SOLVER_WORKERS" envDefault:"2" validate:"min=1,max=16"`
	SolverQueueWaitSec  int `env:"SOLVER_QUEUE_WAIT_SEC" envDefault:"2" validate:"min=0,max=60"`

	RateLoginPerMin int `env:"RATE_LOGIN_PER_MIN" envDefault:"5" validate:"min=1"`
	RateWritePerMin int `env:"RATE_WRITE_PER_MIN" envDefault:"60" validate:"min=1"`
	RateReadPerMin  int `env:"RATE_READ_PER_MIN" envDefault:"240" validate:"min=1"`

	ReplayBufferSize   int  `env:"REPLAY_BUFFER_SIZE" envDefault:"1000" validate:"min=10,max=100000"`
	ConfirmWindowHours int  `env:"CONFIRM_WINDOW_HOURS" envDefault:"48" validate:"min=1,max=336"`
	ConfirmAuto        bool `env:"CONFIRM_AUTO" envDefault:"true"`

	ResendAPIKey string `env:"RESEND_API_KEY" validate:"required_if=Env production,required_if=Env staging"`
	ResendFrom   string `env:"RESEND_FROM"    validate:"required_if=Env production,required_if=Env staging"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) Production() bool { return c.Env == "production" }

func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMin) * time.Minute
}

func (c *Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenTTLDay) * 24 * time.Hour
}

func (c *Config) SolverTimeBudget() time.Duration {
	return time.Duration(c.SolverTimeBudgetSec) * time.Second
}

func (c *Config) SolverQueueWait() time.Duration {
	return time.Duration(c.SolverQueueWaitSec) * time.Second
}

func (c *Config) ConfirmWindow() time.Duration {
	return time.Duration(c.ConfirmWindowHours) * time.Hour
}

// AllowedOrigins splits the comma-separated CORS whitelist.
func (c *Config) AllowedOrigins() []string {
	parts := strings.Split(c.CORSOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
