// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the chat service.
package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Version is reported on registration and by /api/version. Release builds
// override it with -ldflags "-X github.com/Tyrowin/roomchat/internal/server.Version=...".
var Version = "0.3.0"

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port            string
	Env             string
	LogLevel        string
	AllowedOrigins  []string
	MaxMessageSize  int64
	RateLimit       RateLimitConfig
	SendBufferSize  int
	ShutdownTimeout time.Duration
}

// envSpec mirrors Config as flat environment variables.
type envSpec struct {
	Port                    string        `envconfig:"SERVER_PORT" default:":8080"`
	Env                     string        `envconfig:"ENV" default:"development"`
	LogLevel                string        `envconfig:"LOG_LEVEL" default:"info"`
	AllowedOrigins          []string      `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080"`
	MaxMessageSize          int64         `envconfig:"MAX_MESSAGE_SIZE" default:"4096"`
	RateLimitBurst          int           `envconfig:"RATE_LIMIT_BURST" default:"10"`
	RateLimitRefillInterval time.Duration `envconfig:"RATE_LIMIT_REFILL_INTERVAL" default:"1s"`
	SendBufferSize          int           `envconfig:"SEND_BUFFER_SIZE" default:"256"`
	ShutdownTimeout         time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

func defaultConfig() Config {
	return Config{
		Port:     ":8080",
		Env:      "development",
		LogLevel: "info",
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize: 4096,
		RateLimit: RateLimitConfig{
			Burst:          10,
			RefillInterval: time.Second,
		},
		SendBufferSize:  256,
		ShutdownTimeout: 10 * time.Second,
	}
}

func sanitizeConfig(cfg Config) Config {
	defaults := defaultConfig()

	if cfg.Port == "" {
		cfg.Port = defaults.Port
	}
	if !strings.Contains(cfg.Port, ":") {
		cfg.Port = ":" + cfg.Port
	}
	if cfg.Env == "" {
		cfg.Env = defaults.Env
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaults.MaxMessageSize
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = defaults.RateLimit.Burst
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = defaults.RateLimit.RefillInterval
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = defaults.SendBufferSize
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}

	origins := make([]string, 0, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	cfg.AllowedOrigins = origins
	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv loads an optional .env file and then reads the process
// environment. Unset variables keep their defaults and out-of-range values
// fall back to them.
func NewConfigFromEnv() (*Config, error) {
	_ = godotenv.Load()

	var spec envSpec
	if err := envconfig.Process("", &spec); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	cfg := sanitizeConfig(Config{
		Port:           spec.Port,
		Env:            spec.Env,
		LogLevel:       spec.LogLevel,
		AllowedOrigins: spec.AllowedOrigins,
		MaxMessageSize: spec.MaxMessageSize,
		RateLimit: RateLimitConfig{
			Burst:          spec.RateLimitBurst,
			RefillInterval: spec.RateLimitRefillInterval,
		},
		SendBufferSize:  spec.SendBufferSize,
		ShutdownTimeout: spec.ShutdownTimeout,
	})
	return &cfg, nil
}

// IsDevelopment reports whether the server runs in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}
