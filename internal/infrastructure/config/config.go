// Package config loads service configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Render    RenderConfig
	Request   RequestConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	// CORSOrigins restricts cross-origin callers; empty allows any origin.
	CORSOrigins []string `envconfig:"CORS_ORIGINS"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds inbound rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// RenderConfig holds template engine limits.
type RenderConfig struct {
	Timeout         time.Duration `envconfig:"RENDER_TIMEOUT" default:"10s"`
	MaxIncludeDepth int           `envconfig:"RENDER_MAX_INCLUDE_DEPTH" default:"32"`
	MaxCallStack    int           `envconfig:"RENDER_MAX_CALL_STACK" default:"1024"`
	Delimiter       string        `envconfig:"RENDER_DELIMITER" default:"%"`
	StaticPrefix    string        `envconfig:"RENDER_STATIC_PREFIX" default:"/static"`
	Theme           string        `envconfig:"RENDER_THEME" default:"default"`
}

// RequestConfig holds configuration for HTTP calls made by templates.
type RequestConfig struct {
	Timeout        time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	RetryCount     int           `envconfig:"REQUEST_RETRY_COUNT" default:"0"`
	RetryWait      time.Duration `envconfig:"REQUEST_RETRY_WAIT" default:"1s"`
	RetryMaxWait   time.Duration `envconfig:"REQUEST_RETRY_MAX_WAIT" default:"30s"`
	RateLimit      float64       `envconfig:"REQUEST_RPS" default:"0"`
	UserAgent      string        `envconfig:"REQUEST_USER_AGENT" default:"sandrender/1.0"`
	BreakerEnabled bool          `envconfig:"REQUEST_BREAKER_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate checks values envconfig cannot express.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Render.Delimiter) != 1 {
		errs = append(errs, fmt.Errorf("RENDER_DELIMITER must be a single character, got %q", c.Render.Delimiter))
	}
	if c.Render.MaxIncludeDepth < 1 {
		errs = append(errs, errors.New("RENDER_MAX_INCLUDE_DEPTH must be positive"))
	}
	if c.Request.RetryCount < 0 {
		errs = append(errs, errors.New("REQUEST_RETRY_COUNT must not be negative"))
	}
	return errors.Join(errs...)
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Render: RenderConfig{
			Timeout:         10 * time.Second,
			MaxIncludeDepth: 32,
			MaxCallStack:    1024,
			Delimiter:       "%",
			StaticPrefix:    "/static",
			Theme:           "default",
		},
		Request: RequestConfig{
			Timeout:        30 * time.Second,
			RetryWait:      time.Second,
			RetryMaxWait:   30 * time.Second,
			UserAgent:      "sandrender/1.0",
			BreakerEnabled: true,
		},
	}
}
