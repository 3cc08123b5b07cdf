// Package config loads the process configuration from defaults, an
// optional YAML file, and environment variable overrides, in that order.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("CONTEXTGATE").
//	    Load()
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/contextgate/contextgate/adaptive"
	"github.com/contextgate/contextgate/reduction"
)

// Config is the complete process configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" env:"SERVER"`
	Log       LogConfig       `yaml:"log" env:"LOG"`
	Session   SessionConfig   `yaml:"session" env:"SESSION"`
	Redis     RedisConfig     `yaml:"redis" env:"REDIS"`
	SQLite    SQLiteConfig    `yaml:"sqlite" env:"SQLITE"`
	Provider  ProviderConfig  `yaml:"provider" env:"PROVIDER"`
	Context   ContextConfig   `yaml:"context" env:"CONTEXT"`
	// ModelRoutes overrides context budgets per model-name prefix. The
	// longest matching prefix wins; unset route fields inherit Context.
	ModelRoutes map[string]ContextConfig `yaml:"model_routes" env:"-"`
	Adaptive    adaptive.Config          `yaml:"adaptive" env:"-"`
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" env:"HTTP_PORT"`
	MetricsPort     int           `yaml:"metrics_port" env:"METRICS_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// CORSAllowedOrigins lists origins allowed to call the API from a
	// browser; empty means cross-origin requests are refused.
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
	// RateLimitRPS throttles inbound requests per client IP; zero
	// disables the limiter.
	RateLimitRPS   float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
}

type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format is json or console.
	Format       string `yaml:"format" env:"FORMAT"`
	EnableCaller bool   `yaml:"enable_caller" env:"ENABLE_CALLER"`
}

type SessionConfig struct {
	// Backend is one of memory, redis, sqlite.
	Backend       string        `yaml:"backend" env:"BACKEND"`
	TTL           time.Duration `yaml:"ttl" env:"TTL"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL"`
}

type RedisConfig struct {
	Addr         string `yaml:"addr" env:"ADDR"`
	Password     string `yaml:"password" env:"PASSWORD"`
	DB           int    `yaml:"db" env:"DB"`
	PoolSize     int    `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

type SQLiteConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

type ProviderConfig struct {
	BaseURL           string        `yaml:"base_url" env:"BASE_URL"`
	APIKey            string        `yaml:"api_key" env:"API_KEY"`
	Timeout           time.Duration `yaml:"timeout" env:"TIMEOUT"`
	SummaryModel      string        `yaml:"summary_model" env:"SUMMARY_MODEL"`
	RequestsPerSecond float64       `yaml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
	Burst             int           `yaml:"burst" env:"BURST"`
}

// ContextConfig holds the per-route reduction defaults.
type ContextConfig struct {
	MaxTurns  int `yaml:"max_turns" env:"MAX_TURNS"`
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
	// ReductionMode is one of truncation, sliding_window, summarization,
	// adaptive_summarization.
	ReductionMode         string `yaml:"reduction_mode" env:"REDUCTION_MODE"`
	SummarizationModel    string `yaml:"summarization_model" env:"SUMMARIZATION_MODEL"`
	PreserveSystemMessage bool   `yaml:"preserve_system_message" env:"PRESERVE_SYSTEM_MESSAGE"`
	MemoryZoneEnabled     bool   `yaml:"memory_zone_enabled" env:"MEMORY_ZONE_ENABLED"`
	// TokenEstimator is heuristic or tiktoken.
	TokenEstimator string `yaml:"token_estimator" env:"TOKEN_ESTIMATOR"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// Validate checks field ranges and enum values.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		errs = append(errs, "invalid metrics port")
	}

	switch c.Session.Backend {
	case "memory", "redis", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("unknown session backend %q", c.Session.Backend))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, "session ttl must be positive")
	}

	if c.Context.MaxTurns <= 0 {
		errs = append(errs, "max_turns must be positive")
	}
	if c.Context.MaxTokens <= 0 {
		errs = append(errs, "max_tokens must be positive")
	}
	if !reduction.Mode(c.Context.ReductionMode).Valid() {
		errs = append(errs, fmt.Sprintf("unknown reduction mode %q", c.Context.ReductionMode))
	}
	switch c.Context.TokenEstimator {
	case "heuristic", "tiktoken":
	default:
		errs = append(errs, fmt.Sprintf("unknown token estimator %q", c.Context.TokenEstimator))
	}

	for prefix, route := range c.ModelRoutes {
		if prefix == "" {
			errs = append(errs, "model route prefix cannot be empty")
		}
		if route.ReductionMode != "" && !reduction.Mode(route.ReductionMode).Valid() {
			errs = append(errs, fmt.Sprintf("model route %q: unknown reduction mode %q", prefix, route.ReductionMode))
		}
		switch route.TokenEstimator {
		case "", "heuristic", "tiktoken":
		default:
			errs = append(errs, fmt.Sprintf("model route %q: unknown token estimator %q", prefix, route.TokenEstimator))
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("unknown log level %q", c.Log.Level))
	}

	if err := c.Adaptive.Validate(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
