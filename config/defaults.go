package config

import (
	"time"

	"github.com/contextgate/contextgate/adaptive"
	"github.com/contextgate/contextgate/reduction"
	"github.com/contextgate/contextgate/session"
)

// DefaultConfig returns a configuration that runs standalone: in-memory
// sessions, truncation reduction, adaptive summarization off.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        8080,
			MetricsPort:     9090,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimitBurst:  20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Session: SessionConfig{
			Backend:       "memory",
			TTL:           time.Hour,
			SweepInterval: session.DefaultSweepInterval,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		SQLite: SQLiteConfig{
			Path: "contextgate.db",
		},
		Provider: ProviderConfig{
			BaseURL: "https://api.openai.com",
			Timeout: 60 * time.Second,
		},
		Context: ContextConfig{
			MaxTurns:              20,
			MaxTokens:             4000,
			ReductionMode:         string(reduction.ModeTruncation),
			PreserveSystemMessage: true,
			MemoryZoneEnabled:     true,
			TokenEstimator:        "heuristic",
		},
		Adaptive: adaptive.DefaultConfig(),
		Telemetry: TelemetryConfig{
			Enabled:     false,
			ServiceName: "contextgate",
			SampleRate:  1.0,
		},
	}
}
