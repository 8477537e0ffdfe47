// Package config handles YAML configuration loading with environment
// variable expansion and environment overrides.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"go.yaml.in/yaml/v3"
)

// Config is the top-level proxy configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Cache     CacheConfig     `yaml:"cache"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Client    ClientConfig    `yaml:"client"`
	Database  DatabaseConfig  `yaml:"database"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// UpstreamConfig holds upstream API settings.
type UpstreamConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`   // validated at startup, invalid = unauthenticated
	Timeout time.Duration `yaml:"timeout"` // bound on each upstream call
}

// CacheConfig holds response cache settings.
type CacheConfig struct {
	MaxSize int           `yaml:"max_size"`
	TTL     time.Duration `yaml:"ttl"`
}

// RateLimitConfig holds local mutation limiter settings.
type RateLimitConfig struct {
	Window        time.Duration `yaml:"window"`
	MaxMutations  int           `yaml:"max_mutations"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	SweepAge      time.Duration `yaml:"sweep_age"` // how long past window reset before a record is swept
}

// ClientConfig holds retry/backoff settings for the resilient client.
type ClientConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Timeout     time.Duration `yaml:"timeout"` // per-attempt bound
}

// DatabaseConfig holds SQLite settings for the collection store.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"` // file path or ":memory:"
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`    // OTLP gRPC endpoint
	SampleRate float64 `yaml:"sample_rate"` // 0.0 to 1.0
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv replaces ${VAR} patterns with environment variable values.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := string(match[2 : len(match)-1])
		if val, ok := os.LookupEnv(varName); ok {
			return []byte(val)
		}
		return match
	})
}

// defaults returns a Config populated with every default value.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8787",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Upstream: UpstreamConfig{
			BaseURL: "https://api.github.com",
			Timeout: 15 * time.Second,
		},
		Cache: CacheConfig{
			MaxSize: 100,
			TTL:     5 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Window:        60 * time.Second,
			MaxMutations:  10,
			SweepInterval: time.Minute,
			SweepAge:      10 * time.Minute,
		},
		Client: ClientConfig{
			MaxAttempts: 3,
			BaseDelay:   500 * time.Millisecond,
			MaxDelay:    10 * time.Second,
			Timeout:     10 * time.Second,
		},
		Database: DatabaseConfig{
			DSN: "hubfolio.db",
		},
	}
}

// Load reads and parses a YAML config file, expanding environment
// variables and applying PORT / GITHUB_TOKEN / CACHE_TTL overrides.
// A missing file is not an error: the proxy runs on defaults plus
// environment, matching a container-only deployment.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// defaults + env only
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(expandEnv(data), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv applies the well-known environment overrides.
func applyEnv(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Addr = ":" + port
	}
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		cfg.Upstream.Token = token
	}
	if ttl := os.Getenv("CACHE_TTL"); ttl != "" {
		if secs, err := strconv.Atoi(ttl); err == nil && secs > 0 {
			cfg.Cache.TTL = time.Duration(secs) * time.Second
		}
	}
}
