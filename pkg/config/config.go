// Package config loads providerdesk settings from defaults, an optional
// file, a secrets file, environment variables and command line flags.
package config

import "time"

// Cache backends for query snapshots.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// Config is the root configuration.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Media   MediaConfig   `mapstructure:"media"`
	Cache   CacheConfig   `mapstructure:"cache"`
	View    ViewConfig    `mapstructure:"view"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing"`
	Sandbox SandboxConfig `mapstructure:"sandbox"`
	Locale  string        `mapstructure:"locale"`
}

// APIConfig configures the data service client.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Scope   string        `mapstructure:"scope"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is requests per second; zero disables the limiter.
	RateLimit       float64       `mapstructure:"rate_limit"`
	Burst           int           `mapstructure:"burst"`
	BreakerFailures int           `mapstructure:"breaker_failures"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown"`
	// MutationTimeout bounds a dispatched create, update or delete.
	MutationTimeout time.Duration `mapstructure:"mutation_timeout"`
}

// MediaConfig configures image URL resolution.
type MediaConfig struct {
	BaseURL string `mapstructure:"base_url"`
	// ImageRetries is how many load failures an image gets before the
	// placeholder is shown.
	ImageRetries int `mapstructure:"image_retries"`
}

// CacheConfig configures where query snapshots are kept between runs.
type CacheConfig struct {
	Backend  string        `mapstructure:"backend"`
	RedisURL string        `mapstructure:"redis_url"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// ViewConfig configures list screens.
type ViewConfig struct {
	PageSize int `mapstructure:"page_size"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	ServiceName string  `mapstructure:"service_name"`
	Environment string  `mapstructure:"environment"`
}

// SandboxConfig configures the local data service.
type SandboxConfig struct {
	Addr           string `mapstructure:"addr"`
	DBPath         string `mapstructure:"db_path"`
	Token          string `mapstructure:"token"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:         "http://localhost:8085",
			Scope:           "provider",
			Timeout:         15 * time.Second,
			RateLimit:       10,
			Burst:           20,
			BreakerFailures: 5,
			BreakerCooldown: 30 * time.Second,
			MutationTimeout: 30 * time.Second,
		},
		Media: MediaConfig{
			BaseURL:      "http://localhost:8085",
			ImageRetries: 1,
		},
		Cache: CacheConfig{
			Backend: CacheBackendMemory,
			Prefix:  "providerdesk",
			TTL:     10 * time.Minute,
		},
		View: ViewConfig{PageSize: 10},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{Addr: ":9464"},
		Tracing: TracingConfig{
			SampleRate:  1.0,
			ServiceName: "providerdesk",
			Environment: "development",
		},
		Sandbox: SandboxConfig{
			Addr:           ":8085",
			DBPath:         "providerdesk-sandbox.db",
			MaxUploadBytes: 32 << 20,
		},
		Locale: "en",
	}
}
