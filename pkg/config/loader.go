package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the default environment variable prefix.
const EnvPrefix = "PROVIDERDESK"

// keys lists every setting. Each one is bound to <PREFIX>_<KEY> with dots
// replaced by underscores, e.g. PROVIDERDESK_API_BASE_URL.
var keys = []string{
	"api.base_url",
	"api.scope",
	"api.token",
	"api.timeout",
	"api.rate_limit",
	"api.burst",
	"api.breaker_failures",
	"api.breaker_cooldown",
	"api.mutation_timeout",
	"media.base_url",
	"media.image_retries",
	"cache.backend",
	"cache.redis_url",
	"cache.prefix",
	"cache.ttl",
	"view.page_size",
	"log.level",
	"log.format",
	"metrics.enabled",
	"metrics.addr",
	"tracing.enabled",
	"tracing.endpoint",
	"tracing.sample_rate",
	"tracing.service_name",
	"tracing.environment",
	"sandbox.addr",
	"sandbox.db_path",
	"sandbox.token",
	"sandbox.max_upload_bytes",
	"locale",
}

// Loader loads configuration with precedence: flags > env > secrets file >
// config file > defaults.
type Loader struct {
	configFile string
	envPrefix  string
	flags      *pflag.FlagSet
	flagKeys   map[string]string
}

// NewLoader creates a Loader. configFile is optional; an empty envPrefix
// means EnvPrefix.
func NewLoader(configFile, envPrefix string) *Loader {
	if strings.TrimSpace(envPrefix) == "" {
		envPrefix = EnvPrefix
	}
	return &Loader{configFile: strings.TrimSpace(configFile), envPrefix: envPrefix}
}

// WithFlags binds command line flags to settings. bindings maps a flag
// name to a setting key such as "api.base_url". Only flags the user set
// take effect.
func (l *Loader) WithFlags(flags *pflag.FlagSet, bindings map[string]string) *Loader {
	l.flags = flags
	l.flagKeys = bindings
	return l
}

// ConfigFile returns the config file path, or "" when none was given.
func (l *Loader) ConfigFile() string { return l.configFile }

// Load reads and validates the configuration.
func (l *Loader) Load() (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", l.configFile, err)
		}
	}

	secretsFile, err := l.discoverSecretsFile()
	if err != nil {
		return nil, err
	}
	if secretsFile != "" {
		sv := viper.New()
		sv.SetConfigFile(secretsFile)
		if err := sv.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read secrets file %s: %w", secretsFile, err)
		}
		if err := v.MergeConfigMap(sv.AllSettings()); err != nil {
			return nil, fmt.Errorf("failed to merge secrets: %w", err)
		}
	}

	for _, key := range keys {
		if err := v.BindEnv(key, l.envName(key)); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	if err := l.bindFlags(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (l *Loader) bindFlags(v *viper.Viper) error {
	if l.flags == nil {
		return nil
	}
	for name, key := range l.flagKeys {
		flag := l.flags.Lookup(name)
		if flag == nil {
			return fmt.Errorf("flag --%s bound to %s does not exist", name, key)
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag --%s: %w", name, err)
		}
	}
	return nil
}

func (l *Loader) envName(key string) string {
	return strings.ToUpper(l.envPrefix + "_" + strings.ReplaceAll(key, ".", "_"))
}

// discoverSecretsFile returns, in order: <PREFIX>_SECRETS_FILE, a
// secrets.<ext> next to the config file, or "".
func (l *Loader) discoverSecretsFile() (string, error) {
	envName := l.envName("secrets_file")
	if raw, ok := os.LookupEnv(envName); ok {
		path := strings.TrimSpace(raw)
		if path == "" {
			return "", fmt.Errorf("%s is set but empty", envName)
		}
		info, err := os.Stat(path)
		if err != nil {
			return "", fmt.Errorf("%s points to an inaccessible file %s: %w", envName, path, err)
		}
		if info.IsDir() {
			return "", fmt.Errorf("%s must point to a file, got directory %s", envName, path)
		}
		return path, nil
	}
	if l.configFile != "" {
		path := filepath.Join(filepath.Dir(l.configFile), "secrets"+filepath.Ext(l.configFile))
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("api.base_url", cfg.API.BaseURL)
	v.SetDefault("api.scope", cfg.API.Scope)
	v.SetDefault("api.token", cfg.API.Token)
	v.SetDefault("api.timeout", cfg.API.Timeout)
	v.SetDefault("api.rate_limit", cfg.API.RateLimit)
	v.SetDefault("api.burst", cfg.API.Burst)
	v.SetDefault("api.breaker_failures", cfg.API.BreakerFailures)
	v.SetDefault("api.breaker_cooldown", cfg.API.BreakerCooldown)
	v.SetDefault("api.mutation_timeout", cfg.API.MutationTimeout)

	v.SetDefault("media.base_url", cfg.Media.BaseURL)
	v.SetDefault("media.image_retries", cfg.Media.ImageRetries)

	v.SetDefault("cache.backend", cfg.Cache.Backend)
	v.SetDefault("cache.redis_url", cfg.Cache.RedisURL)
	v.SetDefault("cache.prefix", cfg.Cache.Prefix)
	v.SetDefault("cache.ttl", cfg.Cache.TTL)

	v.SetDefault("view.page_size", cfg.View.PageSize)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.addr", cfg.Metrics.Addr)

	v.SetDefault("tracing.enabled", cfg.Tracing.Enabled)
	v.SetDefault("tracing.endpoint", cfg.Tracing.Endpoint)
	v.SetDefault("tracing.sample_rate", cfg.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", cfg.Tracing.ServiceName)
	v.SetDefault("tracing.environment", cfg.Tracing.Environment)

	v.SetDefault("sandbox.addr", cfg.Sandbox.Addr)
	v.SetDefault("sandbox.db_path", cfg.Sandbox.DBPath)
	v.SetDefault("sandbox.token", cfg.Sandbox.Token)
	v.SetDefault("sandbox.max_upload_bytes", cfg.Sandbox.MaxUploadBytes)

	v.SetDefault("locale", cfg.Locale)
}

// Validate checks cfg and reports every problem at once.
func Validate(cfg *Config) error {
	var errs []error

	if err := validateURL("api.base_url", cfg.API.BaseURL); err != nil {
		errs = append(errs, err)
	}
	if cfg.API.Timeout < 0 {
		errs = append(errs, errors.New("api.timeout must not be negative"))
	}
	if cfg.API.MutationTimeout <= 0 {
		errs = append(errs, errors.New("api.mutation_timeout must be positive"))
	}
	if cfg.API.RateLimit < 0 {
		errs = append(errs, errors.New("api.rate_limit must not be negative"))
	}
	if cfg.API.RateLimit > 0 && cfg.API.Burst < 1 {
		errs = append(errs, errors.New("api.burst must be at least 1 when api.rate_limit is set"))
	}
	if cfg.API.BreakerFailures < 0 {
		errs = append(errs, errors.New("api.breaker_failures must not be negative"))
	}
	if cfg.API.BreakerFailures > 0 && cfg.API.BreakerCooldown <= 0 {
		errs = append(errs, errors.New("api.breaker_cooldown must be positive when the breaker is enabled"))
	}

	if cfg.Media.BaseURL != "" {
		if err := validateURL("media.base_url", cfg.Media.BaseURL); err != nil {
			errs = append(errs, err)
		}
	}
	if cfg.Media.ImageRetries < 0 {
		errs = append(errs, errors.New("media.image_retries must not be negative"))
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Cache.Backend)) {
	case CacheBackendMemory:
	case CacheBackendRedis:
		if strings.TrimSpace(cfg.Cache.RedisURL) == "" {
			errs = append(errs, errors.New("cache.redis_url is required when cache.backend is redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid cache.backend: %q (must be one of: memory, redis)", cfg.Cache.Backend))
	}
	if cfg.Cache.TTL < 0 {
		errs = append(errs, errors.New("cache.ttl must not be negative"))
	}

	if cfg.View.PageSize < 1 {
		errs = append(errs, errors.New("view.page_size must be at least 1"))
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log.level: %q (must be one of: debug, info, warn, error)", cfg.Log.Level))
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("invalid log.format: %q (must be one of: json, text)", cfg.Log.Format))
	}

	if cfg.Metrics.Enabled && strings.TrimSpace(cfg.Metrics.Addr) == "" {
		errs = append(errs, errors.New("metrics.addr is required when metrics are enabled"))
	}

	if cfg.Tracing.Enabled {
		if strings.TrimSpace(cfg.Tracing.Endpoint) == "" {
			errs = append(errs, errors.New("tracing.endpoint is required when tracing is enabled"))
		}
		if strings.TrimSpace(cfg.Tracing.ServiceName) == "" {
			errs = append(errs, errors.New("tracing.service_name is required when tracing is enabled"))
		}
	}
	if cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample_rate must be between 0 and 1, got %v", cfg.Tracing.SampleRate))
	}

	if cfg.Sandbox.MaxUploadBytes < 0 {
		errs = append(errs, errors.New("sandbox.max_upload_bytes must not be negative"))
	}

	if strings.TrimSpace(cfg.Locale) == "" {
		errs = append(errs, errors.New("locale is required"))
	}

	return errors.Join(errs...)
}

func validateURL(key, raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%s must be an absolute http(s) url, got %q", key, raw)
	}
	return nil
}

// Redacted returns a copy of cfg with tokens masked, for display.
func (c *Config) Redacted() Config {
	out := *c
	if out.API.Token != "" {
		out.API.Token = "***"
	}
	if out.Sandbox.Token != "" {
		out.Sandbox.Token = "***"
	}
	if out.Cache.RedisURL != "" {
		if u, err := url.Parse(out.Cache.RedisURL); err == nil && u.User != nil {
			if _, hasPassword := u.User.Password(); hasPassword {
				u.User = url.UserPassword(u.User.Username(), "***")
				out.Cache.RedisURL = u.String()
			}
		}
	}
	return out
}
