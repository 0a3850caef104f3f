package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/spf13/pflag"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Scope != "provider" {
		t.Errorf("expected api scope provider, got %s", cfg.API.Scope)
	}
	if cfg.API.MutationTimeout != 30*time.Second {
		t.Errorf("expected mutation timeout 30s, got %v", cfg.API.MutationTimeout)
	}
	if cfg.View.PageSize != 10 {
		t.Errorf("expected page size 10, got %d", cfg.View.PageSize)
	}
	if cfg.Cache.Backend != CacheBackendMemory {
		t.Errorf("expected memory cache backend, got %s", cfg.Cache.Backend)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults must validate, got: %v", err)
	}
}

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader("", "").Load()
	if err != nil {
		t.Fatalf("expected no error loading defaults, got: %v", err)
	}
	if cfg.Locale != "en" {
		t.Errorf("expected locale en, got %s", cfg.Locale)
	}
	if cfg.API.BreakerCooldown != 30*time.Second {
		t.Errorf("expected breaker cooldown 30s, got %v", cfg.API.BreakerCooldown)
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoader_FileThenSecretsThenEnv(t *testing.T) {
	dir := t.TempDir()
	configFile := writeFile(t, dir, "config.yaml", `
api:
  base_url: https://api.example.com
  scope: partner
  timeout: 5s
view:
  page_size: 25
`)
	writeFile(t, dir, "secrets.yaml", `
api:
  token: from-secrets
sandbox:
  token: sandbox-secret
`)
	t.Setenv("PROVIDERDESK_API_SCOPE", "env-scope")

	cfg, err := NewLoader(configFile, "").Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.BaseURL != "https://api.example.com" {
		t.Errorf("base_url = %s", cfg.API.BaseURL)
	}
	if cfg.API.Scope != "env-scope" {
		t.Errorf("env must override file, scope = %s", cfg.API.Scope)
	}
	if cfg.API.Timeout != 5*time.Second {
		t.Errorf("timeout = %v", cfg.API.Timeout)
	}
	if cfg.API.Token != "from-secrets" || cfg.Sandbox.Token != "sandbox-secret" {
		t.Errorf("secrets not merged: api=%q sandbox=%q", cfg.API.Token, cfg.Sandbox.Token)
	}
	if cfg.View.PageSize != 25 {
		t.Errorf("page_size = %d", cfg.View.PageSize)
	}
}

func TestLoader_ExplicitSecretsFile(t *testing.T) {
	dir := t.TempDir()
	secrets := writeFile(t, dir, "tokens.yaml", "api:\n  token: explicit\n")
	t.Setenv("PROVIDERDESK_SECRETS_FILE", secrets)

	cfg, err := NewLoader("", "").Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.Token != "explicit" {
		t.Errorf("token = %q", cfg.API.Token)
	}

	t.Setenv("PROVIDERDESK_SECRETS_FILE", dir)
	if _, err := NewLoader("", "").Load(); err == nil || !strings.Contains(err.Error(), "directory") {
		t.Fatalf("expected directory error, got %v", err)
	}
}

func TestLoader_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("PROVIDERDESK_API_BASE_URL", "https://env.example.com")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("api-url", "", "")
	flags.Int("page-size", 0, "")
	if err := flags.Parse([]string{"--api-url", "https://flag.example.com"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	cfg, err := NewLoader("", "").WithFlags(flags, map[string]string{
		"api-url":   "api.base_url",
		"page-size": "view.page_size",
	}).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.BaseURL != "https://flag.example.com" {
		t.Errorf("base_url = %s", cfg.API.BaseURL)
	}
	if cfg.View.PageSize != 10 {
		t.Errorf("unset flag must not override default, page_size = %d", cfg.View.PageSize)
	}
}

func TestLoader_MissingFile(t *testing.T) {
	if _, err := NewLoader(filepath.Join(t.TempDir(), "nope.yaml"), "").Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate_CollectsEveryError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.API.BaseURL = "ftp://example.com"
	cfg.Cache.Backend = CacheBackendRedis
	cfg.View.PageSize = 0
	cfg.Log.Level = "loud"
	cfg.Tracing.Enabled = true
	cfg.Tracing.Endpoint = ""

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{
		"api.base_url",
		"cache.redis_url",
		"view.page_size",
		"log.level",
		"tracing.endpoint",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestValidate_Rules(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown cache backend", func(c *Config) { c.Cache.Backend = "memcached" }, "cache.backend"},
		{"burst without limit is fine", func(c *Config) { c.API.RateLimit = 0; c.API.Burst = 0 }, ""},
		{"limit needs burst", func(c *Config) { c.API.Burst = 0 }, "api.burst"},
		{"breaker needs cooldown", func(c *Config) { c.API.BreakerCooldown = 0 }, "api.breaker_cooldown"},
		{"metrics need addr", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Addr = "" }, "metrics.addr"},
		{"bad media url", func(c *Config) { c.Media.BaseURL = "cdn" }, "media.base_url"},
		{"json logs", func(c *Config) { c.Log.Format = "json" }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestRedacted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.API.Token = "secret"
	cfg.Cache.RedisURL = "redis://user:pw@localhost:6379/0"

	r := cfg.Redacted()
	if r.API.Token != "***" {
		t.Errorf("token not masked: %q", r.API.Token)
	}
	if strings.Contains(r.Cache.RedisURL, "pw") {
		t.Errorf("redis password not masked: %s", r.Cache.RedisURL)
	}
	if cfg.API.Token != "secret" {
		t.Error("Redacted must not modify the receiver")
	}
}

// Property: any page size below one is rejected and any positive one
// accepted.
func TestProperty_PageSizeValidation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("page size validity", prop.ForAll(
		func(size int) bool {
			cfg := DefaultConfig()
			cfg.View.PageSize = size
			err := Validate(cfg)
			if size < 1 {
				return err != nil
			}
			return err == nil
		},
		gen.IntRange(-100, 100),
	))

	properties.TestingRun(t)
}
