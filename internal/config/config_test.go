package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/zerr"
)

func env(vars map[string]string) func(string) string {
	return func(key string) string {
		return vars[key]
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "skyscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, DefaultUserAgent, cfg.UserAgent)
	assert.Equal(t, 5, cfg.MaxPerHost)
	assert.Equal(t, 100, cfg.PageSize)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 0, cfg.MaxRetries)
	assert.Equal(t, "https://constellation.microcosm.blue", cfg.ConstellationURL)
	assert.Equal(t, "https://plc.directory", cfg.PLCURL)
	assert.Empty(t, cfg.MetricsAddr)
	assert.Empty(t, cfg.RedisAddr)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := LoadWithEnv("", env(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
log_pretty: true
user_agent: scanner/2.0 (ops@example.com)
max_per_host: 3
page_size: 50
http_timeout: 10s
max_retries: 2
constellation_url: https://links.example.com
identity_ttl: 1h
metrics_addr: ":9090"
redis_addr: localhost:6379
`)

	cfg, err := LoadWithEnv(path, env(nil))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.LogPretty)
	assert.Equal(t, "scanner/2.0 (ops@example.com)", cfg.UserAgent)
	assert.Equal(t, 3, cfg.MaxPerHost)
	assert.Equal(t, 50, cfg.PageSize)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, "https://links.example.com", cfg.ConstellationURL)
	assert.Equal(t, time.Hour, cfg.IdentityTTL)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)

	// Keys absent from the file keep their defaults.
	assert.Equal(t, "https://plc.directory", cfg.PLCURL)
	assert.Equal(t, "skyscan", cfg.RedisKey)
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := LoadWithEnv(writeConfig(t, ""), env(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "max_per_host: 3\nlog_level: debug\n")

	cfg, err := LoadWithEnv(path, env(map[string]string{
		"SKYSCAN_MAX_PER_HOST": "8",
		"SKYSCAN_LOG_PRETTY":   "true",
		"SKYSCAN_IDENTITY_TTL": "90s",
		"SKYSCAN_REDIS_ADDR":   "redis:6379",
	}))
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.MaxPerHost)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.LogPretty)
	assert.Equal(t, 90*time.Second, cfg.IdentityTTL)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		vars        map[string]string
		missingFile bool
		errContains string
	}{
		{
			name:        "missing file",
			missingFile: true,
			errContains: "failed to read config file",
		},
		{
			name:        "malformed yaml",
			content:     "max_per_host: [",
			errContains: "failed to parse config file",
		},
		{
			name:        "unknown key",
			content:     "max_per_hots: 3\n",
			errContains: "failed to parse config file",
		},
		{
			name:        "wrong type",
			content:     "page_size: many\n",
			errContains: "failed to parse config file",
		},
		{
			name:        "bad int env",
			vars:        map[string]string{"SKYSCAN_PAGE_SIZE": "ten"},
			errContains: "invalid environment override",
		},
		{
			name:        "bad duration env",
			vars:        map[string]string{"SKYSCAN_HTTP_TIMEOUT": "soon"},
			errContains: "invalid environment override",
		},
		{
			name:        "bad bool env",
			vars:        map[string]string{"SKYSCAN_LOG_PRETTY": "sometimes"},
			errContains: "invalid environment override",
		},
		{
			name:        "invalid value",
			content:     "page_size: 500\n",
			errContains: "page_size must be between 1 and 100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := ""
			switch {
			case tt.missingFile:
				path = filepath.Join(t.TempDir(), "absent.yaml")
			case tt.content != "":
				path = writeConfig(t, tt.content)
			}

			_, err := LoadWithEnv(path, env(tt.vars))
			require.Error(t, err)
			require.ErrorContains(t, err, tt.errContains)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"log level", func(c *Config) { c.LogLevel = "verbose" }, "log_level"},
		{"user agent", func(c *Config) { c.UserAgent = "" }, "user_agent"},
		{"max per host", func(c *Config) { c.MaxPerHost = -1 }, "max_per_host"},
		{"page size zero", func(c *Config) { c.PageSize = 0 }, "page_size"},
		{"page size large", func(c *Config) { c.PageSize = 101 }, "page_size"},
		{"timeout", func(c *Config) { c.HTTPTimeout = 0 }, "http_timeout"},
		{"retries", func(c *Config) { c.MaxRetries = -2 }, "max_retries"},
		{"constellation", func(c *Config) { c.ConstellationURL = "" }, "constellation_url"},
		{"plc", func(c *Config) { c.PLCURL = "" }, "plc_url"},
		{"ttl", func(c *Config) { c.IdentityTTL = -time.Second }, "identity_ttl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.field)

			zErr, ok := err.(*zerr.Error)
			require.True(t, ok, "expected *zerr.Error, got %T", err)
			assert.Contains(t, zErr.Metadata(), tt.field)
		})
	}

	t.Run("zero max per host means default", func(t *testing.T) {
		cfg := Default()
		cfg.MaxPerHost = 0
		assert.NoError(t, cfg.Validate())
	})
}

func TestValidate_LogLevelNames(t *testing.T) {
	for _, level := range []string{"debug", "INFO", "warning", "error"} {
		cfg := Default()
		cfg.LogLevel = level
		assert.NoError(t, cfg.Validate(), level)
	}

	cfg := Default()
	cfg.LogLevel = "trace"
	assert.ErrorContains(t, cfg.Validate(), "unknown log level")
}
