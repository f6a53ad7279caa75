// Package config loads skyscan settings from a YAML file and SKYSCAN_*
// environment variables.
//
// Precedence, lowest first: Default, the YAML file, the environment. The
// CLI applies its flags on top.
package config

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strconv"
	"time"

	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"

	"github.com/Sternrassler/skyscan/pkg/atproto"
	"github.com/Sternrassler/skyscan/pkg/constellation"
	"github.com/Sternrassler/skyscan/pkg/identity"
	"github.com/Sternrassler/skyscan/pkg/logging"
	"github.com/Sternrassler/skyscan/pkg/ratelimit"
	"github.com/Sternrassler/skyscan/pkg/sink"
)

// DefaultUserAgent identifies skyscan to remote services.
const DefaultUserAgent = "skyscan/0.1.0"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SKYSCAN_"

var (
	// ErrConfigReadFailed is returned when the config file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when the config file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrInvalidEnv is returned when an environment override has the wrong type.
	ErrInvalidEnv = zerr.New("invalid environment override")

	// ErrInvalidConfig is returned when a setting is out of range.
	ErrInvalidConfig = zerr.New("invalid configuration")
)

// Config holds all skyscan settings.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogPretty bool   `yaml:"log_pretty"`

	UserAgent   string        `yaml:"user_agent"`
	MaxPerHost  int           `yaml:"max_per_host"`
	PageSize    int           `yaml:"page_size"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	MaxRetries  int           `yaml:"max_retries"`

	ConstellationURL string        `yaml:"constellation_url"`
	PLCURL           string        `yaml:"plc_url"`
	IdentityTTL      time.Duration `yaml:"identity_ttl"`

	MetricsAddr string `yaml:"metrics_addr"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisKey    string `yaml:"redis_key"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		LogLevel:         string(logging.LevelInfo),
		UserAgent:        DefaultUserAgent,
		MaxPerHost:       ratelimit.DefaultMaxPerHost,
		PageSize:         atproto.DefaultPageSize,
		HTTPTimeout:      30 * time.Second,
		ConstellationURL: constellation.DefaultURL,
		PLCURL:           identity.DefaultPLCURL,
		IdentityTTL:      identity.DefaultTTL,
		RedisKey:         sink.DefaultRedisKey,
	}
}

// Load reads path (if not empty) over the defaults, applies environment
// overrides from os.Getenv and validates the result.
func Load(path string) (Config, error) {
	return LoadWithEnv(path, os.Getenv)
}

// LoadWithEnv is Load with an explicit environment lookup.
func LoadWithEnv(path string, getenv func(string) string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, zerr.With(zerr.Wrap(err, ErrConfigReadFailed.Error()), "path", path)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, zerr.With(zerr.Wrap(err, ErrConfigParseFailed.Error()), "path", path)
		}
	}

	if err := cfg.ApplyEnv(getenv); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decode unmarshals data strictly: unknown keys are an error.
func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides settings from SKYSCAN_* variables. Empty variables
// are ignored.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	strs := map[string]*string{
		"LOG_LEVEL":         &c.LogLevel,
		"USER_AGENT":        &c.UserAgent,
		"CONSTELLATION_URL": &c.ConstellationURL,
		"PLC_URL":           &c.PLCURL,
		"METRICS_ADDR":      &c.MetricsAddr,
		"REDIS_ADDR":        &c.RedisAddr,
		"REDIS_KEY":         &c.RedisKey,
	}
	for name, dst := range strs {
		if v := getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"MAX_PER_HOST": &c.MaxPerHost,
		"PAGE_SIZE":    &c.PageSize,
		"MAX_RETRIES":  &c.MaxRetries,
	}
	for name, dst := range ints {
		v := getenv(EnvPrefix + name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return zerr.With(zerr.Wrap(err, ErrInvalidEnv.Error()), "variable", EnvPrefix+name)
		}
		*dst = n
	}

	durations := map[string]*time.Duration{
		"HTTP_TIMEOUT": &c.HTTPTimeout,
		"IDENTITY_TTL": &c.IdentityTTL,
	}
	for name, dst := range durations {
		v := getenv(EnvPrefix + name)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return zerr.With(zerr.Wrap(err, ErrInvalidEnv.Error()), "variable", EnvPrefix+name)
		}
		*dst = d
	}

	if v := getenv(EnvPrefix + "LOG_PRETTY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return zerr.With(zerr.Wrap(err, ErrInvalidEnv.Error()), "variable", EnvPrefix+"LOG_PRETTY")
		}
		c.LogPretty = b
	}

	return nil
}

// Validate checks every setting for range and presence.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return invalid("log_level", c.LogLevel, err.Error())
	}

	switch {
	case c.UserAgent == "":
		return invalid("user_agent", c.UserAgent, "is required")
	case c.MaxPerHost < 0:
		return invalid("max_per_host", c.MaxPerHost, "must be >= 0")
	case c.PageSize < 1 || c.PageSize > atproto.MaxPageSize:
		return invalid("page_size", c.PageSize, "must be between 1 and "+strconv.Itoa(atproto.MaxPageSize))
	case c.HTTPTimeout <= 0:
		return invalid("http_timeout", c.HTTPTimeout, "must be positive")
	case c.MaxRetries < 0:
		return invalid("max_retries", c.MaxRetries, "must be >= 0")
	case c.ConstellationURL == "":
		return invalid("constellation_url", c.ConstellationURL, "is required")
	case c.PLCURL == "":
		return invalid("plc_url", c.PLCURL, "is required")
	case c.IdentityTTL <= 0:
		return invalid("identity_ttl", c.IdentityTTL, "must be positive")
	}
	return nil
}

func invalid(field string, value any, reason string) error {
	err := zerr.Wrap(ErrInvalidConfig, field+" "+reason)
	return zerr.With(err, field, value)
}
