// Package config loads prism-cache's TOML configuration file, applies
// PRISM_CACHE__-prefixed environment overrides, and validates the result.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/a-agmon/prism-cache/internal/util"
)

// ConfigError is returned by Load when the file or environment produces an
// invalid configuration; cmd/prism-cache maps it to exit code 1.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "configuration error: " + e.Reason }

// ProviderConfig is one entry of database.providers[].
type ProviderConfig struct {
	Name     string            `mapstructure:"name"`
	Provider string            `mapstructure:"provider"`
	Settings map[string]string `mapstructure:"settings"`
}

// DatabaseConfig is the database.* section.
type DatabaseConfig struct {
	Providers           []ProviderConfig `mapstructure:"providers"`
	HealthCheckInterval string           `mapstructure:"health_check_interval"`
}

// CacheConfig is the cache.* section.
type CacheConfig struct {
	MaxEntries     int `mapstructure:"max_entries"`
	TTLSeconds     int `mapstructure:"ttl_seconds"`
	RequestTimeout int `mapstructure:"request_timeout_seconds"`
}

// ServerConfig is the server.* section.
type ServerConfig struct {
	BindAddress     string `mapstructure:"bind_address"`
	ShutdownTimeout string `mapstructure:"shutdown_timeout"`
}

// LoggingConfig is the logging.* section.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Backend string `mapstructure:"backend"`
}

// Config is the fully decoded, defaulted, and validated configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// Load reads path (a TOML file) when path is non-empty, applies PRISM_CACHE__
// environment overrides, fills in defaults for anything left unset, and
// validates the required fields. path may be empty to load from
// environment and defaults alone.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, &ConfigError{Reason: fmt.Sprintf("reading %s: %v", path, err)}
		}
	}

	// viper joins prefix and key with one "_", so the trailing "_" here
	// yields variables such as PRISM_CACHE__CACHE__MAX_ENTRIES.
	v.SetEnvPrefix("PRISM_CACHE_")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()
	// Unmarshal only sees keys viper already knows about, so scalar keys are
	// bound explicitly for env overrides to apply without a config file.
	for _, key := range []string{
		"database.health_check_interval", "cache.max_entries", "cache.ttl_seconds",
		"cache.request_timeout_seconds", "server.bind_address", "server.shutdown_timeout",
		"logging.level", "logging.backend",
	} {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("decoding config: %v", err)}
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills unset fields with the values the original service
// shipped as its own struct defaults, so the service can boot without a
// config file for local development.
func applyDefaults(cfg *Config) {
	if len(cfg.Database.Providers) == 0 {
		cfg.Database.Providers = []ProviderConfig{{
			Name:     "users",
			Provider: "Mock",
			Settings: map[string]string{"sample_size": "1000"},
		}}
	}
	cfg.Database.HealthCheckInterval = util.Coalesce(cfg.Database.HealthCheckInterval, "@every 30s")
	cfg.Cache.MaxEntries = util.Coalesce(cfg.Cache.MaxEntries, 1000)
	cfg.Cache.TTLSeconds = util.Coalesce(cfg.Cache.TTLSeconds, 60)
	cfg.Cache.RequestTimeout = util.Coalesce(cfg.Cache.RequestTimeout, 5)
	cfg.Server.BindAddress = util.Coalesce(cfg.Server.BindAddress, "127.0.0.1:6379")
	cfg.Server.ShutdownTimeout = util.Coalesce(cfg.Server.ShutdownTimeout, "5s")
	cfg.Logging.Level = util.Coalesce(cfg.Logging.Level, "info")
	cfg.Logging.Backend = util.Coalesce(cfg.Logging.Backend, "zap")
}

func validate(cfg *Config) error {
	if cfg.Cache.MaxEntries <= 0 {
		return &ConfigError{Reason: "cache.max_entries must be positive"}
	}
	if cfg.Cache.TTLSeconds <= 0 {
		return &ConfigError{Reason: "cache.ttl_seconds must be positive"}
	}
	if cfg.Server.BindAddress == "" {
		return &ConfigError{Reason: "server.bind_address is required"}
	}
	seen := make(map[string]bool, len(cfg.Database.Providers))
	for _, p := range cfg.Database.Providers {
		if p.Name == "" {
			return &ConfigError{Reason: "every database provider needs a name"}
		}
		if seen[p.Name] {
			return &ConfigError{Reason: fmt.Sprintf("duplicate provider name %q", p.Name)}
		}
		seen[p.Name] = true
	}
	return nil
}

// TTL returns cache.ttl_seconds as a time.Duration.
func (c *Config) TTL() time.Duration { return time.Duration(c.Cache.TTLSeconds) * time.Second }

// RequestTimeout returns cache.request_timeout_seconds as a time.Duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Cache.RequestTimeout) * time.Second
}

// ShutdownTimeout parses server.shutdown_timeout, defaulting to 5s on a
// malformed value rather than failing startup over a cosmetic setting.
func (c *Config) ShutdownTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.ShutdownTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}
