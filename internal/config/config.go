// Package config handles resolving configuration.
//
// Configuration is loaded with a layered approach: built-in defaults, then a
// YAML config file, then SWAPSHELF_-prefixed environment variable overrides,
// and finally validation.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the swapshelf server.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	LogLevel string         `yaml:"log_level"` // debug, info, warn, error
	DevMode  bool           `yaml:"dev_mode"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"` // default: localhost:3000
}

// DatabaseConfig holds PostgreSQL pool settings.
type DatabaseConfig struct {
	URL             string   `yaml:"url"` // required
	MaxConns        int32    `yaml:"max_conns"`
	MinConns        int32    `yaml:"min_conns"`
	MaxConnLifetime Duration `yaml:"max_conn_lifetime"`
	AcquireTimeout  Duration `yaml:"acquire_timeout"` // default: 5s
	MigrateOnStart  bool     `yaml:"migrate_on_start"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // default: /metrics
}

// Duration is a time.Duration that unmarshals from YAML strings like "30s".
type Duration time.Duration

// UnmarshalYAML satisfies [yaml.Unmarshaler].
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML satisfies [yaml.Marshaler] so written config files carry
// readable durations.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std converts to the standard library representation.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Defaults returns a config with all default values populated. It is not
// valid on its own; database.url must be provided.
func Defaults() Config {
	return Config{
		Server: ServerConfig{Address: "localhost:3000"},
		Database: DatabaseConfig{
			MaxConns:       10,
			AcquireTimeout: Duration(5 * time.Second),
			MigrateOnStart: true,
		},
		Metrics:  MetricsConfig{Enabled: true, Path: "/metrics"},
		LogLevel: "info",
	}
}

// Load reads the YAML file at path (if it exists), merges it over the
// defaults, applies environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	raw, err := os.ReadFile(path) //nolint:gosec // config path is operator-controlled
	switch {
	case errors.Is(err, os.ErrNotExist):
		// run on defaults plus environment
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err = yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file at %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SWAPSHELF_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("SWAPSHELF_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("SWAPSHELF_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SWAPSHELF_DEV_MODE"); v != "" {
		cfg.DevMode = v == "true" || v == "1"
	}
}

// Validate checks the config for completeness.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is not set")
	}
	if _, err := c.slogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel returns the configured log level. Unknown levels degrade to
// info; Validate rejects them up front.
func (c *Config) SlogLevel() slog.Level {
	lvl, err := c.slogLevel()
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func (c *Config) slogLevel() (slog.Level, error) {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
}
