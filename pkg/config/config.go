// Package config loads and validates the session configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the remora.yaml session configuration.
type Config struct {
	// Root anchors the tracing session; only files under it are traced.
	Root   string       `yaml:"root"`
	Log    LogConfig    `yaml:"log"`
	Policy PolicyConfig `yaml:"policy"`
	Sinks  SinksConfig  `yaml:"sinks"`
}

// LogConfig controls diagnostic logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Pretty bool   `yaml:"pretty"` // console output instead of JSON
}

// PolicyConfig declares the session's matching rules.
type PolicyConfig struct {
	IncludeGlobs      []string `yaml:"include_globs,omitempty"`
	ExcludedFunctions []string `yaml:"excluded_functions,omitempty"`
	IgnoreSystemPaths bool     `yaml:"ignore_system_paths"`
	// CacheMatchFailures treats a failed path-match call as a permanent
	// exclusion instead of retrying the matcher on the next sighting.
	CacheMatchFailures bool `yaml:"cache_match_failures"`
}

// SinksConfig toggles the event consumers.
type SinksConfig struct {
	Log bool `yaml:"log"`
	// WebSocketListen enables the live stream sink on this address.
	WebSocketListen string `yaml:"websocket_listen,omitempty"`
	// DuckDBPath enables the recorder sink writing to this file.
	DuckDBPath string `yaml:"duckdb_path,omitempty"`
}

// Default returns a configuration tracing user code under the current
// directory with logging only.
func Default() *Config {
	return &Config{
		Root: ".",
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
		Policy: PolicyConfig{
			IgnoreSystemPaths: true,
		},
		Sinks: SinksConfig{
			Log: true,
		},
	}
}

// Load reads and validates a configuration file. A missing path returns
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("root must not be empty")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}

	if !c.Sinks.Log && c.Sinks.WebSocketListen == "" && c.Sinks.DuckDBPath == "" {
		return fmt.Errorf("at least one sink must be enabled")
	}
	return nil
}
