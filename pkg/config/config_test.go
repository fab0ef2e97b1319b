package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "remora.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
root: /srv/app
log:
  level: debug
  pretty: false
policy:
  include_globs:
    - "handlers/*.py"
  excluded_functions:
    - heartbeat
  ignore_system_paths: true
  cache_match_failures: true
sinks:
  log: true
  websocket_listen: "127.0.0.1:9000"
  duckdb_path: /var/lib/remora/trace.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/app", cfg.Root)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Log.Pretty)
	assert.Equal(t, []string{"handlers/*.py"}, cfg.Policy.IncludeGlobs)
	assert.Equal(t, []string{"heartbeat"}, cfg.Policy.ExcludedFunctions)
	assert.True(t, cfg.Policy.CacheMatchFailures)
	assert.Equal(t, "127.0.0.1:9000", cfg.Sinks.WebSocketListen)
	assert.Equal(t, "/var/lib/remora/trace.db", cfg.Sinks.DuckDBPath)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
root: /srv/app
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/app", cfg.Root)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Sinks.Log)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "root: [unterminated")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "empty root",
			mutate:  func(c *Config) { c.Root = "" },
			wantErr: "root",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: "log level",
		},
		{
			name:    "no sink enabled",
			mutate:  func(c *Config) { c.Sinks = SinksConfig{} },
			wantErr: "sink",
		},
		{
			name: "websocket sink alone suffices",
			mutate: func(c *Config) {
				c.Sinks = SinksConfig{WebSocketListen: "127.0.0.1:9000"}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
