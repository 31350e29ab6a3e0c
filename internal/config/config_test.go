package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadCreatesSampleWhenMissing(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, GetSampleConfig(), string(data))

	assert.Equal(t, path, cfg.Path())
	assert.Equal(t, "sqlite", cfg.Backend)
	assert.Equal(t, DefaultPageSize, cfg.PageSize)
	assert.Equal(t, 5*time.Second, cfg.GetFetchTimeout())
	assert.Equal(t, 30*time.Second, cfg.GetBreakerCooldown())
	assert.Equal(t, 250*time.Millisecond, cfg.GetWatchDebounce())
	assert.Equal(t, 3, cfg.Breaker.Threshold)
	assert.True(t, cfg.Watch.Enabled)
	assert.Equal(t, filepath.Join(dir, "data", "myday", "myday.db"), cfg.SQLite.Path)
}

func TestLoadReadsFileValues(t *testing.T) {
	path := writeConfig(t, `
backend: mock
page_size: 25
fetch_timeout: 750ms
output_format: json
sqlite:
  path: /tmp/custom.db
logging:
  verbose: true
watch:
  enabled: false
breaker:
  threshold: 5
  cooldown: 1m
metrics:
  addr: 127.0.0.1:9464
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "mock", cfg.Backend)
	assert.Equal(t, 25, cfg.PageSize)
	assert.Equal(t, 750*time.Millisecond, cfg.GetFetchTimeout())
	assert.Equal(t, "json", cfg.OutputFormat)
	assert.Equal(t, "/tmp/custom.db", cfg.SQLite.Path)
	assert.True(t, cfg.Logging.Verbose)
	assert.False(t, cfg.Watch.Enabled)
	assert.Equal(t, 250, cfg.Watch.DebounceMs, "unset keys keep their default")
	assert.Equal(t, 5, cfg.Breaker.Threshold)
	assert.Equal(t, time.Minute, cfg.GetBreakerCooldown())
	assert.Equal(t, "127.0.0.1:9464", cfg.Metrics.Addr)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "page_size: 25\n")
	t.Setenv("MYDAY_PAGE_SIZE", "40")
	t.Setenv("MYDAY_SQLITE_PATH", "/tmp/env.db")
	t.Setenv("MYDAY_BREAKER_COOLDOWN", "2s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 40, cfg.PageSize)
	assert.Equal(t, "/tmp/env.db", cfg.SQLite.Path)
	assert.Equal(t, 2*time.Second, cfg.GetBreakerCooldown())
}

func TestLoadExpandsSQLitePath(t *testing.T) {
	t.Setenv("MYDAY_TEST_DIR", "/srv/myday")
	path := writeConfig(t, "sqlite:\n  path: $MYDAY_TEST_DIR/data.db\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/myday/data.db", cfg.SQLite.Path)
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	path := writeConfig(t, "backend: [sqlite\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid YAML")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"mock backend", func(c *Config) { c.Backend = "mock" }, ""},
		{"unknown backend", func(c *Config) { c.Backend = "nextcloud" }, "invalid backend"},
		{"zero page size", func(c *Config) { c.PageSize = 0 }, "invalid page_size"},
		{"huge page size", func(c *Config) { c.PageSize = MaxPageSize + 1 }, "invalid page_size"},
		{"bad output", func(c *Config) { c.OutputFormat = "xml" }, "invalid output_format"},
		{"bad timeout", func(c *Config) { c.FetchTimeout = "soon" }, "invalid fetch_timeout"},
		{"negative timeout", func(c *Config) { c.FetchTimeout = "-1s" }, "invalid fetch_timeout"},
		{"disabled timeout", func(c *Config) { c.FetchTimeout = "0" }, ""},
		{"bad cooldown", func(c *Config) { c.Breaker.Cooldown = "1 minute" }, "invalid breaker.cooldown"},
		{"negative threshold", func(c *Config) { c.Breaker.Threshold = -1 }, "invalid breaker.threshold"},
		{"negative debounce", func(c *Config) { c.Watch.DebounceMs = -5 }, "invalid watch.debounce_ms"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestApplyFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ApplyFlags(false, "", "")
	assert.False(t, cfg.Logging.Verbose)
	assert.Equal(t, "text", cfg.OutputFormat)
	assert.Equal(t, "sqlite", cfg.Backend)

	cfg.ApplyFlags(true, "json", "mock")
	assert.True(t, cfg.Logging.Verbose)
	assert.Equal(t, "json", cfg.OutputFormat)
	assert.Equal(t, "mock", cfg.Backend)
}

func TestYAMLUsesConfigKeys(t *testing.T) {
	cfg := DefaultConfig()
	out, err := cfg.YAML()
	require.NoError(t, err)

	for _, key := range []string{"backend: sqlite", "page_size: 10", "fetch_timeout: 5s", "debounce_ms: 250", "cooldown: 30s"} {
		assert.Contains(t, out, key)
	}
	assert.False(t, strings.Contains(out, "path: \"\""), "sqlite path is filled in")
}

func TestXDGDirs(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
	t.Setenv("XDG_DATA_HOME", "/xdg/data")
	assert.Equal(t, "/xdg/config/myday", GetConfigDir())
	assert.Equal(t, "/xdg/data/myday", GetDataDir())

	t.Setenv("XDG_CONFIG_HOME", "")
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "myday"), GetConfigDir())
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("MYDAY_EXPAND", "value")

	assert.Equal(t, "", ExpandPath(""))
	assert.Equal(t, filepath.Join(home, "a", "b"), ExpandPath("~/a/b"))
	assert.Equal(t, "/x/value/y", ExpandPath("/x/$MYDAY_EXPAND/y"))
	assert.Equal(t, "relative", ExpandPath("relative"))
}
