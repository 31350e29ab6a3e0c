// Package config handles application configuration
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

//go:embed config.sample.yaml
var sampleConfig string

// GetSampleConfig returns the embedded sample configuration content
func GetSampleConfig() string {
	return sampleConfig
}

// EnvPrefix prefixes environment overrides, e.g. MYDAY_PAGE_SIZE.
const EnvPrefix = "MYDAY"

// Page size limits
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Config represents the application configuration
type Config struct {
	Backend      string        `yaml:"backend"`
	SQLite       SQLiteConfig  `yaml:"sqlite"`
	PageSize     int           `yaml:"page_size"`
	FetchTimeout string        `yaml:"fetch_timeout"` // e.g. "5s"; "0" disables
	OutputFormat string        `yaml:"output_format"`
	Logging      LoggingConfig `yaml:"logging"`
	Watch        WatchConfig   `yaml:"watch"`
	Breaker      BreakerConfig `yaml:"breaker"`
	Metrics      MetricsConfig `yaml:"metrics"`

	path string
}

// SQLiteConfig holds SQLite store configuration
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Verbose           bool `yaml:"verbose"`
	BackgroundEnabled bool `yaml:"background_enabled"`
}

// WatchConfig holds file watcher settings
type WatchConfig struct {
	Enabled    bool `yaml:"enabled"`
	DebounceMs int  `yaml:"debounce_ms"`
}

// BreakerConfig holds circuit breaker settings for fetches
type BreakerConfig struct {
	Threshold int    `yaml:"threshold"`
	Cooldown  string `yaml:"cooldown"`
}

// MetricsConfig holds the Prometheus endpoint settings
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// defaults are applied under the file and environment
var defaults = map[string]any{
	"backend":                    "sqlite",
	"sqlite.path":                "",
	"page_size":                  DefaultPageSize,
	"fetch_timeout":              "5s",
	"output_format":              "text",
	"logging.verbose":            false,
	"logging.background_enabled": false,
	"watch.enabled":              true,
	"watch.debounce_ms":          250,
	"breaker.threshold":          3,
	"breaker.cooldown":           "30s",
	"metrics.addr":               "",
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		panic(fmt.Sprintf("config: defaults do not decode: %v", err))
	}
	cfg.SQLite.Path = filepath.Join(GetDataDir(), "myday.db")
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
	})
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Load loads configuration from the specified path, or the default XDG path if empty.
// If the config file doesn't exist, it is created from the sample config.
// Environment variables with the MYDAY_ prefix override file values.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = filepath.Join(GetConfigDir(), "config.yaml")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := writeSample(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	v := newViper()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("invalid YAML in config file: %w", err)
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	cfg.path = configPath

	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = filepath.Join(GetDataDir(), "myday.db")
	}
	cfg.SQLite.Path = ExpandPath(cfg.SQLite.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// writeSample writes the embedded sample config, which carries the documentation comments
func writeSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Path returns the file the config was loaded from.
func (c *Config) Path() string {
	return c.path
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Backend {
	case "sqlite", "mock":
	default:
		return fmt.Errorf("invalid backend %q: must be 'sqlite' or 'mock'", c.Backend)
	}
	if c.PageSize < 1 || c.PageSize > MaxPageSize {
		return fmt.Errorf("invalid page_size %d: must be between 1 and %d", c.PageSize, MaxPageSize)
	}
	if c.OutputFormat != "text" && c.OutputFormat != "json" {
		return fmt.Errorf("invalid output_format %q: must be 'text' or 'json'", c.OutputFormat)
	}
	if _, err := parseDuration("fetch_timeout", c.FetchTimeout); err != nil {
		return err
	}
	if _, err := parseDuration("breaker.cooldown", c.Breaker.Cooldown); err != nil {
		return err
	}
	if c.Breaker.Threshold < 0 {
		return fmt.Errorf("invalid breaker.threshold %d: must not be negative", c.Breaker.Threshold)
	}
	if c.Watch.DebounceMs < 0 {
		return fmt.Errorf("invalid watch.debounce_ms %d: must not be negative", c.Watch.DebounceMs)
	}
	return nil
}

func parseDuration(key, value string) (time.Duration, error) {
	if value == "" || value == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s %q: use a duration like 5s or 500ms", key, value)
	}
	return d, nil
}

// GetFetchTimeout returns the fetch deadline (0 = none).
func (c *Config) GetFetchTimeout() time.Duration {
	d, _ := parseDuration("fetch_timeout", c.FetchTimeout)
	return d
}

// GetBreakerCooldown returns the breaker cooldown.
func (c *Config) GetBreakerCooldown() time.Duration {
	d, _ := parseDuration("breaker.cooldown", c.Breaker.Cooldown)
	return d
}

// GetWatchDebounce returns the watcher debounce window.
func (c *Config) GetWatchDebounce() time.Duration {
	return time.Duration(c.Watch.DebounceMs) * time.Millisecond
}

// ApplyFlags overrides config values with command line flags.
func (c *Config) ApplyFlags(verbose bool, outputFormat, backend string) {
	if verbose {
		c.Logging.Verbose = true
	}
	if outputFormat != "" {
		c.OutputFormat = outputFormat
	}
	if backend != "" {
		c.Backend = backend
	}
}

// YAML returns the effective configuration as YAML.
func (c *Config) YAML() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// getXDGDir returns a directory path following XDG spec.
// envVar is the XDG environment variable (e.g., "XDG_CONFIG_HOME").
// fallbackPath is relative to the home directory.
func getXDGDir(envVar, fallbackPath string) string {
	if xdgDir := os.Getenv(envVar); xdgDir != "" {
		return filepath.Join(xdgDir, "myday")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", fallbackPath, "myday")
	}
	return filepath.Join(home, fallbackPath, "myday")
}

// GetConfigDir returns the configuration directory following XDG spec
func GetConfigDir() string {
	return getXDGDir("XDG_CONFIG_HOME", ".config")
}

// GetDataDir returns the data directory following XDG spec
func GetDataDir() string {
	return getXDGDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// ExpandPath expands ~ and environment variables in a path
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	return os.ExpandEnv(path)
}
