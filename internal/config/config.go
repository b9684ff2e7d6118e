package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/marcelocantos/pipe/internal/logging"
	"github.com/marcelocantos/pipe/internal/pipeline"
)

// EnvPrefix prefixes every environment override. Keys follow the field
// path: PIPE_LOG_LEVEL, PIPE_TIMEOUT, PIPE_SEARCH_PATH, PIPE_AUDIT_ENABLED.
const EnvPrefix = "PIPE"

// Config holds the global pipe configuration.
type Config struct {
	Log        LogConfig        `yaml:"log" toml:"log"`
	Timeout    string           `yaml:"timeout" toml:"timeout"`
	KillGrace  string           `yaml:"kill_grace" toml:"kill_grace" split_words:"true"`
	SearchPath string           `yaml:"search_path" toml:"search_path" split_words:"true"`
	Classifier ClassifierConfig `yaml:"classifier" toml:"classifier"`
	Audit      AuditConfig      `yaml:"audit" toml:"audit"`
	Metrics    MetricsConfig    `yaml:"metrics" toml:"metrics"`
}

// LogConfig controls diagnostics on stderr.
type LogConfig struct {
	Level       string `yaml:"level" toml:"level"`
	Development bool   `yaml:"development" toml:"development"`
}

// ClassifierConfig controls stage segmentation.
type ClassifierConfig struct {
	// Script is an optional Starlark file defining is_command(token).
	Script string `yaml:"script" toml:"script"`
}

// AuditConfig controls the run audit log.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// MetricsConfig controls metrics export.
type MetricsConfig struct {
	// Textfile, when set, receives the run's metrics in Prometheus text
	// format after every run (node_exporter textfile collector).
	Textfile string `yaml:"textfile" toml:"textfile"`
}

// TimeoutDuration parses the configured timeout. Zero means no timeout.
func (c *Config) TimeoutDuration() (time.Duration, error) {
	return parseDuration("timeout", c.Timeout, 0)
}

// KillGraceDuration parses the configured kill grace or returns the default.
func (c *Config) KillGraceDuration() (time.Duration, error) {
	return parseDuration("kill_grace", c.KillGrace, pipeline.DefaultKillGrace)
}

func parseDuration(field, s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: negative duration %s", field, s)
	}
	return d, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Log: LogConfig{
			Level: logging.DefaultConfig().Level,
		},
		Audit: AuditConfig{
			Enabled: false,
			Path:    filepath.Join(home, ".local", "share", "pipe", "audit.jsonl"),
		},
	}
}

// ConfigPath returns the standard config file path.
func ConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "pipe", "config.yaml")
}

// Load reads the config from the standard location and applies
// environment overrides. If the file doesn't exist, the defaults are used.
func Load() (*Config, error) {
	cfg, err := LoadFrom(ConfigPath())
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom reads the config from the given path. Files ending in .toml
// are TOML; anything else is YAML.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.expandHome()
	return cfg, cfg.Validate()
}

// ApplyEnv overlays PIPE_* environment variables onto c.
func (c *Config) ApplyEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	c.expandHome()
	return c.Validate()
}

// Validate checks fields that are parsed lazily.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	if _, err := c.TimeoutDuration(); err != nil {
		return err
	}
	if _, err := c.KillGraceDuration(); err != nil {
		return err
	}
	return nil
}

func (c *Config) expandHome() {
	for _, p := range []*string{&c.Audit.Path, &c.Classifier.Script, &c.Metrics.Textfile} {
		if strings.HasPrefix(*p, "~/") {
			home, _ := os.UserHomeDir()
			*p = filepath.Join(home, (*p)[2:])
		}
	}
}
