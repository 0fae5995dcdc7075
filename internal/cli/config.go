package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/apagea/internal/query"
)

// Config is the YAML configuration file. All fields are optional;
// flags override file values and file values override defaults.
type Config struct {
	// Database is the SQLite database path.
	Database string `yaml:"database"`

	Log   LogConfig   `yaml:"log"`
	Find  FindConfig  `yaml:"find"`
	Query QueryConfig `yaml:"query"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Style is one of pretty, text, json.
	Style string `yaml:"style"`
}

// FindConfig controls query result defaults.
type FindConfig struct {
	// DefaultLimit applies when a find or list command has no --limit.
	DefaultLimit int `yaml:"default_limit"`
}

// QueryConfig bounds accepted query expressions.
type QueryConfig struct {
	MaxDepth   int `yaml:"max_depth"`
	MaxBreadth int `yaml:"max_breadth"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	limits := query.DefaultLimits()
	return Config{
		Database: "apagea.db",
		Log:      LogConfig{Level: "info", Style: "pretty"},
		Find:     FindConfig{DefaultLimit: 10},
		Query:    QueryConfig{MaxDepth: limits.MaxDepth, MaxBreadth: limits.MaxBreadth},
	}
}

// LoadConfig reads the configuration file at path, falling back to
// defaults for anything unset. An empty path checks the default
// location and silently uses defaults when no file is there; an
// explicit path must exist.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = defaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	switch c.Log.Style {
	case "pretty", "text", "json":
	default:
		return fmt.Errorf("invalid log style %q", c.Log.Style)
	}
	if c.Find.DefaultLimit < 0 {
		return fmt.Errorf("find.default_limit must not be negative")
	}
	if c.Query.MaxDepth < 0 || c.Query.MaxBreadth < 0 {
		return fmt.Errorf("query limits must not be negative")
	}
	return nil
}

// Limits converts the configured query bounds.
func (c Config) Limits() query.Limits {
	return query.Limits{MaxDepth: c.Query.MaxDepth, MaxBreadth: c.Query.MaxBreadth}
}

func defaultConfigPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "apagea", "config.yaml")
	}
	return "apagea.yaml"
}
