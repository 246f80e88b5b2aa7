// Package config loads the history browser settings file.
package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chris/hbrowse/internal/filter"
	"github.com/chris/hbrowse/internal/history"
	"github.com/chris/hbrowse/internal/normalize"
)

// DefaultIgnoredCommandPattern matches the tools that need a live display or
// an interactive import dialog and so are never re-run automatically
const DefaultIgnoredCommandPattern = `^d\..*|^r[3]?\.mapcalc$|^i.group$|^r.import$|^r.external$|^r.external.out$|^v.import$|^v.external$|^v.external.out$`

// Config is the top-level configuration document
type Config struct {
	Database              string            `yaml:"database"`
	Mapset                string            `yaml:"mapset"`
	IgnoredCommandPattern string            `yaml:"ignoredCommandPattern"`
	SearchField           string            `yaml:"searchField"`
	GroupBy               string            `yaml:"groupBy"`
	SpecialFlags          map[string]string `yaml:"specialFlags"`
}

// UnmarshalYAML distinguishes an absent ignored pattern (use the default) from
// an empty one (ignore nothing) and accepts the legacy ignoredCmdPattern key.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	type rawConfig struct {
		Database              string            `yaml:"database"`
		Mapset                string            `yaml:"mapset"`
		IgnoredCommandPattern *string           `yaml:"ignoredCommandPattern"`
		LegacyIgnoredPattern  *string           `yaml:"ignoredCmdPattern"`
		SearchField           string            `yaml:"searchField"`
		GroupBy               string            `yaml:"groupBy"`
		SpecialFlags          map[string]string `yaml:"specialFlags"`
	}

	var raw rawConfig
	if err := value.Decode(&raw); err != nil {
		return err
	}

	c.Database = raw.Database
	c.Mapset = raw.Mapset
	c.SearchField = raw.SearchField
	c.GroupBy = raw.GroupBy
	c.SpecialFlags = raw.SpecialFlags

	switch {
	case raw.IgnoredCommandPattern != nil:
		c.IgnoredCommandPattern = *raw.IgnoredCommandPattern
	case raw.LegacyIgnoredPattern != nil:
		c.IgnoredCommandPattern = *raw.LegacyIgnoredPattern
	default:
		c.IgnoredCommandPattern = DefaultIgnoredCommandPattern
	}

	return nil
}

// Default returns the configuration used when no file exists
func Default() *Config {
	c := &Config{IgnoredCommandPattern: DefaultIgnoredCommandPattern}
	c.applyDefaults()
	return c
}

// DefaultPath returns $XDG_CONFIG_HOME/hbrowse/config.yaml, falling back to ~/.config
func DefaultPath() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "hbrowse", "config.yaml"), nil
}

// Load reads and validates the file at path. A missing file yields Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Mapset == "" {
		c.Mapset = "PERMANENT"
	}
	if c.SearchField == "" {
		c.SearchField = "command"
	}
	if c.GroupBy == "" {
		c.GroupBy = "day"
	}
	if c.SpecialFlags == nil {
		c.SpecialFlags = maps.Clone(normalize.DefaultSpecialFlags)
	}
}

// Validate performs basic sanity checks
func (c *Config) Validate() error {
	if _, err := c.IgnoredMatcher(); err != nil {
		return fmt.Errorf("ignoredCommandPattern: %w", err)
	}
	if _, err := c.Field(); err != nil {
		return fmt.Errorf("searchField: %w", err)
	}
	if _, err := c.Grouping(); err != nil {
		return fmt.Errorf("groupBy: %w", err)
	}
	for from, to := range c.SpecialFlags {
		if !strings.HasPrefix(from, "-") || strings.ContainsAny(from, " \t") {
			return fmt.Errorf("specialFlags: %q is not a flag", from)
		}
		if strings.TrimSpace(to) == "" {
			return fmt.Errorf("specialFlags: %q has an empty replacement", from)
		}
	}
	return nil
}

// IgnoredMatcher compiles the ignored-command pattern
func (c *Config) IgnoredMatcher() (normalize.Matcher, error) {
	return normalize.Compile(c.IgnoredCommandPattern)
}

// Field returns the search field selector
func (c *Config) Field() (filter.Field, error) {
	return filter.FieldByName(c.SearchField)
}

// Grouping returns the history grouping
func (c *Config) Grouping() (history.Grouping, error) {
	return history.GroupingByName(c.GroupBy)
}
