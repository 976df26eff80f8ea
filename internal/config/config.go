// Package config loads the optional undodb YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when --config is not given.
const DefaultPath = "undodb.yaml"

// Config is the on-disk configuration. Command-line flags override it.
type Config struct {
	Database string `yaml:"database"`
	Driver   string `yaml:"driver"`

	// GroupLimit is applied on open when set. Non-positive means unlimited.
	GroupLimit *int64 `yaml:"group_limit,omitempty"`

	// Tables are tracked every time the database is opened.
	Tables []string `yaml:"tables,omitempty"`

	Log Log `yaml:"log"`
}

// Log configures the stderr logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Valid values for Driver, Log.Level and Log.Format.
var (
	ValidDrivers    = []string{"sqlite3", "sqlite"}
	ValidLogLevels  = []string{"debug", "info", "warn", "error"}
	ValidLogFormats = []string{"auto", "text", "json", "logfmt"}
)

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Database: "undodb.db",
		Driver:   "sqlite3",
		Log: Log{
			Level:  "warn",
			Format: "auto",
		},
	}
}

// Load reads the file at path. A missing file yields Default().
// Empty fields in the file fall back to their defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	c.fillDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

func (c *Config) fillDefaults() {
	d := Default()
	if c.Database == "" {
		c.Database = d.Database
	}
	if c.Driver == "" {
		c.Driver = d.Driver
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
}

// Validate checks enumerated fields.
func (c *Config) Validate() error {
	if !contains(ValidDrivers, c.Driver) {
		return fmt.Errorf("invalid driver %q: must be one of %v", c.Driver, ValidDrivers)
	}
	if !contains(ValidLogLevels, c.Log.Level) {
		return fmt.Errorf("invalid log level %q: must be one of %v", c.Log.Level, ValidLogLevels)
	}
	if !contains(ValidLogFormats, c.Log.Format) {
		return fmt.Errorf("invalid log format %q: must be one of %v", c.Log.Format, ValidLogFormats)
	}
	for _, t := range c.Tables {
		if t == "" {
			return errors.New("tables: empty table name")
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
