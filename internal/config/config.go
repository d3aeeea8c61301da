// Package config loads bit's settings from .bit/config.{yaml,toml,json} in
// the repository root, overlaid with BIT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Dir is the per-repository configuration directory.
const Dir = ".bit"

// FileName is the file `bit config init` writes inside Dir.
const FileName = "config.yaml"

// Config is the complete configuration.
type Config struct {
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Merge    MergeConfig    `yaml:"merge" mapstructure:"merge"`
}

// LogConfig selects the logger's verbosity and encoding.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// AnalysisConfig tunes symbol extraction.
type AnalysisConfig struct {
	Workers     int      `yaml:"workers" mapstructure:"workers"`
	Languages   []string `yaml:"languages" mapstructure:"languages"`
	MaxFileSize int64    `yaml:"maxFileSize" mapstructure:"maxFileSize"`
	IgnoreFile  string   `yaml:"ignoreFile" mapstructure:"ignoreFile"`
}

// MergeConfig bounds the merge simulation.
type MergeConfig struct {
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Analysis: AnalysisConfig{
			Workers:     0,
			Languages:   []string{},
			MaxFileSize: 1_000_000,
			IgnoreFile:  ".bitignore",
		},
		Merge: MergeConfig{
			Timeout: 30 * time.Second,
		},
	}
}

// Load reads the configuration for the repository at root. A missing file
// yields the defaults, still subject to environment overrides.
func Load(root string) (*Config, error) {
	v := viper.New()

	d := DefaultConfig()
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("analysis.workers", d.Analysis.Workers)
	v.SetDefault("analysis.languages", d.Analysis.Languages)
	v.SetDefault("analysis.maxFileSize", d.Analysis.MaxFileSize)
	v.SetDefault("analysis.ignoreFile", d.Analysis.IgnoreFile)
	v.SetDefault("merge.timeout", d.Merge.Timeout)

	v.SetConfigName("config")
	v.AddConfigPath(filepath.Join(root, Dir))

	v.SetEnvPrefix("BIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Save writes the configuration to Dir/FileName under root.
func (c *Config) Save(root string) (string, error) {
	data, err := c.Marshal()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(root, Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, FileName)
	return path, os.WriteFile(path, data, 0o644)
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return &Error{Field: "log.level", Message: fmt.Sprintf("unknown level %q", c.Log.Level)}
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return &Error{Field: "log.format", Message: fmt.Sprintf("unknown format %q", c.Log.Format)}
	}
	if c.Analysis.Workers < 0 {
		return &Error{Field: "analysis.workers", Message: "must not be negative"}
	}
	if c.Analysis.MaxFileSize < 0 {
		return &Error{Field: "analysis.maxFileSize", Message: "must not be negative"}
	}
	if c.Merge.Timeout < 0 {
		return &Error{Field: "merge.timeout", Message: "must not be negative"}
	}
	return nil
}

// Error reports an invalid configuration value.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
