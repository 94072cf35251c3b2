// Package config loads typeloc settings from .typeloc/config.yaml under the
// repository root, with TYPELOC_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Dir is the per-repository directory holding the index and config file.
const Dir = ".typeloc"

type Config struct {
	Database string        `mapstructure:"database"`
	Logging  LoggingConfig `mapstructure:"logging"`
	Index    IndexConfig   `mapstructure:"index"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug|info|warn|error
	Format string `mapstructure:"format"` // text|json
}

type IndexConfig struct {
	// Workers bounds concurrent parsing; 0 means one per CPU.
	Workers int      `mapstructure:"workers"`
	Exclude []string `mapstructure:"exclude"`
	// Libraries are source archives indexed alongside the workspace.
	Libraries []string `mapstructure:"libraries"`
}

// DefaultConfig returns the settings used when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Database: filepath.Join(Dir, "index.db"),
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Load reads <repoRoot>/.typeloc/config.yaml, or path when non-empty.
// A missing default config file yields DefaultConfig with environment
// overrides applied.
func Load(repoRoot, path string) (*Config, error) {
	v := viper.New()

	def := DefaultConfig()
	v.SetDefault("database", def.Database)
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.format", def.Logging.Format)
	v.SetDefault("index.workers", def.Index.Workers)
	v.SetDefault("index.exclude", []string{})
	v.SetDefault("index.libraries", []string{})

	v.SetEnvPrefix("TYPELOC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(repoRoot, Dir))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated fields.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return &Error{Field: "logging.format", Message: fmt.Sprintf("unknown format %q", c.Logging.Format)}
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return &Error{Field: "logging.level", Message: fmt.Sprintf("unknown level %q", c.Logging.Level)}
	}
	if c.Index.Workers < 0 {
		return &Error{Field: "index.workers", Message: "must not be negative"}
	}
	return nil
}

// DatabasePath resolves Database against repoRoot unless it is absolute.
func (c *Config) DatabasePath(repoRoot string) string {
	if filepath.IsAbs(c.Database) {
		return c.Database
	}
	return filepath.Join(repoRoot, c.Database)
}

// Error reports an invalid configuration field.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}
