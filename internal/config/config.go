// Package config loads privdir settings.
//
// Sources, lowest precedence first:
//
//   - built-in defaults (Default)
//   - a YAML file; unknown keys are rejected
//   - .env files, read without touching the process environment
//   - PRIVDIR_* environment variables
//
// Command-line flags are applied on top by the cli package.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/privdir/internal/directory"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PRIVDIR_"

// Config holds every runtime setting.
type Config struct {
	// Database is the SQLite path, or ":memory:".
	Database string `yaml:"database"`

	// TextLog is the side-channel file for audit events the Log table
	// could not take. Empty disables it.
	TextLog string `yaml:"text_log"`

	// Schema is an optional CUE file declaring extra tables to reconcile.
	Schema string `yaml:"schema"`

	Thresholds directory.Thresholds `yaml:"thresholds"`

	Log LogConfig `yaml:"log"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Database:   "privdir.db",
		TextLog:    "textLog",
		Thresholds: directory.DefaultThresholds(),
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds a Config from file (optional), envFiles (missing files are
// skipped) and the process environment.
func Load(file string, envFiles ...string) (*Config, error) {
	return load(file, envFiles, os.LookupEnv)
}

func load(file string, envFiles []string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if file != "" {
		if err := cfg.readYAML(file); err != nil {
			return nil, err
		}
	}

	dotenv, err := readDotEnv(envFiles)
	if err != nil {
		return nil, err
	}
	env := func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := cfg.applyEnv(env); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// readDotEnv merges envFiles; earlier files win, as with godotenv.Load.
func readDotEnv(envFiles []string) (map[string]string, error) {
	merged := map[string]string{}
	for _, path := range envFiles {
		vals, err := godotenv.Read(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read env file %s: %w", path, err)
		}
		for k, v := range vals {
			if _, seen := merged[k]; !seen {
				merged[k] = v
			}
		}
	}
	return merged, nil
}

func (c *Config) applyEnv(env func(string) (string, bool)) error {
	strs := map[string]*string{
		"DATABASE":   &c.Database,
		"TEXT_LOG":   &c.TextLog,
		"SCHEMA":     &c.Schema,
		"LOG_LEVEL":  &c.Log.Level,
		"LOG_FORMAT": &c.Log.Format,
	}
	for key, dst := range strs {
		if v, ok := env(EnvPrefix + key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"ADD_THRESHOLD":    &c.Thresholds.Add,
		"MODIFY_THRESHOLD": &c.Thresholds.Modify,
		"DELETE_THRESHOLD": &c.Thresholds.Delete,
	}
	for key, dst := range ints {
		v, ok := env(EnvPrefix + key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %q is not an integer", EnvPrefix, key, v)
		}
		*dst = n
	}
	return nil
}

// Validate checks ranges and enum values.
func (c *Config) Validate() error {
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	th := c.Thresholds
	if th.Add < 0 || th.Modify < 0 || th.Delete < 0 {
		return fmt.Errorf("thresholds must not be negative: %+v", th)
	}
	return nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log.level must be debug, info, warn or error, got %q", name)
}
