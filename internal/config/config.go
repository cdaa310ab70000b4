// Package config loads store and runtime settings from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/ormlite/internal/metrics"
	"github.com/roach88/ormlite/internal/schema"
	"github.com/roach88/ormlite/internal/store"
)

// Config holds every tunable of a registry.
type Config struct {
	// Dir is the root under which named stores are created.
	Dir string `yaml:"dir"`

	// Driver is "sqlite3" (mattn, cgo) or "sqlite" (modernc, pure Go).
	Driver string `yaml:"driver"`

	BusyTimeoutMS int    `yaml:"busy_timeout_ms"`
	JournalMode   string `yaml:"journal_mode"`
	Retry         Retry  `yaml:"retry"`

	// MigrationPolicy is "always" or "legacy".
	MigrationPolicy string `yaml:"migration_policy"`

	// LegacyInt32Sentinel stores absent optional int32 values as -1
	// instead of NULL.
	LegacyInt32Sentinel bool `yaml:"legacy_int32_sentinel"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `yaml:"log_level"`
}

// Retry bounds retries of transient store failures.
type Retry struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	p := store.DefaultRetryPolicy()
	return Config{
		Dir:           ".",
		Driver:        store.DriverMattn,
		BusyTimeoutMS: 5000,
		JournalMode:   "WAL",
		Retry: Retry{
			MaxAttempts:    p.MaxAttempts,
			InitialBackoff: p.InitialBackoff,
			MaxBackoff:     p.MaxBackoff,
		},
		MigrationPolicy: string(schema.PolicyAlways),
		LogLevel:        "info",
	}
}

// Load reads a YAML file over Default. Unknown keys are rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over Default and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c Config) Validate() error {
	switch c.Driver {
	case store.DriverMattn, store.DriverModernc:
	default:
		return fmt.Errorf("driver must be %q or %q, got %q", store.DriverMattn, store.DriverModernc, c.Driver)
	}
	if c.BusyTimeoutMS < 0 {
		return fmt.Errorf("busy_timeout_ms must not be negative")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	if c.Retry.InitialBackoff < 0 || c.Retry.MaxBackoff < 0 {
		return fmt.Errorf("retry backoff must not be negative")
	}
	if c.Retry.MaxBackoff > 0 && c.Retry.InitialBackoff > c.Retry.MaxBackoff {
		return fmt.Errorf("retry.initial_backoff exceeds retry.max_backoff")
	}
	if _, err := schema.ParsePolicy(c.MigrationPolicy); err != nil {
		return err
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Policy returns the parsed migration policy.
func (c Config) Policy() schema.Policy {
	p, err := schema.ParsePolicy(c.MigrationPolicy)
	if err != nil {
		return schema.PolicyAlways
	}
	return p
}

// Level returns the parsed log level, info when unset or invalid.
func (c Config) Level() slog.Level {
	l, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

// StoreOptions translates c into options for store.Open.
func (c Config) StoreOptions(logger *slog.Logger, m *metrics.Collector) store.Options {
	return store.Options{
		Driver:      c.Driver,
		BusyTimeout: time.Duration(c.BusyTimeoutMS) * time.Millisecond,
		JournalMode: c.JournalMode,
		Retry: store.RetryPolicy{
			MaxAttempts:    c.Retry.MaxAttempts,
			InitialBackoff: c.Retry.InitialBackoff,
			MaxBackoff:     c.Retry.MaxBackoff,
		},
		Logger:  logger,
		Metrics: m,
	}
}

// ParseLevel maps a level name onto slog. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}
