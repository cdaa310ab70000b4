package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ormlite/internal/schema"
	"github.com/roach88/ormlite/internal/store"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, store.DriverMattn, cfg.Driver)
	assert.Equal(t, schema.PolicyAlways, cfg.Policy())
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, cfg.Retry.InitialBackoff)
	assert.Equal(t, time.Second, cfg.Retry.MaxBackoff)
	assert.Equal(t, slog.LevelInfo, cfg.Level())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ormlite.yaml")
	content := `
dir: /var/lib/ormlite
driver: sqlite
busy_timeout_ms: 250
retry:
  max_attempts: 5
  initial_backoff: 10ms
  max_backoff: 200ms
migration_policy: legacy
legacy_int32_sentinel: true
log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/ormlite", cfg.Dir)
	assert.Equal(t, store.DriverModernc, cfg.Driver)
	assert.Equal(t, "WAL", cfg.JournalMode, "unset keys keep defaults")
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 10*time.Millisecond, cfg.Retry.InitialBackoff)
	assert.Equal(t, 200*time.Millisecond, cfg.Retry.MaxBackoff)
	assert.Equal(t, schema.PolicyLegacy, cfg.Policy())
	assert.True(t, cfg.LegacyInt32Sentinel)
	assert.Equal(t, slog.LevelDebug, cfg.Level())

	opts := cfg.StoreOptions(nil, nil)
	assert.Equal(t, store.DriverModernc, opts.Driver)
	assert.Equal(t, 250*time.Millisecond, opts.BusyTimeout)
	assert.Equal(t, 5, opts.Retry.MaxAttempts)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"unknown key", "drivr: sqlite\n", "field drivr not found"},
		{"bad driver", "driver: postgres\n", "driver must be"},
		{"negative timeout", "busy_timeout_ms: -1\n", "busy_timeout_ms"},
		{"zero attempts", "retry:\n  max_attempts: 0\n", "max_attempts"},
		{"inverted backoff", "retry:\n  initial_backoff: 2s\n  max_backoff: 1s\n", "exceeds"},
		{"bad policy", "migration_policy: sometimes\n", "unknown migration policy"},
		{"bad level", "log_level: loud\n", "unknown log level"},
		{"bad duration", "retry:\n  initial_backoff: soon\n", "failed to parse YAML"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
