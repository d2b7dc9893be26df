package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ZanzyTHEbar/profile-plausibility/internal/errors"
)

var envKeys = []string{
	"CONFIG_FILE", "PORT", "LOG_LEVEL", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"IP_LIMIT_PER_MIN", "CACHE_TTL", "ANALYSIS_MIN_DELAY", "ANALYSIS_DELAY_JITTER",
	"REQUEST_TIMEOUT", "MAX_INPUT_LENGTH", "ALLOWED_ORIGINS", "ENABLE_SWAGGER", "ENABLE_COMPRESSION",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 1500*time.Millisecond, cfg.MinDelay)
	assert.Equal(t, time.Second, cfg.DelayJitter)
	assert.False(t, cfg.RedisEnabled())
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
port: "9090"
log_level: debug
ip_limit_per_min: 10
cache_ttl: 5m
analysis_min_delay: 100ms
analysis_delay_jitter: 50ms
allowed_origins:
  - https://example.com
enable_swagger: true
`)
	t.Setenv("IP_LIMIT_PER_MIN", "25")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 25, cfg.IPLimitPerMin)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 100*time.Millisecond, cfg.MinDelay)
	assert.Equal(t, 50*time.Millisecond, cfg.DelayJitter)
	assert.Equal(t, []string{"https://example.com"}, cfg.AllowedOrigins)
	assert.True(t, cfg.EnableSwagger)
	assert.True(t, cfg.EnableCompression)
	assert.True(t, cfg.RedisEnabled())
}

func TestConfigFileFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", writeFile(t, "max_input_length: 120\n"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.MaxInputLength)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("ENABLE_COMPRESSION", "false")
	t.Setenv("REQUEST_TIMEOUT", "10s")
	t.Setenv("ANALYSIS_MIN_DELAY", "0s")
	t.Setenv("ANALYSIS_DELAY_JITTER", "0s")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.False(t, cfg.EnableCompression)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Zero(t, cfg.MinDelay)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		path string
	}{
		{"bad integer", map[string]string{"IP_LIMIT_PER_MIN": "many"}, ""},
		{"bad duration", map[string]string{"CACHE_TTL": "forever"}, ""},
		{"bad bool", map[string]string{"ENABLE_SWAGGER": "maybe"}, ""},
		{"missing file", nil, filepath.Join(os.TempDir(), "does-not-exist", "config.yaml")},
		{"non-positive limit", map[string]string{"IP_LIMIT_PER_MIN": "0"}, ""},
		{"negative delay", map[string]string{"ANALYSIS_MIN_DELAY": "-1s"}, ""},
		{"bad port", map[string]string{"PORT": "http"}, ""},
		{"timeout shorter than delay", map[string]string{"REQUEST_TIMEOUT": "2s"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load(tt.path)
			require.Error(t, err)

			appErr := apperrors.ToAppError(err)
			assert.Equal(t, apperrors.CategoryConfiguration, appErr.Category)
		})
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeFile(t, "port: [unterminated\n"))

	require.Error(t, err)
	assert.Equal(t, apperrors.CategoryConfiguration, apperrors.ToAppError(err).Category)
}

func TestValidateCollectsFields(t *testing.T) {
	cfg := Default()
	cfg.IPLimitPerMin = 0
	cfg.MaxInputLength = -1

	err := cfg.Validate()
	require.Error(t, err)

	appErr := apperrors.ToAppError(err)
	assert.Equal(t, "must be positive", appErr.Fields["ip_limit_per_min"])
	assert.Equal(t, "must be positive", appErr.Fields["max_input_length"])
}

func TestValidateRequestTimeout(t *testing.T) {
	tests := []struct {
		name     string
		timeout  time.Duration
		expected string
	}{
		{"zero timeout", 0, "must be positive"},
		{"negative timeout", -time.Second, "must be positive"},
		{"shorter than delay", 2 * time.Second, "must exceed analysis_min_delay + analysis_delay_jitter"},
		{"long enough", 30 * time.Second, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.RequestTimeout = tt.timeout

			err := cfg.Validate()
			if tt.expected == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.expected, apperrors.ToAppError(err).Fields["request_timeout"])
		})
	}
}
