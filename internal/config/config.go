// Package config loads server settings from defaults, an optional YAML
// file and the environment, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ZanzyTHEbar/profile-plausibility/internal/errors"
)

// Config holds every server setting
type Config struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	IPLimitPerMin int           `yaml:"ip_limit_per_min"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`

	MinDelay    time.Duration `yaml:"analysis_min_delay"`
	DelayJitter time.Duration `yaml:"analysis_delay_jitter"`

	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxInputLength int           `yaml:"max_input_length"`
	AllowedOrigins []string      `yaml:"allowed_origins"`

	EnableSwagger     bool `yaml:"enable_swagger"`
	EnableCompression bool `yaml:"enable_compression"`
}

// Default returns the built-in settings
func Default() Config {
	return Config{
		Port:              "8080",
		LogLevel:          "info",
		IPLimitPerMin:     60,
		CacheTTL:          15 * time.Minute,
		MinDelay:          1500 * time.Millisecond,
		DelayJitter:       time.Second,
		RequestTimeout:    30 * time.Second,
		MaxInputLength:    200,
		AllowedOrigins:    []string{"*"},
		EnableCompression: true,
	}
}

// Load builds the configuration. path may be empty, in which case
// CONFIG_FILE is consulted; a missing file is an error only when one was
// named explicitly.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.NewConfigurationError(fmt.Sprintf("cannot read config file %s", path), err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.NewConfigurationError(fmt.Sprintf("cannot parse config file %s", path), err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Port = getEnvOrDefault("PORT", c.Port)
	c.LogLevel = getEnvOrDefault("LOG_LEVEL", c.LogLevel)
	c.RedisAddr = getEnvOrDefault("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnvOrDefault("REDIS_PASSWORD", c.RedisPassword)

	var err error
	if c.RedisDB, err = intEnv("REDIS_DB", c.RedisDB); err != nil {
		return err
	}
	if c.IPLimitPerMin, err = intEnv("IP_LIMIT_PER_MIN", c.IPLimitPerMin); err != nil {
		return err
	}
	if c.MaxInputLength, err = intEnv("MAX_INPUT_LENGTH", c.MaxInputLength); err != nil {
		return err
	}
	if c.CacheTTL, err = durationEnv("CACHE_TTL", c.CacheTTL); err != nil {
		return err
	}
	if c.MinDelay, err = durationEnv("ANALYSIS_MIN_DELAY", c.MinDelay); err != nil {
		return err
	}
	if c.DelayJitter, err = durationEnv("ANALYSIS_DELAY_JITTER", c.DelayJitter); err != nil {
		return err
	}
	if c.RequestTimeout, err = durationEnv("REQUEST_TIMEOUT", c.RequestTimeout); err != nil {
		return err
	}
	if c.EnableSwagger, err = boolEnv("ENABLE_SWAGGER", c.EnableSwagger); err != nil {
		return err
	}
	if c.EnableCompression, err = boolEnv("ENABLE_COMPRESSION", c.EnableCompression); err != nil {
		return err
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.AllowedOrigins = splitList(origins)
	}
	return nil
}

// Validate rejects settings the server cannot run with
func (c Config) Validate() error {
	problems := map[string]string{}

	if port, err := strconv.Atoi(c.Port); err != nil || port <= 0 || port > 65535 {
		problems["port"] = fmt.Sprintf("invalid port %q", c.Port)
	}
	if c.IPLimitPerMin <= 0 {
		problems["ip_limit_per_min"] = "must be positive"
	}
	if c.MaxInputLength <= 0 {
		problems["max_input_length"] = "must be positive"
	}
	if c.CacheTTL <= 0 {
		problems["cache_ttl"] = "must be positive"
	}
	if c.RequestTimeout <= 0 {
		problems["request_timeout"] = "must be positive"
	} else if c.MinDelay+c.DelayJitter >= c.RequestTimeout {
		problems["request_timeout"] = "must exceed analysis_min_delay + analysis_delay_jitter"
	}
	if c.MinDelay < 0 {
		problems["analysis_min_delay"] = "must not be negative"
	}
	if c.DelayJitter < 0 {
		problems["analysis_delay_jitter"] = "must not be negative"
	}

	if len(problems) == 0 {
		return nil
	}

	keys := make([]string, 0, len(problems))
	for k, v := range problems {
		keys = append(keys, k+": "+v)
	}
	appErr := errors.NewConfigurationError(joinSorted(keys), nil)
	for k, v := range problems {
		appErr.Fields[k] = v
	}
	return appErr
}

// RedisEnabled reports whether a Redis address was configured
func (c Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func intEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, errors.NewConfigurationError(fmt.Sprintf("%s must be an integer", key), err)
	}
	return v, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, errors.NewConfigurationError(fmt.Sprintf("%s must be a duration", key), err)
	}
	return v, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, errors.NewConfigurationError(fmt.Sprintf("%s must be a boolean", key), err)
	}
	return v, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinSorted(items []string) string {
	sort.Strings(items)
	return strings.Join(items, "; ")
}
