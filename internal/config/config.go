// Package config loads process configuration from an optional YAML file
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full designpm-core configuration.
type Config struct {
	Port int `yaml:"port"`

	// Storage backends. Redis wins when both are set.
	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`

	DBMaxOpenConns int `yaml:"db_max_open_conns"`
	DBMaxIdleConns int `yaml:"db_max_idle_conns"`

	StorageQuotaBytes   int64  `yaml:"storage_quota_bytes"`
	AutosaveKey         string `yaml:"autosave_key"`
	SaveDebounceMS      int    `yaml:"save_debounce_ms"`
	AutosaveIntervalSec int    `yaml:"autosave_interval_sec"`
	FlushThresholdSec   int    `yaml:"flush_threshold_sec"`
	RestoreDelayMS      int    `yaml:"restore_delay_ms"`

	MaxMediaBytes      int64 `yaml:"max_media_bytes"`
	MaxUploadBytes     int64 `yaml:"max_upload_bytes"`
	NotificationTTLSec int   `yaml:"notification_ttl_sec"`

	// RateLimit is mutating requests per second; 0 disables throttling
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`

	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns the defaults. The storage quota matches the
// browser local-storage budget the report format was sized for.
func DefaultConfig() *Config {
	return &Config{
		Port:                8080,
		DBMaxOpenConns:      8,
		DBMaxIdleConns:      2,
		StorageQuotaBytes:   5 << 20,
		AutosaveKey:         "DesignPM_AutoSave",
		SaveDebounceMS:      800,
		AutosaveIntervalSec: 30,
		FlushThresholdSec:   60,
		RestoreDelayMS:      200,
		MaxMediaBytes:       5 << 20,
		MaxUploadBytes:      64 << 20,
		NotificationTTLSec:  3,
		RateLimit:           20,
		RateBurst:           40,
		LogLevel:            "info",
	}
}

// LoadConfig reads and parses a YAML config file over DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Load builds the process configuration: the file named by CONFIG_FILE if
// set, then environment overrides, then validation.
func Load() (*Config, error) {
	cfg := DefaultConfig()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		var err error
		if cfg, err = LoadConfig(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from non-empty variables returned by getenv.
// Unparseable numbers leave the current value in place.
func (c *Config) ApplyEnv(getenv func(string) string) {
	e := env(getenv)
	c.Port = e.int("PORT", c.Port)
	c.RedisURL = e.str("REDIS_URL", c.RedisURL)
	c.DatabaseURL = e.str("DATABASE_URL", c.DatabaseURL)
	c.DBMaxOpenConns = e.int("DB_MAX_OPEN_CONNS", c.DBMaxOpenConns)
	c.DBMaxIdleConns = e.int("DB_MAX_IDLE_CONNS", c.DBMaxIdleConns)
	c.StorageQuotaBytes = e.int64("STORAGE_QUOTA_BYTES", c.StorageQuotaBytes)
	c.AutosaveKey = e.str("AUTOSAVE_KEY", c.AutosaveKey)
	c.SaveDebounceMS = e.int("SAVE_DEBOUNCE_MS", c.SaveDebounceMS)
	c.AutosaveIntervalSec = e.int("AUTOSAVE_INTERVAL_SEC", c.AutosaveIntervalSec)
	c.FlushThresholdSec = e.int("FLUSH_THRESHOLD_SEC", c.FlushThresholdSec)
	c.RestoreDelayMS = e.int("RESTORE_DELAY_MS", c.RestoreDelayMS)
	c.MaxMediaBytes = e.int64("MAX_MEDIA_BYTES", c.MaxMediaBytes)
	c.MaxUploadBytes = e.int64("MAX_UPLOAD_BYTES", c.MaxUploadBytes)
	c.NotificationTTLSec = e.int("NOTIFICATION_TTL_SEC", c.NotificationTTLSec)
	c.RateLimit = e.float("RATE_LIMIT", c.RateLimit)
	c.RateBurst = e.int("RATE_BURST", c.RateBurst)
	c.LogLevel = e.str("LOG_LEVEL", c.LogLevel)
}

// Validate checks that values are sane.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.AutosaveKey == "" {
		return fmt.Errorf("autosave_key is required")
	}
	if c.StorageQuotaBytes < 0 {
		return fmt.Errorf("storage_quota_bytes must be >= 0")
	}
	if c.SaveDebounceMS <= 0 {
		return fmt.Errorf("save_debounce_ms must be > 0")
	}
	if c.AutosaveIntervalSec < 0 {
		return fmt.Errorf("autosave_interval_sec must be >= 0")
	}
	if c.FlushThresholdSec <= 0 {
		return fmt.Errorf("flush_threshold_sec must be > 0")
	}
	if c.RestoreDelayMS < 0 {
		return fmt.Errorf("restore_delay_ms must be >= 0")
	}
	if c.MaxMediaBytes <= 0 {
		return fmt.Errorf("max_media_bytes must be > 0")
	}
	if c.MaxUploadBytes < c.MaxMediaBytes {
		return fmt.Errorf("max_upload_bytes (%d) must be >= max_media_bytes (%d)", c.MaxUploadBytes, c.MaxMediaBytes)
	}
	if c.NotificationTTLSec <= 0 {
		return fmt.Errorf("notification_ttl_sec must be > 0")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log_level %q (use debug, info, warn or error)", c.LogLevel)
	}
	return nil
}

// StorageBackend names the backend main will wire: redis, postgres or memory.
func (c *Config) StorageBackend() string {
	switch {
	case c.RedisURL != "":
		return "redis"
	case c.DatabaseURL != "":
		return "postgres"
	default:
		return "memory"
	}
}

// SaveDebounce returns the debounced save delay.
func (c *Config) SaveDebounce() time.Duration {
	return time.Duration(c.SaveDebounceMS) * time.Millisecond
}

// AutosaveInterval returns the periodic autosave interval; zero disables it.
func (c *Config) AutosaveInterval() time.Duration {
	return time.Duration(c.AutosaveIntervalSec) * time.Second
}

// FlushThreshold returns how old the last save may be before teardown flushes.
func (c *Config) FlushThreshold() time.Duration {
	return time.Duration(c.FlushThresholdSec) * time.Second
}

// RestoreDelay returns the startup restore delay.
func (c *Config) RestoreDelay() time.Duration {
	return time.Duration(c.RestoreDelayMS) * time.Millisecond
}

// NotificationTTL returns how long notifications stay visible.
func (c *Config) NotificationTTL() time.Duration {
	return time.Duration(c.NotificationTTLSec) * time.Second
}

// env reads typed values, falling back to the default on empty or bad input.
type env func(string) string

func (e env) str(key, def string) string {
	if v := e(key); v != "" {
		return v
	}
	return def
}

func (e env) int(key string, def int) int {
	if v := e(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func (e env) int64(key string, def int64) int64 {
	if v := e(key); v != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n
		}
	}
	return def
}

func (e env) float(key string, def float64) float64 {
	if v := e(key); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}
