// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Quota     QuotaConfig     `yaml:"quota"`
	Retention RetentionConfig `yaml:"retention"`
	Store     StoreConfig     `yaml:"store"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig configures the persistence backend.
// Driver "sqlite" uses the DSN as a file path; "memory" keeps all state
// in-process (useful for development and tests).
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// QuotaConfig configures the metering limits. A limit of 0 disables
// that window (unlimited).
type QuotaConfig struct {
	HourlyLimit int64 `yaml:"hourly_limit"`
	DailyLimit  int64 `yaml:"daily_limit"`
}

// RetentionConfig configures the retention sweeper.
type RetentionConfig struct {
	Days             int           `yaml:"days"`
	SweepMinInterval time.Duration `yaml:"sweep_min_interval"`
}

// StoreConfig configures store access behavior.
type StoreConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads configuration from a YAML file. Environment variables
// override file values; defaults fill the rest.
//
// Defaults are applied before parsing, so a key present in the file
// always wins — in particular an explicit `hourly_limit: 0` stays 0
// (unlimited) instead of being mistaken for "unset".
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand ${VAR} references before parsing
	data = []byte(os.ExpandEnv(string(data)))

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
// Useful for container deployments where no config file is mounted.
//
// Environment variables:
//
//	GENMETER_SERVER_HOST         - Server host (default: 0.0.0.0)
//	GENMETER_SERVER_PORT         - Server port (default: 8080)
//	GENMETER_DATABASE_DRIVER     - "sqlite" or "memory" (default: sqlite)
//	GENMETER_DATABASE_DSN        - Database path (default: genmeter.db)
//	GENMETER_HOURLY_LIMIT        - Generations per hour, 0 = unlimited (default: 3)
//	GENMETER_DAILY_LIMIT         - Generations per day, 0 = unlimited (default: 10)
//	GENMETER_RETENTION_DAYS      - Bucket retention window (default: 7)
//	GENMETER_SWEEP_MIN_INTERVAL  - Per-user sweep gate (default: 24h)
//	GENMETER_STORE_TIMEOUT       - Per-operation store timeout (default: 5s)
//	GENMETER_LOG_LEVEL           - debug, info, warn, error (default: info)
//	GENMETER_LOG_FORMAT          - json or console (default: json)
//	GENMETER_METRICS_ENABLED     - Enable /metrics (default: false)
func LoadFromEnv() (*Config, error) {
	cfg := defaultConfig()

	applyEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falls back to environment
// variables when the file does not exist.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// applyEnvOverrides applies GENMETER_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GENMETER_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("GENMETER_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("GENMETER_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("GENMETER_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}
	if v := os.Getenv("GENMETER_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("GENMETER_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("GENMETER_HOURLY_LIMIT"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Quota.HourlyLimit = n
		}
	}
	if v := os.Getenv("GENMETER_DAILY_LIMIT"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Quota.DailyLimit = n
		}
	}
	if v := os.Getenv("GENMETER_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Retention.Days = n
		}
	}
	if v := os.Getenv("GENMETER_SWEEP_MIN_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Retention.SweepMinInterval = d
		}
	}
	if v := os.Getenv("GENMETER_STORE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Store.Timeout = d
		}
	}
	if v := os.Getenv("GENMETER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("GENMETER_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("GENMETER_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("GENMETER_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}
}

// defaultConfig is the baseline every load path starts from. Values
// only change when the file or environment explicitly provides them.
func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "genmeter.db",
		},
		Quota: QuotaConfig{
			HourlyLimit: 3,
			DailyLimit:  10,
		},
		Retention: RetentionConfig{
			Days:             7,
			SweepMinInterval: 24 * time.Hour,
		},
		Store: StoreConfig{
			Timeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Path: "/metrics",
		},
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", cfg.Server.Port)
	}
	switch cfg.Database.Driver {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("database.driver must be sqlite or memory, got %q", cfg.Database.Driver)
	}
	if cfg.Quota.HourlyLimit < 0 {
		return fmt.Errorf("quota.hourly_limit must not be negative, got %d", cfg.Quota.HourlyLimit)
	}
	if cfg.Quota.DailyLimit < 0 {
		return fmt.Errorf("quota.daily_limit must not be negative, got %d", cfg.Quota.DailyLimit)
	}
	if cfg.Retention.Days < 1 {
		return fmt.Errorf("retention.days must be at least 1, got %d", cfg.Retention.Days)
	}
	if cfg.Retention.SweepMinInterval < time.Minute {
		return fmt.Errorf("retention.sweep_min_interval must be at least 1m, got %s", cfg.Retention.SweepMinInterval)
	}
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", cfg.Logging.Format)
	}
	return nil
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false
	}
	return b
}
