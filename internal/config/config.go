// Package config loads canvas configuration from <home>/config.yaml with
// environment overrides for connection secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Neo4jConfig holds connection settings for the backing graph store.
type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`

	// ConnectTimeoutSeconds bounds the initial connectivity check.
	ConnectTimeoutSeconds int `yaml:"connect_timeout_seconds"`
	// MaxConnectionPoolSize is passed through to the driver. 0 uses the driver default.
	MaxConnectionPoolSize int `yaml:"max_connection_pool_size"`
}

// BreakerConfig tunes the circuit breaker shared by all store operations.
type BreakerConfig struct {
	// FailureThreshold is the absolute failure count that trips the breaker.
	FailureThreshold int `yaml:"failure_threshold"`
	// MinimumThroughput is the minimum sample size before tripping decisions are trusted.
	MinimumThroughput int `yaml:"minimum_throughput"`
	// RecoveryTimeoutSeconds is how long the breaker stays open before a trial call.
	RecoveryTimeoutSeconds int `yaml:"recovery_timeout_seconds"`
}

// RetryConfig selects the named retry strategy applied to store operations.
type RetryConfig struct {
	// Strategy is one of "default", "critical", "conservative".
	Strategy string `yaml:"strategy"`
}

// SnapshotConfig controls full-graph snapshot persistence.
type SnapshotConfig struct {
	// Dir is where snapshot files are written. Defaults to <home>/snapshots.
	Dir string `yaml:"dir"`
	// AutoSaveSchedule is a 5-field cron expression. Takes precedence over
	// AutoSaveIntervalSeconds when both are set.
	AutoSaveSchedule string `yaml:"auto_save_schedule"`
	// AutoSaveIntervalSeconds enables fixed-interval auto-save when > 0.
	AutoSaveIntervalSeconds int `yaml:"auto_save_interval_seconds"`
	// BatchSize is the node/relationship batch size used during restore.
	BatchSize int `yaml:"batch_size"`
}

// TelemetryConfig mirrors the OTel provider settings.
type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRate  float64 `yaml:"sample_rate"`
}

type Config struct {
	HomeDir string `yaml:"-"`

	LogLevel string `yaml:"log_level"`

	Neo4j     Neo4jConfig     `yaml:"neo4j"`
	Breaker   BreakerConfig   `yaml:"breaker"`
	Retry     RetryConfig     `yaml:"retry"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

func defaultConfig() Config {
	return Config{
		LogLevel: "info",
		Neo4j: Neo4jConfig{
			URI:                   "bolt://localhost:7687",
			Username:              "neo4j",
			Database:              "neo4j",
			ConnectTimeoutSeconds: 10,
		},
		Breaker: BreakerConfig{
			FailureThreshold:       5,
			MinimumThroughput:      10,
			RecoveryTimeoutSeconds: 30,
		},
		Retry: RetryConfig{Strategy: "default"},
		Snapshot: SnapshotConfig{
			BatchSize: 100,
		},
		Telemetry: TelemetryConfig{
			Exporter:   "stdout",
			SampleRate: 1.0,
		},
	}
}

// HomeDir resolves the canvas home directory (CANVAS_HOME or ~/.canvas).
func HomeDir() string {
	if override := os.Getenv("CANVAS_HOME"); override != "" {
		return override
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".canvas")
}

// Load reads <home>/config.yaml, applies defaults, env overrides, and
// normalization. A missing config file is not an error; defaults apply.
func Load() (Config, error) {
	cfg := defaultConfig()
	cfg.HomeDir = HomeDir()

	if err := os.MkdirAll(cfg.HomeDir, 0o755); err != nil {
		return cfg, fmt.Errorf("create canvas home: %w", err)
	}

	configPath := filepath.Join(cfg.HomeDir, "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config.yaml: %w", err)
		}
	} else if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config.yaml: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	normalize(&cfg)
	if err := validate(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if raw := os.Getenv("CANVAS_LOG_LEVEL"); raw != "" {
		cfg.LogLevel = raw
	}
	if raw := os.Getenv("CANVAS_NEO4J_URI"); raw != "" {
		cfg.Neo4j.URI = raw
	}
	if raw := os.Getenv("CANVAS_NEO4J_USERNAME"); raw != "" {
		cfg.Neo4j.Username = raw
	}
	if raw := os.Getenv("CANVAS_NEO4J_PASSWORD"); raw != "" {
		cfg.Neo4j.Password = raw
	}
	if raw := os.Getenv("CANVAS_NEO4J_DATABASE"); raw != "" {
		cfg.Neo4j.Database = raw
	}
	if raw := os.Getenv("CANVAS_SNAPSHOT_DIR"); raw != "" {
		cfg.Snapshot.Dir = raw
	}
	if raw := os.Getenv("CANVAS_AUTOSAVE_INTERVAL_SECONDS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			cfg.Snapshot.AutoSaveIntervalSeconds = n
		}
	}
}

func normalize(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Neo4j.URI == "" {
		cfg.Neo4j.URI = "bolt://localhost:7687"
	}
	if cfg.Neo4j.Database == "" {
		cfg.Neo4j.Database = "neo4j"
	}
	if cfg.Neo4j.ConnectTimeoutSeconds <= 0 {
		cfg.Neo4j.ConnectTimeoutSeconds = 10
	}
	if cfg.Breaker.FailureThreshold <= 0 {
		cfg.Breaker.FailureThreshold = 5
	}
	if cfg.Breaker.MinimumThroughput <= 0 {
		cfg.Breaker.MinimumThroughput = 10
	}
	if cfg.Breaker.RecoveryTimeoutSeconds <= 0 {
		cfg.Breaker.RecoveryTimeoutSeconds = 30
	}
	if strings.TrimSpace(cfg.Retry.Strategy) == "" {
		cfg.Retry.Strategy = "default"
	}
	if strings.TrimSpace(cfg.Snapshot.Dir) == "" {
		cfg.Snapshot.Dir = filepath.Join(cfg.HomeDir, "snapshots")
	}
	if cfg.Snapshot.BatchSize <= 0 {
		cfg.Snapshot.BatchSize = 100
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "canvas"
	}
	if cfg.Telemetry.SampleRate <= 0 {
		cfg.Telemetry.SampleRate = 1.0
	}
}

func validate(cfg *Config) error {
	switch cfg.Retry.Strategy {
	case "default", "critical", "conservative":
	default:
		return fmt.Errorf("retry.strategy %q: must be one of default, critical, conservative", cfg.Retry.Strategy)
	}
	if cfg.Breaker.MinimumThroughput < cfg.Breaker.FailureThreshold {
		return fmt.Errorf("breaker.minimum_throughput (%d) must be >= breaker.failure_threshold (%d)",
			cfg.Breaker.MinimumThroughput, cfg.Breaker.FailureThreshold)
	}
	return nil
}

// ConnectTimeout returns the Neo4j connect timeout as a duration.
func (c Neo4jConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}

// RecoveryTimeout returns the breaker recovery window as a duration.
func (c BreakerConfig) RecoveryTimeout() time.Duration {
	return time.Duration(c.RecoveryTimeoutSeconds) * time.Second
}

// AutoSaveInterval returns the fixed auto-save interval, 0 when disabled.
func (c SnapshotConfig) AutoSaveInterval() time.Duration {
	return time.Duration(c.AutoSaveIntervalSeconds) * time.Second
}
