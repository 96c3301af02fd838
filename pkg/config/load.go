package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention MERIDIAN_SECTION_FIELD (e.g., MERIDIAN_SERVER_LISTEN_ADDRESS).
// Environment variables always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables use the format MERIDIAN_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	setString("MERIDIAN_SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	setDuration("MERIDIAN_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	setDuration("MERIDIAN_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	setDuration("MERIDIAN_SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	setDuration("MERIDIAN_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	setInt("MERIDIAN_SERVER_MAX_HEADER_BYTES", &cfg.Server.MaxHeaderBytes)

	// Storage overrides
	setString("MERIDIAN_STORAGE_BACKEND", &cfg.Storage.Backend)
	setString("MERIDIAN_STORAGE_VERSIONS_PATH", &cfg.Storage.VersionsPath)
	setString("MERIDIAN_STORAGE_CHANGES_PATH", &cfg.Storage.ChangesPath)
	setDuration("MERIDIAN_STORAGE_BUSY_TIMEOUT", &cfg.Storage.BusyTimeout)

	// Audit overrides
	setString("MERIDIAN_AUDIT_BACKEND", &cfg.Audit.Backend)
	setString("MERIDIAN_AUDIT_SQLITE_PATH", &cfg.Audit.SQLitePath)
	setDuration("MERIDIAN_AUDIT_WRITE_TIMEOUT", &cfg.Audit.WriteTimeout)
	setInt("MERIDIAN_AUDIT_QUERY_LIMIT", &cfg.Audit.QueryLimit)

	// Workflow overrides
	setInt("MERIDIAN_WORKFLOW_LIST_LIMIT", &cfg.Workflow.ListLimit)

	// Engine overrides
	setString("MERIDIAN_ENGINE_DEFAULT_ENVIRONMENT", &cfg.Engine.DefaultEnvironment)
	setDuration("MERIDIAN_ENGINE_EVALUATION_TIMEOUT", &cfg.Engine.EvaluationTimeout)

	// Seed overrides
	setBool("MERIDIAN_SEED_ENABLED", &cfg.Seed.Enabled)
	setString("MERIDIAN_SEED_PATH", &cfg.Seed.Path)
	setString("MERIDIAN_SEED_ENVIRONMENT", &cfg.Seed.Environment)
	setBool("MERIDIAN_SEED_WATCH", &cfg.Seed.Watch)

	// Efficacy overrides
	setBool("MERIDIAN_EFFICACY_ENABLED", &cfg.Efficacy.Enabled)
	setString("MERIDIAN_EFFICACY_SCHEDULE", &cfg.Efficacy.Schedule)
	setDuration("MERIDIAN_EFFICACY_WINDOW", &cfg.Efficacy.Window)

	// Telemetry overrides
	setString("MERIDIAN_TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	setString("MERIDIAN_TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	setBool("MERIDIAN_TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	setString("MERIDIAN_TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
}

func setString(key string, dst *string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func setInt(key string, dst *int) {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func setBool(key string, dst *bool) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func setDuration(key string, dst *time.Duration) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
