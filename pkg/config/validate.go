package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"meridian-hq/meridian/pkg/rules"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)
	errs = append(errs, validateEngine(&cfg.Engine)...)
	errs = append(errs, validateSeed(&cfg.Seed)...)
	errs = append(errs, validateEfficacy(&cfg.Efficacy)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.read_timeout",
			Message: "read timeout must not be negative",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.write_timeout",
			Message: "write timeout must not be negative",
		})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.idle_timeout",
			Message: "idle timeout must not be negative",
		})
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes must not be negative",
		})
	}
	return errs
}

func validateStorage(cfg *StorageConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "sqlite":
		if cfg.VersionsPath == "" {
			errs = append(errs, FieldError{
				Field:   "storage.versions_path",
				Message: "versions database path is required for sqlite backend",
			})
		}
		if cfg.ChangesPath == "" {
			errs = append(errs, FieldError{
				Field:   "storage.changes_path",
				Message: "changes database path is required for sqlite backend",
			})
		}
	case "memory":
	default:
		errs = append(errs, FieldError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("unknown backend %q (expected sqlite or memory)", cfg.Backend),
		})
	}
	return errs
}

func validateAudit(cfg *AuditConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "sqlite":
		if cfg.SQLitePath == "" {
			errs = append(errs, FieldError{
				Field:   "audit.sqlite_path",
				Message: "audit database path is required for sqlite backend",
			})
		}
	case "memory":
	default:
		errs = append(errs, FieldError{
			Field:   "audit.backend",
			Message: fmt.Sprintf("unknown backend %q (expected sqlite or memory)", cfg.Backend),
		})
	}
	if cfg.WriteTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "audit.write_timeout",
			Message: "write timeout must be positive",
		})
	}
	if cfg.QueryLimit < 0 {
		errs = append(errs, FieldError{
			Field:   "audit.query_limit",
			Message: "query limit must not be negative",
		})
	}
	return errs
}

func validateEngine(cfg *EngineConfig) []FieldError {
	var errs []FieldError

	if !validEnvironment(cfg.DefaultEnvironment) {
		errs = append(errs, FieldError{
			Field:   "engine.default_environment",
			Message: fmt.Sprintf("unknown environment %q (expected DEV, STAGING, or PROD)", cfg.DefaultEnvironment),
		})
	}
	if cfg.EvaluationTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "engine.evaluation_timeout",
			Message: "evaluation timeout must be positive",
		})
	}
	return errs
}

func validateSeed(cfg *SeedConfig) []FieldError {
	var errs []FieldError

	if cfg.Enabled && cfg.Path == "" {
		errs = append(errs, FieldError{
			Field:   "seed.path",
			Message: "definition path is required when seeding is enabled",
		})
	}
	if !validEnvironment(cfg.Environment) {
		errs = append(errs, FieldError{
			Field:   "seed.environment",
			Message: fmt.Sprintf("unknown environment %q (expected DEV, STAGING, or PROD)", cfg.Environment),
		})
	}
	return errs
}

func validateEfficacy(cfg *EfficacyConfig) []FieldError {
	var errs []FieldError

	if cfg.Enabled {
		if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "efficacy.schedule",
				Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.Schedule, err),
			})
		}
		if cfg.Window <= 0 {
			errs = append(errs, FieldError{
				Field:   "efficacy.window",
				Message: "report window must be positive",
			})
		}
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("unknown log level %q (expected debug, info, warn, or error)", cfg.Logging.Level),
		})
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("unknown log format %q (expected json or text)", cfg.Logging.Format),
		})
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with /",
		})
	}
	return errs
}

func validEnvironment(env string) bool {
	for _, e := range rules.Environments() {
		if rules.Environment(env) == e {
			return true
		}
	}
	return false
}
