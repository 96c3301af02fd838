package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  listen_address: \"0.0.0.0:9090\"\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:9090" {
		t.Errorf("listen address = %q, want 0.0.0.0:9090", cfg.Server.ListenAddress)
	}
	if cfg.Server.ReadTimeout != DefaultReadTimeout {
		t.Errorf("read timeout = %v, want %v", cfg.Server.ReadTimeout, DefaultReadTimeout)
	}
	if cfg.Storage.Backend != DefaultStorageBackend {
		t.Errorf("storage backend = %q, want %q", cfg.Storage.Backend, DefaultStorageBackend)
	}
	if cfg.Audit.WriteTimeout != DefaultAuditWriteTimeout {
		t.Errorf("audit write timeout = %v, want %v", cfg.Audit.WriteTimeout, DefaultAuditWriteTimeout)
	}
	if cfg.Engine.DefaultEnvironment != DefaultEngineEnvironment {
		t.Errorf("engine environment = %q, want %q", cfg.Engine.DefaultEnvironment, DefaultEngineEnvironment)
	}
	if cfg.Efficacy.Schedule != DefaultEfficacySchedule {
		t.Errorf("efficacy schedule = %q, want %q", cfg.Efficacy.Schedule, DefaultEfficacySchedule)
	}
	if !cfg.Telemetry.Metrics.Enabled || cfg.Telemetry.Metrics.Path != DefaultMetricsPath {
		t.Errorf("metrics defaults = %+v, want enabled at %s", cfg.Telemetry.Metrics, DefaultMetricsPath)
	}
}

func TestLoadConfigFullFile(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_address: "127.0.0.1:8081"
  read_timeout: 10s
storage:
  backend: memory
audit:
  backend: memory
  write_timeout: 2s
engine:
  default_environment: STAGING
  evaluation_timeout: 250ms
seed:
  enabled: true
  path: ./defs
  environment: STAGING
  watch: true
efficacy:
  enabled: true
  schedule: "*/15 * * * *"
  window: 72h
telemetry:
  logging:
    level: debug
    format: text
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("read timeout = %v, want 10s", cfg.Server.ReadTimeout)
	}
	if cfg.Storage.Backend != "memory" || cfg.Audit.Backend != "memory" {
		t.Errorf("backends = %q/%q, want memory/memory", cfg.Storage.Backend, cfg.Audit.Backend)
	}
	if cfg.Engine.EvaluationTimeout != 250*time.Millisecond {
		t.Errorf("evaluation timeout = %v, want 250ms", cfg.Engine.EvaluationTimeout)
	}
	if !cfg.Seed.Enabled || !cfg.Seed.Watch || cfg.Seed.Environment != "STAGING" {
		t.Errorf("seed = %+v, want enabled+watch in STAGING", cfg.Seed)
	}
	if cfg.Efficacy.Window != 72*time.Hour {
		t.Errorf("efficacy window = %v, want 72h", cfg.Efficacy.Window)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: redis
audit:
  backend: s3
engine:
  default_environment: QA
telemetry:
  logging:
    level: verbose
`)

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected validation failure")
	}
	for _, want := range []string{
		"storage.backend",
		"audit.backend",
		"engine.default_environment",
		"telemetry.logging.level",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}

func TestValidateEfficacySchedule(t *testing.T) {
	path := writeConfig(t, "efficacy:\n  enabled: true\n  schedule: \"not a cron\"\n")
	if _, err := LoadConfig(path); err == nil || !strings.Contains(err.Error(), "efficacy.schedule") {
		t.Fatalf("expected efficacy.schedule error, got %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  listen_address: \"127.0.0.1:8080\"\n")

	t.Setenv("MERIDIAN_SERVER_LISTEN_ADDRESS", "0.0.0.0:7070")
	t.Setenv("MERIDIAN_STORAGE_BACKEND", "memory")
	t.Setenv("MERIDIAN_AUDIT_WRITE_TIMEOUT", "9s")
	t.Setenv("MERIDIAN_SEED_ENABLED", "true")
	t.Setenv("MERIDIAN_TELEMETRY_LOGGING_LEVEL", "warn")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides failed: %v", err)
	}
	if cfg.Server.ListenAddress != "0.0.0.0:7070" {
		t.Errorf("listen address = %q, want env override", cfg.Server.ListenAddress)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("storage backend = %q, want memory", cfg.Storage.Backend)
	}
	if cfg.Audit.WriteTimeout != 9*time.Second {
		t.Errorf("audit write timeout = %v, want 9s", cfg.Audit.WriteTimeout)
	}
	if !cfg.Seed.Enabled {
		t.Error("seed.enabled not overridden")
	}
	if cfg.Telemetry.Logging.Level != "warn" {
		t.Errorf("log level = %q, want warn", cfg.Telemetry.Logging.Level)
	}
}

func TestEnvOverrideInvalidValueRejectedByValidation(t *testing.T) {
	path := writeConfig(t, "server:\n  listen_address: \"127.0.0.1:8080\"\n")
	t.Setenv("MERIDIAN_ENGINE_DEFAULT_ENVIRONMENT", "SANDBOX")

	if _, err := LoadConfigWithEnvOverrides(path); err == nil {
		t.Fatal("expected validation failure for bad environment override")
	}
}

func TestApplyDefaultsIsIdempotent(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)
	first := cfg
	ApplyDefaults(&cfg)
	if cfg != first {
		t.Error("ApplyDefaults changed an already-defaulted config")
	}
}
