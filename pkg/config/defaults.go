package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// Storage defaults
	DefaultStorageBackend      = "sqlite"
	DefaultStorageVersionsPath = "./data/versions.db"
	DefaultStorageChangesPath  = "./data/changes.db"
	DefaultStorageBusyTimeout  = 5 * time.Second

	// Audit defaults
	DefaultAuditBackend      = "sqlite"
	DefaultAuditSQLitePath   = "./data/audit.db"
	DefaultAuditWriteTimeout = 5 * time.Second
	DefaultAuditQueryLimit   = 100

	// Workflow defaults
	DefaultWorkflowListLimit = 50

	// Engine defaults
	DefaultEngineEnvironment       = "PROD"
	DefaultEngineEvaluationTimeout = 500 * time.Millisecond

	// Seed defaults
	DefaultSeedPath        = "./definitions"
	DefaultSeedEnvironment = "DEV"

	// Efficacy defaults
	DefaultEfficacySchedule = "0 * * * *"
	DefaultEfficacyWindow   = 168 * time.Hour

	// Telemetry defaults
	DefaultLoggingLevel   = "info"
	DefaultLoggingFormat  = "json"
	DefaultMetricsEnabled = true
	DefaultMetricsPath    = "/metrics"
)

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyStorageDefaults(&cfg.Storage)
	applyAuditDefaults(&cfg.Audit)
	applyWorkflowDefaults(&cfg.Workflow)
	applyEngineDefaults(&cfg.Engine)
	applySeedDefaults(&cfg.Seed)
	applyEfficacyDefaults(&cfg.Efficacy)
	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.MaxHeaderBytes == 0 {
		cfg.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
}

func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.Backend == "" {
		cfg.Backend = DefaultStorageBackend
	}
	if cfg.VersionsPath == "" {
		cfg.VersionsPath = DefaultStorageVersionsPath
	}
	if cfg.ChangesPath == "" {
		cfg.ChangesPath = DefaultStorageChangesPath
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = DefaultStorageBusyTimeout
	}
}

func applyAuditDefaults(cfg *AuditConfig) {
	if cfg.Backend == "" {
		cfg.Backend = DefaultAuditBackend
	}
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = DefaultAuditSQLitePath
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultAuditWriteTimeout
	}
	if cfg.QueryLimit == 0 {
		cfg.QueryLimit = DefaultAuditQueryLimit
	}
}

func applyWorkflowDefaults(cfg *WorkflowConfig) {
	if cfg.ListLimit == 0 {
		cfg.ListLimit = DefaultWorkflowListLimit
	}
}

func applyEngineDefaults(cfg *EngineConfig) {
	if cfg.DefaultEnvironment == "" {
		cfg.DefaultEnvironment = DefaultEngineEnvironment
	}
	if cfg.EvaluationTimeout == 0 {
		cfg.EvaluationTimeout = DefaultEngineEvaluationTimeout
	}
}

func applySeedDefaults(cfg *SeedConfig) {
	if cfg.Path == "" {
		cfg.Path = DefaultSeedPath
	}
	if cfg.Environment == "" {
		cfg.Environment = DefaultSeedEnvironment
	}
}

func applyEfficacyDefaults(cfg *EfficacyConfig) {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultEfficacySchedule
	}
	if cfg.Window == 0 {
		cfg.Window = DefaultEfficacyWindow
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLoggingFormat
	}
	// Enabled defaults on only when the metrics section is absent entirely;
	// an explicit enabled: false with a custom path is respected.
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Enabled = DefaultMetricsEnabled
		cfg.Metrics.Path = DefaultMetricsPath
	}
}
