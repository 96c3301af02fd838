package config

import "time"

// Config is the root configuration structure for Meridian.
// It contains all configuration sections for the HTTP API server, the
// versioned entity stores, the audit trail, the maker-checker workflow,
// the decision engine, file-based definition seeding, efficacy reporting,
// and telemetry.
type Config struct {
	// Server contains HTTP API server configuration including listen
	// address, timeouts, and header limits.
	Server ServerConfig `yaml:"server"`

	// Storage contains configuration for the versioned deployment store and
	// the change request store.
	Storage StorageConfig `yaml:"storage"`

	// Audit contains configuration for the append-only audit trail.
	Audit AuditConfig `yaml:"audit"`

	// Workflow contains configuration for the maker-checker change workflow.
	Workflow WorkflowConfig `yaml:"workflow"`

	// Engine contains configuration for transaction evaluation.
	Engine EngineConfig `yaml:"engine"`

	// Seed contains configuration for loading ruleset and dictionary
	// definition files from disk at startup.
	Seed SeedConfig `yaml:"seed"`

	// Efficacy contains configuration for scheduled rule efficacy reporting.
	Efficacy EfficacyConfig `yaml:"efficacy"`

	// Telemetry contains configuration for observability including logging
	// and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP API server.
type ServerConfig struct {
	// ListenAddress is the address and port for the API server to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080", "0.0.0.0:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body. A zero or negative value means no timeout.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. A zero or negative value means no timeout.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled. If IdleTimeout is zero, ReadTimeout is used.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// If requests are still in-flight after this timeout, the server will
	// force shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing the request header's keys and values, including the
	// request line. It does not limit the size of the request body.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// StorageConfig contains configuration for the persistent stores.
type StorageConfig struct {
	// Backend selects where versions, deployments, and change requests are
	// kept. Options: "sqlite", "memory".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// VersionsPath is the SQLite database file for the versioned deployment
	// store when Backend is "sqlite".
	// Default: "./data/versions.db"
	VersionsPath string `yaml:"versions_path"`

	// ChangesPath is the SQLite database file for the change request store
	// when Backend is "sqlite".
	// Default: "./data/changes.db"
	ChangesPath string `yaml:"changes_path"`

	// BusyTimeout is the SQLite busy timeout applied to both databases.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// AuditConfig contains configuration for the audit trail.
type AuditConfig struct {
	// Backend selects audit storage. Options: "sqlite", "memory".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLitePath is the audit database file when Backend is "sqlite".
	// Default: "./data/audit.db"
	SQLitePath string `yaml:"sqlite_path"`

	// WriteTimeout bounds each audit append. A write that cannot complete in
	// time fails, and the mutation it records is rolled back.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// QueryLimit is the default page size for audit queries that do not
	// specify one.
	// Default: 100
	QueryLimit int `yaml:"query_limit"`
}

// WorkflowConfig contains configuration for the maker-checker workflow.
type WorkflowConfig struct {
	// ListLimit is the default page size for change request listings.
	// Default: 50
	ListLimit int `yaml:"list_limit"`
}

// EngineConfig contains configuration for transaction evaluation.
type EngineConfig struct {
	// DefaultEnvironment is the environment evaluated when a request does
	// not name one. Options: "DEV", "STAGING", "PROD".
	// Default: "PROD"
	DefaultEnvironment string `yaml:"default_environment"`

	// EvaluationTimeout bounds a single transaction evaluation. When the
	// deadline passes mid-evaluation the engine returns a timeout error
	// rather than a partial decision.
	// Default: 500ms
	EvaluationTimeout time.Duration `yaml:"evaluation_timeout"`
}

// SeedConfig contains configuration for file-based definition loading.
type SeedConfig struct {
	// Enabled controls whether definition files are loaded at startup.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Path is the file or directory holding ruleset and dictionary YAML
	// definitions.
	// Default: "./definitions"
	Path string `yaml:"path"`

	// Environment is the deployment target seeded definitions are published
	// to. Default: "DEV"
	Environment string `yaml:"environment"`

	// Watch enables automatic republishing when definition files change.
	// Default: false
	Watch bool `yaml:"watch"`
}

// EfficacyConfig contains configuration for scheduled efficacy reporting.
type EfficacyConfig struct {
	// Enabled controls whether the report scheduler runs.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Schedule is the cron expression for report refreshes.
	// Default: "0 * * * *" (hourly)
	Schedule string `yaml:"schedule"`

	// Window is how far back each report looks.
	// Default: 168h (7 days)
	Window time.Duration `yaml:"window"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level.
	// Options: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format selects the log output format.
	// Options: "json", "text".
	// Default: "json"
	Format string `yaml:"format"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether the metrics endpoint is served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path the metrics endpoint is served on.
	// Default: "/metrics"
	Path string `yaml:"path"`
}
