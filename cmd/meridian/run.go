package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"meridian-hq/meridian/pkg/api"
	"meridian-hq/meridian/pkg/audit"
	"meridian-hq/meridian/pkg/audit/recorder"
	auditstorage "meridian-hq/meridian/pkg/audit/storage"
	"meridian-hq/meridian/pkg/cli"
	"meridian-hq/meridian/pkg/config"
	"meridian-hq/meridian/pkg/efficacy"
	"meridian-hq/meridian/pkg/engine"
	"meridian-hq/meridian/pkg/rules"
	"meridian-hq/meridian/pkg/rules/source"
	"meridian-hq/meridian/pkg/server"
	"meridian-hq/meridian/pkg/store"
	"meridian-hq/meridian/pkg/telemetry/health"
	"meridian-hq/meridian/pkg/telemetry/logging"
	"meridian-hq/meridian/pkg/telemetry/metrics"
	"meridian-hq/meridian/pkg/workflow"
	wfstorage "meridian-hq/meridian/pkg/workflow/storage"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Meridian API server",
	Long: `Start the Meridian API server with the specified configuration.

The server exposes the evaluation, change-request, deployment, audit and
efficacy APIs over HTTP, backed by the configured storage.

Examples:
  # Start with default config
  meridian run

  # Start with custom config
  meridian run --config /etc/meridian/config.yaml

  # Override listen address
  meridian run --listen 0.0.0.0:8080

  # Validate config without starting server
  meridian run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	logger, err := logging.New(cfg.Telemetry.Logging, os.Stdout)
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Meridian v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	// Version store
	versions, err := openVersionStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open version store: %w", err)
	}
	defer versions.Close()

	// Audit trail
	trail, err := openAuditStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to open audit storage: %w", err)
	}
	defer trail.Close()

	auditor := recorder.NewRecorder(trail, &recorder.Config{
		WriteTimeout: cfg.Audit.WriteTimeout,
	})
	fmt.Println("✓ Audit trail initialized")

	// Change request storage and maker-checker workflow
	changes, err := openWorkflowStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to open change request storage: %w", err)
	}
	defer changes.Close()

	wf := workflow.NewService(changes, versions, auditor)

	// Rule engine
	eng, err := engine.New(versions, &engine.Config{
		EvaluationTimeout: cfg.Engine.EvaluationTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	fmt.Println("✓ Rule engine initialized")

	// Cancelled on SIGINT/SIGTERM; stops the watcher and the server.
	ctx := cli.SetupSignalHandler()

	// Seed definitions from disk
	if cfg.Seed.Enabled {
		loader := source.NewLoader(versions, &source.LoaderConfig{
			Path:        cfg.Seed.Path,
			Environment: rules.Environment(cfg.Seed.Environment),
		}, logger)

		published, err := loader.Sync(ctx)
		if err != nil {
			return fmt.Errorf("failed to seed definitions: %w", err)
		}
		fmt.Printf("✓ Definitions seeded from %s (%d published)\n", cfg.Seed.Path, published)

		if cfg.Seed.Watch {
			watcher, err := source.NewWatcher(loader, nil, logger)
			if err != nil {
				return fmt.Errorf("failed to create definition watcher: %w", err)
			}
			go func() {
				if err := watcher.Watch(ctx); err != nil {
					slog.Warn("definition watcher stopped", "error", err)
				}
			}()
			defer watcher.Stop()
			fmt.Println("✓ Definition watcher started")
		}
	}

	// Efficacy reporting
	labels := efficacy.NewMemoryLabelStore()
	var scheduler *efficacy.Scheduler
	if cfg.Efficacy.Enabled {
		calc := efficacy.NewCalculator(trail, labels)
		scheduler = efficacy.NewScheduler(calc, &efficacy.SchedulerConfig{
			Schedule: cfg.Efficacy.Schedule,
			Window:   cfg.Efficacy.Window,
		})
		if err := scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start efficacy scheduler: %w", err)
		}
		defer scheduler.Stop()
		fmt.Println("✓ Efficacy scheduler started")
	}

	// Health checks
	checker := health.New(0)
	checker.Register("versions", func(ctx context.Context) error {
		_, err := versions.ListDeployments(ctx, store.EntityTypeRuleset, "healthcheck")
		return err
	})
	checker.Register("audit", func(ctx context.Context) error {
		_, err := trail.Count(ctx, &audit.Query{Limit: 1})
		return err
	})

	collector := metrics.NewCollector(nil)

	a := api.New(api.Dependencies{
		Engine:    eng,
		Workflow:  wf,
		Versions:  versions,
		Auditor:   auditor,
		Trail:     trail,
		Labels:    labels,
		Scheduler: scheduler,
		Checker:   checker,
		Metrics:   collector,
		Config:    cfg,
		Logger:    logger,
	})

	srv := server.New(&cfg.Server, a.Router(), logger)

	fmt.Println()
	fmt.Printf("✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/healthz\n", cfg.Server.ListenAddress)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Blocks until a shutdown signal or listener error.
	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Println("✓ Server stopped")
	return nil
}

func openVersionStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		return store.NewSQLiteStore(&store.SQLiteConfig{
			Path:        cfg.Storage.VersionsPath,
			BusyTimeout: cfg.Storage.BusyTimeout,
		})
	case "memory":
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Storage.Backend)
	}
}

func openWorkflowStorage(cfg *config.Config) (workflow.Storage, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		return wfstorage.NewSQLiteStorage(&wfstorage.SQLiteConfig{
			Path:        cfg.Storage.ChangesPath,
			BusyTimeout: cfg.Storage.BusyTimeout,
		})
	case "memory":
		return wfstorage.NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Storage.Backend)
	}
}

func openAuditStorage(cfg *config.Config) (audit.Storage, error) {
	switch cfg.Audit.Backend {
	case "sqlite":
		return auditstorage.NewSQLiteStorage(&auditstorage.SQLiteConfig{
			Path: cfg.Audit.SQLitePath,
		})
	case "memory":
		return auditstorage.NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unsupported audit backend: %s", cfg.Audit.Backend)
	}
}
