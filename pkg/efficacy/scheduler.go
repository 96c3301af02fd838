package efficacy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"meridian-hq/meridian/pkg/rules"
)

// SchedulerConfig configures background report refreshes.
type SchedulerConfig struct {
	// Schedule is a cron expression for report refreshes.
	// Default: hourly on the hour.
	Schedule string

	// Window is how far back each report looks.
	// Default: 7 days.
	Window time.Duration

	// Rulesets lists the ruleset/environment pairs to refresh.
	Rulesets []Target
}

// Target names one ruleset/environment pair to track.
type Target struct {
	RulesetID   string            `json:"rulesetId" yaml:"rulesetId"`
	Environment rules.Environment `json:"environment" yaml:"environment"`
}

// DefaultSchedulerConfig returns the default scheduler configuration.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		Schedule: "0 * * * *",
		Window:   7 * 24 * time.Hour,
	}
}

// Scheduler refreshes efficacy reports on a cron schedule and caches the
// latest report per target for cheap reads.
type Scheduler struct {
	calc   *Calculator
	config *SchedulerConfig
	cron   *cron.Cron
	logger *slog.Logger

	mu      sync.RWMutex
	reports map[string]*Report // key: rulesetID/env
}

// NewScheduler creates a report scheduler. Call Start to begin refreshing.
func NewScheduler(calc *Calculator, config *SchedulerConfig) *Scheduler {
	if config == nil {
		config = DefaultSchedulerConfig()
	}
	if config.Schedule == "" {
		config.Schedule = "0 * * * *"
	}
	if config.Window <= 0 {
		config.Window = 7 * 24 * time.Hour
	}
	return &Scheduler{
		calc:    calc,
		config:  config,
		cron:    cron.New(),
		logger:  slog.Default().With("component", "efficacy.scheduler"),
		reports: make(map[string]*Report),
	}
}

// Start registers the cron job and begins background refreshes. The first
// refresh runs immediately.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.config.Schedule, s.refreshAll); err != nil {
		return fmt.Errorf("invalid efficacy schedule %q: %w", s.config.Schedule, err)
	}
	s.cron.Start()
	go s.refreshAll()

	s.logger.Info("efficacy scheduler started",
		"schedule", s.config.Schedule,
		"window", s.config.Window,
		"targets", len(s.config.Rulesets),
	)
	return nil
}

// Stop halts background refreshes and waits for a running refresh to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Latest returns the most recently cached report for a target, or nil if no
// refresh has completed yet.
func (s *Scheduler) Latest(rulesetID string, env rules.Environment) *Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reports[targetKey(rulesetID, env)]
}

// Refresh computes a fresh report for a target and caches it.
func (s *Scheduler) Refresh(ctx context.Context, rulesetID string, env rules.Environment) (*Report, error) {
	end := time.Now().UTC()
	report, err := s.calc.Report(ctx, rulesetID, env, end.Add(-s.config.Window), end)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.reports[targetKey(rulesetID, env)] = report
	s.mu.Unlock()
	return report, nil
}

func (s *Scheduler) refreshAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	for _, target := range s.config.Rulesets {
		report, err := s.Refresh(ctx, target.RulesetID, target.Environment)
		if err != nil {
			s.logger.Error("efficacy refresh failed",
				"ruleset_id", target.RulesetID,
				"environment", target.Environment,
				"error", err,
			)
			continue
		}
		s.logger.Debug("efficacy report refreshed",
			"ruleset_id", target.RulesetID,
			"environment", target.Environment,
			"evaluations", report.Evaluations,
			"labeled", report.Labeled,
		)
	}
}

func targetKey(rulesetID string, env rules.Environment) string {
	return rulesetID + "/" + string(env)
}
