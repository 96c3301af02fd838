// Package metrics defines the Prometheus instrumentation for Meridian.
//
// All metrics live under the meridian namespace and are registered on a
// private registry so tests can create collectors without colliding on the
// global default registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "meridian"

// Collector holds all Prometheus metrics recorded by the engine, the
// maker-checker workflow, and the audit trail.
type Collector struct {
	registry *prometheus.Registry

	// Evaluation metrics
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	ruleHitsTotal      *prometheus.CounterVec
	degradedRulesTotal *prometheus.CounterVec
	evaluationTimeouts *prometheus.CounterVec

	// Workflow metrics
	changeRequestsTotal *prometheus.CounterVec
	deploymentsTotal    *prometheus.CounterVec

	// Audit metrics
	auditWritesTotal *prometheus.CounterVec
}

// NewCollector creates and registers all Meridian metrics. If registry is
// nil a new private registry is used.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,

		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluations_total",
				Help:      "Total number of transaction evaluations by environment and final action",
			},
			[]string{"environment", "action"},
		),
		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of transaction evaluations in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"environment"},
		),
		ruleHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rule_hits_total",
				Help:      "Total number of rule matches by ruleset and rule",
			},
			[]string{"ruleset", "rule"},
		),
		degradedRulesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "degraded_rules_total",
				Help:      "Total number of rules skipped due to evaluation errors",
			},
			[]string{"ruleset"},
		),
		evaluationTimeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluation_timeouts_total",
				Help:      "Total number of evaluations abandoned at the deadline",
			},
			[]string{"environment"},
		),

		changeRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "change_requests_total",
				Help:      "Total number of change request transitions by action and outcome",
			},
			[]string{"action", "outcome"},
		),
		deploymentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deployments_total",
				Help:      "Total number of environment pointer updates",
			},
			[]string{"environment", "entity_type"},
		),

		auditWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_writes_total",
				Help:      "Total number of audit trail appends by status",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		c.evaluationsTotal,
		c.evaluationDuration,
		c.ruleHitsTotal,
		c.degradedRulesTotal,
		c.evaluationTimeouts,
		c.changeRequestsTotal,
		c.deploymentsTotal,
		c.auditWritesTotal,
	)

	return c
}

// RecordEvaluation records a completed transaction evaluation.
func (c *Collector) RecordEvaluation(environment, action string, duration time.Duration) {
	c.evaluationsTotal.WithLabelValues(environment, action).Inc()
	c.evaluationDuration.WithLabelValues(environment).Observe(duration.Seconds())
}

// RecordRuleHit records a rule match.
func (c *Collector) RecordRuleHit(ruleset, rule string) {
	c.ruleHitsTotal.WithLabelValues(ruleset, rule).Inc()
}

// RecordDegradedRules records rules skipped during one evaluation because
// their conditions could not be evaluated.
func (c *Collector) RecordDegradedRules(ruleset string, count int) {
	if count > 0 {
		c.degradedRulesTotal.WithLabelValues(ruleset).Add(float64(count))
	}
}

// RecordEvaluationTimeout records an evaluation abandoned at its deadline.
func (c *Collector) RecordEvaluationTimeout(environment string) {
	c.evaluationTimeouts.WithLabelValues(environment).Inc()
}

// RecordChangeRequest records a change request transition.
// Action is one of "submit", "approve", "reject"; outcome is "success" or
// "error".
func (c *Collector) RecordChangeRequest(action, outcome string) {
	c.changeRequestsTotal.WithLabelValues(action, outcome).Inc()
}

// RecordDeployment records an environment pointer update.
func (c *Collector) RecordDeployment(environment, entityType string) {
	c.deploymentsTotal.WithLabelValues(environment, entityType).Inc()
}

// RecordAuditWrite records an audit trail append attempt.
func (c *Collector) RecordAuditWrite(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	c.auditWritesTotal.WithLabelValues(status).Inc()
}

// Registry returns the Prometheus registry holding all Meridian metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
