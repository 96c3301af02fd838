package efficacy

import (
	"context"
	"time"

	"meridian-hq/meridian/pkg/rules"
)

// Label is an analyst's ground-truth verdict on a transaction.
type Label string

// Transaction labels.
const (
	LabelFraud      Label = "FRAUD"
	LabelLegitimate Label = "LEGITIMATE"
)

// LabeledTransaction pairs a transaction with its ground-truth label.
type LabeledTransaction struct {
	TransactionID string    `json:"transactionId"`
	Label         Label     `json:"label"`
	LabeledBy     string    `json:"labeledBy"`
	LabeledAt     time.Time `json:"labeledAt"`
}

// LabelStore holds ground-truth labels keyed by transaction ID.
// Implementations must be thread-safe.
type LabelStore interface {
	// Set records (or overwrites) a transaction's label.
	Set(ctx context.Context, label *LabeledTransaction) error

	// Get returns the label for a transaction, or nil if none exists.
	Get(ctx context.Context, transactionID string) (*LabeledTransaction, error)

	// All returns every recorded label.
	All(ctx context.Context) ([]*LabeledTransaction, error)
}

// Metrics is a confusion matrix with derived quality measures. A prediction
// is positive when the engine flagged the transaction (BLOCK or REVIEW) and
// negative when it allowed it.
type Metrics struct {
	TruePositives  int `json:"truePositives"`
	FalsePositives int `json:"falsePositives"`
	TrueNegatives  int `json:"trueNegatives"`
	FalseNegatives int `json:"falseNegatives"`

	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Accuracy  float64 `json:"accuracy"`
}

// Total returns the number of labeled evaluations behind the metrics.
func (m *Metrics) Total() int {
	return m.TruePositives + m.FalsePositives + m.TrueNegatives + m.FalseNegatives
}

// derive fills the quality measures from the confusion matrix counts.
// Undefined ratios (zero denominators) stay zero.
func (m *Metrics) derive() {
	if tp := float64(m.TruePositives); tp > 0 {
		m.Precision = tp / float64(m.TruePositives+m.FalsePositives)
		m.Recall = tp / float64(m.TruePositives+m.FalseNegatives)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	if total := m.Total(); total > 0 {
		m.Accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}
}

// RulePerformance breaks efficacy down for a single rule: how often it
// fired, and how often its firing coincided with actual fraud.
type RulePerformance struct {
	RuleID    string `json:"ruleId"`
	Matches   int    `json:"matches"`
	FraudHits int    `json:"fraudHits"` // matches on transactions labeled FRAUD
	FalseHits int    `json:"falseHits"` // matches on transactions labeled LEGITIMATE

	// HitRate is FraudHits / Matches over labeled transactions.
	HitRate float64 `json:"hitRate"`
}

// Report is a ruleset's efficacy over a time window.
type Report struct {
	RulesetID   string            `json:"rulesetId"`
	Environment rules.Environment `json:"environment"`

	WindowStart time.Time `json:"windowStart"`
	WindowEnd   time.Time `json:"windowEnd"`

	// Evaluations counts every evaluation seen in the window; Labeled
	// counts the subset with ground-truth labels, which is what the
	// metrics are computed over.
	Evaluations int `json:"evaluations"`
	Labeled     int `json:"labeled"`

	Metrics Metrics            `json:"metrics"`
	Rules   []*RulePerformance `json:"rules"`

	GeneratedAt time.Time `json:"generatedAt"`
}
