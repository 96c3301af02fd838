package efficacy

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	"meridian-hq/meridian/pkg/audit"
	"meridian-hq/meridian/pkg/rules"
	"meridian-hq/meridian/pkg/store"
)

// EvaluationRecord is the decision summary written to the audit trail for
// every evaluation. The calculator decodes it back out of the entry's
// changes document.
type EvaluationRecord struct {
	TransactionID  string            `json:"transactionId"`
	Environment    rules.Environment `json:"environment"`
	FinalAction    rules.ActionType  `json:"finalAction"`
	Score          int               `json:"score"`
	TriggeredRules []string          `json:"triggeredRules"`
}

// Calculator computes efficacy reports by joining evaluation records from
// the audit trail with ground-truth labels.
type Calculator struct {
	trail  audit.Storage
	labels LabelStore
	logger *slog.Logger
}

// NewCalculator creates an efficacy calculator.
func NewCalculator(trail audit.Storage, labels LabelStore) *Calculator {
	return &Calculator{
		trail:  trail,
		labels: labels,
		logger: slog.Default().With("component", "efficacy"),
	}
}

// Report computes a ruleset's efficacy over the given window. Evaluations
// without labels count toward the evaluation total but not the metrics.
func (c *Calculator) Report(ctx context.Context, rulesetID string, env rules.Environment, start, end time.Time) (*Report, error) {
	report := &Report{
		RulesetID:   rulesetID,
		Environment: env,
		WindowStart: start,
		WindowEnd:   end,
		GeneratedAt: time.Now().UTC(),
	}

	entries, errCh, err := c.trail.QueryStream(ctx, &audit.Query{
		Action:     audit.ActionEvaluate,
		EntityType: string(store.EntityTypeRuleset),
		EntityID:   rulesetID,
		StartTime:  &start,
		EndTime:    &end,
		SortOrder:  "asc",
		Limit:      -1,
	})
	if err != nil {
		return nil, err
	}

	perRule := make(map[string]*RulePerformance)

	for entry := range entries {
		var rec EvaluationRecord
		if err := json.Unmarshal([]byte(entry.Changes), &rec); err != nil {
			c.logger.Warn("skipping undecodable evaluation record", "entry_id", entry.ID, "error", err)
			continue
		}
		if rec.Environment != env {
			continue
		}
		report.Evaluations++

		label, err := c.labels.Get(ctx, rec.TransactionID)
		if err != nil {
			return nil, err
		}
		if label == nil {
			continue
		}
		report.Labeled++

		fraud := label.Label == LabelFraud
		classify(&report.Metrics, flagged(rec.FinalAction), fraud)

		for _, ruleID := range rec.TriggeredRules {
			rp, ok := perRule[ruleID]
			if !ok {
				rp = &RulePerformance{RuleID: ruleID}
				perRule[ruleID] = rp
			}
			rp.Matches++
			if fraud {
				rp.FraudHits++
			} else {
				rp.FalseHits++
			}
		}
	}
	if err := <-errCh; err != nil {
		return nil, err
	}

	report.Metrics.derive()

	report.Rules = make([]*RulePerformance, 0, len(perRule))
	for _, rp := range perRule {
		if rp.Matches > 0 {
			rp.HitRate = float64(rp.FraudHits) / float64(rp.Matches)
		}
		report.Rules = append(report.Rules, rp)
	}
	sort.Slice(report.Rules, func(i, j int) bool {
		return report.Rules[i].RuleID < report.Rules[j].RuleID
	})

	return report, nil
}

// flagged reports whether the engine's verdict counts as a positive
// prediction.
func flagged(action rules.ActionType) bool {
	return action == rules.ActionBlock || action == rules.ActionReview
}

func classify(m *Metrics, flagged, fraud bool) {
	switch {
	case flagged && fraud:
		m.TruePositives++
	case flagged && !fraud:
		m.FalsePositives++
	case !flagged && fraud:
		m.FalseNegatives++
	default:
		m.TrueNegatives++
	}
}
