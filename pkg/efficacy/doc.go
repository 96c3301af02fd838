// Package efficacy measures how well deployed rulesets separate fraud from
// legitimate traffic.
//
// Evaluations recorded on the audit trail are joined with analyst-supplied
// fraud labels to produce confusion matrix counts, precision, recall, F1,
// and accuracy, overall and per rule. A cron-driven scheduler refreshes
// reports in the background; reports can also be computed on demand.
package efficacy
