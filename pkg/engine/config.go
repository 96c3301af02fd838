package engine

import (
	"fmt"
	"time"
)

// Config contains ruleset engine configuration.
type Config struct {
	// EvaluationTimeout bounds a single Decide call. A caller-supplied
	// context deadline tighter than this wins. Zero disables the
	// engine-side bound.
	// Default: 2s
	EvaluationTimeout time.Duration

	// DefaultScoreThreshold applies to rulesets that do not set their own
	// ScoreThreshold. Zero disables score-based review for such rulesets.
	DefaultScoreThreshold int

	// MaxRules rejects degenerate ruleset versions with more rules than
	// this at evaluation time.
	// Default: 1000
	MaxRules int
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		EvaluationTimeout:     2 * time.Second,
		DefaultScoreThreshold: 0,
		MaxRules:              1000,
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.EvaluationTimeout < 0 {
		return fmt.Errorf("evaluation timeout must not be negative")
	}
	if c.DefaultScoreThreshold < 0 {
		return fmt.Errorf("default score threshold must not be negative")
	}
	if c.MaxRules <= 0 {
		return fmt.Errorf("max rules must be positive")
	}
	return nil
}
