// Package health aggregates liveness and readiness checks for the HTTP API.
// Components register named check functions (typically database pings); the
// server exposes the aggregate on /healthz and /readyz.
package health

import (
	"context"
	"sync"
	"time"
)

// CheckFunc reports on one component. It returns nil when the component is
// healthy.
type CheckFunc func(ctx context.Context) error

// CheckResult is the outcome of a single component check.
type CheckResult struct {
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	Duration int64  `json:"duration_ms"`
}

// Status is the aggregate health of the system.
type Status struct {
	Status    string                 `json:"status"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Checker runs registered component checks.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]CheckFunc
	timeout time.Duration
}

// New creates a checker. A zero timeout defaults to 5 seconds per check.
func New(timeout time.Duration) *Checker {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Checker{
		checks:  make(map[string]CheckFunc),
		timeout: timeout,
	}
}

// Register adds a named component check, replacing any existing one.
func (c *Checker) Register(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Liveness reports process liveness. It never runs component checks.
func (c *Checker) Liveness(ctx context.Context) Status {
	return Status{Status: "ok", Timestamp: time.Now().UTC()}
}

// Readiness runs every registered check and aggregates the results. The
// aggregate status is "ready" only when all components pass.
func (c *Checker) Readiness(ctx context.Context) Status {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, fn := range c.checks {
		checks[name] = fn
	}
	c.mu.RUnlock()

	status := Status{
		Status:    "ready",
		Checks:    make(map[string]CheckResult, len(checks)),
		Timestamp: time.Now().UTC(),
	}

	for name, fn := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
		start := time.Now()
		err := fn(checkCtx)
		cancel()

		result := CheckResult{
			Status:   "ok",
			Duration: time.Since(start).Milliseconds(),
		}
		if err != nil {
			result.Status = "unhealthy"
			result.Message = err.Error()
			status.Status = "unhealthy"
		}
		status.Checks[name] = result
	}
	return status
}
