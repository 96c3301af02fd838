package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLiveness(t *testing.T) {
	c := New(0)
	if got := c.Liveness(context.Background()); got.Status != "ok" {
		t.Errorf("liveness status = %q, want ok", got.Status)
	}
}

func TestReadinessAllHealthy(t *testing.T) {
	c := New(time.Second)
	c.Register("versions", func(ctx context.Context) error { return nil })
	c.Register("audit", func(ctx context.Context) error { return nil })

	got := c.Readiness(context.Background())
	if got.Status != "ready" {
		t.Errorf("status = %q, want ready", got.Status)
	}
	if len(got.Checks) != 2 {
		t.Errorf("checks = %d, want 2", len(got.Checks))
	}
}

func TestReadinessFailingComponent(t *testing.T) {
	c := New(time.Second)
	c.Register("versions", func(ctx context.Context) error { return nil })
	c.Register("audit", func(ctx context.Context) error { return errors.New("database is locked") })

	got := c.Readiness(context.Background())
	if got.Status != "unhealthy" {
		t.Errorf("status = %q, want unhealthy", got.Status)
	}
	if got.Checks["audit"].Message != "database is locked" {
		t.Errorf("audit message = %q", got.Checks["audit"].Message)
	}
	if got.Checks["versions"].Status != "ok" {
		t.Errorf("versions status = %q, want ok", got.Checks["versions"].Status)
	}
}

func TestReadinessNoChecks(t *testing.T) {
	if got := New(0).Readiness(context.Background()); got.Status != "ready" {
		t.Errorf("status = %q, want ready with no checks", got.Status)
	}
}
