package cli

import (
	"testing"
	"time"
)

func TestSetupSignalHandler(t *testing.T) {
	ctx := SetupSignalHandler()

	// Context should not be cancelled initially
	select {
	case <-ctx.Done():
		t.Error("Context should not be cancelled initially")
	default:
		// Expected
	}

	if ctx.Done() == nil {
		t.Error("Context should have a Done channel")
	}
}

func TestSetupSignalHandlerStaysActive(t *testing.T) {
	ctx := SetupSignalHandler()

	select {
	case <-ctx.Done():
		t.Error("Context cancelled too early")
	case <-time.After(10 * time.Millisecond):
		// Expected - context should still be active
	}
}
