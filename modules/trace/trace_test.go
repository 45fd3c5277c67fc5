package trace

import (
	"testing"
)

func TestTrackerNoopWhenDisabled(t *testing.T) {
	tr := NewTracker(false)
	tr.StepNext("step %d", 1) // must not panic, must not touch the logger
}

func TestTrackerDebugMode(t *testing.T) {
	tr := NewTracker(true)
	tr.StepNext("loaded %d loose objects", 3)
}

func TestErrorfReturnsPlainError(t *testing.T) {
	err := Errorf("boom: %d", 42)
	if err == nil || err.Error() != "boom: 42" {
		t.Fatalf("unexpected error: %v", err)
	}
}
