package decision

import (
	"testing"
	"time"
)

func TestMarkExecuted(t *testing.T) {
	d := Decision{Status: StatusApproved}
	now := time.Now()

	d.MarkExecuted("fixed disk space", now)

	if d.ExecutedAt == nil || !d.ExecutedAt.Equal(now) {
		t.Fatalf("expected executed_at to be set to now")
	}
	if d.ExecutionResult != "fixed disk space" {
		t.Fatalf("expected execution result to be recorded, got %q", d.ExecutionResult)
	}
}
