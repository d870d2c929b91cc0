package sysmetrics

import (
	"context"
	"testing"
	"time"
)

func TestNewDefaultsDiskPath(t *testing.T) {
	c := New("")
	if c.DiskPath != "/" {
		t.Errorf("expected default disk path '/', got %q", c.DiskPath)
	}
}

func TestNewKeepsExplicitDiskPath(t *testing.T) {
	c := New("/data")
	if c.DiskPath != "/data" {
		t.Errorf("expected explicit disk path to be kept, got %q", c.DiskPath)
	}
}

func TestCollectReturnsPlausibleValues(t *testing.T) {
	c := New("/")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	m, err := c.Collect(ctx)
	if err != nil {
		t.Fatalf("unexpected error sampling host metrics: %v", err)
	}
	if m.CPUPercent < 0 || m.CPUPercent > 100 {
		t.Errorf("expected cpu percent in [0, 100], got %f", m.CPUPercent)
	}
	if m.MemoryPercent < 0 || m.MemoryPercent > 100 {
		t.Errorf("expected memory percent in [0, 100], got %f", m.MemoryPercent)
	}
	if m.DiskPercent < 0 || m.DiskPercent > 100 {
		t.Errorf("expected disk percent in [0, 100], got %f", m.DiskPercent)
	}
}
