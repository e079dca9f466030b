package otel

import (
	"context"
	"testing"
)

func TestNewMetrics(t *testing.T) {
	p, err := Init(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer p.Shutdown(context.Background())

	m, err := NewMetrics(p.Meter)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	if m.TxDuration == nil || m.TxTotal == nil || m.RetryAttempts == nil {
		t.Fatal("expected tx instruments to be created")
	}
	if m.BreakerRejects == nil || m.BreakerState == nil {
		t.Fatal("expected breaker instruments to be created")
	}
	if m.PheromonesSwept == nil || m.SnapshotDuration == nil || m.AutoSaveFailures == nil {
		t.Fatal("expected housekeeping instruments to be created")
	}

	// Recording on noop instruments must not panic.
	m.TxTotal.Add(context.Background(), 1)
	m.TxDuration.Record(context.Background(), 0.01)
	m.BreakerState.Record(context.Background(), 0)
}
