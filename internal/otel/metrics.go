package otel

import "go.opentelemetry.io/otel/metric"

// Metrics holds all canvas metric instruments.
type Metrics struct {
	TxDuration        metric.Float64Histogram
	TxTotal           metric.Int64Counter
	TxFailures        metric.Int64Counter
	RetryAttempts     metric.Int64Counter
	BreakerRejects    metric.Int64Counter
	BreakerState      metric.Int64Gauge
	PheromonesSwept   metric.Int64Counter
	SnapshotDuration  metric.Float64Histogram
	SnapshotNodes     metric.Int64Counter
	AutoSaveFailures  metric.Int64Counter
	ValidationRejects metric.Int64Counter
}

// NewMetrics creates all metric instruments from the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.TxDuration, err = meter.Float64Histogram("canvas.tx.duration",
		metric.WithDescription("Store transaction duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.TxTotal, err = meter.Int64Counter("canvas.tx.total",
		metric.WithDescription("Store transactions attempted"),
	)
	if err != nil {
		return nil, err
	}

	m.TxFailures, err = meter.Int64Counter("canvas.tx.failures",
		metric.WithDescription("Store transactions that failed after retries"),
	)
	if err != nil {
		return nil, err
	}

	m.RetryAttempts, err = meter.Int64Counter("canvas.tx.retries",
		metric.WithDescription("Retry attempts consumed by store transactions"),
	)
	if err != nil {
		return nil, err
	}

	m.BreakerRejects, err = meter.Int64Counter("canvas.breaker.rejects",
		metric.WithDescription("Calls rejected by the open circuit breaker"),
	)
	if err != nil {
		return nil, err
	}

	m.BreakerState, err = meter.Int64Gauge("canvas.breaker.state",
		metric.WithDescription("Circuit breaker state (0=closed, 1=open, 2=half-open)"),
	)
	if err != nil {
		return nil, err
	}

	m.PheromonesSwept, err = meter.Int64Counter("canvas.pheromone.swept",
		metric.WithDescription("Expired pheromones removed by sweeps"),
	)
	if err != nil {
		return nil, err
	}

	m.SnapshotDuration, err = meter.Float64Histogram("canvas.snapshot.duration",
		metric.WithDescription("Snapshot save duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.SnapshotNodes, err = meter.Int64Counter("canvas.snapshot.nodes",
		metric.WithDescription("Nodes written to snapshot files"),
	)
	if err != nil {
		return nil, err
	}

	m.AutoSaveFailures, err = meter.Int64Counter("canvas.snapshot.autosave_failures",
		metric.WithDescription("Auto-save attempts that failed (logged and swallowed)"),
	)
	if err != nil {
		return nil, err
	}

	m.ValidationRejects, err = meter.Int64Counter("canvas.validation.rejects",
		metric.WithDescription("Writes rejected by pre-store validation"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}
