package graph

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	otelPkg "github.com/basket/go-canvas/internal/otel"
)

// OpType tags a batch operation as read or write.
type OpType string

const (
	OpRead  OpType = "READ"
	OpWrite OpType = "WRITE"
)

// BatchOp is one operation in a batch: a parameterized query plus routing
// and ordering hints.
type BatchOp struct {
	Type   OpType
	Query  string
	Params map[string]any
	// Priority orders execution within the write and read groups; higher runs
	// first. Result order is unaffected.
	Priority int
}

// BatchResult is the outcome of one batch operation, at the same index as
// its input.
type BatchResult struct {
	Records []Record
	Err     error
}

// ManagerMetrics aggregates breaker state and transaction counters.
type ManagerMetrics struct {
	Breaker      BreakerMetrics
	TxCount      int64
	TxFailures   int64
	RetryCount   int64
	TotalLatency time.Duration
}

// Manager is the single chokepoint for all store access: every call flows
// through circuit breaker admission, then retry-classified execution, then
// the underlying read or write transaction.
type Manager struct {
	driver  Driver
	breaker *Breaker
	retryer *Retryer
	logger  *slog.Logger
	metrics *otelPkg.Metrics

	mu           sync.Mutex
	txCount      int64
	txFailures   int64
	retryCount   int64
	totalLatency time.Duration
}

// ManagerConfig wires a Manager.
type ManagerConfig struct {
	Driver   Driver
	Breaker  BreakerConfig
	Strategy Strategy
	Logger   *slog.Logger
	// Metrics instruments are optional; nil disables instrument recording.
	Metrics *otelPkg.Metrics
}

// NewManager creates a transaction manager over the given driver.
func NewManager(cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Strategy.Name == "" {
		cfg.Strategy = DefaultStrategy
	}
	m := &Manager{
		driver:  cfg.Driver,
		breaker: NewBreaker(cfg.Breaker),
		retryer: NewRetryer(cfg.Strategy, logger.With("component", "retry")),
		logger:  logger,
		metrics: cfg.Metrics,
	}
	m.retryer.onRetry = m.observeRetry
	return m
}

// Breaker exposes the shared breaker for operational overrides.
func (m *Manager) Breaker() *Breaker { return m.breaker }

// ExecuteRead runs work in a read transaction through the full pipeline.
func (m *Manager) ExecuteRead(ctx context.Context, work TxWork) (any, error) {
	return m.execute(ctx, m.driver.ExecuteRead, work)
}

// ExecuteWrite runs work in a write transaction through the full pipeline.
func (m *Manager) ExecuteWrite(ctx context.Context, work TxWork) (any, error) {
	return m.execute(ctx, m.driver.ExecuteWrite, work)
}

// Execute runs work without a declared access mode. Routed to the write
// path, which is always safe.
func (m *Manager) Execute(ctx context.Context, work TxWork) (any, error) {
	return m.ExecuteWrite(ctx, work)
}

func (m *Manager) execute(ctx context.Context, run func(context.Context, TxWork) (any, error), work TxWork) (any, error) {
	start := time.Now()

	result, err := m.breaker.Execute(ctx, func(ctx context.Context) (any, error) {
		return m.retryer.Execute(ctx, func(ctx context.Context) (any, error) {
			return run(ctx, work)
		})
	})

	m.observe(ctx, time.Since(start), err)
	return result, err
}

func (m *Manager) observe(ctx context.Context, elapsed time.Duration, err error) {
	m.mu.Lock()
	m.txCount++
	m.totalLatency += elapsed
	if err != nil {
		m.txFailures++
	}
	m.mu.Unlock()

	if m.metrics == nil {
		return
	}
	m.metrics.TxTotal.Add(ctx, 1)
	m.metrics.TxDuration.Record(ctx, elapsed.Seconds())
	if err != nil {
		m.metrics.TxFailures.Add(ctx, 1)
		if IsCircuitOpen(err) {
			m.metrics.BreakerRejects.Add(ctx, 1)
		}
	}
	m.metrics.BreakerState.Record(ctx, stateOrdinal(m.breaker.State()))
}

func (m *Manager) observeRetry(class FailureClass, attempt int, delay time.Duration) {
	m.mu.Lock()
	m.retryCount++
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RetryAttempts.Add(context.Background(), 1)
	}
	m.logger.Warn("store operation retry",
		"class", string(class),
		"attempt", attempt,
		"delay", delay,
	)
}

func stateOrdinal(s BreakerState) int64 {
	switch s {
	case StateOpen:
		return 1
	case StateHalfOpen:
		return 2
	default:
		return 0
	}
}

// ExecuteBatch runs a group of operations through the pipeline: writes in
// one write transaction, reads in one read transaction, higher priority
// first within each group. Results are returned in input order, one per
// operation. A failed group transaction fails every operation in it.
func (m *Manager) ExecuteBatch(ctx context.Context, ops []BatchOp) []BatchResult {
	results := make([]BatchResult, len(ops))

	writeIdx := groupIndexes(ops, OpWrite)
	readIdx := groupIndexes(ops, OpRead)

	m.runGroup(ctx, ops, writeIdx, results, m.ExecuteWrite)
	m.runGroup(ctx, ops, readIdx, results, m.ExecuteRead)
	return results
}

// groupIndexes selects indexes of ops with the given type, ordered by
// descending priority (stable on input order). Untagged ops are treated as
// writes, the always-safe routing.
func groupIndexes(ops []BatchOp, t OpType) []int {
	var idx []int
	for i, op := range ops {
		opType := op.Type
		if opType != OpRead {
			opType = OpWrite
		}
		if opType == t {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return ops[idx[a]].Priority > ops[idx[b]].Priority
	})
	return idx
}

func (m *Manager) runGroup(ctx context.Context, ops []BatchOp, idx []int, results []BatchResult, run func(context.Context, TxWork) (any, error)) {
	if len(idx) == 0 {
		return
	}

	type opOutcome struct {
		index   int
		records []Record
	}

	outcome, err := run(ctx, func(ctx context.Context, tx Tx) (any, error) {
		var outcomes []opOutcome
		for _, i := range idx {
			records, err := tx.Run(ctx, ops[i].Query, ops[i].Params)
			if err != nil {
				return nil, err
			}
			outcomes = append(outcomes, opOutcome{index: i, records: records})
		}
		return outcomes, nil
	})
	if err != nil {
		for _, i := range idx {
			results[i] = BatchResult{Err: err}
		}
		return
	}
	for _, o := range outcome.([]opOutcome) {
		results[o.index] = BatchResult{Records: o.records}
	}
}

// HealthCheck attempts a trivial read through the same pipeline all
// operations use. Returns false on any failure, including an open breaker.
func (m *Manager) HealthCheck(ctx context.Context) bool {
	_, err := m.ExecuteRead(ctx, func(ctx context.Context, tx Tx) (any, error) {
		return tx.Run(ctx, "RETURN 1 AS ok", nil)
	})
	if err != nil {
		m.logger.Warn("health check failed", "error", err)
		return false
	}
	return true
}

// Metrics returns aggregate pipeline metrics.
func (m *Manager) Metrics() ManagerMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ManagerMetrics{
		Breaker:      m.breaker.Metrics(),
		TxCount:      m.txCount,
		TxFailures:   m.txFailures,
		RetryCount:   m.retryCount,
		TotalLatency: m.totalLatency,
	}
}
