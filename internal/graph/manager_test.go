package graph

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// fakeTx scripts per-query results for manager and repository tests.
type fakeTx struct {
	runFn func(ctx context.Context, query string, params map[string]any) ([]Record, error)
	// queries records every statement executed, in order.
	queries []string
	params  []map[string]any
}

func (f *fakeTx) Run(ctx context.Context, query string, params map[string]any) ([]Record, error) {
	f.queries = append(f.queries, query)
	f.params = append(f.params, params)
	if f.runFn != nil {
		return f.runFn(ctx, query, params)
	}
	return nil, nil
}

// fakeDriver routes work through fakeTx and counts invocations by mode.
type fakeDriver struct {
	tx         *fakeTx
	readCalls  int
	writeCalls int
	failWith   error
}

func (f *fakeDriver) ExecuteRead(ctx context.Context, work TxWork) (any, error) {
	f.readCalls++
	if f.failWith != nil {
		return nil, f.failWith
	}
	return work(ctx, f.tx)
}

func (f *fakeDriver) ExecuteWrite(ctx context.Context, work TxWork) (any, error) {
	f.writeCalls++
	if f.failWith != nil {
		return nil, f.failWith
	}
	return work(ctx, f.tx)
}

func (f *fakeDriver) VerifyConnectivity(ctx context.Context) error { return nil }
func (f *fakeDriver) Close(ctx context.Context) error              { return nil }

func newTestManager(d Driver) *Manager {
	m := NewManager(ManagerConfig{
		Driver:   d,
		Breaker:  BreakerConfig{FailureThreshold: 5, MinimumThroughput: 10},
		Strategy: DefaultStrategy,
		Logger:   discardLogger(),
	})
	// Instant retries in tests.
	m.retryer.sleepFn = func(ctx context.Context, _ time.Duration) error { return nil }
	return m
}

func TestManager_ReadAndWriteRouting(t *testing.T) {
	d := &fakeDriver{tx: &fakeTx{}}
	m := newTestManager(d)
	ctx := context.Background()

	_, err := m.ExecuteRead(ctx, func(ctx context.Context, tx Tx) (any, error) {
		return tx.Run(ctx, "RETURN 1", nil)
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	_, err = m.ExecuteWrite(ctx, func(ctx context.Context, tx Tx) (any, error) {
		return tx.Run(ctx, "CREATE (n)", nil)
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err = m.Execute(ctx, func(ctx context.Context, tx Tx) (any, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("unscoped: %v", err)
	}

	if d.readCalls != 1 {
		t.Errorf("read calls = %d, want 1", d.readCalls)
	}
	// Unscoped routes to the write path.
	if d.writeCalls != 2 {
		t.Errorf("write calls = %d, want 2", d.writeCalls)
	}
}

func TestManager_RetriesTransientThenSucceeds(t *testing.T) {
	attempts := 0
	tx := &fakeTx{runFn: func(ctx context.Context, query string, params map[string]any) ([]Record, error) {
		attempts++
		if attempts < 3 {
			return nil, deadlockErr()
		}
		return []Record{{"ok": int64(1)}}, nil
	}}
	m := newTestManager(&fakeDriver{tx: tx})

	result, err := m.ExecuteWrite(context.Background(), func(ctx context.Context, tx Tx) (any, error) {
		return tx.Run(ctx, "MERGE (n)", nil)
	})
	if err != nil {
		t.Fatalf("expected transparent retry, got %v", err)
	}
	records := result.([]Record)
	if len(records) != 1 {
		t.Fatalf("records = %v", records)
	}

	metrics := m.Metrics()
	if metrics.RetryCount != 2 {
		t.Errorf("retry count = %d, want 2", metrics.RetryCount)
	}
	if metrics.TxCount != 1 {
		t.Errorf("tx count = %d, want 1", metrics.TxCount)
	}
}

func TestManager_ConstraintSurfacesWithoutRetry(t *testing.T) {
	calls := 0
	tx := &fakeTx{runFn: func(ctx context.Context, query string, params map[string]any) ([]Record, error) {
		calls++
		return nil, constraintErr()
	}}
	m := newTestManager(&fakeDriver{tx: tx})

	_, err := m.ExecuteWrite(context.Background(), func(ctx context.Context, tx Tx) (any, error) {
		return tx.Run(ctx, "CREATE (n:Task {id: $id})", map[string]any{"id": "t1"})
	})
	if !IsConstraintViolation(err) {
		t.Fatalf("expected ConstraintError, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestManager_BreakerOpensUnderFailureStorm(t *testing.T) {
	m := newTestManager(&fakeDriver{tx: &fakeTx{}, failWith: errors.New("something entirely novel")})
	ctx := context.Background()

	// Unclassified errors are not retried; each call is one breaker sample.
	for i := 0; i < 10; i++ {
		_, _ = m.ExecuteWrite(ctx, func(ctx context.Context, tx Tx) (any, error) {
			return nil, nil
		})
	}

	if got := m.Breaker().State(); got != StateOpen {
		t.Fatalf("breaker state = %s, want OPEN", got)
	}

	// Next call is rejected before reaching the driver.
	d2 := &fakeDriver{tx: &fakeTx{}}
	m.driver = d2
	_, err := m.ExecuteWrite(ctx, func(ctx context.Context, tx Tx) (any, error) { return nil, nil })
	if !IsCircuitOpen(err) {
		t.Fatalf("expected CircuitOpenError, got %v", err)
	}
	if d2.writeCalls != 0 {
		t.Fatal("driver must not be invoked while breaker is open")
	}
}

func TestManager_ExecuteBatchPreservesInputOrder(t *testing.T) {
	tx := &fakeTx{runFn: func(ctx context.Context, query string, params map[string]any) ([]Record, error) {
		return []Record{{"q": query}}, nil
	}}
	m := newTestManager(&fakeDriver{tx: tx})

	ops := []BatchOp{
		{Type: OpRead, Query: "read-low", Priority: 1},
		{Type: OpWrite, Query: "write-high", Priority: 9},
		{Type: OpRead, Query: "read-high", Priority: 5},
		{Type: OpWrite, Query: "write-low", Priority: 2},
	}
	results := m.ExecuteBatch(context.Background(), ops)

	if len(results) != len(ops) {
		t.Fatalf("results = %d, want %d", len(results), len(ops))
	}
	// One result per input, in input order.
	for i, op := range ops {
		if results[i].Err != nil {
			t.Fatalf("result[%d] err: %v", i, results[i].Err)
		}
		if got := results[i].Records[0]["q"]; got != op.Query {
			t.Errorf("result[%d] = %v, want %q", i, got, op.Query)
		}
	}

	// Execution order: write group first (by descending priority), then reads.
	wantExec := []string{"write-high", "write-low", "read-high", "read-low"}
	if len(tx.queries) != len(wantExec) {
		t.Fatalf("executed = %v", tx.queries)
	}
	for i, q := range wantExec {
		if tx.queries[i] != q {
			t.Errorf("exec[%d] = %q, want %q", i, tx.queries[i], q)
		}
	}
}

func TestManager_ExecuteBatchGroupFailure(t *testing.T) {
	tx := &fakeTx{runFn: func(ctx context.Context, query string, params map[string]any) ([]Record, error) {
		if strings.HasPrefix(query, "write") {
			return nil, errors.New("something entirely novel")
		}
		return []Record{{"q": query}}, nil
	}}
	m := newTestManager(&fakeDriver{tx: tx})

	ops := []BatchOp{
		{Type: OpWrite, Query: "write-1"},
		{Type: OpRead, Query: "read-1"},
		{Type: OpWrite, Query: "write-2"},
	}
	results := m.ExecuteBatch(context.Background(), ops)

	if results[0].Err == nil || results[2].Err == nil {
		t.Fatal("expected write group failure to fail every write op")
	}
	if results[1].Err != nil {
		t.Fatalf("read op should succeed independently: %v", results[1].Err)
	}
}

func TestManager_HealthCheck(t *testing.T) {
	healthy := &fakeDriver{tx: &fakeTx{runFn: func(ctx context.Context, query string, params map[string]any) ([]Record, error) {
		return []Record{{"ok": int64(1)}}, nil
	}}}
	m := newTestManager(healthy)
	if !m.HealthCheck(context.Background()) {
		t.Fatal("expected healthy")
	}

	m2 := newTestManager(&fakeDriver{tx: &fakeTx{}, failWith: errors.New("something entirely novel")})
	if m2.HealthCheck(context.Background()) {
		t.Fatal("expected unhealthy")
	}
}

func TestManager_MetricsAggregation(t *testing.T) {
	m := newTestManager(&fakeDriver{tx: &fakeTx{}})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = m.ExecuteRead(ctx, func(ctx context.Context, tx Tx) (any, error) { return nil, nil })
	}

	metrics := m.Metrics()
	if metrics.TxCount != 3 {
		t.Errorf("tx count = %d, want 3", metrics.TxCount)
	}
	if metrics.TxFailures != 0 {
		t.Errorf("failures = %d, want 0", metrics.TxFailures)
	}
	if metrics.Breaker.State != StateClosed {
		t.Errorf("breaker state = %s", metrics.Breaker.State)
	}
}
