// Package canvas is the shared knowledge store used by agents to
// coordinate: typed entity repositories, decaying pheromone signals and
// graph lifecycle management, all routed through one hardened transaction
// pipeline.
package canvas

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/basket/go-canvas/internal/graph"
	otelPkg "github.com/basket/go-canvas/internal/otel"
	"github.com/basket/go-canvas/internal/snapshot"
)

// Canvas composes the entity repositories over a single transaction
// manager. All store traffic flows through manager's breaker/retry
// pipeline; the canvas itself adds no locking.
type Canvas struct {
	manager   *graph.Manager
	snapshots *snapshot.Manager
	logger    *slog.Logger
	metrics   *otelPkg.Metrics

	nowFn func() time.Time
	newID func() string
}

// Options wires a Canvas. Snapshots is optional; auto-save control returns
// an error without it. Metrics instruments are optional.
type Options struct {
	Manager   *graph.Manager
	Snapshots *snapshot.Manager
	Logger    *slog.Logger
	Metrics   *otelPkg.Metrics
}

// New creates a Canvas over the given transaction manager.
func New(opts Options) *Canvas {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Canvas{
		manager:   opts.Manager,
		snapshots: opts.Snapshots,
		logger:    logger.With("component", "canvas"),
		metrics:   opts.Metrics,
		nowFn:     time.Now,
		newID:     uuid.NewString,
	}
}

// invalid passes a validation error through while counting the reject.
func (c *Canvas) invalid(err error) error {
	if err != nil && c.metrics != nil {
		c.metrics.ValidationRejects.Add(context.Background(), 1)
	}
	return err
}

// entityLabels lists every node label the canvas manages. Schema
// constraints and snapshot metadata both iterate this set.
var entityLabels = []string{
	"Project",
	"Task",
	"Agent",
	"Pheromone",
	"Contract",
	"CodeModule",
	"Test",
	"ArchitecturalDecision",
	"Failure",
	"Diagnostic",
	"Pattern",
	"Artifact",
	"Prototype",
}

// InitializeSchema declares a uniqueness constraint on id for every entity
// label. Idempotent; safe to run on every startup.
func (c *Canvas) InitializeSchema(ctx context.Context) error {
	_, err := c.manager.ExecuteWrite(ctx, func(ctx context.Context, tx graph.Tx) (any, error) {
		for _, label := range entityLabels {
			query := fmt.Sprintf(
				"CREATE CONSTRAINT canvas_%s_id IF NOT EXISTS FOR (n:%s) REQUIRE n.id IS UNIQUE",
				snakeLabel(label), label,
			)
			if _, err := tx.Run(ctx, query, nil); err != nil {
				return nil, fmt.Errorf("constraint for %s: %w", label, err)
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	c.logger.Info("schema initialized", "labels", len(entityLabels))
	return nil
}

func snakeLabel(label string) string {
	out := make([]byte, 0, len(label)+4)
	for i := 0; i < len(label); i++ {
		ch := label[i]
		if ch >= 'A' && ch <= 'Z' {
			if i > 0 {
				out = append(out, '_')
			}
			ch += 'a' - 'A'
		}
		out = append(out, ch)
	}
	return string(out)
}

// Close stops background work. The driver itself is owned by the caller
// that constructed the manager.
func (c *Canvas) Close() {
	if c.snapshots != nil {
		c.snapshots.StopAutoSave()
	}
	c.logger.Info("canvas closed")
}

// StartAutoSave begins periodic best-effort snapshots at the given
// interval.
func (c *Canvas) StartAutoSave(interval time.Duration) error {
	if c.snapshots == nil {
		return errors.New("start auto-save: snapshotting not configured")
	}
	return c.snapshots.StartAutoSave(interval)
}

// StopAutoSave halts periodic snapshots. Safe when auto-save never
// started.
func (c *Canvas) StopAutoSave() {
	if c.snapshots != nil {
		c.snapshots.StopAutoSave()
	}
}

// HealthCheck reports whether a trivial read currently succeeds through
// the full pipeline.
func (c *Canvas) HealthCheck(ctx context.Context) bool {
	return c.manager.HealthCheck(ctx)
}

// Metrics returns the transaction manager's aggregate metrics.
func (c *Canvas) Metrics() graph.ManagerMetrics {
	return c.manager.Metrics()
}

// read runs a single statement in a read transaction and returns its
// records.
func (c *Canvas) read(ctx context.Context, query string, params map[string]any) ([]graph.Record, error) {
	result, err := c.manager.ExecuteRead(ctx, func(ctx context.Context, tx graph.Tx) (any, error) {
		return tx.Run(ctx, query, params)
	})
	if err != nil {
		return nil, err
	}
	records, _ := result.([]graph.Record)
	return records, nil
}

// write runs a single statement in a write transaction and returns its
// records.
func (c *Canvas) write(ctx context.Context, query string, params map[string]any) ([]graph.Record, error) {
	result, err := c.manager.ExecuteWrite(ctx, func(ctx context.Context, tx graph.Tx) (any, error) {
		return tx.Run(ctx, query, params)
	})
	if err != nil {
		return nil, err
	}
	records, _ := result.([]graph.Record)
	return records, nil
}
