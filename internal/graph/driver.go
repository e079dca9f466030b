// Package graph is the reliability core of the canvas: a thin driver
// adapter over the backing graph store, a circuit breaker, a
// failure-classifying retry policy, and the transaction manager that
// composes them. All higher-level repositories funnel through this package.
package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Record is one row returned by a query, keyed by return alias.
type Record = map[string]any

// Tx runs parameterized queries inside one store transaction.
type Tx interface {
	Run(ctx context.Context, query string, params map[string]any) ([]Record, error)
}

// TxWork is a unit of work executed inside a managed transaction. The store
// may invoke it more than once (driver-level transaction functions retry on
// cluster leader switches), so work must be idempotent within a transaction.
type TxWork func(ctx context.Context, tx Tx) (any, error)

// Driver opens transactions against the backing graph store. It is injected
// into the transaction manager so multiple canvases or test doubles can
// coexist; nothing in this module holds global driver state.
type Driver interface {
	ExecuteRead(ctx context.Context, work TxWork) (any, error)
	ExecuteWrite(ctx context.Context, work TxWork) (any, error)
	VerifyConnectivity(ctx context.Context) error
	Close(ctx context.Context) error
}

// ConnOptions holds the connection settings for the Neo4j driver.
type ConnOptions struct {
	URI      string
	Username string
	Password string
	Database string
	// MaxPoolSize caps the driver connection pool. 0 uses the driver default.
	MaxPoolSize int
}

// Neo4jDriver implements Driver over a Bolt connection pool. One session is
// opened per call and closed before returning; session lifetime never
// escapes a single operation.
type Neo4jDriver struct {
	driver   neo4j.DriverWithContext
	database string
}

// Connect opens a driver against the store and verifies connectivity.
func Connect(ctx context.Context, opts ConnOptions) (*Neo4jDriver, error) {
	driver, err := neo4j.NewDriverWithContext(
		opts.URI,
		neo4j.BasicAuth(opts.Username, opts.Password, ""),
		func(c *neo4j.Config) {
			if opts.MaxPoolSize > 0 {
				c.MaxConnectionPoolSize = opts.MaxPoolSize
			}
		},
	)
	if err != nil {
		return nil, fmt.Errorf("create driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify connectivity: %w", err)
	}
	return &Neo4jDriver{driver: driver, database: opts.Database}, nil
}

// ExecuteRead runs work in a read transaction, routed to a replica when the
// backing store supports it.
func (d *Neo4jDriver) ExecuteRead(ctx context.Context, work TxWork) (any, error) {
	session := d.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: d.database,
	})
	defer session.Close(ctx)
	return session.ExecuteRead(ctx, d.adapt(ctx, work))
}

// ExecuteWrite runs work in a write transaction.
func (d *Neo4jDriver) ExecuteWrite(ctx context.Context, work TxWork) (any, error) {
	session := d.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: d.database,
	})
	defer session.Close(ctx)
	return session.ExecuteWrite(ctx, d.adapt(ctx, work))
}

func (d *Neo4jDriver) adapt(ctx context.Context, work TxWork) neo4j.ManagedTransactionWork {
	return func(tx neo4j.ManagedTransaction) (any, error) {
		return work(ctx, managedTx{tx: tx})
	}
}

// VerifyConnectivity checks the store is reachable.
func (d *Neo4jDriver) VerifyConnectivity(ctx context.Context) error {
	return d.driver.VerifyConnectivity(ctx)
}

// Close releases the connection pool.
func (d *Neo4jDriver) Close(ctx context.Context) error {
	return d.driver.Close(ctx)
}

// managedTx adapts a neo4j managed transaction to the Tx interface,
// collecting results eagerly so no cursor outlives the transaction.
type managedTx struct {
	tx neo4j.ManagedTransaction
}

func (m managedTx) Run(ctx context.Context, query string, params map[string]any) ([]Record, error) {
	result, err := m.tx.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	var records []Record
	for result.Next(ctx) {
		records = append(records, result.Record().AsMap())
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
