package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/basket/go-canvas/internal/canvas"
	"github.com/basket/go-canvas/internal/config"
	"github.com/basket/go-canvas/internal/graph"
	otelPkg "github.com/basket/go-canvas/internal/otel"
	"github.com/basket/go-canvas/internal/snapshot"
	"github.com/basket/go-canvas/internal/telemetry"
)

// app is the wired stack shared by every subcommand that talks to the
// store: config, logger, telemetry provider, driver, transaction manager,
// snapshot manager, and the canvas itself.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	logCloser io.Closer
	provider  *otelPkg.Provider
	driver    *graph.Neo4jDriver
	manager   *graph.Manager
	snapshots *snapshot.Manager
	canvas    *canvas.Canvas
}

// openApp loads config and brings up the full stack, verifying store
// connectivity before returning. Callers must Close the returned app.
func openApp(ctx context.Context, quiet bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, closer, err := telemetry.NewLogger(cfg.HomeDir, cfg.LogLevel, quiet)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	slog.SetDefault(logger)

	provider, err := otelPkg.Init(ctx, otelPkg.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Exporter:    cfg.Telemetry.Exporter,
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		SampleRate:  cfg.Telemetry.SampleRate,
	})
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	var metrics *otelPkg.Metrics
	if cfg.Telemetry.Enabled {
		metrics, err = otelPkg.NewMetrics(provider.Meter)
		if err != nil {
			_ = provider.Shutdown(ctx)
			_ = closer.Close()
			return nil, fmt.Errorf("init metrics: %w", err)
		}
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Neo4j.ConnectTimeout())
	defer cancel()
	driver, err := graph.Connect(connectCtx, graph.ConnOptions{
		URI:         cfg.Neo4j.URI,
		Username:    cfg.Neo4j.Username,
		Password:    cfg.Neo4j.Password,
		Database:    cfg.Neo4j.Database,
		MaxPoolSize: cfg.Neo4j.MaxConnectionPoolSize,
	})
	if err != nil {
		_ = provider.Shutdown(ctx)
		_ = closer.Close()
		return nil, fmt.Errorf("connect %s: %w", cfg.Neo4j.URI, err)
	}

	manager := graph.NewManager(graph.ManagerConfig{
		Driver: driver,
		Breaker: graph.BreakerConfig{
			FailureThreshold:  cfg.Breaker.FailureThreshold,
			MinimumThroughput: cfg.Breaker.MinimumThroughput,
			RecoveryTimeout:   cfg.Breaker.RecoveryTimeout(),
		},
		Strategy: graph.StrategyByName(cfg.Retry.Strategy),
		Logger:   logger,
		Metrics:  metrics,
	})

	snapshots := snapshot.NewManager(snapshot.Config{
		Graph:     manager,
		Dir:       cfg.Snapshot.Dir,
		BatchSize: cfg.Snapshot.BatchSize,
		Logger:    logger,
		Metrics:   metrics,
	})

	cv := canvas.New(canvas.Options{
		Manager:   manager,
		Snapshots: snapshots,
		Logger:    logger,
		Metrics:   metrics,
	})

	logger.Debug("stack wired", "uri", cfg.Neo4j.URI, "database", cfg.Neo4j.Database)
	return &app{
		cfg:       cfg,
		logger:    logger,
		logCloser: closer,
		provider:  provider,
		driver:    driver,
		manager:   manager,
		snapshots: snapshots,
		canvas:    cv,
	}, nil
}

// Close tears the stack down in reverse wiring order. A fresh context is
// used so shutdown still completes after the run context is cancelled.
func (a *app) Close() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.canvas.Close()
	if err := a.driver.Close(shutdownCtx); err != nil {
		a.logger.Warn("driver close", "error", err)
	}
	if err := a.provider.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("telemetry shutdown", "error", err)
	}
	_ = a.logCloser.Close()
}
