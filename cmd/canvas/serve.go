package main

import (
	"context"
	"fmt"
	"os"
	"time"
)

// runServeCommand runs the canvas as a long-lived process: schema is
// initialized on startup and auto-save runs until the process is signalled.
func runServeCommand(ctx context.Context, args []string) int {
	if len(args) != 0 {
		fmt.Fprintln(os.Stderr, "usage: canvas serve")
		return 2
	}

	app, err := openApp(ctx, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "serve: %v\n", err)
		return 1
	}
	defer app.Close()

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = app.canvas.InitializeSchema(initCtx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "serve: %v\n", err)
		return 1
	}

	// A cron schedule takes precedence over a fixed interval when both are
	// configured.
	switch {
	case app.cfg.Snapshot.AutoSaveSchedule != "":
		if err := app.snapshots.StartAutoSaveSchedule(app.cfg.Snapshot.AutoSaveSchedule); err != nil {
			fmt.Fprintf(os.Stderr, "serve: auto-save schedule: %v\n", err)
			return 1
		}
		app.logger.Info("auto-save scheduled", "schedule", app.cfg.Snapshot.AutoSaveSchedule)
	case app.cfg.Snapshot.AutoSaveInterval() > 0:
		if err := app.snapshots.StartAutoSave(app.cfg.Snapshot.AutoSaveInterval()); err != nil {
			fmt.Fprintf(os.Stderr, "serve: auto-save: %v\n", err)
			return 1
		}
		app.logger.Info("auto-save started", "interval", app.cfg.Snapshot.AutoSaveInterval())
	default:
		app.logger.Info("auto-save disabled; no schedule or interval configured")
	}

	app.logger.Info("canvas running", "version", Version, "uri", app.cfg.Neo4j.URI)
	<-ctx.Done()
	app.logger.Info("shutdown signal received")
	return 0
}
