package main

import (
	"context"
	"fmt"
	"os"
	"time"
)

const snapshotTimeout = 5 * time.Minute

func runSnapshotCommand(ctx context.Context, args []string, quiet bool) int {
	if len(args) > 1 {
		fmt.Fprintln(os.Stderr, "usage: canvas snapshot [path]")
		return 2
	}

	app, err := openApp(ctx, quiet)
	if err != nil {
		fmt.Fprintf(os.Stderr, "snapshot: %v\n", err)
		return 1
	}
	defer app.Close()

	saveCtx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	if len(args) == 1 {
		stats, err := app.snapshots.Save(saveCtx, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "snapshot: %v\n", err)
			return 1
		}
		fmt.Printf("snapshot written to %s (%d nodes, %d relationships)\n",
			args[0], stats.Nodes, stats.Relationships)
		return 0
	}

	path, err := app.snapshots.CreateSnapshot(saveCtx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "snapshot: %v\n", err)
		return 1
	}
	fmt.Printf("snapshot written to %s\n", path)
	return 0
}

func runRestoreCommand(ctx context.Context, args []string, quiet bool) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: canvas restore <path>")
		return 2
	}
	path := args[0]
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintf(os.Stderr, "restore: %v\n", err)
		return 1
	}

	app, err := openApp(ctx, quiet)
	if err != nil {
		fmt.Fprintf(os.Stderr, "restore: %v\n", err)
		return 1
	}
	defer app.Close()

	loadCtx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()
	stats, err := app.snapshots.Load(loadCtx, path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "restore: %v\n", err)
		return 1
	}
	fmt.Printf("graph restored from %s (%d nodes, %d relationships)\n",
		path, stats.Nodes, stats.Relationships)
	return 0
}
