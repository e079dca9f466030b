package main

import (
	"context"
	"fmt"
	"os"
	"time"
)

func runSweepCommand(ctx context.Context, args []string, quiet bool) int {
	if len(args) != 0 {
		fmt.Fprintln(os.Stderr, "usage: canvas sweep")
		return 2
	}

	app, err := openApp(ctx, quiet)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sweep: %v\n", err)
		return 1
	}
	defer app.Close()

	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	swept, err := app.canvas.CleanExpiredPheromones(sweepCtx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sweep: %v\n", err)
		return 1
	}

	fmt.Printf("swept %d expired pheromones\n", swept)
	return 0
}
