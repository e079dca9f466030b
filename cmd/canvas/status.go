package main

import (
	"context"
	"fmt"
	"os"
	"time"
)

func runStatusCommand(ctx context.Context, args []string, quiet bool) int {
	if len(args) != 0 {
		fmt.Fprintln(os.Stderr, "usage: canvas status")
		return 2
	}

	app, err := openApp(ctx, quiet)
	if err != nil {
		fmt.Fprintf(os.Stderr, "status: %v\n", err)
		return 1
	}
	defer app.Close()

	checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	healthy := app.canvas.HealthCheck(checkCtx)

	m := app.canvas.Metrics()
	state := "healthy"
	if !healthy {
		state = "unhealthy"
	}
	fmt.Printf("store:        %s (%s)\n", state, app.cfg.Neo4j.URI)
	fmt.Printf("breaker:      %s (failures=%d requests=%d)\n",
		m.Breaker.State, m.Breaker.FailureCount, m.Breaker.RequestCount)
	fmt.Printf("transactions: %d total, %d failed, %d retries\n",
		m.TxCount, m.TxFailures, m.RetryCount)

	if !healthy {
		return 1
	}
	return 0
}
