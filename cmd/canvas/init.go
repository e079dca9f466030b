package main

import (
	"context"
	"fmt"
	"os"
	"time"
)

func runInitCommand(ctx context.Context, args []string, quiet bool) int {
	if len(args) != 0 {
		fmt.Fprintln(os.Stderr, "usage: canvas init")
		return 2
	}

	app, err := openApp(ctx, quiet)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		return 1
	}
	defer app.Close()

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := app.canvas.InitializeSchema(initCtx); err != nil {
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		return 1
	}

	fmt.Println("schema initialized: id uniqueness constraints ensured for all entity labels")
	return 0
}
