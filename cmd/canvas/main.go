package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/basket/go-canvas/internal/shared"
	"github.com/mattn/go-isatty"
)

// Version is set via ldflags at build time: -ldflags "-X main.Version=..."
var Version = "v0.1-dev"

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage of %s:

SUBCOMMANDS:
  %s init                     Create uniqueness constraints for all entity labels
  %s status                   Check store connectivity and print transaction metrics
  %s snapshot [path]          Export the full graph to a snapshot file
                              (default: timestamped file in the snapshot dir)
  %s restore <path>           Replace the graph with a snapshot's contents
  %s sweep                    Delete expired pheromones
  %s serve                    Run the auto-save daemon until interrupted
  %s version                  Print the version

FLAGS:
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0])
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
ENVIRONMENT VARIABLES:
  CANVAS_HOME             Data directory (default: ~/.canvas)
  CANVAS_NEO4J_URI        Bolt URI (default: bolt://localhost:7687)
  CANVAS_NEO4J_USERNAME   Store username
  CANVAS_NEO4J_PASSWORD   Store password
  CANVAS_SNAPSHOT_DIR     Snapshot directory (default: <home>/snapshots)

EXAMPLES:
  Initialize schema:      %s init
  Check store health:     %s status
  Take a snapshot:        %s snapshot
  Restore a snapshot:     %s restore ~/.canvas/snapshots/canvas-20260101-120000.json
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0])
}

func main() {
	flag.Usage = printUsage
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = shared.WithTraceID(ctx, shared.NewTraceID())

	// One-shot commands keep logs file-only on a terminal so their output
	// stays clean; piped output gets the log mirror for debugging.
	quiet := isatty.IsTerminal(os.Stdout.Fd())

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "-h", "--help":
		printUsage()
		os.Exit(0)
	case "version":
		fmt.Println(Version)
		os.Exit(0)
	case "init":
		os.Exit(runInitCommand(ctx, args[1:], quiet))
	case "status":
		os.Exit(runStatusCommand(ctx, args[1:], quiet))
	case "snapshot":
		os.Exit(runSnapshotCommand(ctx, args[1:], quiet))
	case "restore":
		os.Exit(runRestoreCommand(ctx, args[1:], quiet))
	case "sweep":
		os.Exit(runSweepCommand(ctx, args[1:], quiet))
	case "serve":
		os.Exit(runServeCommand(ctx, args[1:]))
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}
