package main

import (
	"context"
	"testing"
)

func TestRunInitCommand_ExtraArgs(t *testing.T) {
	code := runInitCommand(context.Background(), []string{"extra"}, true)
	if code != 2 {
		t.Fatalf("got exit code %d, want 2", code)
	}
}

func TestRunStatusCommand_ExtraArgs(t *testing.T) {
	code := runStatusCommand(context.Background(), []string{"extra"}, true)
	if code != 2 {
		t.Fatalf("got exit code %d, want 2", code)
	}
}

func TestRunSnapshotCommand_TooManyArgs(t *testing.T) {
	code := runSnapshotCommand(context.Background(), []string{"a", "b"}, true)
	if code != 2 {
		t.Fatalf("got exit code %d, want 2", code)
	}
}

func TestRunRestoreCommand_NoArgs(t *testing.T) {
	code := runRestoreCommand(context.Background(), nil, true)
	if code != 2 {
		t.Fatalf("got exit code %d, want 2", code)
	}
}

func TestRunRestoreCommand_MissingFile(t *testing.T) {
	code := runRestoreCommand(context.Background(), []string{"/no/such/snapshot.json"}, true)
	if code != 1 {
		t.Fatalf("got exit code %d, want 1 for missing file", code)
	}
}

func TestRunSweepCommand_ExtraArgs(t *testing.T) {
	code := runSweepCommand(context.Background(), []string{"extra"}, true)
	if code != 2 {
		t.Fatalf("got exit code %d, want 2", code)
	}
}

func TestRunServeCommand_ExtraArgs(t *testing.T) {
	code := runServeCommand(context.Background(), []string{"extra"})
	if code != 2 {
		t.Fatalf("got exit code %d, want 2", code)
	}
}

func TestRunStatusCommand_ConnectionRefused(t *testing.T) {
	t.Setenv("CANVAS_HOME", t.TempDir())
	t.Setenv("CANVAS_NEO4J_URI", "bolt://127.0.0.1:1")

	code := runStatusCommand(context.Background(), nil, true)
	if code != 1 {
		t.Fatalf("got exit code %d, want 1 for connection refused", code)
	}
}
