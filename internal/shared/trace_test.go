package shared

import (
	"context"
	"testing"
)

func TestTraceID_Defaults(t *testing.T) {
	if got := TraceID(context.Background()); got != "-" {
		t.Errorf("TraceID(empty ctx) = %q, want \"-\"", got)
	}
}

func TestTraceID_RoundTrip(t *testing.T) {
	id := NewTraceID()
	ctx := WithTraceID(context.Background(), id)
	if got := TraceID(ctx); got != id {
		t.Errorf("TraceID = %q, want %q", got, id)
	}
}

func TestAgentAndProjectScope(t *testing.T) {
	ctx := WithAgentID(context.Background(), "agent-1")
	ctx = WithProjectID(ctx, "proj-1")
	if got := AgentID(ctx); got != "agent-1" {
		t.Errorf("AgentID = %q", got)
	}
	if got := ProjectID(ctx); got != "proj-1" {
		t.Errorf("ProjectID = %q", got)
	}
	if got := AgentID(context.Background()); got != "" {
		t.Errorf("AgentID(empty) = %q, want empty", got)
	}
}
