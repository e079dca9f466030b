package canvas

import (
	"context"
	"testing"
	"time"
)

func TestCreatePheromoneStampsExpiry(t *testing.T) {
	c, _, clock := testCanvas(t)
	ctx := context.Background()

	p, err := c.CreatePheromone(ctx, Pheromone{
		Type: "guide", Strength: 0.8, Context: "prefer streaming parser",
		Metadata: map[string]any{"source": "a1"},
	}, time.Hour)
	if err != nil {
		t.Fatalf("create pheromone: %v", err)
	}
	if !p.CreatedAt.Equal(*clock) {
		t.Errorf("createdAt = %v", p.CreatedAt)
	}
	if !p.ExpiresAt.Equal(clock.Add(time.Hour)) {
		t.Errorf("expiresAt = %v, want createdAt+1h", p.ExpiresAt)
	}
	if !p.ExpiresAt.After(p.CreatedAt) {
		t.Error("expiresAt must be after createdAt")
	}

	got, err := c.GetPheromone(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Metadata["source"] != "a1" {
		t.Errorf("metadata = %v", got.Metadata)
	}
}

func TestCreatePheromoneValidation(t *testing.T) {
	c, _, _ := testCanvas(t)
	ctx := context.Background()

	tests := []struct {
		name string
		p    Pheromone
		ttl  time.Duration
	}{
		{"bad type", Pheromone{Type: "smell", Strength: 0.5}, time.Hour},
		{"strength below range", Pheromone{Type: "guide", Strength: -0.1}, time.Hour},
		{"strength above range", Pheromone{Type: "guide", Strength: 1.1}, time.Hour},
		{"zero ttl", Pheromone{Type: "guide", Strength: 0.5}, 0},
		{"negative ttl", Pheromone{Type: "guide", Strength: 0.5}, -time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.CreatePheromone(ctx, tt.p, tt.ttl); !IsValidation(err) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestListActivePheromonesOrderingAndExpiry(t *testing.T) {
	c, _, clock := testCanvas(t)
	ctx := context.Background()

	weak, _ := c.CreatePheromone(ctx, Pheromone{Type: "guide", Strength: 0.2}, time.Hour)
	strong, _ := c.CreatePheromone(ctx, Pheromone{Type: "warn", Strength: 0.9}, time.Hour)
	short, _ := c.CreatePheromone(ctx, Pheromone{Type: "progress", Strength: 0.5}, time.Minute)

	active, err := c.ListActivePheromones(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 3 {
		t.Fatalf("active = %d, want 3", len(active))
	}
	if active[0].ID != strong.ID || active[2].ID != weak.ID {
		t.Errorf("expected descending strength, got %v, %v, %v",
			active[0].Strength, active[1].Strength, active[2].Strength)
	}

	// Past the short TTL, the expired pheromone drops out of active reads
	// before any sweep runs.
	*clock = clock.Add(2 * time.Minute)
	active, err = c.ListActivePheromones(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 2 {
		t.Fatalf("active = %d after expiry, want 2", len(active))
	}
	for _, p := range active {
		if p.ID == short.ID {
			t.Error("expired pheromone returned from active list")
		}
	}
}

func TestListPheromonesByType(t *testing.T) {
	c, _, _ := testCanvas(t)
	ctx := context.Background()

	if _, err := c.CreatePheromone(ctx, Pheromone{Type: "guide", Strength: 0.3}, time.Hour); err != nil {
		t.Fatal(err)
	}
	if _, err := c.CreatePheromone(ctx, Pheromone{Type: "warn", Strength: 0.6}, time.Hour); err != nil {
		t.Fatal(err)
	}

	guides, err := c.ListPheromonesByType(ctx, "guide")
	if err != nil {
		t.Fatal(err)
	}
	if len(guides) != 1 || guides[0].Type != "guide" {
		t.Errorf("guides = %+v", guides)
	}

	if _, err := c.ListPheromonesByType(ctx, "smell"); !IsValidation(err) {
		t.Fatalf("expected ValidationError for unknown type, got %v", err)
	}
}

func TestCleanExpiredPheromones(t *testing.T) {
	c, _, clock := testCanvas(t)
	ctx := context.Background()

	doomed, _ := c.CreatePheromone(ctx, Pheromone{Type: "error", Strength: 0.8}, time.Minute)
	survivor, _ := c.CreatePheromone(ctx, Pheromone{Type: "guide", Strength: 0.4}, time.Hour)

	*clock = clock.Add(5 * time.Minute)

	swept, err := c.CleanExpiredPheromones(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if swept != 1 {
		t.Fatalf("swept = %d, want 1", swept)
	}

	// Swept pheromone is gone even from direct get.
	if _, err := c.GetPheromone(ctx, doomed.ID); !IsNotFound(err) {
		t.Fatalf("expected NotFoundError after sweep, got %v", err)
	}
	active, err := c.ListActivePheromones(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].ID != survivor.ID {
		t.Errorf("active = %+v", active)
	}

	// Second sweep finds nothing.
	swept, err = c.CleanExpiredPheromones(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if swept != 0 {
		t.Errorf("second sweep = %d, want 0", swept)
	}
}

func TestUpdatePheromoneStrength(t *testing.T) {
	c, _, _ := testCanvas(t)
	ctx := context.Background()

	p, _ := c.CreatePheromone(ctx, Pheromone{Type: "guide", Strength: 0.5}, time.Hour)

	updated, err := c.UpdatePheromoneStrength(ctx, p.ID, 0.9)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Strength != 0.9 {
		t.Errorf("strength = %g, want 0.9", updated.Strength)
	}
	if !updated.ExpiresAt.Equal(p.ExpiresAt) {
		t.Error("strength update must not touch expiry")
	}

	if _, err := c.UpdatePheromoneStrength(ctx, p.ID, 2); !IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, err := c.UpdatePheromoneStrength(ctx, "ghost", 0.5); !IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestTTLForUrgency(t *testing.T) {
	tests := []struct {
		urgency string
		want    time.Duration
	}{
		{"low", 30 * time.Minute},
		{"medium", time.Hour},
		{"high", 2 * time.Hour},
		{"governance", 7 * 24 * time.Hour},
		{"unknown", time.Hour},
	}
	for _, tt := range tests {
		if got := TTLForUrgency(tt.urgency); got != tt.want {
			t.Errorf("TTLForUrgency(%q) = %v, want %v", tt.urgency, got, tt.want)
		}
	}
}
