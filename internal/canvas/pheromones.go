package canvas

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/basket/go-canvas/internal/graph"
)

// TTL presets derived from signal urgency. Governance-level warnings stay
// visible for a week; everything else decays within hours.
const (
	TTLLowUrgency    = 30 * time.Minute
	TTLMediumUrgency = 60 * time.Minute
	TTLHighUrgency   = 120 * time.Minute
	TTLGovernance    = 7 * 24 * time.Hour
)

// TTLForUrgency maps an urgency level to a pheromone lifetime. Unknown
// levels get the medium preset.
func TTLForUrgency(urgency string) time.Duration {
	switch urgency {
	case "low":
		return TTLLowUrgency
	case "high":
		return TTLHighUrgency
	case "governance":
		return TTLGovernance
	default:
		return TTLMediumUrgency
	}
}

// CreatePheromone validates and stores a decaying signal. expiresAt is
// stamped as createdAt + ttl; ttl must be positive.
func (c *Canvas) CreatePheromone(ctx context.Context, p Pheromone, ttl time.Duration) (*Pheromone, error) {
	if err := requireEnum("pheromone", "type", p.Type, pheromoneTypes); err != nil {
		return nil, c.invalid(err)
	}
	if err := requireUnitRange("pheromone", "strength", p.Strength); err != nil {
		return nil, c.invalid(err)
	}
	if ttl <= 0 {
		return nil, c.invalid(&ValidationError{Entity: "pheromone", Field: "ttl", Reason: "must be positive"})
	}
	if p.ID == "" {
		p.ID = c.newID()
	}
	p.CreatedAt = c.nowFn()
	p.ExpiresAt = p.CreatedAt.Add(ttl)

	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return nil, c.invalid(&ValidationError{Entity: "pheromone", Field: "metadata", Reason: err.Error()})
	}
	_, err = c.write(ctx, `
		CREATE (ph:Pheromone {
			id: $id, type: $type, strength: $strength, context: $context,
			metadata: $metadata, createdAt: $createdAt, expiresAt: $expiresAt
		})`, map[string]any{
		"id":        p.ID,
		"type":      p.Type,
		"strength":  p.Strength,
		"context":   p.Context,
		"metadata":  string(metadata),
		"createdAt": formatTime(p.CreatedAt),
		"expiresAt": formatTime(p.ExpiresAt),
	})
	if err != nil {
		return nil, fmt.Errorf("create pheromone: %w", err)
	}
	return &p, nil
}

// GetPheromone returns the pheromone with the given id regardless of
// expiry, or NotFoundError. Expired pheromones remain readable by id until
// swept.
func (c *Canvas) GetPheromone(ctx context.Context, id string) (*Pheromone, error) {
	records, err := c.read(ctx, `
		MATCH (ph:Pheromone {id: $id})
		RETURN properties(ph) AS props`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get pheromone: %w", err)
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Entity: "pheromone", ID: id}
	}
	props, _ := recordProps(records[0])
	return pheromoneFromProps(props), nil
}

// ListPheromonesByType returns unexpired pheromones of one type, strongest
// first.
func (c *Canvas) ListPheromonesByType(ctx context.Context, pheromoneType string) ([]Pheromone, error) {
	if err := requireEnum("pheromone", "type", pheromoneType, pheromoneTypes); err != nil {
		return nil, c.invalid(err)
	}
	records, err := c.read(ctx, `
		MATCH (ph:Pheromone {type: $type})
		WHERE ph.expiresAt > $now
		RETURN properties(ph) AS props
		ORDER BY ph.strength DESC`, map[string]any{
		"type": pheromoneType,
		"now":  formatTime(c.nowFn()),
	})
	if err != nil {
		return nil, fmt.Errorf("list pheromones by type: %w", err)
	}
	return pheromonesFromRecords(records), nil
}

// ListActivePheromones returns every unexpired pheromone, strongest first.
func (c *Canvas) ListActivePheromones(ctx context.Context) ([]Pheromone, error) {
	records, err := c.read(ctx, `
		MATCH (ph:Pheromone)
		WHERE ph.expiresAt > $now
		RETURN properties(ph) AS props
		ORDER BY ph.strength DESC`, map[string]any{"now": formatTime(c.nowFn())})
	if err != nil {
		return nil, fmt.Errorf("list active pheromones: %w", err)
	}
	return pheromonesFromRecords(records), nil
}

// CleanExpiredPheromones detach-deletes every pheromone whose expiry has
// passed and returns the number removed.
func (c *Canvas) CleanExpiredPheromones(ctx context.Context) (int, error) {
	records, err := c.write(ctx, `
		MATCH (ph:Pheromone)
		WHERE ph.expiresAt <= $now
		DETACH DELETE ph
		RETURN count(*) AS deleted`, map[string]any{"now": formatTime(c.nowFn())})
	if err != nil {
		return 0, fmt.Errorf("clean expired pheromones: %w", err)
	}
	swept := deletedCount(records)
	if swept > 0 {
		c.logger.Info("expired pheromones swept", "count", swept)
		if c.metrics != nil {
			c.metrics.PheromonesSwept.Add(ctx, int64(swept))
		}
	}
	return swept, nil
}

// UpdatePheromoneStrength sets a pheromone's strength without touching its
// expiry.
func (c *Canvas) UpdatePheromoneStrength(ctx context.Context, id string, strength float64) (*Pheromone, error) {
	if err := requireUnitRange("pheromone", "strength", strength); err != nil {
		return nil, c.invalid(err)
	}
	records, err := c.write(ctx, `
		MATCH (ph:Pheromone {id: $id})
		SET ph.strength = $strength
		RETURN properties(ph) AS props`, map[string]any{"id": id, "strength": strength})
	if err != nil {
		return nil, fmt.Errorf("update pheromone strength: %w", err)
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Entity: "pheromone", ID: id}
	}
	props, _ := recordProps(records[0])
	return pheromoneFromProps(props), nil
}

func pheromonesFromRecords(records []graph.Record) []Pheromone {
	out := make([]Pheromone, 0, len(records))
	for _, rec := range records {
		if props, ok := recordProps(rec); ok {
			out = append(out, *pheromoneFromProps(props))
		}
	}
	return out
}

func pheromoneFromProps(props map[string]any) *Pheromone {
	p := &Pheromone{
		ID:        propString(props, "id"),
		Type:      propString(props, "type"),
		Strength:  propFloat(props, "strength"),
		Context:   propString(props, "context"),
		CreatedAt: propTime(props, "createdAt"),
		ExpiresAt: propTime(props, "expiresAt"),
	}
	if raw := propString(props, "metadata"); raw != "" && raw != "null" {
		var metadata map[string]any
		if err := json.Unmarshal([]byte(raw), &metadata); err == nil {
			p.Metadata = metadata
		}
	}
	return p
}
