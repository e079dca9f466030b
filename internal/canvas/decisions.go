package canvas

import (
	"context"
	"fmt"
)

// CreateDecision validates and stores an architectural decision record.
// Status defaults to "proposed".
func (c *Canvas) CreateDecision(ctx context.Context, d ArchitecturalDecision) (*ArchitecturalDecision, error) {
	if err := requireField("decision", "title", d.Title); err != nil {
		return nil, c.invalid(err)
	}
	if err := requireField("decision", "projectId", d.ProjectID); err != nil {
		return nil, c.invalid(err)
	}
	if d.Status == "" {
		d.Status = "proposed"
	}
	if err := requireEnum("decision", "status", d.Status, decisionStatuses); err != nil {
		return nil, c.invalid(err)
	}
	if d.ID == "" {
		d.ID = c.newID()
	}
	now := c.nowFn()
	d.CreatedAt = now
	d.UpdatedAt = now

	_, err := c.write(ctx, `
		CREATE (d:ArchitecturalDecision {
			id: $id, title: $title, description: $description,
			rationale: $rationale, status: $status, projectId: $projectId,
			createdAt: $createdAt, updatedAt: $updatedAt
		})`, map[string]any{
		"id":          d.ID,
		"title":       d.Title,
		"description": d.Description,
		"rationale":   d.Rationale,
		"status":      d.Status,
		"projectId":   d.ProjectID,
		"createdAt":   formatTime(d.CreatedAt),
		"updatedAt":   formatTime(d.UpdatedAt),
	})
	if err != nil {
		return nil, fmt.Errorf("create decision: %w", err)
	}
	return &d, nil
}

// GetDecision returns the decision with the given id, or NotFoundError.
func (c *Canvas) GetDecision(ctx context.Context, id string) (*ArchitecturalDecision, error) {
	records, err := c.read(ctx, `
		MATCH (d:ArchitecturalDecision {id: $id})
		RETURN properties(d) AS props`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get decision: %w", err)
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Entity: "decision", ID: id}
	}
	props, _ := recordProps(records[0])
	return decisionFromProps(props), nil
}

// UpdateDecisionStatus moves a decision through its lifecycle.
func (c *Canvas) UpdateDecisionStatus(ctx context.Context, id, status string) (*ArchitecturalDecision, error) {
	if err := requireEnum("decision", "status", status, decisionStatuses); err != nil {
		return nil, c.invalid(err)
	}
	records, err := c.write(ctx, `
		MATCH (d:ArchitecturalDecision {id: $id})
		SET d.status = $status, d.updatedAt = $updatedAt
		RETURN properties(d) AS props`, map[string]any{
		"id":        id,
		"status":    status,
		"updatedAt": formatTime(c.nowFn()),
	})
	if err != nil {
		return nil, fmt.Errorf("update decision status: %w", err)
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Entity: "decision", ID: id}
	}
	props, _ := recordProps(records[0])
	return decisionFromProps(props), nil
}

// ListDecisionsByProject returns a project's decisions ordered by creation
// time.
func (c *Canvas) ListDecisionsByProject(ctx context.Context, projectID string) ([]ArchitecturalDecision, error) {
	records, err := c.read(ctx, `
		MATCH (d:ArchitecturalDecision {projectId: $projectId})
		RETURN properties(d) AS props
		ORDER BY d.createdAt ASC`, map[string]any{"projectId": projectID})
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	out := make([]ArchitecturalDecision, 0, len(records))
	for _, rec := range records {
		if props, ok := recordProps(rec); ok {
			out = append(out, *decisionFromProps(props))
		}
	}
	return out, nil
}

// DeleteDecision detach-deletes the decision node.
func (c *Canvas) DeleteDecision(ctx context.Context, id string) error {
	records, err := c.write(ctx, `
		MATCH (d:ArchitecturalDecision {id: $id})
		DETACH DELETE d
		RETURN count(*) AS deleted`, map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("delete decision: %w", err)
	}
	if deletedCount(records) == 0 {
		return &NotFoundError{Entity: "decision", ID: id}
	}
	return nil
}

func decisionFromProps(props map[string]any) *ArchitecturalDecision {
	return &ArchitecturalDecision{
		ID:          propString(props, "id"),
		Title:       propString(props, "title"),
		Description: propString(props, "description"),
		Rationale:   propString(props, "rationale"),
		Status:      propString(props, "status"),
		ProjectID:   propString(props, "projectId"),
		CreatedAt:   propTime(props, "createdAt"),
		UpdatedAt:   propTime(props, "updatedAt"),
	}
}
