package canvas

import (
	"context"
	"fmt"

	"github.com/basket/go-canvas/internal/graph"
)

// CreateProject validates and stores a new project. An empty status
// defaults to "active"; an empty id gets a generated uuid.
func (c *Canvas) CreateProject(ctx context.Context, p Project) (*Project, error) {
	if err := requireField("project", "name", p.Name); err != nil {
		return nil, c.invalid(err)
	}
	if p.Status == "" {
		p.Status = "active"
	}
	if err := requireEnum("project", "status", p.Status, projectStatuses); err != nil {
		return nil, c.invalid(err)
	}
	if p.ID == "" {
		p.ID = c.newID()
	}
	now := c.nowFn()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := c.write(ctx, `
		CREATE (p:Project {
			id: $id, name: $name, description: $description, status: $status,
			createdAt: $createdAt, updatedAt: $updatedAt
		})`, map[string]any{
		"id":          p.ID,
		"name":        p.Name,
		"description": p.Description,
		"status":      p.Status,
		"createdAt":   formatTime(p.CreatedAt),
		"updatedAt":   formatTime(p.UpdatedAt),
	})
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return &p, nil
}

// GetProject returns the project with the given id, or NotFoundError.
func (c *Canvas) GetProject(ctx context.Context, id string) (*Project, error) {
	records, err := c.read(ctx, `
		MATCH (p:Project {id: $id})
		RETURN properties(p) AS props`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Entity: "project", ID: id}
	}
	props, _ := recordProps(records[0])
	return projectFromProps(props), nil
}

// ProjectUpdate selects project fields to change; nil fields are left
// untouched.
type ProjectUpdate struct {
	Name        *string
	Description *string
	Status      *string
}

// UpdateProject applies the given fields and stamps updatedAt.
func (c *Canvas) UpdateProject(ctx context.Context, id string, u ProjectUpdate) (*Project, error) {
	fields := map[string]any{}
	if u.Name != nil {
		if err := requireField("project", "name", *u.Name); err != nil {
			return nil, c.invalid(err)
		}
		fields["name"] = *u.Name
	}
	if u.Description != nil {
		fields["description"] = *u.Description
	}
	if u.Status != nil {
		if err := requireEnum("project", "status", *u.Status, projectStatuses); err != nil {
			return nil, c.invalid(err)
		}
		fields["status"] = *u.Status
	}
	fields["updatedAt"] = formatTime(c.nowFn())

	records, err := c.write(ctx, `
		MATCH (p:Project {id: $id})
		SET p += $fields
		RETURN properties(p) AS props`, map[string]any{"id": id, "fields": fields})
	if err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Entity: "project", ID: id}
	}
	props, _ := recordProps(records[0])
	return projectFromProps(props), nil
}

// ListProjects returns all projects ordered by creation time.
func (c *Canvas) ListProjects(ctx context.Context) ([]Project, error) {
	records, err := c.read(ctx, `
		MATCH (p:Project)
		RETURN properties(p) AS props
		ORDER BY p.createdAt ASC`, nil)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	out := make([]Project, 0, len(records))
	for _, rec := range records {
		if props, ok := recordProps(rec); ok {
			out = append(out, *projectFromProps(props))
		}
	}
	return out, nil
}

// DeleteProject detach-deletes the project node and every relationship on
// it. Tasks and artifacts scoped to the project are not cascaded.
func (c *Canvas) DeleteProject(ctx context.Context, id string) error {
	records, err := c.write(ctx, `
		MATCH (p:Project {id: $id})
		DETACH DELETE p
		RETURN count(*) AS deleted`, map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if deletedCount(records) == 0 {
		return &NotFoundError{Entity: "project", ID: id}
	}
	return nil
}

func projectFromProps(props map[string]any) *Project {
	return &Project{
		ID:          propString(props, "id"),
		Name:        propString(props, "name"),
		Description: propString(props, "description"),
		Status:      propString(props, "status"),
		CreatedAt:   propTime(props, "createdAt"),
		UpdatedAt:   propTime(props, "updatedAt"),
	}
}

// deletedCount extracts the count(*) column from a detach-delete result.
func deletedCount(records []graph.Record) int {
	if len(records) == 0 {
		return 0
	}
	return propIntValue(records[0]["deleted"])
}

func propIntValue(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}
