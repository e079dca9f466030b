package canvas

import (
	"context"
	"fmt"
)

// CreateArtifact validates and stores a produced deliverable.
func (c *Canvas) CreateArtifact(ctx context.Context, a Artifact) (*Artifact, error) {
	if err := requireField("artifact", "name", a.Name); err != nil {
		return nil, c.invalid(err)
	}
	if err := requireField("artifact", "path", a.Path); err != nil {
		return nil, c.invalid(err)
	}
	if err := requireField("artifact", "projectId", a.ProjectID); err != nil {
		return nil, c.invalid(err)
	}
	if err := requireEnum("artifact", "type", a.Type, artifactTypes); err != nil {
		return nil, c.invalid(err)
	}
	if a.ID == "" {
		a.ID = c.newID()
	}
	now := c.nowFn()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := c.write(ctx, `
		CREATE (a:Artifact {
			id: $id, name: $name, type: $type, path: $path,
			projectId: $projectId, createdAt: $createdAt, updatedAt: $updatedAt
		})`, map[string]any{
		"id":        a.ID,
		"name":      a.Name,
		"type":      a.Type,
		"path":      a.Path,
		"projectId": a.ProjectID,
		"createdAt": formatTime(a.CreatedAt),
		"updatedAt": formatTime(a.UpdatedAt),
	})
	if err != nil {
		return nil, fmt.Errorf("create artifact: %w", err)
	}
	return &a, nil
}

// GetArtifact returns the artifact with the given id, or NotFoundError.
func (c *Canvas) GetArtifact(ctx context.Context, id string) (*Artifact, error) {
	records, err := c.read(ctx, `
		MATCH (a:Artifact {id: $id})
		RETURN properties(a) AS props`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get artifact: %w", err)
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Entity: "artifact", ID: id}
	}
	props, _ := recordProps(records[0])
	return artifactFromProps(props), nil
}

// ListArtifactsByProject returns a project's artifacts ordered by creation
// time.
func (c *Canvas) ListArtifactsByProject(ctx context.Context, projectID string) ([]Artifact, error) {
	records, err := c.read(ctx, `
		MATCH (a:Artifact {projectId: $projectId})
		RETURN properties(a) AS props
		ORDER BY a.createdAt ASC`, map[string]any{"projectId": projectID})
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	out := make([]Artifact, 0, len(records))
	for _, rec := range records {
		if props, ok := recordProps(rec); ok {
			out = append(out, *artifactFromProps(props))
		}
	}
	return out, nil
}

// DeleteArtifact detach-deletes the artifact node.
func (c *Canvas) DeleteArtifact(ctx context.Context, id string) error {
	records, err := c.write(ctx, `
		MATCH (a:Artifact {id: $id})
		DETACH DELETE a
		RETURN count(*) AS deleted`, map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("delete artifact: %w", err)
	}
	if deletedCount(records) == 0 {
		return &NotFoundError{Entity: "artifact", ID: id}
	}
	return nil
}

func artifactFromProps(props map[string]any) *Artifact {
	return &Artifact{
		ID:        propString(props, "id"),
		Name:      propString(props, "name"),
		Type:      propString(props, "type"),
		Path:      propString(props, "path"),
		ProjectID: propString(props, "projectId"),
		CreatedAt: propTime(props, "createdAt"),
		UpdatedAt: propTime(props, "updatedAt"),
	}
}

// CreatePrototype validates and stores an exploratory implementation.
// Status defaults to "draft".
func (c *Canvas) CreatePrototype(ctx context.Context, p Prototype) (*Prototype, error) {
	if err := requireField("prototype", "name", p.Name); err != nil {
		return nil, c.invalid(err)
	}
	if err := requireField("prototype", "filePath", p.FilePath); err != nil {
		return nil, c.invalid(err)
	}
	if err := requireField("prototype", "projectId", p.ProjectID); err != nil {
		return nil, c.invalid(err)
	}
	if p.Status == "" {
		p.Status = "draft"
	}
	if err := requireEnum("prototype", "status", p.Status, prototypeStatuses); err != nil {
		return nil, c.invalid(err)
	}
	if p.ID == "" {
		p.ID = c.newID()
	}
	now := c.nowFn()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := c.write(ctx, `
		CREATE (p:Prototype {
			id: $id, name: $name, filePath: $filePath, status: $status,
			projectId: $projectId, createdAt: $createdAt, updatedAt: $updatedAt
		})`, map[string]any{
		"id":        p.ID,
		"name":      p.Name,
		"filePath":  p.FilePath,
		"status":    p.Status,
		"projectId": p.ProjectID,
		"createdAt": formatTime(p.CreatedAt),
		"updatedAt": formatTime(p.UpdatedAt),
	})
	if err != nil {
		return nil, fmt.Errorf("create prototype: %w", err)
	}
	return &p, nil
}

// GetPrototype returns the prototype with the given id, or NotFoundError.
func (c *Canvas) GetPrototype(ctx context.Context, id string) (*Prototype, error) {
	records, err := c.read(ctx, `
		MATCH (p:Prototype {id: $id})
		RETURN properties(p) AS props`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get prototype: %w", err)
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Entity: "prototype", ID: id}
	}
	props, _ := recordProps(records[0])
	return prototypeFromProps(props), nil
}

// UpdatePrototypeStatus moves a prototype through its lifecycle.
func (c *Canvas) UpdatePrototypeStatus(ctx context.Context, id, status string) (*Prototype, error) {
	if err := requireEnum("prototype", "status", status, prototypeStatuses); err != nil {
		return nil, c.invalid(err)
	}
	records, err := c.write(ctx, `
		MATCH (p:Prototype {id: $id})
		SET p.status = $status, p.updatedAt = $updatedAt
		RETURN properties(p) AS props`, map[string]any{
		"id":        id,
		"status":    status,
		"updatedAt": formatTime(c.nowFn()),
	})
	if err != nil {
		return nil, fmt.Errorf("update prototype status: %w", err)
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Entity: "prototype", ID: id}
	}
	props, _ := recordProps(records[0])
	return prototypeFromProps(props), nil
}

// ListPrototypesByProject returns a project's prototypes ordered by
// creation time.
func (c *Canvas) ListPrototypesByProject(ctx context.Context, projectID string) ([]Prototype, error) {
	records, err := c.read(ctx, `
		MATCH (p:Prototype {projectId: $projectId})
		RETURN properties(p) AS props
		ORDER BY p.createdAt ASC`, map[string]any{"projectId": projectID})
	if err != nil {
		return nil, fmt.Errorf("list prototypes: %w", err)
	}
	out := make([]Prototype, 0, len(records))
	for _, rec := range records {
		if props, ok := recordProps(rec); ok {
			out = append(out, *prototypeFromProps(props))
		}
	}
	return out, nil
}

// DeletePrototype detach-deletes the prototype node.
func (c *Canvas) DeletePrototype(ctx context.Context, id string) error {
	records, err := c.write(ctx, `
		MATCH (p:Prototype {id: $id})
		DETACH DELETE p
		RETURN count(*) AS deleted`, map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("delete prototype: %w", err)
	}
	if deletedCount(records) == 0 {
		return &NotFoundError{Entity: "prototype", ID: id}
	}
	return nil
}

func prototypeFromProps(props map[string]any) *Prototype {
	return &Prototype{
		ID:        propString(props, "id"),
		Name:      propString(props, "name"),
		FilePath:  propString(props, "filePath"),
		Status:    propString(props, "status"),
		ProjectID: propString(props, "projectId"),
		CreatedAt: propTime(props, "createdAt"),
		UpdatedAt: propTime(props, "updatedAt"),
	}
}
