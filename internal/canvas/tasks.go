package canvas

import (
	"context"
	"fmt"
)

// CreateTask validates and stores a new task. Status defaults to
// "pending"; priority is required.
func (c *Canvas) CreateTask(ctx context.Context, t Task) (*Task, error) {
	if err := requireField("task", "title", t.Title); err != nil {
		return nil, c.invalid(err)
	}
	if err := requireField("task", "projectId", t.ProjectID); err != nil {
		return nil, c.invalid(err)
	}
	if t.Status == "" {
		t.Status = "pending"
	}
	if err := requireEnum("task", "status", t.Status, taskStatuses); err != nil {
		return nil, c.invalid(err)
	}
	if err := requireEnum("task", "priority", t.Priority, taskPriorities); err != nil {
		return nil, c.invalid(err)
	}
	if t.ID == "" {
		t.ID = c.newID()
	}
	now := c.nowFn()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := c.write(ctx, `
		CREATE (t:Task {
			id: $id, title: $title, description: $description,
			status: $status, priority: $priority, projectId: $projectId,
			createdAt: $createdAt, updatedAt: $updatedAt
		})`, map[string]any{
		"id":          t.ID,
		"title":       t.Title,
		"description": t.Description,
		"status":      t.Status,
		"priority":    t.Priority,
		"projectId":   t.ProjectID,
		"createdAt":   formatTime(t.CreatedAt),
		"updatedAt":   formatTime(t.UpdatedAt),
	})
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return &t, nil
}

// GetTask returns the task with the given id, or NotFoundError.
func (c *Canvas) GetTask(ctx context.Context, id string) (*Task, error) {
	records, err := c.read(ctx, `
		MATCH (t:Task {id: $id})
		RETURN properties(t) AS props`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Entity: "task", ID: id}
	}
	props, _ := recordProps(records[0])
	return taskFromProps(props), nil
}

// TaskUpdate selects task fields to change; nil fields are left untouched.
type TaskUpdate struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
}

// UpdateTask applies the given fields and stamps updatedAt.
func (c *Canvas) UpdateTask(ctx context.Context, id string, u TaskUpdate) (*Task, error) {
	fields := map[string]any{}
	if u.Title != nil {
		if err := requireField("task", "title", *u.Title); err != nil {
			return nil, c.invalid(err)
		}
		fields["title"] = *u.Title
	}
	if u.Description != nil {
		fields["description"] = *u.Description
	}
	if u.Status != nil {
		if err := requireEnum("task", "status", *u.Status, taskStatuses); err != nil {
			return nil, c.invalid(err)
		}
		fields["status"] = *u.Status
	}
	if u.Priority != nil {
		if err := requireEnum("task", "priority", *u.Priority, taskPriorities); err != nil {
			return nil, c.invalid(err)
		}
		fields["priority"] = *u.Priority
	}
	fields["updatedAt"] = formatTime(c.nowFn())

	records, err := c.write(ctx, `
		MATCH (t:Task {id: $id})
		SET t += $fields
		RETURN properties(t) AS props`, map[string]any{"id": id, "fields": fields})
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Entity: "task", ID: id}
	}
	props, _ := recordProps(records[0])
	return taskFromProps(props), nil
}

// ListTasksByProject returns a project's tasks ordered by creation time.
func (c *Canvas) ListTasksByProject(ctx context.Context, projectID string) ([]Task, error) {
	records, err := c.read(ctx, `
		MATCH (t:Task {projectId: $projectId})
		RETURN properties(t) AS props
		ORDER BY t.createdAt ASC`, map[string]any{"projectId": projectID})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	out := make([]Task, 0, len(records))
	for _, rec := range records {
		if props, ok := recordProps(rec); ok {
			out = append(out, *taskFromProps(props))
		}
	}
	return out, nil
}

// DeleteTask detach-deletes the task and its DEPENDS_ON / ASSIGNED_TO
// relationships.
func (c *Canvas) DeleteTask(ctx context.Context, id string) error {
	records, err := c.write(ctx, `
		MATCH (t:Task {id: $id})
		DETACH DELETE t
		RETURN count(*) AS deleted`, map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if deletedCount(records) == 0 {
		return &NotFoundError{Entity: "task", ID: id}
	}
	return nil
}

func taskFromProps(props map[string]any) *Task {
	return &Task{
		ID:          propString(props, "id"),
		Title:       propString(props, "title"),
		Description: propString(props, "description"),
		Status:      propString(props, "status"),
		Priority:    propString(props, "priority"),
		ProjectID:   propString(props, "projectId"),
		CreatedAt:   propTime(props, "createdAt"),
		UpdatedAt:   propTime(props, "updatedAt"),
	}
}
