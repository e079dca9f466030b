package canvas

import (
	"context"
	"fmt"
)

// CreateAgent validates and stores a new agent identity.
func (c *Canvas) CreateAgent(ctx context.Context, a Agent) (*Agent, error) {
	if err := requireField("agent", "name", a.Name); err != nil {
		return nil, c.invalid(err)
	}
	if err := requireField("agent", "role", a.Role); err != nil {
		return nil, c.invalid(err)
	}
	if a.Status == "" {
		a.Status = "active"
	}
	if err := requireEnum("agent", "status", a.Status, agentStatuses); err != nil {
		return nil, c.invalid(err)
	}
	if a.ID == "" {
		a.ID = c.newID()
	}
	now := c.nowFn()
	a.CreatedAt = now
	a.UpdatedAt = now

	capabilities := a.Capabilities
	if capabilities == nil {
		capabilities = []string{}
	}
	_, err := c.write(ctx, `
		CREATE (a:Agent {
			id: $id, name: $name, role: $role, capabilities: $capabilities,
			status: $status, createdAt: $createdAt, updatedAt: $updatedAt
		})`, map[string]any{
		"id":           a.ID,
		"name":         a.Name,
		"role":         a.Role,
		"capabilities": capabilities,
		"status":       a.Status,
		"createdAt":    formatTime(a.CreatedAt),
		"updatedAt":    formatTime(a.UpdatedAt),
	})
	if err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}
	return &a, nil
}

// GetAgent returns the agent with the given id, or NotFoundError.
func (c *Canvas) GetAgent(ctx context.Context, id string) (*Agent, error) {
	records, err := c.read(ctx, `
		MATCH (a:Agent {id: $id})
		RETURN properties(a) AS props`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Entity: "agent", ID: id}
	}
	props, _ := recordProps(records[0])
	return agentFromProps(props), nil
}

// AgentUpdate selects agent fields to change; nil fields are left
// untouched.
type AgentUpdate struct {
	Name         *string
	Role         *string
	Capabilities *[]string
	Status       *string
}

// UpdateAgent applies the given fields and stamps updatedAt.
func (c *Canvas) UpdateAgent(ctx context.Context, id string, u AgentUpdate) (*Agent, error) {
	fields := map[string]any{}
	if u.Name != nil {
		if err := requireField("agent", "name", *u.Name); err != nil {
			return nil, c.invalid(err)
		}
		fields["name"] = *u.Name
	}
	if u.Role != nil {
		fields["role"] = *u.Role
	}
	if u.Capabilities != nil {
		fields["capabilities"] = *u.Capabilities
	}
	if u.Status != nil {
		if err := requireEnum("agent", "status", *u.Status, agentStatuses); err != nil {
			return nil, c.invalid(err)
		}
		fields["status"] = *u.Status
	}
	fields["updatedAt"] = formatTime(c.nowFn())

	records, err := c.write(ctx, `
		MATCH (a:Agent {id: $id})
		SET a += $fields
		RETURN properties(a) AS props`, map[string]any{"id": id, "fields": fields})
	if err != nil {
		return nil, fmt.Errorf("update agent: %w", err)
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Entity: "agent", ID: id}
	}
	props, _ := recordProps(records[0])
	return agentFromProps(props), nil
}

// ListAgents returns all agents ordered by creation time.
func (c *Canvas) ListAgents(ctx context.Context) ([]Agent, error) {
	records, err := c.read(ctx, `
		MATCH (a:Agent)
		RETURN properties(a) AS props
		ORDER BY a.createdAt ASC`, nil)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	out := make([]Agent, 0, len(records))
	for _, rec := range records {
		if props, ok := recordProps(rec); ok {
			out = append(out, *agentFromProps(props))
		}
	}
	return out, nil
}

// DeleteAgent detach-deletes the agent and its assignments.
func (c *Canvas) DeleteAgent(ctx context.Context, id string) error {
	records, err := c.write(ctx, `
		MATCH (a:Agent {id: $id})
		DETACH DELETE a
		RETURN count(*) AS deleted`, map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("delete agent: %w", err)
	}
	if deletedCount(records) == 0 {
		return &NotFoundError{Entity: "agent", ID: id}
	}
	return nil
}

func agentFromProps(props map[string]any) *Agent {
	return &Agent{
		ID:           propString(props, "id"),
		Name:         propString(props, "name"),
		Role:         propString(props, "role"),
		Capabilities: propStrings(props, "capabilities"),
		Status:       propString(props, "status"),
		CreatedAt:    propTime(props, "createdAt"),
		UpdatedAt:    propTime(props, "updatedAt"),
	}
}
