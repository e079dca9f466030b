package canvas

import (
	"context"
	"fmt"

	"github.com/basket/go-canvas/internal/graph"
)

// link creates one relationship after verifying both endpoints inside a
// single write transaction. Either endpoint missing fails the whole
// operation with NotFoundError and creates nothing. A missing endpoint is
// reported as a transaction result rather than a raised error so the
// breaker does not count a caller mistake as a store failure.
func (c *Canvas) link(ctx context.Context, from, to endpoint, relType string) error {
	result, err := c.manager.ExecuteWrite(ctx, func(ctx context.Context, tx graph.Tx) (any, error) {
		for _, ep := range []endpoint{from, to} {
			records, err := tx.Run(ctx,
				fmt.Sprintf("MATCH (n:%s {id: $id}) RETURN n.id AS id", ep.label),
				map[string]any{"id": ep.id})
			if err != nil {
				return nil, err
			}
			if len(records) == 0 {
				return ep, nil
			}
		}
		query := fmt.Sprintf(`
			MATCH (from:%s {id: $fromId})
			MATCH (to:%s {id: $toId})
			MERGE (from)-[:%s]->(to)`, from.label, to.label, relType)
		if _, err := tx.Run(ctx, query, map[string]any{"fromId": from.id, "toId": to.id}); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("link %s: %w", relType, err)
	}
	if missing, ok := result.(endpoint); ok {
		return &NotFoundError{Entity: missing.entity, ID: missing.id}
	}
	return nil
}

type endpoint struct {
	label  string
	entity string
	id     string
}

// AssignAgentToTask creates (task)-[:ASSIGNED_TO]->(agent).
func (c *Canvas) AssignAgentToTask(ctx context.Context, agentID, taskID string) error {
	return c.link(ctx,
		endpoint{label: "Task", entity: "task", id: taskID},
		endpoint{label: "Agent", entity: "agent", id: agentID},
		"ASSIGNED_TO")
}

// CreateTaskDependency creates (task)-[:DEPENDS_ON]->(dependency). The
// dependency graph is advisory; no cycle check is performed.
func (c *Canvas) CreateTaskDependency(ctx context.Context, taskID, dependsOnID string) error {
	if taskID == dependsOnID {
		return c.invalid(&ValidationError{Entity: "task", Field: "dependsOn", Reason: "task cannot depend on itself"})
	}
	return c.link(ctx,
		endpoint{label: "Task", entity: "task", id: taskID},
		endpoint{label: "Task", entity: "task", id: dependsOnID},
		"DEPENDS_ON")
}

// LinkPheromoneToTask creates (pheromone)-[:INFLUENCES]->(task).
func (c *Canvas) LinkPheromoneToTask(ctx context.Context, pheromoneID, taskID string) error {
	return c.link(ctx,
		endpoint{label: "Pheromone", entity: "pheromone", id: pheromoneID},
		endpoint{label: "Task", entity: "task", id: taskID},
		"INFLUENCES")
}

// LinkContractToFeature creates (contract)-[:DEFINES]->(task). Features
// are tracked as tasks.
func (c *Canvas) LinkContractToFeature(ctx context.Context, contractID, taskID string) error {
	return c.link(ctx,
		endpoint{label: "Contract", entity: "contract", id: contractID},
		endpoint{label: "Task", entity: "task", id: taskID},
		"DEFINES")
}

// LinkCodeModuleToTest creates (test)-[:TESTS]->(codeModule).
func (c *Canvas) LinkCodeModuleToTest(ctx context.Context, codeModuleID, testID string) error {
	return c.link(ctx,
		endpoint{label: "Test", entity: "test", id: testID},
		endpoint{label: "CodeModule", entity: "code_module", id: codeModuleID},
		"TESTS")
}

// LinkPrototypeToContract creates (prototype)-[:IMPLEMENTS]->(contract).
func (c *Canvas) LinkPrototypeToContract(ctx context.Context, prototypeID, contractID string) error {
	return c.link(ctx,
		endpoint{label: "Prototype", entity: "prototype", id: prototypeID},
		endpoint{label: "Contract", entity: "contract", id: contractID},
		"IMPLEMENTS")
}
