package canvas

import (
	"context"
	"fmt"
)

// CreateContract validates and stores an interface specification.
func (c *Canvas) CreateContract(ctx context.Context, ct Contract) (*Contract, error) {
	if err := requireField("contract", "name", ct.Name); err != nil {
		return nil, c.invalid(err)
	}
	if err := requireField("contract", "projectId", ct.ProjectID); err != nil {
		return nil, c.invalid(err)
	}
	if err := requireEnum("contract", "type", ct.Type, contractTypes); err != nil {
		return nil, c.invalid(err)
	}
	if err := requireSemver("contract", "version", ct.Version); err != nil {
		return nil, c.invalid(err)
	}
	if ct.ID == "" {
		ct.ID = c.newID()
	}
	now := c.nowFn()
	ct.CreatedAt = now
	ct.UpdatedAt = now

	_, err := c.write(ctx, `
		CREATE (c:Contract {
			id: $id, name: $name, type: $type, version: $version,
			specification: $specification, projectId: $projectId,
			createdAt: $createdAt, updatedAt: $updatedAt
		})`, map[string]any{
		"id":            ct.ID,
		"name":          ct.Name,
		"type":          ct.Type,
		"version":       ct.Version,
		"specification": ct.Specification,
		"projectId":     ct.ProjectID,
		"createdAt":     formatTime(ct.CreatedAt),
		"updatedAt":     formatTime(ct.UpdatedAt),
	})
	if err != nil {
		return nil, fmt.Errorf("create contract: %w", err)
	}
	return &ct, nil
}

// GetContract returns the contract with the given id, or NotFoundError.
func (c *Canvas) GetContract(ctx context.Context, id string) (*Contract, error) {
	records, err := c.read(ctx, `
		MATCH (c:Contract {id: $id})
		RETURN properties(c) AS props`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get contract: %w", err)
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Entity: "contract", ID: id}
	}
	props, _ := recordProps(records[0])
	return contractFromProps(props), nil
}

// ContractUpdate selects contract fields to change; nil fields are left
// untouched.
type ContractUpdate struct {
	Name          *string
	Version       *string
	Specification *string
}

// UpdateContract applies the given fields and stamps updatedAt.
func (c *Canvas) UpdateContract(ctx context.Context, id string, u ContractUpdate) (*Contract, error) {
	fields := map[string]any{}
	if u.Name != nil {
		if err := requireField("contract", "name", *u.Name); err != nil {
			return nil, c.invalid(err)
		}
		fields["name"] = *u.Name
	}
	if u.Version != nil {
		if err := requireSemver("contract", "version", *u.Version); err != nil {
			return nil, c.invalid(err)
		}
		fields["version"] = *u.Version
	}
	if u.Specification != nil {
		fields["specification"] = *u.Specification
	}
	fields["updatedAt"] = formatTime(c.nowFn())

	records, err := c.write(ctx, `
		MATCH (c:Contract {id: $id})
		SET c += $fields
		RETURN properties(c) AS props`, map[string]any{"id": id, "fields": fields})
	if err != nil {
		return nil, fmt.Errorf("update contract: %w", err)
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Entity: "contract", ID: id}
	}
	props, _ := recordProps(records[0])
	return contractFromProps(props), nil
}

// ListContractsByProject returns a project's contracts ordered by creation
// time.
func (c *Canvas) ListContractsByProject(ctx context.Context, projectID string) ([]Contract, error) {
	records, err := c.read(ctx, `
		MATCH (c:Contract {projectId: $projectId})
		RETURN properties(c) AS props
		ORDER BY c.createdAt ASC`, map[string]any{"projectId": projectID})
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	out := make([]Contract, 0, len(records))
	for _, rec := range records {
		if props, ok := recordProps(rec); ok {
			out = append(out, *contractFromProps(props))
		}
	}
	return out, nil
}

// DeleteContract detach-deletes the contract node.
func (c *Canvas) DeleteContract(ctx context.Context, id string) error {
	records, err := c.write(ctx, `
		MATCH (c:Contract {id: $id})
		DETACH DELETE c
		RETURN count(*) AS deleted`, map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("delete contract: %w", err)
	}
	if deletedCount(records) == 0 {
		return &NotFoundError{Entity: "contract", ID: id}
	}
	return nil
}

func contractFromProps(props map[string]any) *Contract {
	return &Contract{
		ID:            propString(props, "id"),
		Name:          propString(props, "name"),
		Type:          propString(props, "type"),
		Version:       propString(props, "version"),
		Specification: propString(props, "specification"),
		ProjectID:     propString(props, "projectId"),
		CreatedAt:     propTime(props, "createdAt"),
		UpdatedAt:     propTime(props, "updatedAt"),
	}
}
