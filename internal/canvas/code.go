package canvas

import (
	"context"
	"fmt"
)

// CreateCodeModule validates and stores a tracked source unit.
func (c *Canvas) CreateCodeModule(ctx context.Context, m CodeModule) (*CodeModule, error) {
	if err := requireField("code_module", "name", m.Name); err != nil {
		return nil, c.invalid(err)
	}
	if err := requireField("code_module", "filePath", m.FilePath); err != nil {
		return nil, c.invalid(err)
	}
	if err := requireField("code_module", "projectId", m.ProjectID); err != nil {
		return nil, c.invalid(err)
	}
	if err := requireEnum("code_module", "type", m.Type, codeModuleTypes); err != nil {
		return nil, c.invalid(err)
	}
	if m.ID == "" {
		m.ID = c.newID()
	}
	now := c.nowFn()
	m.CreatedAt = now
	m.UpdatedAt = now

	_, err := c.write(ctx, `
		CREATE (m:CodeModule {
			id: $id, name: $name, filePath: $filePath, type: $type,
			language: $language, projectId: $projectId,
			createdAt: $createdAt, updatedAt: $updatedAt
		})`, map[string]any{
		"id":        m.ID,
		"name":      m.Name,
		"filePath":  m.FilePath,
		"type":      m.Type,
		"language":  m.Language,
		"projectId": m.ProjectID,
		"createdAt": formatTime(m.CreatedAt),
		"updatedAt": formatTime(m.UpdatedAt),
	})
	if err != nil {
		return nil, fmt.Errorf("create code module: %w", err)
	}
	return &m, nil
}

// GetCodeModule returns the code module with the given id, or
// NotFoundError.
func (c *Canvas) GetCodeModule(ctx context.Context, id string) (*CodeModule, error) {
	records, err := c.read(ctx, `
		MATCH (m:CodeModule {id: $id})
		RETURN properties(m) AS props`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get code module: %w", err)
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Entity: "code_module", ID: id}
	}
	props, _ := recordProps(records[0])
	return codeModuleFromProps(props), nil
}

// CodeModuleUpdate selects code module fields to change; nil fields are
// left untouched.
type CodeModuleUpdate struct {
	Name     *string
	FilePath *string
	Language *string
}

// UpdateCodeModule applies the given fields and stamps updatedAt.
func (c *Canvas) UpdateCodeModule(ctx context.Context, id string, u CodeModuleUpdate) (*CodeModule, error) {
	fields := map[string]any{}
	if u.Name != nil {
		if err := requireField("code_module", "name", *u.Name); err != nil {
			return nil, c.invalid(err)
		}
		fields["name"] = *u.Name
	}
	if u.FilePath != nil {
		fields["filePath"] = *u.FilePath
	}
	if u.Language != nil {
		fields["language"] = *u.Language
	}
	fields["updatedAt"] = formatTime(c.nowFn())

	records, err := c.write(ctx, `
		MATCH (m:CodeModule {id: $id})
		SET m += $fields
		RETURN properties(m) AS props`, map[string]any{"id": id, "fields": fields})
	if err != nil {
		return nil, fmt.Errorf("update code module: %w", err)
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Entity: "code_module", ID: id}
	}
	props, _ := recordProps(records[0])
	return codeModuleFromProps(props), nil
}

// ListCodeModulesByProject returns a project's code modules ordered by
// creation time.
func (c *Canvas) ListCodeModulesByProject(ctx context.Context, projectID string) ([]CodeModule, error) {
	records, err := c.read(ctx, `
		MATCH (m:CodeModule {projectId: $projectId})
		RETURN properties(m) AS props
		ORDER BY m.createdAt ASC`, map[string]any{"projectId": projectID})
	if err != nil {
		return nil, fmt.Errorf("list code modules: %w", err)
	}
	out := make([]CodeModule, 0, len(records))
	for _, rec := range records {
		if props, ok := recordProps(rec); ok {
			out = append(out, *codeModuleFromProps(props))
		}
	}
	return out, nil
}

// DeleteCodeModule detach-deletes the code module node.
func (c *Canvas) DeleteCodeModule(ctx context.Context, id string) error {
	records, err := c.write(ctx, `
		MATCH (m:CodeModule {id: $id})
		DETACH DELETE m
		RETURN count(*) AS deleted`, map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("delete code module: %w", err)
	}
	if deletedCount(records) == 0 {
		return &NotFoundError{Entity: "code_module", ID: id}
	}
	return nil
}

func codeModuleFromProps(props map[string]any) *CodeModule {
	return &CodeModule{
		ID:        propString(props, "id"),
		Name:      propString(props, "name"),
		FilePath:  propString(props, "filePath"),
		Type:      propString(props, "type"),
		Language:  propString(props, "language"),
		ProjectID: propString(props, "projectId"),
		CreatedAt: propTime(props, "createdAt"),
		UpdatedAt: propTime(props, "updatedAt"),
	}
}

// CreateTest validates and stores a tracked test definition.
func (c *Canvas) CreateTest(ctx context.Context, t Test) (*Test, error) {
	if err := requireField("test", "name", t.Name); err != nil {
		return nil, c.invalid(err)
	}
	if err := requireField("test", "filePath", t.FilePath); err != nil {
		return nil, c.invalid(err)
	}
	if err := requireField("test", "projectId", t.ProjectID); err != nil {
		return nil, c.invalid(err)
	}
	if err := requireEnum("test", "type", t.Type, testTypes); err != nil {
		return nil, c.invalid(err)
	}
	if t.ID == "" {
		t.ID = c.newID()
	}
	now := c.nowFn()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := c.write(ctx, `
		CREATE (t:Test {
			id: $id, name: $name, filePath: $filePath, type: $type,
			framework: $framework, projectId: $projectId,
			createdAt: $createdAt, updatedAt: $updatedAt
		})`, map[string]any{
		"id":        t.ID,
		"name":      t.Name,
		"filePath":  t.FilePath,
		"type":      t.Type,
		"framework": t.Framework,
		"projectId": t.ProjectID,
		"createdAt": formatTime(t.CreatedAt),
		"updatedAt": formatTime(t.UpdatedAt),
	})
	if err != nil {
		return nil, fmt.Errorf("create test: %w", err)
	}
	return &t, nil
}

// GetTest returns the test with the given id, or NotFoundError.
func (c *Canvas) GetTest(ctx context.Context, id string) (*Test, error) {
	records, err := c.read(ctx, `
		MATCH (t:Test {id: $id})
		RETURN properties(t) AS props`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get test: %w", err)
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Entity: "test", ID: id}
	}
	props, _ := recordProps(records[0])
	return testFromProps(props), nil
}

// ListTestsByProject returns a project's tests ordered by creation time.
func (c *Canvas) ListTestsByProject(ctx context.Context, projectID string) ([]Test, error) {
	records, err := c.read(ctx, `
		MATCH (t:Test {projectId: $projectId})
		RETURN properties(t) AS props
		ORDER BY t.createdAt ASC`, map[string]any{"projectId": projectID})
	if err != nil {
		return nil, fmt.Errorf("list tests: %w", err)
	}
	out := make([]Test, 0, len(records))
	for _, rec := range records {
		if props, ok := recordProps(rec); ok {
			out = append(out, *testFromProps(props))
		}
	}
	return out, nil
}

// DeleteTest detach-deletes the test node.
func (c *Canvas) DeleteTest(ctx context.Context, id string) error {
	records, err := c.write(ctx, `
		MATCH (t:Test {id: $id})
		DETACH DELETE t
		RETURN count(*) AS deleted`, map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("delete test: %w", err)
	}
	if deletedCount(records) == 0 {
		return &NotFoundError{Entity: "test", ID: id}
	}
	return nil
}

func testFromProps(props map[string]any) *Test {
	return &Test{
		ID:        propString(props, "id"),
		Name:      propString(props, "name"),
		FilePath:  propString(props, "filePath"),
		Type:      propString(props, "type"),
		Framework: propString(props, "framework"),
		ProjectID: propString(props, "projectId"),
		CreatedAt: propTime(props, "createdAt"),
		UpdatedAt: propTime(props, "updatedAt"),
	}
}
