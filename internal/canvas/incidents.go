package canvas

import (
	"context"
	"fmt"
)

// CreateFailure validates and stores an observed fault. Status defaults to
// "open".
func (c *Canvas) CreateFailure(ctx context.Context, f Failure) (*Failure, error) {
	if err := requireField("failure", "message", f.Message); err != nil {
		return nil, c.invalid(err)
	}
	if err := requireField("failure", "projectId", f.ProjectID); err != nil {
		return nil, c.invalid(err)
	}
	if err := requireEnum("failure", "type", f.Type, failureTypes); err != nil {
		return nil, c.invalid(err)
	}
	if err := requireEnum("failure", "severity", f.Severity, failureSeverities); err != nil {
		return nil, c.invalid(err)
	}
	if f.Status == "" {
		f.Status = "open"
	}
	if err := requireEnum("failure", "status", f.Status, failureStatuses); err != nil {
		return nil, c.invalid(err)
	}
	if f.ID == "" {
		f.ID = c.newID()
	}
	now := c.nowFn()
	f.CreatedAt = now
	f.UpdatedAt = now

	_, err := c.write(ctx, `
		CREATE (f:Failure {
			id: $id, taskId: $taskId, projectId: $projectId, type: $type,
			message: $message, severity: $severity, status: $status,
			createdAt: $createdAt, updatedAt: $updatedAt
		})`, map[string]any{
		"id":        f.ID,
		"taskId":    f.TaskID,
		"projectId": f.ProjectID,
		"type":      f.Type,
		"message":   f.Message,
		"severity":  f.Severity,
		"status":    f.Status,
		"createdAt": formatTime(f.CreatedAt),
		"updatedAt": formatTime(f.UpdatedAt),
	})
	if err != nil {
		return nil, fmt.Errorf("create failure: %w", err)
	}
	return &f, nil
}

// GetFailure returns the failure with the given id, or NotFoundError.
func (c *Canvas) GetFailure(ctx context.Context, id string) (*Failure, error) {
	records, err := c.read(ctx, `
		MATCH (f:Failure {id: $id})
		RETURN properties(f) AS props`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get failure: %w", err)
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Entity: "failure", ID: id}
	}
	props, _ := recordProps(records[0])
	return failureFromProps(props), nil
}

// UpdateFailureStatus moves a failure through open → diagnosed → resolved.
func (c *Canvas) UpdateFailureStatus(ctx context.Context, id, status string) (*Failure, error) {
	if err := requireEnum("failure", "status", status, failureStatuses); err != nil {
		return nil, c.invalid(err)
	}
	records, err := c.write(ctx, `
		MATCH (f:Failure {id: $id})
		SET f.status = $status, f.updatedAt = $updatedAt
		RETURN properties(f) AS props`, map[string]any{
		"id":        id,
		"status":    status,
		"updatedAt": formatTime(c.nowFn()),
	})
	if err != nil {
		return nil, fmt.Errorf("update failure status: %w", err)
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Entity: "failure", ID: id}
	}
	props, _ := recordProps(records[0])
	return failureFromProps(props), nil
}

// ListFailuresByProject returns a project's failures ordered by creation
// time.
func (c *Canvas) ListFailuresByProject(ctx context.Context, projectID string) ([]Failure, error) {
	records, err := c.read(ctx, `
		MATCH (f:Failure {projectId: $projectId})
		RETURN properties(f) AS props
		ORDER BY f.createdAt ASC`, map[string]any{"projectId": projectID})
	if err != nil {
		return nil, fmt.Errorf("list failures: %w", err)
	}
	out := make([]Failure, 0, len(records))
	for _, rec := range records {
		if props, ok := recordProps(rec); ok {
			out = append(out, *failureFromProps(props))
		}
	}
	return out, nil
}

// DeleteFailure detach-deletes the failure and its diagnostics links.
func (c *Canvas) DeleteFailure(ctx context.Context, id string) error {
	records, err := c.write(ctx, `
		MATCH (f:Failure {id: $id})
		DETACH DELETE f
		RETURN count(*) AS deleted`, map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("delete failure: %w", err)
	}
	if deletedCount(records) == 0 {
		return &NotFoundError{Entity: "failure", ID: id}
	}
	return nil
}

func failureFromProps(props map[string]any) *Failure {
	return &Failure{
		ID:        propString(props, "id"),
		TaskID:    propString(props, "taskId"),
		ProjectID: propString(props, "projectId"),
		Type:      propString(props, "type"),
		Message:   propString(props, "message"),
		Severity:  propString(props, "severity"),
		Status:    propString(props, "status"),
		CreatedAt: propTime(props, "createdAt"),
		UpdatedAt: propTime(props, "updatedAt"),
	}
}

// CreateDiagnostic stores an analysis against an existing failure. The
// failure is verified in the same write transaction; a missing failure
// fails the whole operation.
func (c *Canvas) CreateDiagnostic(ctx context.Context, d Diagnostic) (*Diagnostic, error) {
	if err := requireField("diagnostic", "failureId", d.FailureID); err != nil {
		return nil, c.invalid(err)
	}
	if err := requireField("diagnostic", "hypothesis", d.Hypothesis); err != nil {
		return nil, c.invalid(err)
	}
	if err := requireUnitRange("diagnostic", "confidence", d.Confidence); err != nil {
		return nil, c.invalid(err)
	}
	if d.ID == "" {
		d.ID = c.newID()
	}
	now := c.nowFn()
	d.CreatedAt = now
	d.UpdatedAt = now

	records, err := c.write(ctx, `
		MATCH (f:Failure {id: $failureId})
		CREATE (d:Diagnostic {
			id: $id, failureId: $failureId, hypothesis: $hypothesis,
			evidence: $evidence, confidence: $confidence,
			createdAt: $createdAt, updatedAt: $updatedAt
		})
		CREATE (d)-[:DIAGNOSES]->(f)
		RETURN properties(d) AS props`, map[string]any{
		"id":         d.ID,
		"failureId":  d.FailureID,
		"hypothesis": d.Hypothesis,
		"evidence":   d.Evidence,
		"confidence": d.Confidence,
		"createdAt":  formatTime(d.CreatedAt),
		"updatedAt":  formatTime(d.UpdatedAt),
	})
	if err != nil {
		return nil, fmt.Errorf("create diagnostic: %w", err)
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Entity: "failure", ID: d.FailureID}
	}
	return &d, nil
}

// GetDiagnostic returns the diagnostic with the given id, or
// NotFoundError.
func (c *Canvas) GetDiagnostic(ctx context.Context, id string) (*Diagnostic, error) {
	records, err := c.read(ctx, `
		MATCH (d:Diagnostic {id: $id})
		RETURN properties(d) AS props`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get diagnostic: %w", err)
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Entity: "diagnostic", ID: id}
	}
	props, _ := recordProps(records[0])
	return diagnosticFromProps(props), nil
}

// ListDiagnosticsByFailure returns a failure's diagnostics ordered by
// creation time.
func (c *Canvas) ListDiagnosticsByFailure(ctx context.Context, failureID string) ([]Diagnostic, error) {
	records, err := c.read(ctx, `
		MATCH (d:Diagnostic {failureId: $failureId})
		RETURN properties(d) AS props
		ORDER BY d.createdAt ASC`, map[string]any{"failureId": failureID})
	if err != nil {
		return nil, fmt.Errorf("list diagnostics: %w", err)
	}
	out := make([]Diagnostic, 0, len(records))
	for _, rec := range records {
		if props, ok := recordProps(rec); ok {
			out = append(out, *diagnosticFromProps(props))
		}
	}
	return out, nil
}

// DeleteDiagnostic detach-deletes the diagnostic node.
func (c *Canvas) DeleteDiagnostic(ctx context.Context, id string) error {
	records, err := c.write(ctx, `
		MATCH (d:Diagnostic {id: $id})
		DETACH DELETE d
		RETURN count(*) AS deleted`, map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("delete diagnostic: %w", err)
	}
	if deletedCount(records) == 0 {
		return &NotFoundError{Entity: "diagnostic", ID: id}
	}
	return nil
}

func diagnosticFromProps(props map[string]any) *Diagnostic {
	return &Diagnostic{
		ID:         propString(props, "id"),
		FailureID:  propString(props, "failureId"),
		Hypothesis: propString(props, "hypothesis"),
		Evidence:   propString(props, "evidence"),
		Confidence: propFloat(props, "confidence"),
		CreatedAt:  propTime(props, "createdAt"),
		UpdatedAt:  propTime(props, "updatedAt"),
	}
}

// CreatePattern validates and stores a recurring observation.
func (c *Canvas) CreatePattern(ctx context.Context, p Pattern) (*Pattern, error) {
	if err := requireField("pattern", "name", p.Name); err != nil {
		return nil, c.invalid(err)
	}
	if err := requireField("pattern", "projectId", p.ProjectID); err != nil {
		return nil, c.invalid(err)
	}
	if err := requireEnum("pattern", "type", p.Type, patternTypes); err != nil {
		return nil, c.invalid(err)
	}
	if err := requireUnitRange("pattern", "confidence", p.Confidence); err != nil {
		return nil, c.invalid(err)
	}
	if p.Frequency < 0 {
		return nil, c.invalid(&ValidationError{Entity: "pattern", Field: "frequency", Reason: "must be non-negative"})
	}
	if p.Frequency == 0 {
		p.Frequency = 1
	}
	if p.ID == "" {
		p.ID = c.newID()
	}
	now := c.nowFn()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := c.write(ctx, `
		CREATE (p:Pattern {
			id: $id, name: $name, type: $type, description: $description,
			frequency: $frequency, confidence: $confidence,
			projectId: $projectId, createdAt: $createdAt, updatedAt: $updatedAt
		})`, map[string]any{
		"id":          p.ID,
		"name":        p.Name,
		"type":        p.Type,
		"description": p.Description,
		"frequency":   p.Frequency,
		"confidence":  p.Confidence,
		"projectId":   p.ProjectID,
		"createdAt":   formatTime(p.CreatedAt),
		"updatedAt":   formatTime(p.UpdatedAt),
	})
	if err != nil {
		return nil, fmt.Errorf("create pattern: %w", err)
	}
	return &p, nil
}

// GetPattern returns the pattern with the given id, or NotFoundError.
func (c *Canvas) GetPattern(ctx context.Context, id string) (*Pattern, error) {
	records, err := c.read(ctx, `
		MATCH (p:Pattern {id: $id})
		RETURN properties(p) AS props`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get pattern: %w", err)
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Entity: "pattern", ID: id}
	}
	props, _ := recordProps(records[0])
	return patternFromProps(props), nil
}

// ReinforcePattern bumps a pattern's observation count and confidence in
// one point update.
func (c *Canvas) ReinforcePattern(ctx context.Context, id string, confidence float64) (*Pattern, error) {
	if err := requireUnitRange("pattern", "confidence", confidence); err != nil {
		return nil, c.invalid(err)
	}
	records, err := c.write(ctx, `
		MATCH (p:Pattern {id: $id})
		SET p.frequency = p.frequency + 1,
			p.confidence = $confidence,
			p.updatedAt = $updatedAt
		RETURN properties(p) AS props`, map[string]any{
		"id":         id,
		"confidence": confidence,
		"updatedAt":  formatTime(c.nowFn()),
	})
	if err != nil {
		return nil, fmt.Errorf("reinforce pattern: %w", err)
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Entity: "pattern", ID: id}
	}
	props, _ := recordProps(records[0])
	return patternFromProps(props), nil
}

// ListPatternsByProject returns a project's patterns ordered by creation
// time.
func (c *Canvas) ListPatternsByProject(ctx context.Context, projectID string) ([]Pattern, error) {
	records, err := c.read(ctx, `
		MATCH (p:Pattern {projectId: $projectId})
		RETURN properties(p) AS props
		ORDER BY p.createdAt ASC`, map[string]any{"projectId": projectID})
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	out := make([]Pattern, 0, len(records))
	for _, rec := range records {
		if props, ok := recordProps(rec); ok {
			out = append(out, *patternFromProps(props))
		}
	}
	return out, nil
}

// DeletePattern detach-deletes the pattern node.
func (c *Canvas) DeletePattern(ctx context.Context, id string) error {
	records, err := c.write(ctx, `
		MATCH (p:Pattern {id: $id})
		DETACH DELETE p
		RETURN count(*) AS deleted`, map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("delete pattern: %w", err)
	}
	if deletedCount(records) == 0 {
		return &NotFoundError{Entity: "pattern", ID: id}
	}
	return nil
}

func patternFromProps(props map[string]any) *Pattern {
	return &Pattern{
		ID:          propString(props, "id"),
		Name:        propString(props, "name"),
		Type:        propString(props, "type"),
		Description: propString(props, "description"),
		Frequency:   propInt(props, "frequency"),
		Confidence:  propFloat(props, "confidence"),
		ProjectID:   propString(props, "projectId"),
		CreatedAt:   propTime(props, "createdAt"),
		UpdatedAt:   propTime(props, "updatedAt"),
	}
}
