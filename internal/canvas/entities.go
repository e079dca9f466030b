package canvas

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/basket/go-canvas/internal/graph"
)

// timeFormat is a fixed-width UTC layout. Timestamps are stored as strings
// in this layout so lexicographic comparison inside queries orders them
// chronologically.
const timeFormat = "2006-01-02T15:04:05.000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeFormat, s)
}

// Project is the root scope for tasks, contracts and artifacts.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Task is a unit of work inside a project.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
	ProjectID   string    `json:"projectId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Agent is a worker identity that tasks can be assigned to.
type Agent struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	Capabilities []string  `json:"capabilities"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Pheromone is a decaying guidance signal for inter-agent coordination.
// It is the only entity with built-in expiry.
type Pheromone struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Strength  float64        `json:"strength"`
	Context   string         `json:"context"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	ExpiresAt time.Time      `json:"expiresAt"`
}

// Contract is a machine-readable interface specification.
type Contract struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Type          string    `json:"type"`
	Version       string    `json:"version"`
	Specification string    `json:"specification"`
	ProjectID     string    `json:"projectId"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// CodeModule is a tracked source unit.
type CodeModule struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	FilePath  string    `json:"filePath"`
	Type      string    `json:"type"`
	Language  string    `json:"language"`
	ProjectID string    `json:"projectId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Test is a tracked test definition, linked to the code it covers.
type Test struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	FilePath  string    `json:"filePath"`
	Type      string    `json:"type"`
	Framework string    `json:"framework"`
	ProjectID string    `json:"projectId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ArchitecturalDecision records a design choice and its rationale.
type ArchitecturalDecision struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Rationale   string    `json:"rationale"`
	Status      string    `json:"status"`
	ProjectID   string    `json:"projectId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Failure records an observed fault, scoped to a project and optionally a
// task.
type Failure struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId,omitempty"`
	ProjectID string    `json:"projectId"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Severity  string    `json:"severity"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Diagnostic is an analysis attached to a failure.
type Diagnostic struct {
	ID         string    `json:"id"`
	FailureID  string    `json:"failureId"`
	Hypothesis string    `json:"hypothesis"`
	Evidence   string    `json:"evidence"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Pattern is a recurring observation promoted from individual failures or
// successes.
type Pattern struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Frequency   int       `json:"frequency"`
	Confidence  float64   `json:"confidence"`
	ProjectID   string    `json:"projectId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Artifact is a produced deliverable tracked by path.
type Artifact struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Path      string    `json:"path"`
	ProjectID string    `json:"projectId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Prototype is an exploratory implementation, optionally promoted against a
// contract.
type Prototype struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	FilePath  string    `json:"filePath"`
	Status    string    `json:"status"`
	ProjectID string    `json:"projectId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

var (
	projectStatuses   = []string{"active", "paused", "completed", "archived"}
	taskStatuses      = []string{"pending", "in_progress", "completed", "failed", "cancelled"}
	taskPriorities    = []string{"low", "medium", "high", "critical"}
	agentStatuses     = []string{"active", "inactive", "busy", "error"}
	pheromoneTypes    = []string{"guide", "warn", "impasse", "error", "progress"}
	contractTypes     = []string{"openapi", "json-schema", "property-definition"}
	codeModuleTypes   = []string{"function", "class", "module", "component"}
	testTypes         = []string{"unit", "integration", "e2e", "contract"}
	decisionStatuses  = []string{"proposed", "accepted", "rejected", "deprecated"}
	failureTypes      = []string{"build", "test", "runtime", "integration"}
	failureSeverities = []string{"low", "medium", "high", "critical"}
	failureStatuses   = []string{"open", "diagnosed", "resolved"}
	patternTypes      = []string{"success", "failure", "optimization"}
	artifactTypes     = []string{"report", "document", "binary", "config"}
	prototypeStatuses = []string{"draft", "validated", "promoted", "discarded"}
)

var semverRe = regexp.MustCompile(`^v?\d+\.\d+\.\d+(-[0-9A-Za-z.-]+)?(\+[0-9A-Za-z.-]+)?$`)

func requireField(entity, field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Entity: entity, Field: field, Reason: "required"}
	}
	return nil
}

func requireEnum(entity, field, value string, domain []string) error {
	if !slices.Contains(domain, value) {
		return &ValidationError{
			Entity: entity,
			Field:  field,
			Reason: fmt.Sprintf("%q not in {%s}", value, strings.Join(domain, ", ")),
		}
	}
	return nil
}

func requireUnitRange(entity, field string, value float64) error {
	if value < 0 || value > 1 {
		return &ValidationError{
			Entity: entity,
			Field:  field,
			Reason: fmt.Sprintf("%g outside [0, 1]", value),
		}
	}
	return nil
}

func requireSemver(entity, field, value string) error {
	if !semverRe.MatchString(value) {
		return &ValidationError{Entity: entity, Field: field, Reason: fmt.Sprintf("%q is not a semantic version", value)}
	}
	return nil
}

// recordProps unwraps the property map returned by queries that project
// `properties(n) AS props`.
func recordProps(rec graph.Record) (map[string]any, bool) {
	props, ok := rec["props"].(map[string]any)
	return props, ok
}

func propString(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}

func propFloat(props map[string]any, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

func propInt(props map[string]any, key string) int {
	switch v := props[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func propStrings(props map[string]any, key string) []string {
	switch v := props[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func propTime(props map[string]any, key string) time.Time {
	s, ok := props[key].(string)
	if !ok {
		return time.Time{}
	}
	t, err := parseTime(s)
	if err != nil {
		return time.Time{}
	}
	return t
}
