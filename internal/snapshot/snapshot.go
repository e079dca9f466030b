// Package snapshot serializes the whole graph to a portable JSON document
// and restores it, plus best-effort periodic auto-save.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/basket/go-canvas/internal/graph"
	otelPkg "github.com/basket/go-canvas/internal/otel"
)

// FormatVersion is written into every snapshot document. Load accepts only
// documents with the same major version.
const FormatVersion = "1.0"

// Document is the portable snapshot format.
type Document struct {
	Version       string         `json:"version"`
	Timestamp     string         `json:"timestamp"`
	Metadata      Metadata       `json:"metadata"`
	Nodes         []Node         `json:"nodes"`
	Relationships []Relationship `json:"relationships"`
}

// Metadata summarizes a snapshot for quick inspection and restore
// verification.
type Metadata struct {
	TotalNodes         int            `json:"totalNodes"`
	TotalRelationships int            `json:"totalRelationships"`
	NodeTypes          map[string]int `json:"nodeTypes"`
}

// Node is one exported graph node. ID is only stable within the document.
type Node struct {
	ID         string         `json:"id"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties"`
}

// Relationship is one exported edge, referencing nodes by document id.
type Relationship struct {
	ID         string         `json:"id"`
	StartNode  string         `json:"startNode"`
	EndNode    string         `json:"endNode"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
}

// Stats reports what a save or load touched.
type Stats struct {
	Nodes         int
	Relationships int
}

// documentSchema validates the shape of a snapshot document before any
// destructive restore work begins.
const documentSchema = `{
	"type": "object",
	"required": ["version", "timestamp", "metadata", "nodes", "relationships"],
	"properties": {
		"version": {"type": "string"},
		"timestamp": {"type": "string"},
		"metadata": {
			"type": "object",
			"required": ["totalNodes", "totalRelationships"],
			"properties": {
				"totalNodes": {"type": "integer", "minimum": 0},
				"totalRelationships": {"type": "integer", "minimum": 0}
			}
		},
		"nodes": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "labels", "properties"],
				"properties": {
					"id": {"type": "string"},
					"labels": {"type": "array", "items": {"type": "string"}},
					"properties": {"type": "object"}
				}
			}
		},
		"relationships": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "startNode", "endNode", "type"],
				"properties": {
					"id": {"type": "string"},
					"startNode": {"type": "string"},
					"endNode": {"type": "string"},
					"type": {"type": "string"},
					"properties": {"type": "object"}
				}
			}
		}
	}
}`

// Manager owns snapshot save/load and the auto-save loop.
type Manager struct {
	graph     *graph.Manager
	dir       string
	batchSize int
	logger    *slog.Logger
	metrics   *otelPkg.Metrics
	schema    *jsonschema.Schema
	nowFn     func() time.Time

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	running bool
}

// Config wires a snapshot Manager.
type Config struct {
	Graph *graph.Manager
	// Dir receives auto-save and CreateSnapshot files.
	Dir string
	// BatchSize bounds node-recreation statements during restore. Defaults
	// to 100.
	BatchSize int
	Logger    *slog.Logger
	Metrics   *otelPkg.Metrics
}

// NewManager creates a snapshot manager. The document schema is compiled
// here; a compile failure is a programming error and panics.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(documentSchema))
	if err != nil {
		panic(fmt.Sprintf("snapshot schema: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("snapshot.json", doc); err != nil {
		panic(fmt.Sprintf("snapshot schema: %v", err))
	}
	schema, err := compiler.Compile("snapshot.json")
	if err != nil {
		panic(fmt.Sprintf("snapshot schema: %v", err))
	}

	return &Manager{
		graph:     cfg.Graph,
		dir:       cfg.Dir,
		batchSize: batchSize,
		logger:    logger.With("component", "snapshot"),
		metrics:   cfg.Metrics,
		schema:    schema,
		nowFn:     time.Now,
	}
}

// Save exports every node and relationship to path, written atomically.
// Parent directories are created as needed.
func (m *Manager) Save(ctx context.Context, path string) (Stats, error) {
	start := m.nowFn()

	doc, err := m.export(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("snapshot save: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return Stats{}, fmt.Errorf("snapshot save: marshal: %w", err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return Stats{}, fmt.Errorf("snapshot save: %w", err)
	}

	stats := Stats{Nodes: doc.Metadata.TotalNodes, Relationships: doc.Metadata.TotalRelationships}
	m.logger.Info("snapshot saved",
		"path", path,
		"nodes", stats.Nodes,
		"relationships", stats.Relationships,
	)
	m.observe(ctx, start, stats)
	return stats, nil
}

func (m *Manager) observe(ctx context.Context, start time.Time, stats Stats) {
	if m.metrics == nil {
		return
	}
	m.metrics.SnapshotDuration.Record(ctx, time.Since(start).Seconds())
	m.metrics.SnapshotNodes.Add(ctx, int64(stats.Nodes))
}

// export reads the node set first, then relationships, so endpoint ids can
// be cross-referenced during restore.
func (m *Manager) export(ctx context.Context) (*Document, error) {
	result, err := m.graph.ExecuteRead(ctx, func(ctx context.Context, tx graph.Tx) (any, error) {
		nodes, err := tx.Run(ctx, `
			MATCH (n)
			RETURN elementId(n) AS id, labels(n) AS labels, properties(n) AS props`, nil)
		if err != nil {
			return nil, err
		}
		rels, err := tx.Run(ctx, `
			MATCH (a)-[r]->(b)
			RETURN elementId(r) AS id, elementId(a) AS startNode,
				elementId(b) AS endNode, type(r) AS type, properties(r) AS props`, nil)
		if err != nil {
			return nil, err
		}
		return [2][]graph.Record{nodes, rels}, nil
	})
	if err != nil {
		return nil, err
	}
	raw := result.([2][]graph.Record)

	doc := &Document{
		Version:       FormatVersion,
		Timestamp:     m.nowFn().UTC().Format(time.RFC3339),
		Nodes:         make([]Node, 0, len(raw[0])),
		Relationships: make([]Relationship, 0, len(raw[1])),
	}
	nodeTypes := map[string]int{}
	for _, rec := range raw[0] {
		node := Node{
			ID:         stringValue(rec["id"]),
			Labels:     stringsValue(rec["labels"]),
			Properties: mapValue(rec["props"]),
		}
		doc.Nodes = append(doc.Nodes, node)
		for _, label := range node.Labels {
			nodeTypes[label]++
		}
	}
	for _, rec := range raw[1] {
		doc.Relationships = append(doc.Relationships, Relationship{
			ID:         stringValue(rec["id"]),
			StartNode:  stringValue(rec["startNode"]),
			EndNode:    stringValue(rec["endNode"]),
			Type:       stringValue(rec["type"]),
			Properties: mapValue(rec["props"]),
		})
	}
	doc.Metadata = Metadata{
		TotalNodes:         len(doc.Nodes),
		TotalRelationships: len(doc.Relationships),
		NodeTypes:          nodeTypes,
	}
	return doc, nil
}

// Load validates the document at path, destructively clears the store,
// then recreates nodes in batches and relationships by matching recreated
// endpoints on their full property set. The property-set match is best
// effort: nodes with identical properties are indistinguishable after
// restore.
func (m *Manager) Load(ctx context.Context, path string) (Stats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Stats{}, fmt.Errorf("snapshot load: %w", err)
	}

	raw, err := jsonschema.UnmarshalJSON(strings.NewReader(string(data)))
	if err != nil {
		return Stats{}, fmt.Errorf("snapshot load: parse: %w", err)
	}
	if err := m.schema.Validate(raw); err != nil {
		return Stats{}, fmt.Errorf("snapshot load: invalid document: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Stats{}, fmt.Errorf("snapshot load: decode: %w", err)
	}
	if major(doc.Version) != major(FormatVersion) {
		return Stats{}, fmt.Errorf("snapshot load: unsupported version %q", doc.Version)
	}

	if err := m.clear(ctx); err != nil {
		return Stats{}, fmt.Errorf("snapshot load: clear: %w", err)
	}
	if err := m.restoreNodes(ctx, doc.Nodes); err != nil {
		return Stats{}, fmt.Errorf("snapshot load: nodes: %w", err)
	}
	if err := m.restoreRelationships(ctx, &doc); err != nil {
		return Stats{}, fmt.Errorf("snapshot load: relationships: %w", err)
	}

	stats := Stats{Nodes: len(doc.Nodes), Relationships: len(doc.Relationships)}
	m.logger.Info("snapshot restored",
		"path", path,
		"nodes", stats.Nodes,
		"relationships", stats.Relationships,
	)
	return stats, nil
}

func major(version string) string {
	if i := strings.IndexByte(version, '.'); i >= 0 {
		return version[:i]
	}
	return version
}

func (m *Manager) clear(ctx context.Context) error {
	_, err := m.graph.ExecuteWrite(ctx, func(ctx context.Context, tx graph.Tx) (any, error) {
		return tx.Run(ctx, "MATCH (n) DETACH DELETE n", nil)
	})
	return err
}

// restoreNodes groups nodes by label set, since labels cannot be
// parameterized, and recreates each group in fixed-size batches.
func (m *Manager) restoreNodes(ctx context.Context, nodes []Node) error {
	groups := map[string][]map[string]any{}
	for _, node := range nodes {
		key := labelKey(node.Labels)
		props := node.Properties
		if props == nil {
			props = map[string]any{}
		}
		groups[key] = append(groups[key], props)
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		query := fmt.Sprintf(`
			UNWIND $batch AS props
			CREATE (n%s)
			SET n = props`, key)
		batch := groups[key]
		for start := 0; start < len(batch); start += m.batchSize {
			end := min(start+m.batchSize, len(batch))
			_, err := m.graph.ExecuteWrite(ctx, func(ctx context.Context, tx graph.Tx) (any, error) {
				return tx.Run(ctx, query, map[string]any{"batch": batch[start:end]})
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// labelKey renders a label set as a stable Cypher label expression, e.g.
// ":Task" or ":Task:Archived".
func labelKey(labels []string) string {
	sorted := append([]string(nil), labels...)
	sort.Strings(sorted)
	var b strings.Builder
	for _, label := range sorted {
		b.WriteByte(':')
		b.WriteString(label)
	}
	return b.String()
}

// restoreRelationships recreates edges by matching endpoints on their full
// property set, grouped by relationship type.
func (m *Manager) restoreRelationships(ctx context.Context, doc *Document) error {
	nodeProps := make(map[string]map[string]any, len(doc.Nodes))
	for _, node := range doc.Nodes {
		props := node.Properties
		if props == nil {
			props = map[string]any{}
		}
		nodeProps[node.ID] = props
	}

	groups := map[string][]map[string]any{}
	for _, rel := range doc.Relationships {
		startProps, ok := nodeProps[rel.StartNode]
		if !ok {
			return fmt.Errorf("relationship %s references unknown start node %s", rel.ID, rel.StartNode)
		}
		endProps, ok := nodeProps[rel.EndNode]
		if !ok {
			return fmt.Errorf("relationship %s references unknown end node %s", rel.ID, rel.EndNode)
		}
		props := rel.Properties
		if props == nil {
			props = map[string]any{}
		}
		groups[rel.Type] = append(groups[rel.Type], map[string]any{
			"startProps": startProps,
			"endProps":   endProps,
			"props":      props,
		})
	}

	types := make([]string, 0, len(groups))
	for relType := range groups {
		types = append(types, relType)
	}
	sort.Strings(types)

	for _, relType := range types {
		query := fmt.Sprintf(`
			UNWIND $batch AS rel
			MATCH (a) WHERE properties(a) = rel.startProps
			MATCH (b) WHERE properties(b) = rel.endProps
			CREATE (a)-[r:%s]->(b)
			SET r = rel.props`, relType)
		batch := groups[relType]
		for start := 0; start < len(batch); start += m.batchSize {
			end := min(start+m.batchSize, len(batch))
			_, err := m.graph.ExecuteWrite(ctx, func(ctx context.Context, tx graph.Tx) (any, error) {
				return tx.Run(ctx, query, map[string]any{"batch": batch[start:end]})
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// CreateSnapshot saves to a timestamped file under the configured
// directory and returns its path.
func (m *Manager) CreateSnapshot(ctx context.Context) (string, error) {
	if m.dir == "" {
		return "", fmt.Errorf("create snapshot: no snapshot directory configured")
	}
	name := fmt.Sprintf("canvas-%s.json", m.nowFn().UTC().Format("20060102-150405"))
	path := filepath.Join(m.dir, name)
	if _, err := m.Save(ctx, path); err != nil {
		return "", err
	}
	return path, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func stringsValue(v any) []string {
	switch items := v.(type) {
	case []string:
		return items
	case []any:
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func mapValue(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}
