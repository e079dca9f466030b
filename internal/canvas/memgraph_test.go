package canvas

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/basket/go-canvas/internal/graph"
)

// memGraph is a property-graph stand-in that understands the query shapes
// the repositories issue. It lets the full pipeline (manager, breaker,
// retry) run unchanged in tests.
type memGraph struct {
	nodes []*memNode
	rels  []memRel
}

type memNode struct {
	label string
	props map[string]any
}

type memRel struct {
	from, to *memNode
	relType  string
}

func (g *memGraph) find(label, id string) *memNode {
	for _, n := range g.nodes {
		if n.label == label && n.props["id"] == id {
			return n
		}
	}
	return nil
}

func (g *memGraph) relCount() int { return len(g.rels) }

type memDriver struct {
	g *memGraph
	// failNext injects one error per queued entry before any query runs.
	failNext []error
}

func (d *memDriver) run(ctx context.Context, work graph.TxWork) (any, error) {
	if len(d.failNext) > 0 {
		err := d.failNext[0]
		d.failNext = d.failNext[1:]
		return nil, err
	}
	return work(ctx, &memTx{g: d.g})
}

func (d *memDriver) ExecuteRead(ctx context.Context, work graph.TxWork) (any, error) {
	return d.run(ctx, work)
}

func (d *memDriver) ExecuteWrite(ctx context.Context, work graph.TxWork) (any, error) {
	return d.run(ctx, work)
}

func (d *memDriver) VerifyConnectivity(ctx context.Context) error { return nil }
func (d *memDriver) Close(ctx context.Context) error              { return nil }

type memTx struct {
	g *memGraph
}

var (
	createNodeRe = regexp.MustCompile(`CREATE \(\w+:(\w+) \{`)
	matchByIDRe  = regexp.MustCompile(`MATCH \(\w+:(\w+) \{id: \$id\}\)`)
	matchByKeyRe = regexp.MustCompile(`MATCH \(\w+:(\w+) \{(\w+): \$(\w+)\}\)`)
	matchBareRe  = regexp.MustCompile(`MATCH \(\w+:(\w+)\)`)
	mergeRelRe   = regexp.MustCompile(`MERGE \(from\)-\[:(\w+)\]->\(to\)`)
	matchFromRe  = regexp.MustCompile(`MATCH \(from:(\w+) \{id: \$fromId\}\)`)
	matchToRe    = regexp.MustCompile(`MATCH \(to:(\w+) \{id: \$toId\}\)`)
)

func (t *memTx) Run(ctx context.Context, query string, params map[string]any) ([]graph.Record, error) {
	q := strings.Join(strings.Fields(query), " ")

	switch {
	case strings.Contains(q, "CREATE CONSTRAINT"):
		return nil, nil

	case strings.Contains(q, "RETURN 1 AS ok"):
		return []graph.Record{{"ok": int64(1)}}, nil

	case mergeRelRe.MatchString(q):
		return t.mergeRel(q, params)

	case strings.Contains(q, "CREATE (d:Diagnostic"):
		return t.createDiagnostic(params)

	case createNodeRe.MatchString(q) && !strings.Contains(q, "MATCH"):
		label := createNodeRe.FindStringSubmatch(q)[1]
		props := map[string]any{}
		for k, v := range params {
			props[k] = v
		}
		t.g.nodes = append(t.g.nodes, &memNode{label: label, props: props})
		return nil, nil

	case matchByIDRe.MatchString(q):
		return t.matchByID(q, params)

	case matchByKeyRe.MatchString(q):
		return t.matchByKey(q, params)

	case matchBareRe.MatchString(q):
		return t.matchAll(q, params)
	}
	return nil, fmt.Errorf("memgraph: unhandled query: %s", q)
}

func (t *memTx) mergeRel(q string, params map[string]any) ([]graph.Record, error) {
	relType := mergeRelRe.FindStringSubmatch(q)[1]
	fromLabel := matchFromRe.FindStringSubmatch(q)[1]
	toLabel := matchToRe.FindStringSubmatch(q)[1]
	from := t.g.find(fromLabel, params["fromId"].(string))
	to := t.g.find(toLabel, params["toId"].(string))
	if from == nil || to == nil {
		return nil, nil
	}
	for _, rel := range t.g.rels {
		if rel.from == from && rel.to == to && rel.relType == relType {
			return nil, nil
		}
	}
	t.g.rels = append(t.g.rels, memRel{from: from, to: to, relType: relType})
	return nil, nil
}

func (t *memTx) createDiagnostic(params map[string]any) ([]graph.Record, error) {
	failure := t.g.find("Failure", params["failureId"].(string))
	if failure == nil {
		return nil, nil
	}
	props := map[string]any{}
	for k, v := range params {
		props[k] = v
	}
	node := &memNode{label: "Diagnostic", props: props}
	t.g.nodes = append(t.g.nodes, node)
	t.g.rels = append(t.g.rels, memRel{from: node, to: failure, relType: "DIAGNOSES"})
	return []graph.Record{{"props": props}}, nil
}

func (t *memTx) matchByID(q string, params map[string]any) ([]graph.Record, error) {
	label := matchByIDRe.FindStringSubmatch(q)[1]
	node := t.g.find(label, params["id"].(string))

	switch {
	case strings.Contains(q, "DETACH DELETE"):
		deleted := int64(0)
		if node != nil {
			t.deleteNode(node)
			deleted = 1
		}
		return []graph.Record{{"deleted": deleted}}, nil

	case strings.Contains(q, "RETURN n.id AS id"):
		if node == nil {
			return nil, nil
		}
		return []graph.Record{{"id": node.props["id"]}}, nil

	case strings.Contains(q, "SET"):
		if node == nil {
			return nil, nil
		}
		if fields, ok := params["fields"].(map[string]any); ok {
			for k, v := range fields {
				node.props[k] = v
			}
		} else {
			if strings.Contains(q, "frequency + 1") {
				node.props["frequency"] = toInt(node.props["frequency"]) + 1
			}
			for k, v := range params {
				if k == "id" {
					continue
				}
				node.props[k] = v
			}
		}
		return []graph.Record{{"props": node.props}}, nil

	default:
		if node == nil {
			return nil, nil
		}
		return []graph.Record{{"props": node.props}}, nil
	}
}

func (t *memTx) matchByKey(q string, params map[string]any) ([]graph.Record, error) {
	m := matchByKeyRe.FindStringSubmatch(q)
	label, key, param := m[1], m[2], m[3]
	var matched []*memNode
	for _, n := range t.g.nodes {
		if n.label != label || n.props[key] != params[param] {
			continue
		}
		if strings.Contains(q, "expiresAt > $now") && n.props["expiresAt"].(string) <= params["now"].(string) {
			continue
		}
		matched = append(matched, n)
	}
	return propsRecords(q, matched), nil
}

func (t *memTx) matchAll(q string, params map[string]any) ([]graph.Record, error) {
	label := matchBareRe.FindStringSubmatch(q)[1]
	var matched []*memNode
	for _, n := range t.g.nodes {
		if n.label != label {
			continue
		}
		if strings.Contains(q, "expiresAt > $now") && n.props["expiresAt"].(string) <= params["now"].(string) {
			continue
		}
		if strings.Contains(q, "expiresAt <= $now") && n.props["expiresAt"].(string) > params["now"].(string) {
			continue
		}
		matched = append(matched, n)
	}

	if strings.Contains(q, "DETACH DELETE") {
		for _, n := range matched {
			t.deleteNode(n)
		}
		return []graph.Record{{"deleted": int64(len(matched))}}, nil
	}
	return propsRecords(q, matched), nil
}

func (t *memTx) deleteNode(node *memNode) {
	nodes := t.g.nodes[:0]
	for _, n := range t.g.nodes {
		if n != node {
			nodes = append(nodes, n)
		}
	}
	t.g.nodes = nodes
	rels := t.g.rels[:0]
	for _, rel := range t.g.rels {
		if rel.from != node && rel.to != node {
			rels = append(rels, rel)
		}
	}
	t.g.rels = rels
}

func propsRecords(q string, nodes []*memNode) []graph.Record {
	sorted := append([]*memNode(nil), nodes...)
	if strings.Contains(q, "ORDER BY") && strings.Contains(q, "strength DESC") {
		sort.SliceStable(sorted, func(a, b int) bool {
			return sorted[a].props["strength"].(float64) > sorted[b].props["strength"].(float64)
		})
	} else if strings.Contains(q, "ORDER BY") {
		sort.SliceStable(sorted, func(a, b int) bool {
			ca, _ := sorted[a].props["createdAt"].(string)
			cb, _ := sorted[b].props["createdAt"].(string)
			return ca < cb
		})
	}
	out := make([]graph.Record, 0, len(sorted))
	for _, n := range sorted {
		out = append(out, graph.Record{"props": n.props})
	}
	return out
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

// testCanvas builds a Canvas over a fresh in-memory graph with a
// controllable clock.
func testCanvas(t *testing.T) (*Canvas, *memGraph, *time.Time) {
	t.Helper()
	g := &memGraph{}
	manager := graph.NewManager(graph.ManagerConfig{
		Driver:  &memDriver{g: g},
		Breaker: graph.BreakerConfig{FailureThreshold: 5, MinimumThroughput: 10},
		Logger:  slog.New(slog.DiscardHandler),
	})
	c := New(Options{Manager: manager, Logger: slog.New(slog.DiscardHandler)})
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	c.nowFn = func() time.Time { return *clock }
	return c, g, clock
}
