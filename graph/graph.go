// Package graph decodes exported workflow documents into an arena-indexed
// graph and derives predicates and labels for its edges.
package graph

import (
	"fmt"
	"slices"

	"github.com/meikuraledutech/splitflow"
)

// Limits bound the size of a graph accepted by Build. Zero means unbounded.
type Limits struct {
	MaxNodes int `yaml:"max_nodes" json:"max_nodes" validate:"gte=0"`
	MaxEdges int `yaml:"max_edges" json:"max_edges" validate:"gte=0"`
}

// DefaultLimits is used by callers that have no configured limits.
var DefaultLimits = Limits{MaxNodes: 5000, MaxEdges: 20000}

// Node is an arena entry. Out holds indices into the graph's edge slice in
// document order.
type Node struct {
	ID     string
	Kind   Kind
	Name   string
	Routes []RouteSpec
	Out    []int
}

// Edge connects two arena nodes. Position is the edge's index among its
// source node's outgoing edges. Condition is shared with the graph and must
// not be modified.
type Edge struct {
	From      int
	To        int
	Kind      EdgeKind
	Name      string
	Condition *Condition
	Position  int
}

// Graph owns all nodes and edges. It is immutable after Build.
type Graph struct {
	nodes    []Node
	edges    []Edge
	incoming [][]int
	index    map[string]int
}

// Parse decodes raw and builds the graph.
func Parse(raw []byte, limits Limits) (*Graph, []splitflow.Warning, error) {
	doc, err := Decode(raw)
	if err != nil {
		return nil, nil, err
	}
	return Build(doc, limits)
}

// Build indexes doc into a Graph. Size limits are checked before anything
// is allocated. Edges pointing at unknown nodes, repeated node ids and extra
// default edges are dropped and reported as warnings.
func Build(doc *Document, limits Limits) (*Graph, []splitflow.Warning, error) {
	if doc == nil || len(doc.Nodes) == 0 {
		return nil, nil, fmt.Errorf("%w: no nodes", splitflow.ErrMalformedDocument)
	}
	edgeCount := 0
	for _, n := range doc.Nodes {
		edgeCount += len(n.Edges)
	}
	if limits.MaxNodes > 0 && len(doc.Nodes) > limits.MaxNodes {
		return nil, nil, fmt.Errorf("%w: %d nodes (max %d)", splitflow.ErrGraphTooLarge, len(doc.Nodes), limits.MaxNodes)
	}
	if limits.MaxEdges > 0 && edgeCount > limits.MaxEdges {
		return nil, nil, fmt.Errorf("%w: %d edges (max %d)", splitflow.ErrGraphTooLarge, edgeCount, limits.MaxEdges)
	}

	var warnings []splitflow.Warning
	g := &Graph{
		nodes: make([]Node, 0, len(doc.Nodes)),
		edges: make([]Edge, 0, edgeCount),
		index: make(map[string]int, len(doc.Nodes)),
	}

	kept := make([]int, 0, len(doc.Nodes))
	for i, spec := range doc.Nodes {
		if _, dup := g.index[spec.ID]; dup {
			warnings = append(warnings, splitflow.Warning{
				Kind:    splitflow.WarnDuplicateNode,
				NodeID:  spec.ID,
				Message: "node id repeated, keeping the first occurrence",
			})
			continue
		}
		g.index[spec.ID] = len(g.nodes)
		g.nodes = append(g.nodes, Node{ID: spec.ID, Kind: spec.Kind, Name: spec.Name, Routes: slices.Clone(spec.Routes)})
		kept = append(kept, i)
	}
	g.incoming = make([][]int, len(g.nodes))

	for from, specIdx := range kept {
		spec := doc.Nodes[specIdx]
		hasDefault := false
		for _, e := range spec.Edges {
			to, ok := g.index[e.Next]
			if !ok {
				warnings = append(warnings, splitflow.Warning{
					Kind:    splitflow.WarnDanglingEdge,
					NodeID:  spec.ID,
					Message: fmt.Sprintf("edge %q points at unknown node %q", e.Name, e.Next),
				})
				continue
			}
			if e.Kind == Default {
				if hasDefault {
					warnings = append(warnings, splitflow.Warning{
						Kind:    splitflow.WarnDuplicateDefault,
						NodeID:  spec.ID,
						Message: fmt.Sprintf("second default edge %q dropped", e.Name),
					})
					continue
				}
				hasDefault = true
			}
			idx := len(g.edges)
			g.edges = append(g.edges, Edge{
				From:      from,
				To:        to,
				Kind:      e.Kind,
				Name:      e.Name,
				Condition: e.Condition,
				Position:  len(g.nodes[from].Out),
			})
			g.nodes[from].Out = append(g.nodes[from].Out, idx)
			g.incoming[to] = append(g.incoming[to], idx)
		}
	}
	return g, warnings, nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// EdgeCount returns the number of edges kept by Build.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Node returns a copy of the node at arena index i.
func (g *Graph) Node(i int) Node {
	n := g.nodes[i]
	n.Routes = slices.Clone(n.Routes)
	n.Out = slices.Clone(n.Out)
	return n
}

// Edge returns the edge at index i.
func (g *Graph) Edge(i int) Edge { return g.edges[i] }

// Lookup resolves a node id to its arena index.
func (g *Graph) Lookup(id string) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

// EdgesFrom returns the outgoing edge indices of node i in document order.
func (g *Graph) EdgesFrom(i int) []int { return slices.Clone(g.nodes[i].Out) }

// IncomingEdges returns the edge indices that point at node i.
func (g *Graph) IncomingEdges(i int) []int { return slices.Clone(g.incoming[i]) }

// EntryNodes returns every Trigger node in document order.
func (g *Graph) EntryNodes() []int {
	var out []int
	for i, n := range g.nodes {
		if n.Kind == KindTrigger {
			out = append(out, i)
		}
	}
	return out
}
