package graph

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Graph is a directed multigraph of call edges between nodes. Nodes are unique
// by Node.Equal; parallel edges are kept.
type Graph struct {
	unit  string
	nodes []Node
	edges []Edge
	index map[string]int // Node.Key() -> position in nodes
}

// New creates an empty graph for a unit. The merged graph uses an empty unit name.
func New(unit string) *Graph {
	return &Graph{
		unit:  unit,
		nodes: []Node{},
		edges: []Edge{},
		index: make(map[string]int),
	}
}

// Unit returns the unit the graph was built for.
func (g *Graph) Unit() string { return g.unit }

// SetUnit renames the graph's unit.
func (g *Graph) SetUnit(unit string) { g.unit = unit }

// AddNode inserts n unless an equal node exists and returns its index.
func (g *Graph) AddNode(n Node) int {
	key := n.Key()
	if i, ok := g.index[key]; ok {
		return i
	}
	g.nodes = append(g.nodes, n)
	g.index[key] = len(g.nodes) - 1
	return len(g.nodes) - 1
}

// Lookup returns the index of the node equal to n.
func (g *Graph) Lookup(n Node) (int, bool) {
	i, ok := g.index[n.Key()]
	return i, ok
}

// AddEdge appends e. Parallel edges between the same nodes are legal.
func (g *Graph) AddEdge(e Edge) error {
	if e.From < 0 || e.From >= len(g.nodes) || e.To < 0 || e.To >= len(g.nodes) {
		return fmt.Errorf("edge %d -> %d: %w", e.From, e.To, ErrNodeOutOfRange)
	}
	if e.Args == nil {
		e.Args = []ArgWeight{}
	}
	g.edges = append(g.edges, e)
	return nil
}

// Node returns the node at index i.
func (g *Graph) Node(i int) Node { return g.nodes[i] }

// Nodes returns a copy of the nodes in index order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Edges returns a copy of the edges in insertion order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

func (g *Graph) NodeCount() int { return len(g.nodes) }
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Merge folds other into g. Nodes are unioned by equality and every edge of
// other is re-targeted onto g's indices of its endpoints.
func (g *Graph) Merge(other *Graph) {
	remap := make([]int, len(other.nodes))
	for i, n := range other.nodes {
		remap[i] = g.AddNode(n)
	}
	// other may be g itself; only the edges present before the merge are copied.
	edges := other.Edges()
	for _, e := range edges {
		e.From = remap[e.From]
		e.To = remap[e.To]
		e.Args = append([]ArgWeight(nil), e.Args...)
		if e.Args == nil {
			e.Args = []ArgWeight{}
		}
		g.edges = append(g.edges, e)
	}
}

// Clone returns a deep copy of g.
func (g *Graph) Clone() *Graph {
	c := New(g.unit)
	c.Merge(g)
	return c
}

// Equivalent reports whether g and other hold the same nodes up to equality and
// the same multiset of edges, independent of index order.
func (g *Graph) Equivalent(other *Graph) bool {
	if len(g.nodes) != len(other.nodes) || len(g.edges) != len(other.edges) {
		return false
	}
	for _, n := range g.nodes {
		if _, ok := other.Lookup(n); !ok {
			return false
		}
	}
	a, b := g.edgeSignatures(), other.edgeSignatures()
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// edgeSignatures renders each edge with endpoint keys in place of indices, sorted.
func (g *Graph) edgeSignatures() []string {
	out := make([]string, 0, len(g.edges))
	for _, e := range g.edges {
		from, to := g.nodes[e.From].Key(), g.nodes[e.To].Key()
		e.From, e.To = 0, 0
		body, _ := json.Marshal(e)
		out = append(out, from+"\x00"+to+"\x00"+string(body))
	}
	sort.Strings(out)
	return out
}

// Callees returns the distinct callee indices of node i in first-seen order.
func (g *Graph) Callees(i int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, e := range g.edges {
		if e.From == i && !seen[e.To] {
			seen[e.To] = true
			out = append(out, e.To)
		}
	}
	return out
}
