package graph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
)

// QueryOperation represents the type of graph query to perform.
type QueryOperation string

const (
	OperationCallers QueryOperation = "callers"
	OperationCallees QueryOperation = "callees"
	OperationPath    QueryOperation = "path"
)

// Query defaults and limits
const (
	DefaultDepth      = 1
	DefaultMaxResults = 100
	MaxDepth          = 10
)

// ErrNodeNotFound is returned when a query target matches no node.
var ErrNodeNotFound = errors.New("node not found")

// QueryRequest represents a graph query request.
type QueryRequest struct {
	Operation  QueryOperation // Type of query
	Target     string         // Node name (path after "~"), optionally with "::promoted[N]"
	To         string         // For path operation: destination node
	Depth      int            // Traversal depth (default: 1)
	MaxResults int            // Maximum number of results (default: 100)
}

// QueryResponse represents the response to a graph query.
type QueryResponse struct {
	Operation     string        `json:"operation"`
	Target        string        `json:"target"`
	Results       []QueryResult `json:"results"`
	TotalFound    int           `json:"total_found"`
	TotalReturned int           `json:"total_returned"`
	Truncated     bool          `json:"truncated"`
	Metadata      ResponseMeta  `json:"metadata"`
}

// QueryResult represents a single result from a graph query.
type QueryResult struct {
	Node   NodeInfo `json:"node"`
	Depth  int      `json:"depth,omitempty"` // Depth in traversal (for recursive queries)
	Weight float64  `json:"weight"`          // Summed weight of the calls linking this node to the previous one
	Calls  int      `json:"calls,omitempty"` // Number of parallel call edges collapsed into the link
	Kinds  []string `json:"kinds,omitempty"` // Distinct call kinds of the link
}

// ResponseMeta contains metadata about the query execution.
type ResponseMeta struct {
	TookMs int    `json:"took_ms"`
	Source string `json:"source"` // Always "graph"
}

// NodeInfo is the query-facing view of a node.
type NodeInfo struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Ident    string `json:"ident"`
	Promoted string `json:"promoted,omitempty"`
}

func newNodeInfo(n Node) NodeInfo {
	info := NodeInfo{Key: n.Key(), Name: n.Name(), Ident: n.Ident}
	if n.Promoted.IsSet() {
		info.Promoted = n.Promoted.String()
	}
	return info
}

// RankedNode is a node with its link-analysis score.
type RankedNode struct {
	Node  NodeInfo `json:"node"`
	Score float64  `json:"score"`
}

// Source supplies the graph a Searcher serves.
type Source func(ctx context.Context) (*Graph, error)

// FromFile serves the serialized graph at path.
func FromFile(path string) Source {
	return func(ctx context.Context) (*Graph, error) {
		return ReadFile(path)
	}
}

// FromGraph serves an in-memory graph.
func FromGraph(g *Graph) Source {
	return func(ctx context.Context) (*Graph, error) {
		return g, nil
	}
}

// Searcher answers queries over a collapsed view of a call graph, where
// parallel edges between two nodes are folded into one weighted link.
type Searcher interface {
	// Query executes a graph query and returns results.
	Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error)

	// Find returns nodes whose name matches text.
	Find(ctx context.Context, text string, limit int) ([]NodeInfo, error)

	// Rank returns the top nodes by weighted PageRank.
	Rank(limit int) []RankedNode

	// WriteDOT renders the collapsed graph in DOT syntax.
	WriteDOT(w io.Writer) error

	// Reload reloads the graph from its source.
	Reload(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// link is the collapsed form of all edges between two nodes.
type link struct {
	weight float64
	calls  int
	kinds  []CallKind
}

// searcher implements Searcher with an in-memory graph and a name index.
type searcher struct {
	source Source
	mu     sync.RWMutex // Protects graph, indexes and scores

	graph  graph.Graph[string, Node]
	nodes  map[string]Node             // key -> node
	byName map[string][]string         // name -> keys
	links  map[string]map[string]*link // from -> to -> link
	preds  map[string]map[string]*link // to -> from -> link
	index  bleve.Index
	scores map[string]float64 // PageRank, computed lazily
}

// NewSearcher creates a searcher and performs the initial load.
func NewSearcher(ctx context.Context, source Source) (Searcher, error) {
	s := &searcher{source: source}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload reloads the graph and rebuilds the indexes.
func (s *searcher) Reload(ctx context.Context) error {
	g, err := s.source(ctx)
	if err != nil {
		return fmt.Errorf("failed to load graph: %w", err)
	}

	dg := graph.New(func(n Node) string { return n.Key() }, graph.Directed())
	nodes := make(map[string]Node, g.NodeCount())
	byName := make(map[string][]string)
	for i, n := range g.Nodes() {
		if err := dg.AddVertex(n, graph.VertexAttribute("label", g.Label(i))); err != nil {
			return fmt.Errorf("failed to add node %s: %w", n.Key(), err)
		}
		nodes[n.Key()] = n
		byName[n.Name()] = append(byName[n.Name()], n.Key())
	}

	links := make(map[string]map[string]*link)
	preds := make(map[string]map[string]*link)
	for _, e := range g.Edges() {
		from, to := g.Node(e.From).Key(), g.Node(e.To).Key()
		if links[from] == nil {
			links[from] = make(map[string]*link)
		}
		l, ok := links[from][to]
		if !ok {
			l = &link{}
			links[from][to] = l
			if preds[to] == nil {
				preds[to] = make(map[string]*link)
			}
			preds[to][from] = l
		}
		l.weight += e.TotalWeight()
		l.calls++
		if !containsKind(l.kinds, e.Kind) {
			l.kinds = append(l.kinds, e.Kind)
		}
	}
	for from, tos := range links {
		for to, l := range tos {
			err := dg.AddEdge(from, to,
				graph.EdgeData(l),
				graph.EdgeAttribute("label", fmt.Sprintf("%.2f", l.weight)),
			)
			if err != nil {
				return fmt.Errorf("failed to add edge %s -> %s: %w", from, to, err)
			}
		}
	}

	index, err := buildNameIndex(ctx, nodes)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index != nil {
		s.index.Close()
	}
	s.graph = dg
	s.nodes = nodes
	s.byName = byName
	s.links = links
	s.preds = preds
	s.index = index
	s.scores = nil
	return nil
}

// Query executes a graph query.
func (s *searcher) Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := time.Now()

	if req.Depth <= 0 {
		req.Depth = DefaultDepth
	}
	if req.Depth > MaxDepth {
		req.Depth = MaxDepth
	}
	if req.MaxResults <= 0 {
		req.MaxResults = DefaultMaxResults
	}

	targets := s.resolve(req.Target)
	if len(targets) == 0 {
		return nil, s.notFound(ctx, req.Target)
	}

	var found []QueryResult
	switch req.Operation {
	case OperationCallers:
		found = s.traverse(targets, req.Depth, s.preds)
	case OperationCallees:
		found = s.traverse(targets, req.Depth, s.links)
	case OperationPath:
		to := s.resolve(req.To)
		if len(to) == 0 {
			return nil, s.notFound(ctx, req.To)
		}
		path, err := s.path(targets, to)
		if err != nil {
			return nil, err
		}
		found = path
	default:
		return nil, fmt.Errorf("unsupported operation: %s", req.Operation)
	}

	results := found
	if len(results) > req.MaxResults {
		results = results[:req.MaxResults]
	}

	return &QueryResponse{
		Operation:     string(req.Operation),
		Target:        req.Target,
		Results:       results,
		TotalFound:    len(found),
		TotalReturned: len(results),
		Truncated:     len(results) < len(found),
		Metadata: ResponseMeta{
			TookMs: int(time.Since(start).Milliseconds()),
			Source: "graph",
		},
	}, nil
}

// notFound builds an ErrNodeNotFound error, suggesting the closest name if any.
func (s *searcher) notFound(ctx context.Context, target string) error {
	if matches, err := s.find(ctx, target, 1); err == nil && len(matches) > 0 {
		return fmt.Errorf("%w: %s (did you mean %q?)", ErrNodeNotFound, target, matches[0].Name)
	}
	return fmt.Errorf("%w: %s", ErrNodeNotFound, target)
}

// resolve maps a query target to node keys: an exact key, a node name, or a
// node's display form with its promoted suffix.
func (s *searcher) resolve(target string) []string {
	if _, ok := s.nodes[target]; ok {
		return []string{target}
	}
	if keys, ok := s.byName[target]; ok {
		return keys
	}
	for key, n := range s.nodes {
		if n.String() == target {
			return []string{key}
		}
	}
	return nil
}

// traverse walks adjacency breadth-first up to depth, reporting each node once
// at the depth it was first reached.
func (s *searcher) traverse(start []string, depth int, adj map[string]map[string]*link) []QueryResult {
	results := []QueryResult{}
	visited := make(map[string]bool)
	for _, k := range start {
		visited[k] = true
	}

	frontier := start
	for d := 1; d <= depth && len(frontier) > 0; d++ {
		var next []string
		for _, k := range frontier {
			neighbors := sortedKeys(adj[k])
			for _, n := range neighbors {
				if visited[n] {
					continue
				}
				visited[n] = true
				l := adj[k][n]
				results = append(results, QueryResult{
					Node:   newNodeInfo(s.nodes[n]),
					Depth:  d,
					Weight: l.weight,
					Calls:  l.calls,
					Kinds:  kindNames(l.kinds),
				})
				next = append(next, n)
			}
		}
		frontier = next
	}
	return results
}

// path returns the shortest call chain from any source to any destination.
func (s *searcher) path(from, to []string) ([]QueryResult, error) {
	var best []string
	for _, src := range from {
		for _, dst := range to {
			p, err := graph.ShortestPath(s.graph, src, dst)
			if err != nil {
				continue
			}
			if best == nil || len(p) < len(best) {
				best = p
			}
		}
	}
	if best == nil {
		return []QueryResult{}, nil
	}

	results := make([]QueryResult, 0, len(best))
	for i, key := range best {
		r := QueryResult{Node: newNodeInfo(s.nodes[key]), Depth: i}
		if i > 0 {
			l := s.links[best[i-1]][key]
			r.Weight, r.Calls, r.Kinds = l.weight, l.calls, kindNames(l.kinds)
		}
		results = append(results, r)
	}
	return results, nil
}

// Find returns nodes whose name matches text.
func (s *searcher) Find(ctx context.Context, text string, limit int) ([]NodeInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.find(ctx, text, limit)
}

// Rank returns the top nodes by weighted PageRank.
func (s *searcher) Rank(limit int) []RankedNode {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scores == nil {
		s.scores = pageRank(s.sortedNodeKeys(), s.links)
	}

	ranked := make([]RankedNode, 0, len(s.scores))
	for key, score := range s.scores {
		ranked = append(ranked, RankedNode{Node: newNodeInfo(s.nodes[key]), Score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Node.Key < ranked[j].Node.Key
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// WriteDOT renders the collapsed graph in DOT syntax.
func (s *searcher) WriteDOT(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return draw.DOT(s.graph, w, draw.GraphAttribute("rankdir", "LR"))
}

// Close releases resources.
func (s *searcher) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return nil
	}
	err := s.index.Close()
	s.index = nil
	return err
}

func (s *searcher) sortedNodeKeys() []string {
	keys := make([]string, 0, len(s.nodes))
	for k := range s.nodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeys(m map[string]*link) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func containsKind(kinds []CallKind, k CallKind) bool {
	for _, existing := range kinds {
		if existing == k {
			return true
		}
	}
	return false
}

func kindNames(kinds []CallKind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = k.String()
	}
	return out
}
