package workspace

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/maypok86/otter"

	"github.com/mvp-joe/linkgraph/internal/graph"
)

// DefaultCacheCapacity bounds the cached graphs by their total node and edge count.
const DefaultCacheCapacity = 1 << 20

// GraphCache keeps decoded unit graphs keyed by file path so repeated merges
// only re-read files that changed. Cached graphs are shared; callers must not
// modify them.
type GraphCache struct {
	cache otter.Cache[string, cachedGraph]
}

type cachedGraph struct {
	modTime time.Time
	size    int64
	graph   *graph.Graph
}

// NewGraphCache creates a cache holding at most capacity nodes plus edges.
func NewGraphCache(capacity int) (*GraphCache, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("invalid graph cache capacity %d", capacity)
	}
	cache, err := otter.MustBuilder[string, cachedGraph](capacity).
		Cost(func(key string, value cachedGraph) uint32 {
			cost := uint64(value.graph.NodeCount()) + uint64(value.graph.EdgeCount()) + 1
			if cost > math.MaxUint32 {
				return math.MaxUint32
			}
			return uint32(cost)
		}).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build graph cache: %w", err)
	}
	return &GraphCache{cache: cache}, nil
}

// Load returns the graph stored at path, from the cache when the file is
// unchanged since it was cached.
func (c *GraphCache) Load(path string) (*graph.Graph, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph file: %w", err)
	}

	if entry, ok := c.cache.Get(path); ok && entry.modTime.Equal(info.ModTime()) && entry.size == info.Size() {
		return entry.graph, nil
	}

	g, err := graph.ReadFile(path)
	if err != nil {
		c.cache.Delete(path)
		return nil, err
	}
	c.cache.Set(path, cachedGraph{modTime: info.ModTime(), size: info.Size(), graph: g})
	return g, nil
}

// Invalidate drops the entry for path.
func (c *GraphCache) Invalidate(path string) {
	c.cache.Delete(path)
}

// Clear drops every entry.
func (c *GraphCache) Clear() {
	c.cache.Clear()
}

// Len returns the number of cached graphs.
func (c *GraphCache) Len() int {
	return c.cache.Size()
}

// Close releases the cache.
func (c *GraphCache) Close() {
	c.cache.Close()
}
