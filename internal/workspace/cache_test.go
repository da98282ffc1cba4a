package workspace

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/linkgraph/internal/graph"
	"github.com/mvp-joe/linkgraph/internal/ir"
)

// Test Plan for GraphCache:
// - An unchanged file is served from the cache
// - A rewritten file is read again
// - Missing and corrupt files are errors and leave nothing cached
// - Invalidate and Clear drop entries
// - Non-positive capacities are rejected

func cacheGraph(unit string, nodes int) *graph.Graph {
	g := graph.New(unit)
	for i := 0; i < nodes; i++ {
		g.AddNode(graph.NewNode(ir.SymbolID{Unit: 0, Index: uint32(i)}, ir.NoPromoted, unit+"::f"+string(rune('a'+i))))
	}
	return g
}

func TestGraphCache_Load(t *testing.T) {
	t.Parallel()

	cache, err := NewGraphCache(1000)
	require.NoError(t, err)
	defer cache.Close()

	path := filepath.Join(t.TempDir(), "app"+graph.UnitGraphExt)
	require.NoError(t, graph.WriteFile(path, cacheGraph("app", 2)))

	first, err := cache.Load(path)
	require.NoError(t, err)
	second, err := cache.Load(path)
	require.NoError(t, err)
	assert.Same(t, first, second)

	// Rewrite with a different size and a later mtime.
	require.NoError(t, graph.WriteFile(path, cacheGraph("app", 3)))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	third, err := cache.Load(path)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, 3, third.NodeCount())
}

func TestGraphCache_Errors(t *testing.T) {
	t.Parallel()

	cache, err := NewGraphCache(1000)
	require.NoError(t, err)
	defer cache.Close()

	dir := t.TempDir()
	_, err = cache.Load(filepath.Join(dir, "missing"+graph.UnitGraphExt))
	assert.Error(t, err)

	corrupt := filepath.Join(dir, "corrupt"+graph.UnitGraphExt)
	require.NoError(t, os.WriteFile(corrupt, []byte("{"), 0644))
	_, err = cache.Load(corrupt)
	assert.Error(t, err)
	assert.Zero(t, cache.Len())
}

func TestGraphCache_Invalidate(t *testing.T) {
	t.Parallel()

	cache, err := NewGraphCache(1000)
	require.NoError(t, err)
	defer cache.Close()

	path := filepath.Join(t.TempDir(), "app"+graph.UnitGraphExt)
	require.NoError(t, graph.WriteFile(path, cacheGraph("app", 1)))

	first, err := cache.Load(path)
	require.NoError(t, err)
	cache.Invalidate(path)
	second, err := cache.Load(path)
	require.NoError(t, err)
	assert.NotSame(t, first, second)

	cache.Clear()
	third, err := cache.Load(path)
	require.NoError(t, err)
	assert.NotSame(t, second, third)
}

func TestGraphCache_InvalidCapacity(t *testing.T) {
	t.Parallel()

	_, err := NewGraphCache(0)
	assert.Error(t, err)
	_, err = NewGraphCache(-1)
	assert.Error(t, err)
}
