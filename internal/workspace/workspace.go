// Package workspace runs the analysis over every unit of a build: one worker
// per unit, each writing its own graph into a cache directory, followed by a
// sequential merge into a single graph.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"golang.org/x/sync/errgroup"

	"github.com/mvp-joe/linkgraph/internal/analysis"
	"github.com/mvp-joe/linkgraph/internal/graph"
	"github.com/mvp-joe/linkgraph/internal/ir"
)

// MergedUnit is the unit name recorded in merged graphs.
const MergedUnit = "merged"

// ErrNoUnitGraphs is returned by Merge when the cache directory holds no unit graphs.
var ErrNoUnitGraphs = errors.New("no unit graphs to merge")

// Options configures a workspace.
type Options struct {
	IRDir       string // Directory holding <unit>.ir.json dumps
	CacheDir    string // Directory for per-unit graphs
	MergedFile  string // Output of Merge
	Workers     int    // Units analyzed at once; <= 0 uses the CPU count
	Unoptimized bool   // Prefer unoptimized bodies when a dump has them
	Include     []string

	Analysis analysis.Options
	Progress ProgressReporter

	// Inspect, when set, is called with every analyzed unit and its result.
	// Calls are serialized.
	Inspect func(unit *ir.Unit, result *analysis.Result)

	CacheCapacity int // Graph cache bound, DefaultCacheCapacity if zero
}

// Workspace owns the cache directory of one build.
type Workspace struct {
	opts      Options
	store     graph.Storage
	cache     *GraphCache
	include   []glob.Glob
	progress  ProgressReporter
	inspectMu sync.Mutex

	unitsMu sync.Mutex
	units   map[string]string // dump path to the unit name stored for it
}

// New creates a workspace, creating the cache directory if needed.
func New(opts Options) (*Workspace, error) {
	if opts.IRDir == "" {
		return nil, errors.New("IR directory is required")
	}
	if opts.MergedFile == "" {
		return nil, errors.New("merged file is required")
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.CacheCapacity == 0 {
		opts.CacheCapacity = DefaultCacheCapacity
	}

	include := make([]glob.Glob, 0, len(opts.Include))
	for _, pattern := range opts.Include {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid unit pattern %q: %w", pattern, err)
		}
		include = append(include, g)
	}

	store, err := graph.NewStorage(opts.CacheDir)
	if err != nil {
		return nil, err
	}
	cache, err := NewGraphCache(opts.CacheCapacity)
	if err != nil {
		return nil, err
	}

	progress := opts.Progress
	if progress == nil {
		progress = NoOpProgressReporter{}
	}

	return &Workspace{
		opts:     opts,
		store:    store,
		cache:    cache,
		include:  include,
		progress: progress,
		units:    make(map[string]string),
	}, nil
}

// Storage returns the per-unit graph storage.
func (w *Workspace) Storage() graph.Storage { return w.store }

// Options returns the options the workspace was created with, defaults applied.
func (w *Workspace) Options() Options { return w.opts }

// Close releases the graph cache.
func (w *Workspace) Close() {
	w.cache.Close()
}

// Run analyzes every selected unit from scratch and merges the results.
// Units that fail to load or save are reported in the stats and left out of
// the merge.
func (w *Workspace) Run(ctx context.Context) (*RunStats, error) {
	start := time.Now()

	if err := w.Clear(); err != nil {
		return nil, err
	}

	paths, err := w.Discover()
	if err != nil {
		return nil, err
	}
	w.progress.OnDiscoveryComplete(len(paths))

	units, err := w.AnalyzeAll(ctx, paths)
	if err != nil {
		return nil, err
	}

	merged, err := w.Merge(ctx)
	if err != nil {
		return nil, err
	}

	stats := &RunStats{
		Units:       units,
		MergedNodes: merged.NodeCount(),
		MergedEdges: merged.EdgeCount(),
		Duration:    time.Since(start),
	}
	w.progress.OnComplete(stats)
	return stats, nil
}

// Discover returns the IR dumps to analyze, sorted.
func (w *Workspace) Discover() ([]string, error) {
	paths, err := ir.ListDumps(w.opts.IRDir)
	if err != nil {
		return nil, err
	}
	out := paths[:0]
	for _, path := range paths {
		if w.Includes(ir.UnitNameFromPath(path)) {
			out = append(out, path)
		}
	}
	return out, nil
}

// Includes reports whether a unit is selected by the include patterns.
func (w *Workspace) Includes(unit string) bool {
	if len(w.include) == 0 {
		return true
	}
	for _, g := range w.include {
		if g.Match(unit) {
			return true
		}
	}
	return false
}

// AnalyzeAll analyzes the given dumps with at most Workers units at once.
// It fails only when ctx is done; unit failures are recorded in the stats.
func (w *Workspace) AnalyzeAll(ctx context.Context, paths []string) ([]UnitStats, error) {
	results := make([]UnitStats, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.opts.Workers)
	for i, path := range paths {
		g.Go(func() error {
			stats, err := w.AnalyzeFile(gctx, path)
			results[i] = stats
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				log.Printf("Warning: skipping unit %s: %v", stats.Unit, err)
			}
			w.progress.OnUnitAnalyzed(stats)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// AnalyzeFile analyzes one dump and stores its graph, replacing any previous one.
func (w *Workspace) AnalyzeFile(ctx context.Context, path string) (UnitStats, error) {
	start := time.Now()
	stats := UnitStats{Unit: ir.UnitNameFromPath(path), Path: path}
	fail := func(err error) (UnitStats, error) {
		stats.Err = err
		stats.Duration = time.Since(start)
		return stats, err
	}

	unit, err := ir.LoadFile(path, w.opts.Unoptimized)
	if err != nil {
		return fail(err)
	}
	stats.Unit = unit.Name()
	for _, err := range unit.InvalidBodies() {
		log.Printf("Warning: %s: skipped invalid body: %v", unit.Name(), err)
	}

	result, err := analysis.AnalyzeUnit(ctx, unit, w.opts.Analysis)
	if err != nil {
		return fail(err)
	}

	if err := w.store.Save(result.Graph); err != nil {
		return fail(err)
	}
	w.cache.Invalidate(w.store.Path(unit.Name()))
	w.unitsMu.Lock()
	w.units[path] = unit.Name()
	w.unitsMu.Unlock()

	if w.opts.Inspect != nil {
		w.inspectMu.Lock()
		w.opts.Inspect(unit, result)
		w.inspectMu.Unlock()
	}

	stats.Functions = result.Functions
	stats.Filtered = result.Filtered
	stats.Failed = len(result.Errors) + len(unit.InvalidBodies())
	stats.Nodes = result.Graph.NodeCount()
	stats.Edges = result.Graph.EdgeCount()
	stats.Duration = time.Since(start)
	return stats, nil
}

// Remove drops the stored graph of a unit.
func (w *Workspace) Remove(unit string) error {
	w.cache.Invalidate(w.store.Path(unit))
	return w.store.Delete(unit)
}

// RemoveDump drops the graph stored for the dump at path and returns its
// unit name. A dump this workspace never analyzed is assumed to be named
// after its file.
func (w *Workspace) RemoveDump(path string) (string, error) {
	w.unitsMu.Lock()
	unit, ok := w.units[path]
	delete(w.units, path)
	w.unitsMu.Unlock()
	if !ok {
		unit = ir.UnitNameFromPath(path)
	}
	return unit, w.Remove(unit)
}

func (w *Workspace) forgetDumps() {
	w.unitsMu.Lock()
	clear(w.units)
	w.unitsMu.Unlock()
}

// Clear removes every unit graph and the merged file.
func (w *Workspace) Clear() error {
	w.cache.Clear()
	w.forgetDumps()
	if err := w.store.Clear(); err != nil {
		return err
	}
	return removeIfExists(w.opts.MergedFile)
}

// Clean removes the cache directory and the merged file.
func (w *Workspace) Clean() error {
	w.cache.Clear()
	w.forgetDumps()
	if err := os.RemoveAll(w.opts.CacheDir); err != nil {
		return fmt.Errorf("failed to remove cache directory: %w", err)
	}
	return removeIfExists(w.opts.MergedFile)
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}
