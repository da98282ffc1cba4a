package workspace

import (
	"context"
	"fmt"

	"github.com/mvp-joe/linkgraph/internal/graph"
)

// Merge folds every stored unit graph, in sorted unit order, into one graph
// and writes it to the merged file. On any failure nothing is written.
func (w *Workspace) Merge(ctx context.Context) (*graph.Graph, error) {
	merged, err := w.MergeGraphs(ctx)
	if err != nil {
		return nil, err
	}
	if err := graph.WriteFile(w.opts.MergedFile, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// MergeGraphs merges the stored unit graphs in memory.
func (w *Workspace) MergeGraphs(ctx context.Context) (*graph.Graph, error) {
	units, err := w.store.List()
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return nil, ErrNoUnitGraphs
	}
	w.progress.OnMergeStart(len(units))

	merged := graph.New(MergedUnit)
	for _, unit := range units {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g, err := w.cache.Load(w.store.Path(unit))
		if err != nil {
			return nil, fmt.Errorf("failed to merge unit %s: %w", unit, err)
		}
		merged.Merge(g)
	}
	return merged, nil
}
