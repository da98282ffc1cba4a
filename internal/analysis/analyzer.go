package analysis

import (
	"context"
	"errors"
	"log"

	"github.com/mvp-joe/linkgraph/internal/graph"
	"github.com/mvp-joe/linkgraph/internal/ir"
)

// Options configures the analysis of a unit.
type Options struct {
	Classifier ClassifierConfig
	Weights    WeightConfig
	Filter     *FileFilter // nil analyzes every function
}

// DefaultOptions returns the default classification and weights with no filter.
func DefaultOptions() Options {
	return Options{
		Classifier: DefaultClassifierConfig(),
		Weights:    DefaultWeightConfig(),
	}
}

// Result is the outcome of analyzing one unit.
type Result struct {
	Graph     *graph.Graph
	Functions int              // Bodies walked, promoted constants included
	Filtered  int              // Functions left out by the file filter
	Errors    []*FunctionError // Functions whose analysis was aborted
}

// AnalyzeUnit walks every function of prog, and the promoted constants each
// owns, into a new graph named after the unit. A function that fails keeps
// its node but contributes no edges; the remaining functions are still walked.
func AnalyzeUnit(ctx context.Context, prog ir.Program, opts Options) (*Result, error) {
	g := graph.New(prog.Name())
	walker := NewWalker(prog, g, opts.Classifier, opts.Weights)
	result := &Result{Graph: g}

	for _, body := range prog.Bodies() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if opts.Filter != nil {
			info, _ := prog.Symbol(body.Owner)
			if !opts.Filter.Match(info.File) {
				result.Filtered++
				continue
			}
		}

		bodies := append([]*ir.Body{body}, prog.Promoted(body.Owner)...)
		for _, b := range bodies {
			result.Functions++
			if err := walker.WalkBody(b); err != nil {
				var fe *FunctionError
				if !errors.As(err, &fe) {
					return nil, err
				}
				log.Printf("Warning: %s: skipped calls of %v", prog.Name(), fe)
				result.Errors = append(result.Errors, fe)
			}
		}
	}

	return result, nil
}
