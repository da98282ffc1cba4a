package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"github.com/mvp-joe/linkgraph/internal/analysis"
	"github.com/mvp-joe/linkgraph/internal/graph"
)

var (
	// ErrInvalidWorkers indicates a non-positive worker count
	ErrInvalidWorkers = errors.New("invalid workers")

	// ErrInvalidWeight indicates a negative multiplier
	ErrInvalidWeight = errors.New("invalid weight")

	// ErrInvalidCallKind indicates a weights.calls key that is not an edge-producing call kind
	ErrInvalidCallKind = errors.New("invalid call kind")

	// ErrEmptyIRDir indicates a missing IR dump directory
	ErrEmptyIRDir = errors.New("empty IR directory")

	// ErrEmptyCacheDir indicates a missing per-unit graph directory
	ErrEmptyCacheDir = errors.New("empty cache directory")

	// ErrEmptyMergedFile indicates a missing merged graph path
	ErrEmptyMergedFile = errors.New("empty merged file")

	// ErrInvalidFilterGlob indicates a file filter or include pattern that does not compile
	ErrInvalidFilterGlob = errors.New("invalid filter glob")

	// ErrInvalidCacheCapacity indicates a non-positive graph cache budget
	ErrInvalidCacheCapacity = errors.New("invalid cache capacity")
)

// Validate checks that the configuration is valid and complete.
func Validate(cfg *Config) error {
	var errs []error
	for _, check := range []func(*Config) []error{validateAnalysis, validateWeights, validateWorkspace} {
		errs = append(errs, check(cfg)...)
	}
	return joinErrors(errs)
}

func validateAnalysis(cfg *Config) []error {
	var errs []error

	if cfg.Analysis.Workers <= 0 {
		errs = append(errs, fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidWorkers, cfg.Analysis.Workers))
	}
	if _, err := analysis.NewFileFilter(cfg.Analysis.FilterFile); err != nil {
		errs = append(errs, fmt.Errorf("%w: filter_file %q: %v", ErrInvalidFilterGlob, cfg.Analysis.FilterFile, err))
	}
	return errs
}

func validateWeights(cfg *Config) []error {
	var errs []error

	operands := []struct {
		name  string
		value float64
	}{
		{"move", cfg.Weights.Move},
		{"copy", cfg.Weights.Copy},
		{"constant", cfg.Weights.Constant},
	}
	for _, op := range operands {
		if op.value < 0 {
			errs = append(errs, fmt.Errorf("%w: %s cannot be negative, got %g", ErrInvalidWeight, op.name, op.value))
		}
	}

	for name, m := range cfg.Weights.Calls {
		kind, err := graph.ParseCallKind(name)
		if err != nil || !kind.ProducesEdge() {
			errs = append(errs, fmt.Errorf("%w: calls.%s (valid: %s)", ErrInvalidCallKind, name, strings.Join(edgeKindNames(), ", ")))
			continue
		}
		if m < 0 {
			errs = append(errs, fmt.Errorf("%w: calls.%s cannot be negative, got %g", ErrInvalidWeight, name, m))
		}
	}
	return errs
}

func validateWorkspace(cfg *Config) []error {
	var errs []error

	if strings.TrimSpace(cfg.Workspace.IRDir) == "" {
		errs = append(errs, fmt.Errorf("%w: ir_dir is required", ErrEmptyIRDir))
	}
	if strings.TrimSpace(cfg.Workspace.CacheDir) == "" {
		errs = append(errs, fmt.Errorf("%w: cache_dir is required", ErrEmptyCacheDir))
	}
	if strings.TrimSpace(cfg.Workspace.MergedFile) == "" {
		errs = append(errs, fmt.Errorf("%w: merged_file is required", ErrEmptyMergedFile))
	}
	for _, pattern := range cfg.Workspace.Include {
		if _, err := glob.Compile(pattern); err != nil {
			errs = append(errs, fmt.Errorf("%w: include %q: %v", ErrInvalidFilterGlob, pattern, err))
		}
	}
	if cfg.Workspace.CacheCapacity <= 0 {
		errs = append(errs, fmt.Errorf("%w: cache_capacity must be positive, got %d", ErrInvalidCacheCapacity, cfg.Workspace.CacheCapacity))
	}
	return errs
}

func edgeKindNames() []string {
	var names []string
	for _, k := range graph.CallKinds {
		if k.ProducesEdge() {
			names = append(names, k.String())
		}
	}
	return names
}

// joinErrors combines multiple errors into a single error with clear
// formatting. Every error stays matchable with errors.Is.
func joinErrors(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}

	format := "validation failed:" + strings.Repeat("\n  - %w", len(errs))
	args := make([]any, len(errs))
	for i, err := range errs {
		args[i] = err
	}
	return fmt.Errorf(format, args...)
}
