// Package config loads linkgraph settings from defaults, .linkgraph/config.yml
// and LINKGRAPH_* environment variables, in increasing priority.
package config

import (
	"fmt"

	"github.com/mvp-joe/linkgraph/internal/analysis"
	"github.com/mvp-joe/linkgraph/internal/graph"
	"github.com/mvp-joe/linkgraph/internal/workspace"
)

// Config represents the complete linkgraph configuration.
type Config struct {
	Analysis  AnalysisConfig  `yaml:"analysis" mapstructure:"analysis"`
	Weights   WeightsConfig   `yaml:"weights" mapstructure:"weights"`
	Workspace WorkspaceConfig `yaml:"workspace" mapstructure:"workspace"`
	Storage   StorageConfig   `yaml:"storage" mapstructure:"storage"`
}

// AnalysisConfig controls how units are analyzed and callees classified.
type AnalysisConfig struct {
	Workers        int      `yaml:"workers" mapstructure:"workers"`                 // parallel unit analyses
	Unoptimized    bool     `yaml:"unoptimized" mapstructure:"unoptimized"`         // prefer the unoptimized IR variant
	FilterFile     string   `yaml:"filter_file" mapstructure:"filter_file"`         // glob over source files, empty = all
	RuntimeUnits   []string `yaml:"runtime_units" mapstructure:"runtime_units"`     // units whose functions are plain functions
	ToolchainUnits []string `yaml:"toolchain_units" mapstructure:"toolchain_units"` // units shipped with the toolchain
	ClonePath      string   `yaml:"clone_path" mapstructure:"clone_path"`           // path of the duplication method
	CallPaths      []string `yaml:"call_paths" mapstructure:"call_paths"`           // call-operator trait methods
}

// WeightsConfig sets operand multipliers and per-call-kind edge multipliers.
type WeightsConfig struct {
	Move            float64            `yaml:"move" mapstructure:"move"`
	Copy            float64            `yaml:"copy" mapstructure:"copy"`
	Constant        float64            `yaml:"constant" mapstructure:"constant"`
	Calls           map[string]float64 `yaml:"calls" mapstructure:"calls"` // call kind name -> multiplier
	ScaleByCallKind bool               `yaml:"scale_by_call_kind" mapstructure:"scale_by_call_kind"`
}

// WorkspaceConfig locates IR dumps, per-unit graphs and the merged graph.
type WorkspaceConfig struct {
	IRDir         string   `yaml:"ir_dir" mapstructure:"ir_dir"`
	CacheDir      string   `yaml:"cache_dir" mapstructure:"cache_dir"`
	MergedFile    string   `yaml:"merged_file" mapstructure:"merged_file"`
	Include       []string `yaml:"include" mapstructure:"include"`               // unit name globs, empty = all
	CacheCapacity int      `yaml:"cache_capacity" mapstructure:"cache_capacity"` // decoded graph cache budget
}

// StorageConfig locates the SQLite export database.
type StorageConfig struct {
	DBPath string `yaml:"db_path" mapstructure:"db_path"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	classifier := analysis.DefaultClassifierConfig()
	weights := analysis.DefaultWeightConfig()

	calls := make(map[string]float64, len(weights.Calls))
	for kind, m := range weights.Calls {
		calls[kind.String()] = m
	}

	return &Config{
		Analysis: AnalysisConfig{
			Workers:        4,
			RuntimeUnits:   classifier.RuntimeUnits,
			ToolchainUnits: classifier.ToolchainUnits,
			ClonePath:      classifier.ClonePath,
			CallPaths:      classifier.CallPaths,
		},
		Weights: WeightsConfig{
			Move:     weights.Move,
			Copy:     weights.Copy,
			Constant: weights.Constant,
			Calls:    calls,
		},
		Workspace: WorkspaceConfig{
			IRDir:         "target/linkgraph/ir",
			CacheDir:      "target/linkgraph/graphs",
			MergedFile:    "target/linkgraph/merged" + graph.UnitGraphExt,
			CacheCapacity: workspace.DefaultCacheCapacity,
		},
		Storage: StorageConfig{
			DBPath: ".linkgraph/graph.db",
		},
	}
}

// ToAnalysisOptions converts the analysis and weights sections.
func (c *Config) ToAnalysisOptions() (analysis.Options, error) {
	filter, err := analysis.NewFileFilter(c.Analysis.FilterFile)
	if err != nil {
		return analysis.Options{}, fmt.Errorf("%w: %v", ErrInvalidFilterGlob, err)
	}

	calls := make(map[graph.CallKind]float64, len(c.Weights.Calls))
	for name, m := range c.Weights.Calls {
		kind, err := graph.ParseCallKind(name)
		if err != nil {
			return analysis.Options{}, fmt.Errorf("%w: %v", ErrInvalidCallKind, err)
		}
		calls[kind] = m
	}

	return analysis.Options{
		Classifier: analysis.ClassifierConfig{
			ClonePath:      c.Analysis.ClonePath,
			CallPaths:      c.Analysis.CallPaths,
			RuntimeUnits:   c.Analysis.RuntimeUnits,
			ToolchainUnits: c.Analysis.ToolchainUnits,
		},
		Weights: analysis.WeightConfig{
			Move:            c.Weights.Move,
			Copy:            c.Weights.Copy,
			Constant:        c.Weights.Constant,
			Calls:           calls,
			ScaleByCallKind: c.Weights.ScaleByCallKind,
		},
		Filter: filter,
	}, nil
}

// ToWorkspaceOptions converts the configuration to workspace options.
// Progress and Inspect are left for the caller.
func (c *Config) ToWorkspaceOptions() (workspace.Options, error) {
	opts, err := c.ToAnalysisOptions()
	if err != nil {
		return workspace.Options{}, err
	}
	return workspace.Options{
		IRDir:         c.Workspace.IRDir,
		CacheDir:      c.Workspace.CacheDir,
		MergedFile:    c.Workspace.MergedFile,
		Workers:       c.Analysis.Workers,
		Unoptimized:   c.Analysis.Unoptimized,
		Include:       c.Workspace.Include,
		Analysis:      opts,
		CacheCapacity: c.Workspace.CacheCapacity,
	}, nil
}
