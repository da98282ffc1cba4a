package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/linkgraph/internal/analysis"
	"github.com/mvp-joe/linkgraph/internal/config"
	"github.com/mvp-joe/linkgraph/internal/graph"
	"github.com/mvp-joe/linkgraph/internal/ir"
	"github.com/mvp-joe/linkgraph/internal/workspace"
)

// analyzeOptions holds the per-invocation analyze flags that are not config keys.
type analyzeOptions struct {
	PrintIR         bool
	PrintGraph      bool
	PrintDOT        bool
	PrintSerialized bool
	Quiet           bool
}

func (o analyzeOptions) inspects() bool {
	return o.PrintIR || o.PrintGraph || o.PrintDOT || o.PrintSerialized
}

var analyzeFlags analyzeOptions

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze every IR dump and merge the unit graphs",
	Long: `Analyze clears the cache directory, extracts a weighted call graph from
every <unit>.ir.json dump in the IR directory, stores each unit graph in the
cache directory, and merges them into the merged graph file.

Units are analyzed in parallel. A unit that fails to load or analyze is
reported and skipped; the remaining units are still merged.`,
	RunE: runAnalyze,
}

func init() {
	addAnalyzeFlags(analyzeCmd, &analyzeFlags)
	rootCmd.AddCommand(analyzeCmd)
}

func addAnalyzeFlags(cmd *cobra.Command, opts *analyzeOptions) {
	f := cmd.Flags()
	f.String("ir-dir", "", "directory holding <unit>.ir.json dumps")
	f.String("cache-dir", "", "directory for per-unit graphs")
	f.String("merged-file", "", "path of the merged graph")
	f.Int("workers", 0, "units analyzed at once")
	f.Bool("unoptimized", false, "analyze unoptimized bodies when a dump has them")
	f.String("filter-file", "", "only analyze functions defined in files matching this glob")
	f.StringSlice("include", nil, "only analyze units matching these globs")
	f.BoolVar(&opts.PrintIR, "print-ir", false, "print each unit's IR")
	f.BoolVar(&opts.PrintGraph, "print-graph", false, "print each unit graph as text")
	f.BoolVar(&opts.PrintDOT, "print-dot", false, "print each unit graph in DOT syntax")
	f.BoolVar(&opts.PrintSerialized, "print-serialized", false, "print each unit graph in its serialized form")
	f.BoolVarP(&opts.Quiet, "quiet", "q", false, "suppress progress output")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyAnalyzeFlags(cmd, cfg, projectDir); err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	_, err = executeAnalyze(cmd.Context(), cfg, analyzeFlags, cmd.OutOrStdout())
	return err
}

// applyAnalyzeFlags overrides config values with the flags set on the command
// line. Relative flag paths resolve against root, like the config file's.
func applyAnalyzeFlags(cmd *cobra.Command, cfg *config.Config, root string) error {
	f := cmd.Flags()
	var err error
	if f.Changed("ir-dir") {
		cfg.Workspace.IRDir, err = f.GetString("ir-dir")
	}
	if err == nil && f.Changed("cache-dir") {
		cfg.Workspace.CacheDir, err = f.GetString("cache-dir")
	}
	if err == nil && f.Changed("merged-file") {
		cfg.Workspace.MergedFile, err = f.GetString("merged-file")
	}
	if err == nil && f.Changed("workers") {
		cfg.Analysis.Workers, err = f.GetInt("workers")
	}
	if err == nil && f.Changed("unoptimized") {
		cfg.Analysis.Unoptimized, err = f.GetBool("unoptimized")
	}
	if err == nil && f.Changed("filter-file") {
		cfg.Analysis.FilterFile, err = f.GetString("filter-file")
	}
	if err == nil && f.Changed("include") {
		cfg.Workspace.Include, err = f.GetStringSlice("include")
	}
	if err != nil {
		return err
	}
	resolvePaths(cfg, root)
	return nil
}

// executeAnalyze runs a full analyze-and-merge over the configured workspace.
func executeAnalyze(ctx context.Context, cfg *config.Config, opts analyzeOptions, out io.Writer) (*workspace.RunStats, error) {
	wsOpts, err := cfg.ToWorkspaceOptions()
	if err != nil {
		return nil, err
	}

	progress := NewCLIProgressReporter(out, opts.Quiet || opts.inspects())
	wsOpts.Progress = progress
	if opts.inspects() {
		wsOpts.Inspect = func(unit *ir.Unit, result *analysis.Result) {
			if err := printUnit(out, opts, unit, result); err != nil {
				fmt.Fprintf(out, "failed to print unit %s: %v\n", unit.Name(), err)
			}
		}
	}

	ws, err := workspace.New(wsOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open workspace: %w", err)
	}
	defer ws.Close()

	stats, err := ws.Run(ctx)
	if err != nil {
		return stats, err
	}

	if !opts.Quiet {
		for _, u := range stats.Failed() {
			fmt.Fprintf(out, "  ✗ %s: %v\n", u.Unit, u.Err)
		}
	}
	return stats, nil
}

func printUnit(out io.Writer, opts analyzeOptions, unit *ir.Unit, result *analysis.Result) error {
	fmt.Fprintf(out, "=== %s ===\n", unit.Name())
	if opts.PrintIR {
		if err := unit.Encode(out); err != nil {
			return err
		}
	}
	if opts.PrintGraph {
		if err := writeGraphText(out, result.Graph); err != nil {
			return err
		}
	}
	if opts.PrintDOT {
		if err := result.Graph.WriteDOT(out); err != nil {
			return err
		}
	}
	if opts.PrintSerialized {
		data, err := json.MarshalIndent(result.Graph, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	}
	for _, fe := range result.Errors {
		fmt.Fprintf(out, "  dropped calls of %v\n", fe)
	}
	return nil
}

// writeGraphText prints one line per node in its text form, then one line per edge.
func writeGraphText(out io.Writer, g *graph.Graph) error {
	for i, n := range g.Nodes() {
		text, err := n.MarshalText()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "n%d %s\n", i, text)
	}
	for _, e := range g.Edges() {
		fmt.Fprintf(out, "n%d -> n%d %s x%.2f = %.2f\n", e.From, e.To, e.Kind, e.Multiplier, e.TotalWeight())
	}
	return nil
}
