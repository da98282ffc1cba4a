package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/linkgraph/internal/config"
	"github.com/mvp-joe/linkgraph/internal/graph"
	"github.com/mvp-joe/linkgraph/internal/storage"
)

// Export formats
const (
	FormatDOT          = "dot"
	FormatJSON         = "json"
	FormatCollapsedDOT = "collapsed-dot"
	FormatSQLite       = "sqlite"
)

// topCallsShown is how many of the heaviest calls a SQLite export reports.
const topCallsShown = 10

var (
	exportFormat string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the merged graph",
	Long: `Export writes the merged graph in another format:

  dot            every edge, labeled with its total weight
  json           the serialized graph
  collapsed-dot  parallel edges folded into one weighted link
  sqlite         a new run in the storage database (storage.db_path)

Without -o the output goes to stdout, except for sqlite, which always writes
to the database given by -o or the configured path.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return executeExport(cmd.Context(), cfg, exportFormat, exportOutput, cmd.OutOrStdout())
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", FormatDOT, "dot, json, collapsed-dot or sqlite")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output path")
	rootCmd.AddCommand(exportCmd)
}

func executeExport(ctx context.Context, cfg *config.Config, format, output string, out io.Writer) error {
	switch format {
	case FormatDOT, FormatJSON, FormatCollapsedDOT, FormatSQLite:
	default:
		return fmt.Errorf("unknown export format %q", format)
	}

	g, err := graph.ReadFile(cfg.Workspace.MergedFile)
	if err != nil {
		return fmt.Errorf("failed to load merged graph (run 'linkgraph analyze' first): %w", err)
	}

	if format == FormatSQLite {
		dbPath := output
		if dbPath == "" {
			dbPath = cfg.Storage.DBPath
		}
		return exportSQLite(g, dbPath, out)
	}

	w := out
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch format {
	case FormatDOT:
		return g.WriteDOT(w)
	case FormatJSON:
		data, err := json.MarshalIndent(g, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal graph: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case FormatCollapsedDOT:
		searcher, err := graph.NewSearcher(ctx, graph.FromGraph(g))
		if err != nil {
			return err
		}
		defer searcher.Close()
		return searcher.WriteDOT(w)
	}
	return nil
}

func exportSQLite(g *graph.Graph, dbPath string, out io.Writer) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	writer, err := storage.NewGraphWriter(dbPath)
	if err != nil {
		return err
	}
	runID, err := writer.WriteGraph(g)
	if closeErr := writer.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to export graph: %w", err)
	}

	reader, err := storage.NewGraphReader(dbPath)
	if err != nil {
		return err
	}
	defer reader.Close()

	top, err := reader.TopCalls(runID, topCallsShown)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "✓ Exported run %s to %s (%s nodes, %s edges)\n",
		runID, dbPath, formatNumber(g.NodeCount()), formatNumber(g.EdgeCount()))
	if len(top) > 0 {
		fmt.Fprintln(out, "  Heaviest calls:")
		for _, c := range top {
			fmt.Fprintf(out, "  %10.2f  %s -> %s (%s)\n", c.TotalWeight, c.Caller, c.Callee, c.Kind)
		}
	}
	return nil
}
