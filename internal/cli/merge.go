package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/linkgraph/internal/config"
	"github.com/mvp-joe/linkgraph/internal/workspace"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge the stored unit graphs into the merged graph",
	Long: `Merge combines every unit graph in the cache directory, in sorted unit
order, into the merged graph file. Nothing is written if any unit graph
cannot be read.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return executeMerge(cmd.Context(), cfg, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(mergeCmd)
}

func executeMerge(ctx context.Context, cfg *config.Config, out io.Writer) error {
	opts, err := cfg.ToWorkspaceOptions()
	if err != nil {
		return err
	}
	ws, err := workspace.New(opts)
	if err != nil {
		return fmt.Errorf("failed to open workspace: %w", err)
	}
	defer ws.Close()

	merged, err := ws.Merge(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "✓ Merged graph: %s nodes, %s edges\n", formatNumber(merged.NodeCount()), formatNumber(merged.EdgeCount()))
	fmt.Fprintf(out, "  Written to %s\n", opts.MergedFile)
	return nil
}
