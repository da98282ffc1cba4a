package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/linkgraph/internal/config"
	"github.com/mvp-joe/linkgraph/internal/workspace"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Analyze, then re-analyze IR dumps as they change",
	Long: `Watch runs a full analysis, then watches the IR directory. Each rewritten,
added or removed dump updates its unit graph, and the merged graph is
rebuilt. Stop with Ctrl+C.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := config.Validate(cfg); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		return executeWatch(cmd.Context(), cfg, watchDebounce, cmd.OutOrStdout())
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", workspace.DefaultDebounce, "settle delay before re-analyzing")
	rootCmd.AddCommand(watchCmd)
}

// executeWatch blocks until ctx is done.
func executeWatch(ctx context.Context, cfg *config.Config, debounce time.Duration, out io.Writer) error {
	opts, err := cfg.ToWorkspaceOptions()
	if err != nil {
		return err
	}
	opts.Progress = NewCLIProgressReporter(out, false)

	ws, err := workspace.New(opts)
	if err != nil {
		return fmt.Errorf("failed to open workspace: %w", err)
	}
	defer ws.Close()

	if _, err := ws.Run(ctx); err != nil {
		return err
	}

	watcher, err := workspace.NewWatcher(ws, func(r workspace.Rebuild) {
		reportRebuild(out, r)
	})
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", opts.IRDir, err)
	}
	watcher.SetDebounce(debounce)
	watcher.Start(ctx)
	defer watcher.Stop()

	fmt.Fprintf(out, "Watching %s for changes...\n", opts.IRDir)
	<-ctx.Done()
	return nil
}

func reportRebuild(out io.Writer, r workspace.Rebuild) {
	units := strings.Join(r.Changed, ", ")
	if r.Err != nil {
		fmt.Fprintf(out, "✗ Rebuild after %s failed: %v\n", units, r.Err)
		return
	}
	fmt.Fprintf(out, "✓ Rebuilt after %s: %s nodes, %s edges\n",
		units, formatNumber(r.Merged.NodeCount()), formatNumber(r.Merged.EdgeCount()))
}
