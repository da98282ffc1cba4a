package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/linkgraph/internal/config"
	"github.com/mvp-joe/linkgraph/internal/workspace"
)

var cleanQuietFlag bool
var cleanAllFlag bool

// cleanCmd represents the clean command
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove unit graphs and the merged graph",
	Long: `Clean removes the cache directory of unit graphs and the merged graph.
The next 'linkgraph analyze' starts from scratch.

Use --all to also remove the SQLite export database.

The configuration file (.linkgraph/config.yml) is preserved.

Examples:
  # Remove unit graphs and the merged graph
  linkgraph clean

  # Also remove exported runs
  linkgraph clean --all

  # Clean with minimal output
  linkgraph clean --quiet
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return executeClean(cfg, cleanAllFlag, cleanQuietFlag, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().BoolVarP(&cleanQuietFlag, "quiet", "q", false, "Suppress output messages")
	cleanCmd.Flags().BoolVarP(&cleanAllFlag, "all", "a", false, "Also delete the export database")
}

func executeClean(cfg *config.Config, all, quiet bool, out io.Writer) error {
	opts, err := cfg.ToWorkspaceOptions()
	if err != nil {
		return err
	}

	if _, err := os.Stat(opts.CacheDir); os.IsNotExist(err) {
		if _, err := os.Stat(opts.MergedFile); os.IsNotExist(err) && !all {
			if !quiet {
				fmt.Fprintln(out, "No graphs found for this project")
			}
			return nil
		}
	}

	ws, err := workspace.New(opts)
	if err != nil {
		return fmt.Errorf("failed to open workspace: %w", err)
	}
	defer ws.Close()

	if err := ws.Clean(); err != nil {
		return err
	}
	if !quiet {
		fmt.Fprintf(out, "✓ Removed %s and %s\n", opts.CacheDir, opts.MergedFile)
	}

	if all {
		if err := os.Remove(cfg.Storage.DBPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove database: %w", err)
		}
		if !quiet {
			fmt.Fprintf(out, "✓ Removed %s\n", cfg.Storage.DBPath)
		}
	}

	if !quiet {
		fmt.Fprintln(out, "Next 'linkgraph analyze' will rebuild every unit graph")
	}
	return nil
}
