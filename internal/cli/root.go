package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/linkgraph/internal/analysis"
	"github.com/mvp-joe/linkgraph/internal/config"
)

var (
	projectDir string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "linkgraph",
	Short: "Linkgraph - weighted call graphs from compiler IR",
	Long: `Linkgraph reads the per-unit IR dumps of a build, extracts a weighted call
graph from every function body, and merges the unit graphs into one graph for
link analysis.

Settings come from .linkgraph/config.yml in the project directory and
LINKGRAPH_* environment variables. Command flags override both.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			analysis.Logf = log.Printf
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&projectDir, "project-dir", "C", ".", "project root holding .linkgraph/config.yml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "trace every analyzed function")
}

// loadConfig loads the project configuration and makes its relative paths
// relative to the project directory.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigFromDir(projectDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	resolvePaths(cfg, projectDir)
	return cfg, nil
}

func resolvePaths(cfg *config.Config, root string) {
	for _, p := range []*string{
		&cfg.Workspace.IRDir,
		&cfg.Workspace.CacheDir,
		&cfg.Workspace.MergedFile,
		&cfg.Storage.DBPath,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(root, *p)
		}
	}
}
