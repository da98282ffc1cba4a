package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/linkgraph/internal/config"
	"github.com/mvp-joe/linkgraph/internal/graph"
)

// Query operations beyond the graph traversals.
const (
	queryRank = "rank"
	queryFind = "find"
)

type queryOptions struct {
	Operation  string
	Target     string
	To         string
	Depth      int
	MaxResults int
	JSON       bool
}

var queryFlags queryOptions

var queryCmd = &cobra.Command{
	Use:   "query <callers|callees|path|rank|find> [symbol]",
	Short: "Query the merged graph",
	Long: `Query answers questions about the merged graph:

  callers <symbol>          functions calling symbol, up to --depth levels
  callees <symbol>          functions called by symbol, up to --depth levels
  path <symbol> --to <sym>  the shortest call chain between two symbols
  rank                      the most central functions by weighted PageRank
  find <text>               symbols whose name matches text

Symbols are display paths such as std::vec::Vec::push, optionally suffixed
with ::promoted[N] to select a promoted constant.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		opts := queryFlags
		opts.Operation = args[0]
		if len(args) > 1 {
			opts.Target = args[1]
		}
		return executeQuery(cmd.Context(), cfg, opts, cmd.OutOrStdout())
	},
}

func init() {
	f := queryCmd.Flags()
	f.StringVar(&queryFlags.To, "to", "", "destination symbol for path queries")
	f.IntVarP(&queryFlags.Depth, "depth", "d", graph.DefaultDepth, "traversal depth for callers and callees")
	f.IntVarP(&queryFlags.MaxResults, "max-results", "n", 20, "maximum results")
	f.BoolVar(&queryFlags.JSON, "json", false, "print results as JSON")
	rootCmd.AddCommand(queryCmd)
}

func executeQuery(ctx context.Context, cfg *config.Config, opts queryOptions, out io.Writer) error {
	searcher, err := graph.NewSearcher(ctx, graph.FromFile(cfg.Workspace.MergedFile))
	if err != nil {
		return fmt.Errorf("failed to load merged graph (run 'linkgraph analyze' first): %w", err)
	}
	defer searcher.Close()

	switch opts.Operation {
	case queryRank:
		ranked := searcher.Rank(opts.MaxResults)
		if opts.JSON {
			return writeJSON(out, ranked)
		}
		for i, r := range ranked {
			fmt.Fprintf(out, "%3d. %.6f  %s\n", i+1, r.Score, displayName(r.Node))
		}
		return nil

	case queryFind:
		if opts.Target == "" {
			return fmt.Errorf("find requires search text")
		}
		nodes, err := searcher.Find(ctx, opts.Target, opts.MaxResults)
		if err != nil {
			return err
		}
		if opts.JSON {
			return writeJSON(out, nodes)
		}
		for _, n := range nodes {
			fmt.Fprintln(out, displayName(n))
		}
		return nil
	}

	op := graph.QueryOperation(opts.Operation)
	switch op {
	case graph.OperationCallers, graph.OperationCallees, graph.OperationPath:
	default:
		return fmt.Errorf("unknown query operation %q", opts.Operation)
	}
	if opts.Target == "" {
		return fmt.Errorf("%s requires a symbol", op)
	}
	if op == graph.OperationPath && opts.To == "" {
		return fmt.Errorf("path requires --to")
	}

	resp, err := searcher.Query(ctx, &graph.QueryRequest{
		Operation:  op,
		Target:     opts.Target,
		To:         opts.To,
		Depth:      opts.Depth,
		MaxResults: opts.MaxResults,
	})
	if err != nil {
		return err
	}
	if opts.JSON {
		return writeJSON(out, resp)
	}

	for _, r := range resp.Results {
		indent := strings.Repeat("  ", max(r.Depth-1, 0))
		fmt.Fprintf(out, "%s%s  weight=%.2f", indent, displayName(r.Node), r.Weight)
		if len(r.Kinds) > 0 {
			fmt.Fprintf(out, " [%s]", strings.Join(r.Kinds, ","))
		}
		fmt.Fprintln(out)
	}
	if resp.Truncated {
		fmt.Fprintf(out, "... %d of %d shown\n", resp.TotalReturned, resp.TotalFound)
	}
	return nil
}

func displayName(n graph.NodeInfo) string {
	if n.Promoted != "" {
		return n.Name + "::" + n.Promoted
	}
	return n.Name
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
