package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/linkgraph/internal/mcp"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for call graph queries",
	Long: `Start the Model Context Protocol (MCP) server that lets coding assistants
query the merged call graph.

The MCP server:
- Loads the merged graph written by 'linkgraph analyze'
- Provides the linkgraph_query and linkgraph_find tools
- Reloads the graph when the merged file is rewritten
- Communicates via stdio (standard MCP transport)

Example:
  linkgraph mcp`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// stdout carries the protocol
	fmt.Fprintf(os.Stderr, "Linkgraph MCP Server\n")
	fmt.Fprintf(os.Stderr, "Merged graph: %s\n\n", cfg.Workspace.MergedFile)

	mcpConfig := mcp.DefaultServerConfig()
	mcpConfig.MergedFile = cfg.Workspace.MergedFile
	mcpConfig.Version = Version

	server, err := mcp.NewMCPServer(ctx, mcpConfig)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer server.Close()

	// Serve (blocks until shutdown)
	if err := server.Serve(ctx); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}

	return nil
}
