package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mvp-joe/linkgraph/internal/graph"
	mcputils "github.com/mvp-joe/linkgraph/internal/mcp-utils"
)

// Tool limits
const (
	DefaultRankResults = 20
	MaxResults         = 500
)

// OperationRank ranks nodes by weighted PageRank. It is answered by the tool,
// not by graph.Searcher.Query.
const OperationRank = "rank"

// GraphQuerier is the subset of graph.Searcher the tools need.
type GraphQuerier interface {
	Query(ctx context.Context, req *graph.QueryRequest) (*graph.QueryResponse, error)
	Find(ctx context.Context, text string, limit int) ([]graph.NodeInfo, error)
	Rank(limit int) []graph.RankedNode
}

// QueryToolRequest represents the linkgraph_query parameters.
type QueryToolRequest struct {
	Operation  string `json:"operation"`             // "callers", "callees", "path", "rank"
	Target     string `json:"target,omitempty"`      // Node name; required except for rank
	To         string `json:"to,omitempty"`          // Destination for path
	Depth      int    `json:"depth,omitempty"`       // Traversal depth (default: 1)
	MaxResults int    `json:"max_results,omitempty"` // Maximum results
}

// RankResponse is the linkgraph_query result for the rank operation.
type RankResponse struct {
	Operation string             `json:"operation"`
	Results   []graph.RankedNode `json:"results"`
	Total     int                `json:"total"`
}

// AddQueryTool registers the linkgraph_query tool with an MCP server.
func AddQueryTool(s *server.MCPServer, querier GraphQuerier) {
	tool := mcp.NewTool(
		"linkgraph_query",
		mcp.WithDescription("Query the weighted call graph. Operations: callers (who calls this function), callees (what this function calls), path (shortest call chain from target to 'to'), rank (most central functions by weighted PageRank). Results carry the summed argument weight of each call link."),
		mcp.WithString("operation",
			mcp.Required(),
			mcp.Description("Type of query: 'callers', 'callees', 'path', or 'rank'")),
		mcp.WithString("target",
			mcp.Description("Function path, e.g. 'my_crate::parser::parse' or 'my_crate::main::promoted[0]'. Required except for rank.")),
		mcp.WithString("to",
			mcp.Description("Destination function path for the path operation")),
		mcp.WithNumber("depth",
			mcp.Description("Traversal depth for callers/callees (default: 1, max: 10)")),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum number of results to return (default: 100, rank default: 20, max: 500)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createQueryHandler(querier))
}

func createQueryHandler(querier GraphQuerier) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if _, errResult := parseToolArguments(request); errResult != nil {
			return errResult, nil
		}

		var args QueryToolRequest
		if err := mcputils.CoerceBindArguments(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		args.MaxResults = clamp(args.MaxResults, 0, MaxResults)

		if args.Operation == OperationRank {
			limit := args.MaxResults
			if limit == 0 {
				limit = DefaultRankResults
			}
			ranked := querier.Rank(limit)
			return marshalToolResponse(&RankResponse{Operation: OperationRank, Results: ranked, Total: len(ranked)})
		}

		validOps := map[string]graph.QueryOperation{
			"callers": graph.OperationCallers,
			"callees": graph.OperationCallees,
			"path":    graph.OperationPath,
		}
		op, ok := validOps[args.Operation]
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("invalid operation: %q (must be one of: callers, callees, path, rank)", args.Operation)), nil
		}
		if strings.TrimSpace(args.Target) == "" {
			return mcp.NewToolResultError("target parameter is required"), nil
		}
		if op == graph.OperationPath && strings.TrimSpace(args.To) == "" {
			return mcp.NewToolResultError("to parameter is required for path"), nil
		}

		response, err := querier.Query(ctx, &graph.QueryRequest{
			Operation:  op,
			Target:     args.Target,
			To:         args.To,
			Depth:      args.Depth,
			MaxResults: args.MaxResults,
		})
		if errors.Is(err, graph.ErrNodeNotFound) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err != nil {
			return nil, fmt.Errorf("graph query failed: %w", err)
		}
		return marshalToolResponse(response)
	}
}
