package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mvp-joe/linkgraph/internal/graph"
	mcputils "github.com/mvp-joe/linkgraph/internal/mcp-utils"
)

// DefaultFindResults is the linkgraph_find limit when none is given.
const DefaultFindResults = 15

// FindToolRequest represents the linkgraph_find parameters.
type FindToolRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// FindToolResponse is the linkgraph_find result.
type FindToolResponse struct {
	Query   string           `json:"query"`
	Results []graph.NodeInfo `json:"results"`
	Total   int              `json:"total"`
}

// AddFindTool registers the linkgraph_find tool with an MCP server.
func AddFindTool(s *server.MCPServer, querier GraphQuerier) {
	tool := mcp.NewTool(
		"linkgraph_find",
		mcp.WithDescription("Find functions in the call graph by name. Matches path segments and prefixes, so 'parse' finds 'my_crate::parser::parse_expr'. Use the returned name as the target of linkgraph_query."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Name or path fragment to search for")),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results to return (1-100, default: 15)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createFindHandler(querier))
}

func createFindHandler(querier GraphQuerier) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if _, errResult := parseToolArguments(request); errResult != nil {
			return errResult, nil
		}

		var args FindToolRequest
		if err := mcputils.CoerceBindArguments(request, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		if strings.TrimSpace(args.Query) == "" {
			return mcp.NewToolResultError("query parameter is required"), nil
		}
		if args.Limit <= 0 {
			args.Limit = DefaultFindResults
		}
		args.Limit = clamp(args.Limit, 1, 100)

		nodes, err := querier.Find(ctx, args.Query, args.Limit)
		if err != nil {
			return nil, fmt.Errorf("find failed: %w", err)
		}
		if nodes == nil {
			nodes = []graph.NodeInfo{}
		}
		return marshalToolResponse(&FindToolResponse{Query: args.Query, Results: nodes, Total: len(nodes)})
	}
}
