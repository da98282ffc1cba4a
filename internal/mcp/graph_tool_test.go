package mcp

// Test Plan for linkgraph_query and linkgraph_find:
// - callers and callees return weighted links of the target
// - depth expands the traversal
// - path returns the call chain from target to destination
// - rank returns nodes by score with a default limit
// - unknown targets and invalid operations are tool errors, not Go errors
// - missing target, missing path destination and non-map arguments are tool errors
// - string-encoded numbers from clients are accepted
// - find returns matching nodes and requires a query
// - both tools register on one server

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/linkgraph/internal/graph"
	"github.com/mvp-joe/linkgraph/internal/ir"
)

// toolGraph: main -> parse (weight 3), main -> eval (weight 1), parse -> lex (weight 2).
func toolGraph() *graph.Graph {
	g := graph.New("merged")
	main := g.AddNode(graph.NewNode(ir.SymbolID{Unit: 0, Index: 1}, ir.NoPromoted, "app::main"))
	parse := g.AddNode(graph.NewNode(ir.SymbolID{Unit: 0, Index: 2}, ir.NoPromoted, "app::parser::parse"))
	eval := g.AddNode(graph.NewNode(ir.SymbolID{Unit: 0, Index: 3}, ir.NoPromoted, "app::eval"))
	lex := g.AddNode(graph.NewNode(ir.SymbolID{Unit: 0, Index: 4}, ir.NoPromoted, "app::parser::lex"))

	arg := func(w float64) []graph.ArgWeight {
		return []graph.ArgWeight{{Operand: ir.Move, Ty: ir.TyAdt, Weight: w}}
	}
	for _, e := range []graph.Edge{
		{From: main, To: parse, Kind: graph.CallFunction, Multiplier: 1, Args: arg(3)},
		{From: main, To: eval, Kind: graph.CallFunction, Multiplier: 1, Args: arg(1)},
		{From: parse, To: lex, Kind: graph.CallFunction, Multiplier: 1, Args: arg(2)},
	} {
		if err := g.AddEdge(e); err != nil {
			panic(err)
		}
	}
	return g
}

func newTestSearcher(t *testing.T) graph.Searcher {
	t.Helper()
	s, err := graph.NewSearcher(context.Background(), graph.FromGraph(toolGraph()))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args any) (*mcp.CallToolResult, string) {
	t.Helper()
	result, err := handler(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Arguments: args},
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	return result, text.Text
}

func resultNames(results []graph.QueryResult) []string {
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Node.Name)
	}
	return names
}

func TestQueryTool_CallersAndCallees(t *testing.T) {
	t.Parallel()

	handler := createQueryHandler(newTestSearcher(t))

	result, text := callTool(t, handler, map[string]any{"operation": "callees", "target": "app::main"})
	assert.False(t, result.IsError)
	var callees graph.QueryResponse
	require.NoError(t, json.Unmarshal([]byte(text), &callees))
	assert.Equal(t, []string{"app::eval", "app::parser::parse"}, resultNames(callees.Results))
	for _, r := range callees.Results {
		if r.Node.Name == "app::parser::parse" {
			assert.InDelta(t, 3.0, r.Weight, 1e-9)
		}
	}

	_, text = callTool(t, handler, map[string]any{"operation": "callers", "target": "app::parser::lex", "depth": "2"})
	var callers graph.QueryResponse
	require.NoError(t, json.Unmarshal([]byte(text), &callers))
	assert.Equal(t, []string{"app::parser::parse", "app::main"}, resultNames(callers.Results))
	assert.Equal(t, 2, callers.Results[1].Depth)
}

func TestQueryTool_Path(t *testing.T) {
	t.Parallel()

	handler := createQueryHandler(newTestSearcher(t))
	_, text := callTool(t, handler, map[string]any{"operation": "path", "target": "app::main", "to": "app::parser::lex"})

	var resp graph.QueryResponse
	require.NoError(t, json.Unmarshal([]byte(text), &resp))
	assert.Equal(t, []string{"app::main", "app::parser::parse", "app::parser::lex"}, resultNames(resp.Results))
}

func TestQueryTool_Rank(t *testing.T) {
	t.Parallel()

	handler := createQueryHandler(newTestSearcher(t))
	_, text := callTool(t, handler, map[string]any{"operation": "rank"})

	var resp RankResponse
	require.NoError(t, json.Unmarshal([]byte(text), &resp))
	assert.Equal(t, OperationRank, resp.Operation)
	assert.Equal(t, 4, resp.Total)
	for i := 1; i < len(resp.Results); i++ {
		assert.GreaterOrEqual(t, resp.Results[i-1].Score, resp.Results[i].Score)
	}

	_, text = callTool(t, handler, map[string]any{"operation": "rank", "max_results": 2})
	require.NoError(t, json.Unmarshal([]byte(text), &resp))
	assert.Len(t, resp.Results, 2)
}

func TestQueryTool_Errors(t *testing.T) {
	t.Parallel()

	handler := createQueryHandler(newTestSearcher(t))

	tests := []struct {
		name     string
		args     any
		contains string
	}{
		{"unknown target", map[string]any{"operation": "callers", "target": "app::missing"}, "node not found"},
		{"invalid operation", map[string]any{"operation": "dependents", "target": "app::main"}, "invalid operation"},
		{"missing target", map[string]any{"operation": "callees"}, "target parameter is required"},
		{"missing destination", map[string]any{"operation": "path", "target": "app::main"}, "to parameter is required"},
		{"bad depth", map[string]any{"operation": "callees", "target": "app::main", "depth": "deep"}, "invalid arguments"},
		{"not a map", "callers app::main", "invalid arguments format"},
	}
	for _, tt := range tests {
		result, text := callTool(t, handler, tt.args)
		assert.True(t, result.IsError, tt.name)
		assert.Contains(t, text, tt.contains, tt.name)
	}
}

func TestFindTool(t *testing.T) {
	t.Parallel()

	handler := createFindHandler(newTestSearcher(t))

	result, text := callTool(t, handler, map[string]any{"query": "parser", "limit": "10"})
	assert.False(t, result.IsError)
	var resp FindToolResponse
	require.NoError(t, json.Unmarshal([]byte(text), &resp))
	names := make([]string, 0, len(resp.Results))
	for _, n := range resp.Results {
		names = append(names, n.Name)
	}
	assert.ElementsMatch(t, []string{"app::parser::parse", "app::parser::lex"}, names)
	assert.Equal(t, len(resp.Results), resp.Total)

	result, text = callTool(t, handler, map[string]any{"query": "  "})
	assert.True(t, result.IsError)
	assert.Contains(t, text, "query parameter is required")
}

func TestNewToolServer_RegistersTools(t *testing.T) {
	t.Parallel()

	s := newToolServer("test", newTestSearcher(t))
	resp := s.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"linkgraph_query"`)
	assert.Contains(t, string(data), `"linkgraph_find"`)
}
