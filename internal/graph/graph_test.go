package graph

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/linkgraph/internal/ir"
)

// Test Plan for Graph:
// - Node identity ignores unit-local numbering and compares promoted ids
// - AddNode is idempotent on equal nodes
// - Parallel edges between the same pair are kept
// - AddEdge rejects endpoints outside the node list
// - Merge remaps edges onto existing nodes; merging twice doubles edges but not nodes
// - Self-merge duplicates edges without looping
// - Node text form round-trips, including the dummy node and idents containing ':'
// - Malformed node text is rejected
// - Graph JSON round-trips and collapses duplicate nodes
// - DOT output labels nodes and edges
// - Edge weights: receiver first, total scaled by multiplier, empty args weigh zero

func sym(unit, index uint32) ir.SymbolID {
	return ir.SymbolID{Unit: unit, Index: index}
}

func fnNode(unit, index uint32, path string) Node {
	return NewNode(sym(unit, index), ir.NoPromoted, path)
}

func argW(w float64) ArgWeight {
	return ArgWeight{Operand: ir.Copy, Mutability: ir.Not, Ty: ir.TyScalar, Weight: w}
}

func TestNode_Identity(t *testing.T) {
	t.Parallel()

	a := fnNode(0, 3, "crate::foo")
	b := fnNode(7, 12, "crate::foo")
	c := fnNode(0, 3, "crate::bar")
	p := NewNode(sym(0, 3), ir.Promoted(0), "crate::foo")

	assert.Equal(t, "0:3 ~ crate::foo", a.Ident)
	assert.Equal(t, "crate::foo", a.Name())
	assert.True(t, a.Equal(b), "unit-local numbering must not affect identity")
	assert.Equal(t, a.Key(), b.Key())
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(p), "promoted id is part of identity")
	assert.Equal(t, "crate::foo::promoted[0]", p.String())
}

func TestNode_StaticallyUnknown(t *testing.T) {
	t.Parallel()

	n := NewNode(ir.StaticallyUnknown, ir.Promoted(4), "ignored")
	assert.Equal(t, StaticallyUnknownNode(), n)
	assert.Equal(t, StaticallyUnknownIdent, n.Name())
	assert.False(t, n.Promoted.IsSet())
}

func TestGraph_AddNodeIdempotent(t *testing.T) {
	t.Parallel()

	g := New("app")
	i := g.AddNode(fnNode(0, 1, "app::main"))
	j := g.AddNode(fnNode(3, 9, "app::main"))

	assert.Equal(t, i, j)
	assert.Equal(t, 1, g.NodeCount())

	idx, ok := g.Lookup(fnNode(1, 1, "app::main"))
	assert.True(t, ok)
	assert.Equal(t, i, idx)
}

func TestGraph_MultiEdges(t *testing.T) {
	t.Parallel()

	g := New("app")
	a := g.AddNode(fnNode(0, 1, "app::a"))
	b := g.AddNode(fnNode(0, 2, "app::b"))

	require.NoError(t, g.AddEdge(Edge{From: a, To: b, Kind: CallFunction, Multiplier: 1}))
	require.NoError(t, g.AddEdge(Edge{From: a, To: b, Kind: CallFunction, Multiplier: 1}))

	assert.Equal(t, 2, g.EdgeCount())
	assert.Equal(t, []int{b}, g.Callees(a))
	for _, e := range g.Edges() {
		assert.NotNil(t, e.Args, "nil args are stored as an empty list")
	}
}

func TestGraph_AddEdgeOutOfRange(t *testing.T) {
	t.Parallel()

	g := New("app")
	g.AddNode(fnNode(0, 1, "app::a"))

	err := g.AddEdge(Edge{From: 0, To: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNodeOutOfRange))
	assert.Equal(t, 0, g.EdgeCount())
}

func TestGraph_Merge(t *testing.T) {
	t.Parallel()

	left := New("left")
	la := left.AddNode(fnNode(0, 1, "shared::f"))
	lb := left.AddNode(fnNode(0, 2, "left::g"))
	require.NoError(t, left.AddEdge(Edge{From: lb, To: la, Kind: CallFunction, Multiplier: 1, Args: []ArgWeight{argW(1)}}))

	right := New("right")
	rb := right.AddNode(fnNode(5, 8, "right::h"))
	ra := right.AddNode(fnNode(5, 0, "shared::f"))
	require.NoError(t, right.AddEdge(Edge{From: rb, To: ra, Kind: CallFunction, Multiplier: 1, Args: []ArgWeight{argW(2)}}))

	merged := New("")
	merged.Merge(left)
	merged.Merge(right)

	assert.Equal(t, 3, merged.NodeCount(), "shared::f is present once")
	require.Equal(t, 2, merged.EdgeCount())

	shared, ok := merged.Lookup(fnNode(0, 0, "shared::f"))
	require.True(t, ok)
	for _, e := range merged.Edges() {
		assert.Equal(t, shared, e.To)
	}

	// Merging the same graph again adds no nodes but doubles its edges.
	merged.Merge(right)
	assert.Equal(t, 3, merged.NodeCount())
	assert.Equal(t, 3, merged.EdgeCount())
}

func TestGraph_SelfMerge(t *testing.T) {
	t.Parallel()

	g := New("app")
	a := g.AddNode(fnNode(0, 1, "app::a"))
	b := g.AddNode(fnNode(0, 2, "app::b"))
	require.NoError(t, g.AddEdge(Edge{From: a, To: b, Kind: CallMethod, Multiplier: 1}))

	g.Merge(g)

	assert.Equal(t, 2, g.NodeCount())
	assert.Equal(t, 2, g.EdgeCount())

	// A second self-merge copies the edges present before it, no more.
	g.Merge(g)

	assert.Equal(t, 2, g.NodeCount())
	assert.Equal(t, 4, g.EdgeCount())
	for _, e := range g.Edges() {
		assert.Equal(t, a, e.From)
		assert.Equal(t, b, e.To)
	}
}

func TestGraph_CloneIsDeep(t *testing.T) {
	t.Parallel()

	g := New("app")
	a := g.AddNode(fnNode(0, 1, "app::a"))
	require.NoError(t, g.AddEdge(Edge{From: a, To: a, Kind: CallFunction, Multiplier: 1, Args: []ArgWeight{argW(1)}}))

	c := g.Clone()
	require.NoError(t, c.AddEdge(Edge{From: a, To: a, Kind: CallFunction, Multiplier: 1}))

	assert.Equal(t, "app", c.Unit())
	assert.Equal(t, 1, g.EdgeCount())
	assert.Equal(t, 2, c.EdgeCount())
}

func TestGraph_Equivalent(t *testing.T) {
	t.Parallel()

	a := New("app")
	x := a.AddNode(fnNode(0, 1, "app::x"))
	y := a.AddNode(fnNode(0, 2, "app::y"))
	require.NoError(t, a.AddEdge(Edge{From: x, To: y, Kind: CallFunction, Multiplier: 1}))

	// Same content, reversed insertion order and different numbering.
	b := New("app")
	y2 := b.AddNode(fnNode(4, 7, "app::y"))
	x2 := b.AddNode(fnNode(4, 6, "app::x"))
	require.NoError(t, b.AddEdge(Edge{From: x2, To: y2, Kind: CallFunction, Multiplier: 1}))

	assert.True(t, a.Equivalent(b))

	require.NoError(t, b.AddEdge(Edge{From: y2, To: x2, Kind: CallFunction, Multiplier: 1}))
	assert.False(t, a.Equivalent(b))
}

func TestNode_TextRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		node Node
		text string
	}{
		{
			name: "function",
			node: fnNode(2, 14, "core::fmt::write"),
			text: "2:14:4294967295:2:14 ~ core::fmt::write",
		},
		{
			name: "promoted",
			node: NewNode(sym(0, 5), ir.Promoted(1), "app::main"),
			text: "0:5:1:0:5 ~ app::main",
		},
		{
			name: "statically unknown",
			node: StaticallyUnknownNode(),
			text: "4294967295:STATICALLY_UNKNOWN:4294967295:STATICALLY_UNKNOWN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			text, err := tt.node.MarshalText()
			require.NoError(t, err)
			assert.Equal(t, tt.text, string(text))

			var got Node
			require.NoError(t, got.UnmarshalText(text))
			assert.Equal(t, tt.node, got)
		})
	}
}

func TestNode_UnmarshalMalformed(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"1:2:3",
		"x:2:3:ident",
		"1:y:3:ident",
		"1:2:z:ident",
	}
	for _, in := range inputs {
		var n Node
		err := n.UnmarshalText([]byte(in))
		require.Error(t, err, in)
		assert.True(t, errors.Is(err, ErrMalformedNode), in)
	}
}

func TestGraph_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	g := New("app")
	a := g.AddNode(fnNode(0, 1, "app::main"))
	b := g.AddNode(fnNode(0, 2, "app::Widget::draw"))
	u := g.AddNode(StaticallyUnknownNode())
	recv := ArgWeight{Operand: ir.Move, Mutability: ir.Mut, Ty: ir.TyRef, Weight: 1}
	require.NoError(t, g.AddEdge(Edge{From: a, To: b, Kind: CallMethod, Multiplier: 1.5, Receiver: &recv, Args: []ArgWeight{argW(2)}}))
	require.NoError(t, g.AddEdge(Edge{From: a, To: u, Kind: CallStaticallyUnknown, Multiplier: 1}))

	data, err := json.Marshal(g)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"method"`)
	assert.Contains(t, string(data), `"version":"1.0"`)

	got := New("")
	require.NoError(t, json.Unmarshal(data, got))
	assert.Equal(t, "app", got.Unit())
	assert.Equal(t, g.Nodes(), got.Nodes())
	assert.Equal(t, g.Edges(), got.Edges())
}

func TestGraph_UnmarshalCollapsesDuplicates(t *testing.T) {
	t.Parallel()

	data := `{
		"_metadata": {"version": "1.0", "unit": "app"},
		"nodes": ["0:1:4294967295:0:1 ~ app::a", "0:2:4294967295:0:2 ~ app::b", "3:9:4294967295:3:9 ~ app::a"],
		"edges": [
			{"from": 2, "to": 1, "kind": "function", "multiplier": 1, "args": []}
		]
	}`

	g := New("")
	require.NoError(t, json.Unmarshal([]byte(data), g))
	assert.Equal(t, 2, g.NodeCount())
	require.Equal(t, 1, g.EdgeCount())
	assert.Equal(t, 0, g.Edges()[0].From)
}

func TestGraph_UnmarshalRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
	}{
		{"version", `{"_metadata": {"version": "9.9"}, "nodes": [], "edges": []}`},
		{"edge range", `{"nodes": ["0:1:4294967295:x"], "edges": [{"from": 0, "to": 4, "kind": "function"}]}`},
		{"node", `{"nodes": ["bogus"], "edges": []}`},
		{"kind", `{"nodes": ["0:1:4294967295:x"], "edges": [{"from": 0, "to": 0, "kind": "teleport"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Error(t, json.Unmarshal([]byte(tt.data), New("")))
		})
	}
}

func TestGraph_DOT(t *testing.T) {
	t.Parallel()

	g := New("app")
	a := g.AddNode(fnNode(0, 1, "app::main"))
	b := g.AddNode(NewNode(sym(0, 1), ir.Promoted(0), "app::main"))
	require.NoError(t, g.AddEdge(Edge{From: a, To: b, Kind: CallConst, Multiplier: 2, Args: []ArgWeight{argW(0.25), argW(1)}}))

	dot := g.DOT()
	assert.True(t, strings.HasPrefix(dot, "digraph {\n"))
	assert.Contains(t, dot, `    0 [ label="i0: 0:1 ~ app::main - None" ]`)
	assert.Contains(t, dot, `    1 [ label="i1: 0:1 ~ app::main - promoted[0]" ]`)
	assert.Contains(t, dot, `    0 -> 1 [ label="2.50" ]`)
	assert.True(t, strings.HasSuffix(dot, "}\n"))
}

func TestEdge_Weights(t *testing.T) {
	t.Parallel()

	recv := argW(3)
	e := Edge{Kind: CallMethod, Multiplier: 2, Receiver: &recv, Args: []ArgWeight{argW(1), argW(0.5)}}
	assert.Equal(t, []float64{3, 1, 0.5}, e.Weights())
	assert.InDelta(t, 9.0, e.TotalWeight(), 1e-9)
	assert.InDelta(t, 3.0, e.Reduce(func(acc, w float64) float64 {
		if w > acc {
			return w
		}
		return acc
	}, 0), 1e-9)

	empty := Edge{Kind: CallFunction, Multiplier: 1, Args: []ArgWeight{}}
	assert.Empty(t, empty.Weights())
	assert.Zero(t, empty.TotalWeight())
}

func TestCallKind_Text(t *testing.T) {
	t.Parallel()

	for _, k := range CallKinds {
		text, err := k.MarshalText()
		require.NoError(t, err)
		var got CallKind
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, k, got)
	}
	assert.False(t, CallClone.ProducesEdge())
	assert.False(t, CallUnknown.ProducesEdge())
	assert.True(t, CallStaticallyUnknown.ProducesEdge())

	_, err := ParseCallKind("bogus")
	assert.Error(t, err)
}
