package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mvp-joe/linkgraph/internal/ir"
)

// GraphVersion is the current version of the serialized graph format.
const GraphVersion = "1.0"

var (
	// ErrMalformedNode is returned when a serialized node cannot be parsed.
	ErrMalformedNode = errors.New("malformed node")
	// ErrNodeOutOfRange is returned for edges whose endpoints do not exist.
	ErrNodeOutOfRange = errors.New("node index out of range")
)

// MarshalText renders "<unit>:<index>:<promoted>:<ident>". The dummy node's
// index is written as STATICALLY_UNKNOWN and a missing promoted id as 4294967295.
func (n Node) MarshalText() ([]byte, error) {
	index := strconv.FormatUint(uint64(n.Symbol.Index), 10)
	if n.Symbol.IsStaticallyUnknown() {
		index = StaticallyUnknownIdent
	}
	return []byte(fmt.Sprintf("%d:%s:%d:%s", n.Symbol.Unit, index, uint32(n.Promoted), n.Ident)), nil
}

// UnmarshalText parses the form written by MarshalText. The identifier may contain ':'.
func (n *Node) UnmarshalText(text []byte) error {
	parts := strings.SplitN(string(text), ":", 4)
	if len(parts) != 4 {
		return fmt.Errorf("%w: %q", ErrMalformedNode, text)
	}

	unit, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return fmt.Errorf("%w: unit %q", ErrMalformedNode, parts[0])
	}

	var index uint64
	if parts[1] == StaticallyUnknownIdent {
		index = uint64(ir.StaticallyUnknown.Index)
	} else {
		index, err = strconv.ParseUint(parts[1], 10, 32)
		if err != nil {
			return fmt.Errorf("%w: index %q", ErrMalformedNode, parts[1])
		}
	}

	promoted, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return fmt.Errorf("%w: promoted %q", ErrMalformedNode, parts[2])
	}

	*n = Node{
		Symbol:   ir.SymbolID{Unit: uint32(unit), Index: uint32(index)},
		Promoted: ir.Promoted(promoted),
		Ident:    parts[3],
	}
	return nil
}

// graphFile is the serialized form of a Graph.
type graphFile struct {
	Metadata graphMetadata `json:"_metadata"`
	Nodes    []Node        `json:"nodes"`
	Edges    []Edge        `json:"edges"`
}

type graphMetadata struct {
	Version   string `json:"version"`
	Unit      string `json:"unit"`
	NodeCount int    `json:"node_count"`
	EdgeCount int    `json:"edge_count"`
}

// MarshalJSON implements json.Marshaler.
func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(graphFile{
		Metadata: graphMetadata{
			Version:   GraphVersion,
			Unit:      g.unit,
			NodeCount: len(g.nodes),
			EdgeCount: len(g.edges),
		},
		Nodes: g.nodes,
		Edges: g.edges,
	})
}

// UnmarshalJSON implements json.Unmarshaler. Duplicate nodes in the input are
// collapsed and edge endpoints re-targeted accordingly.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var f graphFile
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	if f.Metadata.Version != "" && f.Metadata.Version != GraphVersion {
		return fmt.Errorf("unsupported graph version %q", f.Metadata.Version)
	}

	out := New(f.Metadata.Unit)
	remap := make([]int, len(f.Nodes))
	for i, n := range f.Nodes {
		remap[i] = out.AddNode(n)
	}
	for _, e := range f.Edges {
		if e.From < 0 || e.From >= len(remap) || e.To < 0 || e.To >= len(remap) {
			return fmt.Errorf("edge %d -> %d: %w", e.From, e.To, ErrNodeOutOfRange)
		}
		e.From, e.To = remap[e.From], remap[e.To]
		if err := out.AddEdge(e); err != nil {
			return err
		}
	}
	*g = *out
	return nil
}
