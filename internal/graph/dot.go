package graph

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Label renders the DOT label of the node at index i: "i<idx>: <ident> - <promoted>".
func (g *Graph) Label(i int) string {
	n := g.nodes[i]
	return fmt.Sprintf("i%d: %s - %s", i, n.Ident, n.Promoted)
}

// WriteDOT renders the graph in DOT syntax. Nodes are labeled with their
// identifier and promoted id, edges with their total weight.
func (g *Graph) WriteDOT(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "digraph {")
	for i := range g.nodes {
		fmt.Fprintf(bw, "    %d [ label=\"%s\" ]\n", i, escapeDOT(g.Label(i)))
	}
	for _, e := range g.edges {
		fmt.Fprintf(bw, "    %d -> %d [ label=\"%.2f\" ]\n", e.From, e.To, e.TotalWeight())
	}
	fmt.Fprintln(bw, "}")
	return bw.Flush()
}

// DOT returns the DOT rendering as a string.
func (g *Graph) DOT() string {
	var sb strings.Builder
	_ = g.WriteDOT(&sb)
	return sb.String()
}

func escapeDOT(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `"`, `\"`)
}
