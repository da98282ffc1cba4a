package graph

import (
	"fmt"
	"strings"

	"github.com/mvp-joe/linkgraph/internal/ir"
)

// CallKind classifies what a resolved callee is.
type CallKind uint8

const (
	CallFunction CallKind = iota
	CallMethod
	CallClosure
	CallClone
	CallConst
	CallStatic
	CallStaticMut
	CallStaticallyUnknown
	CallUnknown
)

var callKindNames = []string{
	"function", "method", "closure", "clone", "const", "static", "static_mut", "statically_unknown", "unknown",
}

// CallKinds lists every call kind in declaration order.
var CallKinds = []CallKind{
	CallFunction, CallMethod, CallClosure, CallClone, CallConst, CallStatic, CallStaticMut, CallStaticallyUnknown, CallUnknown,
}

func (k CallKind) String() string {
	if int(k) < len(callKindNames) {
		return callKindNames[k]
	}
	return fmt.Sprintf("unknown(%d)", uint8(k))
}

// ProducesEdge reports whether a call of this kind is recorded in the graph.
// Clone and Unknown never are.
func (k CallKind) ProducesEdge() bool {
	return k != CallClone && k != CallUnknown
}

// ParseCallKind parses a call kind name.
func ParseCallKind(s string) (CallKind, error) {
	for i, name := range callKindNames {
		if name == s {
			return CallKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown call kind %q", s)
}

func (k CallKind) MarshalText() ([]byte, error) {
	if int(k) >= len(callKindNames) {
		return nil, fmt.Errorf("invalid call kind %d", uint8(k))
	}
	return []byte(callKindNames[k]), nil
}

func (k *CallKind) UnmarshalText(text []byte) error {
	parsed, err := ParseCallKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// StaticallyUnknownIdent is the identifier of the dummy node shared by all
// statically unknown callees.
const StaticallyUnknownIdent = "STATICALLY_UNKNOWN"

// Node is a callable entity: a function, method, closure, static, const, or a
// promoted constant of a function.
type Node struct {
	Symbol   ir.SymbolID // Unit-local id of the entity
	Promoted ir.Promoted // Promoted constant id, ir.NoPromoted if none
	Ident    string      // "<unit>:<index> ~ <path>", or StaticallyUnknownIdent
}

// NewNode creates a node for sym, rendering its identifier from the display path.
func NewNode(sym ir.SymbolID, promoted ir.Promoted, path string) Node {
	if sym.IsStaticallyUnknown() {
		return StaticallyUnknownNode()
	}
	return Node{
		Symbol:   sym,
		Promoted: promoted,
		Ident:    fmt.Sprintf("%s ~ %s", sym, path),
	}
}

// StaticallyUnknownNode returns the dummy node.
func StaticallyUnknownNode() Node {
	return Node{Symbol: ir.StaticallyUnknown, Promoted: ir.NoPromoted, Ident: StaticallyUnknownIdent}
}

// Name returns the part of the identifier that does not depend on unit-local
// numbering: everything after "~", trimmed. Identifiers without "~" are returned whole.
func (n Node) Name() string {
	if _, after, ok := strings.Cut(n.Ident, "~"); ok {
		return strings.TrimSpace(after)
	}
	return n.Ident
}

// Key is the identity of a node across units.
func (n Node) Key() string {
	return fmt.Sprintf("%s#%d", n.Name(), uint32(n.Promoted))
}

// Equal reports whether two nodes denote the same entity, possibly from different units.
func (n Node) Equal(other Node) bool {
	return n.Name() == other.Name() && n.Promoted == other.Promoted
}

func (n Node) String() string {
	if n.Promoted.IsSet() {
		return fmt.Sprintf("%s::%s", n.Name(), n.Promoted)
	}
	return n.Name()
}

// ArgWeight describes one argument of a call and its weight.
type ArgWeight struct {
	Operand    ir.OperandKind `json:"operand"`    // Move, copy or constant
	Mutability ir.Mutability  `json:"mutability"` // Mutability of the passed slot
	Ty         ir.TyKind      `json:"ty"`         // Coarse type of the argument
	Weight     float64        `json:"weight"`
}

// Edge is one call from a caller node to a callee node.
type Edge struct {
	From       int         `json:"from"`
	To         int         `json:"to"`
	Kind       CallKind    `json:"kind"`
	Multiplier float64     `json:"multiplier"`         // Call-kind multiplier applied to the total
	Receiver   *ArgWeight  `json:"receiver,omitempty"` // Method receiver, kept apart from Args
	Args       []ArgWeight `json:"args"`
}

// Weights returns the per-argument weights, receiver first.
func (e Edge) Weights() []float64 {
	out := make([]float64, 0, len(e.Args)+1)
	if e.Receiver != nil {
		out = append(out, e.Receiver.Weight)
	}
	for _, a := range e.Args {
		out = append(out, a.Weight)
	}
	return out
}

// Reduce folds the per-argument weights with fn starting from init.
func (e Edge) Reduce(fn func(acc, w float64) float64, init float64) float64 {
	acc := init
	for _, w := range e.Weights() {
		acc = fn(acc, w)
	}
	return acc
}

// TotalWeight is the sum of the argument weights scaled by the call-kind multiplier.
func (e Edge) TotalWeight() float64 {
	return e.Reduce(func(acc, w float64) float64 { return acc + w }, 0) * e.Multiplier
}
