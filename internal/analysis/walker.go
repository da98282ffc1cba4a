package analysis

import (
	"fmt"

	"github.com/mvp-joe/linkgraph/internal/graph"
	"github.com/mvp-joe/linkgraph/internal/ir"
)

// Logf receives trace output of the walk. It discards everything unless
// replaced, e.g. with log.Printf for verbose runs.
var Logf = func(format string, args ...any) {}

// Walker visits function bodies of one unit and records their calls in a graph.
type Walker struct {
	prog    ir.Program
	graph   *graph.Graph
	cfg     ClassifierConfig
	weights *WeightResolver
}

// NewWalker creates a walker writing into g.
func NewWalker(prog ir.Program, g *graph.Graph, cfg ClassifierConfig, weights WeightConfig) *Walker {
	return &Walker{
		prog:    prog,
		graph:   g,
		cfg:     cfg,
		weights: NewWeightResolver(weights),
	}
}

// pendingEdge is a call found in the body being walked, committed to the
// graph once the whole body has been walked.
type pendingEdge struct {
	to       graph.Node
	kind     graph.CallKind
	weighted Weighted
}

// WalkBody walks one function or promoted-constant body in block order. The
// body's own node is always added; its edges are added only if every block
// was handled. Failures are returned as *FunctionError.
func (w *Walker) WalkBody(body *ir.Body) error {
	self := w.node(body.Owner, body.Promoted)
	from := w.graph.AddNode(self)
	Logf("Visiting %s", self)

	ctx := NewContext(body)
	resolver := NewResolver(w.prog, ctx, w.cfg)

	var pending []pendingEdge
	for i, block := range body.Blocks {
		bb := ir.BlockID(i)
		ctx.EnterBlock(bb, block)

		for _, stmt := range block.Statements {
			// Storage markers leave bindings in place.
			if stmt.Kind == ir.StmtAssign && stmt.Rvalue != nil {
				ctx.Bind(stmt.Local, Value{Kind: ValueRvalue, Rvalue: *stmt.Rvalue})
			}
		}

		edges, err := w.terminator(ctx, resolver, block.Terminator)
		if err != nil {
			return &FunctionError{Func: self.String(), Block: bb, Err: err}
		}
		pending = append(pending, edges...)

		ctx.SaveBlock()
	}

	for _, e := range pending {
		to := w.graph.AddNode(e.to)
		edge := graph.Edge{
			From:       from,
			To:         to,
			Kind:       e.kind,
			Multiplier: e.weighted.Multiplier,
			Receiver:   e.weighted.Receiver,
			Args:       e.weighted.Args,
		}
		if err := w.graph.AddEdge(edge); err != nil {
			return &FunctionError{Func: self.String(), Err: err}
		}
	}
	return nil
}

func (w *Walker) terminator(ctx *Context, resolver *Resolver, term ir.Terminator) ([]pendingEdge, error) {
	switch term.Kind {
	case ir.TermCall:
		return w.call(ctx, resolver, term)

	case ir.TermSwitchInt:
		targets := uniqueBlocks(term.Targets)
		for _, t := range targets {
			ctx.AddPredecessor(t)
		}
		ctx.PushSwitch(targets)

	case ir.TermGoto, ir.TermDrop, ir.TermAssert, ir.TermFalseEdge, ir.TermFalseUnwind:
		if len(term.Targets) > 0 {
			ctx.AddPredecessor(term.Targets[0])
		}

	case ir.TermYield, ir.TermInlineAsm, ir.TermTailCall:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTerminator, term.Kind)
	}
	return nil, nil
}

func (w *Walker) call(ctx *Context, resolver *Resolver, term ir.Terminator) ([]pendingEdge, error) {
	// Resolution reads the saved state of the current block, which must
	// include the statements before the call.
	ctx.SaveBlock()

	targets, err := resolver.Resolve(term.Func, term.Args, ctx.Block())
	if err != nil {
		return nil, err
	}
	Logf("Resolved %s in %s to %v", term.Func, ctx.Block(), targets)

	var edges []pendingEdge
	for _, t := range targets {
		if !t.Kind.ProducesEdge() {
			continue
		}
		args, err := normalizeArgs(ctx, t)
		if err != nil {
			return nil, err
		}
		edges = append(edges, pendingEdge{
			to:       w.node(t.Symbol, t.Promoted),
			kind:     t.Kind,
			weighted: w.weights.Resolve(ctx, t.Kind, args),
		})
	}

	ctx.Bind(term.Destination, resultValue(targets[0], term.Args))

	if len(term.Targets) > 0 {
		ctx.AddPredecessor(term.Targets[0])
	}
	return edges, nil
}

// normalizeArgs returns the arguments a callee receives. A closure is called
// with itself and a tuple packing its arguments, which is unpacked here.
func normalizeArgs(ctx *Context, t Target) ([]ir.Operand, error) {
	if t.Kind != graph.CallClosure {
		return t.Args, nil
	}
	if len(t.Args) != 2 {
		return nil, fmt.Errorf("%w: expected closure and argument pack, got %d arguments", ErrMalformedClosureArgs, len(t.Args))
	}

	pack := t.Args[1]
	switch pack.Kind {
	case ir.Move:
		v, ok := ctx.Binding(pack.Local)
		if ok && v.Kind == ValueRvalue && v.Rvalue.Kind == ir.RvalueAggregate && v.Rvalue.Aggregate == ir.AggregateTuple {
			args := make([]ir.Operand, len(v.Rvalue.Elements))
			copy(args, v.Rvalue.Elements)
			return args, nil
		}
		if ok {
			return nil, fmt.Errorf("%w: %s is bound to %s", ErrMalformedClosureArgs, pack.Local, v)
		}
		return nil, fmt.Errorf("%w: %s is unbound", ErrMalformedClosureArgs, pack.Local)
	case ir.Constant:
		if pack.Const != nil && pack.Const.Kind == ir.ConstZeroSized {
			return []ir.Operand{}, nil
		}
	}
	return nil, fmt.Errorf("%w: argument pack %s", ErrMalformedClosureArgs, pack)
}

// resultValue is the sentinel bound to a call's destination slot.
func resultValue(t Target, args []ir.Operand) Value {
	switch t.Kind {
	case graph.CallClone:
		if len(args) > 0 {
			return Value{Kind: ValueCallClone, Callee: t.Symbol, Cloned: args[0]}
		}
	case graph.CallConst:
		return Value{Kind: ValueCallConst, Callee: t.Symbol}
	case graph.CallStatic:
		return Value{Kind: ValueCallStatic, Callee: t.Symbol}
	case graph.CallStaticMut:
		return Value{Kind: ValueCallStaticMut, Callee: t.Symbol}
	}
	return Value{Kind: ValueCall, Callee: t.Symbol}
}

// node builds the graph node of a symbol, named by its display path.
func (w *Walker) node(sym ir.SymbolID, promoted ir.Promoted) graph.Node {
	path := sym.String()
	if info, ok := w.prog.Symbol(sym); ok && info.Path != "" {
		path = info.Path
	}
	return graph.NewNode(sym, promoted, path)
}

func uniqueBlocks(blocks []ir.BlockID) []ir.BlockID {
	seen := make(map[ir.BlockID]bool, len(blocks))
	out := make([]ir.BlockID, 0, len(blocks))
	for _, b := range blocks {
		if !seen[b] {
			seen[b] = true
			out = append(out, b)
		}
	}
	return out
}
