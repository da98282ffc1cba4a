package analysis

import (
	"github.com/mvp-joe/linkgraph/internal/graph"
	"github.com/mvp-joe/linkgraph/internal/ir"
)

// Operand multipliers. They are kept apart so each ownership mode can be tuned
// on its own.
const (
	MoveMultiplier     = 1.0
	CopyMultiplier     = 1.0
	ConstantMultiplier = 1.0
)

// baseWeight is the weight of any argument before its operand multiplier.
const baseWeight = 1.0

// WeightConfig holds the multipliers applied to arguments and edges.
type WeightConfig struct {
	Move     float64
	Copy     float64
	Constant float64

	// Calls maps edge-producing call kinds to the multiplier of their edges.
	// Missing kinds default to 1.
	Calls map[graph.CallKind]float64

	// ScaleByCallKind applies Calls to edge totals. When false every edge has multiplier 1.
	ScaleByCallKind bool
}

// DefaultWeightConfig returns unit weights for every operand and call kind.
func DefaultWeightConfig() WeightConfig {
	calls := make(map[graph.CallKind]float64)
	for _, k := range graph.CallKinds {
		if k.ProducesEdge() {
			calls[k] = 1.0
		}
	}
	return WeightConfig{
		Move:     MoveMultiplier,
		Copy:     CopyMultiplier,
		Constant: ConstantMultiplier,
		Calls:    calls,
	}
}

// SlotDecls exposes slot declarations of the body being walked.
type SlotDecls interface {
	Decl(l ir.Local) ir.LocalDecl
}

// Weighted is the weight breakdown of one call.
type Weighted struct {
	Receiver   *graph.ArgWeight
	Args       []graph.ArgWeight
	Multiplier float64
}

// WeightResolver computes argument weights. It has no state beyond its config.
type WeightResolver struct {
	cfg WeightConfig
}

// NewWeightResolver creates a weight resolver.
func NewWeightResolver(cfg WeightConfig) *WeightResolver {
	return &WeightResolver{cfg: cfg}
}

// Resolve weighs the normalized arguments of a call of the given kind. A
// method's first argument is its receiver and is reported apart. No arguments
// yield an empty list.
func (w *WeightResolver) Resolve(slots SlotDecls, kind graph.CallKind, args []ir.Operand) Weighted {
	out := Weighted{Args: []graph.ArgWeight{}, Multiplier: w.multiplier(kind)}
	if kind == graph.CallMethod && len(args) > 0 {
		recv := w.weigh(slots, args[0])
		out.Receiver = &recv
		args = args[1:]
	}
	for _, a := range args {
		out.Args = append(out.Args, w.weigh(slots, a))
	}
	return out
}

func (w *WeightResolver) multiplier(kind graph.CallKind) float64 {
	if !w.cfg.ScaleByCallKind {
		return 1.0
	}
	if m, ok := w.cfg.Calls[kind]; ok {
		return m
	}
	return 1.0
}

func (w *WeightResolver) weigh(slots SlotDecls, op ir.Operand) graph.ArgWeight {
	switch op.Kind {
	case ir.Move, ir.Copy:
		decl := slots.Decl(op.Local)
		m := w.cfg.Move
		if op.Kind == ir.Copy {
			m = w.cfg.Copy
		}
		return graph.ArgWeight{Operand: op.Kind, Mutability: decl.Mutability, Ty: decl.Ty.Kind, Weight: baseWeight * m}
	default:
		ty := ir.TyOther
		if op.Const != nil {
			ty = op.Const.Ty.Kind
		}
		// Constants are never mutable.
		return graph.ArgWeight{Operand: ir.Constant, Mutability: ir.Not, Ty: ty, Weight: baseWeight * w.cfg.Constant}
	}
}
