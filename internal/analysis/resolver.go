package analysis

import (
	"fmt"
	"slices"

	"github.com/mvp-joe/linkgraph/internal/graph"
	"github.com/mvp-joe/linkgraph/internal/ir"
)

// Target is one possible callee of a call site.
type Target struct {
	Symbol   ir.SymbolID
	Promoted ir.Promoted
	Kind     graph.CallKind
	Args     []ir.Operand // Call arguments as seen by this callee
}

func (t Target) String() string {
	if t.Promoted.IsSet() {
		return fmt.Sprintf("%s %s::%s", t.Kind, t.Symbol, t.Promoted)
	}
	return fmt.Sprintf("%s %s", t.Kind, t.Symbol)
}

func staticallyUnknown(args []ir.Operand) Target {
	return Target{Symbol: ir.StaticallyUnknown, Promoted: ir.NoPromoted, Kind: graph.CallStaticallyUnknown, Args: args}
}

func target(sym ir.SymbolID, kind graph.CallKind, args []ir.Operand) Target {
	return Target{Symbol: sym, Promoted: ir.NoPromoted, Kind: kind, Args: args}
}

// ClassifierConfig names the external entities classification depends on.
type ClassifierConfig struct {
	ClonePath      string   // Path of the duplication method
	CallPaths      []string // Paths of the call-operator trait methods
	RuntimeUnits   []string // Units whose functions are always plain functions
	ToolchainUnits []string // Units shipped with the toolchain
}

// DefaultClassifierConfig returns the classification defaults.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		ClonePath:    "std::clone::Clone::clone",
		CallPaths:    []string{"std::ops::Fn::call", "std::ops::FnOnce::call_once", "std::ops::FnMut::call_mut"},
		RuntimeUnits: []string{"core", "std", "alloc"},
		ToolchainUnits: []string{
			"std", "core", "compiler_builtins", "rustc_std_workspace_core", "alloc",
			"libc", "unwind", "cfg_if", "miniz_oxide", "adler", "hashbrown",
			"rustc_std_workspace_alloc", "std_detect", "rustc_demangle", "addr2line",
			"gimli", "object", "memchr", "panic_unwind",
		},
	}
}

// Resolver finds the callees of call sites in the body tracked by a Context.
type Resolver struct {
	prog ir.Program
	ctx  *Context
	cfg  ClassifierConfig
}

// NewResolver creates a resolver over the state of ctx.
func NewResolver(prog ir.Program, ctx *Context, cfg ClassifierConfig) *Resolver {
	return &Resolver{prog: prog, ctx: ctx, cfg: cfg}
}

type visitKey struct {
	local ir.Local
	block ir.BlockID
}

// Resolve returns every callee fn may denote when called with args in block bb.
// Each target carries the arguments its callee receives, which differ from
// args when a call-operator invocation is unwrapped.
func (r *Resolver) Resolve(fn ir.Operand, args []ir.Operand, bb ir.BlockID) ([]Target, error) {
	targets, err := r.resolveOperand(fn, args, bb, make(map[visitKey]bool))
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: %s has no reachable binding", ErrUnresolvable, fn)
	}
	return targets, nil
}

func (r *Resolver) resolveOperand(op ir.Operand, args []ir.Operand, bb ir.BlockID, visited map[visitKey]bool) ([]Target, error) {
	switch op.Kind {
	case ir.Move, ir.Copy:
		return r.resolveLocal(op.Local, args, bb, visited)
	case ir.Constant:
		if op.Const == nil {
			return nil, fmt.Errorf("%w: constant operand without value", ErrUnresolvable)
		}
		t, err := r.classify(*op.Const, args)
		if err != nil {
			return nil, err
		}
		return []Target{t}, nil
	default:
		return nil, fmt.Errorf("%w: operand %s", ErrUnresolvable, op)
	}
}

// resolveLocal follows the binding of slot l as saved for block bb. A block
// with several predecessors is resolved once per predecessor and the results
// are unioned.
func (r *Resolver) resolveLocal(l ir.Local, args []ir.Operand, bb ir.BlockID, visited map[visitKey]bool) ([]Target, error) {
	key := visitKey{local: l, block: bb}
	if visited[key] {
		return nil, nil
	}
	visited[key] = true

	preds := r.ctx.Predecessors(bb)
	if len(preds) > 1 {
		assigned := r.ctx.Assigned(bb)
		upper, err := r.upperLocal(l, bb, assigned, make(map[ir.Local]bool))
		if err != nil {
			return nil, err
		}
		if _, local := assigned[upper]; local {
			// The chain ends in a value bound by this block itself.
			return r.resolveBinding(upper, args, bb, visited)
		}
		var out []Target
		for _, p := range preds {
			targets, err := r.resolveLocal(upper, args, p, visited)
			if err != nil {
				return nil, err
			}
			out = append(out, targets...)
		}
		return out, nil
	}
	return r.resolveBinding(l, args, bb, visited)
}

// resolveBinding resolves slot l from the bindings saved for bb.
func (r *Resolver) resolveBinding(l ir.Local, args []ir.Operand, bb ir.BlockID, visited map[visitKey]bool) ([]Target, error) {
	snapshot, ok := r.ctx.Snapshot(bb)
	if !ok {
		return nil, fmt.Errorf("%w: no state saved for %s", ErrUnresolvable, bb)
	}
	v, ok := snapshot[l]
	if !ok {
		if r.ctx.Body().IsParam(l) {
			// A parameter that was never rebound can be any function.
			return []Target{staticallyUnknown(args)}, nil
		}
		return nil, fmt.Errorf("%w: %s is unbound in %s", ErrUnresolvable, l, bb)
	}

	switch v.Kind {
	case ValueRvalue:
		return r.resolveRvalue(l, v.Rvalue, args, bb, visited)
	case ValueCall:
		if r.ctx.SlotTy(l).Kind == ir.TyFnPtr {
			// A function pointer returned by a call.
			return []Target{staticallyUnknown(args)}, nil
		}
	case ValueCallClone:
		return r.resolveOperand(v.Cloned, args, bb, visited)
	}
	return nil, fmt.Errorf("%w: %s bound to %s", ErrUnresolvable, l, v)
}

func (r *Resolver) resolveRvalue(l ir.Local, rv ir.Rvalue, args []ir.Operand, bb ir.BlockID, visited map[visitKey]bool) ([]Target, error) {
	switch rv.Kind {
	case ir.RvalueUse:
		switch rv.Operand.Kind {
		case ir.Constant:
			return r.resolveOperand(rv.Operand, args, bb, visited)
		case ir.Copy:
			if r.ctx.SlotTy(rv.Operand.Local).Kind == ir.TyTuple {
				// Fields of captured environments are not tracked.
				return []Target{staticallyUnknown(args)}, nil
			}
			return r.resolveLocal(rv.Operand.Local, args, bb, visited)
		case ir.Move:
			return r.resolveLocal(rv.Operand.Local, args, bb, visited)
		}
	case ir.RvalueRef:
		return r.resolveLocal(rv.Place, args, bb, visited)
	case ir.RvalueCast:
		return r.resolveOperand(rv.Operand, args, bb, visited)
	}
	return nil, fmt.Errorf("%w: %s bound to %s", ErrUnresolvable, l, rv)
}

// upperLocal follows the alias chain of l through slots assigned in bb. It
// returns the first slot bound outside of bb, or the last slot of the chain
// when that slot is bound to something other than an alias.
func (r *Resolver) upperLocal(l ir.Local, bb ir.BlockID, candidates map[ir.Local]struct{}, seen map[ir.Local]bool) (ir.Local, error) {
	if _, ok := candidates[l]; !ok {
		return l, nil
	}
	if seen[l] {
		return 0, fmt.Errorf("%w: alias cycle through %s in %s", ErrUnresolvable, l, bb)
	}
	seen[l] = true

	snapshot, _ := r.ctx.Snapshot(bb)
	v, ok := snapshot[l]
	if !ok || v.Kind != ValueRvalue {
		return l, nil
	}

	rv := v.Rvalue
	switch rv.Kind {
	case ir.RvalueUse, ir.RvalueCast:
		if rv.Operand.IsPlace() {
			return r.upperLocal(rv.Operand.Local, bb, candidates, seen)
		}
	case ir.RvalueRef, ir.RvalueCopyForDeref:
		return r.upperLocal(rv.Place, bb, candidates, seen)
	}
	return l, nil
}

// classify maps a constant callee to its target.
func (r *Resolver) classify(c ir.Const, args []ir.Operand) (Target, error) {
	switch c.Kind {
	case ir.ConstZeroSized, ir.ConstScalar:
		switch c.Ty.Kind {
		case ir.TyFnDef:
			return r.classifyFn(c.Ty.Symbol, args)
		case ir.TyClosure:
			return target(c.Ty.Symbol, graph.CallClosure, args), nil
		}

	case ir.ConstUnevaluated:
		switch c.Ty.Kind {
		case ir.TyFnPtr:
			return r.staticOrConst(c.Def, args)
		case ir.TyRef:
			if c.Promoted.IsSet() {
				return Target{Symbol: c.Def, Promoted: c.Promoted, Kind: graph.CallConst, Args: args}, nil
			}
		}

	case ir.ConstPointer:
		if c.Ty.Kind != ir.TyRef && c.Ty.Kind != ir.TyRawPtr {
			break
		}
		switch c.Ty.Pointee().Kind {
		case ir.TyFnDef:
			return r.classifyFn(c.Ty.Pointee().Symbol, args)
		case ir.TyFnPtr:
			static, ok := r.prog.Alloc(c.Alloc)
			if !ok {
				return Target{}, fmt.Errorf("%w: alloc%d is not a static", ErrUnresolvable, c.Alloc)
			}
			kind := graph.CallStatic
			if c.Ty.Mutability == ir.Mut {
				kind = graph.CallStaticMut
			}
			return target(static, kind, args), nil
		}
	}
	return Target{}, fmt.Errorf("%w: constant %s", ErrUnresolvable, c)
}

// classifyFn classifies a function item.
func (r *Resolver) classifyFn(sym ir.SymbolID, args []ir.Operand) (Target, error) {
	info, ok := r.prog.Symbol(sym)
	if !ok {
		return Target{}, fmt.Errorf("%w: unknown symbol %s", ErrUnresolvable, sym)
	}

	if !info.Local && info.Path == r.cfg.ClonePath {
		return target(sym, graph.CallClone, args), nil
	}
	if info.ClosureLike {
		return target(sym, graph.CallClosure, args), nil
	}
	if info.Kind == ir.DefAssocFn && info.HasSelf {
		if slices.Contains(r.cfg.CallPaths, info.Path) {
			return r.unwrapCallOperator(args)
		}
		return target(sym, graph.CallMethod, args), nil
	}
	if info.ConstDefaultMethod || info.ImplTraitTys {
		return target(sym, graph.CallMethod, args), nil
	}
	if info.Trait != nil {
		for _, item := range r.prog.TraitItems(*info.Trait) {
			if item != sym {
				continue
			}
			if itemInfo, ok := r.prog.Symbol(item); ok && itemInfo.HasSelf {
				return target(sym, graph.CallMethod, args), nil
			}
		}
	}
	if info.Local {
		return target(sym, graph.CallFunction, args), nil
	}
	if slices.Contains(r.cfg.RuntimeUnits, info.UnitName) || !slices.Contains(r.cfg.ToolchainUnits, info.UnitName) {
		return target(sym, graph.CallFunction, args), nil
	}
	return target(sym, graph.CallUnknown, args), nil
}

// unwrapCallOperator classifies a call through the call-operator trait by its
// receiver, the first argument.
func (r *Resolver) unwrapCallOperator(args []ir.Operand) (Target, error) {
	if len(args) == 0 {
		return Target{}, fmt.Errorf("%w: call operator without receiver", ErrUnresolvable)
	}
	recv, rest := args[0], args[1:]

	if recv.Kind == ir.Constant {
		if recv.Const == nil {
			return Target{}, fmt.Errorf("%w: constant receiver without value", ErrUnresolvable)
		}
		return r.classify(*recv.Const, rest)
	}

	ty := r.ctx.SlotTy(recv.Local)
	if ty.Kind == ir.TyRef {
		ty = ty.Pointee()
	}
	switch ty.Kind {
	case ir.TyFnDef:
		return r.classifyFn(ty.Symbol, rest)
	case ir.TyClosure:
		return target(ty.Symbol, graph.CallClosure, args), nil
	case ir.TyParam:
		return staticallyUnknown(args), nil
	}
	return Target{}, fmt.Errorf("%w: call operator receiver of type %s", ErrUnresolvable, r.ctx.SlotTy(recv.Local))
}

// staticOrConst classifies a const or static item named by an unevaluated constant.
func (r *Resolver) staticOrConst(def ir.SymbolID, args []ir.Operand) (Target, error) {
	info, ok := r.prog.Symbol(def)
	if !ok {
		return Target{}, fmt.Errorf("%w: unknown symbol %s", ErrUnresolvable, def)
	}
	switch info.Kind {
	case ir.DefStatic:
		if info.Mutable {
			return target(def, graph.CallStaticMut, args), nil
		}
		return target(def, graph.CallStatic, args), nil
	case ir.DefConst:
		return target(def, graph.CallConst, args), nil
	}
	return Target{}, fmt.Errorf("%w: %s is a %s, not a const or static", ErrUnresolvable, info.Path, info.Kind)
}
