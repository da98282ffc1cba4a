package analysis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/linkgraph/internal/graph"
	"github.com/mvp-joe/linkgraph/internal/ir"
)

// Test Plan for Resolver:
// - Constant callees classify by symbol facts: clone, closure, method, trait
//   method, local/runtime/third-party function, toolchain unknown
// - Unevaluated constants name statics, mutable statics, consts and promoted consts
// - Pointer constants resolve through allocations and pointee function items
// - Unclassifiable constants are errors
// - Call-operator invocations are unwrapped by receiver: constant, function
//   item behind a reference, closure, generic parameter
// - An alias cycle inside a join block is an error
// - A call with no reachable binding is an error

func unevaluated(def ir.SymbolID, ty ir.Ty, promoted ir.Promoted) ir.Const {
	return ir.Const{Kind: ir.ConstUnevaluated, Ty: ty, Def: def, Promoted: promoted}
}

func pointer(ty ir.Ty, alloc ir.AllocID) ir.Const {
	return ir.Const{Kind: ir.ConstPointer, Ty: ty, Alloc: alloc, Promoted: ir.NoPromoted}
}

func newTestResolver(u *ir.Unit, body *ir.Body) *Resolver {
	return NewResolver(u, NewContext(body), DefaultClassifierConfig())
}

func TestResolver_ClassifyConstants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		c        ir.Const
		symbol   ir.SymbolID
		promoted ir.Promoted
		kind     graph.CallKind
	}{
		{"local function", ir.FnItem(parseFn), parseFn, ir.NoPromoted, graph.CallFunction},
		{"clone", ir.FnItem(cloneFn), cloneFn, ir.NoPromoted, graph.CallClone},
		{"closure item", ir.FnItem(closureFn), closureFn, ir.NoPromoted, graph.CallClosure},
		{"closure value", ir.Const{Kind: ir.ConstZeroSized, Ty: ir.ClosureTy(closureFn), Promoted: ir.NoPromoted}, closureFn, ir.NoPromoted, graph.CallClosure},
		{"method", ir.FnItem(runMethod), runMethod, ir.NoPromoted, graph.CallMethod},
		{"trait method", ir.FnItem(visitFn), visitFn, ir.NoPromoted, graph.CallMethod},
		{"runtime function", ir.FnItem(dropFn), dropFn, ir.NoPromoted, graph.CallFunction},
		{"third-party function", ir.FnItem(serdeFrom), serdeFrom, ir.NoPromoted, graph.CallFunction},
		{"toolchain internal", ir.FnItem(rawAlloc), rawAlloc, ir.NoPromoted, graph.CallUnknown},
		{"static", unevaluated(handler, ir.FnPtrTy(), ir.NoPromoted), handler, ir.NoPromoted, graph.CallStatic},
		{"mutable static", unevaluated(hook, ir.FnPtrTy(), ir.NoPromoted), hook, ir.NoPromoted, graph.CallStaticMut},
		{"const", unevaluated(callback, ir.FnPtrTy(), ir.NoPromoted), callback, ir.NoPromoted, graph.CallConst},
		{"promoted", unevaluated(mainFn, ir.RefTy(ir.FnPtrTy()), 2), mainFn, 2, graph.CallConst},
		{"static through pointer", pointer(ir.RefTy(ir.FnPtrTy()), handlerAlloc), handler, ir.NoPromoted, graph.CallStatic},
		{"mutable static through pointer", pointer(ir.RawPtrTy(ir.FnPtrTy(), ir.Mut), handlerAlloc), handler, ir.NoPromoted, graph.CallStaticMut},
		{"function through pointer", pointer(ir.RefTy(ir.FnDefTy(evalFn)), 0), evalFn, ir.NoPromoted, graph.CallFunction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			u := newFixtureUnit()
			r := newTestResolver(u, ir.NewBody(mainFn, 0, ir.ScalarTy()))
			args := []ir.Operand{ir.ConstOf(ir.Scalar())}

			targets, err := r.Resolve(ir.ConstOf(tt.c), args, 0)
			require.NoError(t, err)
			require.Len(t, targets, 1)
			assert.Equal(t, tt.symbol, targets[0].Symbol)
			assert.Equal(t, tt.promoted, targets[0].Promoted)
			assert.Equal(t, tt.kind, targets[0].Kind)
			assert.Equal(t, args, targets[0].Args)
		})
	}
}

func TestResolver_ClassifyRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		c    ir.Const
	}{
		{"plain scalar", ir.Scalar()},
		{"unknown symbol", ir.FnItem(ir.SymbolID{Unit: 9, Index: 9})},
		{"unevaluated function", unevaluated(parseFn, ir.FnPtrTy(), ir.NoPromoted)},
		{"unevaluated reference without promoted", unevaluated(mainFn, ir.RefTy(ir.FnPtrTy()), ir.NoPromoted)},
		{"pointer to unknown alloc", pointer(ir.RefTy(ir.FnPtrTy()), 99)},
		{"pointer to data", pointer(ir.RefTy(ir.ScalarTy()), handlerAlloc)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := newTestResolver(newFixtureUnit(), ir.NewBody(mainFn, 0, ir.ScalarTy()))
			_, err := r.Resolve(ir.ConstOf(tt.c), nil, 0)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnresolvable))
		})
	}
}

func TestResolver_CallOperator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		recvTy   ir.Ty
		recv     ir.Operand
		symbol   ir.SymbolID
		kind     graph.CallKind
		wantArgs int // arguments carried by the target
	}{
		{"constant receiver", ir.ScalarTy(), fnConst(parseFn), parseFn, graph.CallFunction, 1},
		{"function item by reference", ir.RefTy(ir.FnDefTy(evalFn)), ir.MoveOf(1), evalFn, graph.CallFunction, 1},
		{"function item by value", ir.FnDefTy(evalFn), ir.MoveOf(1), evalFn, graph.CallFunction, 1},
		{"closure", ir.RefTy(ir.ClosureTy(closureFn)), ir.MoveOf(1), closureFn, graph.CallClosure, 2},
		{"generic parameter", ir.RefTy(ir.ParamTy()), ir.MoveOf(1), ir.StaticallyUnknown, graph.CallStaticallyUnknown, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			body := ir.NewBody(mainFn, 0, ir.ScalarTy(), tt.recvTy, ir.TupleTy(ir.ScalarTy()))
			r := newTestResolver(newFixtureUnit(), body)

			targets, err := r.Resolve(fnConst(fnCall), []ir.Operand{tt.recv, ir.MoveOf(2)}, 0)
			require.NoError(t, err)
			require.Len(t, targets, 1)
			assert.Equal(t, tt.symbol, targets[0].Symbol)
			assert.Equal(t, tt.kind, targets[0].Kind)
			assert.Len(t, targets[0].Args, tt.wantArgs)
		})
	}
}

func TestResolver_CallOperatorRejects(t *testing.T) {
	t.Parallel()

	body := ir.NewBody(mainFn, 0, ir.ScalarTy(), ir.AdtTy(runMethod))
	r := newTestResolver(newFixtureUnit(), body)

	_, err := r.Resolve(fnConst(fnCall), nil, 0)
	assert.True(t, errors.Is(err, ErrUnresolvable))

	_, err = r.Resolve(fnConst(fnCall), []ir.Operand{ir.MoveOf(1)}, 0)
	assert.True(t, errors.Is(err, ErrUnresolvable))
}

func TestResolver_NoSnapshot(t *testing.T) {
	t.Parallel()

	r := newTestResolver(newFixtureUnit(), ir.NewBody(mainFn, 0, ir.ScalarTy(), ir.FnPtrTy()))
	_, err := r.Resolve(ir.CopyOf(1), nil, 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnresolvable))
}

func TestResolver_JoinAliasCycle(t *testing.T) {
	t.Parallel()

	u := newFixtureUnit()
	body := ir.NewBody(mainFn, 1, ir.ScalarTy(), ir.ScalarTy(), ir.FnPtrTy(), ir.FnPtrTy())
	body.AddBlock(ir.SwitchInt(1, 2))
	body.AddBlock(ir.Goto(3))
	body.AddBlock(ir.Goto(3))
	body.AddBlock(
		ir.Call(ir.CopyOf(2), nil, 0, 4),
		ir.Assign(2, ir.Use(ir.CopyOf(3))),
		ir.Assign(3, ir.Use(ir.CopyOf(2))),
	)
	body.AddBlock(ir.Return())

	_, err := walk(u, body)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnresolvable))
	assert.Contains(t, err.Error(), "cycle")
}

func TestResolver_UnboundLocal(t *testing.T) {
	t.Parallel()

	u := newFixtureUnit()
	body := ir.NewBody(mainFn, 0, ir.ScalarTy(), ir.FnPtrTy())
	body.AddBlock(ir.Call(ir.CopyOf(1), nil, 0, 1))
	body.AddBlock(ir.Return())

	_, err := walk(u, body)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnresolvable))
}

func TestResolver_TupleFieldIsStaticallyUnknown(t *testing.T) {
	t.Parallel()

	u := newFixtureUnit()
	body := ir.NewBody(closureFn, 1, ir.ScalarTy(), ir.TupleTy(ir.FnPtrTy()), ir.FnPtrTy())
	body.AddBlock(ir.Call(ir.CopyOf(2), nil, 0, 1), ir.Assign(2, ir.Use(ir.CopyOf(1))))
	body.AddBlock(ir.Return())

	g, err := walk(u, body)
	require.NoError(t, err)
	assert.Equal(t, []string{"app::main::{closure#0} -> STATICALLY_UNKNOWN (statically_unknown)"}, edgeList(g))
}
