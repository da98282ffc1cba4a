package analysis

import (
	"fmt"
	"sort"

	"github.com/mvp-joe/linkgraph/internal/graph"
	"github.com/mvp-joe/linkgraph/internal/ir"
)

// Symbols of the fixture unit "app" (unit 0) and the externals it calls.
var (
	mainFn    = ir.SymbolID{Unit: 0, Index: 1}
	parseFn   = ir.SymbolID{Unit: 0, Index: 2}
	evalFn    = ir.SymbolID{Unit: 0, Index: 3}
	closureFn = ir.SymbolID{Unit: 0, Index: 4}
	runMethod = ir.SymbolID{Unit: 0, Index: 5}
	handler   = ir.SymbolID{Unit: 0, Index: 6}
	hook      = ir.SymbolID{Unit: 0, Index: 7}
	callback  = ir.SymbolID{Unit: 0, Index: 8}
	visitor   = ir.SymbolID{Unit: 0, Index: 9}
	visitFn   = ir.SymbolID{Unit: 0, Index: 10}
	applyFn   = ir.SymbolID{Unit: 0, Index: 11}

	cloneFn   = ir.SymbolID{Unit: 1, Index: 1}
	fnCall    = ir.SymbolID{Unit: 1, Index: 2}
	dropFn    = ir.SymbolID{Unit: 1, Index: 3}
	rawAlloc  = ir.SymbolID{Unit: 2, Index: 1}
	serdeFrom = ir.SymbolID{Unit: 3, Index: 1}
)

const handlerAlloc ir.AllocID = 7

// newFixtureUnit returns unit "app" with every fixture symbol registered and no bodies.
func newFixtureUnit() *ir.Unit {
	u := ir.NewUnit("app")
	local := func(id ir.SymbolID, path string, kind ir.DefKind, file string) ir.SymbolInfo {
		return ir.SymbolInfo{ID: id, Path: path, UnitName: "app", Local: true, Kind: kind, File: file}
	}

	u.AddSymbol(local(mainFn, "app::main", ir.DefFn, "src/main.rs"))
	u.AddSymbol(local(parseFn, "app::parse", ir.DefFn, "src/parse.rs"))
	u.AddSymbol(local(evalFn, "app::eval", ir.DefFn, "src/eval/mod.rs"))
	u.AddSymbol(local(applyFn, "app::apply", ir.DefFn, "src/main.rs"))

	c := local(closureFn, "app::main::{closure#0}", ir.DefClosure, "src/main.rs")
	c.ClosureLike = true
	u.AddSymbol(c)

	run := local(runMethod, "app::Parser::run", ir.DefAssocFn, "src/parse.rs")
	run.HasSelf = true
	u.AddSymbol(run)

	u.AddSymbol(local(handler, "app::HANDLER", ir.DefStatic, "src/main.rs"))
	h := local(hook, "app::HOOK", ir.DefStatic, "src/main.rs")
	h.Mutable = true
	u.AddSymbol(h)
	u.AddSymbol(local(callback, "app::CALLBACK", ir.DefConst, "src/main.rs"))
	u.AddAlloc(handlerAlloc, handler)

	u.AddSymbol(local(visitor, "app::Visitor", ir.DefTrait, "src/visit.rs"))
	v := local(visitFn, "app::Visitor::visit", ir.DefFn, "src/visit.rs")
	v.Local = false
	v.UnitName = "std"
	v.HasSelf = true
	v.Trait = &visitor
	u.AddSymbol(v)
	u.AddTraitItems(visitor, visitFn)

	u.AddSymbol(ir.SymbolInfo{ID: cloneFn, Path: "std::clone::Clone::clone", UnitName: "std", Kind: ir.DefAssocFn, HasSelf: true})
	u.AddSymbol(ir.SymbolInfo{ID: fnCall, Path: "std::ops::Fn::call", UnitName: "std", Kind: ir.DefAssocFn, HasSelf: true})
	u.AddSymbol(ir.SymbolInfo{ID: dropFn, Path: "core::mem::drop", UnitName: "core", Kind: ir.DefFn})
	u.AddSymbol(ir.SymbolInfo{ID: rawAlloc, Path: "hashbrown::raw::alloc", UnitName: "hashbrown", Kind: ir.DefFn})
	u.AddSymbol(ir.SymbolInfo{ID: serdeFrom, Path: "serde::from_str", UnitName: "serde", Kind: ir.DefFn})
	return u
}

func fnConst(sym ir.SymbolID) ir.Operand {
	return ir.ConstOf(ir.FnItem(sym))
}

// walk runs a single body through a fresh walker with default options.
func walk(u *ir.Unit, body *ir.Body) (*graph.Graph, error) {
	g := graph.New(u.Name())
	w := NewWalker(u, g, DefaultClassifierConfig(), DefaultWeightConfig())
	return g, w.WalkBody(body)
}

// edgeList renders edges as "caller -> callee (kind)", sorted.
func edgeList(g *graph.Graph) []string {
	out := make([]string, 0, g.EdgeCount())
	for _, e := range g.Edges() {
		out = append(out, fmt.Sprintf("%s -> %s (%s)", g.Node(e.From), g.Node(e.To), e.Kind))
	}
	sort.Strings(out)
	return out
}
