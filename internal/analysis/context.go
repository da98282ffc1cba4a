package analysis

import (
	"fmt"
	"maps"

	"github.com/mvp-joe/linkgraph/internal/ir"
)

// ValueKind is the kind of value bound to a slot.
type ValueKind uint8

const (
	ValueRvalue        ValueKind = iota // bound by an assignment
	ValueCall                           // result of a call to a function, method or closure
	ValueCallClone                      // result of a clone; Cloned holds the cloned operand
	ValueCallConst                      // result of calling a const item
	ValueCallStatic                     // result of calling through a static
	ValueCallStaticMut                  // result of calling through a mutable static
)

var valueKindNames = []string{"rvalue", "call", "call_clone", "call_const", "call_static", "call_static_mut"}

func (k ValueKind) String() string {
	if int(k) < len(valueKindNames) {
		return valueKindNames[k]
	}
	return fmt.Sprintf("value(%d)", uint8(k))
}

// Value is the last thing bound to a slot.
type Value struct {
	Kind   ValueKind
	Rvalue ir.Rvalue   // ValueRvalue
	Callee ir.SymbolID // call sentinels
	Cloned ir.Operand  // ValueCallClone
}

func (v Value) String() string {
	switch v.Kind {
	case ValueRvalue:
		return v.Rvalue.String()
	case ValueCallClone:
		return fmt.Sprintf("%s(%s)", v.Kind, v.Cloned)
	default:
		return fmt.Sprintf("%s(%s)", v.Kind, v.Callee)
	}
}

// Bindings maps slots to their last bound value. Slots are never removed:
// a dead slot keeps its binding so later lookups can still follow it.
type Bindings map[ir.Local]Value

// switchEntry replays the bindings active at a SwitchInt into each of its
// targets. It is popped once every target has been entered.
type switchEntry struct {
	saved   Bindings
	pending map[ir.BlockID]struct{}
}

// Context is the flow state of one function body.
type Context struct {
	body  *ir.Body
	block ir.BlockID

	preds    map[ir.BlockID][]ir.BlockID
	switches []switchEntry
	bindings Bindings
	history  map[ir.BlockID]Bindings
	used     map[ir.BlockID]map[ir.Local]struct{}
}

// NewContext creates the state for walking body.
func NewContext(body *ir.Body) *Context {
	return &Context{
		body:     body,
		preds:    make(map[ir.BlockID][]ir.BlockID),
		bindings: make(Bindings),
		history:  make(map[ir.BlockID]Bindings),
		used:     make(map[ir.BlockID]map[ir.Local]struct{}),
	}
}

// Body returns the body being walked.
func (c *Context) Body() *ir.Body { return c.body }

// Block returns the block being visited.
func (c *Context) Block() ir.BlockID { return c.block }

// EnterBlock makes bb current. It records the slots assigned in bb and, if bb is
// a pending target of a switch, restores the bindings saved by the innermost
// such switch. Switches with no pending targets left are dropped.
func (c *Context) EnterBlock(bb ir.BlockID, block ir.Block) {
	c.block = bb

	assigned := make(map[ir.Local]struct{})
	for _, stmt := range block.Statements {
		if stmt.Kind == ir.StmtAssign {
			assigned[stmt.Local] = struct{}{}
		}
	}
	c.used[bb] = assigned

	for i := len(c.switches) - 1; i >= 0; i-- {
		entry := &c.switches[i]
		if _, ok := entry.pending[bb]; ok {
			c.bindings = maps.Clone(entry.saved)
			delete(entry.pending, bb)
			break
		}
	}

	live := c.switches[:0]
	for _, entry := range c.switches {
		if len(entry.pending) > 0 {
			live = append(live, entry)
		}
	}
	c.switches = live
}

// Bind records v as the value of slot l.
func (c *Context) Bind(l ir.Local, v Value) {
	c.bindings[l] = v
}

// Binding returns the live binding of l.
func (c *Context) Binding(l ir.Local) (Value, bool) {
	v, ok := c.bindings[l]
	return v, ok
}

// SaveBlock snapshots the live bindings as the state of the current block.
// It runs before a call is resolved and again when the block ends.
func (c *Context) SaveBlock() {
	c.history[c.block] = maps.Clone(c.bindings)
}

// Snapshot returns the bindings saved for bb.
func (c *Context) Snapshot(bb ir.BlockID) (Bindings, bool) {
	s, ok := c.history[bb]
	return s, ok
}

// AddPredecessor records the current block as a predecessor of target.
func (c *Context) AddPredecessor(target ir.BlockID) {
	c.preds[target] = append(c.preds[target], c.block)
}

// Predecessors returns the recorded predecessors of bb.
func (c *Context) Predecessors(bb ir.BlockID) []ir.BlockID {
	return c.preds[bb]
}

// PushSwitch saves the live bindings for replay into each of targets.
func (c *Context) PushSwitch(targets []ir.BlockID) {
	pending := make(map[ir.BlockID]struct{}, len(targets))
	for _, t := range targets {
		pending[t] = struct{}{}
	}
	if len(pending) == 0 {
		return
	}
	c.switches = append(c.switches, switchEntry{saved: maps.Clone(c.bindings), pending: pending})
}

// SwitchDepth returns the number of switches whose targets are not all entered.
func (c *Context) SwitchDepth() int { return len(c.switches) }

// Assigned returns the slots assigned by statements of bb.
func (c *Context) Assigned(bb ir.BlockID) map[ir.Local]struct{} {
	return c.used[bb]
}

// Decl returns the declaration of slot l. Out-of-range slots read as an
// immutable slot of unknown type.
func (c *Context) Decl(l ir.Local) ir.LocalDecl {
	if int(l) < len(c.body.Locals) {
		return c.body.Locals[l]
	}
	return ir.LocalDecl{Ty: ir.Ty{Kind: ir.TyOther}}
}

// SlotTy returns the declared type of slot l.
func (c *Context) SlotTy(l ir.Local) ir.Ty {
	return c.Decl(l).Ty
}
