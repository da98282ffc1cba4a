package ir

import (
	"encoding/json"
	"fmt"
)

// OperandKind says how a value is used: moved out of a slot, copied, or a constant.
type OperandKind uint8

const (
	Move OperandKind = iota
	Copy
	Constant
)

var operandKindNames = []string{"move", "copy", "constant"}

func (k OperandKind) String() string { return enumString(k, operandKindNames) }

func (k OperandKind) MarshalText() ([]byte, error) {
	return marshalEnum(k, operandKindNames, "operand kind")
}

func (k *OperandKind) UnmarshalText(text []byte) error {
	return unmarshalEnum(text, operandKindNames, "operand kind", k)
}

// Operand is a value use.
type Operand struct {
	Kind  OperandKind `json:"kind"`
	Local Local       `json:"local,omitempty"` // Move, Copy
	Const *Const      `json:"const,omitempty"` // Constant
}

// IsPlace reports whether the operand reads a slot.
func (o Operand) IsPlace() bool {
	return o.Kind == Move || o.Kind == Copy
}

func (o Operand) String() string {
	switch o.Kind {
	case Move, Copy:
		return fmt.Sprintf("%s %s", o.Kind, o.Local)
	default:
		if o.Const == nil {
			return "const ?"
		}
		return "const " + o.Const.String()
	}
}

// MoveOf builds a Move operand.
func MoveOf(l Local) Operand { return Operand{Kind: Move, Local: l} }

// CopyOf builds a Copy operand.
func CopyOf(l Local) Operand { return Operand{Kind: Copy, Local: l} }

// ConstOf builds a Constant operand.
func ConstOf(c Const) Operand { return Operand{Kind: Constant, Const: &c} }

// ConstKind distinguishes evaluated constant values from references to items.
type ConstKind uint8

const (
	ConstScalar      ConstKind = iota // plain data value
	ConstZeroSized                    // zero-sized value: function items, empty tuples
	ConstPointer                      // pointer into a global allocation
	ConstUnevaluated                  // reference to a const or static item, possibly promoted
)

var constKindNames = []string{"scalar", "zero_sized", "pointer", "unevaluated"}

func (k ConstKind) String() string { return enumString(k, constKindNames) }

func (k ConstKind) MarshalText() ([]byte, error) { return marshalEnum(k, constKindNames, "const kind") }

func (k *ConstKind) UnmarshalText(text []byte) error {
	return unmarshalEnum(text, constKindNames, "const kind", k)
}

// Const is a constant operand value together with its type.
type Const struct {
	Kind     ConstKind `json:"kind"`
	Ty       Ty        `json:"ty"`
	Def      SymbolID  `json:"def,omitempty"`   // Unevaluated: the const or static item
	Promoted Promoted  `json:"promoted"`        // Unevaluated: promoted id, NoPromoted if none
	Alloc    AllocID   `json:"alloc,omitempty"` // Pointer
}

// UnmarshalJSON defaults Promoted to NoPromoted when the field is absent.
func (c *Const) UnmarshalJSON(data []byte) error {
	type plain Const
	p := plain{Promoted: NoPromoted}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = Const(p)
	return nil
}

func (c Const) String() string {
	switch c.Kind {
	case ConstUnevaluated:
		if c.Promoted.IsSet() {
			return fmt.Sprintf("%s::%s: %s", c.Def, c.Promoted, c.Ty)
		}
		return fmt.Sprintf("%s: %s", c.Def, c.Ty)
	case ConstPointer:
		return fmt.Sprintf("alloc%d: %s", c.Alloc, c.Ty)
	default:
		return fmt.Sprintf("%s: %s", c.Kind, c.Ty)
	}
}

// FnItem is the zero-sized constant naming a function.
func FnItem(sym SymbolID) Const {
	return Const{Kind: ConstZeroSized, Ty: Ty{Kind: TyFnDef, Symbol: sym}, Promoted: NoPromoted}
}

// EmptyTuple is the zero-sized () constant.
func EmptyTuple() Const {
	return Const{Kind: ConstZeroSized, Ty: Ty{Kind: TyTuple}, Promoted: NoPromoted}
}

// Scalar is a plain data constant.
func Scalar() Const {
	return Const{Kind: ConstScalar, Ty: Ty{Kind: TyScalar}, Promoted: NoPromoted}
}

// RvalueKind is the shape of the right-hand side of an assignment.
type RvalueKind uint8

const (
	RvalueUse RvalueKind = iota
	RvalueRef
	RvalueCast
	RvalueAggregate
	RvalueCopyForDeref
	RvalueOpaque // any other expression form
)

var rvalueKindNames = []string{"use", "ref", "cast", "aggregate", "copy_for_deref", "opaque"}

func (k RvalueKind) String() string { return enumString(k, rvalueKindNames) }

func (k RvalueKind) MarshalText() ([]byte, error) {
	return marshalEnum(k, rvalueKindNames, "rvalue kind")
}

func (k *RvalueKind) UnmarshalText(text []byte) error {
	return unmarshalEnum(text, rvalueKindNames, "rvalue kind", k)
}

// AggregateKind is the kind of value an aggregate rvalue builds.
type AggregateKind uint8

const (
	AggregateTuple AggregateKind = iota
	AggregateAdt
	AggregateClosure
	AggregateArray
	AggregateOther
)

var aggregateKindNames = []string{"tuple", "adt", "closure", "array", "other"}

func (k AggregateKind) String() string { return enumString(k, aggregateKindNames) }

func (k AggregateKind) MarshalText() ([]byte, error) {
	return marshalEnum(k, aggregateKindNames, "aggregate kind")
}

func (k *AggregateKind) UnmarshalText(text []byte) error {
	return unmarshalEnum(text, aggregateKindNames, "aggregate kind", k)
}

// Rvalue is the value descriptor bound to a slot by an assignment.
type Rvalue struct {
	Kind       RvalueKind    `json:"kind"`
	Operand    Operand       `json:"operand"`              // Use, Cast
	Place      Local         `json:"place,omitempty"`      // Ref, CopyForDeref
	Mutability Mutability    `json:"mutability,omitempty"` // Ref
	Aggregate  AggregateKind `json:"aggregate,omitempty"`  // Aggregate
	Elements   []Operand     `json:"elements,omitempty"`   // Aggregate
	Ty         *Ty           `json:"ty,omitempty"`         // Cast target
	Text       string        `json:"text,omitempty"`       // Opaque, for printing only
}

func (r Rvalue) String() string {
	switch r.Kind {
	case RvalueUse:
		return r.Operand.String()
	case RvalueRef:
		if r.Mutability == Mut {
			return "&mut " + r.Place.String()
		}
		return "&" + r.Place.String()
	case RvalueCast:
		return fmt.Sprintf("%s as %v", r.Operand, r.Ty)
	case RvalueAggregate:
		return fmt.Sprintf("%s%v", r.Aggregate, r.Elements)
	case RvalueCopyForDeref:
		return "deref_copy " + r.Place.String()
	default:
		if r.Text != "" {
			return r.Text
		}
		return "opaque"
	}
}

// Use builds Use(op).
func Use(op Operand) Rvalue { return Rvalue{Kind: RvalueUse, Operand: op} }

// Ref builds &place.
func Ref(place Local) Rvalue { return Rvalue{Kind: RvalueRef, Place: place} }

// Cast builds `op as ty`.
func Cast(op Operand, ty Ty) Rvalue { return Rvalue{Kind: RvalueCast, Operand: op, Ty: &ty} }

// Tuple builds a tuple aggregate.
func Tuple(elems ...Operand) Rvalue {
	return Rvalue{Kind: RvalueAggregate, Aggregate: AggregateTuple, Elements: elems}
}

// StatementKind is the kind of a statement.
type StatementKind uint8

const (
	StmtAssign StatementKind = iota
	StmtStorageLive
	StmtStorageDead
	StmtNop
)

var statementKindNames = []string{"assign", "storage_live", "storage_dead", "nop"}

func (k StatementKind) String() string { return enumString(k, statementKindNames) }

func (k StatementKind) MarshalText() ([]byte, error) {
	return marshalEnum(k, statementKindNames, "statement kind")
}

func (k *StatementKind) UnmarshalText(text []byte) error {
	return unmarshalEnum(text, statementKindNames, "statement kind", k)
}

// Statement is one statement of a basic block.
type Statement struct {
	Kind   StatementKind `json:"kind"`
	Local  Local         `json:"local"`            // assigned or storage-marked slot
	Rvalue *Rvalue       `json:"rvalue,omitempty"` // Assign
}

func (s Statement) String() string {
	switch s.Kind {
	case StmtAssign:
		if s.Rvalue == nil {
			return s.Local.String() + " = ?"
		}
		return fmt.Sprintf("%s = %s", s.Local, s.Rvalue)
	case StmtStorageLive:
		return fmt.Sprintf("StorageLive(%s)", s.Local)
	case StmtStorageDead:
		return fmt.Sprintf("StorageDead(%s)", s.Local)
	default:
		return "nop"
	}
}

// Assign builds `local = rv`.
func Assign(local Local, rv Rvalue) Statement {
	return Statement{Kind: StmtAssign, Local: local, Rvalue: &rv}
}

// TerminatorKind is the kind of a block terminator.
type TerminatorKind uint8

const (
	TermCall TerminatorKind = iota
	TermSwitchInt
	TermGoto
	TermDrop
	TermAssert
	TermFalseEdge
	TermFalseUnwind
	TermReturn
	TermUnreachable
	TermUnwindResume
	TermYield
	TermInlineAsm
	TermTailCall
)

var terminatorKindNames = []string{
	"call", "switch_int", "goto", "drop", "assert", "false_edge", "false_unwind",
	"return", "unreachable", "unwind_resume", "yield", "inline_asm", "tail_call",
}

func (k TerminatorKind) String() string { return enumString(k, terminatorKindNames) }

func (k TerminatorKind) MarshalText() ([]byte, error) {
	return marshalEnum(k, terminatorKindNames, "terminator kind")
}

func (k *TerminatorKind) UnmarshalText(text []byte) error {
	return unmarshalEnum(text, terminatorKindNames, "terminator kind", k)
}

// Terminator ends a basic block.
//
// Targets holds the successor blocks: the continuation of a Call (empty when the
// call diverges), every arm of a SwitchInt including the otherwise arm, and the
// single real target of Goto, Drop, Assert, FalseEdge and FalseUnwind.
type Terminator struct {
	Kind        TerminatorKind `json:"kind"`
	Func        Operand        `json:"func"`                  // Call
	Args        []Operand      `json:"args,omitempty"`        // Call
	Destination Local          `json:"destination,omitempty"` // Call
	Targets     []BlockID      `json:"targets,omitempty"`
}

func (t Terminator) String() string {
	if t.Kind == TermCall {
		return fmt.Sprintf("%s = %s(%v) -> %v", t.Destination, t.Func, t.Args, t.Targets)
	}
	return fmt.Sprintf("%s -> %v", t.Kind, t.Targets)
}

// Call builds a call terminator.
func Call(fn Operand, args []Operand, dest Local, next ...BlockID) Terminator {
	return Terminator{Kind: TermCall, Func: fn, Args: args, Destination: dest, Targets: next}
}

// Goto builds a goto terminator.
func Goto(target BlockID) Terminator {
	return Terminator{Kind: TermGoto, Targets: []BlockID{target}}
}

// SwitchInt builds a multi-way branch.
func SwitchInt(targets ...BlockID) Terminator {
	return Terminator{Kind: TermSwitchInt, Targets: targets}
}

// Return builds a return terminator.
func Return() Terminator {
	return Terminator{Kind: TermReturn}
}

// Block is a basic block.
type Block struct {
	Statements []Statement `json:"statements,omitempty"`
	Terminator Terminator  `json:"terminator"`
}

// LocalDecl is the declaration of a slot.
type LocalDecl struct {
	Ty         Ty         `json:"ty"`
	Mutability Mutability `json:"mutability,omitempty"`
}

// Body is the control-flow graph of one function or promoted constant.
type Body struct {
	Owner    SymbolID    `json:"owner"`
	Promoted Promoted    `json:"promoted"`
	ArgCount int         `json:"arg_count"`
	Locals   []LocalDecl `json:"locals"`
	Blocks   []Block     `json:"blocks"`
}

// UnmarshalJSON defaults Promoted to NoPromoted when the field is absent.
func (b *Body) UnmarshalJSON(data []byte) error {
	type plain Body
	p := plain{Promoted: NoPromoted}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*b = Body(p)
	return nil
}

// IsParam reports whether l is one of the body's parameter slots.
func (b *Body) IsParam(l Local) bool {
	return l >= 1 && int(l) <= b.ArgCount
}

// String renders a compact textual form of the body, one line per statement.
func (b *Body) String() string {
	out := fmt.Sprintf("fn %s", b.Owner)
	if b.Promoted.IsSet() {
		out += "::" + b.Promoted.String()
	}
	out += " {\n"
	for i, decl := range b.Locals {
		out += fmt.Sprintf("    let %s: %s;\n", Local(i), decl.Ty)
	}
	for i, block := range b.Blocks {
		out += fmt.Sprintf("    %s: {\n", BlockID(i))
		for _, stmt := range block.Statements {
			out += "        " + stmt.String() + ";\n"
		}
		out += "        " + block.Terminator.String() + ";\n    }\n"
	}
	return out + "}\n"
}
