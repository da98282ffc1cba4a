package ir

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SymbolID identifies a definition (function, closure, static, const, trait, impl).
// Unit is the producer's unit-local numbering of the owning unit and is not stable
// across units; Index is the definition's index within that unit.
type SymbolID struct {
	Unit  uint32
	Index uint32
}

// StaticallyUnknown is the dummy symbol targeted by calls whose callee cannot be
// known without running the program (function parameters, returned function pointers).
var StaticallyUnknown = SymbolID{Unit: math.MaxUint32, Index: math.MaxUint32}

// IsStaticallyUnknown reports whether s is the dummy symbol.
func (s SymbolID) IsStaticallyUnknown() bool {
	return s == StaticallyUnknown
}

// String renders "unit:index".
func (s SymbolID) String() string {
	return fmt.Sprintf("%d:%d", s.Unit, s.Index)
}

// MarshalText implements encoding.TextMarshaler so SymbolID can be a JSON map key.
func (s SymbolID) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses "unit:index".
func (s *SymbolID) UnmarshalText(text []byte) error {
	parts := strings.Split(string(text), ":")
	if len(parts) != 2 {
		return fmt.Errorf("invalid symbol id %q", text)
	}
	unit, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid symbol unit %q: %w", parts[0], err)
	}
	index, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid symbol index %q: %w", parts[1], err)
	}
	s.Unit, s.Index = uint32(unit), uint32(index)
	return nil
}

// Promoted is the id of a promoted constant owned by a function body.
type Promoted uint32

// NoPromoted marks a body or reference that is not a promoted constant.
const NoPromoted Promoted = math.MaxUint32

// IsSet reports whether p names a promoted constant.
func (p Promoted) IsSet() bool {
	return p != NoPromoted
}

// String renders the promoted id, or "None".
func (p Promoted) String() string {
	if !p.IsSet() {
		return "None"
	}
	return fmt.Sprintf("promoted[%d]", uint32(p))
}

// Local is a slot index inside one body. Slot 0 is the return slot and
// slots 1..ArgCount are the parameters.
type Local uint32

func (l Local) String() string {
	return "_" + strconv.FormatUint(uint64(l), 10)
}

// BlockID is a basic block index inside one body.
type BlockID uint32

func (b BlockID) String() string {
	return "bb" + strconv.FormatUint(uint64(b), 10)
}

// AllocID identifies a global allocation (the memory backing a static).
type AllocID uint32

// Mutability of a slot, reference, raw pointer or static.
type Mutability uint8

const (
	Not Mutability = iota
	Mut
)

var mutabilityNames = []string{"not", "mut"}

func (m Mutability) String() string { return enumString(m, mutabilityNames) }

func (m Mutability) MarshalText() ([]byte, error) {
	return marshalEnum(m, mutabilityNames, "mutability")
}

func (m *Mutability) UnmarshalText(text []byte) error {
	return unmarshalEnum(text, mutabilityNames, "mutability", m)
}

// TyKind is the coarse shape of a type; only the shapes the resolver needs are distinguished.
type TyKind uint8

const (
	TyOther TyKind = iota
	TyScalar
	TyFnDef   // zero-sized function item type; Symbol names the function
	TyFnPtr   // function pointer
	TyClosure // closure type; Symbol names the closure
	TyRef     // reference to Elem
	TyRawPtr  // raw pointer to Elem
	TyParam   // unresolved generic parameter
	TyTuple
	TyAdt
)

var tyKindNames = []string{"other", "scalar", "fn_def", "fn_ptr", "closure", "ref", "raw_ptr", "param", "tuple", "adt"}

func (k TyKind) String() string { return enumString(k, tyKindNames) }

func (k TyKind) MarshalText() ([]byte, error) { return marshalEnum(k, tyKindNames, "type kind") }

func (k *TyKind) UnmarshalText(text []byte) error {
	return unmarshalEnum(text, tyKindNames, "type kind", k)
}

// Ty is a declared type.
type Ty struct {
	Kind       TyKind     `json:"kind"`
	Symbol     SymbolID   `json:"symbol,omitempty"`     // FnDef, Closure, Adt
	Elem       *Ty        `json:"elem,omitempty"`       // Ref, RawPtr
	Mutability Mutability `json:"mutability,omitempty"` // Ref, RawPtr
	Elems      []Ty       `json:"elems,omitempty"`      // Tuple
}

// Pointee returns the referenced type of a Ref or RawPtr, or t itself.
func (t Ty) Pointee() Ty {
	if (t.Kind == TyRef || t.Kind == TyRawPtr) && t.Elem != nil {
		return *t.Elem
	}
	return t
}

func (t Ty) String() string {
	switch t.Kind {
	case TyFnDef, TyClosure, TyAdt:
		return fmt.Sprintf("%s(%s)", t.Kind, t.Symbol)
	case TyRef, TyRawPtr:
		if t.Elem == nil {
			return t.Kind.String()
		}
		return fmt.Sprintf("%s %s %s", t.Kind, t.Mutability, t.Elem)
	case TyTuple:
		return fmt.Sprintf("tuple/%d", len(t.Elems))
	default:
		return t.Kind.String()
	}
}

// DefKind is the definition kind of a symbol.
type DefKind uint8

const (
	DefOther DefKind = iota
	DefFn
	DefAssocFn
	DefClosure
	DefStatic
	DefConst
	DefTrait
	DefImpl
)

var defKindNames = []string{"other", "fn", "assoc_fn", "closure", "static", "const", "trait", "impl"}

func (k DefKind) String() string { return enumString(k, defKindNames) }

func (k DefKind) MarshalText() ([]byte, error) { return marshalEnum(k, defKindNames, "def kind") }

func (k *DefKind) UnmarshalText(text []byte) error {
	return unmarshalEnum(text, defKindNames, "def kind", k)
}

// SymbolInfo is what the producer knows about a symbol.
type SymbolInfo struct {
	ID                 SymbolID  `json:"id"`
	Path               string    `json:"path"`                           // Display path, e.g. "app::parse"
	UnitName           string    `json:"unit_name"`                      // Owning unit
	Local              bool      `json:"local,omitempty"`                // Defined in the unit being analyzed
	Kind               DefKind   `json:"kind"`                           // Definition kind
	ClosureLike        bool      `json:"closure_like,omitempty"`         // Closures and coroutines
	HasSelf            bool      `json:"has_self,omitempty"`             // Associated fn with a receiver
	Trait              *SymbolID `json:"trait,omitempty"`                // Owning trait of a trait item
	ConstDefaultMethod bool      `json:"const_default_method,omitempty"` // Const default method of a trait
	ImplTraitTys       bool      `json:"impl_trait_tys,omitempty"`       // Impl method with associated trait types
	Mutable            bool      `json:"mutable,omitempty"`              // Statics only
	File               string    `json:"file,omitempty"`                 // Source file of the definition
}
