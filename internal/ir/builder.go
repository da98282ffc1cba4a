package ir

// NewBody creates a function body. Slot i is declared with types[i]; slot 0 is
// the return slot.
func NewBody(owner SymbolID, argCount int, types ...Ty) *Body {
	locals := make([]LocalDecl, len(types))
	for i, ty := range types {
		locals[i] = LocalDecl{Ty: ty}
	}
	return &Body{Owner: owner, Promoted: NoPromoted, ArgCount: argCount, Locals: locals}
}

// NewPromotedBody creates the body of a promoted constant owned by owner.
func NewPromotedBody(owner SymbolID, promoted Promoted, types ...Ty) *Body {
	b := NewBody(owner, 0, types...)
	b.Promoted = promoted
	return b
}

// AddBlock appends a block and returns its id.
func (b *Body) AddBlock(term Terminator, stmts ...Statement) BlockID {
	b.Blocks = append(b.Blocks, Block{Statements: stmts, Terminator: term})
	return BlockID(len(b.Blocks) - 1)
}

// Type constructors.

func ScalarTy() Ty                      { return Ty{Kind: TyScalar} }
func FnDefTy(sym SymbolID) Ty           { return Ty{Kind: TyFnDef, Symbol: sym} }
func FnPtrTy() Ty                       { return Ty{Kind: TyFnPtr} }
func ClosureTy(sym SymbolID) Ty         { return Ty{Kind: TyClosure, Symbol: sym} }
func ParamTy() Ty                       { return Ty{Kind: TyParam} }
func AdtTy(sym SymbolID) Ty             { return Ty{Kind: TyAdt, Symbol: sym} }
func TupleTy(elems ...Ty) Ty            { return Ty{Kind: TyTuple, Elems: elems} }
func RefTy(elem Ty) Ty                  { return Ty{Kind: TyRef, Elem: &elem} }
func RefMutTy(elem Ty) Ty               { return Ty{Kind: TyRef, Elem: &elem, Mutability: Mut} }
func RawPtrTy(elem Ty, m Mutability) Ty { return Ty{Kind: TyRawPtr, Elem: &elem, Mutability: m} }
