package ir

import "sort"

// Program is the read-only view of one compilation unit supplied by the IR producer.
type Program interface {
	// Name returns the unit name.
	Name() string

	// Bodies returns every function body of the unit, promoted constants excluded,
	// in a deterministic order.
	Bodies() []*Body

	// Body returns the body of a function defined in this unit.
	Body(sym SymbolID) (*Body, bool)

	// Promoted returns the promoted-constant bodies owned by a function.
	Promoted(owner SymbolID) []*Body

	// Symbol returns what is known about a symbol, local or external.
	Symbol(sym SymbolID) (SymbolInfo, bool)

	// TraitItems returns the associated items of a trait in definition order.
	TraitItems(trait SymbolID) []SymbolID

	// Alloc resolves the static a global allocation denotes.
	Alloc(id AllocID) (SymbolID, bool)
}

// Unit is an in-memory Program.
type Unit struct {
	name     string
	symbols  map[SymbolID]SymbolInfo
	bodies   []*Body
	promoted map[SymbolID][]*Body
	traits   map[SymbolID][]SymbolID
	allocs   map[AllocID]SymbolID
	invalid  []error // Bodies dropped while decoding
}

var _ Program = (*Unit)(nil)

// NewUnit creates an empty unit.
func NewUnit(name string) *Unit {
	return &Unit{
		name:     name,
		symbols:  make(map[SymbolID]SymbolInfo),
		promoted: make(map[SymbolID][]*Body),
		traits:   make(map[SymbolID][]SymbolID),
		allocs:   make(map[AllocID]SymbolID),
	}
}

// AddSymbol registers or replaces a symbol.
func (u *Unit) AddSymbol(info SymbolInfo) {
	u.symbols[info.ID] = info
}

// AddBody registers a function body or, when b.Promoted is set, a promoted constant.
func (u *Unit) AddBody(b *Body) {
	if b.Promoted.IsSet() {
		u.promoted[b.Owner] = append(u.promoted[b.Owner], b)
		return
	}
	u.bodies = append(u.bodies, b)
}

// InvalidBodies returns the validation errors of bodies left out of the unit
// when it was decoded.
func (u *Unit) InvalidBodies() []error {
	return u.invalid
}

// AddTraitItems appends associated items to a trait.
func (u *Unit) AddTraitItems(trait SymbolID, items ...SymbolID) {
	u.traits[trait] = append(u.traits[trait], items...)
}

// AddAlloc records that an allocation backs a static.
func (u *Unit) AddAlloc(id AllocID, static SymbolID) {
	u.allocs[id] = static
}

func (u *Unit) Name() string { return u.name }

func (u *Unit) Bodies() []*Body {
	out := make([]*Body, len(u.bodies))
	copy(out, u.bodies)
	return out
}

func (u *Unit) Body(sym SymbolID) (*Body, bool) {
	for _, b := range u.bodies {
		if b.Owner == sym {
			return b, true
		}
	}
	return nil, false
}

func (u *Unit) Promoted(owner SymbolID) []*Body {
	return u.promoted[owner]
}

func (u *Unit) Symbol(sym SymbolID) (SymbolInfo, bool) {
	info, ok := u.symbols[sym]
	return info, ok
}

func (u *Unit) TraitItems(trait SymbolID) []SymbolID {
	return u.traits[trait]
}

func (u *Unit) Alloc(id AllocID) (SymbolID, bool) {
	sym, ok := u.allocs[id]
	return sym, ok
}

// Symbols returns all registered symbols ordered by id.
func (u *Unit) Symbols() []SymbolInfo {
	out := make([]SymbolInfo, 0, len(u.symbols))
	for _, info := range u.symbols {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ID.Unit != out[j].ID.Unit {
			return out[i].ID.Unit < out[j].ID.Unit
		}
		return out[i].ID.Index < out[j].ID.Index
	})
	return out
}
