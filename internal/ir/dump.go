package ir

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// DumpExt is the file extension of a unit IR dump.
	DumpExt = ".ir.json"
	// DumpVersion is the current version of the dump format.
	DumpVersion = "1.0"
)

// unitFile is the on-disk form of a unit.
type unitFile struct {
	Version     string                  `json:"version"`
	Name        string                  `json:"name"`
	Symbols     []SymbolInfo            `json:"symbols"`
	Allocs      map[AllocID]SymbolID    `json:"allocs,omitempty"`
	Traits      map[SymbolID][]SymbolID `json:"traits,omitempty"`
	Bodies      []*Body                 `json:"bodies"`
	Unoptimized []*Body                 `json:"unoptimized_bodies,omitempty"` // Bodies before optimization passes
}

// Decode reads a unit dump. When unoptimized is set and the dump carries
// unoptimized bodies, those are used instead of the optimized ones.
// A body that fails validation is left out and reported by InvalidBodies;
// the rest of the unit still loads.
func Decode(r io.Reader, unoptimized bool) (*Unit, error) {
	var f unitFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse IR dump: %w", err)
	}
	if f.Name == "" {
		return nil, fmt.Errorf("IR dump has no unit name")
	}

	u := NewUnit(f.Name)
	for _, info := range f.Symbols {
		u.AddSymbol(info)
	}
	for id, sym := range f.Allocs {
		u.AddAlloc(id, sym)
	}
	for trait, items := range f.Traits {
		u.AddTraitItems(trait, items...)
	}

	bodies := f.Bodies
	if unoptimized && len(f.Unoptimized) > 0 {
		bodies = f.Unoptimized
	}
	for _, b := range bodies {
		if err := b.Validate(); err != nil {
			u.invalid = append(u.invalid, err)
			continue
		}
		u.AddBody(b)
	}
	return u, nil
}

// Encode writes the unit as an indented dump.
func (u *Unit) Encode(w io.Writer) error {
	f := unitFile{
		Version: DumpVersion,
		Name:    u.name,
		Symbols: u.Symbols(),
		Allocs:  u.allocs,
		Traits:  u.traits,
		Bodies:  u.allBodies(),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&f); err != nil {
		return fmt.Errorf("failed to encode IR dump: %w", err)
	}
	return nil
}

// allBodies returns function bodies followed by promoted bodies in owner order.
func (u *Unit) allBodies() []*Body {
	out := u.Bodies()
	owners := make([]SymbolID, 0, len(u.promoted))
	for owner := range u.promoted {
		owners = append(owners, owner)
	}
	sort.Slice(owners, func(i, j int) bool {
		if owners[i].Unit != owners[j].Unit {
			return owners[i].Unit < owners[j].Unit
		}
		return owners[i].Index < owners[j].Index
	})
	for _, owner := range owners {
		out = append(out, u.promoted[owner]...)
	}
	return out
}

// LoadFile reads a unit dump from disk.
func LoadFile(path string, unoptimized bool) (*Unit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open IR dump: %w", err)
	}
	defer f.Close()
	return Decode(f, unoptimized)
}

// SaveFile writes a unit dump to disk.
func (u *Unit) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create IR dump: %w", err)
	}
	if err := u.Encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// UnitNameFromPath returns the unit name encoded in a dump file name.
func UnitNameFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), DumpExt)
}

// ListDumps returns the sorted dump files in dir.
func ListDumps(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+DumpExt))
	if err != nil {
		return nil, fmt.Errorf("failed to list IR dumps: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}

// Validate checks that every slot and block a body refers to exists.
func (b *Body) Validate() error {
	nLocals := Local(len(b.Locals))
	nBlocks := BlockID(len(b.Blocks))
	if len(b.Blocks) == 0 {
		return fmt.Errorf("body %s has no blocks", b.Owner)
	}
	if b.ArgCount < 0 || (b.ArgCount > 0 && b.ArgCount >= len(b.Locals)) {
		return fmt.Errorf("body %s declares %d args but %d locals", b.Owner, b.ArgCount, len(b.Locals))
	}

	checkOperand := func(op Operand, where BlockID) error {
		if op.IsPlace() && op.Local >= nLocals {
			return fmt.Errorf("body %s %s: slot %s out of range", b.Owner, where, op.Local)
		}
		if op.Kind == Constant && op.Const == nil {
			return fmt.Errorf("body %s %s: constant operand without value", b.Owner, where)
		}
		return nil
	}

	for i, block := range b.Blocks {
		bb := BlockID(i)
		for _, stmt := range block.Statements {
			if stmt.Local >= nLocals {
				return fmt.Errorf("body %s %s: slot %s out of range", b.Owner, bb, stmt.Local)
			}
			if stmt.Kind != StmtAssign {
				continue
			}
			if stmt.Rvalue == nil {
				return fmt.Errorf("body %s %s: assignment to %s without rvalue", b.Owner, bb, stmt.Local)
			}
			rv := stmt.Rvalue
			switch rv.Kind {
			case RvalueUse, RvalueCast:
				if err := checkOperand(rv.Operand, bb); err != nil {
					return err
				}
			case RvalueRef, RvalueCopyForDeref:
				if rv.Place >= nLocals {
					return fmt.Errorf("body %s %s: slot %s out of range", b.Owner, bb, rv.Place)
				}
			case RvalueAggregate:
				for _, el := range rv.Elements {
					if err := checkOperand(el, bb); err != nil {
						return err
					}
				}
			}
		}

		term := block.Terminator
		for _, target := range term.Targets {
			if target >= nBlocks {
				return fmt.Errorf("body %s %s: target %s out of range", b.Owner, bb, target)
			}
		}
		if term.Kind == TermCall {
			if err := checkOperand(term.Func, bb); err != nil {
				return err
			}
			for _, arg := range term.Args {
				if err := checkOperand(arg, bb); err != nil {
					return err
				}
			}
			if term.Destination >= nLocals {
				return fmt.Errorf("body %s %s: destination %s out of range", b.Owner, bb, term.Destination)
			}
		}
	}
	return nil
}
