package molecule

import (
	mtypes "github.com/turtacn/molstruct/pkg/types/molecule"
)

// ─────────────────────────────────────────────────────────────────────────────
// Raw records produced by format parsers
// ─────────────────────────────────────────────────────────────────────────────

// RawAtom is an atom as read from a file, before symbol normalization.
type RawAtom struct {
	Symbol  string
	X, Y, Z float64
}

// RawBond references two atoms by zero-based index.  An Order <= 0 means
// unspecified and is promoted to a single bond on assembly.
type RawBond struct {
	Atom1, Atom2 int
	Order        int
}

// Metadata carries optional document-level information from the parser.
type Metadata struct {
	Name string
}

// ─────────────────────────────────────────────────────────────────────────────
// Canonical structure
// ─────────────────────────────────────────────────────────────────────────────

// Atom is a validated atom. Index equals its position in Structure.Atoms.
type Atom struct {
	Index        int
	Symbol       string
	AtomicNumber int
	X, Y, Z      float64
}

// Bond is a validated bond with Atom1 < Atom2 and Order >= 1.
type Bond struct {
	Atom1, Atom2 int
	Order        int
}

// Structure is the canonical, immutable result of parsing.  It is built only
// by Assemble; any change produces a new Structure.
type Structure struct {
	Name            *string
	Formula         string
	AtomCount       int
	MolecularWeight float64
	Atoms           []Atom
	Bonds           []Bond
}

// ToDTO converts the structure to its transport representation.
func (s *Structure) ToDTO() mtypes.StructureDTO {
	dto := mtypes.StructureDTO{
		Formula:         s.Formula,
		AtomCount:       s.AtomCount,
		MolecularWeight: s.MolecularWeight,
		Atoms:           make([]mtypes.AtomDTO, len(s.Atoms)),
		Bonds:           make([]mtypes.BondDTO, len(s.Bonds)),
	}
	if s.Name != nil {
		name := *s.Name
		dto.Name = &name
	}
	for i, a := range s.Atoms {
		dto.Atoms[i] = mtypes.AtomDTO{
			Index: a.Index, Symbol: a.Symbol, AtomicNumber: a.AtomicNumber,
			X: a.X, Y: a.Y, Z: a.Z,
		}
	}
	for i, b := range s.Bonds {
		dto.Bonds[i] = mtypes.BondDTO{Atom1: b.Atom1, Atom2: b.Atom2, Order: b.Order}
	}
	return dto
}

// StructureFromDTO rebuilds a Structure from its transport form.  The DTO is
// trusted to have come from ToDTO; it is not re-assembled.
func StructureFromDTO(dto mtypes.StructureDTO) *Structure {
	s := &Structure{
		Formula:         dto.Formula,
		AtomCount:       dto.AtomCount,
		MolecularWeight: dto.MolecularWeight,
		Atoms:           make([]Atom, len(dto.Atoms)),
		Bonds:           make([]Bond, len(dto.Bonds)),
	}
	if dto.Name != nil {
		name := *dto.Name
		s.Name = &name
	}
	for i, a := range dto.Atoms {
		s.Atoms[i] = Atom{
			Index: a.Index, Symbol: a.Symbol, AtomicNumber: a.AtomicNumber,
			X: a.X, Y: a.Y, Z: a.Z,
		}
	}
	for i, b := range dto.Bonds {
		s.Bonds[i] = Bond{Atom1: b.Atom1, Atom2: b.Atom2, Order: b.Order}
	}
	return s
}

//Personal.AI order the ending
