package molecule

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/turtacn/molstruct/pkg/errors"
)

// Assemble validates raw parser output and builds the canonical Structure.
//
// Atoms keep their input order and receive contiguous indices.  Bonds are
// stored with sorted endpoints; self-bonds and repeated pairs are dropped with
// the first occurrence winning.  A bond pointing outside the atom list fails
// with MalformedInput tagged with format.
func Assemble(format string, atoms []RawAtom, bonds []RawBond, meta Metadata) (*Structure, error) {
	if len(atoms) == 0 {
		return nil, errors.EmptyMolecule()
	}

	out := &Structure{
		Atoms:     make([]Atom, 0, len(atoms)),
		AtomCount: len(atoms),
	}
	counts := make(map[string]int)
	weight := 0.0

	for i, raw := range atoms {
		e, ok := LookupElement(raw.Symbol)
		if !ok {
			sym := NormalizeSymbol(raw.Symbol)
			if sym == "" {
				sym = strings.TrimSpace(raw.Symbol)
			}
			return nil, errors.UnsupportedElement(sym).WithDetail(fmt.Sprintf("atom %d", i+1))
		}
		counts[e.Symbol]++
		weight += e.AtomicWeight
		out.Atoms = append(out.Atoms, Atom{
			Index:        i,
			Symbol:       e.Symbol,
			AtomicNumber: e.AtomicNumber,
			X:            raw.X,
			Y:            raw.Y,
			Z:            raw.Z,
		})
	}

	seen := make(map[[2]int]struct{}, len(bonds))
	out.Bonds = make([]Bond, 0, len(bonds))
	for _, raw := range bonds {
		a1, a2 := raw.Atom1, raw.Atom2
		if a1 > a2 {
			a1, a2 = a2, a1
		}
		if a1 < 0 || a2 >= len(atoms) {
			return nil, errors.MalformedInput(format,
				fmt.Sprintf("bond %d-%d references an atom outside 1..%d", raw.Atom1+1, raw.Atom2+1, len(atoms)))
		}
		if a1 == a2 {
			continue
		}
		key := [2]int{a1, a2}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		order := raw.Order
		if order < 1 {
			order = 1
		}
		out.Bonds = append(out.Bonds, Bond{Atom1: a1, Atom2: a2, Order: order})
	}

	out.Formula = Formula(counts)
	out.MolecularWeight = roundTo(weight, 5)
	if meta.Name != "" {
		name := meta.Name
		out.Name = &name
	}
	return out, nil
}

// Formula renders element counts with carbon first, hydrogen second and the
// rest alphabetically.  A count of one is written as the bare symbol.
func Formula(counts map[string]int) string {
	symbols := make([]string, 0, len(counts))
	for sym, n := range counts {
		if n > 0 {
			symbols = append(symbols, sym)
		}
	}
	sort.Slice(symbols, func(i, j int) bool {
		ri, rj := formulaRank(symbols[i]), formulaRank(symbols[j])
		if ri != rj {
			return ri < rj
		}
		return symbols[i] < symbols[j]
	})

	var sb strings.Builder
	for _, sym := range symbols {
		sb.WriteString(sym)
		if n := counts[sym]; n > 1 {
			sb.WriteString(strconv.Itoa(n))
		}
	}
	return sb.String()
}

func formulaRank(sym string) int {
	switch sym {
	case "C":
		return 0
	case "H":
		return 1
	default:
		return 2
	}
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

//Personal.AI order the ending
