package parser

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/turtacn/molstruct/internal/domain/molecule"
)

// PDB column ranges, zero-based and half-open.
const (
	pdbRecordEnd   = 6
	pdbNameStart   = 12
	pdbNameEnd     = 16
	pdbXStart      = 30
	pdbElemStart   = 76
	pdbElemEnd     = 78
	pdbCoordWidth  = 8
	pdbSerialWidth = 5
)

// readPDB reads ATOM/HETATM coordinates and CONECT connectivity.  Atoms are
// taken from the first model of a multi-model file; CONECT records are read
// from the whole file, since they usually follow the last ENDMDL.  CONECT
// serials are taken as one-based positions in atom order; pairs outside the
// atom list and repeated pairs are discarded.
func readPDB(text, filename string, limit atomLimit) (*records, error) {
	rec := &records{meta: molecule.Metadata{Name: filename}}
	var conect [][2]int
	modelDone := false

	for i, line := range splitLines(text) {
		switch strings.ToUpper(strings.TrimSpace(column(line, 0, pdbRecordEnd))) {
		case "ATOM", "HETATM":
			if modelDone {
				continue
			}
			atom, err := readPDBAtom(line, i+1)
			if err != nil {
				return nil, err
			}
			rec.atoms = append(rec.atoms, atom)
			if err := limit.check(FormatPDB, len(rec.atoms)); err != nil {
				return nil, err
			}
		case "CONECT":
			pairs, err := readCONECT(line, i+1)
			if err != nil {
				return nil, err
			}
			conect = append(conect, pairs...)
		case "ENDMDL":
			modelDone = true
		}
	}
	if len(rec.atoms) == 0 {
		return nil, malformed(FormatPDB, "no atoms found")
	}

	seen := make(map[[2]int]struct{}, len(conect))
	for _, p := range conect {
		a1, a2 := p[0], p[1]
		if a1 > a2 {
			a1, a2 = a2, a1
		}
		if a1 < 0 || a2 >= len(rec.atoms) {
			continue
		}
		key := [2]int{a1, a2}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		rec.bonds = append(rec.bonds, molecule.RawBond{Atom1: a1, Atom2: a2, Order: 1})
	}
	return rec, nil
}

func readPDBAtom(line string, lineNo int) (molecule.RawAtom, error) {
	var xyz [3]float64
	for k := 0; k < 3; k++ {
		start := pdbXStart + k*pdbCoordWidth
		raw := strings.TrimSpace(column(line, start, start+pdbCoordWidth))
		if raw == "" {
			return molecule.RawAtom{}, malformed(FormatPDB,
				fmt.Sprintf("line %d: missing %s coordinate (columns %d-%d)", lineNo, axis[k], start+1, start+pdbCoordWidth))
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return molecule.RawAtom{}, malformed(FormatPDB,
				fmt.Sprintf("line %d: %s coordinate %q is not a number", lineNo, axis[k], raw))
		}
		xyz[k] = v
	}

	symbol := strings.TrimSpace(column(line, pdbElemStart, pdbElemEnd))
	if symbol == "" {
		symbol = strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) {
				return r
			}
			return -1
		}, column(line, pdbNameStart, pdbNameEnd))
	}
	return molecule.RawAtom{Symbol: symbol, X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}

// readCONECT returns zero-based (origin, target) pairs for one CONECT line.
func readCONECT(line string, lineNo int) ([][2]int, error) {
	var serials []int
	for start := pdbRecordEnd; start < len(line); start += pdbSerialWidth {
		field := strings.TrimSpace(column(line, start, start+pdbSerialWidth))
		if field == "" {
			continue
		}
		n, err := strconv.Atoi(field)
		if err != nil {
			return nil, malformed(FormatPDB,
				fmt.Sprintf("line %d: CONECT serial %q is not an integer", lineNo, field))
		}
		serials = append(serials, n-1)
	}
	if len(serials) < 2 {
		return nil, nil
	}
	pairs := make([][2]int, 0, len(serials)-1)
	for _, target := range serials[1:] {
		pairs = append(pairs, [2]int{serials[0], target})
	}
	return pairs, nil
}

//Personal.AI order the ending
