package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/turtacn/molstruct/internal/domain/molecule"
)

// V2000 layout, zero-based and half-open column ranges.
const (
	molCountsLine  = 3
	molCountWidth  = 3
	molCoordWidth  = 10
	molElemStart   = 31
	molElemEnd     = 34
	molAtomLineMin = 34
	molSerialWidth = 3
	molBondLineMin = 6
	sdfRecordEnd   = "$$$$"
)

// readSDF reads the first record of a structure-data file.
func readSDF(text, filename string, limit atomLimit) (*records, error) {
	lines := splitLines(text)
	for i, line := range lines {
		if strings.TrimSpace(line) == sdfRecordEnd {
			lines = lines[:i]
			break
		}
	}
	if strings.TrimSpace(strings.Join(lines, "")) == "" {
		return nil, malformed(FormatSDF, "no structure block before the first $$$$ delimiter")
	}
	return readMolLines(FormatSDF, lines, filename, limit)
}

// readMolfile reads a V2000 molfile.
func readMolfile(text, filename string, limit atomLimit) (*records, error) {
	return readMolLines(FormatMol, splitLines(text), filename, limit)
}

// readMolLines reads the header, counts line, atom block and bond block.  The
// title on line 1 names the molecule, falling back to filename when blank.
func readMolLines(f Format, lines []string, filename string, limit atomLimit) (*records, error) {
	if len(lines) <= molCountsLine {
		return nil, malformed(f, fmt.Sprintf("expected a counts line on line 4, file has %d lines", len(lines)))
	}

	rec := &records{meta: molecule.Metadata{Name: strings.TrimSpace(lines[0])}}
	if rec.meta.Name == "" {
		rec.meta.Name = filename
	}

	counts := lines[molCountsLine]
	if len(counts) < 2*molCountWidth {
		return nil, malformed(f, fmt.Sprintf("line 4: counts line needs at least %d characters, got %d", 2*molCountWidth, len(counts)))
	}
	nAtoms, err := readCount(f, counts, 0, "atom")
	if err != nil {
		return nil, err
	}
	if err := limit.check(f, nAtoms); err != nil {
		return nil, err
	}
	nBonds, err := readCount(f, counts, molCountWidth, "bond")
	if err != nil {
		return nil, err
	}

	first := molCountsLine + 1
	if avail := len(lines) - first; avail < nAtoms {
		return nil, malformed(f, fmt.Sprintf("file ended before all atoms were defined: expected %d, found %d", nAtoms, max(avail, 0)))
	}
	rec.atoms = make([]molecule.RawAtom, 0, nAtoms)
	for i := first; i < first+nAtoms; i++ {
		atom, err := readMolAtom(f, lines[i], i+1)
		if err != nil {
			return nil, err
		}
		rec.atoms = append(rec.atoms, atom)
	}

	first += nAtoms
	if avail := len(lines) - first; avail < nBonds {
		return nil, malformed(f, fmt.Sprintf("file ended before all bonds were defined: expected %d, found %d", nBonds, max(avail, 0)))
	}
	rec.bonds = make([]molecule.RawBond, 0, nBonds)
	for i := first; i < first+nBonds; i++ {
		bond, err := readMolBond(f, lines[i], i+1, nAtoms)
		if err != nil {
			return nil, err
		}
		rec.bonds = append(rec.bonds, bond)
	}
	return rec, nil
}

func readCount(f Format, line string, start int, what string) (int, error) {
	raw := strings.TrimSpace(column(line, start, start+molCountWidth))
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, malformed(f, fmt.Sprintf("line 4: %s count %q is not a non-negative integer", what, raw))
	}
	return n, nil
}

func readMolAtom(f Format, line string, lineNo int) (molecule.RawAtom, error) {
	if len(line) < molAtomLineMin {
		return molecule.RawAtom{}, malformed(f,
			fmt.Sprintf("line %d: atom line needs at least %d characters, got %d", lineNo, molAtomLineMin, len(line)))
	}
	var xyz [3]float64
	for k := 0; k < 3; k++ {
		raw := strings.TrimSpace(column(line, k*molCoordWidth, (k+1)*molCoordWidth))
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return molecule.RawAtom{}, malformed(f,
				fmt.Sprintf("line %d: %s coordinate %q is not a number", lineNo, axis[k], raw))
		}
		xyz[k] = v
	}
	return molecule.RawAtom{
		Symbol: strings.TrimSpace(column(line, molElemStart, molElemEnd)),
		X:      xyz[0],
		Y:      xyz[1],
		Z:      xyz[2],
	}, nil
}

func readMolBond(f Format, line string, lineNo, nAtoms int) (molecule.RawBond, error) {
	if len(line) < molBondLineMin {
		return molecule.RawBond{}, malformed(f,
			fmt.Sprintf("line %d: bond line needs at least %d characters, got %d", lineNo, molBondLineMin, len(line)))
	}
	var serial [2]int
	for k := 0; k < 2; k++ {
		raw := strings.TrimSpace(column(line, k*molSerialWidth, (k+1)*molSerialWidth))
		n, err := strconv.Atoi(raw)
		if err != nil {
			return molecule.RawBond{}, malformed(f,
				fmt.Sprintf("line %d: bond atom serial %q is not an integer", lineNo, raw))
		}
		if n < 1 || n > nAtoms {
			return molecule.RawBond{}, malformed(f,
				fmt.Sprintf("line %d: bond references atom %d, molecule has %d atoms", lineNo, n, nAtoms))
		}
		serial[k] = n - 1
	}

	order := 1
	if raw := strings.TrimSpace(column(line, 2*molSerialWidth, 3*molSerialWidth)); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return molecule.RawBond{}, malformed(f,
				fmt.Sprintf("line %d: bond order %q is not an integer", lineNo, raw))
		}
		order = n
	}
	return molecule.RawBond{Atom1: serial[0], Atom2: serial[1], Order: order}, nil
}

//Personal.AI order the ending
