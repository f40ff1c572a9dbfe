package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/turtacn/molstruct/internal/domain/molecule"
	"github.com/turtacn/molstruct/pkg/errors"
)

// readXYZ parses the XYZ layout: an atom count, a comment line used as the
// name, then one "symbol x y z" line per atom.  Blank lines between atom
// lines are skipped and anything after the declared atoms is ignored.
func readXYZ(text, filename string, limit atomLimit) (*records, error) {
	lines := splitLines(text)

	countField := strings.Fields(lines[0])
	if len(countField) == 0 {
		return nil, malformed(FormatXYZ, "line 1: missing atom count")
	}
	n, err := strconv.Atoi(countField[0])
	if err != nil || n < 0 {
		return nil, malformed(FormatXYZ, fmt.Sprintf("line 1: atom count %q is not a non-negative integer", countField[0]))
	}
	if err := limit.check(FormatXYZ, n); err != nil {
		return nil, err
	}

	rec := &records{meta: molecule.Metadata{Name: filename}}
	if len(lines) > 1 {
		if comment := strings.TrimSpace(lines[1]); comment != "" {
			rec.meta.Name = comment
		}
	}

	rec.atoms = make([]molecule.RawAtom, 0, n)
	for i := 2; i < len(lines) && len(rec.atoms) < n; i++ {
		fields := strings.Fields(lines[i])
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 4 {
			return nil, malformed(FormatXYZ,
				fmt.Sprintf("line %d: expected symbol and 3 coordinates, got %d fields", i+1, len(fields)))
		}
		var xyz [3]float64
		for k := 0; k < 3; k++ {
			v, err := strconv.ParseFloat(fields[k+1], 64)
			if err != nil {
				return nil, malformed(FormatXYZ,
					fmt.Sprintf("line %d: %s coordinate %q is not a number", i+1, axis[k], fields[k+1]))
			}
			xyz[k] = v
		}
		rec.atoms = append(rec.atoms, molecule.RawAtom{Symbol: fields[0], X: xyz[0], Y: xyz[1], Z: xyz[2]})
	}
	if len(rec.atoms) < n {
		return nil, malformed(FormatXYZ,
			fmt.Sprintf("file ended before all atoms were defined: expected %d, found %d", n, len(rec.atoms)))
	}

	rec.bonds = molecule.InferBonds(rec.atoms)
	return rec, nil
}

var axis = [3]string{"x", "y", "z"}

func malformed(f Format, reason string) *errors.AppError {
	return errors.MalformedInput(f.String(), reason)
}

//Personal.AI order the ending
