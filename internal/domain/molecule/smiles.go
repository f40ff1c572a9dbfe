package molecule

import (
	"strings"
	"unicode"

	"github.com/turtacn/molstruct/pkg/errors"
)

// Layout spacings in angstroms.
const (
	LinearBondLength    = 1.58
	MinimizedBondLength = 1.24
)

// TokenizeSMILES extracts element symbols from a SMILES-like string.  A letter
// optionally followed by one lowercase letter forms a symbol, which is then
// capitalized ("c" -> "C", "cl" -> "Cl").  Every other character is ignored,
// so ring digits, branches and bond marks are tolerated but carry no meaning.
func TokenizeSMILES(smiles string) []string {
	runes := []rune(strings.TrimSpace(smiles))
	var tokens []string
	for i := 0; i < len(runes); {
		r := runes[i]
		if !unicode.IsLetter(r) {
			i++
			continue
		}
		sym := string(unicode.ToUpper(r))
		if i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
			sym += string(runes[i+1])
			i += 2
		} else {
			i++
		}
		tokens = append(tokens, sym)
	}
	return tokens
}

// LayoutLinear places symbols along the X axis joined by single bonds.
// Minimized layouts use the shorter spacing and are centred on the origin.
func LayoutLinear(symbols []string, minimize bool) ([]RawAtom, []RawBond) {
	spacing := LinearBondLength
	offset := 0.0
	if minimize {
		spacing = MinimizedBondLength
		if len(symbols) > 1 {
			offset = float64(len(symbols)-1) * spacing / 2
		}
	}

	atoms := make([]RawAtom, len(symbols))
	for i, sym := range symbols {
		atoms[i] = RawAtom{Symbol: sym, X: float64(i)*spacing - offset}
	}
	var bonds []RawBond
	for i := 1; i < len(symbols); i++ {
		bonds = append(bonds, RawBond{Atom1: i - 1, Atom2: i, Order: 1})
	}
	return atoms, bonds
}

// BuildFromSMILES lays out smiles linearly and assembles the result.  The
// layout is synthetic; it is not an optimized 3D geometry.
func BuildFromSMILES(smiles, name string, minimize bool) (*Structure, error) {
	symbols := TokenizeSMILES(smiles)
	if len(symbols) == 0 {
		return nil, errors.New(errors.ErrCodeMoleculeInvalidSMILES, "no atom symbols found in SMILES").
			WithDetail("input=" + strings.TrimSpace(smiles))
	}
	atoms, bonds := LayoutLinear(symbols, minimize)
	s, err := Assemble("smiles", atoms, bonds, Metadata{Name: name})
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeMoleculeUnsupportedElem) {
			return nil, errors.Wrap(err, errors.ErrCodeMoleculeInvalidSMILES, "SMILES contains an unsupported element")
		}
		return nil, err
	}
	return s, nil
}

//Personal.AI order the ending
