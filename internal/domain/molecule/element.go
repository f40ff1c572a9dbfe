package molecule

import (
	"sort"
	"strings"
	"unicode"
)

// Element is one entry of the periodic table subset the parsers understand.
type Element struct {
	Symbol         string
	AtomicNumber   int
	AtomicWeight   float64
	CovalentRadius float64
}

var elements = map[string]Element{
	"H":  {Symbol: "H", AtomicNumber: 1, AtomicWeight: 1.00784, CovalentRadius: 0.31},
	"C":  {Symbol: "C", AtomicNumber: 6, AtomicWeight: 12.0107, CovalentRadius: 0.76},
	"N":  {Symbol: "N", AtomicNumber: 7, AtomicWeight: 14.0067, CovalentRadius: 0.71},
	"O":  {Symbol: "O", AtomicNumber: 8, AtomicWeight: 15.999, CovalentRadius: 0.66},
	"F":  {Symbol: "F", AtomicNumber: 9, AtomicWeight: 18.998, CovalentRadius: 0.57},
	"P":  {Symbol: "P", AtomicNumber: 15, AtomicWeight: 30.9738, CovalentRadius: 1.07},
	"S":  {Symbol: "S", AtomicNumber: 16, AtomicWeight: 32.06, CovalentRadius: 1.05},
	"Cl": {Symbol: "Cl", AtomicNumber: 17, AtomicWeight: 35.45, CovalentRadius: 1.02},
	"Br": {Symbol: "Br", AtomicNumber: 35, AtomicWeight: 79.904, CovalentRadius: 1.20},
	"I":  {Symbol: "I", AtomicNumber: 53, AtomicWeight: 126.90447, CovalentRadius: 1.39},
}

// NormalizeSymbol returns the canonical casing of an element symbol: first
// letter upper, remainder lower.  Isotope digits and charge marks around the
// letters ("13C", "O1-", "Fe2+") are dropped.
func NormalizeSymbol(symbol string) string {
	symbol = strings.TrimFunc(strings.TrimSpace(symbol), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if symbol == "" {
		return ""
	}
	if len(symbol) == 1 {
		return strings.ToUpper(symbol)
	}
	return strings.ToUpper(symbol[:1]) + strings.ToLower(symbol[1:])
}

// LookupElement normalizes symbol and returns its table entry.
func LookupElement(symbol string) (Element, bool) {
	e, ok := elements[NormalizeSymbol(symbol)]
	return e, ok
}

// SupportedElements returns the known symbols ordered by atomic number.
func SupportedElements() []string {
	out := make([]string, 0, len(elements))
	for sym := range elements {
		out = append(out, sym)
	}
	sort.Slice(out, func(i, j int) bool {
		return elements[out[i]].AtomicNumber < elements[out[j]].AtomicNumber
	})
	return out
}

//Personal.AI order the ending
