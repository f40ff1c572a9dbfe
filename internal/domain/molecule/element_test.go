package molecule

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSymbol(t *testing.T) {
	cases := map[string]string{
		"c":     "C",
		" CL ":  "Cl",
		"bR":    "Br",
		"O":     "O",
		"13C":   "C",
		"O1-":   "O",
		"":      "",
		"  ":    "",
		"fe2+":  "Fe",
		"\tn\n": "N",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeSymbol(in), "input %q", in)
	}
}

func TestLookupElement(t *testing.T) {
	e, ok := LookupElement("cl")
	assert.True(t, ok)
	assert.Equal(t, Element{Symbol: "Cl", AtomicNumber: 17, AtomicWeight: 35.45, CovalentRadius: 1.02}, e)

	_, ok = LookupElement("Xx")
	assert.False(t, ok)
	_, ok = LookupElement("")
	assert.False(t, ok)
}

func TestSupportedElements_OrderedByAtomicNumber(t *testing.T) {
	assert.Equal(t,
		[]string{"H", "C", "N", "O", "F", "P", "S", "Cl", "Br", "I"},
		SupportedElements())
}

//Personal.AI order the ending
