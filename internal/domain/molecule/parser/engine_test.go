package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/molstruct/internal/domain/molecule"
	"github.com/turtacn/molstruct/pkg/errors"
)

func TestTextEngine_WaterEndToEnd(t *testing.T) {
	e := NewTextEngine("primary", nil)
	s, err := e.Parse([]byte(waterXYZ), FormatXYZ, "water.xyz")
	require.NoError(t, err)

	assert.Equal(t, "H2O", s.Formula)
	assert.Equal(t, 3, s.AtomCount)
	assert.Equal(t, 18.01468, s.MolecularWeight)
	assert.Equal(t, []molecule.Bond{{Atom1: 0, Atom2: 1, Order: 1}, {Atom1: 0, Atom2: 2, Order: 1}}, s.Bonds)
}

func TestTextEngine_AllFormatsAgree(t *testing.T) {
	e := NewTextEngine("primary", nil)
	inputs := map[Format]string{
		FormatXYZ: waterXYZ,
		FormatPDB: waterPDB(),
		FormatMol: waterMolfile("water"),
		FormatSDF: waterMolfile("water") + "\n$$$$\n",
	}
	for f, text := range inputs {
		s, err := e.Parse([]byte(text), f, "water."+f.String())
		require.NoError(t, err, f)
		assert.Equal(t, "H2O", s.Formula, f)
		assert.Len(t, s.Bonds, 2, f)
		assert.InDelta(t, 0.504, s.Atoms[2].Z, 1e-9, f)
	}
}

func TestTextEngine_CRLF(t *testing.T) {
	e := NewTextEngine("primary", nil)
	s, err := e.Parse([]byte(strings.ReplaceAll(waterMolfile("water"), "\n", "\r\n")), FormatMol, "")
	require.NoError(t, err)
	require.NotNil(t, s.Name)
	assert.Equal(t, "water", *s.Name)
}

func TestTextEngine_EmptyInput(t *testing.T) {
	e := NewTextEngine("primary", nil)
	for _, raw := range [][]byte{nil, {}, []byte(" \n\t\n")} {
		s, err := e.Parse(raw, FormatXYZ, "")
		assert.Nil(t, s)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeMoleculeMalformedInput))
		assert.Contains(t, err.Error(), "input is empty")
	}
}

func TestTextEngine_UnsupportedElement(t *testing.T) {
	e := NewTextEngine("primary", nil)
	_, err := e.Parse([]byte("1\nx\nXe 0 0 0\n"), FormatXYZ, "")
	assert.True(t, errors.IsCode(err, errors.ErrCodeMoleculeUnsupportedElem))
}

func TestTextEngine_ZeroAtomsIsEmptyMolecule(t *testing.T) {
	e := NewTextEngine("primary", nil)
	_, err := e.Parse([]byte("0\nnothing\n"), FormatXYZ, "")
	assert.True(t, errors.IsCode(err, errors.ErrCodeMoleculeEmpty))
}

func TestTextEngine_InvalidFormat(t *testing.T) {
	_, err := NewTextEngine("primary", nil).Parse([]byte(waterXYZ), Format("txt"), "")
	assert.True(t, errors.IsCode(err, errors.ErrCodeMoleculeUnsupportedFormat))
}

func TestTextEngine_TabExpansion(t *testing.T) {
	line := "ATOM      1  O   HOH A   1\t0.000    0.000   0.000  1.00  0.00           O"
	raw := []byte(line)

	_, err := NewTextEngine("primary", nil).Parse(raw, FormatPDB, "")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMoleculeMalformedInput))

	s, err := NewTextEngine("fallback", nil, WithTabExpansion(8)).Parse(raw, FormatPDB, "")
	require.NoError(t, err)
	assert.Equal(t, "O", s.Formula)
}

func TestExpandTabs(t *testing.T) {
	assert.Equal(t, "ab      c", expandTabs("ab\tc", 8))
	assert.Equal(t, "a   b\n    c", expandTabs("a\tb\n\tc", 4))
	assert.Equal(t, "a\tb", expandTabs("a\tb", 0))
}

func TestTextEngine_MaxAtomsSkipsFallback(t *testing.T) {
	limited := NewTextEngine("primary", nil, WithMaxAtoms(2))
	_, err := limited.Parse([]byte(waterXYZ), FormatXYZ, "water.xyz")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMoleculeTooLarge))
	assert.False(t, ShouldFallback(err))

	s, err := NewTextEngine("primary", nil, WithMaxAtoms(3)).Parse([]byte(waterXYZ), FormatXYZ, "water.xyz")
	require.NoError(t, err)
	assert.Equal(t, 3, s.AtomCount)
}

//Personal.AI order the ending
