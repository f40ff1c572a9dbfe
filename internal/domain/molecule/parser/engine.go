package parser

import (
	"strings"

	"github.com/turtacn/molstruct/internal/domain/molecule"
)

// Engine parses raw bytes of a known format into a canonical structure.
type Engine interface {
	Name() string
	Parse(raw []byte, format Format, filename string) (*molecule.Structure, error)
}

// EngineOption configures a TextEngine.
type EngineOption func(*TextEngine)

// WithTabExpansion expands tabs to the given tab stop before fixed-column
// reading.  Hand-edited PDB and Molfile data often carries tabs that shift
// every following column.
func WithTabExpansion(width int) EngineOption {
	return func(e *TextEngine) { e.tabWidth = width }
}

// WithMaxAtoms rejects inputs with more than n atoms while reading, before
// any bonds are inferred.  Non-positive n disables the check.
func WithMaxAtoms(n int) EngineOption {
	return func(e *TextEngine) { e.maxAtoms = atomLimit(n) }
}

// TextEngine decodes bytes with its Decoder and runs the fixed-column readers.
type TextEngine struct {
	name     string
	decoder  *Decoder
	tabWidth int
	maxAtoms atomLimit
}

// NewTextEngine returns an engine named name.  A nil decoder uses
// DefaultEncodings.
func NewTextEngine(name string, decoder *Decoder, opts ...EngineOption) *TextEngine {
	if decoder == nil {
		decoder = MustNewDecoder(DefaultEncodings...)
	}
	e := &TextEngine{name: name, decoder: decoder}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements Engine.
func (e *TextEngine) Name() string { return e.name }

// Parse implements Engine.
func (e *TextEngine) Parse(raw []byte, format Format, filename string) (*molecule.Structure, error) {
	if !format.IsValid() {
		return nil, unsupported(format.String())
	}
	text, _, err := e.decoder.Decode(raw)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, malformed(format, "input is empty")
	}
	text = expandTabs(text, e.tabWidth)

	var rec *records
	switch format {
	case FormatXYZ:
		rec, err = readXYZ(text, filename, e.maxAtoms)
	case FormatPDB:
		rec, err = readPDB(text, filename, e.maxAtoms)
	case FormatMol:
		rec, err = readMolfile(text, filename, e.maxAtoms)
	case FormatSDF:
		rec, err = readSDF(text, filename, e.maxAtoms)
	}
	if err != nil {
		return nil, err
	}
	return molecule.Assemble(format.String(), rec.atoms, rec.bonds, rec.meta)
}

//Personal.AI order the ending
