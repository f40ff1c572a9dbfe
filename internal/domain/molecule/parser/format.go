// Package parser turns raw structure-file bytes into canonical molecule
// structures.  It owns text decoding, the fixed-column readers for XYZ, PDB
// and V2000 Molfile/SDF, and the primary/fallback engine coordinator.
package parser

import (
	"path/filepath"
	"strings"

	"github.com/turtacn/molstruct/pkg/errors"
)

// Format is the closed set of structure formats the engines understand.
type Format string

const (
	FormatXYZ Format = "xyz"
	FormatPDB Format = "pdb"
	FormatMol Format = "mol"
	FormatSDF Format = "sdf"
)

var formats = []Format{FormatMol, FormatPDB, FormatSDF, FormatXYZ}

var descriptions = map[Format]string{
	FormatXYZ: "XYZ coordinates: atom count, comment, then symbol x y z per line",
	FormatPDB: "Protein Data Bank fixed-column ATOM/HETATM/CONECT records",
	FormatMol: "MDL V2000 Molfile",
	FormatSDF: "Structure-data file; only the first record is read",
}

func (f Format) String() string { return string(f) }

// Extension returns the file extension including the dot.
func (f Format) Extension() string { return "." + string(f) }

// Description returns a one-line summary of the format.
func (f Format) Description() string { return descriptions[f] }

// IsValid reports whether f is one of the supported formats.
func (f Format) IsValid() bool {
	switch f {
	case FormatXYZ, FormatPDB, FormatMol, FormatSDF:
		return true
	}
	return false
}

// Supported returns every format in name order.
func Supported() []Format {
	return append([]Format(nil), formats...)
}

// SupportedNames returns the supported format names in name order.
func SupportedNames() []string {
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = f.String()
	}
	return names
}

// ParseFormat resolves a declared format case-insensitively.  A leading dot is
// accepted so extensions can be passed directly.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")))
	if !f.IsValid() {
		return "", unsupported(s)
	}
	return f, nil
}

func unsupported(requested string) *errors.AppError {
	return errors.UnsupportedFormat(requested, SupportedNames())
}

// FormatFromFilename derives the format from a filename's extension.
func FormatFromFilename(name string) (Format, error) {
	ext := filepath.Ext(strings.TrimSpace(name))
	if ext == "" {
		return "", unsupported(name).
			WithDetail("file has no extension; supported formats: " + strings.Join(SupportedNames(), ", "))
	}
	return ParseFormat(ext)
}

//Personal.AI order the ending
