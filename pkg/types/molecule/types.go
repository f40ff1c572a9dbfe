// Package molecule defines the molecule Data Transfer Objects and
// request/response structures shared by the HTTP layer, the CLI and the Go
// client.  No domain logic lives here, only plain data types that are safe to
// import from any layer.
package molecule

import (
	"github.com/turtacn/molstruct/pkg/types/common"
)

// ─────────────────────────────────────────────────────────────────────────────
// Source — how a stored molecule came into existence
// ─────────────────────────────────────────────────────────────────────────────

// Source records where a molecule's structure originated.
type Source string

const (
	// SourceUpload marks molecules parsed from an uploaded structure file.
	SourceUpload Source = "upload"

	// SourceSMILES marks molecules laid out from a SMILES-like string.  Only
	// these molecules support geometry regeneration.
	SourceSMILES Source = "smiles"
)

// IsValid reports whether s is a known source.
func (s Source) IsValid() bool {
	return s == SourceUpload || s == SourceSMILES
}

// ─────────────────────────────────────────────────────────────────────────────
// Structure DTOs
// ─────────────────────────────────────────────────────────────────────────────

// AtomDTO is one atom of a molecule.  Index equals the atom's position in the
// owning molecule's atom list.
type AtomDTO struct {
	Index        int     `json:"index"`
	Symbol       string  `json:"symbol"`
	AtomicNumber int     `json:"atomic_number"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Z            float64 `json:"z"`
}

// BondDTO connects two atoms by zero-based index with Atom1 < Atom2.
type BondDTO struct {
	Atom1 int `json:"atom1"`
	Atom2 int `json:"atom2"`
	Order int `json:"order"`
}

// StructureDTO is the canonical parse result.
type StructureDTO struct {
	Name            *string   `json:"name"`
	Formula         string    `json:"formula"`
	AtomCount       int       `json:"atom_count"`
	MolecularWeight float64   `json:"molecular_weight"`
	Atoms           []AtomDTO `json:"atoms"`
	Bonds           []BondDTO `json:"bonds"`
}

// MoleculeDTO is a stored molecule: the parsed structure plus the metadata the
// service attaches to it.
type MoleculeDTO struct {
	ID        common.ID        `json:"id"`
	Source    Source           `json:"source"`
	Format    string           `json:"format,omitempty"`
	Filename  string           `json:"filename,omitempty"`
	SMILES    string           `json:"smiles,omitempty"`
	Minimized bool             `json:"minimized"`
	Engine    string           `json:"engine,omitempty"`
	CreatedAt common.Timestamp `json:"created_at"`
	UpdatedAt common.Timestamp `json:"updated_at"`

	StructureDTO
}

// MoleculeListResponse is the paginated output of the list endpoint.
type MoleculeListResponse = common.PageResponse[MoleculeDTO]

// ─────────────────────────────────────────────────────────────────────────────
// Requests
// ─────────────────────────────────────────────────────────────────────────────

// CreateFromSMILESRequest builds a molecule from a SMILES-like string.
type CreateFromSMILESRequest struct {
	SMILES   string `json:"smiles" validate:"required,max=4096"`
	Name     string `json:"name,omitempty" validate:"omitempty,max=256"`
	Minimize bool   `json:"minimize"`
}

// UpdateGeometryRequest regenerates the layout of a SMILES-sourced molecule.
type UpdateGeometryRequest struct {
	Minimize bool `json:"minimize"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Responses
// ─────────────────────────────────────────────────────────────────────────────

// BondDistanceDTO is the length of one bond in angstroms.
type BondDistanceDTO struct {
	Atom1    int     `json:"atom1"`
	Atom2    int     `json:"atom2"`
	Distance float64 `json:"distance"`
}

// DistancesResponse lists every bond length of a molecule, optionally with a
// single atom pair distance requested through query parameters.
type DistancesResponse struct {
	MoleculeID common.ID         `json:"molecule_id"`
	Bonds      []BondDistanceDTO `json:"bonds"`
	Pair       *BondDistanceDTO  `json:"pair,omitempty"`
}

// FormatDTO describes one supported input format.
type FormatDTO struct {
	Name        string   `json:"name"`
	Extensions  []string `json:"extensions"`
	Description string   `json:"description"`
}

// FormatsResponse lists supported input formats.
type FormatsResponse struct {
	Formats []FormatDTO `json:"formats"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Search
// ─────────────────────────────────────────────────────────────────────────────

// SearchRequest narrows the molecule index.  Zero-valued fields do not filter;
// every listed element must be present in a hit.
type SearchRequest struct {
	Query    string   `json:"q,omitempty" validate:"omitempty,max=256"`
	Formula  string   `json:"formula,omitempty" validate:"omitempty,max=128"`
	Elements []string `json:"elements,omitempty" validate:"omitempty,max=16,dive,min=1,max=3"`
	Format   string   `json:"format,omitempty"`
	Source   Source   `json:"source,omitempty"`
	MinAtoms int      `json:"min_atoms,omitempty" validate:"gte=0"`
	MaxAtoms int      `json:"max_atoms,omitempty" validate:"gte=0"`
	Page     int      `json:"page,omitempty" validate:"gte=0"`
	PageSize int      `json:"page_size,omitempty" validate:"gte=0"`
}

// SearchHit is one indexed molecule.  Coordinates are not indexed; fetch the
// molecule by ID for atoms and bonds.
type SearchHit struct {
	ID              common.ID        `json:"id"`
	Name            string           `json:"name,omitempty"`
	Formula         string           `json:"formula"`
	Elements        []string         `json:"elements"`
	AtomCount       int              `json:"atom_count"`
	BondCount       int              `json:"bond_count"`
	MolecularWeight float64          `json:"molecular_weight"`
	Format          string           `json:"format,omitempty"`
	Source          Source           `json:"source"`
	Engine          string           `json:"engine,omitempty"`
	CreatedAt       common.Timestamp `json:"created_at"`
	Score           float64          `json:"score"`
}

// SearchResponse is a page of hits plus per-element counts over all matches.
type SearchResponse struct {
	common.PageResponse[SearchHit]
	ElementFacets map[string]int64 `json:"element_facets,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Events
// ─────────────────────────────────────────────────────────────────────────────

// IngestRequest is the envelope consumed from the ingest topic.  The worker
// fetches the object and parses it like an upload.
type IngestRequest struct {
	Bucket    string `json:"bucket" validate:"required"`
	ObjectKey string `json:"object_key" validate:"required"`
	Filename  string `json:"filename,omitempty"`
	Format    string `json:"format,omitempty"`
}

// MoleculeEvent is the envelope published for molecule lifecycle events.
type MoleculeEvent struct {
	EventID    string           `json:"event_id"`
	EventType  string           `json:"event_type"`
	MoleculeID common.ID        `json:"molecule_id"`
	Formula    string           `json:"formula"`
	AtomCount  int              `json:"atom_count"`
	Source     Source           `json:"source"`
	OccurredAt common.Timestamp `json:"occurred_at"`
}

//Personal.AI order the ending
