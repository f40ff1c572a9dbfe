// Package molecule provides the core domain model for parsed molecular
// structures: the element table, the canonical Structure built by the
// assembler, distance-based bond inference, the linear SMILES layout and the
// Molecule aggregate that the application layer stores.
package molecule

import (
	"fmt"
	"strings"
	"time"

	"github.com/turtacn/molstruct/pkg/errors"
	"github.com/turtacn/molstruct/pkg/types/common"
	mtypes "github.com/turtacn/molstruct/pkg/types/molecule"
)

// ─────────────────────────────────────────────────────────────────────────────
// Domain Events
// ─────────────────────────────────────────────────────────────────────────────

// Event type names published on the events topic.
const (
	EventMoleculeParsed          = "molecule.parsed"
	EventMoleculeCreated         = "molecule.created"
	EventMoleculeGeometryUpdated = "molecule.geometry_updated"
	EventMoleculeDeleted         = "molecule.deleted"
)

// DomainEvent is a marker interface for all molecule-related domain events.
type DomainEvent interface {
	EventType() string
	AggregateID() common.ID
}

// MoleculeParsedEvent is raised when an uploaded file was parsed and stored.
type MoleculeParsedEvent struct {
	MoleculeID common.ID
	Format     string
	Engine     string
}

func (e MoleculeParsedEvent) EventType() string      { return EventMoleculeParsed }
func (e MoleculeParsedEvent) AggregateID() common.ID { return e.MoleculeID }

// MoleculeCreatedEvent is raised when a molecule was built from SMILES.
type MoleculeCreatedEvent struct {
	MoleculeID common.ID
	SMILES     string
}

func (e MoleculeCreatedEvent) EventType() string      { return EventMoleculeCreated }
func (e MoleculeCreatedEvent) AggregateID() common.ID { return e.MoleculeID }

// GeometryUpdatedEvent is raised when a SMILES layout was regenerated.
type GeometryUpdatedEvent struct {
	MoleculeID common.ID
	Minimized  bool
}

func (e GeometryUpdatedEvent) EventType() string      { return EventMoleculeGeometryUpdated }
func (e GeometryUpdatedEvent) AggregateID() common.ID { return e.MoleculeID }

// MoleculeDeletedEvent is raised when a molecule was removed.
type MoleculeDeletedEvent struct {
	MoleculeID common.ID
}

func (e MoleculeDeletedEvent) EventType() string      { return EventMoleculeDeleted }
func (e MoleculeDeletedEvent) AggregateID() common.ID { return e.MoleculeID }

// ─────────────────────────────────────────────────────────────────────────────
// Molecule Aggregate Root
// ─────────────────────────────────────────────────────────────────────────────

// Molecule is the stored aggregate: a canonical Structure plus provenance.
// The Structure itself is never mutated; geometry updates swap it for a new
// one.
type Molecule struct {
	ID        common.ID
	Source    mtypes.Source
	Format    string
	Filename  string
	SMILES    string
	Minimized bool
	Engine    string
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int

	Structure *Structure

	// Domain events (not persisted, cleared after publishing)
	events []DomainEvent
}

// NewParsedMolecule wraps a structure produced by the parser coordinator.
func NewParsedMolecule(s *Structure, format, filename, engine string) (*Molecule, error) {
	if s == nil {
		return nil, errors.InvalidParam("structure is required")
	}
	if format == "" {
		return nil, errors.InvalidParam("format is required")
	}
	now := time.Now().UTC()
	m := &Molecule{
		ID:        common.NewID(),
		Source:    mtypes.SourceUpload,
		Format:    format,
		Filename:  filename,
		Engine:    engine,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
		Structure: s,
	}
	m.events = append(m.events, MoleculeParsedEvent{MoleculeID: m.ID, Format: format, Engine: engine})
	return m, nil
}

// NewSMILESMolecule lays out smiles and wraps the result.
func NewSMILESMolecule(smiles, name string, minimize bool) (*Molecule, error) {
	smiles = strings.TrimSpace(smiles)
	if smiles == "" {
		return nil, errors.InvalidParam("SMILES string cannot be empty")
	}
	s, err := BuildFromSMILES(smiles, name, minimize)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	m := &Molecule{
		ID:        common.NewID(),
		Source:    mtypes.SourceSMILES,
		SMILES:    smiles,
		Minimized: minimize,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
		Structure: s,
	}
	m.events = append(m.events, MoleculeCreatedEvent{MoleculeID: m.ID, SMILES: smiles})
	return m, nil
}

// RegenerateGeometry rebuilds the layout of a SMILES-sourced molecule.
// Parsed files carry measured coordinates and are rejected.
func (m *Molecule) RegenerateGeometry(minimize bool) error {
	if m.Source != mtypes.SourceSMILES {
		return errors.New(errors.ErrCodeMoleculeGeometryFixed, "geometry can only be regenerated for SMILES molecules").
			WithDetail(fmt.Sprintf("molecule %s has source %q", m.ID, m.Source))
	}
	name := ""
	if m.Structure != nil && m.Structure.Name != nil {
		name = *m.Structure.Name
	}
	s, err := BuildFromSMILES(m.SMILES, name, minimize)
	if err != nil {
		return err
	}
	m.Structure = s
	m.Minimized = minimize
	m.UpdatedAt = time.Now().UTC()
	m.Version++
	m.events = append(m.events, GeometryUpdatedEvent{MoleculeID: m.ID, Minimized: minimize})
	return nil
}

// MarkDeleted records the deletion event.  Removal is the repository's job.
func (m *Molecule) MarkDeleted() {
	m.events = append(m.events, MoleculeDeletedEvent{MoleculeID: m.ID})
}

// Events returns and clears pending domain events.
func (m *Molecule) Events() []DomainEvent {
	events := m.events
	m.events = nil
	return events
}

// ToDTO converts the aggregate to its transport representation.
func (m *Molecule) ToDTO() mtypes.MoleculeDTO {
	dto := mtypes.MoleculeDTO{
		ID:        m.ID,
		Source:    m.Source,
		Format:    m.Format,
		Filename:  m.Filename,
		SMILES:    m.SMILES,
		Minimized: m.Minimized,
		Engine:    m.Engine,
		CreatedAt: common.Timestamp(m.CreatedAt),
		UpdatedAt: common.Timestamp(m.UpdatedAt),
	}
	if m.Structure != nil {
		dto.StructureDTO = m.Structure.ToDTO()
	}
	return dto
}

// FromDTO restores an aggregate previously converted with ToDTO.  Stores use
// it to rehydrate persisted documents; no events are raised.
func FromDTO(dto mtypes.MoleculeDTO, version int) *Molecule {
	return &Molecule{
		ID:        dto.ID,
		Source:    dto.Source,
		Format:    dto.Format,
		Filename:  dto.Filename,
		SMILES:    dto.SMILES,
		Minimized: dto.Minimized,
		Engine:    dto.Engine,
		CreatedAt: time.Time(dto.CreatedAt),
		UpdatedAt: time.Time(dto.UpdatedAt),
		Version:   version,
		Structure: StructureFromDTO(dto.StructureDTO),
	}
}

//Personal.AI order the ending
