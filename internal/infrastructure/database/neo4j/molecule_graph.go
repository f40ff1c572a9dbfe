package neo4j

import (
	"context"
	"encoding/json"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/turtacn/molstruct/internal/domain/molecule"
	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molstruct/pkg/errors"
	"github.com/turtacn/molstruct/pkg/types/common"
	mtypes "github.com/turtacn/molstruct/pkg/types/molecule"
)

// graphDocument is the JSON payload kept on each Molecule node.  The atom
// and bond subgraph mirrors it for Cypher traversal.
type graphDocument struct {
	Version  int                `json:"version"`
	Molecule mtypes.MoleculeDTO `json:"molecule"`
}

var schemaStatements = []string{
	"CREATE CONSTRAINT molecule_id IF NOT EXISTS FOR (m:Molecule) REQUIRE m.id IS UNIQUE",
	"CREATE INDEX atom_molecule IF NOT EXISTS FOR (a:Atom) ON (a.molecule_id, a.index)",
}

const (
	cypherUpsertMolecule = `
MERGE (m:Molecule {id: $id})
SET m.version = $version, m.created_at = $created_at, m.formula = $formula,
    m.atom_count = $atom_count, m.source = $source, m.document = $document`

	cypherClearAtoms = `
MATCH (:Molecule {id: $id})-[:HAS_ATOM]->(a:Atom)
DETACH DELETE a`

	cypherCreateAtoms = `
MATCH (m:Molecule {id: $id})
UNWIND $atoms AS atom
CREATE (m)-[:HAS_ATOM]->(:Atom {molecule_id: $id, index: atom.index, symbol: atom.symbol,
    x: atom.x, y: atom.y, z: atom.z})`

	cypherCreateBonds = `
UNWIND $bonds AS bond
MATCH (a:Atom {molecule_id: $id, index: bond.atom1}), (b:Atom {molecule_id: $id, index: bond.atom2})
CREATE (a)-[:BOND {order: bond.order}]->(b)`

	cypherFindMolecule = `
MATCH (m:Molecule {id: $id})
RETURN m.document AS document`

	cypherCountMolecules = `
MATCH (m:Molecule)
RETURN count(m) AS total`

	cypherListMolecules = `
MATCH (m:Molecule)
RETURN m.document AS document
ORDER BY m.created_at DESC, m.id
SKIP $offset LIMIT $limit`

	cypherDeleteMolecule = `
MATCH (m:Molecule {id: $id})
OPTIONAL MATCH (m)-[:HAS_ATOM]->(a:Atom)
DETACH DELETE a, m
RETURN count(DISTINCT m) AS deleted`
)

// MoleculeGraph is a molecule.Repository backed by Neo4j.
type MoleculeGraph struct {
	driver *Driver
	logger logging.Logger
}

// NewMoleculeGraph returns a graph-backed repository.
func NewMoleculeGraph(driver *Driver, log logging.Logger) *MoleculeGraph {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &MoleculeGraph{driver: driver, logger: log}
}

var _ molecule.Repository = (*MoleculeGraph)(nil)

func notFound(id common.ID) error {
	return errors.New(errors.ErrCodeMoleculeNotFound, "molecule not found").WithDetail(id.String())
}

// EnsureSchema creates the uniqueness constraint and atom lookup index.
func (g *MoleculeGraph) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		_, err := g.driver.ExecuteWrite(ctx, func(tx Transaction) (any, error) {
			return nil, run(ctx, tx, stmt, nil)
		})
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create neo4j schema")
		}
	}
	return nil
}

func (g *MoleculeGraph) Save(ctx context.Context, mol *molecule.Molecule) error {
	dto := mol.ToDTO()
	doc, err := json.Marshal(graphDocument{Version: mol.Version, Molecule: dto})
	if err != nil {
		return errors.New(errors.ErrCodeSerialization, "serialization failed").WithCause(err)
	}

	id := mol.ID.String()
	atoms := make([]map[string]any, len(dto.Atoms))
	for i, a := range dto.Atoms {
		atoms[i] = map[string]any{"index": a.Index, "symbol": a.Symbol, "x": a.X, "y": a.Y, "z": a.Z}
	}
	bonds := make([]map[string]any, len(dto.Bonds))
	for i, b := range dto.Bonds {
		bonds[i] = map[string]any{"atom1": b.Atom1, "atom2": b.Atom2, "order": b.Order}
	}

	_, err = g.driver.ExecuteWrite(ctx, func(tx Transaction) (any, error) {
		if err := run(ctx, tx, cypherUpsertMolecule, map[string]any{
			"id":         id,
			"version":    mol.Version,
			"created_at": mol.CreatedAt.UnixMilli(),
			"formula":    dto.Formula,
			"atom_count": dto.AtomCount,
			"source":     string(dto.Source),
			"document":   string(doc),
		}); err != nil {
			return nil, err
		}
		if err := run(ctx, tx, cypherClearAtoms, map[string]any{"id": id}); err != nil {
			return nil, err
		}
		if len(atoms) > 0 {
			if err := run(ctx, tx, cypherCreateAtoms, map[string]any{"id": id, "atoms": atoms}); err != nil {
				return nil, err
			}
		}
		if len(bonds) > 0 {
			if err := run(ctx, tx, cypherCreateBonds, map[string]any{"id": id, "bonds": bonds}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to save molecule")
	}
	return nil
}

func (g *MoleculeGraph) FindByID(ctx context.Context, id common.ID) (*molecule.Molecule, error) {
	out, err := g.driver.ExecuteRead(ctx, func(tx Transaction) (any, error) {
		res, err := tx.Run(ctx, cypherFindMolecule, map[string]any{"id": id.String()})
		if err != nil {
			return nil, err
		}
		return collect(ctx, res, documentOf)
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load molecule")
	}
	docs := out.([]string)
	if len(docs) == 0 {
		return nil, notFound(id)
	}
	return decodeMolecule(docs[0])
}

func (g *MoleculeGraph) List(ctx context.Context, offset, limit int) ([]*molecule.Molecule, int64, error) {
	type page struct {
		total int64
		docs  []string
	}
	out, err := g.driver.ExecuteRead(ctx, func(tx Transaction) (any, error) {
		res, err := tx.Run(ctx, cypherCountMolecules, nil)
		if err != nil {
			return nil, err
		}
		totals, err := collect(ctx, res, func(r *neo4j.Record) (int64, error) { return int64Of(r, "total") })
		if err != nil {
			return nil, err
		}
		p := page{}
		if len(totals) > 0 {
			p.total = totals[0]
		}
		if limit <= 0 || int64(offset) >= p.total {
			return p, nil
		}
		res, err = tx.Run(ctx, cypherListMolecules, map[string]any{"offset": int64(offset), "limit": int64(limit)})
		if err != nil {
			return nil, err
		}
		p.docs, err = collect(ctx, res, documentOf)
		return p, err
	})
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list molecules")
	}

	p := out.(page)
	mols := make([]*molecule.Molecule, 0, len(p.docs))
	for _, d := range p.docs {
		m, err := decodeMolecule(d)
		if err != nil {
			return nil, 0, err
		}
		mols = append(mols, m)
	}
	return mols, p.total, nil
}

func (g *MoleculeGraph) Delete(ctx context.Context, id common.ID) error {
	out, err := g.driver.ExecuteWrite(ctx, func(tx Transaction) (any, error) {
		res, err := tx.Run(ctx, cypherDeleteMolecule, map[string]any{"id": id.String()})
		if err != nil {
			return nil, err
		}
		n, err := collect(ctx, res, func(r *neo4j.Record) (int64, error) { return int64Of(r, "deleted") })
		if err != nil || len(n) == 0 {
			return int64(0), err
		}
		return n[0], nil
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to delete molecule")
	}
	if out.(int64) == 0 {
		return notFound(id)
	}
	g.logger.Debug("molecule graph deleted", logging.String(logging.FieldMoleculeID, id.String()))
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Record helpers
// ─────────────────────────────────────────────────────────────────────────────

func run(ctx context.Context, tx Transaction, cypher string, params map[string]any) error {
	res, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return err
	}
	for res.Next(ctx) {
	}
	return res.Err()
}

func documentOf(r *neo4j.Record) (string, error) {
	v, ok := r.Get("document")
	if !ok {
		return "", errors.New(errors.ErrCodeDatabaseError, "record has no document")
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.New(errors.ErrCodeDatabaseError, "molecule document is not a string")
	}
	return s, nil
}

func int64Of(r *neo4j.Record, key string) (int64, error) {
	v, ok := r.Get(key)
	if !ok {
		return 0, errors.New(errors.ErrCodeDatabaseError, "record has no "+key)
	}
	n, ok := v.(int64)
	if !ok {
		return 0, errors.New(errors.ErrCodeDatabaseError, key+" is not an integer")
	}
	return n, nil
}

func decodeMolecule(data string) (*molecule.Molecule, error) {
	var doc graphDocument
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, errors.New(errors.ErrCodeSerialization, "serialization failed").WithCause(err)
	}
	return molecule.FromDTO(doc.Molecule, doc.Version), nil
}

//Personal.AI order the ending
