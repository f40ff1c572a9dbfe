package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/turtacn/molstruct/internal/domain/molecule"
	"github.com/turtacn/molstruct/internal/infrastructure/database/postgres"
	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
	appErrors "github.com/turtacn/molstruct/pkg/errors"
	"github.com/turtacn/molstruct/pkg/types/common"
	mtypes "github.com/turtacn/molstruct/pkg/types/molecule"
)

const moleculeColumns = `id, source, format, filename, smiles, minimized, engine,
	name, formula, atom_count, molecular_weight, structure, version, created_at, updated_at`

// ─────────────────────────────────────────────────────────────────────────────
// PostgresMoleculeRepo
// ─────────────────────────────────────────────────────────────────────────────

// PostgresMoleculeRepo is the PostgreSQL implementation of molecule.Repository.
// Summary columns are kept alongside the structure JSONB so lists and ad-hoc
// queries need not decode every document.
type PostgresMoleculeRepo struct {
	conn   *postgres.Connection
	logger logging.Logger
}

// NewPostgresMoleculeRepo constructs a repository over an open connection.
func NewPostgresMoleculeRepo(conn *postgres.Connection, log logging.Logger) *PostgresMoleculeRepo {
	return &PostgresMoleculeRepo{conn: conn, logger: log}
}

var _ molecule.Repository = (*PostgresMoleculeRepo)(nil)

func (r *PostgresMoleculeRepo) db() queryExecutor { return r.conn.DB() }

// Save upserts a molecule.  Provenance columns are immutable after insert.
func (r *PostgresMoleculeRepo) Save(ctx context.Context, m *molecule.Molecule) error {
	dto := m.ToDTO()
	structure, err := json.Marshal(dto.StructureDTO)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrCodeSerialization, "failed to encode structure")
	}

	_, err = r.db().ExecContext(ctx, `
		INSERT INTO molecules (`+moleculeColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (id) DO UPDATE SET
			minimized        = EXCLUDED.minimized,
			name             = EXCLUDED.name,
			formula          = EXCLUDED.formula,
			atom_count       = EXCLUDED.atom_count,
			molecular_weight = EXCLUDED.molecular_weight,
			structure        = EXCLUDED.structure,
			version          = EXCLUDED.version,
			updated_at       = EXCLUDED.updated_at`,
		m.ID.String(), string(m.Source), m.Format, m.Filename, m.SMILES, m.Minimized, m.Engine,
		nullableName(dto.Name), dto.Formula, dto.AtomCount, dto.MolecularWeight, structure,
		m.Version, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("failed to save molecule", logging.String(logging.FieldMoleculeID, m.ID.String()), logging.Err(err))
		return dbError(err, "failed to save molecule")
	}
	return nil
}

// FindByID loads one molecule.
func (r *PostgresMoleculeRepo) FindByID(ctx context.Context, id common.ID) (*molecule.Molecule, error) {
	row := r.db().QueryRowContext(ctx, `SELECT `+moleculeColumns+` FROM molecules WHERE id = $1`, id.String())
	m, err := scanMolecule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, moleculeNotFound(id)
	}
	if err != nil {
		return nil, dbError(err, "failed to load molecule")
	}
	return m, nil
}

// List returns one page ordered newest first, ties broken by id.  The count
// and the page are read in one transaction.
func (r *PostgresMoleculeRepo) List(ctx context.Context, offset, limit int) ([]*molecule.Molecule, int64, error) {
	var total int64
	out := []*molecule.Molecule{}
	err := r.conn.InTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM molecules`).Scan(&total); err != nil {
			return dbError(err, "failed to count molecules")
		}
		if limit <= 0 || int64(offset) >= total {
			return nil
		}
		page, err := listPage(ctx, tx, offset, limit)
		out = page
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func listPage(ctx context.Context, q queryExecutor, offset, limit int) ([]*molecule.Molecule, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+moleculeColumns+` FROM molecules ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, dbError(err, "failed to list molecules")
	}
	defer rows.Close()

	out := make([]*molecule.Molecule, 0, limit)
	for rows.Next() {
		m, err := scanMolecule(rows)
		if err != nil {
			return nil, dbError(err, "failed to scan molecule")
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "failed to list molecules")
	}
	return out, nil
}

// Delete removes a molecule.
func (r *PostgresMoleculeRepo) Delete(ctx context.Context, id common.ID) error {
	res, err := r.db().ExecContext(ctx, `DELETE FROM molecules WHERE id = $1`, id.String())
	if err != nil {
		return dbError(err, "failed to delete molecule")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dbError(err, "failed to delete molecule")
	}
	if n == 0 {
		return moleculeNotFound(id)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Row mapping
// ─────────────────────────────────────────────────────────────────────────────

func nullableName(name *string) sql.NullString {
	if name == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *name, Valid: true}
}

func scanMolecule(s scanner) (*molecule.Molecule, error) {
	var (
		dto       mtypes.MoleculeDTO
		id        string
		source    string
		name      sql.NullString
		structure []byte
		version   int
		created   sql.NullTime
		updated   sql.NullTime
	)
	err := s.Scan(&id, &source, &dto.Format, &dto.Filename, &dto.SMILES, &dto.Minimized, &dto.Engine,
		&name, &dto.Formula, &dto.AtomCount, &dto.MolecularWeight, &structure, &version, &created, &updated)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(structure, &dto.StructureDTO); err != nil {
		return nil, err
	}
	dto.ID = common.ID(id)
	dto.Source = mtypes.Source(source)
	if name.Valid {
		n := name.String
		dto.Name = &n
	} else {
		dto.Name = nil
	}
	dto.CreatedAt = common.Timestamp(created.Time)
	dto.UpdatedAt = common.Timestamp(updated.Time)
	return molecule.FromDTO(dto, version), nil
}

//Personal.AI order the ending
