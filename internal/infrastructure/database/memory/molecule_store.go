// Package memory provides an in-process molecule store for single-replica
// deployments, the CLI and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/turtacn/molstruct/internal/domain/molecule"
	"github.com/turtacn/molstruct/pkg/errors"
	"github.com/turtacn/molstruct/pkg/types/common"
)

// MoleculeStore keeps molecules in a map guarded by a RWMutex.  Values are
// copied on the way in and out so callers never share an aggregate.
type MoleculeStore struct {
	mu        sync.RWMutex
	molecules map[common.ID]*molecule.Molecule
}

// NewMoleculeStore creates an empty store.
func NewMoleculeStore() *MoleculeStore {
	return &MoleculeStore{molecules: make(map[common.ID]*molecule.Molecule)}
}

var _ molecule.Repository = (*MoleculeStore)(nil)

func clone(m *molecule.Molecule) *molecule.Molecule {
	return molecule.FromDTO(m.ToDTO(), m.Version)
}

// Save inserts or replaces a molecule.
func (s *MoleculeStore) Save(ctx context.Context, mol *molecule.Molecule) error {
	if mol == nil || mol.ID == "" {
		return errors.InvalidParam("molecule with an id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.molecules[mol.ID] = clone(mol)
	return nil
}

// FindByID retrieves a molecule by ID.
func (s *MoleculeStore) FindByID(ctx context.Context, id common.ID) (*molecule.Molecule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.molecules[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeMoleculeNotFound, "molecule not found").WithDetail(id.String())
	}
	return clone(m), nil
}

// List returns molecules newest first.  Ties on creation time order by ID.
func (s *MoleculeStore) List(ctx context.Context, offset, limit int) ([]*molecule.Molecule, int64, error) {
	s.mu.RLock()
	all := make([]*molecule.Molecule, 0, len(s.molecules))
	for _, m := range s.molecules {
		all = append(all, m)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := int64(len(all))
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) || limit <= 0 {
		return []*molecule.Molecule{}, total, nil
	}
	end := min(offset+limit, len(all))
	out := make([]*molecule.Molecule, 0, end-offset)
	for _, m := range all[offset:end] {
		out = append(out, clone(m))
	}
	return out, total, nil
}

// Delete removes a molecule by ID.
func (s *MoleculeStore) Delete(ctx context.Context, id common.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.molecules[id]; !ok {
		return errors.New(errors.ErrCodeMoleculeNotFound, "molecule not found").WithDetail(id.String())
	}
	delete(s.molecules, id)
	return nil
}

//Personal.AI order the ending
