package molecule

import (
	"context"

	"github.com/turtacn/molstruct/pkg/types/common"
)

// Repository defines the persistence contract for Molecule aggregates.
// Implementations are keyed stores with no eviction and must be safe for
// concurrent use.
type Repository interface {
	// Save inserts a molecule or replaces the stored one with the same ID.
	Save(ctx context.Context, mol *Molecule) error

	// FindByID retrieves a molecule by its identifier.
	// Returns errors.CodeMoleculeNotFound if no molecule with the given ID exists.
	FindByID(ctx context.Context, id common.ID) (*Molecule, error)

	// List returns one page of molecules, newest first, and the total count.
	List(ctx context.Context, offset, limit int) ([]*Molecule, int64, error)

	// Delete removes a molecule by ID.
	// Returns errors.CodeMoleculeNotFound if the molecule does not exist.
	Delete(ctx context.Context, id common.ID) error
}

//Personal.AI order the ending
