package molecule

import (
	"fmt"

	"github.com/turtacn/molstruct/pkg/errors"
)

// BondDistance is the length of one bond in angstroms.
type BondDistance struct {
	Atom1, Atom2 int
	Distance     float64
}

// AtomDistance returns the Euclidean distance between atoms i and j.
func AtomDistance(s *Structure, i, j int) (float64, error) {
	n := len(s.Atoms)
	if i < 0 || i >= n || j < 0 || j >= n {
		return 0, errors.InvalidParam("atom index out of range").
			WithDetail(fmt.Sprintf("atoms %d and %d, molecule has %d atoms", i, j, n))
	}
	a, b := s.Atoms[i], s.Atoms[j]
	return distance(a.X, a.Y, a.Z, b.X, b.Y, b.Z), nil
}

// BondDistances returns the length of every bond, in bond order.
func BondDistances(s *Structure) []BondDistance {
	out := make([]BondDistance, 0, len(s.Bonds))
	for _, b := range s.Bonds {
		a, c := s.Atoms[b.Atom1], s.Atoms[b.Atom2]
		out = append(out, BondDistance{
			Atom1:    b.Atom1,
			Atom2:    b.Atom2,
			Distance: distance(a.X, a.Y, a.Z, c.X, c.Y, c.Z),
		})
	}
	return out
}

//Personal.AI order the ending
