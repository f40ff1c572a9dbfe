package molecule

import "math"

// BondToleranceFactor scales the covalent radius sum into the bonding cutoff.
const BondToleranceFactor = 1.2

// InferBonds derives single bonds from interatomic distances for formats that
// carry no connectivity.  Atoms i<j are bonded when their distance is at most
// BondToleranceFactor times the sum of their covalent radii.  Pairs involving
// an unknown element are skipped; Assemble reports those atoms.
func InferBonds(atoms []RawAtom) []RawBond {
	radii := make([]float64, len(atoms))
	for i, a := range atoms {
		if e, ok := LookupElement(a.Symbol); ok {
			radii[i] = e.CovalentRadius
		}
	}

	var bonds []RawBond
	for i := 0; i < len(atoms); i++ {
		if radii[i] == 0 {
			continue
		}
		for j := i + 1; j < len(atoms); j++ {
			if radii[j] == 0 {
				continue
			}
			cutoff := BondToleranceFactor * (radii[i] + radii[j])
			if distance(atoms[i].X, atoms[i].Y, atoms[i].Z, atoms[j].X, atoms[j].Y, atoms[j].Z) <= cutoff {
				bonds = append(bonds, RawBond{Atom1: i, Atom2: j, Order: 1})
			}
		}
	}
	return bonds
}

func distance(x1, y1, z1, x2, y2, z2 float64) float64 {
	dx, dy, dz := x1-x2, y1-y2, z1-z2
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

//Personal.AI order the ending
