// Package potential implements the pairwise scoring law shared by every
// backend: a Lennard-Jones sum with unit well depth and unit length scale.
package potential

import (
	"math"

	"github.com/23skdu/gridscreen/internal/molecule"
)

// MinDistance is the floor applied to interatomic distances to keep the
// r^-12 term finite.
const MinDistance = 1e-6

// LennardJones returns 4*(r^-12 - r^-6) with r clamped to MinDistance.
func LennardJones(r float64) float64 {
	if r < MinDistance {
		r = MinDistance
	}
	inv := 1 / r
	inv6 := inv * inv * inv * inv * inv * inv
	return 4 * (inv6*inv6 - inv6)
}

// accumulate sums the pair law over two packed xyz coordinate slices, in the
// same protein-major order as ScoreAtoms.
func accumulate(p, l []float64) float64 {
	var score float64
	for a := 0; a+2 < len(p); a += 3 {
		px, py, pz := p[a], p[a+1], p[a+2]
		for b := 0; b+2 < len(l); b += 3 {
			dx := px - l[b]
			dy := py - l[b+1]
			dz := pz - l[b+2]
			score += LennardJones(math.Sqrt(dx*dx + dy*dy + dz*dz))
		}
	}
	return score
}

// Score evaluates the interaction between a protein and a ligand. It returns
// 0 when either molecule has no atoms.
func Score(p, l molecule.Molecule) float64 {
	if p.Empty() || l.Empty() {
		return 0
	}
	return ScoreAtoms(p.Atoms(), l.Atoms())
}

// ScoreFlat evaluates protein i of pf against ligand j of lf.
func ScoreFlat(pf, lf *molecule.Flat, i, j int) float64 {
	return accumulate(pf.Atoms(i), lf.Atoms(j))
}

// ScoreAtoms evaluates the law directly on atom slices.
func ScoreAtoms(p, l []molecule.Atom) float64 {
	var score float64
	for _, pa := range p {
		for _, la := range l {
			dx := pa.X - la.X
			dy := pa.Y - la.Y
			dz := pa.Z - la.Z
			score += LennardJones(math.Sqrt(dx*dx + dy*dy + dz*dz))
		}
	}
	return score
}
