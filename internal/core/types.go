package core

import "fmt"

// Grid is the complete set of pairwise scores, stored row-major with the
// canonical index p*NumLigands + l.
type Grid struct {
	NumProteins int
	NumLigands  int
	// Scores is nil on non-root ranks of a distributed run.
	Scores []float64
}

// NewGrid allocates a zeroed grid. Its size is fixed before any worker writes.
func NewGrid(numProteins, numLigands int) *Grid {
	return &Grid{
		NumProteins: numProteins,
		NumLigands:  numLigands,
		Scores:      make([]float64, numProteins*numLigands),
	}
}

// WrapGrid adopts an existing buffer as a grid, checking its length.
func WrapGrid(numProteins, numLigands int, scores []float64) (*Grid, error) {
	if numProteins < 0 || numLigands < 0 {
		return nil, fmt.Errorf("%w: negative dimensions %dx%d", ErrGridShape, numProteins, numLigands)
	}
	if len(scores) != numProteins*numLigands {
		return nil, fmt.Errorf("%w: %d scores for %dx%d grid", ErrGridShape, len(scores), numProteins, numLigands)
	}
	return &Grid{NumProteins: numProteins, NumLigands: numLigands, Scores: scores}, nil
}

// Total is the number of cells, numProteins*numLigands.
func (g *Grid) Total() int {
	return g.NumProteins * g.NumLigands
}

// Index returns the canonical index of a (protein, ligand) pair.
func (g *Grid) Index(protein, ligand int) int {
	return protein*g.NumLigands + ligand
}

// At returns the score of a (protein, ligand) pair.
func (g *Grid) At(protein, ligand int) float64 {
	return g.Scores[g.Index(protein, ligand)]
}

// Partial reports whether this grid carries only the shape and no scores,
// which is the case on non-root ranks after a gather.
func (g *Grid) Partial() bool {
	return g.Scores == nil && g.Total() > 0
}
