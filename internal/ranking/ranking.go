// Package ranking turns a score grid into the globally ordered result list:
// best pair, full stable ranking and top-K.
package ranking

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/23skdu/gridscreen/internal/core"
	"github.com/23skdu/gridscreen/internal/partition"
)

// DefaultTopK is the number of results reported when no K is configured.
const DefaultTopK = 10

// Result is one scored (protein, ligand) pair. Lower scores are better.
type Result struct {
	Protein int
	Ligand  int
	Score   float64
}

// Best returns the lowest-scoring pair. On equal scores the pair with the
// lowest canonical index wins. ok is false for an empty or partial grid.
func Best(g *core.Grid) (best Result, ok bool) {
	if g == nil || len(g.Scores) == 0 {
		return Result{}, false
	}
	bi := 0
	for i, s := range g.Scores {
		if s < g.Scores[bi] {
			bi = i
		}
	}
	p, l := partition.Cell(bi, g.NumLigands)
	return Result{Protein: p, Ligand: l, Score: g.Scores[bi]}, true
}

// Rank lists every cell ascending by score, ties in canonical index order.
// The grid is not modified, so ranking the same grid twice gives the same list.
func Rank(g *core.Grid) []Result {
	if g == nil || len(g.Scores) == 0 {
		return nil
	}
	out := make([]Result, len(g.Scores))
	for i, s := range g.Scores {
		p, l := partition.Cell(i, g.NumLigands)
		out[i] = Result{Protein: p, Ligand: l, Score: s}
	}
	// out starts in canonical order, so a stable sort keeps index ties ordered
	slices.SortStableFunc(out, func(a, b Result) int {
		return cmp.Compare(a.Score, b.Score)
	})
	return out
}

// TopK returns the first k results. k <= 0 selects DefaultTopK.
func TopK(results []Result, k int) []Result {
	if k <= 0 {
		k = DefaultTopK
	}
	if k > len(results) {
		k = len(results)
	}
	return results[:k:k]
}

// Assemble places per-worker buffers at their canonical positions. The ranges
// must tile [0, numProteins*numLigands) and each buffer must match its range.
func Assemble(numProteins, numLigands int, ranges []partition.Range, buffers [][]float64) (*core.Grid, error) {
	if len(ranges) != len(buffers) {
		return nil, fmt.Errorf("%w: %d ranges for %d buffers", core.ErrGridShape, len(ranges), len(buffers))
	}
	if numProteins < 0 || numLigands < 0 {
		return nil, fmt.Errorf("%w: negative dimensions %dx%d", core.ErrGridShape, numProteins, numLigands)
	}
	grid := core.NewGrid(numProteins, numLigands)
	if err := partition.Tiles(ranges, grid.Total()); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrGridShape, err)
	}
	for i, r := range ranges {
		if len(buffers[i]) != r.Len() {
			return nil, fmt.Errorf("%w: worker %d range %s has %d scores", core.ErrGridShape, i, r, len(buffers[i]))
		}
		copy(grid.Scores[r.Start:r.End], buffers[i])
	}
	return grid, nil
}

// Summary holds aggregate statistics of a grid.
type Summary struct {
	Cells int
	Min   float64
	Max   float64
	Mean  float64
}

// Summarize computes min, max and mean over every cell.
func Summarize(g *core.Grid) (Summary, bool) {
	if g == nil || len(g.Scores) == 0 {
		return Summary{}, false
	}
	s := Summary{Cells: len(g.Scores), Min: math.Inf(1), Max: math.Inf(-1)}
	var sum float64
	for _, v := range g.Scores {
		s.Min = min(s.Min, v)
		s.Max = max(s.Max, v)
		sum += v
	}
	s.Mean = sum / float64(len(g.Scores))
	return s, true
}
