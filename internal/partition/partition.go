// Package partition maps the canonical index space of a score grid onto
// workers as contiguous, non-overlapping, size-balanced half-open ranges.
package partition

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidWorkerCount is returned when workers <= 0.
	ErrInvalidWorkerCount = errors.New("partition: worker count must be positive")
	// ErrInvalidRank is returned when rank is outside [0, workers).
	ErrInvalidRank = errors.New("partition: rank out of range")
	// ErrInvalidTotal is returned for a negative index space.
	ErrInvalidTotal = errors.New("partition: total must not be negative")
)

// Range is the half-open interval [Start, End) of canonical indices.
type Range struct {
	Start int
	End   int
}

// Len is the number of indices in the range.
func (r Range) Len() int { return r.End - r.Start }

// Empty reports whether the range holds no indices. Empty ranges are valid
// assignments and executors treat them as a successful no-op.
func (r Range) Empty() bool { return r.End <= r.Start }

// Contains reports whether idx falls inside the range.
func (r Range) Contains(idx int) bool { return idx >= r.Start && idx < r.End }

func (r Range) String() string { return fmt.Sprintf("[%d,%d)", r.Start, r.End) }

// Split cuts r at r.Start+n, clamped to r.
func (r Range) Split(n int) (head, tail Range) {
	mid := r.Start + n
	if mid < r.Start {
		mid = r.Start
	}
	if mid > r.End {
		mid = r.End
	}
	return Range{Start: r.Start, End: mid}, Range{Start: mid, End: r.End}
}

// For returns the range owned by rank when total indices are shared among
// workers. The first total%workers ranks get one extra index.
func For(total, workers, rank int) (Range, error) {
	if workers <= 0 {
		return Range{}, fmt.Errorf("%w: %d", ErrInvalidWorkerCount, workers)
	}
	if rank < 0 || rank >= workers {
		return Range{}, fmt.Errorf("%w: rank %d of %d", ErrInvalidRank, rank, workers)
	}
	if total < 0 {
		return Range{}, fmt.Errorf("%w: %d", ErrInvalidTotal, total)
	}
	chunk := total / workers
	rem := total % workers
	start := rank*chunk + min(rank, rem)
	end := start + chunk
	if rank < rem {
		end++
	}
	return Range{Start: start, End: end}, nil
}

// Split returns the ranges of all workers in rank order.
func Split(total, workers int) ([]Range, error) {
	if workers <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWorkerCount, workers)
	}
	ranges := make([]Range, workers)
	for rank := range ranges {
		r, err := For(total, workers, rank)
		if err != nil {
			return nil, err
		}
		ranges[rank] = r
	}
	return ranges, nil
}

// Tiles checks that ranges cover [0, total) in order with no gap or overlap.
func Tiles(ranges []Range, total int) error {
	next := 0
	for i, r := range ranges {
		if r.Start != next {
			return fmt.Errorf("partition: range %d %s starts at %d, want %d", i, r, r.Start, next)
		}
		if r.End < r.Start {
			return fmt.Errorf("partition: range %d %s is inverted", i, r)
		}
		next = r.End
	}
	if next != total {
		return fmt.Errorf("partition: ranges end at %d, want %d", next, total)
	}
	return nil
}

// Cell maps a canonical index back to its (protein, ligand) pair.
func Cell(idx, numLigands int) (protein, ligand int) {
	return idx / numLigands, idx % numLigands
}

// Index is the canonical index of a (protein, ligand) pair.
func Index(protein, ligand, numLigands int) int {
	return protein*numLigands + ligand
}
