// Package cluster provides the process group a distributed run executes on:
// a fixed set of ranks that share molecules from rank 0 and gather their score
// buffers back to it.
package cluster

import (
	"context"
	"errors"
	"fmt"

	"github.com/23skdu/gridscreen/internal/core"
	"github.com/23skdu/gridscreen/internal/molecule"
)

// Root is the rank that owns the input molecules and the assembled grid.
const Root = 0

var (
	// ErrInvalidGroup is returned for a non-positive size or a rank outside it.
	ErrInvalidGroup = errors.New("cluster: invalid group size or rank")
	// ErrDuplicateContribution is returned when a rank contributes twice to one collective.
	ErrDuplicateContribution = errors.New("cluster: duplicate contribution")
	// ErrCountMismatch is returned when a gathered buffer disagrees with its announced count.
	ErrCountMismatch = errors.New("cluster: gathered buffer length does not match count")
	// ErrClosed is returned by collectives on a closed group.
	ErrClosed = errors.New("cluster: group closed")
)

// Group is one rank's view of the process group. Every rank must call the
// collectives in the same order; a rank that never arrives blocks the others
// until their contexts expire.
type Group interface {
	Rank() int
	Size() int
	Transport() core.Transport

	// ShareStore publishes s from the root and returns each rank its own copy.
	// Non-root ranks pass nil.
	ShareStore(ctx context.Context, s *molecule.Store) (*molecule.Store, error)
	// GatherCounts collects every rank's buffer length. The root receives one
	// count per rank in rank order; other ranks receive nil.
	GatherCounts(ctx context.Context, n int) ([]int, error)
	// Gatherv concatenates every rank's buffer in rank order at the root. The
	// root passes the counts returned by GatherCounts; other ranks pass nil and
	// receive nil.
	Gatherv(ctx context.Context, local []float64, counts []int) ([]float64, error)
	// Barrier returns once every rank has entered it.
	Barrier(ctx context.Context) error
	Close() error
}

func checkMembership(rank, size int) error {
	if size <= 0 || rank < 0 || rank >= size {
		return fmt.Errorf("%w: rank %d of %d", ErrInvalidGroup, rank, size)
	}
	return nil
}

// sequencer names the n-th call of each collective so ranks line up without
// exchanging extra messages.
type sequencer map[string]int

func (s sequencer) next(op string) string {
	n := s[op]
	s[op] = n + 1
	return fmt.Sprintf("%s/%d", op, n)
}

const (
	opStore   = "store"
	opCounts  = "counts"
	opGatherv = "gatherv"
	opBarrier = "barrier"
)
