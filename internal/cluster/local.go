package cluster

import (
	"context"
	"sync"

	"github.com/23skdu/gridscreen/internal/core"
	"github.com/23skdu/gridscreen/internal/molecule"
)

// LocalGroup is a rank of an in-process group. Ranks run on separate
// goroutines and share nothing but the collectives.
type LocalGroup struct {
	*member
	closeOnce sync.Once
}

// NewLocal creates size connected ranks. The group shuts down once every
// rank has been closed.
func NewLocal(size int) ([]*LocalGroup, error) {
	if err := checkMembership(0, size); err != nil {
		return nil, err
	}
	coord := newCoordinator(size, size)
	groups := make([]*LocalGroup, size)
	for rank := range groups {
		groups[rank] = &LocalGroup{member: newMember(rank, coord, core.TransportLocal)}
	}
	return groups, nil
}

func (g *LocalGroup) Rank() int                 { return g.rank }
func (g *LocalGroup) Size() int                 { return g.coord.size }
func (g *LocalGroup) Transport() core.Transport { return core.TransportLocal }

func (g *LocalGroup) ShareStore(ctx context.Context, s *molecule.Store) (*molecule.Store, error) {
	return g.shareStore(ctx, s)
}

func (g *LocalGroup) GatherCounts(ctx context.Context, n int) ([]int, error) {
	return g.gatherCounts(ctx, n)
}

func (g *LocalGroup) Gatherv(ctx context.Context, local []float64, counts []int) ([]float64, error) {
	return g.gatherv(ctx, local, counts)
}

func (g *LocalGroup) Barrier(ctx context.Context) error { return g.barrier(ctx) }

func (g *LocalGroup) Close() error {
	g.closeOnce.Do(g.coord.release)
	return nil
}
