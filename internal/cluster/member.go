package cluster

import (
	"context"
	"fmt"
	"time"

	"github.com/23skdu/gridscreen/internal/core"
	"github.com/23skdu/gridscreen/internal/metrics"
	"github.com/23skdu/gridscreen/internal/molecule"
)

// member runs collectives against a coordinator in the same process. It backs
// every LocalGroup rank and the root of a FlightGroup.
type member struct {
	rank      int
	coord     *coordinator
	transport core.Transport
	seq       sequencer
}

func newMember(rank int, coord *coordinator, transport core.Transport) *member {
	return &member{rank: rank, coord: coord, transport: transport, seq: sequencer{}}
}

func (m *member) shareStore(ctx context.Context, s *molecule.Store) (*molecule.Store, error) {
	defer observe(opStore, time.Now())
	key := m.seq.next(opStore)
	if m.rank == Root {
		if s == nil {
			return nil, fmt.Errorf("cluster: root must share a store")
		}
		if _, err := m.coord.contribute(key, 1, Root, s); err != nil {
			return nil, err
		}
		return s, nil
	}
	r, err := m.coord.get(key, 1)
	if err != nil {
		return nil, err
	}
	if err := m.coord.await(ctx, r); err != nil {
		return nil, err
	}
	shared := r.parts[Root].(*molecule.Store)
	// rebuild from the flat arrays so no rank aliases the root's molecules
	return molecule.NewStoreFromFlat(shared.Flat()), nil
}

func (m *member) gatherCounts(ctx context.Context, n int) ([]int, error) {
	defer observe(opCounts, time.Now())
	key := m.seq.next(opCounts)
	r, err := m.coord.contribute(key, m.coord.size, m.rank, n)
	if err != nil {
		return nil, err
	}
	if m.rank != Root {
		return nil, nil
	}
	if err := m.coord.await(ctx, r); err != nil {
		return nil, err
	}
	defer m.coord.drop(key)
	counts := make([]int, m.coord.size)
	for rank := range counts {
		counts[rank] = r.parts[rank].(int)
	}
	return counts, nil
}

func (m *member) gatherv(ctx context.Context, local []float64, counts []int) ([]float64, error) {
	defer observe(opGatherv, time.Now())
	key := m.seq.next(opGatherv)
	buf := make([]float64, len(local))
	copy(buf, local)
	r, err := m.coord.contribute(key, m.coord.size, m.rank, buf)
	if err != nil {
		return nil, err
	}
	metrics.GatherBytesTotal.WithLabelValues(string(m.transport)).Add(float64(8 * len(local)))
	if m.rank != Root {
		return nil, nil
	}
	if err := m.coord.await(ctx, r); err != nil {
		return nil, err
	}
	defer m.coord.drop(key)
	return concat(r, counts)
}

func (m *member) barrier(ctx context.Context) error {
	defer observe(opBarrier, time.Now())
	key := m.seq.next(opBarrier)
	r, err := m.coord.contribute(key, m.coord.size, m.rank, nil)
	if err != nil {
		return err
	}
	return m.coord.await(ctx, r)
}

// concat joins a completed gather round in rank order, checking each part
// against the announced counts.
func concat(r *round, counts []int) ([]float64, error) {
	if len(counts) != len(r.parts) {
		return nil, fmt.Errorf("%w: %d counts for %d ranks", ErrCountMismatch, len(counts), len(r.parts))
	}
	total := 0
	for _, c := range counts {
		total += c
	}
	out := make([]float64, 0, total)
	for rank, c := range counts {
		part := r.parts[rank].([]float64)
		if len(part) != c {
			return nil, fmt.Errorf("%w: rank %d sent %d, announced %d", ErrCountMismatch, rank, len(part), c)
		}
		out = append(out, part...)
	}
	return out, nil
}

func observe(op string, start time.Time) {
	metrics.CollectiveDurationSeconds.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
