package executor

import (
	"context"
	"fmt"

	"github.com/23skdu/gridscreen/internal/cluster"
	"github.com/23skdu/gridscreen/internal/concurrency"
	"github.com/23skdu/gridscreen/internal/core"
	gserrors "github.com/23skdu/gridscreen/internal/errors"
	"github.com/23skdu/gridscreen/internal/metrics"
	"github.com/23skdu/gridscreen/internal/molecule"
	"github.com/23skdu/gridscreen/internal/partition"
	"github.com/23skdu/gridscreen/internal/ranking"
	"github.com/rs/zerolog"
)

// Distributed splits the grid into one contiguous range per rank. Each rank
// fills a private buffer; the buffers meet only in the gather at the root.
// In hybrid mode a rank fills its range with the shared-memory pool instead
// of a single goroutine.
type Distributed struct {
	group  cluster.Group
	hybrid bool
	pool   concurrency.Config
	logger zerolog.Logger
}

func (d *Distributed) Name() core.Backend {
	if d.hybrid {
		return core.BackendHybrid
	}
	return core.BackendDistributed
}

// Execute runs this rank's share. The root passes the loaded store and gets
// the assembled grid; other ranks pass nil and get a partial grid.
func (d *Distributed) Execute(ctx context.Context, store *molecule.Store) (*core.Grid, error) {
	rank, size := d.group.Rank(), d.group.Size()
	log := d.logger.With().Str("backend", d.Name().String()).Int("rank", rank).Logger()

	if rank == cluster.Root {
		if err := requireStore(store); err != nil {
			return nil, err
		}
	} else {
		store = nil
	}
	local, err := d.group.ShareStore(ctx, store)
	if err != nil {
		return nil, gserrors.WrapNetworkError(err, "distributed", "share molecules")
	}

	total := local.Total()
	r, err := partition.For(total, size, rank)
	if err != nil {
		return nil, gserrors.WrapPartitionError(err, "distributed", "partition grid")
	}
	metrics.WorkRangeSize.WithLabelValues(d.Name().String()).Observe(float64(r.Len()))
	log.Debug().Stringer("range", r).Int("total", total).Msg("Evaluating local range")

	pool := concurrency.Config{Workers: 1}
	if d.hybrid {
		pool = d.pool
	}
	buf := make([]float64, r.Len())
	if err := NewHostEvaluator(local, pool, d.Name()).Evaluate(ctx, r, buf); err != nil {
		return nil, gserrors.WrapComputationError(err, "distributed", fmt.Sprintf("evaluate %s", r))
	}

	counts, err := d.group.GatherCounts(ctx, len(buf))
	if err != nil {
		return nil, gserrors.WrapNetworkError(err, "distributed", "gather counts")
	}
	all, err := d.group.Gatherv(ctx, buf, counts)
	if err != nil {
		return nil, gserrors.WrapNetworkError(err, "distributed", "gather scores")
	}

	if rank != cluster.Root {
		return &core.Grid{NumProteins: local.NumProteins(), NumLigands: local.NumLigands()}, nil
	}
	return assembleGathered(local.NumProteins(), local.NumLigands(), size, counts, all)
}

// assembleGathered checks that the rank-ordered buffer splits into exactly the
// ranges the partition assigned, then places them.
func assembleGathered(numProteins, numLigands, size int, counts []int, all []float64) (*core.Grid, error) {
	ranges, err := partition.Split(numProteins*numLigands, size)
	if err != nil {
		return nil, gserrors.WrapPartitionError(err, "distributed", "partition grid")
	}
	if len(counts) != len(ranges) {
		return nil, gserrors.WrapComputationError(core.ErrGridShape, "distributed",
			fmt.Sprintf("%d counts for %d ranks", len(counts), len(ranges)))
	}
	buffers := make([][]float64, len(ranges))
	off := 0
	for i, c := range counts {
		if off+c > len(all) {
			return nil, gserrors.WrapComputationError(core.ErrGridShape, "distributed", "gathered buffer too short")
		}
		buffers[i] = all[off : off+c]
		off += c
	}
	grid, err := ranking.Assemble(numProteins, numLigands, ranges, buffers)
	if err != nil {
		return nil, gserrors.WrapComputationError(err, "distributed", "assemble grid")
	}
	return grid, nil
}
