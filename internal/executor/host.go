package executor

import (
	"context"

	"github.com/23skdu/gridscreen/internal/concurrency"
	"github.com/23skdu/gridscreen/internal/core"
	"github.com/23skdu/gridscreen/internal/molecule"
	"github.com/23skdu/gridscreen/internal/partition"
)

// Sequential evaluates every cell in canonical order on one goroutine. Its
// grid is the reference the other backends are checked against.
type Sequential struct{}

func (*Sequential) Name() core.Backend { return core.BackendSequential }

func (*Sequential) Execute(ctx context.Context, store *molecule.Store) (*core.Grid, error) {
	if err := requireStore(store); err != nil {
		return nil, err
	}
	grid := core.NewGrid(store.NumProteins(), store.NumLigands())
	ev := NewHostEvaluator(store, concurrency.Config{Workers: 1}, core.BackendSequential)
	if err := ev.Evaluate(ctx, partition.Range{Start: 0, End: grid.Total()}, grid.Scores); err != nil {
		return nil, err
	}
	return grid, nil
}

// Shared evaluates the grid with a goroutine pool writing disjoint cells of
// one pre-sized grid.
type Shared struct {
	pool concurrency.Config
}

func (*Shared) Name() core.Backend { return core.BackendShared }

func (s *Shared) Execute(ctx context.Context, store *molecule.Store) (*core.Grid, error) {
	if err := requireStore(store); err != nil {
		return nil, err
	}
	grid := core.NewGrid(store.NumProteins(), store.NumLigands())
	ev := NewHostEvaluator(store, s.pool, core.BackendShared)
	if err := ev.Evaluate(ctx, partition.Range{Start: 0, End: grid.Total()}, grid.Scores); err != nil {
		return nil, err
	}
	return grid, nil
}
