package executor

import (
	"context"
	"fmt"

	"github.com/23skdu/gridscreen/internal/concurrency"
	"github.com/23skdu/gridscreen/internal/core"
	"github.com/23skdu/gridscreen/internal/metrics"
	"github.com/23skdu/gridscreen/internal/molecule"
	"github.com/23skdu/gridscreen/internal/partition"
	"github.com/23skdu/gridscreen/internal/potential"
)

// HostEvaluator scores ranges on the CPU with a BulkApply pool. One worker
// gives the sequential reference order.
type HostEvaluator struct {
	store   *molecule.Store
	pool    concurrency.Config
	backend core.Backend
}

// NewHostEvaluator returns an evaluator over store.
func NewHostEvaluator(store *molecule.Store, pool concurrency.Config, backend core.Backend) *HostEvaluator {
	return &HostEvaluator{store: store, pool: pool, backend: backend}
}

func (e *HostEvaluator) Evaluate(ctx context.Context, r partition.Range, dst []float64) error {
	if err := checkDst(r, dst); err != nil {
		return err
	}
	nl := e.store.NumLigands()
	proteins, ligands := e.store.Proteins(), e.store.Ligands()
	err := concurrency.BulkApply(ctx, r, e.pool, func(idx int) {
		p, l := partition.Cell(idx, nl)
		dst[idx-r.Start] = potential.Score(proteins[p], ligands[l])
	})
	if err != nil {
		return err
	}
	metrics.CellsEvaluatedTotal.WithLabelValues(e.backend.String(), "cpu").Add(float64(r.Len()))
	return nil
}

func checkDst(r partition.Range, dst []float64) error {
	if len(dst) < r.Len() {
		return fmt.Errorf("%w: range %s into %d slots", core.ErrGridShape, r, len(dst))
	}
	return nil
}
