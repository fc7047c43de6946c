package executor

import (
	"context"
	"math/rand"
	"testing"

	"github.com/23skdu/gridscreen/internal/cluster"
	"github.com/23skdu/gridscreen/internal/concurrency"
	"github.com/23skdu/gridscreen/internal/core"
	"github.com/23skdu/gridscreen/internal/device"
	gserrors "github.com/23skdu/gridscreen/internal/errors"
	"github.com/23skdu/gridscreen/internal/molecule"
	"github.com/23skdu/gridscreen/internal/partition"
	"github.com/23skdu/gridscreen/internal/potential"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func randomSet(rng *rand.Rand, prefix string, n, maxAtoms int, extent float64) []molecule.Molecule {
	out := make([]molecule.Molecule, n)
	for i := range out {
		atoms := make([]molecule.Atom, 1+rng.Intn(maxAtoms))
		for a := range atoms {
			atoms[a] = molecule.Atom{
				X: (rng.Float64()*2 - 1) * extent,
				Y: (rng.Float64()*2 - 1) * extent,
				Z: (rng.Float64()*2 - 1) * extent,
			}
		}
		out[i] = molecule.New(prefix, atoms)
	}
	return out
}

func randomStore(seed int64, proteins, ligands int) *molecule.Store {
	rng := rand.New(rand.NewSource(seed))
	return molecule.NewStore(
		randomSet(rng, "p", proteins, 12, 8),
		randomSet(rng, "l", ligands, 6, 4),
	)
}

// runDistributed runs every rank of a local group and returns the root grid.
func runDistributed(t *testing.T, backend core.Backend, ranks int, store *molecule.Store) *core.Grid {
	t.Helper()
	groups, err := cluster.NewLocal(ranks)
	require.NoError(t, err)

	grids := make([]*core.Grid, ranks)
	var g errgroup.Group
	for _, grp := range groups {
		grp := grp
		g.Go(func() error {
			defer grp.Close()
			ex, err := New(Config{Backend: backend, Group: grp, Threads: 2, Logger: zerolog.Nop()})
			if err != nil {
				return err
			}
			var in *molecule.Store
			if grp.Rank() == cluster.Root {
				in = store
			}
			grid, err := ex.Execute(context.Background(), in)
			if err != nil {
				return err
			}
			grids[grp.Rank()] = grid
			return grp.Barrier(context.Background())
		})
	}
	require.NoError(t, g.Wait())
	for rank := 1; rank < ranks; rank++ {
		assert.True(t, grids[rank].Partial() || grids[rank].Total() == 0, "rank %d", rank)
	}
	return grids[cluster.Root]
}

func TestBackendsAgree(t *testing.T) {
	store := randomStore(7, 9, 13)
	ref, err := (&Sequential{}).Execute(context.Background(), store)
	require.NoError(t, err)
	require.Len(t, ref.Scores, 9*13)

	for i, s := range ref.Scores {
		p, l := partition.Cell(i, 13)
		require.Equal(t, potential.Score(store.Protein(p), store.Ligand(l)), s)
	}

	check := func(name string, got *core.Grid) {
		t.Helper()
		require.NotNil(t, got, name)
		require.Equal(t, ref.NumProteins, got.NumProteins, name)
		require.Equal(t, ref.NumLigands, got.NumLigands, name)
		require.Len(t, got.Scores, len(ref.Scores), name)
		for i := range ref.Scores {
			assert.InDelta(t, ref.Scores[i], got.Scores[i], 1e-9*(1+abs(ref.Scores[i])), "%s cell %d", name, i)
		}
	}

	for _, threads := range []int{1, 3, 8} {
		ex, err := New(Config{Backend: core.BackendShared, Threads: threads, ChunkSize: 5})
		require.NoError(t, err)
		got, err := ex.Execute(context.Background(), store)
		require.NoError(t, err)
		check("shared", got)
	}

	for _, ranks := range []int{1, 2, 4, 200} {
		check("distributed", runDistributed(t, core.BackendDistributed, ranks, store))
		check("hybrid", runDistributed(t, core.BackendHybrid, ranks, store))
	}

	for _, fraction := range []float64{0, 0.3, 0.5, 1} {
		dev := device.NewVirtual(device.Config{BlockSize: 16, Multiprocessors: 2})
		ex, err := New(Config{Backend: core.BackendAccelerator, Device: dev, SplitFraction: fraction, Threads: 2})
		require.NoError(t, err)
		got, err := ex.Execute(context.Background(), store)
		require.NoError(t, err)
		check("accelerator", got)
		assert.Zero(t, dev.Allocated())
		require.NoError(t, dev.Close())
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestSeparatedSingletons(t *testing.T) {
	single := func(name string, x float64) molecule.Molecule {
		return molecule.New(name, []molecule.Atom{{X: x}})
	}
	store := molecule.NewStore(
		[]molecule.Molecule{single("p0", 0), single("p1", 1000)},
		[]molecule.Molecule{single("l0", 5000), single("l1", -5000)},
	)
	for _, b := range []core.Backend{core.BackendSequential, core.BackendShared} {
		ex, err := New(Config{Backend: b})
		require.NoError(t, err)
		grid, err := ex.Execute(context.Background(), store)
		require.NoError(t, err)
		require.Len(t, grid.Scores, 4)
		for i, s := range grid.Scores {
			assert.InDelta(t, 0, s, 1e-12, "cell %d", i)
		}
		// canonical order: p0l0, p0l1, p1l0, p1l1
		assert.Equal(t, potential.LennardJones(4000), grid.At(1, 0))
		assert.Equal(t, potential.LennardJones(6000), grid.At(1, 1))
	}
}

func TestEmptyLigandSet(t *testing.T) {
	store := molecule.NewStore(randomSet(rand.New(rand.NewSource(1)), "p", 3, 4, 2), nil)
	for _, b := range []core.Backend{core.BackendSequential, core.BackendShared} {
		ex, err := New(Config{Backend: b})
		require.NoError(t, err)
		grid, err := ex.Execute(context.Background(), store)
		require.NoError(t, err)
		assert.Zero(t, grid.Total())
		assert.Empty(t, grid.Scores)
	}

	dev := device.NewVirtual(device.Config{})
	defer dev.Close()
	ex, err := New(Config{Backend: core.BackendAccelerator, Device: dev, SplitFraction: 0.5})
	require.NoError(t, err)
	grid, err := ex.Execute(context.Background(), store)
	require.NoError(t, err)
	assert.Zero(t, grid.Total())

	root := runDistributed(t, core.BackendDistributed, 3, store)
	assert.Zero(t, root.Total())
}

func TestAcceleratorDeviceFailureIsFatal(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	store := randomStore(3, 4, 4)
	dev := device.NewVirtual(device.Config{MemoryLimit: 64, Allocator: mem})
	defer dev.Close()

	ex, err := New(Config{Backend: core.BackendAccelerator, Device: dev, SplitFraction: 0.5})
	require.NoError(t, err)
	_, err = ex.Execute(context.Background(), store)
	require.Error(t, err)
	assert.ErrorIs(t, err, device.ErrOutOfMemory)
	kind, ok := gserrors.TypeOf(err)
	require.True(t, ok)
	assert.Equal(t, gserrors.ErrorTypeDevice, kind)
	assert.True(t, kind.Fatal())
	assert.Zero(t, dev.Allocated())
}

func TestAcceleratorAllOnCPUNeedsNoDeviceMemory(t *testing.T) {
	store := randomStore(3, 4, 4)
	dev := device.NewVirtual(device.Config{MemoryLimit: 1})
	defer dev.Close()

	ex, err := New(Config{Backend: core.BackendAccelerator, Device: dev, SplitFraction: 1})
	require.NoError(t, err)
	_, err = ex.Execute(context.Background(), store)
	assert.NoError(t, err)
}

func TestSplitPoint(t *testing.T) {
	assert.Equal(t, 3, SplitPoint(7, 0.5))
	assert.Equal(t, 0, SplitPoint(7, 0))
	assert.Equal(t, 7, SplitPoint(7, 1))
	assert.Equal(t, 2, SplitPoint(7, 0.3))
	assert.Equal(t, 0, SplitPoint(0, 0.5))
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(Config{Backend: "gpu"})
	assert.ErrorIs(t, err, core.ErrInvalidBackend)

	_, err = New(Config{Backend: core.BackendDistributed})
	assert.Error(t, err)
	_, err = New(Config{Backend: core.BackendHybrid})
	assert.Error(t, err)
	_, err = New(Config{Backend: core.BackendAccelerator})
	assert.Error(t, err)

	dev := device.NewVirtual(device.Config{})
	defer dev.Close()
	_, err = New(Config{Backend: core.BackendAccelerator, Device: dev, SplitFraction: 1.5})
	kind, ok := gserrors.TypeOf(err)
	require.True(t, ok)
	assert.Equal(t, gserrors.ErrorTypeConfiguration, kind)

	for _, b := range core.Backends() {
		ex, err := New(Config{Backend: b, Device: dev, Group: &singleRank{}})
		require.NoError(t, err)
		assert.Equal(t, b, ex.Name())
	}
}

func TestExecuteNeedsStore(t *testing.T) {
	_, err := (&Sequential{}).Execute(context.Background(), nil)
	kind, ok := gserrors.TypeOf(err)
	require.True(t, ok)
	assert.Equal(t, gserrors.ErrorTypeInput, kind)
}

func TestCancelledRun(t *testing.T) {
	store := randomStore(11, 40, 40)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ex, err := New(Config{Backend: core.BackendShared, Threads: 4, ChunkSize: 1})
	require.NoError(t, err)
	_, err = Run(ctx, ex, store, zerolog.Nop())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAcceleratorCPUFailureIsComputationError(t *testing.T) {
	store := randomStore(11, 40, 40)
	dev := device.NewVirtual(device.Config{})
	defer dev.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ex, err := New(Config{Backend: core.BackendAccelerator, Device: dev, SplitFraction: 1, ChunkSize: 1})
	require.NoError(t, err)
	_, err = ex.Execute(ctx, store)
	assert.ErrorIs(t, err, context.Canceled)
	kind, ok := gserrors.TypeOf(err)
	require.True(t, ok)
	assert.Equal(t, gserrors.ErrorTypeComputation, kind)
}

func TestRun(t *testing.T) {
	store := randomStore(5, 3, 3)
	grid, err := Run(context.Background(), &Sequential{}, store, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 9, grid.Total())
}

func TestHostEvaluatorSubRange(t *testing.T) {
	store := randomStore(9, 5, 6)
	ev := NewHostEvaluator(store, concurrency.Config{Workers: 3, ChunkSize: 2}, core.BackendShared)
	r := partition.Range{Start: 7, End: 19}
	dst := make([]float64, r.Len())
	require.NoError(t, ev.Evaluate(context.Background(), r, dst))
	for i, s := range dst {
		p, l := partition.Cell(r.Start+i, 6)
		assert.Equal(t, potential.Score(store.Protein(p), store.Ligand(l)), s)
	}
	assert.ErrorIs(t, ev.Evaluate(context.Background(), r, dst[:3]), core.ErrGridShape)
}

func TestDeviceEvaluatorSubRange(t *testing.T) {
	store := randomStore(9, 5, 6)
	dev := device.NewVirtual(device.Config{BlockSize: 4})
	defer dev.Close()
	ev := NewDeviceEvaluator(dev, store)
	r := partition.Range{Start: 11, End: 30}
	dst := make([]float64, r.Len())
	require.NoError(t, ev.Evaluate(context.Background(), r, dst))
	pf, lf := store.Flat()
	for i, s := range dst {
		p, l := partition.Cell(r.Start+i, 6)
		assert.Equal(t, potential.ScoreFlat(pf, lf, p, l), s)
	}
}

// singleRank is a one-rank group that never blocks.
type singleRank struct{ cluster.Group }

func (*singleRank) Rank() int { return 0 }
func (*singleRank) Size() int { return 1 }
