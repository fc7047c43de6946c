// Package executor evaluates the full protein x ligand score grid on one of
// the execution backends. Every backend writes the same canonical layout, so
// their grids are interchangeable.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/23skdu/gridscreen/internal/cluster"
	"github.com/23skdu/gridscreen/internal/concurrency"
	"github.com/23skdu/gridscreen/internal/core"
	"github.com/23skdu/gridscreen/internal/device"
	gserrors "github.com/23skdu/gridscreen/internal/errors"
	"github.com/23skdu/gridscreen/internal/metrics"
	"github.com/23skdu/gridscreen/internal/molecule"
	"github.com/23skdu/gridscreen/internal/partition"
	"github.com/rs/zerolog"
)

// Executor computes a score grid for a store.
type Executor interface {
	Name() core.Backend
	// Execute returns the complete grid. On non-root ranks of a distributed
	// backend the store may be nil and the returned grid is partial.
	Execute(ctx context.Context, store *molecule.Store) (*core.Grid, error)
}

// Evaluator scores one contiguous range of canonical indices.
type Evaluator interface {
	// Evaluate writes the score of canonical index i to dst[i-r.Start].
	Evaluate(ctx context.Context, r partition.Range, dst []float64) error
}

// DefaultSplitFraction sends half of the grid to the CPU and half to the device.
const DefaultSplitFraction = 0.5

// Config selects and tunes a backend.
type Config struct {
	Backend core.Backend

	// Threads and ChunkSize drive the shared-memory pool.
	Threads   int
	ChunkSize int

	// Group is required by the distributed and hybrid backends.
	Group cluster.Group

	// Device is required by the accelerator backend. SplitFraction is the
	// share of the grid evaluated on the CPU, in [0,1].
	Device        device.Device
	SplitFraction float64

	Logger zerolog.Logger
}

// DefaultConfig returns a shared-memory configuration using every CPU.
func DefaultConfig() Config {
	return Config{
		Backend:       core.BackendShared,
		SplitFraction: DefaultSplitFraction,
		Logger:        zerolog.Nop(),
	}
}

func (c Config) pool() concurrency.Config {
	return concurrency.Config{
		Workers:   c.Threads,
		ChunkSize: c.ChunkSize,
		Schedule:  concurrency.Dynamic,
	}
}

// New builds the executor for cfg.Backend.
func New(cfg Config) (Executor, error) {
	switch cfg.Backend {
	case core.BackendSequential:
		return &Sequential{}, nil
	case core.BackendShared:
		return &Shared{pool: cfg.pool()}, nil
	case core.BackendDistributed, core.BackendHybrid:
		if cfg.Group == nil {
			return nil, gserrors.NewConfigurationError("executor", fmt.Sprintf("backend %s needs a process group", cfg.Backend))
		}
		return &Distributed{group: cfg.Group, hybrid: cfg.Backend == core.BackendHybrid, pool: cfg.pool(), logger: cfg.Logger}, nil
	case core.BackendAccelerator:
		if cfg.Device == nil {
			return nil, gserrors.NewConfigurationError("executor", "accelerator backend needs a device")
		}
		if cfg.SplitFraction < 0 || cfg.SplitFraction > 1 {
			return nil, gserrors.WrapConfigurationError(
				core.NewInvalidArgumentError("split_fraction", fmt.Sprintf("%v is outside [0,1]", cfg.SplitFraction)),
				"executor", "invalid accelerator split")
		}
		return &Accelerator{dev: cfg.Device, fraction: cfg.SplitFraction, pool: cfg.pool(), logger: cfg.Logger}, nil
	default:
		return nil, gserrors.WrapConfigurationError(
			fmt.Errorf("%w: %q", core.ErrInvalidBackend, cfg.Backend), "executor", "unknown backend")
	}
}

// Run executes ex and records the run's duration and outcome.
func Run(ctx context.Context, ex Executor, store *molecule.Store, logger zerolog.Logger) (*core.Grid, error) {
	backend := ex.Name().String()
	start := time.Now()
	grid, err := ex.Execute(ctx, store)
	elapsed := time.Since(start)

	metrics.RunDurationSeconds.WithLabelValues(backend).Observe(elapsed.Seconds())
	if err != nil {
		metrics.RunsTotal.WithLabelValues(backend, "error").Inc()
		ev := logger.Error().Err(err).Str("backend", backend).Dur("elapsed", elapsed)
		if kind, ok := gserrors.TypeOf(err); ok {
			ev = ev.Str("kind", string(kind)).Bool("fatal", kind.Fatal())
		}
		ev.Msg("Screening run failed")
		return nil, err
	}
	metrics.RunsTotal.WithLabelValues(backend, "ok").Inc()
	logger.Info().
		Str("backend", backend).
		Int("proteins", grid.NumProteins).
		Int("ligands", grid.NumLigands).
		Bool("partial", grid.Partial()).
		Dur("elapsed", elapsed).
		Msg("Screening run finished")
	return grid, nil
}

func requireStore(store *molecule.Store) error {
	if store == nil {
		return gserrors.NewInputError("execute", "no molecule store")
	}
	return nil
}
