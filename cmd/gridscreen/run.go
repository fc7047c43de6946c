package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/23skdu/gridscreen/internal/cluster"
	"github.com/23skdu/gridscreen/internal/core"
	"github.com/23skdu/gridscreen/internal/device"
	gserrors "github.com/23skdu/gridscreen/internal/errors"
	"github.com/23skdu/gridscreen/internal/executor"
	gsmemory "github.com/23skdu/gridscreen/internal/memory"
	"github.com/23skdu/gridscreen/internal/molecule"
	"github.com/23skdu/gridscreen/internal/molio"
	"github.com/23skdu/gridscreen/internal/ranking"
	"github.com/23skdu/gridscreen/internal/report"
	"github.com/23skdu/gridscreen/internal/storage"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newRunCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load both molecule sets, score the grid and print the ranking",
		RunE: func(cmd *cobra.Command, args []string) error {
			a.cfg.Rank = cluster.Root
			if err := ValidateConfig(&a.cfg); err != nil {
				return gserrors.WrapConfigurationError(err, "run", "invalid configuration")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.run(ctx)
		},
	}
	addComputeFlags(cmd, &a.cfg)
	f := cmd.Flags()
	f.StringVar(&a.cfg.ProteinDir, "proteins", a.cfg.ProteinDir, "directory of protein .pdb files")
	f.StringVar(&a.cfg.LigandDir, "ligands", a.cfg.LigandDir, "directory of ligand .sdf/.mol files")
	f.Float64Var(&a.cfg.SplitFraction, "split-fraction", a.cfg.SplitFraction, "share of the grid the accelerator backend keeps on the CPU")
	f.IntVar(&a.cfg.LanesPerBlock, "lanes-per-block", a.cfg.LanesPerBlock, "device lanes per block")
	f.IntVar(&a.cfg.DeviceMultiprocessors, "device-multiprocessors", a.cfg.DeviceMultiprocessors, "device blocks in flight; 0 uses every CPU")
	f.Int64Var(&a.cfg.DeviceMemoryLimit, "device-memory-limit", a.cfg.DeviceMemoryLimit, "device memory in bytes; 0 is unlimited")
	f.IntVar(&a.cfg.TopK, "top-k", a.cfg.TopK, "number of ranked pairs to print")
	f.StringVar(&a.cfg.ParquetPath, "parquet", a.cfg.ParquetPath, "write the full ranking to this Parquet file")
	f.BoolVarP(&a.cfg.Verbose, "verbose", "v", a.cfg.Verbose, "print grid statistics")
	return cmd
}

func newWorkerCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Join a distributed run as a non-root rank over Flight",
		RunE: func(cmd *cobra.Command, args []string) error {
			a.cfg.Transport = string(core.TransportFlight)
			if err := ValidateConfig(&a.cfg); err != nil {
				return gserrors.WrapConfigurationError(err, "worker", "invalid configuration")
			}
			if a.cfg.Rank == cluster.Root {
				return gserrors.WrapConfigurationError(ErrInvalidRank, "worker", "rank 0 is started with the run command")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.worker(ctx)
		},
	}
	addComputeFlags(cmd, &a.cfg)
	cmd.Flags().IntVar(&a.cfg.Rank, "rank", a.cfg.Rank, "this worker's rank in [1, world-size)")
	return cmd
}

// run is rank 0: it loads the molecules, computes the grid and reports.
func (a *app) run(ctx context.Context) error {
	backend, err := core.ParseBackend(a.cfg.Backend)
	if err != nil {
		return gserrors.WrapConfigurationError(err, "run", "invalid backend")
	}
	defer a.startMetricsServer()()

	store, err := a.load()
	if err != nil {
		return err
	}

	ctx, cancel := a.runContext(ctx)
	defer cancel()

	start := time.Now()
	grid, err := a.execute(ctx, backend, store)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	if err := report.Write(a.out, grid, store, report.Options{
		Backend: backend,
		TopK:    a.cfg.TopK,
		Elapsed: elapsed,
		Verbose: a.cfg.Verbose,
	}); err != nil {
		return err
	}
	return a.export(grid, store)
}

func (a *app) load() (*molecule.Store, error) {
	proteins, err := molio.LoadDir(a.logger, a.cfg.ProteinDir, molio.Proteins)
	if err != nil {
		return nil, err
	}
	ligands, err := molio.LoadDir(a.logger, a.cfg.LigandDir, molio.Ligands)
	if err != nil {
		return nil, err
	}
	return molecule.NewStore(proteins, ligands), nil
}

// execute dispatches to the backend, setting up the process group or device
// it needs.
func (a *app) execute(ctx context.Context, backend core.Backend, store *molecule.Store) (*core.Grid, error) {
	cfg := executor.Config{
		Backend:       backend,
		Threads:       a.cfg.Threads,
		ChunkSize:     a.cfg.ChunkSize,
		SplitFraction: a.cfg.SplitFraction,
		Logger:        a.logger,
	}

	switch {
	case backend == core.BackendAccelerator:
		dev, err := device.Open(device.Config{
			Allocator:       gsmemory.NewTrackingAllocator("device", nil),
			MemoryLimit:     a.cfg.DeviceMemoryLimit,
			BlockSize:       a.cfg.LanesPerBlock,
			Multiprocessors: a.cfg.DeviceMultiprocessors,
		})
		if err != nil {
			return nil, gserrors.WrapDeviceError(err, "run", "open device")
		}
		defer dev.Close()
		cfg.Device = dev

	case backend.Distributed() && core.Transport(a.cfg.Transport) == core.TransportLocal:
		return a.executeLocalGroup(ctx, cfg, store)

	case backend.Distributed():
		grp, err := cluster.NewFlightGroup(a.flightConfig())
		if err != nil {
			return nil, err
		}
		defer grp.Close()
		cfg.Group = grp
		return a.executeRank(ctx, cfg, grp, store)
	}

	ex, err := executor.New(cfg)
	if err != nil {
		return nil, err
	}
	return executor.Run(ctx, ex, store, a.logger)
}

// executeLocalGroup runs every rank of an in-process group on its own goroutine.
func (a *app) executeLocalGroup(ctx context.Context, cfg executor.Config, store *molecule.Store) (*core.Grid, error) {
	groups, err := cluster.NewLocal(a.cfg.WorldSize)
	if err != nil {
		return nil, gserrors.WrapConfigurationError(err, "run", "create process group")
	}
	var root *core.Grid
	g, gctx := errgroup.WithContext(ctx)
	for _, grp := range groups {
		grp := grp
		g.Go(func() error {
			defer grp.Close()
			rankCfg := cfg
			rankCfg.Group = grp
			rankCfg.Logger = a.logger.With().Int("rank", grp.Rank()).Logger()
			var in *molecule.Store
			if grp.Rank() == cluster.Root {
				in = store
			}
			grid, err := a.executeRank(gctx, rankCfg, grp, in)
			if err != nil {
				return err
			}
			if grp.Rank() == cluster.Root {
				root = grid
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return root, nil
}

// executeRank runs one rank's share and waits at the final barrier, so the
// root only reports once every rank is done.
func (a *app) executeRank(ctx context.Context, cfg executor.Config, grp cluster.Group, store *molecule.Store) (*core.Grid, error) {
	ex, err := executor.New(cfg)
	if err != nil {
		return nil, err
	}
	grid, err := executor.Run(ctx, ex, store, cfg.Logger)
	if err != nil {
		return nil, err
	}
	if err := grp.Barrier(ctx); err != nil {
		return nil, gserrors.WrapNetworkError(err, "run", "final barrier")
	}
	return grid, nil
}

// worker is a non-root rank of a Flight group.
func (a *app) worker(ctx context.Context) error {
	backend, err := core.ParseBackend(a.cfg.Backend)
	if err != nil {
		return gserrors.WrapConfigurationError(err, "worker", "invalid backend")
	}
	if !backend.Distributed() {
		return gserrors.NewConfigurationError("worker", fmt.Sprintf("backend %s does not use workers", backend))
	}
	defer a.startMetricsServer()()

	ctx, cancel := a.runContext(ctx)
	defer cancel()

	grp, err := cluster.NewFlightGroup(a.flightConfig())
	if err != nil {
		return err
	}
	defer grp.Close()

	logger := a.logger.With().Int("rank", a.cfg.Rank).Logger()
	_, err = a.executeRank(ctx, executor.Config{
		Backend:   backend,
		Threads:   a.cfg.Threads,
		ChunkSize: a.cfg.ChunkSize,
		Group:     grp,
		Logger:    logger,
	}, grp, nil)
	if err != nil {
		return err
	}
	logger.Info().Msg("Worker finished")
	return nil
}

func (a *app) flightConfig() cluster.FlightConfig {
	return cluster.FlightConfig{
		Addr:            a.cfg.Coordinator,
		Rank:            a.cfg.Rank,
		Size:            a.cfg.WorldSize,
		MaxMessageBytes: a.cfg.MaxMessageBytes,
		Allocator:       gsmemory.NewTrackingAllocator("flight", nil),
		Logger:          a.logger,
	}
}

// export writes the full ranking to Parquet when a path is configured.
func (a *app) export(grid *core.Grid, store *molecule.Store) error {
	if a.cfg.ParquetPath == "" {
		return nil
	}
	proteins, ligands := report.Names(store)
	rec := ranking.Record(gsmemory.NewTrackingAllocator("host", nil), ranking.Rank(grid), proteins, ligands)
	defer rec.Release()
	if err := storage.ExportResults(a.cfg.ParquetPath, rec); err != nil {
		return err
	}
	a.logger.Info().Str("path", a.cfg.ParquetPath).Int64("rows", rec.NumRows()).Msg("Exported ranking")
	return nil
}
