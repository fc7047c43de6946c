package executor

import (
	"context"
	"fmt"
	"math"

	"github.com/23skdu/gridscreen/internal/concurrency"
	"github.com/23skdu/gridscreen/internal/core"
	"github.com/23skdu/gridscreen/internal/device"
	gserrors "github.com/23skdu/gridscreen/internal/errors"
	"github.com/23skdu/gridscreen/internal/metrics"
	"github.com/23skdu/gridscreen/internal/molecule"
	"github.com/23skdu/gridscreen/internal/partition"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Accelerator evaluates the head of the grid on the CPU pool and the tail on
// a device, concurrently. A device failure fails the run; the CPU never takes
// over the device's share.
type Accelerator struct {
	dev      device.Device
	fraction float64
	pool     concurrency.Config
	logger   zerolog.Logger
}

func (*Accelerator) Name() core.Backend { return core.BackendAccelerator }

// SplitPoint returns floor(total*fraction): cells below it go to the CPU.
func SplitPoint(total int, fraction float64) int {
	cpu := int(math.Floor(float64(total) * fraction))
	return min(max(cpu, 0), total)
}

func (a *Accelerator) Execute(ctx context.Context, store *molecule.Store) (*core.Grid, error) {
	if err := requireStore(store); err != nil {
		return nil, err
	}
	grid := core.NewGrid(store.NumProteins(), store.NumLigands())
	whole := partition.Range{Start: 0, End: grid.Total()}
	cpu, dev := whole.Split(SplitPoint(grid.Total(), a.fraction))
	a.logger.Debug().Stringer("cpu", cpu).Stringer("device", dev).Str("device_name", a.dev.Info().Name).Msg("Splitting grid")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := NewHostEvaluator(store, a.pool, core.BackendAccelerator).
			Evaluate(gctx, cpu, grid.Scores[cpu.Start:cpu.End])
		if err != nil {
			return gserrors.WrapComputationError(err, "accelerator", fmt.Sprintf("evaluate %s on cpu", cpu))
		}
		return nil
	})
	g.Go(func() error {
		return NewDeviceEvaluator(a.dev, store).Evaluate(gctx, dev, grid.Scores[dev.Start:dev.End])
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return grid, nil
}

// DeviceEvaluator scores ranges on a device: both molecule sets are flattened,
// copied into device buffers, scored with one lane per cell and the scores
// copied back.
type DeviceEvaluator struct {
	dev   device.Device
	store *molecule.Store
}

// NewDeviceEvaluator returns an evaluator running on dev.
func NewDeviceEvaluator(dev device.Device, store *molecule.Store) *DeviceEvaluator {
	return &DeviceEvaluator{dev: dev, store: store}
}

// deviceFlat is a flattened molecule set resident on the device.
type deviceFlat struct {
	counts, offsets, coords *device.Buffer
}

func (e *DeviceEvaluator) upload(f *molecule.Flat, held *[]*device.Buffer) (*deviceFlat, error) {
	alloc := func(n int) (*device.Buffer, error) {
		b, err := e.dev.Alloc(n)
		if err != nil {
			return nil, err
		}
		*held = append(*held, b)
		return b, nil
	}
	var (
		df  deviceFlat
		err error
	)
	if df.counts, err = alloc(len(f.Counts) * device.Int32Size); err != nil {
		return nil, err
	}
	if df.offsets, err = alloc(len(f.Offsets) * device.Int32Size); err != nil {
		return nil, err
	}
	if df.coords, err = alloc(len(f.Coords) * device.Float64Size); err != nil {
		return nil, err
	}
	if err := e.dev.CopyToDevice(df.counts, device.Int32Bytes(f.Counts)); err != nil {
		return nil, err
	}
	if err := e.dev.CopyToDevice(df.offsets, device.Int32Bytes(f.Offsets)); err != nil {
		return nil, err
	}
	if err := e.dev.CopyToDevice(df.coords, device.Float64Bytes(f.Coords)); err != nil {
		return nil, err
	}
	return &df, nil
}

// view exposes the device buffers to a kernel as a Flat.
func (df *deviceFlat) view() *molecule.Flat {
	return &molecule.Flat{
		Counts:  df.counts.Int32s(),
		Offsets: df.offsets.Int32s(),
		Coords:  df.coords.Float64s(),
	}
}

func (e *DeviceEvaluator) Evaluate(ctx context.Context, r partition.Range, dst []float64) error {
	if err := checkDst(r, dst); err != nil {
		return err
	}
	if r.Empty() {
		return nil
	}
	var held []*device.Buffer
	defer func() {
		for _, b := range held {
			e.dev.Free(b)
		}
	}()

	pf, lf := e.store.Flat()
	dp, err := e.upload(pf, &held)
	if err != nil {
		return gserrors.WrapDeviceError(err, "accelerator", "upload proteins")
	}
	dl, err := e.upload(lf, &held)
	if err != nil {
		return gserrors.WrapDeviceError(err, "accelerator", "upload ligands")
	}
	scores, err := e.dev.Alloc(r.Len() * device.Float64Size)
	if err != nil {
		return gserrors.WrapDeviceError(err, "accelerator", "allocate scores")
	}
	held = append(held, scores)

	kernel := ScoreKernel(dp.view(), dl.view(), e.store.NumLigands(), r.Start, scores.Float64s())
	if err := e.dev.Launch(ctx, r.Len(), kernel); err != nil {
		return gserrors.WrapDeviceError(err, "accelerator", fmt.Sprintf("launch %d lanes", r.Len()))
	}
	if err := e.dev.CopyToHost(device.Float64Bytes(dst[:r.Len()]), scores); err != nil {
		return gserrors.WrapDeviceError(err, "accelerator", "download scores")
	}
	metrics.CellsEvaluatedTotal.WithLabelValues(core.BackendAccelerator.String(), "device").Add(float64(r.Len()))
	return nil
}
