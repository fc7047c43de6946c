package concurrency

import (
	"context"
	"runtime"

	"github.com/23skdu/gridscreen/internal/metrics"
	"github.com/23skdu/gridscreen/internal/partition"
	"golang.org/x/sync/errgroup"
)

// Schedule selects how BulkApply assigns indices to workers.
type Schedule int

const (
	// Dynamic lets workers claim fixed-size chunks from a shared cursor.
	Dynamic Schedule = iota
	// Static gives each worker one balanced contiguous sub-range up front.
	Static
)

func (s Schedule) String() string {
	if s == Static {
		return "static"
	}
	return "dynamic"
}

// Config controls the fan-out of BulkApply.
type Config struct {
	Workers   int // goroutines; <= 0 means runtime.NumCPU()
	ChunkSize int // indices per claim under Dynamic; <= 0 picks a size from the range
	Schedule  Schedule
}

// DefaultConfig uses every CPU with dynamic scheduling.
func DefaultConfig() Config {
	return Config{Workers: runtime.NumCPU(), Schedule: Dynamic}
}

func (c Config) workers(n int) int {
	w := c.Workers
	if w <= 0 {
		w = runtime.NumCPU()
	}
	if w > n {
		w = n
	}
	return max(w, 1)
}

func (c Config) chunk(n, workers int) int {
	if c.ChunkSize > 0 {
		return c.ChunkSize
	}
	// Roughly eight claims per worker keeps the tail short without
	// hammering the cursor.
	return max(n/(workers*8), 1)
}

// BulkApply calls fn once for every index in r, spread over cfg.Workers
// goroutines. fn must only write state owned by its index; BulkApply adds
// no synchronisation around it. An empty range returns immediately. The
// context is checked between chunks.
func BulkApply(ctx context.Context, r partition.Range, cfg Config, fn func(idx int)) error {
	n := r.Len()
	if n <= 0 {
		return nil
	}
	workers := cfg.workers(n)
	if workers == 1 {
		return applySerial(ctx, r, fn)
	}

	g, gctx := errgroup.WithContext(ctx)

	switch cfg.Schedule {
	case Static:
		local, err := partition.Split(n, workers)
		if err != nil {
			return err
		}
		for _, lr := range local {
			sub := partition.Range{Start: r.Start + lr.Start, End: r.Start + lr.End}
			g.Go(func() error {
				metrics.BulkApplyChunksTotal.Inc()
				return applySerial(gctx, sub, fn)
			})
		}
	default:
		cursor := NewChunkCursor(r, cfg.chunk(n, workers))
		for w := 0; w < workers; w++ {
			g.Go(func() error {
				for {
					if err := gctx.Err(); err != nil {
						return err
					}
					c, ok := cursor.Next()
					if !ok {
						return nil
					}
					metrics.BulkApplyChunksTotal.Inc()
					for idx := c.Start; idx < c.End; idx++ {
						fn(idx)
					}
				}
			})
		}
	}
	return g.Wait()
}

func applySerial(ctx context.Context, r partition.Range, fn func(idx int)) error {
	const checkEvery = 1024
	for idx := r.Start; idx < r.End; idx++ {
		if (idx-r.Start)%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		fn(idx)
	}
	return nil
}
