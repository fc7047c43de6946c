package device

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/23skdu/gridscreen/internal/concurrency"
	"github.com/23skdu/gridscreen/internal/core"
	"github.com/23skdu/gridscreen/internal/metrics"
	"github.com/23skdu/gridscreen/internal/partition"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/klauspost/cpuid/v2"
)

// DefaultBlockSize matches the usual 256-lane thread block.
const DefaultBlockSize = 256

// Config configures a device.
type Config struct {
	Kind            string // "virtual" (default)
	MemoryLimit     int64
	BlockSize       int
	Multiprocessors int
	// Allocator backs device memory; nil uses a Go allocator.
	Allocator memory.Allocator
}

// Open returns the device described by cfg.
func Open(cfg Config) (Device, error) {
	switch cfg.Kind {
	case "", "virtual":
		return NewVirtual(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrDeviceNotAvailable, cfg.Kind)
	}
}

// Virtual is a software device. Its memory is a separate arena drawn from an
// Arrow allocator, so host code cannot alias it, and its lanes execute in
// blocks on a goroutine pool sized like a set of multiprocessors.
type Virtual struct {
	info  Info
	mem   memory.Allocator
	alloc atomic.Int64

	mu     sync.Mutex
	live   map[*Buffer]struct{}
	closed bool
}

// NewVirtual creates a software device.
func NewVirtual(cfg Config) *Virtual {
	mem := cfg.Allocator
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	block := cfg.BlockSize
	if block <= 0 {
		block = DefaultBlockSize
	}
	sms := cfg.Multiprocessors
	if sms <= 0 {
		sms = hostCores()
	}
	return &Virtual{
		info: Info{
			Name:            virtualName(),
			MemoryLimit:     cfg.MemoryLimit,
			BlockSize:       block,
			Multiprocessors: sms,
		},
		mem:  mem,
		live: make(map[*Buffer]struct{}),
	}
}

// hostCores is the number of logical cores backing the virtual device.
func hostCores() int {
	if n := cpuid.CPU.LogicalCores; n > 0 {
		return n
	}
	return runtime.NumCPU()
}

func virtualName() string {
	if cpuid.CPU.BrandName == "" {
		return "virtual"
	}
	return "virtual (" + cpuid.CPU.BrandName + ")"
}

func (v *Virtual) Info() Info { return v.info }

func (v *Virtual) Allocated() int64 { return v.alloc.Load() }

func (v *Virtual) Alloc(bytes int) (*Buffer, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil, ErrClosed
	}
	if bytes < 0 {
		return nil, fmt.Errorf("%w: negative size %d", ErrOutOfMemory, bytes)
	}
	if limit := v.info.MemoryLimit; limit > 0 && v.alloc.Load()+int64(bytes) > limit {
		metrics.DeviceErrorsTotal.WithLabelValues("alloc").Inc()
		return nil, core.NewResourceExhaustedError("device memory",
			fmt.Errorf("%w: %d bytes requested, %d of %d in use", ErrOutOfMemory, bytes, v.alloc.Load(), limit))
	}
	b := &Buffer{data: v.mem.Allocate(bytes)}
	v.live[b] = struct{}{}
	v.alloc.Add(int64(bytes))
	metrics.DeviceAllocatedBytes.Add(float64(bytes))
	return b, nil
}

func (v *Virtual) Free(b *Buffer) {
	if b == nil {
		return
	}
	v.release(b)
}

func (v *Virtual) CopyToDevice(dst *Buffer, src []byte) error {
	if err := v.check(dst, "h2d"); err != nil {
		return err
	}
	if len(src) != dst.Len() {
		metrics.DeviceErrorsTotal.WithLabelValues("h2d").Inc()
		return fmt.Errorf("%w: %d host bytes into %d device bytes", ErrCopySize, len(src), dst.Len())
	}
	copy(dst.data, src)
	metrics.DeviceTransferBytesTotal.WithLabelValues("h2d").Add(float64(len(src)))
	return nil
}

func (v *Virtual) CopyToHost(dst []byte, src *Buffer) error {
	if err := v.check(src, "d2h"); err != nil {
		return err
	}
	if len(dst) != src.Len() {
		metrics.DeviceErrorsTotal.WithLabelValues("d2h").Inc()
		return fmt.Errorf("%w: %d device bytes into %d host bytes", ErrCopySize, src.Len(), len(dst))
	}
	copy(dst, src.data)
	metrics.DeviceTransferBytesTotal.WithLabelValues("d2h").Add(float64(len(dst)))
	return nil
}

// Launch runs lanes in blocks of BlockSize, Multiprocessors blocks at a time.
func (v *Virtual) Launch(ctx context.Context, lanes int, kernel Kernel) error {
	v.mu.Lock()
	closed := v.closed
	v.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if lanes < 0 || kernel == nil {
		metrics.DeviceErrorsTotal.WithLabelValues("launch").Inc()
		return fmt.Errorf("%w: lanes=%d", ErrLaunch, lanes)
	}
	start := time.Now()
	err := concurrency.BulkApply(ctx, partition.Range{Start: 0, End: lanes}, concurrency.Config{
		Workers:   v.info.Multiprocessors,
		ChunkSize: v.info.BlockSize,
		Schedule:  concurrency.Dynamic,
	}, func(lane int) { kernel(lane) })
	metrics.DeviceKernelDurationSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.DeviceErrorsTotal.WithLabelValues("launch").Inc()
	}
	return err
}

// Close frees every live buffer.
func (v *Virtual) Close() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.closed = true
	live := make([]*Buffer, 0, len(v.live))
	for b := range v.live {
		live = append(live, b)
	}
	v.mu.Unlock()

	for _, b := range live {
		v.release(b)
	}
	return nil
}

func (v *Virtual) release(b *Buffer) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if b.freed {
		return
	}
	b.freed = true
	delete(v.live, b)
	v.alloc.Add(-int64(len(b.data)))
	metrics.DeviceAllocatedBytes.Sub(float64(len(b.data)))
	v.mem.Free(b.data)
	b.data = nil
}

func (v *Virtual) check(b *Buffer, stage string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}
	if b == nil || b.freed {
		metrics.DeviceErrorsTotal.WithLabelValues(stage).Inc()
		return ErrBufferFreed
	}
	return nil
}
