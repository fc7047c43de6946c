package memory

import (
	"sync/atomic"

	"github.com/23skdu/gridscreen/internal/metrics"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// TrackingAllocator wraps an Arrow allocator and reports its traffic to
// Prometheus under a pool label ("host", "flight", "device").
type TrackingAllocator struct {
	memory.Allocator
	pool string

	BytesAllocated atomic.Int64
	BytesFreed     atomic.Int64
}

// NewTrackingAllocator wraps base. A nil base uses memory.DefaultAllocator.
func NewTrackingAllocator(pool string, base memory.Allocator) *TrackingAllocator {
	if base == nil {
		base = memory.DefaultAllocator
	}
	return &TrackingAllocator{Allocator: base, pool: pool}
}

func (a *TrackingAllocator) Allocate(size int) []byte {
	a.BytesAllocated.Add(int64(size))
	metrics.AllocatorBytesAllocatedTotal.WithLabelValues(a.pool).Add(float64(size))
	metrics.AllocatorAllocationsActive.WithLabelValues(a.pool).Inc()
	return a.Allocator.Allocate(size)
}

// Reallocate counts the new size as allocated and the old buffer as freed.
func (a *TrackingAllocator) Reallocate(size int, b []byte) []byte {
	a.BytesAllocated.Add(int64(size))
	a.BytesFreed.Add(int64(len(b)))
	metrics.AllocatorBytesAllocatedTotal.WithLabelValues(a.pool).Add(float64(size))
	metrics.AllocatorBytesFreedTotal.WithLabelValues(a.pool).Add(float64(len(b)))
	return a.Allocator.Reallocate(size, b)
}

func (a *TrackingAllocator) Free(b []byte) {
	a.BytesFreed.Add(int64(len(b)))
	metrics.AllocatorBytesFreedTotal.WithLabelValues(a.pool).Add(float64(len(b)))
	metrics.AllocatorAllocationsActive.WithLabelValues(a.pool).Dec()
	a.Allocator.Free(b)
}

// InUse is the number of tracked bytes not yet freed.
func (a *TrackingAllocator) InUse() int64 {
	return a.BytesAllocated.Load() - a.BytesFreed.Load()
}

var _ memory.Allocator = (*TrackingAllocator)(nil)
