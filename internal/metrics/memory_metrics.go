package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AllocatorBytesAllocatedTotal counts bytes handed out by tracked Arrow allocators
	AllocatorBytesAllocatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridscreen_allocator_bytes_allocated_total",
			Help: "Total bytes allocated through tracked Arrow allocators",
		},
		[]string{"pool"},
	)

	// AllocatorBytesFreedTotal counts bytes returned to tracked Arrow allocators
	AllocatorBytesFreedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridscreen_allocator_bytes_freed_total",
			Help: "Total bytes freed through tracked Arrow allocators",
		},
		[]string{"pool"},
	)

	// AllocatorAllocationsActive is the number of live allocations
	AllocatorAllocationsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gridscreen_allocator_allocations_active",
			Help: "Number of live allocations in tracked Arrow allocators",
		},
		[]string{"pool"},
	)
)
