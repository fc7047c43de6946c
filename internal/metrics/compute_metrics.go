package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Score Grid Computation Metrics
// =============================================================================

var (
	// CellsEvaluatedTotal counts kernel invocations, one per grid cell
	CellsEvaluatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridscreen_cells_evaluated_total",
			Help: "Total number of score grid cells evaluated by the potential kernel",
		},
		[]string{"backend", "context"}, // context: "cpu" | "device"
	)

	// RunDurationSeconds measures one full grid computation
	RunDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gridscreen_run_duration_seconds",
			Help:    "Wall time of a complete score grid computation",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"backend"},
	)

	// RunsTotal counts grid computations by outcome
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridscreen_runs_total",
			Help: "Total number of score grid computations",
		},
		[]string{"backend", "status"},
	)

	// WorkRangeSize records the size of each assigned work range
	WorkRangeSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gridscreen_work_range_size",
			Help:    "Number of canonical indices assigned to a worker",
			Buckets: prometheus.ExponentialBuckets(1, 4, 12),
		},
		[]string{"backend"},
	)

	// BulkApplyChunksTotal counts chunks claimed by pool workers
	BulkApplyChunksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gridscreen_bulk_apply_chunks_total",
			Help: "Total number of index chunks claimed by bulk-apply workers",
		},
	)
)
