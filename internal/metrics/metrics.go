package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FlightOperationsTotal counts the Flight calls of the process group (DoGet, DoPut, DoAction)
	FlightOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridscreen_flight_operations_total",
			Help: "The total number of processed Arrow Flight operations",
		},
		[]string{"method", "status"},
	)

	// FlightDurationSeconds measures the latency of Flight operations
	FlightDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gridscreen_flight_duration_seconds",
			Help:    "Duration of Arrow Flight operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// GatherBytesTotal tracks score bytes moved by gather collectives
	GatherBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridscreen_gather_bytes_total",
			Help: "Total score bytes contributed to gather collectives",
		},
		[]string{"transport"},
	)

	// CollectiveDurationSeconds measures time spent blocked in collectives
	CollectiveDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gridscreen_collective_duration_seconds",
			Help:    "Time spent inside collective operations, including waiting for peers",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"op"},
	)
)
