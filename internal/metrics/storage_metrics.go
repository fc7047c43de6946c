package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExportDurationSeconds measures writing the ranked results to Parquet
	ExportDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gridscreen_export_duration_seconds",
			Help:    "Time taken to write the results Parquet file",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ExportSizeBytes tracks the size of written results files
	ExportSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gridscreen_export_size_bytes",
			Help:    "Size of results Parquet files",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		},
	)

	// ExportRowsTotal counts result rows written to Parquet
	ExportRowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gridscreen_export_rows_total",
			Help: "Total number of ranked result rows exported",
		},
	)
)
