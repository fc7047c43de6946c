package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DeviceTransferBytesTotal tracks bytes copied between host and device
	DeviceTransferBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridscreen_device_transfer_bytes_total",
			Help: "Total bytes copied between host and device memory",
		},
		[]string{"direction"}, // "h2d" | "d2h"
	)

	// DeviceAllocatedBytes tracks live device memory
	DeviceAllocatedBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gridscreen_device_allocated_bytes",
			Help: "Bytes currently allocated on the device",
		},
	)

	// DeviceErrorsTotal counts fatal device failures by stage
	DeviceErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridscreen_device_errors_total",
			Help: "Total number of device allocation, copy or launch failures",
		},
		[]string{"stage"},
	)

	// DeviceKernelDurationSeconds measures kernel launches
	DeviceKernelDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gridscreen_device_kernel_duration_seconds",
			Help:    "Duration of device kernel launches",
			Buckets: prometheus.DefBuckets,
		},
	)
)
