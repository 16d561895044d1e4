package metrics_collectors

import (
	"context"
)

// MetricCollector defines the interface for collecting a specific metric.
type MetricCollector interface {
	Name() string                                 // Name of the metric (e.g., "cpu", "memory")
	Collect(ctx context.Context) (float64, error) // Collect the metric data
	Unit() string                                 // Unit of the metric (e.g., "percentage", "seconds")
	Description() string                          // Description of the metric
}

// Metric names used as registry keys.
const (
	MetricCPU        = "cpu"
	MetricMemory     = "memory"
	MetricDisk       = "disk"
	MetricGoroutines = "goroutines"
	MetricUptime     = "uptime"
)
