package metrics_collectors

import (
	"context"
	"runtime"
)

// GoroutineMetricCollector collects the number of active goroutines. A
// steadily growing count points at a leaked scan or serial reader.
type GoroutineMetricCollector struct{}

// Name returns the identifier for the goroutine metric collector.
func (g *GoroutineMetricCollector) Name() string {
	return MetricGoroutines
}

// Collect retrieves the number of active goroutines.
func (g *GoroutineMetricCollector) Collect(context.Context) (float64, error) {
	return float64(runtime.NumGoroutine()), nil
}

// Unit specifies the unit for the goroutine count metric.
func (g *GoroutineMetricCollector) Unit() string {
	return "count"
}

// Description provides a summary of the goroutine metric collected.
func (g *GoroutineMetricCollector) Description() string {
	return "Number of active goroutines in the runtime."
}
