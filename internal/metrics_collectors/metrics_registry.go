package metrics_collectors

import (
	"context"
	"sort"

	"github.com/rs/zerolog"
)

// Selection picks the collectors NewDefaultRegistry installs.
type Selection struct {
	CPU        bool
	Memory     bool
	Disk       bool
	DiskPath   string
	Goroutines bool
	Uptime     bool
}

// The registry will manage all metric collectors and collect them in one pass.
type MetricsRegistry struct {
	collectors map[string]MetricCollector
	logger     zerolog.Logger
}

// NewMetricsRegistry creates a new MetricsRegistry instance.
func NewMetricsRegistry(logger zerolog.Logger) *MetricsRegistry {
	return &MetricsRegistry{
		collectors: make(map[string]MetricCollector),
		logger:     logger,
	}
}

// NewDefaultRegistry registers the gopsutil-backed collectors enabled in sel.
func NewDefaultRegistry(sel Selection, logger zerolog.Logger) *MetricsRegistry {
	r := NewMetricsRegistry(logger)
	if sel.CPU {
		r.Register(&CPUMetricCollector{Logger: logger})
	}
	if sel.Memory {
		r.Register(&MemoryMetricCollector{Logger: logger})
	}
	if sel.Disk {
		r.Register(&DiskMetricCollector{Path: sel.DiskPath, Logger: logger})
	}
	if sel.Goroutines {
		r.Register(&GoroutineMetricCollector{})
	}
	if sel.Uptime {
		r.Register(&UptimeMetricCollector{})
	}
	return r
}

// Register adds a new metric collector to the registry.
func (r *MetricsRegistry) Register(collector MetricCollector) {
	r.collectors[collector.Name()] = collector
}

// GetCollectors returns all the metric collectors registered in the registry.
func (r *MetricsRegistry) GetCollectors() map[string]MetricCollector {
	return r.collectors
}

// Names returns the registered metric names in sorted order.
func (r *MetricsRegistry) Names() []string {
	names := make([]string, 0, len(r.collectors))
	for name := range r.collectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CollectAll runs every collector. Failed collectors are logged and left out
// of the result.
func (r *MetricsRegistry) CollectAll(ctx context.Context) map[string]float64 {
	values := make(map[string]float64, len(r.collectors))
	for _, name := range r.Names() {
		collector := r.collectors[name]
		v, err := collector.Collect(ctx)
		if err != nil {
			r.logger.Error().Err(err).Str("metric", name).Msg("Failed to collect metric")
			continue
		}
		values[name] = v
	}
	return values
}
