package metrics_collectors

import (
	"context"

	"github.com/shirou/gopsutil/host"
)

// UptimeMetricCollector reports time since the host booted. Drops to zero
// mark forced restarts.
type UptimeMetricCollector struct{}

func (u *UptimeMetricCollector) Name() string {
	return MetricUptime
}

func (u *UptimeMetricCollector) Collect(ctx context.Context) (float64, error) {
	secs, err := host.UptimeWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return float64(secs), nil
}

func (u *UptimeMetricCollector) Unit() string {
	return "seconds"
}

func (u *UptimeMetricCollector) Description() string {
	return "Seconds since the host booted."
}
