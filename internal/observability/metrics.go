package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AgentCollector bundles the Prometheus metrics of the acquisition cycle and
// device health, and serves them over HTTP.
type AgentCollector struct {
	gatherer prometheus.Gatherer

	Cycles        *prometheus.CounterVec
	CycleDuration prometheus.Histogram
	StepDuration  *prometheus.HistogramVec
	Beacons       prometheus.Gauge
	Tags          prometheus.Gauge
	GPSIncomplete prometheus.Counter
	WatchdogFeeds prometheus.Counter
	Device        *prometheus.GaugeVec
}

// NewAgentCollector registers the agent metrics against reg, defaulting to
// the global Prometheus registry when nil.
func NewAgentCollector(reg prometheus.Registerer) (*AgentCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	cycles, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_cycles_total",
		Help: "Acquisition cycles run, labeled by result.",
	}, []string{"result"}), "agent_cycles_total")
	if err != nil {
		return nil, err
	}

	cycleDuration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "agent_cycle_duration_seconds",
		Help:    "Wall time of a full acquisition cycle.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 240, 300, 600},
	}), "agent_cycle_duration_seconds")
	if err != nil {
		return nil, err
	}

	stepDuration, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agent_cycle_step_duration_seconds",
		Help:    "Wall time of each cycle step.",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 240, 300},
	}, []string{"step"}), "agent_cycle_step_duration_seconds")
	if err != nil {
		return nil, err
	}

	beacons, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "agent_scan_beacons",
		Help: "Unique beacons seen in the last scan.",
	}), "agent_scan_beacons")
	if err != nil {
		return nil, err
	}
	tags, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "agent_scan_tags",
		Help: "Unique tags seen in the last scan.",
	}), "agent_scan_tags")
	if err != nil {
		return nil, err
	}

	gpsIncomplete, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "agent_gps_incomplete_total",
		Help: "GPS updates that ended before every required sentence arrived.",
	}), "agent_gps_incomplete_total")
	if err != nil {
		return nil, err
	}
	feeds, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "agent_watchdog_feeds_total",
		Help: "Successful watchdog keep-alives.",
	}), "agent_watchdog_feeds_total")
	if err != nil {
		return nil, err
	}

	device, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "agent_device_health",
		Help: "Device health samples, labeled by metric (cpu, memory, disk, goroutines, uptime).",
	}, []string{"metric"}), "agent_device_health")
	if err != nil {
		return nil, err
	}

	return &AgentCollector{
		gatherer:      gatherer,
		Cycles:        cycles,
		CycleDuration: cycleDuration,
		StepDuration:  stepDuration,
		Beacons:       beacons,
		Tags:          tags,
		GPSIncomplete: gpsIncomplete,
		WatchdogFeeds: feeds,
		Device:        device,
	}, nil
}

// ObserveCycle records one finished cycle. Safe on a nil collector.
func (c *AgentCollector) ObserveCycle(result string, d time.Duration) {
	if c == nil {
		return
	}
	c.Cycles.WithLabelValues(result).Inc()
	c.CycleDuration.Observe(d.Seconds())
}

func (c *AgentCollector) ObserveStep(step string, d time.Duration) {
	if c == nil {
		return
	}
	c.StepDuration.WithLabelValues(step).Observe(d.Seconds())
}

func (c *AgentCollector) SetScanCounts(beacons, tags int) {
	if c == nil {
		return
	}
	c.Beacons.Set(float64(beacons))
	c.Tags.Set(float64(tags))
}

func (c *AgentCollector) IncGPSIncomplete() {
	if c == nil {
		return
	}
	c.GPSIncomplete.Inc()
}

func (c *AgentCollector) IncWatchdogFeeds() {
	if c == nil {
		return
	}
	c.WatchdogFeeds.Inc()
}

// SetDeviceHealth publishes one gauge per collected metric.
func (c *AgentCollector) SetDeviceHealth(values map[string]float64) {
	if c == nil {
		return
	}
	for name, v := range values {
		c.Device.WithLabelValues(name).Set(v)
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *AgentCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
