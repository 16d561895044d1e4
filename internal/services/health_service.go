package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benmeehan/beacon-agent/internal/constants"
	"github.com/benmeehan/beacon-agent/internal/metrics_collectors"
	"github.com/benmeehan/beacon-agent/internal/models"
	"github.com/benmeehan/beacon-agent/internal/observability"
	"github.com/benmeehan/beacon-agent/pkg/identity"
	"github.com/rs/zerolog"
)

// HealthService samples device resources on an interval, exports them as
// Prometheus gauges and, when a publisher is set, sends a health message.
type HealthService struct {
	interval     time.Duration
	timeout      time.Duration
	registry     *metrics_collectors.MetricsRegistry
	metrics      *observability.AgentCollector
	publisher    Publisher // nil: gauges only
	deviceInfo   identity.DeviceInfoInterface
	identityKeys models.IdentityKeys
	logger       zerolog.Logger

	now    func() time.Time
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHealthService initializes and returns a new instance of HealthService.
func NewHealthService(
	interval, timeout time.Duration,
	registry *metrics_collectors.MetricsRegistry,
	metrics *observability.AgentCollector,
	publisher Publisher,
	deviceInfo identity.DeviceInfoInterface,
	keys models.IdentityKeys,
	logger zerolog.Logger,
) *HealthService {
	if interval <= 0 {
		interval = constants.DefaultHealthInterval
	}
	if timeout <= 0 || timeout > interval {
		timeout = interval
	}

	return &HealthService{
		interval:     interval,
		timeout:      timeout,
		registry:     registry,
		metrics:      metrics,
		publisher:    publisher,
		deviceInfo:   deviceInfo,
		identityKeys: keys,
		logger:       logger,
		now:          time.Now,
	}
}

// Start initiates periodic health collection.
func (h *HealthService) Start() error {
	if h.ctx != nil {
		h.logger.Warn().Msg("HealthService is already running")
		return errors.New("health service is already running")
	}

	h.ctx, h.cancel = context.WithCancel(context.Background())
	h.wg.Add(1)
	go h.runHealthLoop()

	h.logger.Info().
		Strs("metrics", h.registry.Names()).
		Dur("interval", h.interval).
		Msg("HealthService started successfully")
	return nil
}

// Stop gracefully stops the health service.
func (h *HealthService) Stop() error {
	if h.ctx == nil {
		h.logger.Warn().Msg("HealthService is not running")
		return errors.New("health service is not running")
	}

	h.cancel()
	h.wg.Wait()

	h.ctx = nil
	h.cancel = nil

	h.logger.Info().Msg("HealthService stopped successfully")
	return nil
}

func (h *HealthService) runHealthLoop() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.Collect(h.ctx)
		case <-h.ctx.Done():
			h.logger.Info().Msg("HealthService stopping gracefully")
			return
		}
	}
}

// Collect samples every registered collector once, updates the gauges and
// publishes the snapshot.
func (h *HealthService) Collect(ctx context.Context) map[string]float64 {
	collectCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	values := h.registry.CollectAll(collectCtx)
	h.metrics.SetDeviceHealth(values)
	h.logger.Debug().Interface("values", values).Msg("Device health collected")

	if h.publisher == nil {
		return values
	}

	msg := &models.Health{
		Header:        models.NewHeader(h.deviceInfo.GetDeviceIdentity(), h.identityKeys, h.now()),
		CPUUsage:      lookup(values, metrics_collectors.MetricCPU),
		MemoryUsage:   lookup(values, metrics_collectors.MetricMemory),
		DiskUsage:     lookup(values, metrics_collectors.MetricDisk),
		UptimeSeconds: values[metrics_collectors.MetricUptime],
	}
	if err := h.publisher.Publish(ctx, msg); err != nil {
		h.logger.Error().Err(err).Msg("Failed to publish health message")
	}
	return values
}

func lookup(values map[string]float64, name string) *float64 {
	v, ok := values[name]
	if !ok {
		return nil
	}
	return &v
}
