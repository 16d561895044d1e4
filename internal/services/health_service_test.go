package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	collectors "github.com/benmeehan/beacon-agent/internal/metrics_collectors"
	"github.com/benmeehan/beacon-agent/internal/mocks"
	"github.com/benmeehan/beacon-agent/internal/models"
	"github.com/benmeehan/beacon-agent/internal/observability"
	"github.com/benmeehan/beacon-agent/internal/services"
	"github.com/benmeehan/beacon-agent/pkg/identity"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixedCollector struct {
	name  string
	value float64
	err   error
}

func (f *fixedCollector) Name() string                              { return f.name }
func (f *fixedCollector) Collect(context.Context) (float64, error) { return f.value, f.err }
func (f *fixedCollector) Unit() string                              { return "percentage" }
func (f *fixedCollector) Description() string                       { return "fixed" }

func newHealthRegistry() *collectors.MetricsRegistry {
	r := collectors.NewMetricsRegistry(zerolog.Nop())
	r.Register(&fixedCollector{name: collectors.MetricCPU, value: 12.34})
	r.Register(&fixedCollector{name: collectors.MetricMemory, err: errors.New("no /proc/meminfo")})
	r.Register(&fixedCollector{name: collectors.MetricUptime, value: 3600.7})
	return r
}

// TestHealthService_Collect tests gauge export and the published snapshot.
func TestHealthService_Collect(t *testing.T) {
	// Setup
	metrics, err := observability.NewAgentCollector(prometheus.NewRegistry())
	require.NoError(t, err)

	deviceInfo := new(mocks.MockDeviceInfo)
	deviceInfo.On("GetDeviceIdentity").Return(identity.Identity{DeviceID: "dev-1", ApplicationID: "app-1"})

	var published *models.Health
	publisher := new(mocks.MockPublisher)
	publisher.On("Publish", mock.Anything, mock.AnythingOfType("*models.Health")).
		Run(func(args mock.Arguments) { published = args.Get(1).(*models.Health) }).
		Return(nil)

	h := services.NewHealthService(time.Minute, time.Second, newHealthRegistry(), metrics, publisher, deviceInfo, models.DefaultIdentityKeys, zerolog.Nop())

	// Execute
	values := h.Collect(context.Background())

	// Assert
	assert.Equal(t, map[string]float64{collectors.MetricCPU: 12.34, collectors.MetricUptime: 3600.7}, values)
	assert.Equal(t, 12.34, testutil.ToFloat64(metrics.Device.WithLabelValues(collectors.MetricCPU)))

	require.NotNil(t, published)
	assert.Nil(t, published.MemoryUsage)
	wire, err := published.Wire()
	require.NoError(t, err)
	assert.Contains(t, string(wire), `"cpu_usage":12.3`)
	assert.Contains(t, string(wire), `"uptime":3600}`)
	assert.NotContains(t, string(wire), "memory_usage")
}

func TestHealthService_Collect_WithoutPublisher(t *testing.T) {
	// Setup
	h := services.NewHealthService(time.Minute, 0, newHealthRegistry(), nil, nil, nil, models.DefaultIdentityKeys, zerolog.Nop())

	// Execute
	values := h.Collect(context.Background())

	// Assert
	assert.Len(t, values, 2)
}

func TestHealthService_StartStop(t *testing.T) {
	// Setup
	h := services.NewHealthService(time.Minute, 0, newHealthRegistry(), nil, nil, nil, models.DefaultIdentityKeys, zerolog.Nop())

	// Execute
	err := h.Start()

	// Assert
	require.NoError(t, err)
	assert.EqualError(t, h.Start(), "health service is already running")
	assert.NoError(t, h.Stop())
	assert.EqualError(t, h.Stop(), "health service is not running")
}
