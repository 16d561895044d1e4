package metrics_collectors_test

import (
	"context"
	"errors"
	"testing"

	collectors "github.com/benmeehan/beacon-agent/internal/metrics_collectors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type staticCollector struct {
	name  string
	value float64
	err   error
}

func (s *staticCollector) Name() string                              { return s.name }
func (s *staticCollector) Collect(context.Context) (float64, error) { return s.value, s.err }
func (s *staticCollector) Unit() string                              { return "count" }
func (s *staticCollector) Description() string                       { return "test" }

func TestMetricsRegistry_CollectAll_SkipsFailures(t *testing.T) {
	// Setup
	r := collectors.NewMetricsRegistry(zerolog.Nop())
	r.Register(&staticCollector{name: "ok", value: 42})
	r.Register(&staticCollector{name: "broken", err: errors.New("no /proc")})

	// Execute
	values := r.CollectAll(context.Background())

	// Assert
	assert.Equal(t, map[string]float64{"ok": 42}, values)
	assert.Equal(t, []string{"broken", "ok"}, r.Names())
}

func TestNewDefaultRegistry_Selection(t *testing.T) {
	r := collectors.NewDefaultRegistry(collectors.Selection{CPU: true, Disk: true, Goroutines: true}, zerolog.Nop())

	assert.Equal(t, []string{collectors.MetricCPU, collectors.MetricDisk, collectors.MetricGoroutines}, r.Names())
}

func TestGoroutineMetricCollector_Collect(t *testing.T) {
	c := &collectors.GoroutineMetricCollector{}

	v, err := c.Collect(context.Background())

	assert.NoError(t, err)
	assert.GreaterOrEqual(t, v, 1.0)
	assert.Equal(t, "count", c.Unit())
}
