package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentCollector_ObserveCycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewAgentCollector(reg)
	require.NoError(t, err)

	c.ObserveCycle("published", 3*time.Second)
	c.ObserveCycle("published", 4*time.Second)
	c.ObserveCycle("failed", time.Second)
	c.ObserveStep("scan", 2*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Cycles.WithLabelValues("published")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Cycles.WithLabelValues("failed")))
	assert.Equal(t, uint64(3), histogramSampleCount(t, reg, "agent_cycle_duration_seconds", nil))
	assert.Equal(t, uint64(1), histogramSampleCount(t, reg, "agent_cycle_step_duration_seconds", map[string]string{"step": "scan"}))
}

func TestAgentCollector_ReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewAgentCollector(reg)
	require.NoError(t, err)
	second, err := NewAgentCollector(reg)
	require.NoError(t, err)

	first.IncWatchdogFeeds()
	second.IncWatchdogFeeds()

	assert.Equal(t, 2.0, testutil.ToFloat64(first.WatchdogFeeds))
}

func TestAgentCollector_NilSafe(t *testing.T) {
	var c *AgentCollector

	assert.NotPanics(t, func() {
		c.ObserveCycle("published", time.Second)
		c.SetScanCounts(1, 2)
		c.IncGPSIncomplete()
		c.SetDeviceHealth(map[string]float64{"cpu": 1})
	})
}

func TestAgentCollector_Handler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewAgentCollector(reg)
	require.NoError(t, err)
	c.SetScanCounts(7, 3)
	c.IncGPSIncomplete()
	c.SetDeviceHealth(map[string]float64{"cpu": 12.5})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "agent_scan_beacons 7")
	assert.Contains(t, body, "agent_scan_tags 3")
	assert.Contains(t, body, "agent_gps_incomplete_total 1")
	assert.Contains(t, body, `agent_device_health{metric="cpu"} 12.5`)
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	require.NoError(t, err)
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
