package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationCounter(t *testing.T) {
	m := New()
	m.Operation("register", "ok")
	m.Operation("register", "ok")
	m.Operation("register", "already_registered")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("register", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("register", "already_registered")))
}

func TestServersGauge(t *testing.T) {
	m := New()
	m.SetServers(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.servers))
	m.SetServers(1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.servers))
}

func TestFlushHistogram(t *testing.T) {
	m := New()
	m.ObserveFlush(2 * time.Millisecond)
	m.ObserveFlush(5 * time.Millisecond)

	n, err := testutil.GatherAndCount(m.registry, "orbd_flush_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	families, err := m.registry.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == "orbd_flush_duration_seconds" {
			assert.Equal(t, uint64(2), f.GetMetric()[0].GetHistogram().GetSampleCount())
		}
	}
}

func TestThrottledCounter(t *testing.T) {
	m := New()
	m.Throttled()
	assert.NoError(t, testutil.CollectAndCompare(m.rejected, strings.NewReader(`
# HELP orbd_rpc_connections_throttled_total Accepted connections delayed by the rate limiter.
# TYPE orbd_rpc_connections_throttled_total counter
orbd_rpc_connections_throttled_total 1
`)))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Operation("get", "ok")
		m.SetServers(1)
		m.ObserveFlush(time.Second)
		m.Throttled()
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.Operation("install", "ok")
	m.Throttled()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `orbd_operations_total{op="install",result="ok"} 1`)
	assert.Contains(t, body, "orbd_rpc_connections_throttled_total 1")
	assert.Contains(t, body, "go_goroutines")
}
