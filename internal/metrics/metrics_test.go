package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ScanOutcome("on-time")
	m.ScanOutcome("on-time")
	m.ScanOutcome("late")
	m.SessionCreated()
	m.ObserveRequest("/api/sessions", "POST", "201", 0.01)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.scans.WithLabelValues("on-time")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("/api/sessions", "POST", "201")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ScanOutcome("late")
		m.SessionCreated()
		m.RateLimited()
		m.ObserveRequest("/", "GET", "200", 0)
	})
}
