package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceCounters(t *testing.T) {
	m := NewMetricsService()

	m.SessionIssued()
	m.SessionResolved()
	m.SessionRejected("expired")
	m.SessionRejected("expired")
	m.AuditRecorded("USER_LOGIN")
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)

	assert.Equal(t, 1.0, gatheredValue(t, m, "sessions_issued_total", nil))
	assert.Equal(t, 2.0, gatheredValue(t, m, "session_resolutions_total", map[string]string{"outcome": "rejected", "reason": "expired"}))
	assert.Equal(t, 1.0, gatheredValue(t, m, "audit_events_total", map[string]string{"action": "USER_LOGIN"}))
	assert.Equal(t, 0.5, gatheredValue(t, m, "cache_hit_ratio", nil))
}

func gatheredValue(t *testing.T, m *MetricsService, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metrics:
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if want, ok := labels[pair.GetName()]; ok && want != pair.GetValue() {
					continue metrics
				}
			}
			if metric.GetCounter() != nil {
				return metric.GetCounter().GetValue()
			}
			return metric.GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestMetricsServiceHandlerServesExposition(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/reports", http.StatusOK, 10*time.Millisecond)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestMetricsServiceNilIsNoop(t *testing.T) {
	var m *MetricsService
	m.SessionIssued()
	m.AuditRecorded("X")
	m.ExportFinished("FAILED")

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
