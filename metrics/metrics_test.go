package metrics_test

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/tuniway/tuniway-web/metrics"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics
	require.NotPanics(t, func() {
		m.AuthAttempt(metrics.OpLogin, metrics.OutcomeSuccess)
		m.GuardDecision(metrics.GuardAllowed)
		m.Injection(metrics.InjectBypassed)
		m.Handoff("established")
	})
}

func TestCountersExposed(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg, reg)

	m.AuthAttempt(metrics.OpLogin, metrics.OutcomeSuccess)
	m.AuthAttempt(metrics.OpLogin, metrics.OutcomeSuccess)
	m.GuardDecision(metrics.GuardCorrupted)

	count, err := testutil.GatherAndCount(reg, "tuniway_session_auth_attempts_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `tuniway_session_auth_attempts_total{op="login",outcome="success"} 2`)
	require.Contains(t, string(body), `tuniway_session_guard_decisions_total{decision="corrupted"} 1`)
}
