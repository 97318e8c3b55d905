package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/abelzeko/allerta-bot/internal/entities"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	start := time.Unix(1_700_000_000, 0)
	m.ObserveRun("bulletin", entities.OutcomeOK, start, start.Add(2*time.Second))
	m.ObserveRun("bulletin", entities.OutcomeFailed, start, start.Add(time.Second))
	m.SetMaxCriticality(entities.Orange)
	m.SetSensorAlerts("pluviometria", 3)

	require.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("bulletin", entities.OutcomeOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("bulletin", entities.OutcomeFailed)))
	require.Equal(t, float64(start.Add(2*time.Second).Unix()), testutil.ToFloat64(m.LastSuccess.WithLabelValues("bulletin")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.MaxCriticality))
	require.Equal(t, 3.0, testutil.ToFloat64(m.SensorAlerts.WithLabelValues("pluviometria")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveRun("x", entities.OutcomeOK, time.Now(), time.Now())
	m.SetMaxCriticality(entities.Red)
	m.SetSensorAlerts("x", 1)
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg).SetMaxCriticality(entities.Yellow)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "allerta_max_criticality 1")
}
