// Package metrics exposes Prometheus collectors for the scraping jobs.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/abelzeko/allerta-bot/internal/entities"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors registered by New
type Metrics struct {
	Runs           *prometheus.CounterVec
	LastSuccess    *prometheus.GaugeVec
	MaxCriticality prometheus.Gauge
	SensorAlerts   *prometheus.GaugeVec
	FetchDuration  *prometheus.HistogramVec
}

// New registers the collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "allerta_runs_total",
			Help: "Job runs by outcome",
		}, []string{"job", "outcome"}),
		LastSuccess: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "allerta_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run per job",
		}, []string{"job"}),
		MaxCriticality: f.NewGauge(prometheus.GaugeOpts{
			Name: "allerta_max_criticality",
			Help: "Highest criticality for today across zones (0 green .. 3 red)",
		}),
		SensorAlerts: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "allerta_sensor_alerts",
			Help: "Stations over threshold in the last snapshot",
		}, []string{"category"}),
		FetchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "allerta_fetch_duration_seconds",
			Help:    "Duration of job runs",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 0.25s .. ~2min
		}, []string{"job"}),
	}
}

// ObserveRun records the outcome and duration of a job run
func (m *Metrics) ObserveRun(job, outcome string, started, finished time.Time) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(job, outcome).Inc()
	m.FetchDuration.WithLabelValues(job).Observe(finished.Sub(started).Seconds())
	if outcome != entities.OutcomeFailed {
		m.LastSuccess.WithLabelValues(job).Set(float64(finished.Unix()))
	}
}

// SetMaxCriticality records today's highest level
func (m *Metrics) SetMaxCriticality(c entities.Criticality) {
	if m == nil {
		return
	}
	m.MaxCriticality.Set(float64(c.Score()))
}

// SetSensorAlerts records how many stations of a category are over threshold
func (m *Metrics) SetSensorAlerts(category string, n int) {
	if m == nil {
		return
	}
	m.SensorAlerts.WithLabelValues(category).Set(float64(n))
}

// Handler serves the registry in the Prometheus text format
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
