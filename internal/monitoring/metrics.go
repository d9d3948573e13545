// Package monitoring holds the Prometheus instruments of the ETL.
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "econ"

// Metrics holds all Prometheus metrics for the pipeline and API.
// Each instance owns its registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal          *prometheus.CounterVec // labels: status
	RunDuration        prometheus.Histogram
	LastRunTimestamp   prometheus.Gauge
	SeriesTotal        *prometheus.CounterVec // labels: result, stage
	SeriesDuration     prometheus.Histogram
	ObservationsStored prometheus.Counter
	MetricsStored      prometheus.Counter
	DroppedRows        prometheus.Counter
	HTTPRequests       *prometheus.CounterVec // labels: route, code
	HTTPDuration       *prometheus.HistogramVec
}

// New registers and returns all metrics
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by final status",
		}, []string{"status"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_run_duration_seconds",
			Help:      "Wall time of a full pipeline run",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
		SeriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_series_total",
			Help:      "Series processed, by result and failing stage",
		}, []string{"result", "stage"}),
		SeriesDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_series_duration_seconds",
			Help:      "Extract, transform and load time of one series",
			Buckets:   prometheus.DefBuckets,
		}),
		ObservationsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_upserted_total",
			Help:      "Observation rows written",
		}),
		MetricsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metrics_upserted_total",
			Help:      "Calculated metric rows written",
		}),
		DroppedRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_dropped_total",
			Help:      "Provider rows dropped for data quality",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by route and status code",
		}, []string{"route", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RunsTotal,
		m.RunDuration,
		m.LastRunTimestamp,
		m.SeriesTotal,
		m.SeriesDuration,
		m.ObservationsStored,
		m.MetricsStored,
		m.DroppedRows,
		m.HTTPRequests,
		m.HTTPDuration,
	)

	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRun records a finished pipeline run
func (m *Metrics) ObserveRun(status string, started, finished time.Time) {
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(finished.Sub(started).Seconds())
	m.LastRunTimestamp.Set(float64(finished.Unix()))
}

// ObserveSeries records one series outcome. stage is empty on success.
func (m *Metrics) ObserveSeries(stage string, err error, elapsed time.Duration) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.SeriesTotal.WithLabelValues(result, stage).Inc()
	m.SeriesDuration.Observe(elapsed.Seconds())
}
