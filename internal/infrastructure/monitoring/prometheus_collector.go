package monitoring

import (
	"strconv"
	"time"

	"eclairia/internal/core/domain"
	"eclairia/internal/core/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector records validator and HTTP metrics. It implements
// ports.ValidationObserver.
type PrometheusCollector struct {
	probesInFlight    prometheus.Gauge
	probeAttempts     *prometheus.CounterVec
	probeDuration     *prometheus.HistogramVec
	stationsValidated *prometheus.CounterVec

	runsTotal          prometheus.Counter
	lastRunStations    prometheus.Gauge
	lastRunSuccessRate prometheus.Gauge
	lastRunDuration    prometheus.Gauge
	lastRunTimestamp   prometheus.Gauge

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

var _ ports.ValidationObserver = (*PrometheusCollector)(nil)

func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)
	return &PrometheusCollector{
		probesInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "eclairia_probes_in_flight",
			Help: "Number of station probes currently running",
		}),

		probeAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eclairia_probe_attempts_total",
			Help: "Probe attempts by outcome",
		}, []string{"outcome"}),

		probeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eclairia_probe_duration_seconds",
			Help:    "Duration of single probe attempts",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}, []string{"outcome"}),

		stationsValidated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eclairia_stations_validated_total",
			Help: "Terminal station results by outcome",
		}, []string{"outcome"}),

		runsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "eclairia_validation_runs_total",
			Help: "Completed validation runs",
		}),

		lastRunStations: factory.NewGauge(prometheus.GaugeOpts{
			Name: "eclairia_last_run_stations",
			Help: "Number of stations in the last completed run",
		}),

		lastRunSuccessRate: factory.NewGauge(prometheus.GaugeOpts{
			Name: "eclairia_last_run_success_ratio",
			Help: "Share of reachable stations in the last completed run (0-1)",
		}),

		lastRunDuration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "eclairia_last_run_duration_seconds",
			Help: "Wall time of the last completed run",
		}),

		lastRunTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "eclairia_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),

		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eclairia_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),

		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eclairia_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func outcomeLabel(kind domain.ErrorKind) string {
	if kind == domain.ErrorKindNone {
		return "ok"
	}
	return string(kind)
}

func (p *PrometheusCollector) ProbeStarted() {
	p.probesInFlight.Inc()
}

func (p *PrometheusCollector) ProbeFinished(kind domain.ErrorKind, duration time.Duration) {
	p.probesInFlight.Dec()
	label := outcomeLabel(kind)
	p.probeAttempts.WithLabelValues(label).Inc()
	p.probeDuration.WithLabelValues(label).Observe(duration.Seconds())
}

func (p *PrometheusCollector) StationCompleted(result domain.ValidationResult) {
	p.stationsValidated.WithLabelValues(outcomeLabel(result.Error)).Inc()
}

func (p *PrometheusCollector) RunFinished(summary *domain.Summary) {
	p.runsTotal.Inc()
	p.lastRunStations.Set(float64(summary.Total))
	p.lastRunSuccessRate.Set(summary.SuccessRate)
	p.lastRunDuration.Set(summary.FinishedAt.Sub(summary.StartedAt).Seconds())
	p.lastRunTimestamp.Set(float64(summary.FinishedAt.Unix()))
}

func (p *PrometheusCollector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	p.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
