// Package metrics exposes Prometheus metrics for analysis runs and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all factorlens metrics on a dedicated Prometheus registry.
type Registry struct {
	registry *prometheus.Registry

	StageDuration      *prometheus.HistogramVec
	Runs               *prometheus.CounterVec
	ActiveRuns         prometheus.Gauge
	CacheRequests      *prometheus.CounterVec
	UndefinedScores    *prometheus.CounterVec
	ComponentsRetained *prometheus.GaugeVec
	CumulativeVariance *prometheus.GaugeVec
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

// New creates a registry with every metric registered, plus the Go runtime and process
// collectors.
func New() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "factorlens_stage_duration_seconds",
				Help:    "Duration of each analysis stage in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"stage", "result"},
		),

		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factorlens_runs_total",
				Help: "Analysis runs by universe and status",
			},
			[]string{"universe", "status"},
		),

		ActiveRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "factorlens_active_runs",
				Help: "Number of analysis runs in progress",
			},
		),

		CacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factorlens_cache_requests_total",
				Help: "Result cache lookups by outcome",
			},
			[]string{"result"},
		),

		UndefinedScores: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factorlens_undefined_scores_total",
				Help: "Residual z-scores left undefined because of zero rolling variance",
			},
			[]string{"universe"},
		),

		ComponentsRetained: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "factorlens_components_retained",
				Help: "Principal components retained by the last run",
			},
			[]string{"universe"},
		),

		CumulativeVariance: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "factorlens_cumulative_variance_ratio",
				Help: "Cumulative explained variance of the retained components in the last run",
			},
			[]string{"universe"},
		),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factorlens_http_requests_total",
				Help: "HTTP requests by route, method and status code",
			},
			[]string{"route", "method", "code"},
		),

		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "factorlens_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.StageDuration,
		r.Runs,
		r.ActiveRuns,
		r.CacheRequests,
		r.UndefinedScores,
		r.ComponentsRetained,
		r.CumulativeVariance,
		r.HTTPRequests,
		r.HTTPDuration,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Gatherer exposes the underlying registry, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.registry }

// StageTimer tracks execution time of one analysis stage.
type StageTimer struct {
	metrics *Registry
	stage   string
	start   time.Time
}

// StartStage begins timing a stage. A nil registry yields a timer that records nothing.
func (r *Registry) StartStage(stage string) *StageTimer {
	return &StageTimer{metrics: r, stage: stage, start: time.Now()}
}

// Stop records the stage duration under result ("ok" or "error") and returns it.
func (t *StageTimer) Stop(result string) time.Duration {
	d := time.Since(t.start)
	if t.metrics != nil {
		t.metrics.StageDuration.WithLabelValues(t.stage, result).Observe(d.Seconds())
	}
	return d
}

// RunStarted marks a run as in progress.
func (r *Registry) RunStarted() {
	if r == nil {
		return
	}
	r.ActiveRuns.Inc()
}

// RunFinished records the outcome of a run.
func (r *Registry) RunFinished(universe, status string) {
	if r == nil {
		return
	}
	r.ActiveRuns.Dec()
	r.Runs.WithLabelValues(universe, status).Inc()
}

// RecordSelection records the retained component count and their cumulative variance.
func (r *Registry) RecordSelection(universe string, k int, cumulative float64) {
	if r == nil {
		return
	}
	r.ComponentsRetained.WithLabelValues(universe).Set(float64(k))
	r.CumulativeVariance.WithLabelValues(universe).Set(cumulative)
}

// RecordUndefinedScores adds n undefined z-scores for universe.
func (r *Registry) RecordUndefinedScores(universe string, n int) {
	if r == nil || n == 0 {
		return
	}
	r.UndefinedScores.WithLabelValues(universe).Add(float64(n))
}

// RecordCache records a cache lookup.
func (r *Registry) RecordCache(hit bool) {
	if r == nil {
		return
	}
	if hit {
		r.CacheRequests.WithLabelValues("hit").Inc()
	} else {
		r.CacheRequests.WithLabelValues("miss").Inc()
	}
}

// RecordHTTP records one served request.
func (r *Registry) RecordHTTP(route, method string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	r.HTTPDuration.WithLabelValues(route, method).Observe(d.Seconds())
}
