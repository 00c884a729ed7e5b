// Package metrics defines the Prometheus metric collectors used across the
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	AnalysisTotal        *prometheus.CounterVec
	AnalysisLatency      *prometheus.HistogramVec
	AnalysisStageSeconds *prometheus.HistogramVec
	MatrixFeatures       prometheus.Histogram
	MatrixRows           prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	DocsIngestedTotal    *prometheus.CounterVec
	CorpusDocuments      prometheus.Gauge
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg. A nil reg means
// the process-wide default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		AnalysisTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "textplot_analysis_total",
				Help: "Analysis requests by operation and outcome (ok, cached, error).",
			},
			[]string{"operation", "outcome"},
		),
		AnalysisLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "textplot_analysis_latency_seconds",
				Help:    "Analysis pipeline latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),
		AnalysisStageSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "textplot_analysis_stage_seconds",
				Help:    "Time spent in each pipeline stage (build, weight, project, ...) of an analysis.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"operation", "stage"},
		),
		MatrixFeatures: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "textplot_matrix_features",
				Help:    "Number of feature columns in built document-feature matrices.",
				Buckets: prometheus.ExponentialBuckets(10, 4, 8),
			},
		),
		MatrixRows: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "textplot_matrix_rows",
				Help:    "Number of rows in built document-feature matrices.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses.",
			},
		),
		DocsIngestedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "textplot_documents_ingested_total",
				Help: "Documents added to the corpus by source (http, kafka, import, postgres).",
			},
			[]string{"source"},
		),
		CorpusDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "textplot_corpus_documents",
				Help: "Number of documents in the live corpus.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.AnalysisTotal,
		m.AnalysisLatency,
		m.AnalysisStageSeconds,
		m.MatrixFeatures,
		m.MatrixRows,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DocsIngestedTotal,
		m.CorpusDocuments,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
