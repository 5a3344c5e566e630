// Package metrics defines the Prometheus metric collectors used by the
// preprocessing pipeline, the index store and the worker, and exposes an
// HTTP handler for scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and
// records nothing, so components can treat instrumentation as optional.
type Metrics struct {
	DocumentsProcessedTotal *prometheus.CounterVec
	TermsEmittedTotal       *prometheus.CounterVec
	PreprocessDuration      *prometheus.HistogramVec
	CacheHitsTotal          prometheus.Counter
	CacheMissesTotal        prometheus.Counter
	CacheCircuitState       prometheus.Gauge
	StoreWritesTotal        *prometheus.CounterVec
	StoreLoadsTotal         *prometheus.CounterVec
	WorkerMessagesTotal     *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates all collectors and registers them with reg. When reg is nil
// the default registry is used.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		DocumentsProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preprocess_documents_total",
				Help: "Documents run through the preprocessor by language and status (ok, unsupported, error).",
			},
			[]string{"lang", "status"},
		),
		TermsEmittedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preprocess_terms_emitted_total",
				Help: "Stemmed terms produced by the preprocessor by language.",
			},
			[]string{"lang"},
		),
		PreprocessDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "preprocess_duration_seconds",
				Help:    "Time to normalize, tokenize, filter and stem one document.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
			},
			[]string{"lang"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "term_cache_hits_total",
				Help: "Total number of term cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "term_cache_misses_total",
				Help: "Total number of term cache misses.",
			},
		),
		CacheCircuitState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "term_cache_circuit_state",
				Help: "Term cache circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
		),
		StoreWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_store_writes_total",
				Help: "Index artifact files written by file name and status.",
			},
			[]string{"file", "status"},
		),
		StoreLoadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_store_loads_total",
				Help: "Index file loads by status (ok, not_found, malformed, error).",
			},
			[]string{"status"},
		),
		WorkerMessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "worker_messages_total",
				Help: "Document events handled by the term worker by outcome.",
			},
			[]string{"outcome"},
		),
	}

	reg.MustRegister(
		m.DocumentsProcessedTotal,
		m.TermsEmittedTotal,
		m.PreprocessDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheCircuitState,
		m.StoreWritesTotal,
		m.StoreLoadsTotal,
		m.WorkerMessagesTotal,
	)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	} else {
		m.gatherer = prometheus.DefaultGatherer
	}
	return m
}

// ObserveDocument records one preprocessor call.
func (m *Metrics) ObserveDocument(lang, status string, terms int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.DocumentsProcessedTotal.WithLabelValues(lang, status).Inc()
	if status == "ok" {
		m.TermsEmittedTotal.WithLabelValues(lang).Add(float64(terms))
		m.PreprocessDuration.WithLabelValues(lang).Observe(elapsed.Seconds())
	}
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.CacheMissesTotal.Inc()
}

func (m *Metrics) SetCacheCircuitState(state int) {
	if m == nil {
		return
	}
	m.CacheCircuitState.Set(float64(state))
}

func (m *Metrics) StoreWrite(file, status string) {
	if m == nil {
		return
	}
	m.StoreWritesTotal.WithLabelValues(file, status).Inc()
}

func (m *Metrics) StoreLoad(status string) {
	if m == nil {
		return
	}
	m.StoreLoadsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) WorkerMessage(outcome string) {
	if m == nil {
		return
	}
	m.WorkerMessagesTotal.WithLabelValues(outcome).Inc()
}

// Handler returns the Prometheus scrape HTTP handler for the registry the
// metrics were registered with.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
