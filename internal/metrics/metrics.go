// Package metrics owns the prometheus registry and the collectors updated by
// ingestion and search. All methods are safe on a nil *Metrics.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hyperjump/kura/internal/models"
)

// Search kinds used as the "kind" label.
const (
	KindCross  = "cross"
	KindSource = "source"
)

// Metrics holds the kura collectors.
type Metrics struct {
	registry           *prometheus.Registry
	sourcesIngested    prometheus.Counter
	chunksCreated      prometheus.Counter
	alignmentSkips     prometheus.Counter
	ingestDuration     prometheus.Histogram
	searchDuration     *prometheus.HistogramVec
	collaboratorErrors *prometheus.CounterVec
}

// New creates a registry with the kura collectors plus Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sourcesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kura_sources_ingested_total",
			Help: "Sources successfully ingested.",
		}),
		chunksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kura_chunks_created_total",
			Help: "Chunks created by ingestion.",
		}),
		alignmentSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kura_chunk_alignment_skips_total",
			Help: "Chunks dropped because they could not be located in the normalized text.",
		}),
		ingestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kura_ingest_duration_seconds",
			Help:    "Time to ingest one source.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		searchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kura_search_duration_seconds",
			Help:    "Search latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		collaboratorErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kura_collaborator_errors_total",
			Help: "Failures of external collaborators.",
		}, []string{"collaborator"}),
	}
	m.registry.MustRegister(
		m.sourcesIngested,
		m.chunksCreated,
		m.alignmentSkips,
		m.ingestDuration,
		m.searchDuration,
		m.collaboratorErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SourceIngested records one ingested source with its chunk count and duration.
func (m *Metrics) SourceIngested(chunks int, d time.Duration) {
	if m == nil {
		return
	}
	m.sourcesIngested.Inc()
	m.chunksCreated.Add(float64(chunks))
	m.ingestDuration.Observe(d.Seconds())
}

// AlignmentSkipped records one dropped chunk.
func (m *Metrics) AlignmentSkipped() {
	if m == nil {
		return
	}
	m.alignmentSkips.Inc()
}

// SearchObserved records the latency of a search of the given kind.
func (m *Metrics) SearchObserved(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.searchDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// CollaboratorFailed counts err when it is a collaborator error.
func (m *Metrics) CollaboratorFailed(err error) {
	if m == nil {
		return
	}
	var ce *models.CollaboratorError
	if errors.As(err, &ce) {
		m.collaboratorErrors.WithLabelValues(ce.Collaborator).Inc()
	}
}
