// Package observability provides Prometheus metrics and OpenTelemetry spans
// for council document processing.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "council"

// Document processing outcomes used as the status label.
const (
	StatusParsed  = "parsed"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// Metrics holds the Prometheus collectors for batch and watch runs.
type Metrics struct {
	DocumentsTotal     *prometheus.CounterVec
	ItemsTotal         *prometheus.CounterVec
	VoteResultsTotal   *prometheus.CounterVec
	ProcessingSeconds  *prometheus.HistogramVec
	SplitPagesTotal    prometheus.Counter
	SplitWarningsTotal prometheus.Counter
	MeetingsInFlight   prometheus.Gauge

	gatherer prometheus.Gatherer
}

// NewMetrics registers the collectors with reg. When reg is also a
// Gatherer (as *prometheus.Registry is) it backs Handler and WriteTextfile.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		DocumentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "documents_processed_total",
				Help:      "Documents processed by kind and outcome",
			},
			[]string{"kind", "status"},
		),
		ItemsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "items_parsed_total",
				Help:      "Agenda or minutes items recovered",
			},
			[]string{"kind"},
		),
		VoteResultsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "vote_results_total",
				Help:      "Minutes items by recorded result",
			},
			[]string{"result"},
		),
		ProcessingSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "processing_seconds",
				Help:      "Time to read and parse one document",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"kind"},
		),
		SplitPagesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "split_pages_total",
			Help:      "Packet pages copied into per-item files",
		}),
		SplitWarningsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "split_warnings_total",
			Help:      "Warnings raised while splitting packets",
		}),
		MeetingsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "meetings_in_flight",
			Help:      "Meetings currently being processed",
		}),
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// RecordDocument records one processed document of kind ("agenda", "minutes").
func (m *Metrics) RecordDocument(kind, status string, seconds float64) {
	if m == nil {
		return
	}
	m.DocumentsTotal.WithLabelValues(kind, status).Inc()
	if status != StatusSkipped {
		m.ProcessingSeconds.WithLabelValues(kind).Observe(seconds)
	}
}

// RecordItems adds n recovered items of kind.
func (m *Metrics) RecordItems(kind string, n int) {
	if m == nil {
		return
	}
	m.ItemsTotal.WithLabelValues(kind).Add(float64(n))
}

// RecordResults adds minutes result counts keyed by result name.
func (m *Metrics) RecordResults(counts map[string]int) {
	if m == nil {
		return
	}
	for result, n := range counts {
		m.VoteResultsTotal.WithLabelValues(result).Add(float64(n))
	}
}

// RecordSplit records the pages and warnings of one packet split.
func (m *Metrics) RecordSplit(pages, warnings int) {
	if m == nil {
		return
	}
	m.SplitPagesTotal.Add(float64(pages))
	m.SplitWarningsTotal.Add(float64(warnings))
}

// MeetingStarted and MeetingDone track in-flight meetings.
func (m *Metrics) MeetingStarted() {
	if m != nil {
		m.MeetingsInFlight.Inc()
	}
}

func (m *Metrics) MeetingDone() {
	if m != nil {
		m.MeetingsInFlight.Dec()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// WriteTextfile writes the registry to path for the node exporter textfile
// collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || m.gatherer == nil {
		return fmt.Errorf("metrics registry is not a gatherer")
	}
	return prometheus.WriteToTextfile(path, m.gatherer)
}
