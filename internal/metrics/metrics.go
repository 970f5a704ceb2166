// Package metrics defines the Prometheus instruments of the service.
// All Record methods are safe to call on a nil *Metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "voicetutor"

// Metrics holds all custom Prometheus metrics for the application.
type Metrics struct {
	Sessions         *prometheus.CounterVec
	Summaries        *prometheus.CounterVec
	Retrievals       *prometheus.CounterVec
	RetrievalLatency prometheus.Histogram
	IngestedPassages prometheus.Counter
	DispatchQueued   *prometheus.CounterVec
}

// New registers the metrics with reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Sessions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Call sessions by outcome",
		}, []string{"outcome"}), // bridged, duplicate, degraded, terminated, failed
		Summaries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_total",
			Help:      "Summary records persisted by outcome",
		}, []string{"outcome"}), // ok, degraded, lost
		Retrievals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrievals_total",
			Help:      "Retrieval answers by outcome",
		}, []string{"outcome"}), // answered, failed, cached
		RetrievalLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "Retrieval answer latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		IngestedPassages: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingested_passages_total",
			Help:      "Passages written to the corpus index",
		}),
		DispatchQueued: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_jobs_total",
			Help:      "Summary jobs handed to the dispatcher by path",
		}, []string{"path"}), // queued, overflow, redis
	}
}

// RegisterActiveSessions exposes the live registry size as a gauge.
func RegisterActiveSessions(reg prometheus.Registerer, count func() int) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Number of live call sessions in the registry",
	}, func() float64 { return float64(count()) }))
}

func (m *Metrics) RecordSession(outcome string) {
	if m == nil {
		return
	}
	m.Sessions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordSummary(outcome string) {
	if m == nil {
		return
	}
	m.Summaries.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordRetrieval(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.Retrievals.WithLabelValues(outcome).Inc()
	if seconds > 0 {
		m.RetrievalLatency.Observe(seconds)
	}
}

func (m *Metrics) RecordIngested(passages int) {
	if m == nil {
		return
	}
	m.IngestedPassages.Add(float64(passages))
}

func (m *Metrics) RecordDispatch(path string) {
	if m == nil {
		return
	}
	m.DispatchQueued.WithLabelValues(path).Inc()
}
