// Package observability holds the Prometheus metrics and OpenTelemetry
// tracing used by a round.
package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "nodetree"

// Solve outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeUnsaved = "unsaved"
)

// Metrics are the round counters and histograms. All methods are no-ops on a
// nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	rounds            *prometheus.CounterVec
	solves            *prometheus.CounterVec
	solveDuration     prometheus.Histogram
	decomposeFailures prometheus.Counter
	subproblems       prometheus.Histogram
	providerCalls     *prometheus.CounterVec
	providerLatency   *prometheus.HistogramVec
}

// NewMetrics registers the metrics on reg. A nil reg gets a fresh registry,
// so tests never touch the global default.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		// rounds counts finished rounds.
		// Labels: outcome (complete, degraded, error)
		rounds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "round",
			Name:      "total",
			Help:      "Total finished rounds by outcome",
		}, []string{"outcome"}),
		// solves counts subproblem solves.
		// Labels: outcome (success, failure, unsaved)
		solves: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "solves_total",
			Help:      "Total subproblem solves by outcome",
		}, []string{"outcome"}),
		solveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "duration_seconds",
			Help:      "Time to solve one subproblem",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
		decomposeFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decompose",
			Name:      "failures_total",
			Help:      "Decompositions that fell back to the default subproblem",
		}),
		subproblems: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "decompose",
			Name:      "subproblems",
			Help:      "Subproblems requested per round before bounding",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 10, 15, 20},
		}),
		providerCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "Generation provider calls by provider and status",
		}, []string{"provider", "status"}),
		providerLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "latency_seconds",
			Help:      "Generation provider call latency",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"provider"}),
	}
}

// Registry returns the registry the metrics live in.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RoundFinished records one round outcome.
func (m *Metrics) RoundFinished(outcome string) {
	if m == nil {
		return
	}
	m.rounds.WithLabelValues(outcome).Inc()
}

// SolveFinished records one solve outcome and its duration.
func (m *Metrics) SolveFinished(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.solves.WithLabelValues(outcome).Inc()
	m.solveDuration.Observe(elapsed.Seconds())
}

// Unsaved records a solve whose node could not be persisted.
func (m *Metrics) Unsaved() {
	if m == nil {
		return
	}
	m.solves.WithLabelValues(OutcomeUnsaved).Inc()
}

// DecomposeFailed records a decomposition fallback.
func (m *Metrics) DecomposeFailed() {
	if m == nil {
		return
	}
	m.decomposeFailures.Inc()
}

// Requested records how many subproblems a decomposition produced.
func (m *Metrics) Requested(n int) {
	if m == nil {
		return
	}
	m.subproblems.Observe(float64(n))
}

// ProviderCall records one generation call.
func (m *Metrics) ProviderCall(provider, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.providerCalls.WithLabelValues(provider, status).Inc()
	m.providerLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// WriteTextfile dumps the metrics in Prometheus text format, for the node
// exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
