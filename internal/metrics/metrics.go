// Package metrics provides Prometheus observability for the evaluation
// pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the pipeline. A nil *Metrics is
// safe to call; every method no-ops.
type Metrics struct {
	registry *prometheus.Registry

	ReleasesStarted   prometheus.Counter
	RunOutcome        *prometheus.CounterVec
	BranchesEvaluated prometheus.Counter
	BatchLatency      prometheus.Histogram
	StageLatency      *prometheus.HistogramVec
	TokensUsed        *prometheus.CounterVec
}

// New creates a Metrics instance with all pipeline metrics registered on a
// dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		ReleasesStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "compliance_releases_started_total",
			Help: "Total releases queued for evaluation",
		}),
		RunOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_run_outcomes_total",
			Help: "Total finished pipeline runs by terminal status",
		}, []string{"status"}), // status: "COMPLETED", "ERROR"
		BranchesEvaluated: factory.NewCounter(prometheus.CounterOpts{
			Name: "compliance_branches_evaluated_total",
			Help: "Total criteria branches scored across all releases",
		}),
		BatchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "compliance_batch_duration_seconds",
			Help:    "Wall time of the model batch call, submit to results",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		StageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "compliance_stage_duration_seconds",
			Help:    "Duration of pipeline stage handlers",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		}, []string{"stage"}), // stage: "create_vectors", "check_tree"
		TokensUsed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_llm_tokens_total",
			Help: "Total model tokens consumed across evaluation and summary calls",
		}, []string{"direction"}), // direction: "input", "output"
	}
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// IncrementReleasesStarted records a release entering the pipeline.
func (m *Metrics) IncrementReleasesStarted() {
	if m != nil {
		m.ReleasesStarted.Inc()
	}
}

// IncrementRunOutcome records a run reaching a terminal status.
func (m *Metrics) IncrementRunOutcome(status string) {
	if m != nil {
		m.RunOutcome.WithLabelValues(status).Inc()
	}
}

// AddBranchesEvaluated records how many branches one run scored.
func (m *Metrics) AddBranchesEvaluated(n int) {
	if m != nil {
		m.BranchesEvaluated.Add(float64(n))
	}
}

// AddTokens records model token consumption for one call or batch.
func (m *Metrics) AddTokens(input, output int64) {
	if m != nil {
		m.TokensUsed.WithLabelValues("input").Add(float64(input))
		m.TokensUsed.WithLabelValues("output").Add(float64(output))
	}
}

// ObserveBatchLatency records the wall time of one model batch call.
func (m *Metrics) ObserveBatchLatency(d time.Duration) {
	if m != nil {
		m.BatchLatency.Observe(d.Seconds())
	}
}

// ObserveStageLatency records the duration of one stage handler.
func (m *Metrics) ObserveStageLatency(stage string, d time.Duration) {
	if m != nil {
		m.StageLatency.WithLabelValues(stage).Observe(d.Seconds())
	}
}
