// Package metrics records refinement and inference metrics with Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Refinement outcome labels.
const (
	OutcomeRefined   = "refined"
	OutcomeUnchanged = "unchanged"
	OutcomeRejected  = "rejected"
	OutcomePartial   = "partial"
	OutcomeSkipped   = "skipped"
)

// Recorder owns a private registry so that several instances can coexist
// (one per run, one per test) without colliding on the default registerer.
type Recorder struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	stageDuration   *prometheus.HistogramVec
	refinements     *prometheus.CounterVec
	rulesMerged     *prometheus.CounterVec
	compileFailures *prometheus.CounterVec
}

// NewRecorder creates a recorder with all documenter metrics registered.
// Go runtime collectors are added when withRuntime is set.
func NewRecorder(withRuntime bool) *Recorder {
	reg := prometheus.NewRegistry()
	if withRuntime {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "documenter_inference_requests_total",
				Help: "Total number of inference requests by operation, model and outcome",
			},
			[]string{"op", "model", "outcome"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "documenter_inference_request_duration_seconds",
				Help:    "Duration of inference requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op", "model"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "documenter_stage_duration_seconds",
				Help:    "Duration of refinement stages in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"diagram_type", "stage"},
		),
		refinements: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "documenter_refinements_total",
				Help: "Completed diagram pipelines by diagram type and outcome",
			},
			[]string{"diagram_type", "outcome"},
		),
		rulesMerged: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "documenter_rules_merged_total",
				Help: "Quality rules newly persisted to the knowledge base",
			},
			[]string{"diagram_type"},
		),
		compileFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "documenter_compile_failures_total",
				Help: "Diagram compilation failures by reason",
			},
			[]string{"diagram_type", "reason"},
		),
	}
}

// Registry exposes the underlying registry for gathering or HTTP exposure.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// ObserveRequest records one inference request.
func (r *Recorder) ObserveRequest(op, model, outcome string, duration time.Duration) {
	r.requestsTotal.WithLabelValues(op, model, outcome).Inc()
	r.requestDuration.WithLabelValues(op, model).Observe(duration.Seconds())
}

// ObserveStage records how long a pipeline stage took.
func (r *Recorder) ObserveStage(diagramType, stage string, duration time.Duration) {
	r.stageDuration.WithLabelValues(diagramType, stage).Observe(duration.Seconds())
}

// IncRefinement counts a finished pipeline.
func (r *Recorder) IncRefinement(diagramType, outcome string) {
	r.refinements.WithLabelValues(diagramType, outcome).Inc()
}

// AddRulesMerged counts rules newly written to the knowledge base.
func (r *Recorder) AddRulesMerged(diagramType string, n int) {
	if n <= 0 {
		return
	}
	r.rulesMerged.WithLabelValues(diagramType).Add(float64(n))
}

// IncCompileFailure counts a compilation failure.
func (r *Recorder) IncCompileFailure(diagramType, reason string) {
	r.compileFailures.WithLabelValues(diagramType, reason).Inc()
}
