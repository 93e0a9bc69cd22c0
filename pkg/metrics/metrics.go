// Package metrics exposes the Prometheus instrumentation for the
// pipeline. A Set owns its registry so tests and embedded instances
// never fight over collector registration.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace is the Prometheus namespace for all Strands metrics.
const Namespace = "strands"

// Set holds the pipeline collectors, registered on a private registry.
type Set struct {
	registry *prometheus.Registry

	AlertsIngested *prometheus.CounterVec
	AlertsRejected prometheus.Counter

	TicksTotal        *prometheus.CounterVec
	TickDuration      prometheus.Histogram
	ClustersProcessed prometheus.Counter

	SpecialistResults     *prometheus.CounterVec
	InvestigationDuration prometheus.Histogram

	DecisionsTotal     *prometheus.CounterVec
	DecisionConfidence prometheus.Histogram

	RecommendationsTotal *prometheus.CounterVec
	ReviewsClosed        *prometheus.CounterVec
	ExecutionsRecorded   *prometheus.CounterVec
}

// NewSet creates and registers the pipeline collectors.
func NewSet() *Set {
	s := &Set{
		registry: prometheus.NewRegistry(),

		AlertsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "ingest",
			Name:      "alerts_total",
			Help:      "Alerts accepted per provider.",
		}, []string{"provider"}),

		AlertsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "ingest",
			Name:      "alerts_rejected_total",
			Help:      "Alerts dropped during normalisation.",
		}),

		TicksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "controller",
			Name:      "ticks_total",
			Help:      "Controller ticks by outcome (completed, skipped).",
		}, []string{"outcome"}),

		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "controller",
			Name:      "tick_duration_seconds",
			Help:      "Wall time of one controller tick.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}),

		ClustersProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "controller",
			Name:      "clusters_processed_total",
			Help:      "Alert clusters taken through the pipeline.",
		}),

		SpecialistResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "swarm",
			Name:      "specialist_results_total",
			Help:      "Specialist investigations by specialist and status.",
		}, []string{"specialist", "status"}),

		InvestigationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "swarm",
			Name:      "investigation_duration_seconds",
			Help:      "Wall time of one swarm investigation.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),

		DecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "decision",
			Name:      "decisions_total",
			Help:      "Decisions by routing type.",
		}, []string{"type"}),

		DecisionConfidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "decision",
			Name:      "confidence",
			Help:      "Distribution of fused decision confidence.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),

		RecommendationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "recommend",
			Name:      "recommendations_total",
			Help:      "Recommendations by source (KNOWN, GENERATED, FALLBACK).",
		}, []string{"source"}),

		ReviewsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "review",
			Name:      "closed_total",
			Help:      "Reviews closed by verdict.",
		}, []string{"state"}),

		ExecutionsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "playbook",
			Name:      "executions_total",
			Help:      "Playbook executions recorded by outcome.",
		}, []string{"outcome"}),
	}

	s.registry.MustRegister(collectors.NewGoCollector())
	s.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	s.registry.MustRegister(
		s.AlertsIngested,
		s.AlertsRejected,
		s.TicksTotal,
		s.TickDuration,
		s.ClustersProcessed,
		s.SpecialistResults,
		s.InvestigationDuration,
		s.DecisionsTotal,
		s.DecisionConfidence,
		s.RecommendationsTotal,
		s.ReviewsClosed,
		s.ExecutionsRecorded,
	)
	return s
}

// Registry exposes the underlying registry for custom collectors.
func (s *Set) Registry() *prometheus.Registry { return s.registry }

// Handler serves the scrape endpoint for this set.
func (s *Set) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
