// Package metrics exports pipeline collectors for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const Namespace = "lighthouse"

// Pipeline holds the orchestrator's collectors. A nil *Pipeline records nothing.
type Pipeline struct {
	CyclesTotal      *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	AgentResults     *prometheus.CounterVec
	SynthesisResults *prometheus.CounterVec
	EscalationsTotal prometheus.Counter
	CardsGenerated   prometheus.Gauge
	ArchiveFailures  prometheus.Counter
	CycleInFlight    prometheus.Gauge
}

// NewPipeline registers the collectors with reg.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	factory := promauto.With(reg)

	return &Pipeline{
		CyclesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "cycles_total",
				Help:      "Pipeline cycles by outcome",
			},
			[]string{"outcome"},
		),
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "stage_duration_seconds",
				Help:      "Time spent in each pipeline stage",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"stage"},
		),
		AgentResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "agent_results_total",
				Help:      "Agent fetch and analysis results by area, source and status",
			},
			[]string{"area", "source", "status"},
		),
		SynthesisResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "synthesis_results_total",
				Help:      "Synthesis stage results by outcome",
			},
			[]string{"stage", "outcome"},
		),
		EscalationsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "escalations_total",
				Help:      "Past issues flagged worsening and escalated",
			},
		),
		CardsGenerated: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "cards_generated",
				Help:      "Issue cards produced by the latest cycle",
			},
		),
		ArchiveFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "archive_failures_total",
				Help:      "Failed issue archive writes",
			},
		),
		CycleInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "cycle_in_flight",
				Help:      "1 while a cycle is running",
			},
		),
	}
}

// Handler serves the collectors registered with g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Pipeline) CycleFinished(outcome string) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(outcome).Inc()
}

func (m *Pipeline) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Pipeline) AgentResult(area, source, status string) {
	if m == nil {
		return
	}
	m.AgentResults.WithLabelValues(area, source, status).Inc()
}

func (m *Pipeline) SynthesisResult(stage, outcome string) {
	if m == nil {
		return
	}
	m.SynthesisResults.WithLabelValues(stage, outcome).Inc()
}

func (m *Pipeline) Escalated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.EscalationsTotal.Add(float64(n))
}

func (m *Pipeline) SetCards(n int) {
	if m == nil {
		return
	}
	m.CardsGenerated.Set(float64(n))
}

func (m *Pipeline) ArchiveFailed() {
	if m == nil {
		return
	}
	m.ArchiveFailures.Inc()
}

func (m *Pipeline) SetInFlight(running bool) {
	if m == nil {
		return
	}
	if running {
		m.CycleInFlight.Set(1)
		return
	}
	m.CycleInFlight.Set(0)
}
