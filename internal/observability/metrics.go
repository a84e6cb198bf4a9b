package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects operational counters for agent runs and their
// collaborators.
type Metrics struct {
	// RunsStarted counts agent runs by session origin.
	// Labels: origin (created|supplied)
	RunsStarted *prometheus.CounterVec

	// RunsFinished counts completed runs by outcome.
	// Labels: outcome (complete|error)
	RunsFinished *prometheus.CounterVec

	// StepsExecuted counts executed browser actions.
	// Labels: tool, status (success|error)
	StepsExecuted *prometheus.CounterVec

	// PlannerDuration measures reasoning-model planning latency in seconds.
	// Labels: provider
	PlannerDuration *prometheus.HistogramVec

	// SessionsCreated counts hosting-provider sessions created, by region.
	SessionsCreated *prometheus.CounterVec

	// SessionTerminations counts termination attempts by result.
	// Labels: status (success|error)
	SessionTerminations *prometheus.CounterVec
}

// NewMetrics creates and registers metrics on the given registerer.
// A nil registerer uses the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RunsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "operator_runs_started_total",
			Help: "Agent runs started, by session origin.",
		}, []string{"origin"}),
		RunsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "operator_runs_finished_total",
			Help: "Agent runs finished, by outcome.",
		}, []string{"outcome"}),
		StepsExecuted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "operator_steps_executed_total",
			Help: "Browser actions executed, by tool and status.",
		}, []string{"tool", "status"}),
		PlannerDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "operator_planner_duration_seconds",
			Help:    "Reasoning-model planning latency.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider"}),
		SessionsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "operator_sessions_created_total",
			Help: "Hosting-provider sessions created, by region.",
		}, []string{"region"}),
		SessionTerminations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "operator_session_terminations_total",
			Help: "Session termination attempts, by status.",
		}, []string{"status"}),
	}
}
