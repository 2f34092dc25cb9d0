package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initSimulationMetrics() {
	r.RealizationsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "sisweep_realizations_total",
			Help: "Total number of single SIS realizations simulated",
		},
	)

	r.StepsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "sisweep_steps_total",
			Help: "Total number of synchronous update steps simulated",
		},
	)

	r.DegenerateResultsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "sisweep_degenerate_results_total",
			Help: "Averaged trajectories flagged as degenerate (zero repeats or no infections)",
		},
		[]string{"kind"},
	)
}
