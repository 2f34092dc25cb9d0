package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initSweepMetrics() {
	r.CellsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "sisweep_cells_total",
			Help: "Total number of (beta, mu) sweep cells processed",
		},
		[]string{"status"},
	)

	r.CellDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sisweep_cell_duration_seconds",
			Help:    "Wall time to average one (beta, mu) cell",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
	)

	r.SweepsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "sisweep_sweeps_total",
			Help: "Total number of sweeps run",
		},
		[]string{"status"},
	)

	r.SweepDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sisweep_sweep_duration_seconds",
			Help:    "Wall time of a full sweep",
			Buckets: prometheus.ExponentialBuckets(0.1, 4, 10),
		},
	)

	r.StationaryDensity = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sisweep_stationary_prevalence",
			Help:    "Distribution of stationary prevalence values across cells",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)
}
