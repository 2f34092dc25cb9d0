// Package metrics exposes Prometheus instrumentation for simulation runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for a sweep process. Record methods are safe on
// a nil *Registry so instrumentation stays optional for library callers.
type Registry struct {
	// Simulation Metrics
	RealizationsTotal prometheus.Counter
	StepsTotal        prometheus.Counter

	// Averaging Metrics
	DegenerateResultsTotal *prometheus.CounterVec

	// Sweep Metrics
	CellsTotal        *prometheus.CounterVec
	CellDuration      prometheus.Histogram
	SweepsTotal       *prometheus.CounterVec
	SweepDuration     prometheus.Histogram
	StationaryDensity prometheus.Histogram

	registry *prometheus.Registry
}

// NewRegistry creates a new metrics registry with all metrics initialized.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
	}

	r.initSimulationMetrics()
	r.initSweepMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
