package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// RecordRealization records one finished engine run of the given length.
func (r *Registry) RecordRealization(steps int) {
	if r == nil {
		return
	}
	r.RealizationsTotal.Inc()
	r.StepsTotal.Add(float64(steps))
}

// RecordDegenerate records a degenerate averaged trajectory.
func (r *Registry) RecordDegenerate(kind string) {
	if r == nil {
		return
	}
	r.DegenerateResultsTotal.WithLabelValues(kind).Inc()
}

// RecordCell records a finished sweep cell and, on success, its stationary value.
func (r *Registry) RecordCell(status string, duration time.Duration, prevalence float64) {
	if r == nil {
		return
	}
	r.CellsTotal.WithLabelValues(status).Inc()
	r.CellDuration.Observe(duration.Seconds())
	if status == StatusOK {
		r.StationaryDensity.Observe(prevalence)
	}
}

// RecordSweep records a finished sweep.
func (r *Registry) RecordSweep(status string, duration time.Duration) {
	if r == nil {
		return
	}
	r.SweepsTotal.WithLabelValues(status).Inc()
	r.SweepDuration.Observe(duration.Seconds())
}

// WriteTextfile writes the current metric values in the text exposition
// format, for pickup by a node_exporter textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
