package simulation

import (
	"github.com/nvandessel/sisweep/internal/metrics"
	"github.com/nvandessel/sisweep/internal/store"
	"github.com/nvandessel/sisweep/internal/sweep"
	"github.com/nvandessel/sisweep/internal/topology"
)

// Scenario defines a complete sweep experiment.
type Scenario struct {
	Name string

	// Topology is generated with TopologySeed. When nil, the network is
	// built from Nodes and Edges instead.
	Topology     topology.Spec
	TopologySeed uint64
	Nodes        int
	Edges        []topology.Edge

	Sweep sweep.Config

	// Workers is passed to the orchestrator; 0 means GOMAXPROCS.
	Workers int

	KeepTrajectories bool
}

// SimulationResult captures the sweep output and its persisted copy.
type SimulationResult struct {
	Name     string
	Topology *topology.Topology
	Table    *sweep.Table

	// ID is the id the result was stored under, and Stored is the record
	// read back from the store.
	ID     string
	Stored *store.SweepRecord

	Metrics *metrics.Registry
	Store   *store.SQLiteResultStore
}

// Prevalence returns the stationary prevalence at (beta, mu), and false
// when either value is not on the grid.
func (r SimulationResult) Prevalence(beta, mu float64) (float64, bool) {
	values, ok := r.Table.Get(mu)
	if !ok {
		return 0, false
	}
	for i, b := range r.Table.Betas {
		if b == beta {
			return values[i], true
		}
	}
	return 0, false
}

// QuickSweep returns a sweep over betas and mus sized for tests: 200 steps,
// 150 of them transient, 4 repeats, seed 1.
func QuickSweep(betas, mus []float64) sweep.Config {
	return sweep.Config{
		Betas:           betas,
		Mus:             mus,
		InitialFraction: 0.2,
		Steps:           200,
		Transient:       150,
		Repeats:         4,
		Seed:            1,
	}
}

// DeterministicSweep returns a single-cell sweep on the edges of the
// parameter space, where no draw decides the outcome.
func DeterministicSweep(beta, mu, initialFraction float64, steps int) sweep.Config {
	return sweep.Config{
		Betas:           []float64{beta},
		Mus:             []float64{mu},
		InitialFraction: initialFraction,
		Steps:           steps,
		Transient:       0,
		Repeats:         1,
	}
}
