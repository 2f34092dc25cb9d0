package simulation_test

import (
	"os"
	"strings"
	"testing"

	"github.com/nvandessel/sisweep/internal/epidemic"
	"github.com/nvandessel/sisweep/internal/simulation"
	"github.com/nvandessel/sisweep/internal/topology"
)

// ring4 is the 0-1-2-3-0 cycle; a 0.25 initial fraction infects one node.
func ring4(name string) simulation.Scenario {
	return simulation.Scenario{
		Name:  name,
		Nodes: 4,
		Edges: []topology.Edge{{U: 0, V: 1}, {U: 1, V: 2}, {U: 2, V: 3}, {U: 3, V: 0}},
	}
}

// TestFullSpreadOnRing: with beta=1 and mu=0 every neighbor of an infected
// node is infected at the next step and nobody recovers, so the ring
// saturates within its diameter of 2 steps.
func TestFullSpreadOnRing(t *testing.T) {
	r := simulation.NewRunner(t)
	sc := ring4("full-spread")
	sc.Sweep = simulation.DeterministicSweep(1, 0, 0.25, 5)
	sc.KeepTrajectories = true

	for _, seed := range []uint64{0, 1, 42} {
		sc.Sweep.Seed = seed
		result := r.Run(sc)

		cells := result.Table.Cells
		if len(cells) != 1 {
			t.Fatalf("seed %d: got %d cells, want 1", seed, len(cells))
		}
		simulation.AssertTrajectory(t, []float64{0.75, 1, 1, 1, 1}, cells[0].Trajectory)
		// Mean of the post-step fractions: (0.75 + 4) / 5.
		simulation.AssertPrevalence(t, result, 0, 1, 0.95)
		simulation.AssertStoredMatches(t, result)
	}
}

// TestImmediateRecoveryOnRing: with beta=0 and mu=1 the single seed recovers
// at the first step and the all-susceptible state is absorbing.
func TestImmediateRecoveryOnRing(t *testing.T) {
	r := simulation.NewRunner(t)
	sc := ring4("immediate-recovery")
	sc.Sweep = simulation.DeterministicSweep(0, 1, 0.25, 5)
	sc.KeepTrajectories = true

	result := r.Run(sc)
	simulation.AssertTrajectory(t, []float64{0, 0, 0, 0, 0}, result.Table.Cells[0].Trajectory)
	simulation.AssertExtinct(t, result, 1, 0, 0)

	if len(result.Table.Diagnostics) != 1 || result.Table.Diagnostics[0].Kind != epidemic.DiagnosticNoInfections {
		t.Errorf("diagnostics = %+v, want one %s", result.Table.Diagnostics, epidemic.DiagnosticNoInfections)
	}
	if len(result.Stored.Table.Diagnostics) != 1 {
		t.Errorf("stored diagnostics = %+v", result.Stored.Table.Diagnostics)
	}

	data, err := os.ReadFile(r.DiagnosticsPath())
	if err != nil {
		t.Fatalf("reading diagnostics: %v", err)
	}
	if !strings.Contains(string(data), `"kind":"no_infections"`) {
		t.Errorf("diagnostics file missing no_infections event:\n%s", data)
	}
}

// TestAverageMatchesSingleRealization: one repeat with no transient is the
// realization itself.
func TestAverageMatchesSingleRealization(t *testing.T) {
	r := simulation.NewRunner(t)
	sc := ring4("single-realization")

	avg := r.Average(sc, epidemic.AverageParams{
		Params:  epidemic.Params{Beta: 1, Mu: 0, InitialFraction: 0.25, Steps: 4},
		Repeats: 1,
	}, 9)
	simulation.AssertTrajectory(t, []float64{0.75, 1, 1, 1}, avg.Trajectory)
	if avg.Mean() != 0.9375 {
		t.Errorf("Mean() = %v, want 0.9375", avg.Mean())
	}
}
