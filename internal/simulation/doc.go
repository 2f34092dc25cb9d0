// Package simulation provides an end-to-end test harness for validating the
// emergent dynamics of SIS sweeps.
//
// The harness exercises the real topology generators, Engine, Averager,
// sweep Orchestrator and SQLiteResultStore with no mocks. Scenarios are Go
// builders that describe a network and a sweep; the Runner executes them,
// persists the table and reloads it so assertions can check both the
// in-memory result and what a later `results show` would read back.
//
// Each test gets an isolated SQLite database via t.TempDir().
//
// Usage:
//
//	func TestThreshold(t *testing.T) {
//	    r := simulation.NewRunner(t)
//	    result := r.Run(simulation.Scenario{
//	        Name:     "er-threshold",
//	        Topology: topology.ErdosRenyi{Nodes: 200, P: 0.05},
//	        Sweep:    simulation.QuickSweep([]float64{0.01, 0.5}, []float64{0.9}),
//	    })
//	    simulation.AssertExtinct(t, result, 0.9, 0.01, 0.01)
//	}
package simulation
