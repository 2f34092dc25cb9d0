package simulation

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nvandessel/sisweep/internal/epidemic"
	"github.com/nvandessel/sisweep/internal/logging"
	"github.com/nvandessel/sisweep/internal/metrics"
	"github.com/nvandessel/sisweep/internal/store"
	"github.com/nvandessel/sisweep/internal/sweep"
	"github.com/nvandessel/sisweep/internal/topology"
)

// Runner executes scenarios against a real orchestrator and result store.
type Runner struct {
	t     *testing.T
	dir   string
	store *store.SQLiteResultStore
}

// NewRunner creates a simulation runner with an isolated SQLite store.
func NewRunner(t *testing.T) *Runner {
	t.Helper()
	dir := t.TempDir()

	s, err := store.NewSQLiteResultStore(store.DatabasePath(dir))
	if err != nil {
		t.Fatalf("NewRunner: failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return &Runner{t: t, dir: dir, store: s}
}

// DiagnosticsPath returns the diagnostics file the runner's sweeps append to.
func (r *Runner) DiagnosticsPath() string {
	return filepath.Join(r.dir, logging.DiagnosticsFile)
}

// Run executes the scenario, stores the table and reads it back.
func (r *Runner) Run(scenario Scenario) SimulationResult {
	r.t.Helper()
	ctx := context.Background()

	// Phase 1: Build the network.
	topo := r.buildTopology(scenario)

	// Phase 2: Run the sweep.
	reg := metrics.NewRegistry()
	diag := logging.NewDiagnosticLogger(r.dir)
	defer diag.Close()

	orch, err := sweep.New(topo,
		sweep.WithWorkers(scenario.Workers),
		sweep.WithLogger(logging.Discard()),
		sweep.WithDiagnostics(diag),
		sweep.WithMetrics(reg),
		sweep.WithKeepTrajectories(scenario.KeepTrajectories),
	)
	if err != nil {
		r.t.Fatalf("%s: sweep.New: %v", scenario.Name, err)
	}
	table, err := orch.Run(ctx, scenario.Sweep)
	if err != nil {
		r.t.Fatalf("%s: Run: %v", scenario.Name, err)
	}

	// Phase 3: Persist and reload.
	id, err := r.store.SaveSweep(ctx, &store.SweepRecord{
		Topology: store.TopologyInfo{
			Kind:   string(topo.Kind()),
			Params: topo.Params(),
			Seed:   scenario.TopologySeed,
			Nodes:  topo.Len(),
			Edges:  topo.EdgeCount(),
		},
		Config: scenario.Sweep,
		Table:  table,
	})
	if err != nil {
		r.t.Fatalf("%s: SaveSweep: %v", scenario.Name, err)
	}
	stored, err := r.store.GetSweep(ctx, id)
	if err != nil {
		r.t.Fatalf("%s: GetSweep: %v", scenario.Name, err)
	}

	return SimulationResult{
		Name:     scenario.Name,
		Topology: topo,
		Table:    table,
		ID:       id,
		Stored:   stored,
		Metrics:  reg,
		Store:    r.store,
	}
}

// Average runs a single Monte Carlo average on the scenario's network,
// bypassing the orchestrator.
func (r *Runner) Average(scenario Scenario, p epidemic.AverageParams, seed uint64) *epidemic.Average {
	r.t.Helper()
	engine, err := epidemic.NewEngine(r.buildTopology(scenario))
	if err != nil {
		r.t.Fatalf("%s: NewEngine: %v", scenario.Name, err)
	}
	avg, err := epidemic.NewAverager(engine, epidemic.WithWorkers(scenario.Workers)).Average(context.Background(), p, seed)
	if err != nil {
		r.t.Fatalf("%s: Average: %v", scenario.Name, err)
	}
	return avg
}

func (r *Runner) buildTopology(scenario Scenario) *topology.Topology {
	r.t.Helper()
	var (
		topo *topology.Topology
		err  error
	)
	if scenario.Topology != nil {
		topo, err = topology.Generate(scenario.Topology, scenario.TopologySeed)
	} else {
		topo, err = topology.FromEdges(scenario.Nodes, scenario.Edges)
	}
	if err != nil {
		r.t.Fatalf("%s: building topology: %v", scenario.Name, err)
	}
	return topo
}
