package epidemic

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/nvandessel/sisweep/internal/topology"
)

// cycle4 returns the 0-1-2-3-0 ring used by the deterministic scenarios.
func cycle4(t *testing.T) *topology.Topology {
	t.Helper()
	topo, err := topology.Cycle(4)
	if err != nil {
		t.Fatalf("Cycle(4): %v", err)
	}
	return topo
}

func newEngine(t *testing.T, topo *topology.Topology) *Engine {
	t.Helper()
	e, err := NewEngine(topo)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func equalFloats(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNewEngine_EmptyTopology(t *testing.T) {
	_, err := NewEngine(nil)
	if !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("NewEngine(nil) error = %v, want ErrInvalidParameter", err)
	}
}

// Full transmission and no recovery: the infection reaches every node of the
// ring within its diameter (2) and stays there.
func TestEngine_FullSpreadOnCycle(t *testing.T) {
	e := newEngine(t, cycle4(t))

	for seed := uint64(0); seed < 8; seed++ {
		got, err := e.Run(Params{Beta: 1, Mu: 0, InitialFraction: 0.25, Steps: 5}, rand.New(rand.NewPCG(seed, 0)))
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		want := []float64{0.75, 1, 1, 1, 1}
		if !equalFloats(got, want) {
			t.Errorf("seed %d: Run() = %v, want %v", seed, got, want)
		}
	}
}

// No transmission and certain recovery: the single seed recovers in the
// first step and the process is absorbed at zero.
func TestEngine_ImmediateRecoveryOnCycle(t *testing.T) {
	e := newEngine(t, cycle4(t))

	got, err := e.Run(Params{Beta: 0, Mu: 1, InitialFraction: 0.25, Steps: 5}, rand.New(rand.NewPCG(1, 2)))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := []float64{0, 0, 0, 0, 0}
	if !equalFloats(got, want) {
		t.Errorf("Run() = %v, want %v", got, want)
	}
}

func TestEngine_NoDynamicsKeepsInitialFraction(t *testing.T) {
	e := newEngine(t, cycle4(t))

	got, err := e.Run(Params{Beta: 0, Mu: 0, InitialFraction: 0.5, Steps: 3}, rand.New(rand.NewPCG(3, 3)))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := []float64{0.5, 0.5, 0.5}
	if !equalFloats(got, want) {
		t.Errorf("Run() = %v, want %v", got, want)
	}
}

func TestEngine_IsolatedNodesNeverInfected(t *testing.T) {
	topo, err := topology.FromEdges(5, nil)
	if err != nil {
		t.Fatal(err)
	}
	e := newEngine(t, topo)

	got, err := e.Run(Params{Beta: 1, Mu: 0, InitialFraction: 0.2, Steps: 4}, rand.New(rand.NewPCG(9, 9)))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for i, v := range got {
		if v != 0.2 {
			t.Errorf("step %d fraction = %v, want 0.2", i, v)
		}
	}
}

// A sequential in-place update would let the infection travel the whole
// path in one step. The synchronous rule moves it one hop per step.
func TestEngine_SynchronousUpdateOnPath(t *testing.T) {
	edges := []topology.Edge{{U: 0, V: 1}, {U: 1, V: 2}, {U: 2, V: 3}, {U: 3, V: 4}}
	topo, err := topology.FromEdges(5, edges)
	if err != nil {
		t.Fatal(err)
	}
	e := newEngine(t, topo)

	// With one initial node on a 5-path, full transmission grows the
	// infected set by at most two nodes per step.
	var prev int
	_, err = e.RunObserved(Params{Beta: 1, Mu: 0, InitialFraction: 0.2, Steps: 4}, rand.New(rand.NewPCG(5, 5)),
		func(step int, states []State) {
			count := 0
			for _, s := range states {
				if s == Infected {
					count++
				}
			}
			if step == 0 && count > 3 {
				t.Errorf("step 0: %d infected, synchronous update allows at most 3", count)
			}
			if step > 0 && count-prev > 2 {
				t.Errorf("step %d: grew by %d nodes, want at most 2", step, count-prev)
			}
			prev = count
		})
	if err != nil {
		t.Fatalf("RunObserved() error = %v", err)
	}
}

func TestEngine_AbsorbingStateIsObserved(t *testing.T) {
	e := newEngine(t, cycle4(t))

	var steps []int
	got, err := e.RunObserved(Params{Beta: 0, Mu: 1, InitialFraction: 1, Steps: 6}, rand.New(rand.NewPCG(0, 0)),
		func(step int, states []State) {
			steps = append(steps, step)
			for i, s := range states {
				if s != Susceptible {
					t.Errorf("step %d: node %d = %v after absorption", step, i, s)
				}
			}
		})
	if err != nil {
		t.Fatalf("RunObserved() error = %v", err)
	}
	if len(steps) != 6 {
		t.Errorf("observer called %d times, want 6", len(steps))
	}
	for i, v := range got {
		if v != 0 {
			t.Errorf("fraction[%d] = %v, want 0", i, v)
		}
	}
}

func TestEngine_SameSeedSameTrajectory(t *testing.T) {
	topo, err := topology.Generate(topology.ErdosRenyi{Nodes: 80, P: 0.08}, 4)
	if err != nil {
		t.Fatal(err)
	}
	e := newEngine(t, topo)
	p := Params{Beta: 0.3, Mu: 0.4, InitialFraction: 0.1, Steps: 50}

	a, err := e.Run(p, rand.New(rand.NewPCG(77, 1)))
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.Run(p, rand.New(rand.NewPCG(77, 1)))
	if err != nil {
		t.Fatal(err)
	}
	if !equalFloats(a, b) {
		t.Error("identical seeds produced different trajectories")
	}
}

func TestEngine_InvalidParams(t *testing.T) {
	e := newEngine(t, cycle4(t))
	rng := rand.New(rand.NewPCG(0, 0))

	tests := []struct {
		name string
		p    Params
	}{
		{"negative beta", Params{Beta: -0.1, Mu: 0.5, InitialFraction: 0.5, Steps: 1}},
		{"beta above one", Params{Beta: 1.1, Mu: 0.5, InitialFraction: 0.5, Steps: 1}},
		{"negative mu", Params{Beta: 0.5, Mu: -1, InitialFraction: 0.5, Steps: 1}},
		{"nan mu", Params{Beta: 0.5, Mu: math.NaN(), InitialFraction: 0.5, Steps: 1}},
		{"zero initial fraction", Params{Beta: 0.5, Mu: 0.5, InitialFraction: 0, Steps: 1}},
		{"initial fraction above one", Params{Beta: 0.5, Mu: 0.5, InitialFraction: 1.5, Steps: 1}},
		{"zero steps", Params{Beta: 0.5, Mu: 0.5, InitialFraction: 0.5, Steps: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Run(tt.p, rng)
			if !errors.Is(err, ErrInvalidParameter) {
				t.Errorf("Run() error = %v, want ErrInvalidParameter", err)
			}
		})
	}

	t.Run("nil rng", func(t *testing.T) {
		_, err := e.Run(Params{Beta: 0.5, Mu: 0.5, InitialFraction: 0.5, Steps: 1}, nil)
		if !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("Run() error = %v, want ErrInvalidParameter", err)
		}
	})
}

func TestInitialInfected(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		fraction float64
		want     int
	}{
		{"quarter of four", 4, 0.25, 1},
		{"floor", 10, 0.25, 2},
		{"at least one", 500, 0.0001, 1},
		{"float artefact", 100, 0.29, 29},
		{"default experiment", 500, 0.2, 100},
		{"everyone", 7, 1, 7},
		{"single node", 1, 0.5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InitialInfected(tt.n, tt.fraction); got != tt.want {
				t.Errorf("InitialInfected(%d, %v) = %d, want %d", tt.n, tt.fraction, got, tt.want)
			}
		})
	}
}

func TestSeedInfected_Uniform(t *testing.T) {
	// Each of 4 nodes should be the single seed about a quarter of the time.
	counts := make([]int, 4)
	rng := rand.New(rand.NewPCG(10, 20))
	const trials = 4000
	for i := 0; i < trials; i++ {
		states := make([]State, 4)
		seedInfected(states, 1, rng)
		for j, s := range states {
			if s == Infected {
				counts[j]++
			}
		}
	}
	for j, c := range counts {
		if frac := float64(c) / trials; math.Abs(frac-0.25) > 0.04 {
			t.Errorf("node %d seeded %.3f of the time, want about 0.25", j, frac)
		}
	}
}

func TestStateString(t *testing.T) {
	if Susceptible.String() != "S" || Infected.String() != "I" {
		t.Errorf("String() = %q/%q, want S/I", Susceptible, Infected)
	}
}
