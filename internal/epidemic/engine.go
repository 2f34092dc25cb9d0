// Package epidemic simulates the discrete-time SIS process on a fixed
// topology and averages independent realizations into a stationary
// prevalence estimate.
//
// Every step is synchronous: the next state of each node is computed from the
// pre-step state of the whole population, held in a separate buffer, so the
// outcome does not depend on the order nodes are visited in.
package epidemic

import (
	"math"
	"math/rand/v2"

	"github.com/nvandessel/sisweep/internal/topology"
)

// State is the epidemic state of a single node.
type State uint8

const (
	Susceptible State = iota
	Infected
)

func (s State) String() string {
	if s == Infected {
		return "I"
	}
	return "S"
}

// Params holds the inputs of a single realization.
type Params struct {
	// Beta is the per-contact transmission probability per step, in [0, 1].
	Beta float64

	// Mu is the per-step recovery probability of an infected node, in [0, 1].
	Mu float64

	// InitialFraction is the share of nodes infected at time zero, in (0, 1].
	// At least one node is always infected.
	InitialFraction float64

	// Steps is the number of synchronous updates to simulate (>= 1).
	Steps int
}

// Validate checks the realization parameters.
func (p Params) Validate() error {
	if !inUnitInterval(p.Beta) {
		return invalid("beta must be in [0, 1], got %v", p.Beta)
	}
	if !inUnitInterval(p.Mu) {
		return invalid("mu must be in [0, 1], got %v", p.Mu)
	}
	if !(p.InitialFraction > 0 && p.InitialFraction <= 1) {
		return invalid("initial fraction must be in (0, 1], got %v", p.InitialFraction)
	}
	if p.Steps < 1 {
		return invalid("steps must be at least 1, got %d", p.Steps)
	}
	return nil
}

// Observer receives the node states after each recorded step. The slice is
// only valid for the duration of the call and must not be modified.
type Observer func(step int, states []State)

// Engine runs single SIS realizations over a read-only topology. It holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	topo *topology.Topology
}

// NewEngine creates an engine for topo. The topology must have at least one node.
func NewEngine(topo *topology.Topology) (*Engine, error) {
	if topo.Len() == 0 {
		return nil, invalid("topology has no nodes")
	}
	return &Engine{topo: topo}, nil
}

// Topology returns the topology the engine simulates on.
func (e *Engine) Topology() *topology.Topology {
	return e.topo
}

// Run simulates one realization and returns the infected fraction after each
// of the p.Steps steps. All randomness is drawn from rng.
func (e *Engine) Run(p Params, rng *rand.Rand) ([]float64, error) {
	return e.RunObserved(p, rng, nil)
}

// RunObserved is Run with a hook called after every step.
func (e *Engine) RunObserved(p Params, rng *rand.Rand, observe Observer) ([]float64, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, invalid("nil random source")
	}

	n := e.topo.Len()
	cur := make([]State, n)
	next := make([]State, n)
	infected := seedInfected(cur, InitialInfected(n, p.InitialFraction), rng)

	fractions := make([]float64, p.Steps)
	for step := 0; step < p.Steps; step++ {
		if infected == 0 {
			// Absorbed: no node can become infected again, the remaining
			// fractions stay zero and no draws are needed.
			if observe != nil {
				for s := step; s < p.Steps; s++ {
					observe(s, cur)
				}
			}
			break
		}

		infected = e.step(cur, next, p.Beta, p.Mu, rng)
		cur, next = next, cur

		fractions[step] = float64(infected) / float64(n)
		if observe != nil {
			observe(step, cur)
		}
	}

	return fractions, nil
}

// step writes the successor of cur into next and returns the number of
// infected nodes in next. Nodes are visited in ascending order and each
// susceptible node scans its neighbors in ascending order, stopping at the
// first successful transmission.
func (e *Engine) step(cur, next []State, beta, mu float64, rng *rand.Rand) int {
	infected := 0
	for i, s := range cur {
		if s == Infected {
			if rng.Float64() < mu {
				next[i] = Susceptible
			} else {
				next[i] = Infected
				infected++
			}
			continue
		}

		next[i] = Susceptible
		for _, j := range e.topo.Neighbors(i) {
			if cur[j] == Infected && rng.Float64() < beta {
				next[i] = Infected
				infected++
				break
			}
		}
	}
	return infected
}

// InitialInfected returns how many of n nodes start infected for the given
// fraction: floor(fraction*n), but never less than one nor more than n.
func InitialInfected(n int, fraction float64) int {
	// The epsilon absorbs products such as 0.29*100 = 28.999999999999996.
	k := int(math.Floor(fraction*float64(n) + 1e-9))
	return min(max(k, 1), n)
}

// seedInfected marks k distinct nodes, chosen uniformly without replacement,
// as infected and returns k.
func seedInfected(states []State, k int, rng *rand.Rand) int {
	n := len(states)
	order := make([]int32, n)
	for i := range order {
		order[i] = int32(i)
	}
	for i := 0; i < k; i++ {
		j := i + rng.IntN(n-i)
		order[i], order[j] = order[j], order[i]
		states[order[i]] = Infected
	}
	return k
}

func inUnitInterval(x float64) bool {
	return x >= 0 && x <= 1
}
