package epidemic

import (
	"math/rand/v2"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/nvandessel/sisweep/internal/topology"
)

// TestRealizationInvariants checks, for random graphs and parameters, the
// properties every realization must satisfy regardless of the draws.
func TestRealizationInvariants(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 60

	properties := gopter.NewProperties(parameters)

	run := func(n int, density, beta, mu, rho float64, steps int, seed uint64, observe Observer) ([]float64, bool) {
		topo, err := topology.Generate(topology.ErdosRenyi{Nodes: n, P: density}, seed)
		if err != nil {
			return nil, false
		}
		e, err := NewEngine(topo)
		if err != nil {
			return nil, false
		}
		p := Params{Beta: beta, Mu: mu, InitialFraction: rho, Steps: steps}
		fractions, err := e.RunObserved(p, rand.New(rand.NewPCG(seed, 1)), observe)
		return fractions, err == nil
	}

	properties.Property("every node is exactly S or I and the fraction is count/N", prop.ForAll(
		func(n int, density, beta, mu, rho float64, steps int, seed uint64) bool {
			var counts []int
			fractions, ok := run(n, density, beta, mu, rho, steps, seed, func(step int, states []State) {
				c := 0
				for _, s := range states {
					switch s {
					case Infected:
						c++
					case Susceptible:
					default:
						c = -1 << 30
					}
				}
				counts = append(counts, c)
			})
			if !ok || len(fractions) != steps || len(counts) != steps {
				return false
			}
			for i, f := range fractions {
				if counts[i] < 0 || f != float64(counts[i])/float64(n) {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 40),
		gen.Float64Range(0, 0.5),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
		gen.Float64Range(0.01, 1),
		gen.IntRange(1, 30),
		gen.UInt64(),
	))

	properties.Property("fractions stay in [0, 1]", prop.ForAll(
		func(n int, density, beta, mu, rho float64, steps int, seed uint64) bool {
			fractions, ok := run(n, density, beta, mu, rho, steps, seed, nil)
			if !ok {
				return false
			}
			for _, f := range fractions {
				if f < 0 || f > 1 {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 40),
		gen.Float64Range(0, 0.5),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
		gen.Float64Range(0.01, 1),
		gen.IntRange(1, 30),
		gen.UInt64(),
	))

	properties.Property("zero prevalence is absorbing", prop.ForAll(
		func(n int, density, beta, mu, rho float64, steps int, seed uint64) bool {
			fractions, ok := run(n, density, beta, mu, rho, steps, seed, nil)
			if !ok {
				return false
			}
			absorbed := false
			for _, f := range fractions {
				if absorbed && f != 0 {
					return false
				}
				if f == 0 {
					absorbed = true
				}
			}
			return true
		},
		gen.IntRange(1, 20),
		gen.Float64Range(0, 0.3),
		gen.Float64Range(0, 0.3),
		gen.Float64Range(0.5, 1),
		gen.Float64Range(0.01, 1),
		gen.IntRange(1, 40),
		gen.UInt64(),
	))

	properties.TestingRun(t)
}
