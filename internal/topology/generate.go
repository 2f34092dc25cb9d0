package topology

import (
	"fmt"
	"math/rand/v2"
)

// randSource is the subset of *rand.Rand the generators draw from.
type randSource interface {
	Float64() float64
	IntN(n int) int
}

// generatorStream separates generator draws from simulation draws that may be
// seeded with the same value.
const generatorStream = 0x746f706f6c6f6779

// Generate validates spec and builds the topology it describes. The same
// spec and seed always produce the same graph.
func Generate(spec Spec, seed uint64) (*Topology, error) {
	if spec == nil {
		return nil, fmt.Errorf("%w: nil spec", ErrInvalidSpec)
	}
	if err := spec.validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(seed, generatorStream))
	return spec.build(rng).freeze(spec.Kind(), spec.Params()), nil
}

func (s ErdosRenyi) build(rng randSource) *builder {
	b := newBuilder(s.Nodes)
	if s.P == 0 {
		return b
	}
	for u := 0; u < s.Nodes; u++ {
		for v := u + 1; v < s.Nodes; v++ {
			if s.P == 1 || rng.Float64() < s.P {
				b.add(u, v)
			}
		}
	}
	return b
}

func (s BarabasiAlbert) build(rng randSource) *builder {
	b := newBuilder(s.Nodes)

	// Star on nodes 0..M with 0 at the center.
	repeated := make([]int, 0, 2*s.M*s.Nodes)
	for leaf := 1; leaf <= s.M && leaf < s.Nodes; leaf++ {
		b.add(0, leaf)
		repeated = append(repeated, 0, leaf)
	}

	targets := make([]int, 0, s.M)
	for source := s.M + 1; source < s.Nodes; source++ {
		targets = targets[:0]
		for len(targets) < s.M {
			x := repeated[rng.IntN(len(repeated))]
			if !containsInt(targets, x) {
				targets = append(targets, x)
			}
		}
		for _, t := range targets {
			b.add(source, t)
			repeated = append(repeated, t, source)
		}
	}
	return b
}

func (s WattsStrogatz) build(rng randSource) *builder {
	n := s.Nodes
	b := newBuilder(n)
	half := s.K / 2

	for j := 1; j <= half; j++ {
		for u := 0; u < n; u++ {
			b.add(u, (u+j)%n)
		}
	}

	if s.P == 0 {
		return b
	}
	for j := 1; j <= half; j++ {
		for u := 0; u < n; u++ {
			if rng.Float64() >= s.P {
				continue
			}
			if b.degree(u) >= n-1 {
				continue
			}
			w := rng.IntN(n)
			for w == u || b.has(u, w) {
				w = rng.IntN(n)
			}
			v := (u + j) % n
			if b.has(u, v) {
				b.remove(u, v)
			}
			b.add(u, w)
		}
	}
	return b
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
