// Package topology provides the immutable contact networks the epidemic
// spreads over. A Topology is built once, by a generator or from an explicit
// edge list, and is safe for concurrent reads afterwards.
package topology

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInvalidSpec is returned when a topology cannot be built from the given
// parameters or edges.
var ErrInvalidSpec = errors.New("invalid topology")

// Edge is an undirected edge between two node indices.
type Edge struct {
	U, V int
}

// Param is one generator argument, kept as text so sinks can print it verbatim.
type Param struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// Params is the ordered list of arguments a topology was generated with.
type Params []Param

// String renders params for legends, e.g. "n=500, p=0.3".
func (p Params) String() string {
	return p.join(", ")
}

// Slug renders params for file names, e.g. "n=500_p=0.3".
func (p Params) Slug() string {
	return p.join("_")
}

func (p Params) join(sep string) string {
	parts := make([]string, 0, len(p))
	for _, kv := range p {
		parts = append(parts, kv.Key+"="+kv.Value)
	}
	return strings.Join(parts, sep)
}

// Get returns the value for key, if present.
func (p Params) Get(key string) (string, bool) {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Topology is an undirected simple graph on nodes 0..N-1 stored in
// compressed sparse row form. Neighbor lists are sorted ascending.
type Topology struct {
	kind      Kind
	params    Params
	offsets   []int
	neighbors []int32
}

// Len returns the number of nodes.
func (t *Topology) Len() int {
	if t == nil || len(t.offsets) == 0 {
		return 0
	}
	return len(t.offsets) - 1
}

// Neighbors returns the sorted neighbors of node i. The returned slice aliases
// the topology and must not be modified.
func (t *Topology) Neighbors(i int) []int32 {
	return t.neighbors[t.offsets[i]:t.offsets[i+1]:t.offsets[i+1]]
}

// Degree returns the number of neighbors of node i.
func (t *Topology) Degree(i int) int {
	return t.offsets[i+1] - t.offsets[i]
}

// EdgeCount returns the number of undirected edges.
func (t *Topology) EdgeCount() int {
	return len(t.neighbors) / 2
}

// HasEdge reports whether u and v are adjacent.
func (t *Topology) HasEdge(u, v int) bool {
	_, found := slices.BinarySearch(t.Neighbors(u), int32(v))
	return found
}

// Edges returns every edge once, with U < V, in ascending order.
func (t *Topology) Edges() []Edge {
	edges := make([]Edge, 0, t.EdgeCount())
	for u := 0; u < t.Len(); u++ {
		for _, v := range t.Neighbors(u) {
			if int(v) > u {
				edges = append(edges, Edge{U: u, V: int(v)})
			}
		}
	}
	return edges
}

// Kind returns the generator kind, or KindCustom for explicit edge lists.
func (t *Topology) Kind() Kind {
	return t.kind
}

// Params returns a copy of the generator parameters.
func (t *Topology) Params() Params {
	return slices.Clone(t.params)
}

// Stats summarizes the degree structure of a topology.
type Stats struct {
	Nodes      int     `json:"nodes"`
	Edges      int     `json:"edges"`
	MeanDegree float64 `json:"mean_degree"`
	MaxDegree  int     `json:"max_degree"`
	Isolated   int     `json:"isolated"`
}

// Stats computes degree statistics.
func (t *Topology) Stats() Stats {
	s := Stats{Nodes: t.Len(), Edges: t.EdgeCount()}
	for i := 0; i < s.Nodes; i++ {
		d := t.Degree(i)
		if d > s.MaxDegree {
			s.MaxDegree = d
		}
		if d == 0 {
			s.Isolated++
		}
	}
	if s.Nodes > 0 {
		s.MeanDegree = float64(2*s.Edges) / float64(s.Nodes)
	}
	return s
}

// FromEdges builds a topology with n nodes from an explicit edge list.
// Duplicate edges collapse; self-loops and out-of-range endpoints are rejected.
func FromEdges(n int, edges []Edge) (*Topology, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: node count must be at least 1, got %d", ErrInvalidSpec, n)
	}
	b := newBuilder(n)
	for _, e := range edges {
		if e.U < 0 || e.U >= n || e.V < 0 || e.V >= n {
			return nil, fmt.Errorf("%w: edge %d-%d out of range for %d nodes", ErrInvalidSpec, e.U, e.V, n)
		}
		if e.U == e.V {
			return nil, fmt.Errorf("%w: self-loop on node %d", ErrInvalidSpec, e.U)
		}
		b.add(e.U, e.V)
	}
	return b.freeze(KindCustom, Params{{Key: "n", Value: fmt.Sprint(n)}}), nil
}

// Cycle returns the ring 0-1-...-(n-1)-0.
func Cycle(n int) (*Topology, error) {
	edges := make([]Edge, 0, n)
	for i := 0; i < n && n > 1; i++ {
		edges = append(edges, Edge{U: i, V: (i + 1) % n})
	}
	return FromEdges(n, edges)
}

// builder is the mutable adjacency used while generating.
type builder struct {
	adj []map[int32]struct{}
}

func newBuilder(n int) *builder {
	adj := make([]map[int32]struct{}, n)
	for i := range adj {
		adj[i] = make(map[int32]struct{})
	}
	return &builder{adj: adj}
}

func (b *builder) add(u, v int) {
	b.adj[u][int32(v)] = struct{}{}
	b.adj[v][int32(u)] = struct{}{}
}

func (b *builder) remove(u, v int) {
	delete(b.adj[u], int32(v))
	delete(b.adj[v], int32(u))
}

func (b *builder) has(u, v int) bool {
	_, ok := b.adj[u][int32(v)]
	return ok
}

func (b *builder) degree(u int) int {
	return len(b.adj[u])
}

func (b *builder) freeze(kind Kind, params Params) *Topology {
	offsets := make([]int, len(b.adj)+1)
	total := 0
	for i, set := range b.adj {
		offsets[i] = total
		total += len(set)
	}
	offsets[len(b.adj)] = total

	neighbors := make([]int32, total)
	for i, set := range b.adj {
		row := neighbors[offsets[i]:offsets[i+1]]
		j := 0
		for v := range set {
			row[j] = v
			j++
		}
		slices.Sort(row)
	}

	return &Topology{
		kind:      kind,
		params:    params,
		offsets:   offsets,
		neighbors: neighbors,
	}
}
