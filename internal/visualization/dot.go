// Package visualization renders sweep results and contact networks: SVG
// prevalence plots, Graphviz DOT graphs, and a small HTTP result browser.
package visualization

import (
	"fmt"
	"strings"

	"github.com/nvandessel/sisweep/internal/epidemic"
	"github.com/nvandessel/sisweep/internal/topology"
)

// Format specifies the output format for graph rendering.
type Format string

const (
	FormatDOT  Format = "dot"
	FormatJSON Format = "json"
)

// stateColors maps node states to DOT fill colors.
var stateColors = map[epidemic.State]string{
	epidemic.Susceptible: "lightsteelblue",
	epidemic.Infected:    "tomato",
}

// DOTOptions controls RenderDOT.
type DOTOptions struct {
	// States colors each node by its epidemic state. Must be nil or have
	// one entry per node.
	States []epidemic.State
}

// RenderDOT produces an undirected Graphviz DOT representation of topo.
// Node tooltips carry the degree.
func RenderDOT(topo *topology.Topology, opts DOTOptions) (string, error) {
	n := topo.Len()
	if n == 0 {
		return "", fmt.Errorf("render DOT: empty topology")
	}
	if opts.States != nil && len(opts.States) != n {
		return "", fmt.Errorf("render DOT: %d states for %d nodes", len(opts.States), n)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "graph %q {\n", graphName(topo))
	b.WriteString("  layout=neato;\n")
	b.WriteString("  node [shape=circle, style=filled, fillcolor=\"lightgray\", fontname=\"Helvetica\", fontsize=9, width=0.3];\n")
	b.WriteString("  edge [color=\"#888888\"];\n\n")

	for i := 0; i < n; i++ {
		attrs := fmt.Sprintf("tooltip=\"degree=%d\"", topo.Degree(i))
		if opts.States != nil {
			attrs += fmt.Sprintf(", fillcolor=%q", stateColors[opts.States[i]])
		}
		fmt.Fprintf(&b, "  %d [%s];\n", i, attrs)
	}
	b.WriteString("\n")

	for _, e := range topo.Edges() {
		fmt.Fprintf(&b, "  %d -- %d;\n", e.U, e.V)
	}

	b.WriteString("}\n")
	return b.String(), nil
}

// GraphJSON is the JSON rendering of a topology.
type GraphJSON struct {
	Kind      string          `json:"kind"`
	Params    topology.Params `json:"params"`
	Stats     topology.Stats  `json:"stats"`
	Edges     [][2]int        `json:"edges"`
	NodeCount int             `json:"node_count"`
	EdgeCount int             `json:"edge_count"`
}

// RenderJSON produces a JSON-ready graph representation with an edge list.
func RenderJSON(topo *topology.Topology) GraphJSON {
	edges := topo.Edges()
	out := GraphJSON{
		Kind:      string(topo.Kind()),
		Params:    topo.Params(),
		Stats:     topo.Stats(),
		Edges:     make([][2]int, len(edges)),
		NodeCount: topo.Len(),
		EdgeCount: len(edges),
	}
	for i, e := range edges {
		out.Edges[i] = [2]int{e.U, e.V}
	}
	return out
}

func graphName(topo *topology.Topology) string {
	if slug := topo.Params().Slug(); slug != "" {
		return string(topo.Kind()) + "_" + slug
	}
	return string(topo.Kind())
}
