package main

import (
	"fmt"
	"slices"

	"github.com/nvandessel/sisweep/internal/epidemic"
	"github.com/nvandessel/sisweep/internal/topology"
	"github.com/nvandessel/sisweep/internal/visualization"
	"github.com/spf13/cobra"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Generate the configured network and describe it",
		Long: `Generate the network a sweep would use and print its degree statistics,
its DOT (Graphviz) rendering or its JSON edge list.

With --snapshot N the DOT output colors each node by its state after N
steps of one realization at --beta and --mu.

Examples:
  sisweep graph --kind watts_strogatz --param n=30 --param k=4
  sisweep graph --format dot --param n=40 | dot -Tsvg > graph.svg
  sisweep graph --format dot --snapshot 5 --beta 0.3 --mu 0.2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			format, _ := cmd.Flags().GetString("format")
			snapshot, _ := cmd.Flags().GetInt("snapshot")
			beta, _ := cmd.Flags().GetFloat64("beta")
			mu, _ := cmd.Flags().GetFloat64("mu")
			ctx := cmd.Context()

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := applyModelFlags(cmd, cfg); err != nil {
				return err
			}
			if jsonOut && format == "stats" {
				format = string(visualization.FormatJSON)
			}
			if snapshot > 0 && format != string(visualization.FormatDOT) {
				return fmt.Errorf("--snapshot requires --format dot")
			}

			topo, err := buildTopology(ctx, cfg, newLogger(cmd, cfg))
			if err != nil {
				return err
			}

			switch format {
			case "stats":
				s := topo.Stats()
				tbl := newTable("Kind", "Params", "Nodes", "Edges", "Mean degree", "Max degree", "Isolated")
				tbl.Row(string(topo.Kind()), topo.Params().String(),
					fmt.Sprint(s.Nodes), fmt.Sprint(s.Edges), fmt.Sprintf("%.3f", s.MeanDegree),
					fmt.Sprint(s.MaxDegree), fmt.Sprint(s.Isolated))
				fmt.Fprintln(cmd.OutOrStdout(), tbl.String())

			case string(visualization.FormatDOT):
				var opts visualization.DOTOptions
				if snapshot > 0 {
					opts.States, err = snapshotStates(topo, epidemic.Params{
						Beta:            beta,
						Mu:              mu,
						InitialFraction: cfg.Sweep.InitialFraction,
						Steps:           snapshot,
					}, cfg.Sweep.Seed)
					if err != nil {
						return err
					}
				}
				dot, err := visualization.RenderDOT(topo, opts)
				if err != nil {
					return fmt.Errorf("render DOT: %w", err)
				}
				fmt.Fprint(cmd.OutOrStdout(), dot)

			case string(visualization.FormatJSON):
				if err := printJSON(cmd, visualization.RenderJSON(topo)); err != nil {
					return fmt.Errorf("encode JSON: %w", err)
				}

			default:
				return fmt.Errorf("unsupported format %q (use 'stats', 'dot', or 'json')", format)
			}
			return nil
		},
	}

	addModelFlags(cmd)
	cmd.Flags().String("format", "stats", "Output format: stats, dot, or json")
	cmd.Flags().Int("snapshot", 0, "Color DOT nodes by their state after this many steps")
	cmd.Flags().Float64("beta", 0.3, "Infection probability for --snapshot")
	cmd.Flags().Float64("mu", 0.2, "Recovery probability for --snapshot")

	return cmd
}

// snapshotStates runs the first realization of seed and returns the node
// states after its last step.
func snapshotStates(topo *topology.Topology, p epidemic.Params, seed uint64) ([]epidemic.State, error) {
	engine, err := epidemic.NewEngine(topo)
	if err != nil {
		return nil, err
	}
	var states []epidemic.State
	_, err = engine.RunObserved(p, epidemic.RepeatRand(seed, 0), func(step int, s []epidemic.State) {
		if step == p.Steps-1 {
			states = slices.Clone(s)
		}
	})
	if err != nil {
		return nil, err
	}
	return states, nil
}
