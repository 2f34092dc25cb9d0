package main

import (
	"fmt"

	"github.com/nvandessel/sisweep/internal/config"
	"github.com/nvandessel/sisweep/internal/logging"
	"github.com/nvandessel/sisweep/internal/metrics"
	"github.com/nvandessel/sisweep/internal/store"
	"github.com/nvandessel/sisweep/internal/sweep"
	"github.com/nvandessel/sisweep/internal/visualization"
	"github.com/spf13/cobra"
)

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Sweep infection and recovery probabilities",
		Long: `Generate the configured network, simulate every (β, µ) pair and
store the stationary infected fraction of each.

The table is saved to the result database and, unless disabled, plotted
as <output-dir>/<kind>_<params>.svg.

Examples:
  sisweep sweep                                   # Default experiment
  sisweep sweep --kind barabasi_albert --param n=1000 --param m=3
  sisweep sweep --betas 0:0.5:26 --mus 0.2,0.4 --repeats 20
  sisweep sweep --betas 0.1,0.2,0.3 --seed 7 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			ctx := cmd.Context()

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := applyModelFlags(cmd, cfg); err != nil {
				return err
			}
			if err := applySweepFlags(cmd, cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := newLogger(cmd, cfg)
			topo, err := buildTopology(ctx, cfg, logger)
			if err != nil {
				return err
			}

			rs, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer rs.Close()

			reg := metrics.NewRegistry()
			diag := logging.NewDiagnosticLogger(cfg.DiagnosticsDir())
			defer diag.Close()

			orch, err := sweep.New(topo,
				sweep.WithWorkers(cfg.Sweep.Workers),
				sweep.WithLogger(logger),
				sweep.WithDiagnostics(diag),
				sweep.WithMetrics(reg),
				sweep.WithProgress(progressLogger(ctx, logger)),
				sweep.WithKeepTrajectories(cfg.Sweep.KeepTrajectories),
			)
			if err != nil {
				return err
			}

			sc := cfg.SweepConfig()
			table, err := orch.Run(ctx, sc)
			if err != nil {
				if merr := writeMetrics(reg, cfg); merr != nil {
					logger.WarnContext(ctx, "metrics not written", "error", merr)
				}
				return fmt.Errorf("sweep failed: %w", err)
			}

			rec := &store.SweepRecord{
				Topology: topologyInfo(topo, cfg.Topology.Seed),
				Config:   sc,
				Table:    table,
			}
			id, err := rs.SaveSweep(ctx, rec)
			if err != nil {
				return err
			}
			logger.InfoContext(ctx, "sweep stored", "id", id, "database", rs.Path())

			var plotPath string
			if cfg.Output.Plot {
				plotPath, err = visualization.SavePlot(cfg.Output.Dir, table, rec.Topology.Kind, rec.Topology.Params)
				if err != nil {
					return err
				}
			}

			if err := writeMetrics(reg, cfg); err != nil {
				return err
			}

			if jsonOut {
				return printJSON(cmd, map[string]any{
					"id":       id,
					"name":     rec.Name(),
					"database": rs.Path(),
					"plot":     plotPath,
					"table":    table,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render(visualization.PlotTitle(rec.Topology.Kind)))
			fmt.Fprintln(out, renderPrevalence(table))
			for _, d := range table.Diagnostics {
				fmt.Fprintln(out, warnStyle.Render("warning: "+d.Error()))
			}
			fmt.Fprintf(out, "Stored sweep %s (%s)\n", id, rec.Name())
			if plotPath != "" {
				fmt.Fprintf(out, "Plot written to %s\n", plotPath)
			}
			return nil
		},
	}

	addModelFlags(cmd)
	cmd.Flags().String("betas", "", `Beta grid as "start:stop:count" or a comma-separated list`)
	cmd.Flags().String("mus", "", "Comma-separated recovery probabilities")
	cmd.Flags().Bool("keep-trajectories", false, "Store the averaged trajectory of every cell")
	cmd.Flags().Bool("no-plot", false, "Skip writing the SVG plot")

	return cmd
}

// applySweepFlags copies the grid and output flags the user set onto cfg.
func applySweepFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("betas") {
		v, _ := flags.GetString("betas")
		grid, err := parseBetaGrid(v)
		if err != nil {
			return err
		}
		cfg.Sweep.Betas = grid
	}
	if flags.Changed("mus") {
		v, _ := flags.GetString("mus")
		mus, err := config.ParseFloatList(v)
		if err != nil {
			return fmt.Errorf("invalid --mus %q: %w", v, err)
		}
		cfg.Sweep.Mus = mus
	}
	if flags.Changed("keep-trajectories") {
		cfg.Sweep.KeepTrajectories, _ = flags.GetBool("keep-trajectories")
	}
	if noPlot, _ := flags.GetBool("no-plot"); noPlot {
		cfg.Output.Plot = false
	}
	return nil
}
