package main

import (
	"fmt"

	"github.com/nvandessel/sisweep/internal/epidemic"
	"github.com/nvandessel/sisweep/internal/logging"
	"github.com/nvandessel/sisweep/internal/metrics"
	"github.com/spf13/cobra"
)

// runOutput is the JSON form of a single averaged run.
type runOutput struct {
	Beta        float64               `json:"beta"`
	Mu          float64               `json:"mu"`
	Repeats     int                   `json:"repeats"`
	Transient   int                   `json:"transient"`
	Prevalence  float64               `json:"prevalence"`
	Trajectory  []float64             `json:"trajectory"`
	Diagnostics []epidemic.Diagnostic `json:"diagnostics,omitempty"`
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Average the infected fraction for one (β, µ) pair",
		Long: `Simulate a single parameter pair on the configured network and print
the stationary prevalence, the mean of the averaged post-transient
trajectory. Nothing is stored.

Examples:
  sisweep run --beta 0.05 --mu 0.5
  sisweep run --beta 1 --mu 0 --transient 0 --steps 10 --trajectory`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			showTrajectory, _ := cmd.Flags().GetBool("trajectory")
			beta, _ := cmd.Flags().GetFloat64("beta")
			ctx := cmd.Context()

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := applyModelFlags(cmd, cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			mu := cfg.Sweep.Mus[0]
			if cmd.Flags().Changed("mu") {
				mu, _ = cmd.Flags().GetFloat64("mu")
			}

			p := epidemic.AverageParams{
				Params: epidemic.Params{
					Beta:            beta,
					Mu:              mu,
					InitialFraction: cfg.Sweep.InitialFraction,
					Steps:           cfg.Sweep.Steps,
				},
				Repeats:   cfg.Sweep.Repeats,
				Transient: cfg.Sweep.Transient,
			}
			if err := p.Validate(); err != nil {
				return err
			}

			logger := newLogger(cmd, cfg)
			topo, err := buildTopology(ctx, cfg, logger)
			if err != nil {
				return err
			}
			engine, err := epidemic.NewEngine(topo)
			if err != nil {
				return err
			}

			reg := metrics.NewRegistry()
			diag := logging.NewDiagnosticLogger(cfg.DiagnosticsDir())
			defer diag.Close()

			avg, err := epidemic.NewAverager(engine,
				epidemic.WithWorkers(cfg.Sweep.Workers),
				epidemic.WithLogger(logger),
				epidemic.WithDiagnostics(diag),
				epidemic.WithMetrics(reg),
			).Average(ctx, p, cfg.Sweep.Seed)
			if err != nil {
				return err
			}
			if err := writeMetrics(reg, cfg); err != nil {
				return err
			}

			if jsonOut {
				return printJSON(cmd, runOutput{
					Beta:        beta,
					Mu:          mu,
					Repeats:     p.Repeats,
					Transient:   p.Transient,
					Prevalence:  avg.Mean(),
					Trajectory:  avg.Trajectory,
					Diagnostics: avg.Diagnostics,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "β=%s µ=%s stationary prevalence %.6f (%d repeats, steps %d-%d)\n",
				formatFloat(beta), formatFloat(mu), avg.Mean(), p.Repeats, p.Transient+1, p.Steps)
			for _, d := range avg.Diagnostics {
				fmt.Fprintln(out, warnStyle.Render("warning: "+d.Error()))
			}
			if showTrajectory {
				for i, v := range avg.Trajectory {
					fmt.Fprintf(out, "%d\t%.6f\n", p.Transient+i+1, v)
				}
			}
			return nil
		},
	}

	addModelFlags(cmd)
	cmd.Flags().Float64("beta", 0.5, "Infection probability per contact and step")
	cmd.Flags().Float64("mu", 0, "Recovery probability per step (default: first configured mu)")
	cmd.Flags().Bool("trajectory", false, "Print the averaged trajectory step by step")

	return cmd
}
