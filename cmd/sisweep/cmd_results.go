package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/nvandessel/sisweep/internal/store"
	"github.com/nvandessel/sisweep/internal/visualization"
	"github.com/spf13/cobra"
)

func newResultsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Inspect and manage stored sweeps",
		Long: `List, show, plot, export and delete sweeps stored in the result database.

Sweeps are addressed by id or by any unique id prefix.

Examples:
  sisweep results list
  sisweep results show 3f2a
  sisweep results plot 3f2a
  sisweep results export > sweeps.jsonl
  sisweep results import sweeps.jsonl
  sisweep results serve --open`,
	}

	cmd.AddCommand(
		newResultsListCmd(),
		newResultsShowCmd(),
		newResultsPlotCmd(),
		newResultsExportCmd(),
		newResultsImportCmd(),
		newResultsDeleteCmd(),
		newResultsServeCmd(),
	)

	return cmd
}

// withStore loads the config and runs fn against the result store.
func withStore(cmd *cobra.Command, fn func(rs *store.SQLiteResultStore) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	rs, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer rs.Close()
	return fn(rs)
}

func newResultsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored sweeps, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			return withStore(cmd, func(rs *store.SQLiteResultStore) error {
				sums, err := rs.ListSweeps(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					if sums == nil {
						sums = []store.Summary{}
					}
					return printJSON(cmd, sums)
				}
				if len(sums) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No sweeps stored yet.")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderSummaries(sums))
				return nil
			})
		},
	}
}

func newResultsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show the prevalence table of a sweep",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			return withStore(cmd, func(rs *store.SQLiteResultStore) error {
				rec, err := rs.GetSweep(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					return printJSON(cmd, rec)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintln(out, titleStyle.Render(rec.Name()))
				fmt.Fprintf(out, "ID:        %s\n", rec.ID)
				fmt.Fprintf(out, "Created:   %s\n", rec.CreatedAt.Local().Format(time.RFC3339))
				fmt.Fprintf(out, "Network:   %d nodes, %d edges (seed %d)\n",
					rec.Topology.Nodes, rec.Topology.Edges, rec.Topology.Seed)
				fmt.Fprintf(out, "Sweep:     %d repeats, %d steps, %d transient, ρ₀=%s, seed %d\n",
					rec.Config.Repeats, rec.Config.Steps, rec.Config.Transient,
					formatFloat(rec.Config.InitialFraction), rec.Config.Seed)
				fmt.Fprintln(out, renderPrevalence(rec.Table))
				for _, d := range rec.Table.Diagnostics {
					fmt.Fprintln(out, warnStyle.Render("warning: "+d.Error()))
				}
				return nil
			})
		},
	}
}

func newResultsPlotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plot <id>",
		Short: "Write the SVG plot of a stored sweep to the output directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			rs, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer rs.Close()

			rec, err := rs.GetSweep(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			path, err := visualization.SavePlot(cfg.Output.Dir, rec.Table, rec.Topology.Kind, rec.Topology.Params)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Plot written to %s\n", path)
			return nil
		},
	}
}

func newResultsExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every sweep as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("file")
			return withStore(cmd, func(rs *store.SQLiteResultStore) error {
				var w io.Writer = cmd.OutOrStdout()
				if output != "" {
					f, err := os.Create(output)
					if err != nil {
						return fmt.Errorf("create export file: %w", err)
					}
					defer f.Close()
					w = f
				}
				n, err := store.ExportJSONL(cmd.Context(), rs, w)
				if err != nil {
					return err
				}
				if output != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "Exported %d sweeps to %s\n", n, output)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringP("file", "f", "", "Write to this file instead of stdout")
	return cmd
}

func newResultsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Import sweeps from JSON lines, skipping ids already stored",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(rs *store.SQLiteResultStore) error {
				var r io.Reader = cmd.InOrStdin()
				if args[0] != "-" {
					f, err := os.Open(args[0])
					if err != nil {
						return fmt.Errorf("open import file: %w", err)
					}
					defer f.Close()
					r = f
				}
				n, err := store.ImportJSONL(cmd.Context(), rs, r)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d sweeps\n", n)
				return nil
			})
		},
	}
}

func newResultsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored sweep",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(rs *store.SQLiteResultStore) error {
				rec, err := rs.GetSweep(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if err := rs.DeleteSweep(cmd.Context(), rec.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted sweep %s (%s)\n", rec.ID, rec.Name())
				return nil
			})
		},
	}
}

func newResultsServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Browse stored sweeps in a local web page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			open, _ := cmd.Flags().GetBool("open")
			ctx := cmd.Context()

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			rs, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer rs.Close()

			srv, err := visualization.NewServer(rs, newLogger(cmd, cfg))
			if err != nil {
				return err
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe(ctx, addr) }()

			// Wait for server to start
			deadline := time.Now().Add(3 * time.Second)
			for srv.Addr() == "" && time.Now().Before(deadline) {
				select {
				case err := <-errCh:
					if err != nil {
						return fmt.Errorf("server error: %w", err)
					}
					return nil
				case <-time.After(10 * time.Millisecond):
				}
			}
			if srv.Addr() == "" {
				return fmt.Errorf("server failed to start")
			}

			url := "http://" + srv.Addr()
			fmt.Fprintf(cmd.OutOrStdout(), "Result browser running at %s\n", url)
			fmt.Fprintf(cmd.OutOrStdout(), "Press Ctrl-C to stop.\n")

			if open {
				if err := visualization.OpenBrowser(url); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Could not open browser: %v\nOpen %s manually.\n", err, url)
				}
			}

			// Block until server exits
			if err := <-errCh; err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().String("addr", "localhost:0", "Listen address")
	cmd.Flags().Bool("open", false, "Open the browser")
	return cmd
}
