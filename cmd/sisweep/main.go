package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signalContext(context.Background())
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sisweep",
		Short: "SIS epidemic parameter sweeps on random networks",
		Long: `sisweep simulates the discrete-time SIS epidemic model on generated
networks and sweeps the infection and recovery probabilities to map the
stationary infected fraction.

Results are stored in a local SQLite database and plotted as SVG.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default ./sisweep.yaml if present)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: warn, info, debug, trace")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("metrics-file", "", "Write Prometheus metrics to this file after the command")
	rootCmd.PersistentFlags().StringP("output-dir", "o", "", "Directory for the database, plots and diagnostics")

	rootCmd.AddCommand(
		newVersionCmd(),
		newConfigCmd(),
		newSweepCmd(),
		newRunCmd(),
		newGraphCmd(),
		newResultsCmd(),
	)

	return rootCmd
}

// signalContext returns a context cancelled on the first interrupt.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	notifySignals(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
