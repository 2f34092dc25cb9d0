package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/nvandessel/sisweep/internal/config"
	"github.com/nvandessel/sisweep/internal/logging"
	"github.com/nvandessel/sisweep/internal/metrics"
	"github.com/nvandessel/sisweep/internal/store"
	"github.com/nvandessel/sisweep/internal/sweep"
	"github.com/nvandessel/sisweep/internal/topology"
	"github.com/spf13/cobra"
)

// loadConfig loads the file named by --config (or ./sisweep.yaml), applies
// SISWEEP_* environment overrides and then the global flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Logging.Level = v
	}
	if v, _ := cmd.Flags().GetString("metrics-file"); v != "" {
		cfg.Metrics.File = v
	}
	if v, _ := cmd.Flags().GetString("output-dir"); v != "" {
		cfg.Output.Dir = v
	}
	return cfg, nil
}

// newLogger writes leveled logs to the command's stderr.
func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	return logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
}

// openStore opens the result database configured for cfg.
func openStore(cfg *config.Config) (*store.SQLiteResultStore, error) {
	rs, err := store.NewSQLiteResultStore(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open result store: %w", err)
	}
	return rs, nil
}

// writeMetrics dumps reg to the configured textfile, if any.
func writeMetrics(reg *metrics.Registry, cfg *config.Config) error {
	if cfg.Metrics.File == "" {
		return nil
	}
	if err := reg.WriteTextfile(cfg.Metrics.File); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// addModelFlags registers the flags shared by every command that builds a
// network and simulates on it.
func addModelFlags(cmd *cobra.Command) {
	cmd.Flags().String("kind", "", "Topology kind: barabasi_albert, erdos_renyi, watts_strogatz")
	cmd.Flags().StringSlice("param", nil, "Topology parameter as key=value, repeatable (e.g. --param n=500 --param p=0.3)")
	cmd.Flags().Uint64("topology-seed", 0, "Seed for the topology generator")
	cmd.Flags().Int("steps", 0, "Steps per realization")
	cmd.Flags().Int("transient", 0, "Leading steps discarded from each realization")
	cmd.Flags().Int("repeats", 0, "Realizations averaged per cell")
	cmd.Flags().Uint64("seed", 0, "Seed for the simulation")
	cmd.Flags().Int("workers", 0, "Parallel workers (0 = number of CPUs)")
	cmd.Flags().Float64("initial-fraction", 0, "Share of nodes infected at time zero")
}

// applyModelFlags copies the model flags the user set onto cfg.
func applyModelFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("kind") {
		v, _ := flags.GetString("kind")
		cfg.SetKind(v)
	}
	if flags.Changed("param") {
		pairs, _ := flags.GetStringSlice("param")
		params, err := parseParams(pairs)
		if err != nil {
			return err
		}
		if cfg.Topology.Params == nil {
			cfg.Topology.Params = make(map[string]float64, len(params))
		}
		for k, v := range params {
			cfg.Topology.Params[k] = v
		}
	}
	if flags.Changed("topology-seed") {
		cfg.Topology.Seed, _ = flags.GetUint64("topology-seed")
	}
	if flags.Changed("steps") {
		cfg.Sweep.Steps, _ = flags.GetInt("steps")
	}
	if flags.Changed("transient") {
		cfg.Sweep.Transient, _ = flags.GetInt("transient")
	}
	if flags.Changed("repeats") {
		cfg.Sweep.Repeats, _ = flags.GetInt("repeats")
	}
	if flags.Changed("seed") {
		cfg.Sweep.Seed, _ = flags.GetUint64("seed")
	}
	if flags.Changed("workers") {
		cfg.Sweep.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("initial-fraction") {
		cfg.Sweep.InitialFraction, _ = flags.GetFloat64("initial-fraction")
	}
	return nil
}

// parseParams parses key=value pairs into a topology argument bag.
func parseParams(pairs []string) (map[string]float64, error) {
	params := make(map[string]float64, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q: expected key=value", pair)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --param %q: %w", pair, err)
		}
		params[key] = f
	}
	return params, nil
}

// parseBetaGrid accepts either "start:stop:count" or a comma-separated list.
func parseBetaGrid(s string) (config.BetaGrid, error) {
	if parts := strings.Split(s, ":"); len(parts) == 3 {
		start, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		stop, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		count, err3 := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err1 != nil || err2 != nil || err3 != nil {
			return config.BetaGrid{}, fmt.Errorf("invalid beta grid %q: expected start:stop:count", s)
		}
		return config.BetaGrid{Start: start, Stop: stop, Count: count}, nil
	}
	values, err := config.ParseFloatList(s)
	if err != nil {
		return config.BetaGrid{}, fmt.Errorf("invalid beta list %q: %w", s, err)
	}
	return config.BetaGrid{Values: values}, nil
}

// buildTopology generates the network described by cfg.
func buildTopology(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*topology.Topology, error) {
	spec, err := cfg.TopologySpec()
	if err != nil {
		return nil, err
	}
	topo, err := topology.Generate(spec, cfg.Topology.Seed)
	if err != nil {
		return nil, fmt.Errorf("failed to generate topology: %w", err)
	}
	stats := topo.Stats()
	logger.InfoContext(ctx, "topology generated",
		"kind", string(topo.Kind()), "params", topo.Params().String(),
		"nodes", stats.Nodes, "edges", stats.Edges, "mean_degree", stats.MeanDegree)
	return topo, nil
}

// topologyInfo describes topo for storage.
func topologyInfo(topo *topology.Topology, seed uint64) store.TopologyInfo {
	return store.TopologyInfo{
		Kind:   string(topo.Kind()),
		Params: topo.Params(),
		Seed:   seed,
		Nodes:  topo.Len(),
		Edges:  topo.EdgeCount(),
	}
}

// progressLogger logs sweep progress at every tenth of the cells.
func progressLogger(ctx context.Context, logger *slog.Logger) sweep.ProgressFunc {
	last := 0
	return func(done, total int) {
		decile := done * 10 / total
		if decile == last {
			return
		}
		last = decile
		logger.InfoContext(ctx, "sweep progress", "done", done, "total", total,
			"percent", done*100/total)
	}
}
