// Package sweep drives the Monte Carlo averager across a grid of infection
// and recovery probabilities and reduces each averaged trajectory to a
// single stationary prevalence value.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/nvandessel/sisweep/internal/epidemic"
	"github.com/nvandessel/sisweep/internal/logging"
	"github.com/nvandessel/sisweep/internal/metrics"
	"github.com/nvandessel/sisweep/internal/topology"
	"golang.org/x/sync/errgroup"
)

// Config holds the immutable parameters of one sweep.
type Config struct {
	// Betas is the infection probability grid, non-decreasing, each in [0, 1].
	Betas []float64 `json:"betas" yaml:"betas"`

	// Mus are the recovery probabilities, each in [0, 1], without duplicates.
	// The result table keeps this order.
	Mus []float64 `json:"mus" yaml:"mus"`

	InitialFraction float64 `json:"initial_fraction" yaml:"initial_fraction"`
	Steps           int     `json:"steps" yaml:"steps"`
	Transient       int     `json:"transient" yaml:"transient"`
	Repeats         int     `json:"repeats" yaml:"repeats"`

	// Seed fixes every random draw of the sweep.
	Seed uint64 `json:"seed" yaml:"seed"`
}

// Validate checks the sweep configuration.
func (c Config) Validate() error {
	if len(c.Betas) == 0 {
		return fmt.Errorf("%w: beta grid is empty", epidemic.ErrInvalidParameter)
	}
	if len(c.Mus) == 0 {
		return fmt.Errorf("%w: mu set is empty", epidemic.ErrInvalidParameter)
	}
	for i, b := range c.Betas {
		if !(b >= 0 && b <= 1) {
			return fmt.Errorf("%w: beta[%d] = %v is outside [0, 1]", epidemic.ErrInvalidParameter, i, b)
		}
		if i > 0 && b < c.Betas[i-1] {
			return fmt.Errorf("%w: beta grid must be non-decreasing, beta[%d] = %v < %v",
				epidemic.ErrInvalidParameter, i, b, c.Betas[i-1])
		}
	}
	seen := make(map[float64]bool, len(c.Mus))
	for i, m := range c.Mus {
		if !(m >= 0 && m <= 1) {
			return fmt.Errorf("%w: mu[%d] = %v is outside [0, 1]", epidemic.ErrInvalidParameter, i, m)
		}
		if seen[m] {
			return fmt.Errorf("%w: duplicate mu %v", epidemic.ErrInvalidParameter, m)
		}
		seen[m] = true
	}
	return c.averageParams(c.Betas[0], c.Mus[0]).Validate()
}

func (c Config) averageParams(beta, mu float64) epidemic.AverageParams {
	return epidemic.AverageParams{
		Params: epidemic.Params{
			Beta:            beta,
			Mu:              mu,
			InitialFraction: c.InitialFraction,
			Steps:           c.Steps,
		},
		Repeats:   c.Repeats,
		Transient: c.Transient,
	}
}

// ProgressFunc is called after each finished cell. Calls are serialized.
type ProgressFunc func(done, total int)

// Orchestrator runs sweeps over one topology. The topology is only read.
type Orchestrator struct {
	engine      *epidemic.Engine
	workers     int
	logger      *slog.Logger
	diagnostics *logging.DiagnosticLogger
	metrics     *metrics.Registry
	progress    ProgressFunc
	keep        bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithWorkers sets the number of concurrent workers; <= 0 means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) { o.workers = n }
}

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithDiagnostics records degenerate results to dl.
func WithDiagnostics(dl *logging.DiagnosticLogger) Option {
	return func(o *Orchestrator) { o.diagnostics = dl }
}

// WithMetrics instruments the sweep.
func WithMetrics(r *metrics.Registry) Option {
	return func(o *Orchestrator) { o.metrics = r }
}

// WithProgress reports progress after each cell.
func WithProgress(fn ProgressFunc) Option {
	return func(o *Orchestrator) { o.progress = fn }
}

// WithKeepTrajectories retains each cell's averaged trajectory on Table.Cells.
func WithKeepTrajectories(keep bool) Option {
	return func(o *Orchestrator) { o.keep = keep }
}

// New creates an Orchestrator for topo.
func New(topo *topology.Topology, opts ...Option) (*Orchestrator, error) {
	engine, err := epidemic.NewEngine(topo)
	if err != nil {
		return nil, err
	}
	o := &Orchestrator{
		engine: engine,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.workers <= 0 {
		o.workers = runtime.GOMAXPROCS(0)
	}
	return o, nil
}

// cellResult is what one worker hands back for a cell.
type cellResult struct {
	value       float64
	trajectory  []float64
	diagnostics []epidemic.Diagnostic
}

// Run executes the sweep. Every (beta, mu) cell is averaged and reduced to
// the mean of its trajectory. The first failing cell cancels the rest and
// its error is returned; degenerate results are collected, not fatal.
func (o *Orchestrator) Run(ctx context.Context, cfg Config) (*Table, error) {
	start := time.Now()
	table, err := o.run(ctx, cfg)
	status := metrics.StatusOK
	if err != nil {
		status = metrics.StatusError
	}
	o.metrics.RecordSweep(status, time.Since(start))
	return table, err
}

func (o *Orchestrator) run(ctx context.Context, cfg Config) (*Table, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	total := len(cfg.Mus) * len(cfg.Betas)

	// Parallelize across cells when there are several, across repeats otherwise.
	cellWorkers, repeatWorkers := o.workers, 1
	if total == 1 {
		cellWorkers, repeatWorkers = 1, o.workers
	}
	averager := epidemic.NewAverager(o.engine,
		epidemic.WithWorkers(repeatWorkers),
		epidemic.WithLogger(o.logger),
		epidemic.WithDiagnostics(o.diagnostics),
		epidemic.WithMetrics(o.metrics),
	)

	o.logger.InfoContext(ctx, "sweep started",
		"nodes", o.engine.Topology().Len(),
		"betas", len(cfg.Betas), "mus", len(cfg.Mus), "cells", total,
		"repeats", cfg.Repeats, "steps", cfg.Steps, "transient", cfg.Transient,
		"workers", o.workers)

	results := make([]cellResult, total)
	var (
		progressMu sync.Mutex
		done       int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cellWorkers)
	for mi, mu := range cfg.Mus {
		for bi, beta := range cfg.Betas {
			idx := mi*len(cfg.Betas) + bi
			g.Go(func() error {
				res, err := o.runCell(gctx, averager, cfg, mi, bi, beta, mu)
				if err != nil {
					return err
				}
				results[idx] = res

				progressMu.Lock()
				done++
				if o.progress != nil {
					o.progress(done, total)
				}
				progressMu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	table := &Table{
		Betas:  slices.Clone(cfg.Betas),
		Series: make([]Series, len(cfg.Mus)),
	}
	for mi, mu := range cfg.Mus {
		values := make([]float64, len(cfg.Betas))
		for bi := range cfg.Betas {
			res := results[mi*len(cfg.Betas)+bi]
			values[bi] = res.value
			table.Diagnostics = append(table.Diagnostics, res.diagnostics...)
			if o.keep {
				table.Cells = append(table.Cells, Cell{
					MuIndex:    mi,
					BetaIndex:  bi,
					Beta:       cfg.Betas[bi],
					Mu:         mu,
					Trajectory: res.trajectory,
				})
			}
		}
		table.Series[mi] = Series{Mu: mu, Values: values}
	}

	o.logger.InfoContext(ctx, "sweep finished", "cells", total, "degenerate", len(table.Diagnostics))
	return table, nil
}

func (o *Orchestrator) runCell(ctx context.Context, averager *epidemic.Averager, cfg Config, mi, bi int, beta, mu float64) (cellResult, error) {
	start := time.Now()
	avg, err := averager.Average(ctx, cfg.averageParams(beta, mu), CellSeed(cfg.Seed, mi, bi))
	if err != nil {
		o.metrics.RecordCell(metrics.StatusError, time.Since(start), 0)
		return cellResult{}, fmt.Errorf("cell beta=%v mu=%v: %w", beta, mu, err)
	}

	value := avg.Mean()
	elapsed := time.Since(start)
	o.metrics.RecordCell(metrics.StatusOK, elapsed, value)
	o.logger.DebugContext(ctx, "cell finished",
		"beta", beta, "mu", mu, "prevalence", value, "duration", elapsed)

	res := cellResult{value: value, diagnostics: avg.Diagnostics}
	if o.keep {
		res.trajectory = avg.Trajectory
	}
	return res, nil
}
