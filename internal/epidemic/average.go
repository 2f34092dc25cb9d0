package epidemic

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"runtime"

	"github.com/nvandessel/sisweep/internal/logging"
	"github.com/nvandessel/sisweep/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// blockSize is the number of consecutive repeats summed by one task before
// the partial sums are merged. Fixing it (rather than deriving it from the
// worker count) keeps the floating-point reduction order, and therefore the
// result, identical for any number of workers.
const blockSize = 8

// AverageParams holds the inputs of a Monte Carlo average.
type AverageParams struct {
	Params

	// Repeats is the number of independent realizations (>= 0).
	Repeats int

	// Transient is the number of leading steps discarded from each
	// realization, 0 <= Transient < Steps.
	Transient int
}

// Validate checks the averaging parameters, including the embedded realization parameters.
func (p AverageParams) Validate() error {
	if err := p.Params.Validate(); err != nil {
		return err
	}
	if p.Repeats < 0 {
		return invalid("repeats must be non-negative, got %d", p.Repeats)
	}
	if p.Transient < 0 || p.Transient >= p.Steps {
		return invalid("transient must be in [0, steps), got %d with steps=%d", p.Transient, p.Steps)
	}
	return nil
}

// Average is the element-wise mean of the post-transient part of every
// realization.
type Average struct {
	// Trajectory has length Steps - Transient.
	Trajectory []float64

	// Diagnostics lists degenerate conditions detected while averaging.
	Diagnostics []Diagnostic
}

// Mean returns the arithmetic mean of the trajectory, the stationary
// prevalence estimate.
func (a *Average) Mean() float64 {
	if len(a.Trajectory) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range a.Trajectory {
		sum += v
	}
	return sum / float64(len(a.Trajectory))
}

// Averager repeats an Engine run and averages the trajectories.
type Averager struct {
	engine      *Engine
	workers     int
	logger      *slog.Logger
	diagnostics *logging.DiagnosticLogger
	metrics     *metrics.Registry
}

// AveragerOption configures an Averager.
type AveragerOption func(*Averager)

// WithWorkers sets how many realizations run concurrently. Values <= 0 use
// GOMAXPROCS.
func WithWorkers(n int) AveragerOption {
	return func(a *Averager) {
		a.workers = n
	}
}

// WithLogger sets the logger used for degenerate-result warnings.
func WithLogger(l *slog.Logger) AveragerOption {
	return func(a *Averager) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithDiagnostics appends every degenerate result to dl.
func WithDiagnostics(dl *logging.DiagnosticLogger) AveragerOption {
	return func(a *Averager) {
		a.diagnostics = dl
	}
}

// WithMetrics records realization and degenerate-result counts in r.
func WithMetrics(r *metrics.Registry) AveragerOption {
	return func(a *Averager) {
		a.metrics = r
	}
}

// NewAverager creates an Averager over engine.
func NewAverager(engine *Engine, opts ...AveragerOption) *Averager {
	a := &Averager{
		engine: engine,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.workers <= 0 {
		a.workers = runtime.GOMAXPROCS(0)
	}
	return a
}

// Average runs p.Repeats independent realizations and returns the
// element-wise mean of their post-transient trajectories.
//
// Repeat r draws from its own stream, PCG(seed, r), so the output depends
// only on p and seed, never on scheduling. Degenerate outcomes are reported
// on the result and logged; they are not errors.
func (a *Averager) Average(ctx context.Context, p AverageParams, seed uint64) (*Average, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	length := p.Steps - p.Transient
	blocks := (p.Repeats + blockSize - 1) / blockSize
	partials := make([][]float64, blocks)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for b := 0; b < blocks; b++ {
		g.Go(func() error {
			partial := make([]float64, length)
			first := b * blockSize
			last := min(first+blockSize, p.Repeats)
			for r := first; r < last; r++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				trajectory, err := a.engine.Run(p.Params, RepeatRand(seed, r))
				if err != nil {
					return err
				}
				for i, v := range trajectory[p.Transient:] {
					partial[i] += v
				}
				a.metrics.RecordRealization(p.Steps)
				a.logger.Log(gctx, logging.LevelTrace, "realization finished",
					"beta", p.Beta, "mu", p.Mu, "repeat", r, "final", trajectory[len(trajectory)-1])
			}
			partials[b] = partial
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sum := make([]float64, length)
	for _, partial := range partials {
		for i, v := range partial {
			sum[i] += v
		}
	}

	divisor := float64(max(1, p.Repeats))
	allZero := true
	for i := range sum {
		sum[i] /= divisor
		if sum[i] != 0 {
			allZero = false
		}
	}

	result := &Average{Trajectory: sum}
	switch {
	case p.Repeats == 0:
		result.Diagnostics = append(result.Diagnostics, Diagnostic{Kind: DiagnosticZeroRepeats, Beta: p.Beta, Mu: p.Mu})
	case allZero:
		result.Diagnostics = append(result.Diagnostics, Diagnostic{Kind: DiagnosticNoInfections, Beta: p.Beta, Mu: p.Mu})
	}
	for _, d := range result.Diagnostics {
		a.report(ctx, d, p)
	}

	return result, nil
}

func (a *Averager) report(ctx context.Context, d Diagnostic, p AverageParams) {
	a.logger.WarnContext(ctx, d.Error(), "kind", string(d.Kind), "repeats", p.Repeats, "transient", p.Transient)
	a.metrics.RecordDegenerate(string(d.Kind))
	a.diagnostics.Record(logging.Event{
		Kind:            string(d.Kind),
		Beta:            d.Beta,
		Mu:              d.Mu,
		Repeats:         p.Repeats,
		Steps:           p.Steps,
		Transient:       p.Transient,
		InitialFraction: p.InitialFraction,
	})
}

// RepeatRand returns the random stream for repeat r of an average seeded with seed.
func RepeatRand(seed uint64, r int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(r)))
}
