package tuning

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/copyleftdev/descent/internal/benchmark"
	"github.com/copyleftdev/descent/internal/optimization"
	"github.com/copyleftdev/descent/internal/optimization/solvers"
)

// Search box of the line-search constants: log10(c1) and c2. Every point of
// the box satisfies 0 < c1 < c2 < 1.
var LineSearchBounds = []Bound{
	{Min: -4, Max: -1},
	{Min: 0.15, Max: 0.9},
}

// LineSearchOptions configures TuneLineSearch.
type LineSearchOptions struct {
	// Base configuration of the solver, overridden by the tuned constants
	Params optimization.Params

	// Problems, budget and seed of every cost evaluation. Solvers is ignored.
	Benchmark benchmark.Options

	// Bayesian optimization settings. Bounds is ignored.
	Search Options
}

// LineSearchResult is the outcome of TuneLineSearch.
type LineSearchResult struct {
	Solver string `json:"solver"`

	// Best configuration found and its cost
	Params optimization.Params `json:"params"`
	Cost   float64             `json:"cost"`

	// Cost of the base configuration
	BaseCost float64 `json:"base_cost"`

	History []Evaluation `json:"history"`
}

// Cost is the tuning objective of a benchmark summary: the mean number of
// function evaluations, with every unconverged run charged the whole
// iteration budget.
func Cost(s benchmark.Summary, maxIterations int) float64 {
	if s.Runs == 0 {
		return math.Inf(1)
	}
	unconverged := float64(s.Runs-s.Converged) / float64(s.Runs)
	return s.FCalls + unconverged*float64(maxIterations)
}

// TuneLineSearch searches the sufficient decrease (c1) and curvature (c2)
// constants of the solver that minimize its benchmark cost. The base
// configuration is evaluated first and returned if nothing beats it.
func TuneLineSearch(ctx context.Context, solver string, opts LineSearchOptions) (*LineSearchResult, error) {
	bench := opts.Benchmark
	bench.Solvers = []string{solver}
	if bench.MaxIterations <= 0 {
		bench.MaxIterations = benchmark.DefaultMaxIterations
	}

	logger := opts.Search.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("solver", solver))

	cost := func(ctx context.Context, params optimization.Params) (float64, error) {
		b := bench
		b.Params = map[string]optimization.Params{solver: params}
		report, err := benchmark.Run(ctx, b)
		if err != nil {
			return 0, err
		}
		return Cost(report.Summaries[0], bench.MaxIterations), nil
	}

	baseCost, err := cost(ctx, opts.Params)
	if err != nil {
		return nil, err
	}

	search := opts.Search
	search.Bounds = LineSearchBounds
	search.Logger = logger
	res, err := Minimize(ctx, func(ctx context.Context, x []float64) (float64, error) {
		return cost(ctx, lineSearchParams(opts.Params, x))
	}, search)
	if err != nil {
		return nil, err
	}

	out := &LineSearchResult{
		Solver:   solver,
		Params:   opts.Params.Clone(),
		Cost:     baseCost,
		BaseCost: baseCost,
		History:  res.History,
	}
	if res.Best.Value < baseCost {
		out.Params = lineSearchParams(opts.Params, res.Best.X)
		out.Cost = res.Best.Value
	}

	logger.Info("tuned line-search constants",
		zap.Any("params", out.Params),
		zap.Float64("cost", out.Cost),
		zap.Float64("base_cost", baseCost),
		zap.Int("evaluations", len(res.History)+1))
	return out, nil
}

func lineSearchParams(base optimization.Params, x []float64) optimization.Params {
	return base.Merge(optimization.Params{
		solvers.KeyC1: math.Pow(10, x[0]),
		solvers.KeyC2: x[1],
	})
}
