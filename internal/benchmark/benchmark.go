// Package benchmark runs the descent solvers over the registered test
// problems from random starting points and aggregates their statistics.
package benchmark

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/copyleftdev/descent/internal/optimization"
	"github.com/copyleftdev/descent/internal/optimization/functions"
	"github.com/copyleftdev/descent/internal/optimization/solvers"
)

// Options configures a benchmark sweep. Zero values select the defaults.
type Options struct {
	// Solvers to compare (all registered solvers if empty)
	Solvers []string

	// Test problems (all registered functions if empty)
	Functions []string

	// Candidate dimensions of the problems without a fixed size
	Dims []int

	// Random starting points per (function, dimension)
	Trials int

	// Per-run budget and convergence threshold
	MaxIterations int
	Epsilon       float64

	// Seed of the starting points. Every solver starts from the same points.
	Seed uint64

	// Number of concurrent runs
	Workers int

	// Per-solver configuration overrides
	Params map[string]optimization.Params

	Logger *zap.Logger
}

// Defaults used for zero-valued options.
const (
	DefaultTrials        = 10
	DefaultMaxIterations = 1000
	DefaultEpsilon       = 1e-6
	DefaultWorkers       = 4
)

// DefaultDims are the sizes of the variable-dimension problems.
var DefaultDims = []int{4, 16}

func (o Options) withDefaults() Options {
	if len(o.Solvers) == 0 {
		o.Solvers = solvers.Names()
	}
	if len(o.Functions) == 0 {
		o.Functions = functions.Names()
	}
	if len(o.Dims) == 0 {
		o.Dims = DefaultDims
	}
	if o.Trials <= 0 {
		o.Trials = DefaultTrials
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if !(o.Epsilon > 0) {
		o.Epsilon = DefaultEpsilon
	}
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Result is the outcome of one solver run.
type Result struct {
	Solver     string              `json:"solver"`
	Function   string              `json:"function"`
	Dims       int                 `json:"dims"`
	Trial      int                 `json:"trial"`
	Status     optimization.Status `json:"status"`
	Iterations int                 `json:"iterations"`
	FCalls     int                 `json:"fcalls"`
	GCalls     int                 `json:"gcalls"`
	F          float64             `json:"f"`
	Criterion  float64             `json:"criterion"`
}

// Summary aggregates the runs of one solver.
type Summary struct {
	Solver        string  `json:"solver"`
	Runs          int     `json:"runs"`
	Converged     int     `json:"converged"`
	MaxIterations int     `json:"max_iters"`
	Failed        int     `json:"failed"`
	Stopped       int     `json:"stopped"`
	Iterations    float64 `json:"mean_iterations"`
	FCalls        float64 `json:"mean_fcalls"`
	GCalls        float64 `json:"mean_gcalls"`
	Criterion     float64 `json:"mean_criterion"`
}

// Report contains every run and the per-solver summaries, in the order of
// Options.Solvers.
type Report struct {
	Results   []Result  `json:"results"`
	Summaries []Summary `json:"summaries"`
}

// problem is one (function, dimension, trial) instance shared by all solvers.
type problem struct {
	function string
	fn       optimization.Function
	trial    int
	x0       []float64
}

// Run benchmarks the solvers. It returns an error if a solver or function
// name is unknown or a solver configuration is invalid. Runs interrupted by
// ctx are reported with the stopped status.
func Run(ctx context.Context, opts Options) (*Report, error) {
	opts = opts.withDefaults()

	instances := make([]optimization.Solver, len(opts.Solvers))
	for i, name := range opts.Solvers {
		s, err := solvers.New(name, opts.Params[name], solvers.WithLogger(opts.Logger))
		if err != nil {
			return nil, optimization.WrapError(err, "invalid solver").WithOperation("benchmark.Run")
		}
		instances[i] = s
	}

	problems, err := opts.problems()
	if err != nil {
		return nil, err
	}

	opts.Logger.Info("starting benchmark",
		zap.Strings("solvers", opts.Solvers),
		zap.Int("problems", len(problems)),
		zap.Int("workers", opts.Workers))

	results := make([]Result, len(instances)*len(problems))

	p := pool.New().WithMaxGoroutines(opts.Workers)
	for i, s := range instances {
		for j, prob := range problems {
			i, j, s, prob := i, j, s, prob
			p.Go(func() {
				results[i*len(problems)+j] = opts.run(ctx, s, prob)
			})
		}
	}
	p.Wait()

	report := &Report{Results: results}
	for i, name := range opts.Solvers {
		report.Summaries = append(report.Summaries, Summarize(name, results[i*len(problems):(i+1)*len(problems)]))
	}
	return report, nil
}

// problems builds the test problem instances with their starting points.
func (o Options) problems() ([]problem, error) {
	var problems []problem
	for _, name := range o.Functions {
		spec, ok := functions.Registry[name]
		if !ok {
			return nil, optimization.InvalidArgument("function", name, "unknown function, expected one of %v", functions.Names())
		}

		for _, n := range spec.Sizes(o.Dims...) {
			fn, err := functions.New(name, n)
			if err != nil {
				return nil, err
			}
			for trial := 0; trial < o.Trials; trial++ {
				problems = append(problems, problem{
					function: name,
					fn:       fn,
					trial:    trial,
					x0:       StartingPoint(n, o.Seed, uint64(len(problems))),
				})
			}
		}
	}
	return problems, nil
}

func (o Options) run(ctx context.Context, s optimization.Solver, prob problem) Result {
	res := Result{
		Solver:   s.Name(),
		Function: prob.function,
		Dims:     len(prob.x0),
		Trial:    prob.trial,
	}

	state, err := s.Minimize(ctx, optimization.Problem{
		Function:      prob.fn,
		X0:            prob.x0,
		MaxIterations: o.MaxIterations,
		Epsilon:       o.Epsilon,
	})
	if err != nil {
		// problems are validated when built
		o.Logger.Error("benchmark run rejected", zap.String("solver", s.Name()), zap.Error(err))
		res.Status = optimization.Failed
		return res
	}

	res.Status = state.Status
	res.Iterations = state.Iterations
	res.FCalls = state.FCalls
	res.GCalls = state.GCalls
	res.F = state.F
	res.Criterion = state.ConvergenceCriterion()
	return res
}

// StartingPoint draws a point uniformly in [-1, 1]^n. The same (seed, stream)
// always gives the same point.
func StartingPoint(n int, seed, stream uint64) []float64 {
	u := distuv.Uniform{Min: -1, Max: 1, Src: rand.NewPCG(seed, stream)}
	x := make([]float64, n)
	for i := range x {
		x[i] = u.Rand()
	}
	return x
}

// Summarize aggregates the results of one solver. Non-finite criteria are
// left out of the mean criterion.
func Summarize(solver string, results []Result) Summary {
	s := Summary{Solver: solver, Runs: len(results)}
	if len(results) == 0 {
		return s
	}

	var finite int
	for _, r := range results {
		switch r.Status {
		case optimization.Converged:
			s.Converged++
		case optimization.MaxIterations:
			s.MaxIterations++
		case optimization.Failed:
			s.Failed++
		case optimization.Stopped:
			s.Stopped++
		}
		s.Iterations += float64(r.Iterations)
		s.FCalls += float64(r.FCalls)
		s.GCalls += float64(r.GCalls)
		if !math.IsNaN(r.Criterion) && !math.IsInf(r.Criterion, 0) {
			s.Criterion += r.Criterion
			finite++
		}
	}

	n := float64(len(results))
	s.Iterations /= n
	s.FCalls /= n
	s.GCalls /= n
	if finite > 0 {
		s.Criterion /= float64(finite)
	}
	return s
}

// Rank orders the summaries by convergence count, then by mean function
// calls.
func Rank(summaries []Summary) []Summary {
	ranked := append([]Summary(nil), summaries...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Converged != ranked[j].Converged {
			return ranked[i].Converged > ranked[j].Converged
		}
		return ranked[i].FCalls < ranked[j].FCalls
	})
	return ranked
}
