package tuning

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/optimize"

	"github.com/copyleftdev/descent/internal/optimization"
)

// Objective is the expensive cost to minimize.
type Objective func(ctx context.Context, x []float64) (float64, error)

// Bound is the closed search interval of one parameter.
type Bound struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Options configures a Bayesian optimization run.
type Options struct {
	Bounds []Bound

	// Latin hypercube samples evaluated before the surrogate is used
	InitialPoints int

	// Surrogate-guided evaluations after the initial samples (none if negative)
	Iterations int

	// Exploration margin of the expected improvement
	Xi float64

	// Observation noise of the surrogate, relative to the standardized cost
	Noise float64

	Seed   uint64
	Logger *zap.Logger
}

// Defaults used for zero-valued options.
const (
	DefaultInitialPoints = 6
	DefaultIterations    = 14
	DefaultXi            = 0.01
	DefaultNoise         = 1e-4
)

func (o Options) withDefaults() Options {
	if o.InitialPoints <= 0 {
		o.InitialPoints = DefaultInitialPoints
	}
	if o.Iterations < 0 {
		o.Iterations = 0
	} else if o.Iterations == 0 {
		o.Iterations = DefaultIterations
	}
	if !(o.Xi >= 0) {
		o.Xi = DefaultXi
	}
	if !(o.Noise > 0) {
		o.Noise = DefaultNoise
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

func (o Options) validate() error {
	if len(o.Bounds) == 0 {
		return optimization.InvalidArgument("bounds", o.Bounds, "at least one parameter is required")
	}
	for i, b := range o.Bounds {
		if !(b.Min < b.Max) || math.IsInf(b.Min, 0) || math.IsInf(b.Max, 0) {
			return optimization.InvalidArgument("bounds", b, "parameter %d needs finite min < max", i)
		}
	}
	return nil
}

// Evaluation is one evaluated point.
type Evaluation struct {
	X     []float64 `json:"x"`
	Value float64   `json:"value"`
}

// Result is the outcome of a Bayesian optimization run.
type Result struct {
	Best    Evaluation   `json:"best"`
	History []Evaluation `json:"history"`
}

// Minimize searches the box given by opts.Bounds for the minimum of the
// objective. The surrogate works in the unit cube and points are mapped to
// the bounds before evaluation. Cancelling ctx stops the search with the
// context error.
func Minimize(ctx context.Context, objective Objective, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	kernel, err := NewMatern52(0.25, 1)
	if err != nil {
		return nil, err
	}

	bo := &bayesOpt{
		opts:      opts,
		objective: objective,
		gp:        NewGP(kernel, opts.Noise, opts.Logger),
		rng:       rand.New(rand.NewPCG(opts.Seed, 0x5eed)),
		logger:    opts.Logger.Named("tuning"),
	}
	return bo.run(ctx)
}

type bayesOpt struct {
	opts      Options
	objective Objective
	gp        *GP
	rng       *rand.Rand
	logger    *zap.Logger

	// evaluated points in the unit cube
	unit   [][]float64
	values []float64
	best   int
}

func (bo *bayesOpt) run(ctx context.Context) (*Result, error) {
	for _, u := range bo.latinHypercube(bo.opts.InitialPoints) {
		if err := bo.evaluate(ctx, u); err != nil {
			return nil, err
		}
	}

	for i := 0; i < bo.opts.Iterations; i++ {
		if err := bo.gp.Fit(bo.unit, bo.values); err != nil {
			return nil, optimization.WrapError(err, "failed to fit the surrogate").WithOperation("tuning.Minimize")
		}
		if err := bo.evaluate(ctx, bo.nextPoint()); err != nil {
			return nil, err
		}
	}

	res := &Result{History: make([]Evaluation, len(bo.unit))}
	for i, u := range bo.unit {
		res.History[i] = Evaluation{X: bo.scale(u), Value: bo.values[i]}
	}
	res.Best = res.History[bo.best]
	return res, nil
}

func (bo *bayesOpt) evaluate(ctx context.Context, u []float64) error {
	if err := ctx.Err(); err != nil {
		return errors.WithStack(err)
	}

	x := bo.scale(u)
	value, err := bo.objective(ctx, x)
	if err != nil {
		return errors.Wrap(err, "evaluating objective")
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return errors.Errorf("objective returned %v at %v", value, x)
	}

	bo.unit = append(bo.unit, u)
	bo.values = append(bo.values, value)
	if value < bo.values[bo.best] {
		bo.best = len(bo.values) - 1
	}

	bo.logger.Debug("evaluated point",
		zap.Int("evaluation", len(bo.values)),
		zap.Float64s("x", x),
		zap.Float64("value", value),
		zap.Float64("best", bo.values[bo.best]))
	return nil
}

// scale maps a point of the unit cube to the bounds.
func (bo *bayesOpt) scale(u []float64) []float64 {
	x := make([]float64, len(u))
	for i, b := range bo.opts.Bounds {
		x[i] = b.Min + u[i]*(b.Max-b.Min)
	}
	return x
}

// latinHypercube draws n stratified points in the unit cube: along every
// axis each of the n strata holds exactly one point.
func (bo *bayesOpt) latinHypercube(n int) [][]float64 {
	dims := len(bo.opts.Bounds)
	points := make([][]float64, n)
	for j := range points {
		points[j] = make([]float64, dims)
	}

	strata := make([]float64, n)
	for i := 0; i < dims; i++ {
		for j := range strata {
			strata[j] = (float64(j) + bo.rng.Float64()) / float64(n)
		}
		bo.rng.Shuffle(n, func(a, b int) {
			strata[a], strata[b] = strata[b], strata[a]
		})
		for j := range points {
			points[j][i] = strata[j]
		}
	}
	return points
}

// nextPoint maximizes the expected improvement with multi-start
// Nelder-Mead, starting from the incumbent and random points.
func (bo *bayesOpt) nextPoint() []float64 {
	dims := len(bo.opts.Bounds)
	ei := ExpectedImprovement{Best: bo.values[bo.best], Xi: bo.opts.Xi}

	clamped := make([]float64, dims)
	problem := optimize.Problem{
		Func: func(u []float64) float64 {
			for i, v := range u {
				clamped[i] = math.Max(0, math.Min(1, v))
			}
			mu, variance, err := bo.gp.Predict(clamped)
			if err != nil {
				return math.Inf(1)
			}
			return -ei.Compute(mu, math.Sqrt(variance))
		},
	}
	settings := &optimize.Settings{
		MajorIterations: 200,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-9,
			Relative:   1e-9,
			Iterations: 50,
		},
	}

	starts := 5 + int(5*math.Sqrt(float64(dims)))
	best := make([]float64, dims)
	for i := range best {
		best[i] = bo.rng.Float64()
	}
	bestValue := problem.Func(best)

	for s := 0; s < starts; s++ {
		x0 := make([]float64, dims)
		if s == 0 {
			copy(x0, bo.unit[bo.best])
		} else {
			for i := range x0 {
				x0[i] = bo.rng.Float64()
			}
		}

		method := &optimize.NelderMead{SimplexSize: 0.1}
		result, err := optimize.Minimize(problem, x0, settings, method)
		if err != nil || result == nil {
			continue
		}
		if result.F < bestValue {
			bestValue = result.F
			copy(best, result.X)
		}
	}

	for i, v := range best {
		best[i] = math.Max(0, math.Min(1, v))
	}
	return best
}
