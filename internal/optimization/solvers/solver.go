// Package solvers implements the descent solvers for unconstrained smooth
// minimization: gradient descent, nonlinear conjugate gradient, BFGS,
// L-BFGS and Nesterov's accelerated gradient. All of them share the same
// outer loop and delegate the choice of the step length to a line-search.
package solvers

import (
	"context"

	"go.uber.org/zap"

	"github.com/copyleftdev/descent/internal/optimization"
	"github.com/copyleftdev/descent/internal/optimization/lsearch"
)

// Configuration keys accepted by the solvers.
const (
	KeyC1                   = "c1"
	KeyC2                   = "c2"
	KeyLineSearchInit       = "lsearch.init"
	KeyLineSearchStrategy   = "lsearch.strategy"
	KeyLineSearchIterations = "lsearch.max_iterations"
	KeyHistory              = "history"
)

// descent computes the search directions of one run and owns the history
// (previous gradients, directions or curvature pairs) that they depend on.
type descent interface {
	// direction stores the search direction at state in state.D.
	direction(state *optimization.State)

	// accepted is called after the state moved from prev with an accepted
	// line-search step. It may move the state again (e.g. to extrapolate).
	accepted(fn optimization.Function, prev, state *optimization.State)
}

// settings is the typed form of a solver configuration.
type settings struct {
	c1       float64
	c2       float64
	init     lsearch.InitKind
	strategy lsearch.Strategy
	lsIters  int
	history  int
}

func (s settings) lineSearch() lsearch.Config {
	cfg := lsearch.DefaultConfig(s.strategy)
	cfg.C1 = s.c1
	cfg.C2 = s.c2
	cfg.MaxIterations = s.lsIters
	return cfg
}

// Option configures a solver at construction.
type Option func(*solver)

// WithLogger sets the logger used to trace the iterations.
func WithLogger(logger *zap.Logger) Option {
	return func(s *solver) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// solver implements optimization.Solver on top of a descent method. The
// solver itself keeps no per-run state, so Minimize can be called
// concurrently once the configuration is fixed.
type solver struct {
	name       string
	logger     *zap.Logger
	settings   settings
	hasHistory bool
	inits      []string

	newDescent func(cfg settings, n int) descent
}

var _ optimization.Solver = (*solver)(nil)

// Name returns the solver identifier.
func (s *solver) Name() string {
	return s.name
}

// Config returns the current configuration.
func (s *solver) Config() optimization.Params {
	params := optimization.Params{
		KeyC1:                   s.settings.c1,
		KeyC2:                   s.settings.c2,
		KeyLineSearchInit:       s.settings.init.String(),
		KeyLineSearchStrategy:   s.settings.strategy.String(),
		KeyLineSearchIterations: s.settings.lsIters,
	}
	if s.hasHistory {
		params[KeyHistory] = s.settings.history
	}
	return params
}

// Configure validates and applies params. Nothing is applied on error.
func (s *solver) Configure(params optimization.Params) error {
	next := s.settings

	for _, key := range params.Keys() {
		var err error
		switch key {
		case KeyC1:
			next.c1, err = params.Float(key, next.c1)
		case KeyC2:
			next.c2, err = params.Float(key, next.c2)
		case KeyLineSearchIterations:
			next.lsIters, err = params.Int(key, next.lsIters)
		case KeyLineSearchInit:
			var name string
			if name, err = params.String(key, ""); err == nil {
				next.init, err = lsearch.ParseInit(name)
			}
		case KeyLineSearchStrategy:
			var name string
			if name, err = params.String(key, ""); err == nil {
				next.strategy, err = lsearch.ParseStrategy(name)
			}
		case KeyHistory:
			if !s.hasHistory {
				err = optimization.InvalidArgument(key, params[key], "not supported by %s", s.name)
				break
			}
			next.history, err = params.Int(key, next.history)
			if err == nil && next.history <= 0 {
				err = optimization.InvalidArgument(key, next.history, "must be positive")
			}
		default:
			err = optimization.InvalidArgument(key, params[key], "unknown parameter for %s", s.name)
		}
		if err != nil {
			return err
		}
	}

	if err := next.lineSearch().Validate(); err != nil {
		return err
	}

	s.settings = next
	return nil
}

// Tunables returns the hyper-parameter space of the solver.
func (s *solver) Tunables() []optimization.Tunable {
	inits := s.inits
	if inits == nil {
		inits = lsearch.InitNames()
	}
	tunables := []optimization.Tunable{
		optimization.LogSpace(KeyC1, 1e-4, 1e-1, 4),
		optimization.FiniteSpace(KeyC2, 0.1, 0.5, 0.9),
		optimization.FiniteSpace(KeyLineSearchInit, stringsToValues(inits)...),
		optimization.FiniteSpace(KeyLineSearchStrategy, stringsToValues(lsearch.StrategyNames())...),
	}
	if s.hasHistory {
		tunables = append(tunables, optimization.FiniteSpace(KeyHistory, 4, 6, 8, 16))
	}
	return tunables
}

func stringsToValues(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// Minimize runs the solver on problem. The returned error is non-nil only if
// the problem is malformed: every numerical outcome is reported through the
// status of the returned state.
func (s *solver) Minimize(ctx context.Context, problem optimization.Problem) (*optimization.State, error) {
	if err := problem.Validate(); err != nil {
		return nil, optimization.WrapError(err, "invalid problem").
			WithOperation("Minimize").
			WithComponent(s.name)
	}

	ls, err := lsearch.New(s.settings.lineSearch())
	if err != nil {
		return nil, optimization.WrapError(err, "invalid line-search").
			WithOperation("Minimize").
			WithComponent(s.name)
	}

	fn := optimization.NewCounter(problem.Function)
	init := lsearch.NewInitializer(s.settings.init)
	desc := s.newDescent(s.settings, fn.Dims())

	state := optimization.NewState(fn, problem.X0)
	s.loop(ctx, problem, fn, ls, init, desc, state)
	return state, nil
}

func (s *solver) loop(
	ctx context.Context,
	problem optimization.Problem,
	fn *optimization.Counter,
	ls *lsearch.LineSearch,
	init *lsearch.Initializer,
	desc descent,
	state *optimization.State,
) {
	sync := func() {
		state.FCalls = fn.FCalls()
		state.GCalls = fn.GCalls()
	}
	sync()

	finish := func(status optimization.Status) {
		state.Status = status
		s.logger.Debug("minimization finished",
			zap.Stringer("status", status),
			zap.Int("iterations", state.Iterations),
			zap.Int("fcalls", state.FCalls),
			zap.Int("gcalls", state.GCalls),
			zap.Float64("f", state.F),
			zap.Float64("criterion", state.ConvergenceCriterion()))
	}

	switch {
	case !state.IsFinite():
		finish(optimization.Failed)
		return
	case state.Converged(problem.Epsilon):
		finish(optimization.Converged)
		return
	}

	for i := 0; i < problem.MaxIterations; i++ {
		desc.direction(state)
		if !state.HasDescent() {
			s.logger.Debug("not a descent direction",
				zap.Int("iteration", i),
				zap.Float64("dg", state.DirDeriv()))
			finish(optimization.Failed)
			return
		}

		t0 := init.Get(state)
		accepted, ok := ls.Get(fn, state, t0)
		if !ok {
			sync()
			s.logger.Debug("line-search failed",
				zap.Int("iteration", i),
				zap.Float64("t0", t0),
				zap.Float64("f", state.F))
			finish(optimization.Failed)
			return
		}

		prev := state.Clone()
		state.Advance(accepted.T, accepted.F, accepted.G)
		desc.accepted(fn, prev, state)

		state.Iterations++
		sync()

		s.logger.Debug("iteration",
			zap.Int("iteration", state.Iterations),
			zap.Float64("t", state.T),
			zap.Float64("f", state.F),
			zap.Float64("criterion", state.ConvergenceCriterion()))

		switch {
		case !state.IsFinite():
			finish(optimization.Failed)
			return
		case state.Converged(problem.Epsilon):
			finish(optimization.Converged)
			return
		case !problem.Observe(state) || ctx.Err() != nil:
			finish(optimization.Stopped)
			return
		}
	}

	finish(optimization.MaxIterations)
}
