// Package lsearch implements the line-search step selection used by the
// descent solvers: the trial step evaluator, the initial step-length
// estimators and the step-acceptance strategies.
package lsearch

import (
	"fmt"

	"github.com/copyleftdev/descent/internal/optimization"
)

// Strategy identifies a line-search step-selection algorithm.
type Strategy int

const (
	// BacktrackArmijo shrinks the step until sufficient decrease holds.
	BacktrackArmijo Strategy = iota
	// BacktrackWolfe alternates shrinking and growing until the Wolfe
	// conditions hold.
	BacktrackWolfe
	// BacktrackStrongWolfe alternates shrinking and growing until the strong
	// Wolfe conditions hold.
	BacktrackStrongWolfe
	// CGDescent is the bracket and secant2 line-search of CG_DESCENT.
	CGDescent
	// Interpolation brackets and zooms with quadratic and cubic models.
	Interpolation
	// MoreThuente is the MINPACK-2 safeguarded line-search.
	MoreThuente
)

var strategyNames = []string{
	"backtrack-armijo",
	"backtrack-wolfe",
	"backtrack-strong-wolfe",
	"cg-descent",
	"interpolation",
	"more-thuente",
}

// String returns the configuration name of the strategy.
func (s Strategy) String() string {
	if s >= 0 && int(s) < len(strategyNames) {
		return strategyNames[s]
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// ParseStrategy maps a configuration name to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	for i, n := range strategyNames {
		if n == name {
			return Strategy(i), nil
		}
	}
	return 0, optimization.InvalidArgument("lsearch.strategy", name, "expected one of %v", strategyNames)
}

// StrategyNames returns the names of all strategies.
func StrategyNames() []string {
	return append([]string(nil), strategyNames...)
}

// Config holds the line-search parameters.
type Config struct {
	Strategy Strategy

	// Sufficient decrease constant, 0 < C1 < C2 < 1
	C1 float64
	// Curvature constant
	C2 float64

	// Maximum number of trial steps per line-search
	MaxIterations int

	// Backtracking shrink factor, 0 < Decrement < 1
	Decrement float64
	// Backtracking growth factor, Decrement·Increment > 1
	Increment float64
}

// DefaultConfig returns the default parameters of the given strategy.
func DefaultConfig(strategy Strategy) Config {
	return Config{
		Strategy:      strategy,
		C1:            1e-4,
		C2:            0.9,
		MaxIterations: 64,
		Decrement:     0.5,
		Increment:     2.1,
	}
}

// Validate checks that the parameters are in their admissible ranges.
func (c Config) Validate() error {
	switch {
	case c.Strategy < 0 || int(c.Strategy) >= len(strategyNames):
		return optimization.InvalidArgument("lsearch.strategy", int(c.Strategy), "unknown strategy")
	case !(c.C1 > 0 && c.C1 < 1):
		return optimization.InvalidArgument("c1", c.C1, "must be in (0, 1)")
	case !(c.C2 > 0 && c.C2 < 1):
		return optimization.InvalidArgument("c2", c.C2, "must be in (0, 1)")
	case c.C1 >= c.C2:
		return optimization.InvalidArgument("c1", c.C1, "must be smaller than c2 = %v", c.C2)
	case c.MaxIterations <= 0:
		return optimization.InvalidArgument("lsearch.max_iterations", c.MaxIterations, "must be positive")
	}

	switch c.Strategy {
	case CGDescent:
		// the approximate Wolfe bound (2·c1 − 1)·φ'(0) vanishes at c1 = ½
		if c.C1 >= 0.5 {
			return optimization.InvalidArgument("c1", c.C1, "must be smaller than 0.5 for cg-descent")
		}
	case BacktrackArmijo:
		if !(c.Decrement > 0 && c.Decrement < 1) {
			return optimization.InvalidArgument("lsearch.decrement", c.Decrement, "must be in (0, 1)")
		}
	case BacktrackWolfe, BacktrackStrongWolfe:
		if !(c.Decrement > 0 && c.Decrement < 1) {
			return optimization.InvalidArgument("lsearch.decrement", c.Decrement, "must be in (0, 1)")
		}
		if !(c.Decrement*c.Increment > 1) {
			return optimization.InvalidArgument("lsearch.increment", c.Increment,
				"decrement·increment must be greater than 1")
		}
	}
	return nil
}

// LineSearch finds a step length along the descent direction of a state. It
// owns the run-level memory of the CG_DESCENT strategy, so one LineSearch must
// not be shared between concurrent solver runs.
type LineSearch struct {
	cfg Config
	cgd cgdMemory
}

// New validates cfg and returns a line-search.
func New(cfg Config) (*LineSearch, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ls := &LineSearch{cfg: cfg}
	ls.Reset()
	return ls, nil
}

// Config returns the line-search parameters.
func (ls *LineSearch) Config() Config {
	return ls.cfg
}

// Reset clears the memory carried between line-searches of the same run.
func (ls *LineSearch) Reset() {
	ls.cgd = newCGDMemory()
}

// Get searches for a step along base.D starting from the trial step t0. On
// success it returns the accepted trial state with T set to the step length.
// On failure it returns false and base is left untouched. No function
// evaluation happens if base.D is not a descent direction or the parameters
// are not admissible.
func (ls *LineSearch) Get(fn optimization.Function, base *optimization.State, t0 float64) (*optimization.State, bool) {
	if !base.HasDescent() || ls.cfg.Validate() != nil {
		return nil, false
	}

	if !finite(t0) || t0 <= 0 {
		t0 = 1
	}
	switch {
	case t0 < StepMin:
		t0 = StepMin
	case t0 > StepMax:
		t0 = StepMax
	}

	var (
		step Step
		ok   bool
	)
	switch ls.cfg.Strategy {
	case BacktrackArmijo, BacktrackWolfe, BacktrackStrongWolfe:
		step, ok = ls.backtrack(fn, base, t0)
	case CGDescent:
		step, ok = ls.cgdescent(fn, base, t0)
	case Interpolation:
		step, ok = ls.interpolate(fn, base, t0)
	case MoreThuente:
		step, ok = ls.morethuente(fn, base, t0)
	}

	if !ok || !step.Valid() || !admissible(step.Alpha()) {
		return nil, false
	}
	return step.State(), true
}
