package solvers

import (
	"sort"

	"go.uber.org/zap"

	"github.com/copyleftdev/descent/internal/optimization"
	"github.com/copyleftdev/descent/internal/optimization/lsearch"
)

// Default number of curvature pairs kept by L-BFGS.
const DefaultHistory = 6

type builder struct {
	settings   settings
	hasHistory bool
	// initial step rules offered for tuning, all of them if nil
	inits      []string
	newDescent func(cfg settings, n int) descent
}

func defaults(init lsearch.InitKind, strategy lsearch.Strategy, c1, c2 float64) settings {
	return settings{
		c1:       c1,
		c2:       c2,
		init:     init,
		strategy: strategy,
		lsIters:  lsearch.DefaultConfig(strategy).MaxIterations,
		history:  DefaultHistory,
	}
}

func conjugateBuilder(beta Beta, strategy lsearch.Strategy) builder {
	return builder{
		settings: defaults(lsearch.InitQuadratic, strategy, 1e-4, 0.1),
		newDescent: func(settings, int) descent {
			return &conjugate{beta: beta}
		},
	}
}

func acceleratedBuilder(restart Restart) builder {
	return builder{
		// sufficient decrease of the proximal gradient step
		settings: defaults(lsearch.InitQuadratic, lsearch.BacktrackArmijo, 0.5, 0.9),
		// backtracking never grows the consistent step, which then only
		// shrinks from one iteration to the next
		inits: []string{lsearch.InitUnit.String(), lsearch.InitQuadratic.String()},
		newDescent: func(_ settings, n int) descent {
			return newAccelerated(restart, n)
		},
	}
}

var builders = map[string]builder{
	"gd": {
		settings:   defaults(lsearch.InitQuadratic, lsearch.BacktrackWolfe, 1e-4, 0.9),
		newDescent: func(settings, int) descent { return steepest{} },
	},

	"cgd":      conjugateBuilder(BetaPRP, lsearch.Interpolation),
	"cgd-cd":   conjugateBuilder(BetaCD, lsearch.Interpolation),
	"cgd-dy":   conjugateBuilder(BetaDY, lsearch.BacktrackWolfe),
	"cgd-fr":   conjugateBuilder(BetaFR, lsearch.Interpolation),
	"cgd-hs":   conjugateBuilder(BetaHS, lsearch.Interpolation),
	"cgd-ls":   conjugateBuilder(BetaLS, lsearch.Interpolation),
	"cgd-n":    conjugateBuilder(BetaN, lsearch.Interpolation),
	"cgd-prp":  conjugateBuilder(BetaPRP, lsearch.Interpolation),
	"cgd-dycd": conjugateBuilder(BetaDYCD, lsearch.BacktrackWolfe),
	"cgd-dyhs": conjugateBuilder(BetaDYHS, lsearch.BacktrackWolfe),

	"bfgs": {
		settings:   defaults(lsearch.InitUnit, lsearch.Interpolation, 1e-4, 0.9),
		newDescent: func(_ settings, n int) descent { return newQuasiNewton(n) },
	},
	"lbfgs": {
		settings:   defaults(lsearch.InitUnit, lsearch.Interpolation, 1e-4, 0.9),
		hasHistory: true,
		newDescent: func(cfg settings, n int) descent { return newLimitedMemory(cfg.history, n) },
	},

	"nag":   acceleratedBuilder(NoRestart),
	"nagfr": acceleratedBuilder(FunctionRestart),
	"naggr": acceleratedBuilder(GradientRestart),
}

// Names returns the sorted identifiers of the available solvers.
func Names() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates the named solver with its default configuration overridden by
// params (which may be nil).
func New(name string, params optimization.Params, opts ...Option) (optimization.Solver, error) {
	b, ok := builders[name]
	if !ok {
		return nil, optimization.InvalidArgument("solver", name, "unknown solver, expected one of %v", Names())
	}

	s := &solver{
		name:       name,
		logger:     zap.NewNop(),
		settings:   b.settings,
		hasHistory: b.hasHistory,
		inits:      b.inits,
		newDescent: b.newDescent,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("solver." + name)

	if err := s.Configure(params); err != nil {
		return nil, err
	}
	return s, nil
}
