package lsearch

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/descent/internal/optimization"
)

// InitKind identifies a strategy for proposing the first trial step of a
// line-search.
type InitKind int

const (
	// InitUnit always proposes 1 after the first iteration.
	InitUnit InitKind = iota
	// InitQuadratic extrapolates the decrease of the previous iteration with
	// a quadratic model.
	InitQuadratic
	// InitConsistent keeps t·φ'(0) consistent between iterations (CG_DESCENT).
	InitConsistent
)

var initNames = []string{"unit", "quadratic", "consistent"}

// String returns the configuration name of the initializer.
func (k InitKind) String() string {
	if k >= 0 && int(k) < len(initNames) {
		return initNames[k]
	}
	return fmt.Sprintf("init(%d)", int(k))
}

// ParseInit maps a configuration name to an InitKind.
func ParseInit(name string) (InitKind, error) {
	for i, n := range initNames {
		if n == name {
			return InitKind(i), nil
		}
	}
	return 0, optimization.InvalidArgument("lsearch.init", name, "expected one of %v", initNames)
}

// InitNames returns the names of all initializers.
func InitNames() []string {
	return append([]string(nil), initNames...)
}

const (
	// scale of the first step relative to ‖x‖∞/‖g‖∞ (psi0 in CG_DESCENT)
	initScale = 0.01
	// safeguard of the quadratic extrapolation (1.01 · 2)
	initQuadraticFactor = 2.02
)

// Initializer proposes the initial step length of each line-search. It keeps
// the history of the previous iteration, so a new one is needed for every
// solver run.
type Initializer struct {
	kind   InitKind
	calls  int
	prevF  float64
	prevDG float64
}

// NewInitializer creates an initializer of the given kind.
func NewInitializer(kind InitKind) *Initializer {
	return &Initializer{kind: kind}
}

// Kind returns the initializer kind.
func (in *Initializer) Kind() InitKind {
	return in.kind
}

// Get returns the initial step length for a line-search starting at state,
// whose descent direction must already be set. state.T must hold the step
// accepted by the previous line-search.
func (in *Initializer) Get(state *optimization.State) float64 {
	dg := state.DirDeriv()

	var t float64
	switch {
	case in.calls == 0:
		t = scaledStep(state)

	case in.kind == InitQuadratic:
		t = math.Min(1, initQuadraticFactor*(state.F-in.prevF)/dg)

	case in.kind == InitConsistent:
		t = state.T * in.prevDG / dg

	default:
		t = 1
	}

	if !finite(t) || t <= 0 {
		t = 1
	}

	in.calls++
	in.prevF = state.F
	in.prevDG = dg
	return t
}

// scaledStep guesses a first step from the magnitude of x, f and g, to avoid
// a badly scaled first trial when the function is far from unit scale.
func scaledStep(state *optimization.State) float64 {
	xnorm := floats.Norm(state.X, math.Inf(1))
	gnorm := floats.Norm(state.G, math.Inf(1))

	switch {
	case xnorm > 0 && gnorm > 0:
		return initScale * xnorm / gnorm
	case state.F != 0 && gnorm > 0:
		g2 := floats.Dot(state.G, state.G)
		return initScale * math.Abs(state.F) / g2
	default:
		return 1
	}
}
