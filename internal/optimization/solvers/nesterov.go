package solvers

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/descent/internal/optimization"
)

// Restart selects the adaptive restart scheme of the accelerated gradient.
// See "Adaptive Restart for Accelerated Gradient Schemes", O'Donoghue &
// Candes, 2013.
type Restart int

const (
	// NoRestart never resets the momentum.
	NoRestart Restart = iota
	// FunctionRestart resets the momentum when the function value increases.
	FunctionRestart
	// GradientRestart resets the momentum when the gradient at the
	// extrapolated point makes an acute angle with the last displacement.
	GradientRestart
)

// accelerated is Nesterov's accelerated gradient. The line-search moves from
// the extrapolated point y_k along -g(y_k) to x_{k+1}, then the state is
// moved to y_{k+1} = x_{k+1} + β·(x_{k+1} - x_k).
type accelerated struct {
	restart Restart
	q       float64
	theta   float64

	fprev   float64
	xprev   []float64
	xcurr   []float64
	started bool

	// evaluation of the extrapolated point, committed only if finite
	trial *optimization.State
}

func newAccelerated(restart Restart, n int) *accelerated {
	return &accelerated{
		restart: restart,
		theta:   1,
		xprev:   make([]float64, n),
		xcurr:   make([]float64, n),
		trial: &optimization.State{
			X: make([]float64, n),
			G: make([]float64, n),
			D: make([]float64, n),
		},
	}
}

// momentum returns the next θ, the positive root of
// θ² = (1 - θ)·θ_prev² + q·θ, and the extrapolation factor β.
func momentum(theta, q float64) (next, beta float64) {
	b := theta*theta - q
	next = (-b + math.Sqrt(b*b+4*theta*theta)) / 2
	beta = theta * (1 - theta) / (theta*theta + next)
	return next, beta
}

func (a *accelerated) direction(state *optimization.State) {
	if !a.started {
		copy(a.xprev, state.X)
		a.fprev = state.F
		a.started = true
	}
	floats.ScaleTo(state.D, -1, state.G)
}

func (a *accelerated) accepted(fn optimization.Function, prev, state *optimization.State) {
	// state is at x_{k+1}, prev at y_k
	copy(a.xcurr, state.X)
	fcurr := state.F

	restart := false
	switch a.restart {
	case FunctionRestart:
		restart = fcurr > a.fprev
	case GradientRestart:
		dx := make([]float64, len(a.xcurr))
		floats.SubTo(dx, a.xcurr, a.xprev)
		restart = floats.Dot(prev.G, dx) > 0
	}

	var beta float64
	if restart {
		a.theta = 1
	} else {
		a.theta, beta = momentum(a.theta, a.q)
	}

	if beta != 0 {
		y := make([]float64, len(a.xcurr))
		floats.SubTo(y, a.xcurr, a.xprev)
		floats.AddScaledTo(y, a.xcurr, beta, y)

		a.trial.Update(fn, y, state.T)
		if a.trial.IsFinite() {
			copy(state.X, a.trial.X)
			copy(state.G, a.trial.G)
			state.F = a.trial.F
		} else {
			// stay at x_{k+1} and drop the momentum
			a.theta = 1
		}
	}

	copy(a.xprev, a.xcurr)
	a.fprev = fcurr
}
