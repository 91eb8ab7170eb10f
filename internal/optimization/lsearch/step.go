package lsearch

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/descent/internal/optimization"
	"github.com/copyleftdev/descent/internal/optimization/interp"
)

const (
	// machine epsilon for float64
	epsilon = 2.220446049250313e-16

	// StepMin is the smallest admissible line-search step.
	StepMin = 10 * epsilon
	// StepMax is the largest admissible line-search step.
	StepMax = 1 / StepMin
)

// Step is a line-search step using the notation from the CG_DESCENT papers:
// φ(t) = f(x0 + t·d) and φ'(t) = ∇f(x0 + t·d)·d.
//
// The base state is never modified. Every call to Update produces a fresh
// trial state, so copies of a Step remain valid after the original moves on.
type Step struct {
	fn    optimization.Function
	base  *optimization.State
	state *optimization.State
	alpha float64
	gphi0 float64
	gphi  float64
}

// NewStep creates the step t = 0 at base.
func NewStep(fn optimization.Function, base *optimization.State) Step {
	gphi0 := base.DirDeriv()
	return Step{
		fn:    fn,
		base:  base,
		state: base,
		gphi0: gphi0,
		gphi:  gphi0,
	}
}

// Update evaluates the function at x0 + t·d. It returns false if t or the
// resulting function value or directional derivative is not finite.
func (s *Step) Update(t float64) bool {
	if !finite(t) {
		return false
	}

	x := make([]float64, len(s.base.X))
	floats.AddScaledTo(x, s.base.X, t, s.base.D)

	trial := &optimization.State{
		X:          x,
		G:          make([]float64, len(x)),
		D:          append([]float64(nil), s.base.D...),
		Iterations: s.base.Iterations,
	}
	trial.Update(s.fn, x, t)

	s.state = trial
	s.alpha = t
	s.gphi = floats.Dot(trial.G, s.base.D)
	return s.Valid()
}

// Alpha returns the current step length.
func (s Step) Alpha() float64 {
	return s.alpha
}

// Phi returns φ(t).
func (s Step) Phi() float64 {
	return s.state.F
}

// Phi0 returns φ(0).
func (s Step) Phi0() float64 {
	return s.base.F
}

// GPhi returns φ'(t).
func (s Step) GPhi() float64 {
	return s.gphi
}

// GPhi0 returns φ'(0).
func (s Step) GPhi0() float64 {
	return s.gphi0
}

// ApproxPhi returns the approximate upper bound φ(0) + ε used by CG_DESCENT.
func (s Step) ApproxPhi(epsilon float64) float64 {
	return s.Phi0() + epsilon
}

// HasArmijo checks the sufficient decrease condition.
func (s Step) HasArmijo(c1 float64) bool {
	return optimization.Armijo(s.Phi(), s.Phi0(), s.Alpha(), c1, s.GPhi0())
}

// HasApproxArmijo checks φ(t) ≤ φ(0) + ε.
func (s Step) HasApproxArmijo(epsilon float64) bool {
	return optimization.ApproxArmijo(s.Phi(), s.Phi0(), epsilon)
}

// HasWolfe checks the curvature condition.
func (s Step) HasWolfe(c2 float64) bool {
	return optimization.Wolfe(s.GPhi(), s.GPhi0(), c2)
}

// HasStrongWolfe checks the strong curvature condition.
func (s Step) HasStrongWolfe(c2 float64) bool {
	return optimization.StrongWolfe(s.GPhi(), s.GPhi0(), c2)
}

// HasApproxWolfe checks the approximate Wolfe conditions.
func (s Step) HasApproxWolfe(c1, c2, epsilon float64) bool {
	return optimization.ApproxWolfe(s.Phi(), s.Phi0(), s.GPhi(), s.GPhi0(), c1, c2, epsilon)
}

// Valid reports whether the step, the function value and the directional
// derivative are finite.
func (s Step) Valid() bool {
	return finite(s.Alpha()) && finite(s.Phi()) && finite(s.GPhi())
}

// State returns the state at the current step.
func (s Step) State() *optimization.State {
	return s.state
}

// Point returns the (t, φ, φ') sample used by the interpolation models.
func (s Step) Point() interp.Point {
	return interp.Point{T: s.Alpha(), F: s.Phi(), G: s.GPhi()}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func admissible(t float64) bool {
	return t >= StepMin && t <= StepMax
}
