package optimization

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Status is the terminal status of an optimization run.
type Status int

const (
	// Running is the status of a run that has not finished yet.
	Running Status = iota
	// Converged means the convergence criterion dropped below epsilon.
	Converged
	// MaxIterations means the iteration budget was exhausted.
	MaxIterations
	// Failed means the line-search failed or the iterate diverged.
	Failed
	// Stopped means the caller requested the run to stop.
	Stopped
)

var statusNames = map[Status]string{
	Running:       "running",
	Converged:     "converged",
	MaxIterations: "max_iters",
	Failed:        "failed",
	Stopped:       "stopped",
}

// String returns the name of the status.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	for status, name := range statusNames {
		if name == string(text) {
			*s = status
			return nil
		}
	}
	return NewErrorf("unknown status %q", text)
}

// Terminal reports whether s is one of the final statuses.
func (s Status) Terminal() bool {
	return s != Running
}

// State is the optimization state: the current point (X), the function value
// (F), the gradient (G), the descent direction (D) and the line-search step
// (T) used to reach X.
type State struct {
	X []float64
	G []float64
	D []float64
	F float64
	T float64

	Status Status

	FCalls     int
	GCalls     int
	Iterations int
}

// NewState evaluates fn at x0 and returns the initial state.
func NewState(fn Function, x0 []float64) *State {
	n := len(x0)
	s := &State{
		X: make([]float64, n),
		G: make([]float64, n),
		D: make([]float64, n),
		T: 1,
	}
	s.Update(fn, x0, 1)
	return s
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	c := *s
	c.X = append([]float64(nil), s.X...)
	c.G = append([]float64(nil), s.G...)
	c.D = append([]float64(nil), s.D...)
	return &c
}

// Update moves the state to x with step t and recomputes the function value
// and gradient.
func (s *State) Update(fn Function, x []float64, t float64) {
	copy(s.X, x)
	s.F = fn.Eval(s.X, s.G)
	s.T = t
}

// Advance moves the state t along the descent direction using a function
// value and gradient that were already computed at the new point.
func (s *State) Advance(t, f float64, g []float64) {
	floats.AddScaled(s.X, t, s.D)
	copy(s.G, g)
	s.F = f
	s.T = t
}

// DirDeriv returns the directional derivative g·d.
func (s *State) DirDeriv() float64 {
	return floats.Dot(s.G, s.D)
}

// ConvergenceCriterion returns the relative gradient magnitude
// ‖g‖∞ / max(1, |f|).
func (s *State) ConvergenceCriterion() float64 {
	return floats.Norm(s.G, math.Inf(1)) / math.Max(1, math.Abs(s.F))
}

// Converged reports whether the convergence criterion is below epsilon.
func (s *State) Converged(epsilon float64) bool {
	return s.ConvergenceCriterion() < epsilon
}

// HasDescent reports whether d is a descent direction.
func (s *State) HasDescent() bool {
	return s.DirDeriv() < 0
}

// IsFinite reports whether the step, the function value and the convergence
// criterion are all finite.
func (s *State) IsFinite() bool {
	return isFinite(s.T) && isFinite(s.F) && isFinite(s.ConvergenceCriterion())
}

// HasArmijo checks the sufficient decrease condition relative to base.
func (s *State) HasArmijo(base *State, c1 float64) bool {
	return Armijo(s.F, base.F, s.T, c1, base.DirDeriv())
}

// HasWolfe checks the curvature condition relative to base.
func (s *State) HasWolfe(base *State, c2 float64) bool {
	return Wolfe(s.DirDeriv(), base.DirDeriv(), c2)
}

// HasStrongWolfe checks the strong curvature condition relative to base.
func (s *State) HasStrongWolfe(base *State, c2 float64) bool {
	return StrongWolfe(s.DirDeriv(), base.DirDeriv(), c2)
}

// HasApproxWolfe checks the approximate Wolfe conditions relative to base.
func (s *State) HasApproxWolfe(base *State, c1, c2, epsilon float64) bool {
	return ApproxWolfe(s.F, base.F, s.DirDeriv(), base.DirDeriv(), c1, c2, epsilon)
}

// Less orders states by function value, with non-finite values last.
func (s *State) Less(other *State) bool {
	return finiteOrMax(s.F) < finiteOrMax(other.F)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finiteOrMax(v float64) float64 {
	if isFinite(v) {
		return v
	}
	return math.MaxFloat64
}
