package optimization

import (
	"context"
)

// Solver defines the interface for unconstrained descent solvers.
type Solver interface {
	// Minimize runs the solver from problem.X0 until convergence, budget
	// exhaustion, line-search failure or a stop request. Numerical outcomes
	// are reported through the returned state's Status; the error is
	// non-nil only when the problem itself is malformed.
	Minimize(ctx context.Context, problem Problem) (*State, error)

	// Name returns the registered solver identifier.
	Name() string

	// Config returns the current configuration.
	Config() Params

	// Configure validates and applies the given parameters. Unknown keys
	// are rejected and nothing is applied on error.
	Configure(params Params) error

	// Tunables describes the hyper-parameter space of the solver.
	Tunables() []Tunable
}

// Observer is called once per completed iteration. Returning false requests
// the solver to stop.
type Observer func(state *State) bool

// Problem contains the minimization problem and its budget.
type Problem struct {
	// Function to minimize
	Function Function

	// Starting point
	X0 []float64

	// Maximum number of iterations
	MaxIterations int

	// Convergence threshold on the relative gradient
	Epsilon float64

	// Optional per-iteration callback
	Observer Observer
}

// Validate checks the problem preconditions.
func (p Problem) Validate() error {
	const op = "Problem.Validate"

	switch {
	case p.Function == nil:
		return NewError("function must not be nil").WithOperation(op)
	case len(p.X0) != p.Function.Dims():
		return NewErrorf("starting point has size %d, function has dimension %d",
			len(p.X0), p.Function.Dims()).WithOperation(op)
	case p.MaxIterations <= 0:
		return NewErrorf("max iterations must be positive, got %d", p.MaxIterations).WithOperation(op)
	case !(p.Epsilon > 0):
		return NewErrorf("epsilon must be positive, got %v", p.Epsilon).WithOperation(op)
	}
	return nil
}

// Observe calls the observer, if any.
func (p Problem) Observe(state *State) bool {
	if p.Observer == nil {
		return true
	}
	return p.Observer(state)
}
