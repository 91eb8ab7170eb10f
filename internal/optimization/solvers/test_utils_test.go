package solvers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/descent/internal/optimization"
	"github.com/copyleftdev/descent/internal/optimization/functions"
)

// testQuadratic returns a 4-dimensional SPD quadratic whose minimizer is
// (7, 33, 16, 236) / 61.
func testQuadratic(t *testing.T) *functions.Quadratic {
	t.Helper()

	a := mat.NewSymDense(4, []float64{
		4, 1, 0, 0,
		1, 3, 1, 0,
		0, 1, 2, 0.5,
		0, 0, 0.5, 1,
	})
	q, err := functions.NewQuadratic(a, []float64{1, 2, 3, 4})
	require.NoError(t, err)
	return q
}

// newSolver creates the named solver with its default configuration.
func newSolver(t *testing.T, name string, params optimization.Params) optimization.Solver {
	t.Helper()

	s, err := New(name, params)
	require.NoError(t, err)
	return s
}

// minimize runs the solver with a relative gradient threshold of 1e-6.
func minimize(t *testing.T, s optimization.Solver, fn optimization.Function, x0 []float64, maxIters int) *optimization.State {
	t.Helper()

	state, err := s.Minimize(context.Background(), optimization.Problem{
		Function:      fn,
		X0:            x0,
		MaxIterations: maxIters,
		Epsilon:       1e-6,
	})
	require.NoError(t, err)
	require.NotNil(t, state)
	return state
}

// trace records the function value after each iteration.
type trace struct {
	values []float64
}

func (tr *trace) observe(state *optimization.State) bool {
	tr.values = append(tr.values, state.F)
	return true
}
