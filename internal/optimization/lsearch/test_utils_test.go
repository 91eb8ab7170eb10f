package lsearch

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/descent/internal/optimization"
	"github.com/copyleftdev/descent/internal/optimization/functions"
)

// steepestState evaluates fn at x0 and sets the steepest descent direction.
func steepestState(fn optimization.Function, x0 []float64) *optimization.State {
	state := optimization.NewState(fn, x0)
	floats.ScaleTo(state.D, -1, state.G)
	return state
}

// newFunction builds a registered test problem.
func newFunction(t *testing.T, name string, dims int) optimization.Function {
	t.Helper()

	fn, err := functions.New(name, dims)
	require.NoError(t, err)
	return fn
}

// assertUnchanged fails if the state differs from its snapshot.
func assertUnchanged(t *testing.T, snapshot, state *optimization.State) {
	t.Helper()

	require.Equal(t, snapshot.X, state.X)
	require.Equal(t, snapshot.G, state.G)
	require.Equal(t, snapshot.D, state.D)
	require.Equal(t, snapshot.F, state.F)
	require.Equal(t, snapshot.T, state.T)
}

// nanFunction returns NaN wherever x[0] > limit.
type nanFunction struct {
	optimization.Function
	limit float64
}

func (f nanFunction) Eval(x, grad []float64) float64 {
	v := f.Function.Eval(x, grad)
	if x[0] > f.limit {
		return math.NaN()
	}
	return v
}
