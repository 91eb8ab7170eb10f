package solvers

import (
	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/descent/internal/optimization"
)

// steepest is gradient descent: d = -g.
type steepest struct{}

func (steepest) direction(state *optimization.State) {
	floats.ScaleTo(state.D, -1, state.G)
}

func (steepest) accepted(optimization.Function, *optimization.State, *optimization.State) {}
