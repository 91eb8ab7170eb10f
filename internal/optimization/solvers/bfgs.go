package solvers

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/descent/internal/optimization"
)

// quasiNewton is the BFGS method with a dense approximation H of the inverse
// Hessian: d = -H·g. See "Numerical optimization", Nocedal & Wright, 2nd
// edition, p.140.
type quasiNewton struct {
	h       *mat.SymDense
	scaled  bool
	s, y    []float64
	hy, tmp *mat.VecDense
}

func newQuasiNewton(n int) *quasiNewton {
	q := &quasiNewton{
		h:   mat.NewSymDense(n, nil),
		s:   make([]float64, n),
		y:   make([]float64, n),
		hy:  mat.NewVecDense(n, nil),
		tmp: mat.NewVecDense(n, nil),
	}
	q.reset()
	return q
}

func (q *quasiNewton) reset() {
	n := q.h.SymmetricDim()
	q.h.Zero()
	for i := 0; i < n; i++ {
		q.h.SetSym(i, i, 1)
	}
	q.scaled = false
}

func (q *quasiNewton) direction(state *optimization.State) {
	q.tmp.MulVec(q.h, mat.NewVecDense(len(state.G), state.G))
	floats.ScaleTo(state.D, -1, q.tmp.RawVector().Data)

	if !state.HasDescent() {
		// H is no longer positive definite
		q.reset()
		floats.ScaleTo(state.D, -1, state.G)
	}
}

func (q *quasiNewton) accepted(_ optimization.Function, prev, state *optimization.State) {
	floats.SubTo(q.s, state.X, prev.X)
	floats.SubTo(q.y, state.G, prev.G)

	sy := floats.Dot(q.s, q.y)
	if !(sy > 0) {
		// the curvature condition does not hold, keep H positive definite
		return
	}

	if !q.scaled {
		// initial guess of the inverse Hessian scale
		q.h.ScaleSym(sy/floats.Dot(q.y, q.y), q.h)
		q.scaled = true
	}

	s := mat.NewVecDense(len(q.s), q.s)
	y := mat.NewVecDense(len(q.y), q.y)

	q.hy.MulVec(q.h, y)
	rho := 1 / sy
	yhy := mat.Dot(y, q.hy)

	// H = (I - ρ·s·yᵀ)·H·(I - ρ·y·sᵀ) + ρ·s·sᵀ
	q.h.RankTwo(q.h, -rho, s, q.hy)
	q.h.SymRankOne(q.h, rho*rho*yhy+rho, s)
}
