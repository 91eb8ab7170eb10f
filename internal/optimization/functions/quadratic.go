package functions

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/copyleftdev/descent/internal/optimization"
)

// Quadratic is the strictly convex quadratic f(x) = ½·xᵀAx − bᵀx with A
// symmetric positive definite.
type Quadratic struct {
	a *mat.SymDense
	b *mat.VecDense
}

// NewQuadratic creates the quadratic with the given Hessian and linear term.
// It returns an error if a is not positive definite or the sizes mismatch.
func NewQuadratic(a *mat.SymDense, b []float64) (*Quadratic, error) {
	n := a.SymmetricDim()
	if len(b) != n {
		return nil, optimization.InvalidArgument("b", len(b), "expected size %d", n)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(a); !ok {
		return nil, optimization.InvalidArgument("a", "matrix", "not positive definite")
	}

	q := &Quadratic{
		a: mat.NewSymDense(n, nil),
		b: mat.NewVecDense(n, append([]float64(nil), b...)),
	}
	q.a.CopySym(a)
	return q, nil
}

// RandomQuadratic creates a well-conditioned random SPD quadratic of size n:
// A = MᵀM/n + I with M and b uniform in [-1, 1].
func RandomQuadratic(n int, seed uint64) *Quadratic {
	u := distuv.Uniform{Min: -1, Max: 1, Src: rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)}

	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			m.Set(i, j, u.Rand())
		}
	}

	a := mat.NewSymDense(n, nil)
	a.SymOuterK(1/float64(n), m.T())
	for i := 0; i < n; i++ {
		a.SetSym(i, i, a.At(i, i)+1)
	}

	b := make([]float64, n)
	for i := range b {
		b[i] = u.Rand()
	}

	return &Quadratic{a: a, b: mat.NewVecDense(n, b)}
}

// Dims returns the dimension of the quadratic.
func (q *Quadratic) Dims() int {
	return q.a.SymmetricDim()
}

// Eval returns f(x) and stores Ax − b in grad.
func (q *Quadratic) Eval(x, grad []float64) float64 {
	n := q.Dims()
	ax := mat.NewVecDense(n, nil)
	ax.MulVec(q.a, mat.NewVecDense(n, x))

	if grad != nil {
		for i := range grad {
			grad[i] = ax.AtVec(i) - q.b.AtVec(i)
		}
	}
	return 0.5*floats.Dot(x, ax.RawVector().Data) - floats.Dot(x, q.b.RawVector().Data)
}

// Solution returns the minimizer A⁻¹b.
func (q *Quadratic) Solution() []float64 {
	var chol mat.Cholesky
	chol.Factorize(q.a)

	var x mat.VecDense
	if err := chol.SolveVecTo(&x, q.b); err != nil {
		return nil
	}
	return append([]float64(nil), x.RawVector().Data...)
}
