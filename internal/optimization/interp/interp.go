// Package interp provides the closed-form polynomial models used by the
// line-search strategies to estimate the minimizer of φ(t) inside a bracket.
//
// See "Numerical optimization", Nocedal & Wright, 2nd edition, p.58-59.
package interp

import (
	"math"
)

// Point is a sample of the line-search function: the step T, the value F and
// the directional derivative G.
type Point struct {
	T float64
	F float64
	G float64
}

// Quadratic models q(t) = F0 + G0·(t−T0) + A·(t−T0)², fitted from the value
// and derivative at p0 and the value at p1.
type Quadratic struct {
	t0, f0, g0 float64
	a          float64
}

// NewQuadratic fits the quadratic through (p0.T, p0.F) with slope p0.G and
// through (p1.T, p1.F). The derivative at p1 is ignored.
func NewQuadratic(p0, p1 Point) Quadratic {
	h := p1.T - p0.T
	return Quadratic{
		t0: p0.T,
		f0: p0.F,
		g0: p0.G,
		a:  (p1.F - p0.F - p0.G*h) / (h * h),
	}
}

// Valid reports whether the model is well defined (non-degenerate and finite).
func (q Quadratic) Valid() bool {
	return finite(q.a) && q.a != 0
}

// Eval returns the model value at t.
func (q Quadratic) Eval(t float64) float64 {
	u := t - q.t0
	return q.f0 + q.g0*u + q.a*u*u
}

// Extremum returns the stationary point of the model.
func (q Quadratic) Extremum() (float64, bool) {
	if !q.Valid() {
		return math.Inf(1), false
	}
	t := q.t0 - q.g0/(2*q.a)
	return t, finite(t)
}

// Minimizer returns the stationary point only if the model is convex.
func (q Quadratic) Minimizer() (float64, bool) {
	if !q.Valid() || q.a < 0 {
		return math.Inf(1), false
	}
	return q.Extremum()
}

// Cubic models c(u) = A·u³ + B·u² + G0·u + F0 with u = t−T0, fitted from the
// values and derivatives at two points.
type Cubic struct {
	t0, f0, g0 float64
	a, b       float64
}

// NewCubic fits the Hermite cubic through p0 and p1.
func NewCubic(p0, p1 Point) Cubic {
	h := p1.T - p0.T
	df := (p1.F - p0.F) / h
	return Cubic{
		t0: p0.T,
		f0: p0.F,
		g0: p0.G,
		a:  (p1.G + p0.G - 2*df) / (h * h),
		b:  (3*df - 2*p0.G - p1.G) / h,
	}
}

// Valid reports whether the model coefficients are finite.
func (c Cubic) Valid() bool {
	return finite(c.a) && finite(c.b)
}

// Eval returns the model value at t.
func (c Cubic) Eval(t float64) float64 {
	u := t - c.t0
	return ((c.a*u+c.b)*u+c.g0)*u + c.f0
}

// Extremum returns the local minimizer and the local maximizer of the model.
// When the cubic term vanishes the model degenerates to a quadratic, whose
// single extremum is returned twice.
func (c Cubic) Extremum() (min, max float64, ok bool) {
	inf := math.Inf(1)
	if !c.Valid() {
		return inf, inf, false
	}

	// c'(u) = 3A·u² + 2B·u + G0
	if math.Abs(c.a) <= epsilon*math.Abs(c.b) || c.a == 0 {
		if c.b == 0 {
			return inf, inf, false
		}
		t := c.t0 - c.g0/(2*c.b)
		return t, t, finite(t)
	}

	disc := c.b*c.b - 3*c.a*c.g0
	if disc < 0 {
		return inf, inf, false
	}
	sq := math.Sqrt(disc)

	// c''(u) = 2·sqrt(disc) > 0 at the minimizer
	umin := (-c.b + sq) / (3 * c.a)
	umax := (-c.b - sq) / (3 * c.a)
	min, max = c.t0+umin, c.t0+umax
	return min, max, finite(min) && finite(max)
}

// Minimizer returns the local minimizer of the model.
func (c Cubic) Minimizer() (float64, bool) {
	min, _, ok := c.Extremum()
	return min, ok
}

// Bisection returns the midpoint of [p0.T, p1.T].
func Bisection(p0, p1 Point) float64 {
	return (p0.T + p1.T) / 2
}

// Secant returns the root of the linear model of φ' through p0 and p1.
func Secant(p0, p1 Point) float64 {
	return (p0.T*p1.G - p1.T*p0.G) / (p1.G - p0.G)
}

const epsilon = 1e-12

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
