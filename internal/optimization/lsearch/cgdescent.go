package lsearch

import (
	"math"

	"github.com/copyleftdev/descent/internal/optimization"
	"github.com/copyleftdev/descent/internal/optimization/interp"
)

// CG_DESCENT constants, see
// "A new conjugate gradient method with guaranteed descent and an efficient
// line search", Hager & Zhang, 2005.
const (
	cgdEpsilon0 = 1e-6
	cgdTheta    = 0.5
	cgdGamma    = 0.66
	cgdDelta    = 0.7
	cgdOmega    = 1e-3
	cgdRho      = 5.0

	cgdMaxUpdates = 100
)

// cgdMemory is the state carried between the line-searches of one solver
// run: the running average of |f| and whether to use the approximate Wolfe
// conditions from now on.
type cgdMemory struct {
	sumQ    float64
	sumC    float64
	epsilon float64
	approx  bool
}

func newCGDMemory() cgdMemory {
	return cgdMemory{}
}

// update estimates an upper bound of the function value growth tolerated by
// the approximate Wolfe conditions.
func (m *cgdMemory) update(f0 float64) {
	m.sumQ = 1 + m.sumQ*cgdDelta
	m.sumC += (math.Abs(f0) - m.sumC) / m.sumQ
	m.epsilon = cgdEpsilon0 * m.sumC
}

func (ls *LineSearch) cgdescent(fn optimization.Function, base *optimization.State, t0 float64) (Step, bool) {
	ls.cgd.update(base.F)

	step0 := NewStep(fn, base)
	c := step0
	if !c.Update(t0) {
		return c, false
	}
	if ls.cgdConverged(c) {
		return c, true
	}

	a, b, ok := ls.cgdBracket(step0, c)
	if !ok || math.Abs(a.Alpha()-b.Alpha()) < StepMin {
		// restart from the original interval [0, t0]
		a, b = step0, c
	}

	for i := 0; i < ls.cfg.MaxIterations; i++ {
		width := math.Abs(b.Alpha() - a.Alpha())
		if width < StepMin {
			break
		}

		if a, b, ok = ls.cgdSecant2(step0, a, b); !ok {
			break
		}
		if ls.cgdConverged(a) {
			return a, true
		}
		if ls.cgdConverged(b) {
			return b, true
		}

		if math.Abs(b.Alpha()-a.Alpha()) > cgdGamma*width {
			c = step0
			if !c.Update((a.Alpha() + b.Alpha()) / 2) {
				break
			}
			if ls.cgdConverged(c) {
				return c, true
			}
			if a, b, ok = ls.cgdUpdate(step0, a, b, c); !ok {
				break
			}
		}
	}

	return c, false
}

// cgdConverged checks the Wolfe conditions or their approximate version and
// decides whether to switch permanently to the approximate conditions.
func (ls *LineSearch) cgdConverged(s Step) bool {
	if s.Alpha() <= 0 {
		return false
	}

	m := &ls.cgd
	c1, c2 := ls.cfg.C1, ls.cfg.C2

	var done bool
	if m.approx {
		done = s.HasApproxWolfe(c1, c2, m.epsilon)
	} else {
		done = s.HasArmijo(c1) && s.HasWolfe(c2)
		if done {
			m.approx = math.Abs(s.Phi()-s.Phi0()) <= cgdOmega*m.sumC
		}
	}
	return done
}

func (ls *LineSearch) cgdApproxArmijo(s Step) bool {
	return s.HasApproxArmijo(ls.cgd.epsilon)
}

// cgdBracket expands the initial step until the derivative becomes
// non-negative or the function value grows too much. The returned interval
// [a, b] satisfies φ'(a) < 0 and φ'(b) ≥ 0.
func (ls *LineSearch) cgdBracket(step0, c Step) (Step, Step, bool) {
	prev := step0
	for i := 0; i < cgdMaxUpdates && c.Valid(); i++ {
		switch {
		case !descending(c):
			return prev, c, true

		case !ls.cgdApproxArmijo(c):
			return ls.cgdUpdateU(step0, step0, c)
		}

		prev = c
		t := cgdRho * c.Alpha()
		if t > StepMax || !c.Update(t) {
			break
		}
	}
	return c, c, false
}

// cgdUpdate shrinks [a, b] using the trial point c.
func (ls *LineSearch) cgdUpdate(step0, a, b, c Step) (Step, Step, bool) {
	lo, hi := math.Min(a.Alpha(), b.Alpha()), math.Max(a.Alpha(), b.Alpha())

	switch {
	case !c.Valid() || c.Alpha() <= lo || c.Alpha() >= hi:
		return a, b, true
	case !descending(c):
		return a, c, true
	case ls.cgdApproxArmijo(c):
		return c, b, true
	default:
		return ls.cgdUpdateU(step0, a, c)
	}
}

// cgdUpdateU bisects [a, b] (with weight θ) until the derivative becomes
// non-negative at a point with a tolerable function value.
func (ls *LineSearch) cgdUpdateU(step0, a, b Step) (Step, Step, bool) {
	c := step0
	for i := 0; i < cgdMaxUpdates && math.Abs(b.Alpha()-a.Alpha()) > StepMin; i++ {
		if !c.Update((1-cgdTheta)*a.Alpha() + cgdTheta*b.Alpha()) {
			return a, b, false
		}

		switch {
		case !descending(c):
			return a, c, true
		case ls.cgdApproxArmijo(c):
			a = c
		default:
			b = c
		}
	}
	return c, c, false
}

// cgdSecant evaluates the root of the secant model of φ' through a and b.
func (ls *LineSearch) cgdSecant(step0, a, b Step) Step {
	c := step0
	c.Update(interp.Secant(a.Point(), b.Point()))
	return c
}

// cgdSecant2 is a double secant step that shrinks [a, b] from both sides.
func (ls *LineSearch) cgdSecant2(step0, a, b Step) (Step, Step, bool) {
	c := ls.cgdSecant(step0, a, b)

	A, B, ok := ls.cgdUpdate(step0, a, b, c)
	if !ok {
		return A, B, false
	}

	switch {
	case c.Valid() && math.Abs(c.Alpha()-A.Alpha()) < StepMin:
		return ls.cgdUpdate(step0, A, B, ls.cgdSecant(step0, a, A))
	case c.Valid() && math.Abs(c.Alpha()-B.Alpha()) < StepMin:
		return ls.cgdUpdate(step0, A, B, ls.cgdSecant(step0, b, B))
	default:
		return A, B, true
	}
}

func descending(s Step) bool {
	return s.GPhi() < 0
}
