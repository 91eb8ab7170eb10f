package lsearch

import (
	"math"

	"github.com/copyleftdev/descent/internal/optimization"
)

const (
	mtMinGrowth = 1.1
	mtMaxGrowth = 4.0
	mtShrink    = 0.66
	mtXTol      = 1e-10
)

// mtInterval is the uncertainty interval of the More & Thuente search: x is
// the endpoint with the lowest function value, y the other one.
type mtInterval struct {
	x, fx, gx float64
	y, fy, gy float64

	bracketed    bool
	lower, upper float64
}

// morethuente is the line-search of "Line Search Algorithms with Guaranteed
// Sufficient Decrease", More & Thuente, 1994, following the dcsrch routine of
// MINPACK-2. C1 and C2 play the role of ftol and gtol.
func (ls *LineSearch) morethuente(fn optimization.Function, base *optimization.State, t0 float64) (Step, bool) {
	step := NewStep(fn, base)

	finit, ginit := step.Phi0(), step.GPhi0()
	gtest := ls.cfg.C1 * ginit

	iv := mtInterval{
		x: 0, fx: finit, gx: ginit,
		y: 0, fy: finit, gy: ginit,
		lower: 0,
		upper: t0 + mtMaxGrowth*t0,
	}
	width := StepMax - StepMin
	width1 := 2 * width
	stage1 := true

	stp := t0
	for i := 0; i < ls.cfg.MaxIterations; i++ {
		if !step.Update(stp) {
			return step, false
		}
		f, g := step.Phi(), step.GPhi()
		ftest := finit + stp*gtest

		if stage1 && f <= ftest && g >= 0 {
			stage1 = false
		}

		// no further progress is possible: accept only a strong Wolfe step
		if iv.bracketed && (stp <= iv.lower || stp >= iv.upper || iv.upper-iv.lower <= mtXTol*iv.upper) {
			return step, step.HasArmijo(ls.cfg.C1) && step.HasStrongWolfe(ls.cfg.C2)
		}
		if stp == StepMax && f <= ftest && g <= gtest {
			return step, step.HasStrongWolfe(ls.cfg.C2)
		}
		if stp == StepMin && (f > ftest || g >= gtest) {
			return step, false
		}

		if f <= ftest && math.Abs(g) <= ls.cfg.C2*(-ginit) {
			return step, true
		}

		if stage1 && f <= iv.fx && f > ftest {
			// use the modified function ψ(t) = φ(t) − φ(0) − c1·t·φ'(0)
			mod := iv
			mod.fx -= iv.x * gtest
			mod.fy -= iv.y * gtest
			mod.gx -= gtest
			mod.gy -= gtest

			stp = mod.step(stp, f-stp*gtest, g-gtest)

			iv.x, iv.y, iv.bracketed = mod.x, mod.y, mod.bracketed
			iv.fx = mod.fx + mod.x*gtest
			iv.fy = mod.fy + mod.y*gtest
			iv.gx = mod.gx + gtest
			iv.gy = mod.gy + gtest
		} else {
			stp = iv.step(stp, f, g)
		}

		// bisect if the interval does not shrink fast enough
		if iv.bracketed {
			if math.Abs(iv.y-iv.x) >= mtShrink*width1 {
				stp = iv.x + (iv.y-iv.x)/2
			}
			width1 = width
			width = math.Abs(iv.y - iv.x)
		}

		if iv.bracketed {
			iv.lower = math.Min(iv.x, iv.y)
			iv.upper = math.Max(iv.x, iv.y)
		} else {
			iv.lower = stp + mtMinGrowth*(stp-iv.x)
			iv.upper = stp + mtMaxGrowth*(stp-iv.x)
		}

		stp = math.Max(StepMin, math.Min(stp, StepMax))

		if iv.bracketed && (stp <= iv.lower || stp >= iv.upper || iv.upper-iv.lower <= mtXTol*iv.upper) {
			stp = iv.x
		}
	}

	return step, false
}

// step is the dcstep routine: it computes a safeguarded step from the cubic
// and quadratic models of the interval and the trial (stp, f, g), then moves
// the interval endpoints. The interval becomes bracketed once the minimum is
// known to lie inside it and stays so.
func (iv *mtInterval) step(stp, f, g float64) float64 {
	x, fx, gx := iv.x, iv.fx, iv.gx
	y, fy, gy := iv.y, iv.fy, iv.gy

	opposite := g*math.Copysign(1, gx) < 0

	var next float64
	switch {
	case f > fx:
		// higher function value, the minimum is bracketed by [x, stp]
		theta := 3*(fx-f)/(stp-x) + gx + g
		s := math.Max(math.Max(math.Abs(theta), math.Abs(gx)), math.Abs(g))
		gamma := s * math.Sqrt((theta/s)*(theta/s)-(gx/s)*(g/s))
		if stp < x {
			gamma = -gamma
		}
		p := gamma - gx + theta
		q := gamma - gx + gamma + g
		stpc := x + p/q*(stp-x)
		stpq := x + gx/((fx-f)/(stp-x)+gx)/2*(stp-x)

		if math.Abs(stpc-x) < math.Abs(stpq-x) {
			next = stpc
		} else {
			next = stpc + (stpq-stpc)/2
		}
		iv.bracketed = true

	case opposite:
		// lower function value and derivatives of opposite sign
		theta := 3*(fx-f)/(stp-x) + gx + g
		s := math.Max(math.Max(math.Abs(theta), math.Abs(gx)), math.Abs(g))
		gamma := s * math.Sqrt((theta/s)*(theta/s)-(gx/s)*(g/s))
		if stp > x {
			gamma = -gamma
		}
		p := gamma - g + theta
		q := gamma - g + gamma + gx
		stpc := stp + p/q*(x-stp)
		stpq := stp + g/(g-gx)*(x-stp)

		if math.Abs(stpc-stp) > math.Abs(stpq-stp) {
			next = stpc
		} else {
			next = stpq
		}
		iv.bracketed = true

	case math.Abs(g) < math.Abs(gx):
		// lower function value, same sign and decreasing derivative magnitude
		theta := 3*(fx-f)/(stp-x) + gx + g
		s := math.Max(math.Max(math.Abs(theta), math.Abs(gx)), math.Abs(g))
		gamma := s * math.Sqrt(math.Max(0, (theta/s)*(theta/s)-(gx/s)*(g/s)))
		if stp > x {
			gamma = -gamma
		}
		p := gamma - g + theta
		q := gamma + (gx - g) + gamma
		r := p / q

		var stpc float64
		switch {
		case r < 0 && gamma != 0:
			stpc = stp + r*(x-stp)
		case stp > x:
			stpc = iv.upper
		default:
			stpc = iv.lower
		}
		stpq := stp + g/(g-gx)*(x-stp)

		if iv.bracketed {
			if math.Abs(stpc-stp) < math.Abs(stpq-stp) {
				next = stpc
			} else {
				next = stpq
			}
			if stp > x {
				next = math.Min(stp+mtShrink*(y-stp), next)
			} else {
				next = math.Max(stp+mtShrink*(y-stp), next)
			}
		} else {
			if math.Abs(stpc-stp) > math.Abs(stpq-stp) {
				next = stpc
			} else {
				next = stpq
			}
			next = math.Max(iv.lower, math.Min(next, iv.upper))
		}

	default:
		// lower function value, same sign and non-decreasing derivative magnitude
		switch {
		case iv.bracketed:
			theta := 3*(f-fy)/(y-stp) + gy + g
			s := math.Max(math.Max(math.Abs(theta), math.Abs(gy)), math.Abs(g))
			gamma := s * math.Sqrt((theta/s)*(theta/s)-(gy/s)*(g/s))
			if stp > y {
				gamma = -gamma
			}
			p := gamma - g + theta
			q := gamma - g + gamma + gy
			next = stp + p/q*(y-stp)
		case stp > x:
			next = iv.upper
		default:
			next = iv.lower
		}
	}

	if f > fx {
		iv.y, iv.fy, iv.gy = stp, f, g
	} else {
		if opposite {
			iv.y, iv.fy, iv.gy = x, fx, gx
		}
		iv.x, iv.fx, iv.gx = stp, f, g
	}
	return next
}
