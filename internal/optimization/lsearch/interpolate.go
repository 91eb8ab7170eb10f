package lsearch

import (
	"math"

	"github.com/copyleftdev/descent/internal/optimization"
	"github.com/copyleftdev/descent/internal/optimization/interp"
)

const (
	// growth factor of the trial step before the minimum is bracketed
	interpGrowth = 3.0
	// trial steps closer than width/20 to the bracket ends are rejected
	interpMargin = 20.0

	interpMaxZoom = 100
)

// interpolate brackets a step satisfying the strong Wolfe conditions and
// then zooms in. See "Numerical optimization", Nocedal & Wright, 2nd
// edition, p.60.
func (ls *LineSearch) interpolate(fn optimization.Function, base *optimization.State, t0 float64) (Step, bool) {
	step0 := NewStep(fn, base)
	prev, curr := step0, step0

	t := t0
	for i := 1; i < ls.cfg.MaxIterations && t < StepMax; i++ {
		if !curr.Update(t) {
			return step0, false
		}

		if !curr.HasArmijo(ls.cfg.C1) || (i > 1 && curr.Phi() >= prev.Phi()) {
			return ls.zoom(step0, prev, curr)
		}
		if curr.HasStrongWolfe(ls.cfg.C2) {
			return curr, true
		}
		if curr.GPhi() >= 0 {
			return ls.zoom(step0, curr, prev)
		}

		prev = curr
		t *= interpGrowth
	}

	return step0, false
}

// zoom shrinks the bracket [lo, hi] (in any order) keeping lo as the step
// with the lowest function value that satisfies sufficient decrease.
func (ls *LineSearch) zoom(step0, lo, hi Step) (Step, bool) {
	trial := step0

	for i := 0; i < interpMaxZoom && math.Abs(lo.Alpha()-hi.Alpha()) > StepMin; i++ {
		t := zoomStep(lo, hi)

		if !trial.Update(t) {
			return step0, false
		}

		if !trial.HasArmijo(ls.cfg.C1) || trial.Phi() >= lo.Phi() {
			hi = trial
			continue
		}

		if trial.HasStrongWolfe(ls.cfg.C2) {
			return trial, true
		}
		if trial.GPhi()*(hi.Alpha()-lo.Alpha()) >= 0 {
			hi = lo
		}
		lo = trial
	}

	return step0, false
}

// zoomStep chooses among the bisection, quadratic and cubic estimates the one
// closest to lo that lies safely inside the bracket, falling back to
// bisection.
func zoomStep(lo, hi Step) float64 {
	p0, p1 := lo.Point(), hi.Point()

	tb := interp.Bisection(p0, p1)
	candidates := []float64{tb}
	if tq, ok := interp.NewQuadratic(p0, p1).Extremum(); ok {
		candidates = append(candidates, tq)
	}
	if tmin, tmax, ok := interp.NewCubic(p0, p1).Extremum(); ok {
		candidates = append(candidates, tmin, tmax)
	}

	lower := math.Min(p0.T, p1.T)
	upper := math.Max(p0.T, p1.T)
	margin := (upper - lower) / interpMargin

	t, best := tb, math.MaxFloat64
	for _, c := range candidates {
		if !finite(c) || c <= lower+margin || c >= upper-margin {
			continue
		}
		if dist := math.Abs(c - p0.T); dist < best {
			t, best = c, dist
		}
	}
	return t
}
