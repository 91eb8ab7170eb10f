package lsearch

import (
	"github.com/copyleftdev/descent/internal/optimization"
)

// backtrack shrinks the step until sufficient decrease holds and, for the
// Wolfe variants, grows it again until the curvature condition holds.
// See "Numerical optimization", Nocedal & Wright, 2nd edition and libLBFGS.
func (ls *LineSearch) backtrack(fn optimization.Function, base *optimization.State, t0 float64) (Step, bool) {
	step := NewStep(fn, base)

	t := t0
	for i := 0; i < ls.cfg.MaxIterations; i++ {
		if !admissible(t) || !step.Update(t) {
			return step, false
		}

		if !step.HasArmijo(ls.cfg.C1) {
			t *= ls.cfg.Decrement
			continue
		}
		if ls.cfg.Strategy == BacktrackArmijo {
			return step, true
		}

		if !step.HasWolfe(ls.cfg.C2) {
			t *= ls.cfg.Increment
			continue
		}
		if ls.cfg.Strategy == BacktrackWolfe {
			return step, true
		}

		if !step.HasStrongWolfe(ls.cfg.C2) {
			t *= ls.cfg.Decrement
			continue
		}
		return step, true
	}

	return step, false
}
