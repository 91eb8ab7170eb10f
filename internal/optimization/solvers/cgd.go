package solvers

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/descent/internal/optimization"
)

// Beta computes the conjugate gradient update parameter from the current
// state (g_k, d_{k-1} stored in D) and the previous state (g_{k-1}, d_{k-1}).
// See "A survey of nonlinear conjugate gradient methods", Hager & Zhang, 2006.
type Beta func(prev, curr *optimization.State) float64

// Betas maps the conjugate gradient variants to their update parameter.
var Betas = map[string]Beta{
	"cd":   BetaCD,
	"dy":   BetaDY,
	"fr":   BetaFR,
	"hs":   BetaHS,
	"ls":   BetaLS,
	"n":    BetaN,
	"prp":  BetaPRP,
	"dycd": BetaDYCD,
	"dyhs": BetaDYHS,
}

// y returns g_k - g_{k-1}.
func gradDiff(prev, curr *optimization.State) []float64 {
	y := make([]float64, len(curr.G))
	floats.SubTo(y, curr.G, prev.G)
	return y
}

// BetaHS is the Hestenes & Stiefel formula.
func BetaHS(prev, curr *optimization.State) float64 {
	y := gradDiff(prev, curr)
	return floats.Dot(curr.G, y) / floats.Dot(prev.D, y)
}

// BetaFR is the Fletcher & Reeves formula.
func BetaFR(prev, curr *optimization.State) float64 {
	return floats.Dot(curr.G, curr.G) / floats.Dot(prev.G, prev.G)
}

// BetaPRP is the Polak & Ribiere & Polyak formula, restricted to
// non-negative values (PRP+).
func BetaPRP(prev, curr *optimization.State) float64 {
	y := gradDiff(prev, curr)
	return math.Max(0, floats.Dot(curr.G, y)/floats.Dot(prev.G, prev.G))
}

// BetaCD is the conjugate descent formula of Fletcher.
func BetaCD(prev, curr *optimization.State) float64 {
	return -floats.Dot(curr.G, curr.G) / floats.Dot(prev.D, prev.G)
}

// BetaLS is the Liu & Storey formula.
func BetaLS(prev, curr *optimization.State) float64 {
	y := gradDiff(prev, curr)
	return -floats.Dot(curr.G, y) / floats.Dot(prev.D, prev.G)
}

// BetaDY is the Dai & Yuan formula.
func BetaDY(prev, curr *optimization.State) float64 {
	y := gradDiff(prev, curr)
	return floats.Dot(curr.G, curr.G) / floats.Dot(prev.D, y)
}

// BetaN is the formula of Hager & Zhang (CG_DESCENT), bounded from below
// to keep the method globally convergent.
func BetaN(prev, curr *optimization.State) float64 {
	y := gradDiff(prev, curr)
	div := floats.Dot(prev.D, y)

	pd := make([]float64, len(y))
	floats.AddScaledTo(pd, y, -2*floats.Dot(y, y)/div, prev.D)
	beta := floats.Dot(pd, curr.G) / div

	eta := -1 / (floats.Norm(prev.D, 2) * math.Min(0.01, floats.Norm(prev.G, 2)))
	return math.Max(eta, beta)
}

// BetaDYHS is the hybrid max(0, min(DY, HS)) of Dai & Yuan.
func BetaDYHS(prev, curr *optimization.State) float64 {
	return math.Max(0, math.Min(BetaDY(prev, curr), BetaHS(prev, curr)))
}

// BetaDYCD is the hybrid of the Dai & Yuan and the conjugate descent
// formulas.
func BetaDYCD(prev, curr *optimization.State) float64 {
	y := gradDiff(prev, curr)
	return floats.Dot(curr.G, curr.G) / math.Max(floats.Dot(prev.D, y), -floats.Dot(prev.D, prev.G))
}

// powellRestart bounds |g_k·g_{k-1}| / ‖g_k‖² before the conjugacy is
// considered lost. See "Numerical optimization", Nocedal & Wright, 2nd
// edition, p.124.
const powellRestart = 0.1

// conjugate is nonlinear conjugate gradient descent: d = -g + β·d_prev. It
// restarts along -g when consecutive gradients are far from orthogonal, when β
// is not finite or when the combined direction is not a descent direction.
type conjugate struct {
	beta Beta
	prev *optimization.State
}

func (c *conjugate) direction(state *optimization.State) {
	if c.prev == nil {
		floats.ScaleTo(state.D, -1, state.G)
		return
	}

	// Powell's restart: consecutive gradients far from orthogonal
	gg := floats.Dot(state.G, state.G)
	if math.Abs(floats.Dot(state.G, c.prev.G)) >= powellRestart*gg {
		floats.ScaleTo(state.D, -1, state.G)
		return
	}

	beta := c.beta(c.prev, state)
	if math.IsNaN(beta) || math.IsInf(beta, 0) {
		floats.ScaleTo(state.D, -1, state.G)
		return
	}

	// state.D still holds the previous direction
	floats.Scale(beta, state.D)
	floats.Sub(state.D, state.G)
	if !state.HasDescent() {
		floats.ScaleTo(state.D, -1, state.G)
	}
}

func (c *conjugate) accepted(_ optimization.Function, prev, _ *optimization.State) {
	c.prev = prev
}
