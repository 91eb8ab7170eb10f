package tuning

import (
	"gonum.org/v1/gonum/stat/distuv"
)

// minSigma is the predictive deviation below which the surrogate is treated
// as exact.
const minSigma = 1e-10

// ExpectedImprovement is the expected amount by which a point improves on
// the best cost observed so far, for minimization.
type ExpectedImprovement struct {
	// Best observed cost
	Best float64

	// Exploration margin: improvements smaller than Xi are not counted
	Xi float64
}

// Compute returns the expected improvement of a point whose predicted cost
// has mean mu and standard deviation sigma. The result is never negative.
func (ei ExpectedImprovement) Compute(mu, sigma float64) float64 {
	improvement := ei.Best - mu - ei.Xi
	if sigma <= minSigma {
		if improvement <= 0 {
			return 0
		}
		return improvement
	}

	z := improvement / sigma
	v := improvement*distuv.UnitNormal.CDF(z) + sigma*distuv.UnitNormal.Prob(z)
	if v < 0 {
		return 0
	}
	return v
}
