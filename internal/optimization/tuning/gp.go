package tuning

import (
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/copyleftdev/descent/internal/optimization"
)

// Jitter added to the kernel diagonal when the factorization fails or is too
// ill-conditioned, grown tenfold per retry.
const (
	initialJitter = 1e-10
	jitterRetries = 8
	maxCondition  = 1e12
)

// GP is a Gaussian process regression model with a constant mean. Targets
// are standardized before fitting and predictions are returned in the
// original scale.
type GP struct {
	kernel   Kernel
	noiseVar float64

	x     [][]float64
	mean  float64
	scale float64
	alpha *mat.VecDense
	chol  *mat.Cholesky

	logger *zap.Logger
}

// NewGP returns an unfitted Gaussian process. A nil logger disables logging.
func NewGP(kernel Kernel, noiseVar float64, logger *zap.Logger) *GP {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GP{
		kernel:   kernel,
		noiseVar: noiseVar,
		logger:   logger.Named("gaussian_process"),
	}
}

// Fit conditions the model on the observations y at the points x.
func (gp *GP) Fit(x [][]float64, y []float64) error {
	const op = "GP.Fit"

	n := len(x)
	if n == 0 {
		return optimization.NewError("no training points").WithOperation(op)
	}
	if len(y) != n {
		return optimization.NewErrorf("dimension mismatch: %d points, %d targets", n, len(y)).WithOperation(op)
	}
	for i, row := range x {
		if len(row) != len(x[0]) {
			return optimization.NewErrorf("point %d has %d features, want %d", i, len(row), len(x[0])).WithOperation(op)
		}
	}
	for _, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return optimization.NewError("targets must be finite").WithOperation(op)
		}
	}

	mean, std := stat.MeanStdDev(y, nil)
	if !(std > 0) {
		std = 1
	}

	k := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			k.SetSym(i, j, gp.kernel.Eval(x[i], x[j]))
		}
	}

	var chol mat.Cholesky
	jitter := 0.0
	for attempt := 0; ; attempt++ {
		for i := 0; i < n; i++ {
			k.SetSym(i, i, gp.kernel.Eval(x[i], x[i])+gp.noiseVar+jitter)
		}
		if chol.Factorize(k) && chol.Cond() < maxCondition {
			break
		}
		if attempt == jitterRetries {
			return optimization.NewError("kernel matrix is not positive definite").WithOperation(op)
		}
		if jitter == 0 {
			jitter = initialJitter
		} else {
			jitter *= 10
		}
		gp.logger.Debug("kernel matrix factorization failed, adding jitter",
			zap.Int("attempt", attempt+1),
			zap.Float64("jitter", jitter))
	}

	z := mat.NewVecDense(n, nil)
	for i, v := range y {
		z.SetVec(i, (v-mean)/std)
	}
	alpha := mat.NewVecDense(n, nil)
	if err := chol.SolveVecTo(alpha, z); err != nil {
		return optimization.WrapError(err, "failed to solve for the weights").WithOperation(op)
	}

	gp.x = make([][]float64, n)
	for i, row := range x {
		gp.x[i] = append([]float64(nil), row...)
	}
	gp.mean, gp.scale = mean, std
	gp.alpha = alpha
	gp.chol = &chol

	gp.logger.Debug("fitted gaussian process",
		zap.Int("samples", n),
		zap.Int("features", len(x[0])),
		zap.Float64("mean", mean),
		zap.Float64("scale", std))
	return nil
}

// Predict returns the posterior mean and variance of the cost at x.
func (gp *GP) Predict(x []float64) (mu, variance float64, err error) {
	const op = "GP.Predict"

	if gp.alpha == nil {
		return 0, 0, optimization.NewError("model not fitted").WithOperation(op)
	}
	if len(x) != len(gp.x[0]) {
		return 0, 0, optimization.NewErrorf("point has %d features, want %d", len(x), len(gp.x[0])).WithOperation(op)
	}

	n := len(gp.x)
	kstar := mat.NewVecDense(n, nil)
	for i, xi := range gp.x {
		kstar.SetVec(i, gp.kernel.Eval(x, xi))
	}

	v := mat.NewVecDense(n, nil)
	if err := gp.chol.SolveVecTo(v, kstar); err != nil {
		return 0, 0, optimization.WrapError(err, "failed to solve for the variance").WithOperation(op)
	}

	mu = gp.mean + gp.scale*mat.Dot(kstar, gp.alpha)
	variance = gp.kernel.Eval(x, x) - mat.Dot(kstar, v)
	if variance < 0 {
		variance = 0
	}
	return mu, variance * gp.scale * gp.scale, nil
}
