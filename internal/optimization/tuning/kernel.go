// Package tuning searches the line-search constants of a solver with Bayesian
// optimization over benchmark cost: a Gaussian process surrogate of the cost
// and an expected-improvement acquisition.
package tuning

import (
	"math"

	"github.com/copyleftdev/descent/internal/optimization"
)

// Kernel is the covariance function of a Gaussian process.
type Kernel interface {
	// Eval computes the covariance between x1 and x2
	Eval(x1, x2 []float64) float64

	// Hyperparameters returns the length scale and signal variance
	Hyperparameters() []float64

	// SetHyperparameters replaces the length scale and signal variance
	SetHyperparameters(params []float64) error
}

// RBF is the squared exponential kernel.
type RBF struct {
	lengthScale float64
	signalVar   float64
}

// NewRBF returns an RBF kernel. Both parameters must be positive.
func NewRBF(lengthScale, signalVar float64) (*RBF, error) {
	k := &RBF{}
	if err := k.SetHyperparameters([]float64{lengthScale, signalVar}); err != nil {
		return nil, err
	}
	return k, nil
}

func (k *RBF) Eval(x1, x2 []float64) float64 {
	r2 := squaredDistance(x1, x2) / (2 * k.lengthScale * k.lengthScale)
	return k.signalVar * math.Exp(-r2)
}

func (k *RBF) Hyperparameters() []float64 {
	return []float64{k.lengthScale, k.signalVar}
}

func (k *RBF) SetHyperparameters(params []float64) error {
	ls, sv, err := checkHyperparameters(params)
	if err != nil {
		return err
	}
	k.lengthScale, k.signalVar = ls, sv
	return nil
}

// Matern52 is the Matérn kernel with ν = 5/2. Its samples are twice
// differentiable, a better prior than RBF for noisy benchmark costs.
type Matern52 struct {
	lengthScale float64
	signalVar   float64
}

// NewMatern52 returns a Matérn 5/2 kernel. Both parameters must be positive.
func NewMatern52(lengthScale, signalVar float64) (*Matern52, error) {
	k := &Matern52{}
	if err := k.SetHyperparameters([]float64{lengthScale, signalVar}); err != nil {
		return nil, err
	}
	return k, nil
}

func (k *Matern52) Eval(x1, x2 []float64) float64 {
	r := math.Sqrt(5*squaredDistance(x1, x2)) / k.lengthScale
	return k.signalVar * (1 + r + r*r/3) * math.Exp(-r)
}

func (k *Matern52) Hyperparameters() []float64 {
	return []float64{k.lengthScale, k.signalVar}
}

func (k *Matern52) SetHyperparameters(params []float64) error {
	ls, sv, err := checkHyperparameters(params)
	if err != nil {
		return err
	}
	k.lengthScale, k.signalVar = ls, sv
	return nil
}

func checkHyperparameters(params []float64) (lengthScale, signalVar float64, err error) {
	if len(params) != 2 {
		return 0, 0, optimization.InvalidArgument("hyperparameters", params, "expected length scale and signal variance")
	}
	if !(params[0] > 0) || math.IsInf(params[0], 0) {
		return 0, 0, optimization.InvalidArgument("length_scale", params[0], "must be positive and finite")
	}
	if !(params[1] > 0) || math.IsInf(params[1], 0) {
		return 0, 0, optimization.InvalidArgument("signal_variance", params[1], "must be positive and finite")
	}
	return params[0], params[1], nil
}

func squaredDistance(x1, x2 []float64) float64 {
	var sum float64
	for i := range x1 {
		d := x1[i] - x2[i]
		sum += d * d
	}
	return sum
}
