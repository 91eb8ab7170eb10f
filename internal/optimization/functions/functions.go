// Package functions provides smooth test problems for the descent solvers.
// Most of them are the classical unconstrained test functions of More,
// Garbow and Hillstrom, as implemented by gonum's optimize/functions.
package functions

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	gfunc "gonum.org/v1/gonum/optimize/functions"

	"github.com/copyleftdev/descent/internal/optimization"
)

// funcGrad is implemented by the gonum test functions.
type funcGrad interface {
	Func(x []float64) float64
	Grad(grad, x []float64)
}

// Spec describes a registered test problem.
type Spec struct {
	Name string `json:"name"`

	// Fixed dimension, or 0 if the problem accepts any dimension >= MinDims
	Dims    int  `json:"dims,omitempty"`
	MinDims int  `json:"min_dims,omitempty"`
	Convex  bool `json:"convex"`

	// dims must be a multiple of Step (1 if unset)
	Step int `json:"-"`

	build func(dims int) optimization.Function
}

// Registry maps problem names to their description.
var Registry = map[string]Spec{
	"sphere": {
		Name: "sphere", MinDims: 1, Convex: true,
		build: func(n int) optimization.Function { return Sphere(n) },
	},
	"quadratic": {
		Name: "quadratic", MinDims: 1, Convex: true,
		build: func(n int) optimization.Function { return RandomQuadratic(n, uint64(n)) },
	},
	"rosenbrock": {
		Name: "rosenbrock", MinDims: 2,
		build: wrap(gfunc.ExtendedRosenbrock{}),
	},
	"beale": {
		Name: "beale", Dims: 2,
		build: wrap(gfunc.Beale{}),
	},
	"brown-badly-scaled": {
		Name: "brown-badly-scaled", Dims: 2,
		build: wrap(gfunc.BrownBadlyScaled{}),
	},
	"helical-valley": {
		Name: "helical-valley", Dims: 3,
		build: wrap(gfunc.HelicalValley{}),
	},
	"wood": {
		Name: "wood", Dims: 4,
		build: wrap(gfunc.Wood{}),
	},
	"powell-singular": {
		Name: "powell-singular", MinDims: 4, Step: 4,
		build: wrap(gfunc.ExtendedPowellSingular{}),
	},
	"trigonometric": {
		Name: "trigonometric", MinDims: 1,
		build: wrap(gfunc.Trigonometric{}),
	},
	"variably-dimensioned": {
		Name: "variably-dimensioned", MinDims: 1,
		build: wrap(gfunc.VariablyDimensioned{}),
	},
}

func wrap(fg funcGrad) func(int) optimization.Function {
	return func(n int) optimization.Function {
		return optimization.FuncGrad{N: n, Func: fg.Func, Grad: fg.Grad}
	}
}

// Names returns the sorted names of the registered problems.
func Names() []string {
	names := make([]string, 0, len(Registry))
	for name := range Registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the named problem with the given dimension. A dims of 0 selects
// the natural dimension of the problem.
func New(name string, dims int) (optimization.Function, error) {
	spec, ok := Registry[name]
	if !ok {
		return nil, optimization.InvalidArgument("function", name, "unknown function, expected one of %v", Names())
	}
	dims, err := spec.resolve(dims)
	if err != nil {
		return nil, err
	}
	return spec.build(dims), nil
}

// Sizes returns the dimensions to benchmark the problem with, from the
// candidates that the problem accepts.
func (s Spec) Sizes(candidates ...int) []int {
	if s.Dims > 0 {
		return []int{s.Dims}
	}
	var sizes []int
	for _, n := range candidates {
		if _, err := s.resolve(n); err == nil {
			sizes = append(sizes, n)
		}
	}
	return sizes
}

func (s Spec) resolve(dims int) (int, error) {
	if s.Dims > 0 {
		if dims != 0 && dims != s.Dims {
			return 0, optimization.InvalidArgument("dims", dims, "%s has fixed dimension %d", s.Name, s.Dims)
		}
		return s.Dims, nil
	}

	if dims == 0 {
		dims = s.MinDims
	}
	step := s.Step
	if step == 0 {
		step = 1
	}
	if dims < s.MinDims || dims%step != 0 {
		return 0, optimization.InvalidArgument("dims", dims,
			"%s needs at least %d dimensions in multiples of %d", s.Name, s.MinDims, step)
	}
	return dims, nil
}

// Sphere returns f(x) = ‖x‖².
func Sphere(n int) optimization.Function {
	return optimization.FuncGrad{
		N: n,
		Func: func(x []float64) float64 {
			return floats.Dot(x, x)
		},
		Grad: func(grad, x []float64) {
			floats.ScaleTo(grad, 2, x)
		},
	}
}
