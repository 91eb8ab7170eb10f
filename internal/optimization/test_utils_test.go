package optimization

import (
	"math"
	"testing"
)

// parabola is f(x) = Σ (x_i - 1)², minimized at (1, ..., 1).
func parabola(n int) FuncGrad {
	return FuncGrad{
		N: n,
		Func: func(x []float64) float64 {
			var sum float64
			for _, v := range x {
				sum += (v - 1) * (v - 1)
			}
			return sum
		},
		Grad: func(grad, x []float64) {
			for i, v := range x {
				grad[i] = 2 * (v - 1)
			}
		},
	}
}

// assertFloat64SlicesEqual checks if two float64 slices are approximately equal
func assertFloat64SlicesEqual(t *testing.T, got, want []float64, tol float64) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}

	for i := range got {
		if math.Abs(got[i]-want[i]) > tol {
			t.Fatalf("at index %d: got %v, want %v (tolerance %v)", i, got[i], want[i], tol)
		}
	}
}
