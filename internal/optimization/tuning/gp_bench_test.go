package tuning

import (
	"fmt"
	"math/rand/v2"
	"testing"
)

// BenchmarkGPFit measures how fitting scales with the number of samples.
func BenchmarkGPFit(b *testing.B) {
	for _, n := range []int{10, 50, 200} {
		b.Run(fmt.Sprintf("n=%d", n), func(b *testing.B) {
			rng := rand.New(rand.NewPCG(1, uint64(n)))
			x := make([][]float64, n)
			y := make([]float64, n)
			for i := range x {
				x[i] = []float64{rng.Float64(), rng.Float64()}
				y[i] = rng.NormFloat64()
			}

			kernel, err := NewMatern52(0.25, 1)
			if err != nil {
				b.Fatal(err)
			}
			gp := NewGP(kernel, DefaultNoise, nil)

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := gp.Fit(x, y); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkGPPredict measures one posterior prediction.
func BenchmarkGPPredict(b *testing.B) {
	rng := rand.New(rand.NewPCG(2, 3))
	x := make([][]float64, 50)
	y := make([]float64, 50)
	for i := range x {
		x[i] = []float64{rng.Float64(), rng.Float64()}
		y[i] = rng.NormFloat64()
	}

	kernel, err := NewRBF(0.25, 1)
	if err != nil {
		b.Fatal(err)
	}
	gp := NewGP(kernel, DefaultNoise, nil)
	if err := gp.Fit(x, y); err != nil {
		b.Fatal(err)
	}

	query := []float64{0.5, 0.5}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := gp.Predict(query); err != nil {
			b.Fatal(err)
		}
	}
}
