package lsearch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/descent/internal/optimization"
)

func stateAt(x, g, d []float64, f, t float64) *optimization.State {
	return &optimization.State{X: x, G: g, D: d, F: f, T: t}
}

func TestParseInit(t *testing.T) {
	for _, name := range InitNames() {
		kind, err := ParseInit(name)
		require.NoError(t, err)
		assert.Equal(t, name, kind.String())
	}

	_, err := ParseInit("cubic")
	assert.ErrorIs(t, err, optimization.ErrInvalidConfig)
}

func TestInitializerFirstCall(t *testing.T) {
	tests := []struct {
		name  string
		state *optimization.State
		want  float64
	}{
		{
			name:  "scaled by x and g",
			state: stateAt([]float64{10}, []float64{20}, []float64{-20}, 100, 1),
			want:  0.01 * 10 / 20,
		},
		{
			name:  "origin uses f and g",
			state: stateAt([]float64{0, 0}, []float64{2, 0}, []float64{-2, 0}, 4, 1),
			want:  0.01 * 4 / 4,
		},
		{
			name:  "origin with zero value",
			state: stateAt([]float64{0}, []float64{2}, []float64{-2}, 0, 1),
			want:  1,
		},
	}

	for _, kind := range []InitKind{InitUnit, InitQuadratic, InitConsistent} {
		for _, tt := range tests {
			t.Run(kind.String()+"/"+tt.name, func(t *testing.T) {
				in := NewInitializer(kind)
				assert.InDelta(t, tt.want, in.Get(tt.state), 1e-15)
			})
		}
	}
}

func TestInitializerUnit(t *testing.T) {
	in := NewInitializer(InitUnit)
	in.Get(stateAt([]float64{10}, []float64{20}, []float64{-20}, 100, 1))

	for i := 0; i < 3; i++ {
		assert.Equal(t, 1.0, in.Get(stateAt([]float64{1}, []float64{2}, []float64{-2}, 1, 0.3)))
	}
}

func TestInitializerQuadratic(t *testing.T) {
	tests := []struct {
		name string
		f    float64
		dg   float64
		want float64
	}{
		{name: "capped at one", f: 8, dg: -2, want: 1},
		{name: "small decrease", f: 9.9, dg: -2, want: 2.02 * 0.1 / 2},
		{name: "increase falls back to one", f: 11, dg: -2, want: 1},
		{name: "zero derivative falls back to one", f: 9, dg: 0, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := NewInitializer(InitQuadratic)
			in.Get(stateAt([]float64{1}, []float64{2}, []float64{-2}, 10, 1))

			got := in.Get(stateAt([]float64{1}, []float64{1}, []float64{tt.dg}, tt.f, 0.5))
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestInitializerConsistent(t *testing.T) {
	in := NewInitializer(InitConsistent)
	// d·g = -4
	in.Get(stateAt([]float64{1}, []float64{2}, []float64{-2}, 10, 1))

	// t_prev = 0.5, d·g = -8
	got := in.Get(stateAt([]float64{1}, []float64{4}, []float64{-2}, 9, 0.5))
	assert.InDelta(t, 0.25, got, 1e-15)

	// t_prev = 0.25, d·g = -2 after -8
	got = in.Get(stateAt([]float64{1}, []float64{1}, []float64{-2}, 8, 0.25))
	assert.InDelta(t, 1.0, got, 1e-15)

	// t_prev = 1, d·g = -0.5 after -2
	got = in.Get(stateAt([]float64{1}, []float64{0.5}, []float64{-1}, 8, 1))
	assert.InDelta(t, 4.0, got, 1e-15)
}
