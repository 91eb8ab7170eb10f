package solvers

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	gfunc "gonum.org/v1/gonum/optimize/functions"

	"github.com/copyleftdev/descent/internal/optimization"
	"github.com/copyleftdev/descent/internal/optimization/functions"
	"github.com/copyleftdev/descent/internal/optimization/lsearch"
)

func TestNames(t *testing.T) {
	names := Names()
	assert.Len(t, names, 16)
	assert.Contains(t, names, "gd")
	assert.Contains(t, names, "cgd-dyhs")
	assert.Contains(t, names, "lbfgs")
	assert.Contains(t, names, "naggr")
	assert.IsIncreasing(t, names)

	for _, name := range names {
		s := newSolver(t, name, nil)
		assert.Equal(t, name, s.Name())
	}

	_, err := New("newton", nil)
	assert.ErrorIs(t, err, optimization.ErrInvalidConfig)
}

func TestConvexQuadratic(t *testing.T) {
	q := testQuadratic(t)
	want := []float64{7.0 / 61, 33.0 / 61, 16.0 / 61, 236.0 / 61}

	starts := [][]float64{
		{0, 0, 0, 0},
		{5, -3, 2, 1},
	}

	for _, name := range Names() {
		for i, x0 := range starts {
			t.Run(fmt.Sprintf("%s/start%d", name, i), func(t *testing.T) {
				state := minimize(t, newSolver(t, name, nil), q, x0, 1000)

				assert.Equal(t, optimization.Converged, state.Status)
				assert.True(t, floats.EqualApprox(want, state.X, 1e-4), "x = %v", state.X)
				assert.GreaterOrEqual(t, state.FCalls, state.Iterations+1)
				assert.Equal(t, state.FCalls, state.GCalls)
			})
		}
	}
}

func TestRandomQuadratic(t *testing.T) {
	for _, name := range Names() {
		for _, n := range []int{2, 8, 16} {
			t.Run(fmt.Sprintf("%s/n=%d", name, n), func(t *testing.T) {
				q := functions.RandomQuadratic(n, uint64(7*n))
				x0 := make([]float64, n)
				for i := range x0 {
					x0[i] = float64(i%3) - 1
				}

				state := minimize(t, newSolver(t, name, nil), q, x0, 2000)

				assert.Equal(t, optimization.Converged, state.Status)
				assert.True(t, floats.EqualApprox(q.Solution(), state.X, 1e-4), "x = %v", state.X)
			})
		}
	}
}

func TestMonotoneDecrease(t *testing.T) {
	q := testQuadratic(t)
	rosenbrock, err := functions.New("rosenbrock", 2)
	require.NoError(t, err)

	for _, name := range Names() {
		if strings.HasPrefix(name, "nag") {
			// the extrapolated point may increase the function value
			continue
		}
		for _, fn := range []optimization.Function{q, rosenbrock} {
			tr := &trace{}
			x0 := make([]float64, fn.Dims())
			x0[0] = -1.2

			s := newSolver(t, name, nil)
			state, err := s.Minimize(context.Background(), optimization.Problem{
				Function:      fn,
				X0:            x0,
				MaxIterations: 200,
				Epsilon:       1e-6,
				Observer:      tr.observe,
			})
			require.NoError(t, err)
			require.NotEqual(t, optimization.Failed, state.Status, name)

			for i := 1; i < len(tr.values); i++ {
				assert.LessOrEqual(t, tr.values[i], tr.values[i-1], "%s: iteration %d", name, i)
			}
		}
	}
}

func TestRosenbrock(t *testing.T) {
	fn, err := functions.New("rosenbrock", 2)
	require.NoError(t, err)

	for _, name := range []string{"bfgs", "lbfgs", "cgd", "cgd-fr", "cgd-hs", "cgd-n", "cgd-dy", "nagfr", "naggr"} {
		t.Run(name, func(t *testing.T) {
			state := minimize(t, newSolver(t, name, nil), fn, []float64{-1.2, 1}, 5000)

			assert.Equal(t, optimization.Converged, state.Status)
			assert.InDeltaSlice(t, []float64{1, 1}, state.X, 1e-4)
		})
	}
}

func TestGradientDescentLineSearches(t *testing.T) {
	for _, strategy := range lsearch.StrategyNames() {
		for _, init := range lsearch.InitNames() {
			t.Run(strategy+"/"+init, func(t *testing.T) {
				s := newSolver(t, "gd", optimization.Params{
					KeyLineSearchStrategy: strategy,
					KeyLineSearchInit:     init,
				})

				state := minimize(t, s, functions.Sphere(1), []float64{10}, 1000)

				assert.Equal(t, optimization.Converged, state.Status)
				assert.Less(t, state.Iterations, 100)
				assert.InDelta(t, 0, state.X[0], 1e-6)
			})
		}
	}
}

func TestStationaryStart(t *testing.T) {
	for _, name := range Names() {
		state := minimize(t, newSolver(t, name, nil), functions.Sphere(3), []float64{0, 0, 0}, 10)

		assert.Equal(t, optimization.Converged, state.Status, name)
		assert.Zero(t, state.Iterations, name)
		assert.Equal(t, 1, state.FCalls, name)
	}
}

func TestTermination(t *testing.T) {
	rosenbrock, err := functions.New("rosenbrock", 2)
	require.NoError(t, err)

	linear := optimization.FuncGrad{
		N:    1,
		Func: func(x []float64) float64 { return -x[0] },
		Grad: func(grad, x []float64) { grad[0] = -1 },
	}
	notANumber := optimization.FuncGrad{
		N:    1,
		Func: func(x []float64) float64 { return math.NaN() },
		Grad: func(grad, x []float64) { grad[0] = 1 },
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name       string
		ctx        context.Context
		problem    optimization.Problem
		wantStatus optimization.Status
		wantIters  int
	}{
		{
			name:       "iteration budget",
			ctx:        context.Background(),
			problem:    optimization.Problem{Function: rosenbrock, X0: []float64{-1.2, 1}, MaxIterations: 5},
			wantStatus: optimization.MaxIterations,
			wantIters:  5,
		},
		{
			name: "observer",
			ctx:  context.Background(),
			problem: optimization.Problem{
				Function: testQuadratic(t), X0: []float64{5, -3, 2, 1}, MaxIterations: 100,
				Observer: func(state *optimization.State) bool { return state.Iterations < 3 },
			},
			wantStatus: optimization.Stopped,
			wantIters:  3,
		},
		{
			name:       "cancelled context",
			ctx:        cancelled,
			problem:    optimization.Problem{Function: rosenbrock, X0: []float64{-1.2, 1}, MaxIterations: 100},
			wantStatus: optimization.Stopped,
			wantIters:  1,
		},
		{
			name:       "unbounded below",
			ctx:        context.Background(),
			problem:    optimization.Problem{Function: linear, X0: []float64{0}, MaxIterations: 100},
			wantStatus: optimization.Failed,
			wantIters:  0,
		},
		{
			name:       "not a number",
			ctx:        context.Background(),
			problem:    optimization.Problem{Function: notANumber, X0: []float64{0}, MaxIterations: 100},
			wantStatus: optimization.Failed,
			wantIters:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.problem.Epsilon = 1e-6
			state, err := newSolver(t, "gd", nil).Minimize(tt.ctx, tt.problem)
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, state.Status)
			assert.Equal(t, tt.wantIters, state.Iterations)
			assert.True(t, state.Status.Terminal())
		})
	}
}

func TestInvalidProblem(t *testing.T) {
	s := newSolver(t, "lbfgs", nil)

	tests := []struct {
		name    string
		problem optimization.Problem
	}{
		{name: "no function", problem: optimization.Problem{X0: []float64{1}, MaxIterations: 1, Epsilon: 1e-6}},
		{name: "size mismatch", problem: optimization.Problem{Function: functions.Sphere(2), X0: []float64{1}, MaxIterations: 1, Epsilon: 1e-6}},
		{name: "no budget", problem: optimization.Problem{Function: functions.Sphere(1), X0: []float64{1}, Epsilon: 1e-6}},
		{name: "no epsilon", problem: optimization.Problem{Function: functions.Sphere(1), X0: []float64{1}, MaxIterations: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, err := s.Minimize(context.Background(), tt.problem)
			require.Error(t, err)
			assert.Nil(t, state)

			e, ok := optimization.IsOptimizationError(err)
			require.True(t, ok)
			assert.Equal(t, "lbfgs", e.Component)
			assert.Equal(t, "Minimize", e.Op)
		})
	}
}

func TestConfigure(t *testing.T) {
	tests := []struct {
		name    string
		solver  string
		params  optimization.Params
		wantErr bool
	}{
		{name: "c1 and c2", solver: "gd", params: optimization.Params{KeyC1: 1e-3, KeyC2: 0.5}},
		{name: "strings", solver: "bfgs", params: optimization.Params{KeyC2: "0.5", KeyLineSearchStrategy: "more-thuente"}},
		{name: "history", solver: "lbfgs", params: optimization.Params{KeyHistory: 10.0}},
		{name: "c1 equals c2", solver: "gd", params: optimization.Params{KeyC1: 0.5, KeyC2: 0.5}, wantErr: true},
		{name: "c1 above c2", solver: "cgd", params: optimization.Params{KeyC1: 0.2}, wantErr: true},
		{name: "unknown key", solver: "gd", params: optimization.Params{"momentum": 0.9}, wantErr: true},
		{name: "history on gd", solver: "gd", params: optimization.Params{KeyHistory: 4}, wantErr: true},
		{name: "empty history", solver: "lbfgs", params: optimization.Params{KeyHistory: 0}, wantErr: true},
		{name: "unknown strategy", solver: "gd", params: optimization.Params{KeyLineSearchStrategy: "golden"}, wantErr: true},
		{name: "unknown init", solver: "gd", params: optimization.Params{KeyLineSearchInit: "random"}, wantErr: true},
		{name: "fractional iterations", solver: "gd", params: optimization.Params{KeyLineSearchIterations: 2.5}, wantErr: true},
		{name: "no iterations", solver: "gd", params: optimization.Params{KeyLineSearchIterations: 0}, wantErr: true},
		{name: "cg-descent with the nag c1", solver: "nag", params: optimization.Params{KeyLineSearchStrategy: "cg-descent"}, wantErr: true},
		{name: "cg-descent with a small c1", solver: "nag", params: optimization.Params{KeyLineSearchStrategy: "cg-descent", KeyC1: 1e-4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSolver(t, tt.solver, nil)
			before := s.Config()

			err := s.Configure(tt.params)
			if tt.wantErr {
				assert.ErrorIs(t, err, optimization.ErrInvalidConfig)
				assert.Equal(t, before, s.Config(), "configuration must be left unchanged")
				return
			}

			require.NoError(t, err)
			after := s.Config()
			for key, value := range tt.params {
				want, err := tt.params.Float(key, 0)
				if err != nil {
					assert.Equal(t, value, after[key])
					continue
				}
				got, err := after.Float(key, 0)
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	tests := []struct {
		solver   string
		init     string
		strategy string
		c1, c2   float64
	}{
		{solver: "gd", init: "quadratic", strategy: "backtrack-wolfe", c1: 1e-4, c2: 0.9},
		{solver: "cgd", init: "quadratic", strategy: "interpolation", c1: 1e-4, c2: 0.1},
		{solver: "cgd-dy", init: "quadratic", strategy: "backtrack-wolfe", c1: 1e-4, c2: 0.1},
		{solver: "bfgs", init: "unit", strategy: "interpolation", c1: 1e-4, c2: 0.9},
		{solver: "lbfgs", init: "unit", strategy: "interpolation", c1: 1e-4, c2: 0.9},
		{solver: "nagfr", init: "quadratic", strategy: "backtrack-armijo", c1: 0.5, c2: 0.9},
	}

	for _, tt := range tests {
		t.Run(tt.solver, func(t *testing.T) {
			cfg := newSolver(t, tt.solver, nil).Config()
			assert.Equal(t, tt.init, cfg[KeyLineSearchInit])
			assert.Equal(t, tt.strategy, cfg[KeyLineSearchStrategy])
			assert.Equal(t, tt.c1, cfg[KeyC1])
			assert.Equal(t, tt.c2, cfg[KeyC2])
		})
	}

	assert.Equal(t, DefaultHistory, newSolver(t, "lbfgs", nil).Config()[KeyHistory])
	assert.NotContains(t, newSolver(t, "bfgs", nil).Config(), KeyHistory)
}

func TestConfigRoundTrip(t *testing.T) {
	for _, name := range Names() {
		s := newSolver(t, name, optimization.Params{KeyC1: 1e-3, KeyC2: 0.7})
		clone := newSolver(t, name, s.Config())
		assert.Equal(t, s.Config(), clone.Config(), name)
	}
}

func TestTunablesConfigure(t *testing.T) {
	for _, name := range Names() {
		s := newSolver(t, name, nil)
		grid := Grid(s.Tunables())
		require.NotEmpty(t, grid, name)

		for _, params := range grid {
			assert.NoError(t, s.Configure(params), "%s: %v", name, params)
		}
	}
}

func TestTunablesInit(t *testing.T) {
	inits := func(name string) []interface{} {
		for _, tunable := range newSolver(t, name, nil).Tunables() {
			if tunable.Name == KeyLineSearchInit {
				return tunable.Values
			}
		}
		t.Fatalf("%s has no %s tunable", name, KeyLineSearchInit)
		return nil
	}

	for _, name := range []string{"nag", "nagfr", "naggr"} {
		assert.Equal(t, []interface{}{"unit", "quadratic"}, inits(name), name)
	}
	assert.Contains(t, inits("gd"), "consistent")
	assert.Contains(t, inits("lbfgs"), "consistent")
}

func TestReentrant(t *testing.T) {
	q := testQuadratic(t)
	s := newSolver(t, "cgd", optimization.Params{KeyLineSearchStrategy: "cg-descent"})

	first := minimize(t, s, q, []float64{5, -3, 2, 1}, 100)
	second := minimize(t, s, q, []float64{5, -3, 2, 1}, 100)

	assert.Equal(t, first.X, second.X)
	assert.Equal(t, first.Iterations, second.Iterations)
	assert.Equal(t, first.FCalls, second.FCalls)
}

// TestAgainstGonum checks the minimizers against gonum's BFGS.
func TestAgainstGonum(t *testing.T) {
	problems := []struct {
		name string
		fg   interface {
			Func(x []float64) float64
			Grad(grad, x []float64)
		}
		x0 []float64
	}{
		{name: "rosenbrock", fg: gfunc.ExtendedRosenbrock{}, x0: []float64{-1.2, 1}},
		{name: "beale", fg: gfunc.Beale{}, x0: []float64{1, 1}},
		{name: "wood", fg: gfunc.Wood{}, x0: []float64{-3, -1, -3, -1}},
	}

	for _, p := range problems {
		t.Run(p.name, func(t *testing.T) {
			ref, err := optimize.Minimize(optimize.Problem{Func: p.fg.Func, Grad: p.fg.Grad}, p.x0, nil, &optimize.BFGS{})
			require.NoError(t, err)

			fn := optimization.FuncGrad{N: len(p.x0), Func: p.fg.Func, Grad: p.fg.Grad}
			state := minimize(t, newSolver(t, "bfgs", nil), fn, p.x0, 1000)

			assert.Equal(t, optimization.Converged, state.Status)
			assert.InDelta(t, ref.F, state.F, 1e-6)
			assert.InDeltaSlice(t, ref.X, state.X, 1e-3)
		})
	}
}
