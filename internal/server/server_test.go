package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/descent/internal/config"
	apierr "github.com/copyleftdev/descent/internal/errors"
	"github.com/copyleftdev/descent/internal/logging"
	"github.com/copyleftdev/descent/internal/optimization"
	"github.com/copyleftdev/descent/internal/optimization/functions"
)

// testConfig creates a test configuration with default values
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{Environment: "test"}

	cfg.HTTP.Port = 8080
	cfg.HTTP.ReadTimeout = 30 * time.Second
	cfg.HTTP.WriteTimeout = 30 * time.Second

	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "json"
	cfg.Logging.Output = "stderr"

	cfg.Solver.MaxIterations = 1000
	cfg.Solver.Epsilon = 1e-6
	cfg.Solver.IterationLimit = 5000
	cfg.Solver.RetainJobs = 100
	cfg.Solver.MaxDims = 100

	require.NoError(t, cfg.Validate())
	return cfg
}

type testServer struct {
	*Server
	router   chi.Router
	registry *prometheus.Registry
	logs     *bytes.Buffer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := testConfig(t)

	var logs bytes.Buffer
	logger := logging.New(logging.InfoLevel, &logs)
	registry := prometheus.NewRegistry()

	srv, err := NewServer(cfg, logger, registry)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	r := chi.NewRouter()
	srv.RegisterRoutes(r)
	return &testServer{Server: srv, router: r, registry: registry, logs: &logs}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}, out interface{}) int {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, httptest.NewRequest(method, path, reader))
	if out != nil && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

// gatedFunction blocks its first evaluation until released.
type gatedFunction struct {
	optimization.Function
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedFunction) Eval(x, grad []float64) float64 {
	g.once.Do(func() {
		close(g.started)
		<-g.release
	})
	return g.Function.Eval(x, grad)
}

func TestMinimizeREST(t *testing.T) {
	ts := newTestServer(t)

	var status JobStatus
	code := ts.do(t, http.MethodPost, "/api/v1/minimize?wait=true", map[string]interface{}{
		"solver":   "lbfgs",
		"function": "rosenbrock",
		"x0":       []float64{-1.2, 1},
		"params":   map[string]interface{}{"history": 4},
	}, &status)
	require.Equal(t, http.StatusOK, code)

	assert.NotEmpty(t, status.ID)
	assert.Equal(t, "lbfgs", status.Solver)
	assert.Equal(t, 2, status.Dims)
	assert.Equal(t, JobFinished, status.State)
	assert.Equal(t, optimization.Converged, status.Status)
	require.Len(t, status.X, 2)
	assert.InDelta(t, 1, status.X[0], 1e-4)
	assert.InDelta(t, 1, status.X[1], 1e-4)
	require.NotNil(t, status.Criterion)
	assert.LessOrEqual(t, *status.Criterion, 1e-6)
	assert.Positive(t, status.FCalls)
	assert.NotNil(t, status.FinishedAt)

	var again JobStatus
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/v1/status/"+status.ID, nil, &again))
	assert.Equal(t, status, again)

	assert.Equal(t, 1.0, testutil.ToFloat64(ts.jobs.metrics.runs.WithLabelValues("lbfgs", "converged")))
	assert.Equal(t, 0.0, testutil.ToFloat64(ts.jobs.metrics.running))
}

func TestMinimizeAsync(t *testing.T) {
	ts := newTestServer(t)

	var status JobStatus
	code := ts.do(t, http.MethodPost, "/api/v1/minimize", map[string]interface{}{
		"solver":   "bfgs",
		"function": "quadratic",
		"dims":     5,
		"seed":     3,
	}, &status)
	require.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, 5, status.Dims)

	final, err := ts.jobs.Wait(t.Context(), status.ID)
	require.NoError(t, err)
	assert.Equal(t, optimization.Converged, final.Status)

	want := functions.RandomQuadratic(5, 5).Solution()
	for i := range want {
		assert.InDelta(t, want[i], final.X[i], 1e-4)
	}
}

func TestMinimizeRejected(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		path string
		body interface{}
	}{
		{name: "malformed body", path: "/api/v1/minimize", body: "{"},
		{name: "unknown field", path: "/api/v1/minimize", body: `{"solver":"gd","function":"sphere","dims":2,"tol":1}`},
		{name: "bad wait", path: "/api/v1/minimize?wait=soon", body: `{"solver":"gd","function":"sphere","dims":2}`},
		{name: "unknown solver", path: "/api/v1/minimize", body: map[string]interface{}{"solver": "newton", "function": "sphere", "dims": 2}},
		{name: "unknown function", path: "/api/v1/minimize", body: map[string]interface{}{"solver": "gd", "function": "ackley", "dims": 2}},
		{
			name: "invalid params",
			path: "/api/v1/minimize",
			body: map[string]interface{}{"solver": "gd", "function": "sphere", "dims": 2, "params": map[string]interface{}{"c1": 0.95, "c2": 0.5}},
		},
		{name: "dimension mismatch", path: "/api/v1/minimize", body: map[string]interface{}{"solver": "gd", "function": "beale", "x0": []float64{1, 2, 3}}},
		{name: "over the iteration limit", path: "/api/v1/minimize", body: map[string]interface{}{"solver": "gd", "function": "sphere", "dims": 2, "max_iterations": 10000}},
		{name: "over the dimension limit", path: "/api/v1/minimize", body: map[string]interface{}{"solver": "gd", "function": "quadratic", "dims": 200000}},
		{name: "negative epsilon", path: "/api/v1/minimize", body: map[string]interface{}{"solver": "gd", "function": "sphere", "dims": 2, "epsilon": -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp map[string]string
			assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPost, tt.path, tt.body, &resp))
			assert.NotEmpty(t, resp["error"])
		})
	}

	ts.jobs.mu.RLock()
	defer ts.jobs.mu.RUnlock()
	assert.Empty(t, ts.jobs.byID)
}

func TestCancel(t *testing.T) {
	ts := newTestServer(t)

	gate := &gatedFunction{started: make(chan struct{}), release: make(chan struct{})}
	ts.jobs.resolve = func(name string, dims int) (optimization.Function, error) {
		fn, err := functions.New(name, dims)
		gate.Function = fn
		return gate, err
	}

	var status JobStatus
	require.Equal(t, http.StatusAccepted, ts.do(t, http.MethodPost, "/api/v1/minimize", map[string]interface{}{
		"solver":   "gd",
		"function": "rosenbrock",
		"x0":       []float64{-1.2, 1},
	}, &status))
	<-gate.started

	var cancelled JobStatus
	require.Equal(t, http.StatusAccepted, ts.do(t, http.MethodDelete, "/api/v1/minimize/"+status.ID, nil, &cancelled))
	assert.True(t, cancelled.CancelRequested)
	assert.Equal(t, JobRunning, cancelled.State)

	close(gate.release)
	final, err := ts.jobs.Wait(t.Context(), status.ID)
	require.NoError(t, err)
	assert.Equal(t, optimization.Stopped, final.Status)
	assert.Equal(t, 1, final.Iterations)

	var resp map[string]string
	assert.Equal(t, http.StatusConflict, ts.do(t, http.MethodDelete, "/api/v1/minimize/"+status.ID, nil, &resp))
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodDelete, "/api/v1/minimize/unknown", nil, &resp))
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/v1/status/unknown", nil, &resp))
}

func TestCloseStopsJobs(t *testing.T) {
	ts := newTestServer(t)

	gate := &gatedFunction{started: make(chan struct{}), release: make(chan struct{})}
	ts.jobs.resolve = func(name string, dims int) (optimization.Function, error) {
		fn, err := functions.New(name, dims)
		gate.Function = fn
		return gate, err
	}

	status, err := ts.jobs.Submit(MinimizeRequest{Solver: "cgd", Function: "rosenbrock", X0: []float64{-1.2, 1}})
	require.NoError(t, err)
	<-gate.started

	closed := make(chan struct{})
	go func() {
		_ = ts.Close()
		close(closed)
	}()
	close(gate.release)
	<-closed

	final, err := ts.jobs.Get(status.ID)
	require.NoError(t, err)
	assert.Equal(t, optimization.Stopped, final.Status)

	_, err = ts.jobs.Submit(MinimizeRequest{Solver: "gd", Function: "sphere", Dims: 2})
	assert.ErrorIs(t, err, apierr.ErrUnavailable)
}

func TestRetention(t *testing.T) {
	ts := newTestServer(t)
	ts.jobs.cfg.retain = 2

	var ids []string
	for i := 0; i < 3; i++ {
		status, err := ts.jobs.Submit(MinimizeRequest{Solver: "gd", Function: "sphere", Dims: 2, Seed: uint64(i)})
		require.NoError(t, err)
		_, err = ts.jobs.Wait(t.Context(), status.ID)
		require.NoError(t, err)
		ids = append(ids, status.ID)
	}

	_, err := ts.jobs.Get(ids[0])
	assert.ErrorIs(t, err, apierr.ErrNotFound)
	for _, id := range ids[1:] {
		_, err := ts.jobs.Get(id)
		assert.NoError(t, err)
	}
}

func TestListSolvers(t *testing.T) {
	ts := newTestServer(t)

	var c Catalog
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/v1/solvers", nil, &c))
	require.Len(t, c.Solvers, 16)
	assert.Len(t, c.Functions, len(functions.Registry))

	for _, s := range c.Solvers {
		if s.Name == "lbfgs" {
			assert.Equal(t, 6.0, s.Config["history"])
			assert.Equal(t, "interpolation", s.Config["lsearch.strategy"])
			assert.NotEmpty(t, s.Tunables)
		}
	}
}

type rpcResult struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

func TestJSONRPC(t *testing.T) {
	ts := newTestServer(t)

	call := func(t *testing.T, body string) rpcResult {
		t.Helper()
		var res rpcResult
		require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/rpc", body, &res))
		assert.Equal(t, "2.0", res.JSONRPC)
		return res
	}

	res := call(t, `{"jsonrpc":"2.0","id":1,"method":"solver.minimize",
		"params":{"solver":"bfgs","function":"rosenbrock","x0":[-1.2,1],"wait":true}}`)
	require.Nil(t, res.Error)
	assert.JSONEq(t, `1`, string(res.ID))

	var status JobStatus
	require.NoError(t, json.Unmarshal(res.Result, &status))
	assert.Equal(t, optimization.Converged, status.Status)
	for _, v := range status.X {
		assert.InDelta(t, 1, v, 1e-3)
	}

	res = call(t, `{"jsonrpc":"2.0","id":"s","method":"solver.status","params":[{"id":"`+status.ID+`"}]}`)
	require.Nil(t, res.Error)
	assert.JSONEq(t, `"s"`, string(res.ID))

	res = call(t, `{"jsonrpc":"2.0","id":2,"method":"solver.list"}`)
	require.Nil(t, res.Error)
	var c Catalog
	require.NoError(t, json.Unmarshal(res.Result, &c))
	assert.Len(t, c.Solvers, 16)

	tests := []struct {
		name string
		body string
		code int
	}{
		{name: "parse error", body: `{"jsonrpc":`, code: apierr.CodeParseError},
		{name: "wrong version", body: `{"jsonrpc":"1.0","id":1,"method":"solver.list"}`, code: apierr.CodeInvalidRequest},
		{name: "unknown method", body: `{"jsonrpc":"2.0","id":1,"method":"solver.optimize"}`, code: apierr.CodeMethodNotFound},
		{name: "missing params", body: `{"jsonrpc":"2.0","id":1,"method":"solver.status"}`, code: apierr.CodeInvalidParams},
		{name: "two params", body: `{"jsonrpc":"2.0","id":1,"method":"solver.status","params":[{"id":"a"},{"id":"b"}]}`, code: apierr.CodeInvalidParams},
		{name: "unknown job", body: `{"jsonrpc":"2.0","id":1,"method":"solver.cancel","params":{"id":"nope"}}`, code: apierr.CodeNotFound},
		{name: "finished job", body: `{"jsonrpc":"2.0","id":1,"method":"solver.cancel","params":{"id":"` + status.ID + `"}}`, code: apierr.CodeConflict},
		{
			name: "invalid configuration",
			body: `{"jsonrpc":"2.0","id":1,"method":"solver.minimize","params":{"solver":"lbfgs","function":"sphere","dims":2,"params":{"history":0}}}`,
			code: apierr.CodeInvalidParams,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := call(t, tt.body)
			require.NotNil(t, res.Error)
			assert.Equal(t, tt.code, res.Error.Code)
			assert.NotEmpty(t, res.Error.Message)
		})
	}
}

func TestJSONRPCNotification(t *testing.T) {
	ts := newTestServer(t)

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rpc",
		strings.NewReader(`{"jsonrpc":"2.0","method":"solver.list"}`)))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, rec.Body.Len())
}

func TestDuplicateMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewMetrics(registry)
	require.NoError(t, err)

	_, err = NewMetrics(registry)
	assert.Error(t, err)

	m, err := NewMetrics(nil)
	require.NoError(t, err)
	assert.NotNil(t, m)
}
