package server

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/copyleftdev/descent/internal/benchmark"
	apierr "github.com/copyleftdev/descent/internal/errors"
	"github.com/copyleftdev/descent/internal/optimization"
	"github.com/copyleftdev/descent/internal/optimization/functions"
	"github.com/copyleftdev/descent/internal/optimization/solvers"
)

// MinimizeRequest describes a minimization job.
type MinimizeRequest struct {
	Solver   string `json:"solver"`
	Function string `json:"function"`

	// Dimension of the problem. Zero selects len(X0), or the natural
	// dimension of the function.
	Dims int `json:"dims,omitempty"`

	// Starting point. If empty it is drawn uniformly in [-1, 1]^n from Seed.
	X0   []float64 `json:"x0,omitempty"`
	Seed uint64    `json:"seed,omitempty"`

	// Zero values select the configured defaults.
	MaxIterations int     `json:"max_iterations,omitempty"`
	Epsilon       float64 `json:"epsilon,omitempty"`

	// Solver configuration overrides
	Params optimization.Params `json:"params,omitempty"`
}

// Job states.
const (
	JobRunning  = "running"
	JobFinished = "finished"
)

// JobStatus is a snapshot of a job. Non-finite values are reported as null.
type JobStatus struct {
	ID       string `json:"id"`
	Solver   string `json:"solver"`
	Function string `json:"function"`
	Dims     int    `json:"dims"`

	State  string              `json:"state"`
	Status optimization.Status `json:"status"`

	Iterations int       `json:"iterations"`
	F          *float64  `json:"f"`
	Criterion  *float64  `json:"criterion"`
	X          []float64 `json:"x,omitempty"`
	FCalls     int       `json:"fcalls"`
	GCalls     int       `json:"gcalls"`

	CancelRequested bool       `json:"cancel_requested,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

type job struct {
	status JobStatus
	cancel context.CancelFunc
	done   chan struct{}
}

// jobs owns the minimization jobs. Finished jobs are kept for status queries
// up to the retention limit, oldest evicted first.
type jobs struct {
	cfg     jobsConfig
	logger  *zap.Logger
	metrics *Metrics

	// resolve builds the named function
	resolve func(name string, dims int) (optimization.Function, error)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	byID     map[string]*job
	finished []string
	closed   bool
}

type jobsConfig struct {
	maxIterations  int
	iterationLimit int
	epsilon        float64
	retain         int
	maxDims        int
}

func newJobs(cfg jobsConfig, logger *zap.Logger, metrics *Metrics) *jobs {
	ctx, cancel := context.WithCancel(context.Background())
	return &jobs{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		resolve: functions.New,
		ctx:     ctx,
		cancel:  cancel,
		byID:    make(map[string]*job),
	}
}

// Submit validates the request and starts the job.
func (js *jobs) Submit(req MinimizeRequest) (JobStatus, error) {
	id := uuid.NewString()
	logger := js.logger.With(zap.String("job", id))

	solver, err := solvers.New(req.Solver, req.Params, solvers.WithLogger(logger))
	if err != nil {
		return JobStatus{}, err
	}

	dims := req.Dims
	if dims == 0 {
		dims = len(req.X0)
	}
	if dims > js.cfg.maxDims {
		return JobStatus{}, apierr.BadRequest("dims %d exceeds the limit %d", dims, js.cfg.maxDims)
	}
	fn, err := js.resolve(req.Function, dims)
	if err != nil {
		return JobStatus{}, err
	}

	x0 := append([]float64(nil), req.X0...)
	if len(x0) == 0 {
		x0 = benchmark.StartingPoint(fn.Dims(), req.Seed, 0)
	}

	problem := optimization.Problem{
		Function:      fn,
		X0:            x0,
		MaxIterations: req.MaxIterations,
		Epsilon:       req.Epsilon,
	}
	if problem.MaxIterations == 0 {
		problem.MaxIterations = js.cfg.maxIterations
	}
	if problem.MaxIterations > js.cfg.iterationLimit {
		return JobStatus{}, apierr.BadRequest("max_iterations %d exceeds the limit %d", problem.MaxIterations, js.cfg.iterationLimit)
	}
	if problem.Epsilon == 0 {
		problem.Epsilon = js.cfg.epsilon
	}
	if err := problem.Validate(); err != nil {
		return JobStatus{}, err
	}

	js.mu.Lock()
	defer js.mu.Unlock()
	if js.closed {
		return JobStatus{}, apierr.ErrUnavailable
	}

	ctx, cancel := context.WithCancel(js.ctx)
	j := &job{
		status: JobStatus{
			ID:        id,
			Solver:    solver.Name(),
			Function:  req.Function,
			Dims:      fn.Dims(),
			State:     JobRunning,
			Status:    optimization.Running,
			CreatedAt: time.Now().UTC(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	js.byID[id] = j

	problem.Observer = func(state *optimization.State) bool {
		js.mu.Lock()
		j.status.Iterations = state.Iterations
		j.status.F = finite(state.F)
		j.status.Criterion = finite(state.ConvergenceCriterion())
		js.mu.Unlock()
		return true
	}

	js.metrics.started()
	js.wg.Add(1)
	go js.run(ctx, j, solver, problem, logger)

	logger.Info("job submitted",
		zap.String("solver", solver.Name()),
		zap.String("function", req.Function),
		zap.Int("dims", fn.Dims()),
		zap.Int("max_iterations", problem.MaxIterations))
	return j.status, nil
}

func (js *jobs) run(ctx context.Context, j *job, solver optimization.Solver, problem optimization.Problem, logger *zap.Logger) {
	defer js.wg.Done()
	defer close(j.done)
	defer j.cancel()

	state, err := solver.Minimize(ctx, problem)
	if err != nil {
		// problems are validated on submission
		logger.Error("minimization rejected", zap.Error(err))
		state = optimization.NewState(problem.Function, problem.X0)
		state.Status = optimization.Failed
	}
	js.metrics.finished(solver.Name(), state)

	js.mu.Lock()
	defer js.mu.Unlock()

	now := time.Now().UTC()
	s := &j.status
	s.State = JobFinished
	s.Status = state.Status
	s.Iterations = state.Iterations
	s.F = finite(state.F)
	s.Criterion = finite(state.ConvergenceCriterion())
	s.X = state.X
	s.FCalls = state.FCalls
	s.GCalls = state.GCalls
	s.FinishedAt = &now

	js.finished = append(js.finished, s.ID)
	for len(js.finished) > js.cfg.retain {
		delete(js.byID, js.finished[0])
		js.finished = js.finished[1:]
	}

	logger.Info("job finished",
		zap.Stringer("status", state.Status),
		zap.Int("iterations", state.Iterations),
		zap.Int("fcalls", state.FCalls),
		zap.Float64("f", state.F))
}

// Get returns a snapshot of the job.
func (js *jobs) Get(id string) (JobStatus, error) {
	js.mu.RLock()
	defer js.mu.RUnlock()

	j, ok := js.byID[id]
	if !ok {
		return JobStatus{}, apierr.NotFound("job %q", id)
	}
	return j.snapshot(), nil
}

// Wait blocks until the job finishes or ctx is done and returns its
// latest snapshot.
func (js *jobs) Wait(ctx context.Context, id string) (JobStatus, error) {
	js.mu.RLock()
	j, ok := js.byID[id]
	js.mu.RUnlock()
	if !ok {
		return JobStatus{}, apierr.NotFound("job %q", id)
	}

	select {
	case <-j.done:
	case <-ctx.Done():
		return JobStatus{}, ctx.Err()
	}

	js.mu.RLock()
	defer js.mu.RUnlock()
	return j.snapshot(), nil
}

// Cancel requests a running job to stop. The solver stops at the next
// iteration boundary with the stopped status.
func (js *jobs) Cancel(id string) (JobStatus, error) {
	js.mu.Lock()
	defer js.mu.Unlock()

	j, ok := js.byID[id]
	if !ok {
		return JobStatus{}, apierr.NotFound("job %q", id)
	}
	if j.status.State == JobFinished {
		return JobStatus{}, apierr.Conflict("job %q already finished with status %s", id, j.status.Status)
	}

	j.cancel()
	j.status.CancelRequested = true
	js.logger.Info("job cancellation requested", zap.String("job", id))
	return j.snapshot(), nil
}

// Close cancels the running jobs, waits for them and rejects new ones.
func (js *jobs) Close() {
	js.mu.Lock()
	js.closed = true
	js.mu.Unlock()

	js.cancel()
	js.wg.Wait()
}

func (j *job) snapshot() JobStatus {
	s := j.status
	s.X = append([]float64(nil), s.X...)
	return s
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
