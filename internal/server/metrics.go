package server

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/copyleftdev/descent/internal/optimization"
)

// Metrics are the Prometheus collectors of the minimization service.
type Metrics struct {
	runs        *prometheus.CounterVec
	iterations  *prometheus.HistogramVec
	evaluations *prometheus.HistogramVec
	running     prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "descent",
			Name:      "runs_total",
			Help:      "Finished minimization runs by solver and terminal status.",
		}, []string{"solver", "status"}),
		iterations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "descent",
			Name:      "run_iterations",
			Help:      "Outer iterations per finished run.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"solver"}),
		evaluations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "descent",
			Name:      "run_function_evaluations",
			Help:      "Function evaluations per finished run.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}, []string{"solver"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "descent",
			Name:      "jobs_running",
			Help:      "Minimization jobs currently running.",
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.runs, m.iterations, m.evaluations, m.running} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) started() {
	m.running.Inc()
}

func (m *Metrics) finished(solver string, state *optimization.State) {
	m.running.Dec()
	m.runs.WithLabelValues(solver, state.Status.String()).Inc()
	m.iterations.WithLabelValues(solver).Observe(float64(state.Iterations))
	m.evaluations.WithLabelValues(solver).Observe(float64(state.FCalls))
}
