package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/pkg/errors"

	"github.com/copyleftdev/descent/internal/logging"
	"github.com/copyleftdev/descent/internal/optimization"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging logging.Config
	Solver  struct {
		MaxIterations int     `env:"SOLVER_MAX_ITERATIONS" envDefault:"1000"`
		Epsilon       float64 `env:"SOLVER_EPSILON" envDefault:"1e-6"`
		// Upper bound on the iterations a service request may ask for
		IterationLimit int `env:"SOLVER_ITERATION_LIMIT" envDefault:"100000"`
		// Finished jobs kept for status queries
		RetainJobs int `env:"SOLVER_RETAIN_JOBS" envDefault:"1000"`
		// Largest problem dimension a service request may ask for
		MaxDims int `env:"SOLVER_MAX_DIMS" envDefault:"1000"`
	}
	Benchmark struct {
		Workers int    `env:"BENCH_WORKERS" envDefault:"4"`
		Trials  int    `env:"BENCH_TRIALS" envDefault:"10"`
		Seed    uint64 `env:"BENCH_SEED" envDefault:"1"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}

	// Parse environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "parsing environment")
	}

	// Set default logging level based on environment
	if cfg.Logging.Level == "" {
		if cfg.Environment == "development" {
			cfg.Logging.Level = "debug"
		} else {
			cfg.Logging.Level = "info"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the ranges of the numeric settings.
func (c *Config) Validate() error {
	switch {
	case c.HTTP.Port <= 0 || c.HTTP.Port > 65535:
		return optimization.InvalidArgument("HTTP_PORT", c.HTTP.Port, "must be in [1, 65535]")
	case c.Solver.MaxIterations <= 0:
		return optimization.InvalidArgument("SOLVER_MAX_ITERATIONS", c.Solver.MaxIterations, "must be positive")
	case !(c.Solver.Epsilon > 0):
		return optimization.InvalidArgument("SOLVER_EPSILON", c.Solver.Epsilon, "must be positive")
	case c.Solver.IterationLimit < c.Solver.MaxIterations:
		return optimization.InvalidArgument("SOLVER_ITERATION_LIMIT", c.Solver.IterationLimit, "must be at least SOLVER_MAX_ITERATIONS")
	case c.Solver.RetainJobs <= 0:
		return optimization.InvalidArgument("SOLVER_RETAIN_JOBS", c.Solver.RetainJobs, "must be positive")
	case c.Solver.MaxDims <= 0:
		return optimization.InvalidArgument("SOLVER_MAX_DIMS", c.Solver.MaxDims, "must be positive")
	case c.Benchmark.Workers <= 0:
		return optimization.InvalidArgument("BENCH_WORKERS", c.Benchmark.Workers, "must be positive")
	case c.Benchmark.Trials <= 0:
		return optimization.InvalidArgument("BENCH_TRIALS", c.Benchmark.Trials, "must be positive")
	}
	return nil
}
