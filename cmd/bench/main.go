// Command bench compares the descent solvers over the registered test
// problems and optionally tunes their line-search constants.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/copyleftdev/descent/internal/benchmark"
	"github.com/copyleftdev/descent/internal/config"
	"github.com/copyleftdev/descent/internal/logging"
	"github.com/copyleftdev/descent/internal/optimization/solvers"
	"github.com/copyleftdev/descent/internal/optimization/tuning"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "bench: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	solvers        string
	functions      string
	dims           string
	trials         int
	seed           uint64
	workers        int
	maxIterations  int
	epsilon        float64
	json           bool
	tune           bool
	tuneIterations int
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var opts options
	fs := flag.NewFlagSet("bench", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.solvers, "solvers", "", "comma-separated solvers (default all)")
	fs.StringVar(&opts.functions, "functions", "", "comma-separated test functions (default all)")
	fs.StringVar(&opts.dims, "dims", "", "comma-separated dimensions of the variable-size functions")
	fs.IntVar(&opts.trials, "trials", cfg.Benchmark.Trials, "random starting points per problem")
	fs.Uint64Var(&opts.seed, "seed", cfg.Benchmark.Seed, "seed of the starting points")
	fs.IntVar(&opts.workers, "workers", cfg.Benchmark.Workers, "concurrent runs")
	fs.IntVar(&opts.maxIterations, "max-iterations", cfg.Solver.MaxIterations, "iteration budget per run")
	fs.Float64Var(&opts.epsilon, "epsilon", cfg.Solver.Epsilon, "convergence threshold")
	fs.BoolVar(&opts.json, "json", false, "write the report as JSON")
	fs.BoolVar(&opts.tune, "tune", false, "tune the line-search constants of each solver")
	fs.IntVar(&opts.tuneIterations, "tune-iterations", tuning.DefaultIterations, "guided evaluations per tuned solver")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger, err := logging.NewLogger(&cfg.Logging)
	if err != nil {
		return err
	}
	zlog := logging.NewZapLogger(logger).Named("bench")

	dims, err := parseDims(opts.dims)
	if err != nil {
		return err
	}
	bench := benchmark.Options{
		Solvers:       split(opts.solvers),
		Functions:     split(opts.functions),
		Dims:          dims,
		Trials:        opts.trials,
		MaxIterations: opts.maxIterations,
		Epsilon:       opts.epsilon,
		Seed:          opts.seed,
		Workers:       opts.workers,
		Logger:        zlog,
	}

	if opts.tune {
		return tune(ctx, bench, opts, zlog, stdout)
	}

	report, err := benchmark.Run(ctx, bench)
	if err != nil {
		return err
	}
	if opts.json {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return report.WriteTable(stdout)
}

func tune(ctx context.Context, bench benchmark.Options, opts options, logger *zap.Logger, w io.Writer) error {
	names := bench.Solvers
	if len(names) == 0 {
		names = solvers.Names()
	}

	results := make([]*tuning.LineSearchResult, 0, len(names))
	for _, name := range names {
		res, err := tuning.TuneLineSearch(ctx, name, tuning.LineSearchOptions{
			Benchmark: bench,
			Search: tuning.Options{
				Iterations: opts.tuneIterations,
				Seed:       opts.seed,
				Logger:     logger,
			},
		})
		if err != nil {
			return errors.Wrapf(err, "tuning %s", name)
		}
		results = append(results, res)
	}

	if opts.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	for _, res := range results {
		// the untouched defaults are reported when tuning found nothing better
		solver, err := solvers.New(res.Solver, res.Params)
		if err != nil {
			return err
		}
		cfg := solver.Config()
		if _, err := fmt.Fprintf(w, "%-10s c1=%.3g c2=%.3g cost=%.1f base=%.1f\n",
			res.Solver, cfg[solvers.KeyC1], cfg[solvers.KeyC2], res.Cost, res.BaseCost); err != nil {
			return err
		}
	}
	return nil
}

func split(list string) []string {
	var out []string
	for _, s := range strings.Split(list, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseDims(list string) ([]int, error) {
	var dims []int
	for _, s := range split(list) {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return nil, errors.Errorf("invalid dimension %q", s)
		}
		dims = append(dims, n)
	}
	return dims, nil
}
