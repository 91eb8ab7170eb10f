package benchmark

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"text/tabwriter"
)

// WriteTable prints the summaries ranked by convergence and cost.
func (r *Report) WriteTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', tabwriter.AlignRight)

	fmt.Fprintln(tw, "solver\truns\tconverged\tmax_iters\tfailed\tstopped\titerations\tfcalls\tgcalls\tcriterion\t")
	for _, s := range Rank(r.Summaries) {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%.1f\t%.1f\t%.1f\t%.2e\t\n",
			s.Solver, s.Runs, s.Converged, s.MaxIterations, s.Failed, s.Stopped,
			s.Iterations, s.FCalls, s.GCalls, s.Criterion)
	}
	return tw.Flush()
}

// MarshalJSON encodes the non-finite values of diverged runs as null.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	return json.Marshal(struct {
		plain
		F         *float64 `json:"f"`
		Criterion *float64 `json:"criterion"`
	}{plain(r), finite(r.F), finite(r.Criterion)})
}

// MarshalJSON encodes a non-finite mean criterion as null.
func (s Summary) MarshalJSON() ([]byte, error) {
	type plain Summary
	return json.Marshal(struct {
		plain
		Criterion *float64 `json:"mean_criterion"`
	}{plain(s), finite(s.Criterion)})
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
