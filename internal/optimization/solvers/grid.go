package solvers

import (
	"github.com/copyleftdev/descent/internal/optimization"
)

// Grid enumerates the Cartesian product of the tunable values as solver
// configurations. Combinations with c1 >= c2 are skipped since no
// line-search accepts them.
func Grid(tunables []optimization.Tunable) []optimization.Params {
	grid := []optimization.Params{{}}
	for _, t := range tunables {
		if len(t.Values) == 0 {
			continue
		}
		next := make([]optimization.Params, 0, len(grid)*len(t.Values))
		for _, params := range grid {
			for _, v := range t.Values {
				p := params.Clone()
				p[t.Name] = v
				next = append(next, p)
			}
		}
		grid = next
	}

	valid := grid[:0]
	for _, params := range grid {
		c1, err1 := params.Float(KeyC1, 0)
		c2, err2 := params.Float(KeyC2, 1)
		if err1 == nil && err2 == nil && c1 >= c2 {
			continue
		}
		valid = append(valid, params)
	}
	return valid
}
