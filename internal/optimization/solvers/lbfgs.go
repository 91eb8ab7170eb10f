package solvers

import (
	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/descent/internal/optimization"
)

// Pair is an L-BFGS curvature pair: the displacement S = x_{k+1} - x_k and
// the gradient change Y = g_{k+1} - g_k, with Rho = 1/(S·Y).
type Pair struct {
	S, Y []float64
	Rho  float64
}

// History is a bounded buffer of curvature pairs. When full, adding a pair
// evicts the oldest one.
type History struct {
	pairs []Pair
	head  int
	count int
}

// NewHistory creates a history of at most size pairs.
func NewHistory(size int) *History {
	return &History{pairs: make([]Pair, size)}
}

// Len returns the number of stored pairs.
func (h *History) Len() int {
	return h.count
}

// At returns the i-th stored pair, 0 being the oldest.
func (h *History) At(i int) Pair {
	return h.pairs[(h.head+i)%len(h.pairs)]
}

// Push stores the pair (s, y). Pairs without positive curvature are ignored
// since they would not keep the inverse Hessian approximation positive
// definite. Push reports whether the pair was stored.
func (h *History) Push(s, y []float64) bool {
	if len(h.pairs) == 0 {
		return false
	}
	sy := floats.Dot(s, y)
	if !(sy > 0) {
		return false
	}

	var slot int
	if h.count < len(h.pairs) {
		slot = (h.head + h.count) % len(h.pairs)
		h.count++
	} else {
		slot = h.head
		h.head = (h.head + 1) % len(h.pairs)
	}

	p := &h.pairs[slot]
	p.S = append(p.S[:0], s...)
	p.Y = append(p.Y[:0], y...)
	p.Rho = 1 / sy
	return true
}

// TwoLoop stores -H·g in dst, where H is the L-BFGS approximation of the
// inverse Hessian built from the pairs of h. With an empty history dst = -g.
// See "Numerical optimization", Nocedal & Wright, 2nd edition, p.178.
func TwoLoop(dst, g []float64, h *History) {
	n := h.Len()
	alpha := make([]float64, n)

	q := dst
	copy(q, g)
	for i := n - 1; i >= 0; i-- {
		p := h.At(i)
		alpha[i] = p.Rho * floats.Dot(p.S, q)
		floats.AddScaled(q, -alpha[i], p.Y)
	}

	if n > 0 {
		// scale with the most recent pair
		p := h.At(n - 1)
		floats.Scale(1/(p.Rho*floats.Dot(p.Y, p.Y)), q)
	}

	r := q
	for i := 0; i < n; i++ {
		p := h.At(i)
		beta := p.Rho * floats.Dot(p.Y, r)
		floats.AddScaled(r, alpha[i]-beta, p.S)
	}

	floats.Scale(-1, r)
}

// limitedMemory is the L-BFGS method.
type limitedMemory struct {
	history *History
	s, y    []float64
}

func newLimitedMemory(size, n int) *limitedMemory {
	return &limitedMemory{
		history: NewHistory(size),
		s:       make([]float64, n),
		y:       make([]float64, n),
	}
}

func (l *limitedMemory) direction(state *optimization.State) {
	TwoLoop(state.D, state.G, l.history)
}

func (l *limitedMemory) accepted(_ optimization.Function, prev, state *optimization.State) {
	floats.SubTo(l.s, state.X, prev.X)
	floats.SubTo(l.y, state.G, prev.G)
	l.history.Push(l.s, l.y)
}
