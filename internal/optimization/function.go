package optimization

import "fmt"

// Function is a differentiable scalar function of a vector.
type Function interface {
	// Dims returns the dimension of the input vector.
	Dims() int

	// Eval returns the function value at x and stores the gradient in grad.
	// A nil grad requests the value only.
	Eval(x, grad []float64) float64
}

// FuncGrad adapts a value/gradient pair of closures to Function. The
// signatures match the Func/Grad methods of gonum's optimize/functions.
type FuncGrad struct {
	N    int
	Func func(x []float64) float64
	Grad func(grad, x []float64)
}

// Dims returns the dimension of the function.
func (fg FuncGrad) Dims() int {
	return fg.N
}

// Eval computes the function value and, if grad is not nil, the gradient.
func (fg FuncGrad) Eval(x, grad []float64) float64 {
	if grad != nil {
		fg.Grad(grad, x)
	}
	return fg.Func(x)
}

// Counter wraps a Function to keep track of the number of function value and
// gradient evaluations.
type Counter struct {
	fn     Function
	fcalls int
	gcalls int
}

// NewCounter creates a new Counter around fn.
func NewCounter(fn Function) *Counter {
	return &Counter{fn: fn}
}

// Dims returns the dimension of the wrapped function.
func (c *Counter) Dims() int {
	return c.fn.Dims()
}

// Eval forwards to the wrapped function and counts the call.
func (c *Counter) Eval(x, grad []float64) float64 {
	c.fcalls++
	if grad != nil {
		c.gcalls++
	}
	return c.fn.Eval(x, grad)
}

// FCalls returns the number of function value evaluations.
func (c *Counter) FCalls() int {
	return c.fcalls
}

// GCalls returns the number of gradient evaluations.
func (c *Counter) GCalls() int {
	return c.gcalls
}

// String implements fmt.Stringer.
func (c *Counter) String() string {
	return fmt.Sprintf("fcalls=%d gcalls=%d", c.fcalls, c.gcalls)
}
