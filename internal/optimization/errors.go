package optimization

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidConfig is matched (via errors.Is) by every configuration error.
var ErrInvalidConfig = stderrors.New("invalid configuration")

// Error is a solver or problem error. It renders as
// "component: op: message: cause", omitting the empty parts.
type Error struct {
	Message string
	// Op is the failing operation, e.g. "Problem.Validate"
	Op string
	// Component is the solver or line-search that failed
	Component string
	// Err is the cause, if any
	Err error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	for _, p := range []string{e.Component, e.Op, e.Message} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithOperation sets the failing operation and returns e.
func (e *Error) WithOperation(op string) *Error {
	e.Op = op
	return e
}

// WithComponent sets the failing component and returns e.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

func NewError(message string) *Error {
	return &Error{Message: message}
}

func NewErrorf(format string, args ...interface{}) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches message to err. It returns nil if err is nil.
func WrapError(err error, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Message: message, Err: err}
}

// IsOptimizationError returns the first *Error in the chain of err.
func IsOptimizationError(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ErrInvalidArgument reports a configuration value outside its domain.
type ErrInvalidArgument struct {
	Name    string
	Value   interface{}
	Message string
}

func (e *ErrInvalidArgument) Error() string {
	return fmt.Sprintf("invalid argument %q = %v: %s", e.Name, e.Value, e.Message)
}

// Is makes every ErrInvalidArgument match ErrInvalidConfig.
func (e *ErrInvalidArgument) Is(target error) bool {
	return target == ErrInvalidConfig
}

// InvalidArgument returns a stack-annotated ErrInvalidArgument.
func InvalidArgument(name string, value interface{}, format string, args ...interface{}) error {
	return errors.WithStack(&ErrInvalidArgument{
		Name:    name,
		Value:   value,
		Message: fmt.Sprintf(format, args...),
	})
}
