// Package errors maps the errors of the descent packages to the HTTP status
// codes and JSON-RPC error codes of the minimization service.
package errors

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/pkg/errors"

	"github.com/copyleftdev/descent/internal/optimization"
)

// Service errors.
var (
	// ErrNotFound is returned for unknown job IDs.
	ErrNotFound = stderrors.New("not found")
	// ErrConflict is returned when a job is not in a state allowing the
	// request, e.g. cancelling a finished job.
	ErrConflict = stderrors.New("conflict")
	// ErrBadRequest is returned for malformed requests.
	ErrBadRequest = stderrors.New("bad request")
	// ErrUnavailable is returned once the service is shutting down.
	ErrUnavailable = stderrors.New("service unavailable")
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// Implementation-defined server errors
	CodeNotFound    = -32001
	CodeConflict    = -32002
	CodeUnavailable = -32003
)

// NotFound returns an ErrNotFound error naming the missing resource.
func NotFound(format string, args ...interface{}) error {
	return errors.Wrapf(ErrNotFound, format, args...)
}

// Conflict returns an ErrConflict error describing the state.
func Conflict(format string, args ...interface{}) error {
	return errors.Wrapf(ErrConflict, format, args...)
}

// BadRequest returns an ErrBadRequest error describing the problem.
func BadRequest(format string, args ...interface{}) error {
	return errors.Wrapf(ErrBadRequest, format, args...)
}

// Status returns the HTTP status code of err.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case stderrors.Is(err, ErrBadRequest), stderrors.Is(err, optimization.ErrInvalidConfig):
		return http.StatusBadRequest
	case stderrors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, ErrConflict):
		return http.StatusConflict
	case stderrors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	case stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	if _, ok := optimization.IsOptimizationError(err); ok {
		// precondition violations of Minimize
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Code returns the JSON-RPC error code of err.
func Code(err error) int {
	switch Status(err) {
	case http.StatusBadRequest:
		return CodeInvalidParams
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	case http.StatusServiceUnavailable:
		return CodeUnavailable
	default:
		return CodeInternalError
	}
}
