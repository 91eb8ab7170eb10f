package optimization

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"
)

// Params is the generic key-value store used to read and write solver
// configuration. Values are typically float64, int or string (as produced by
// JSON decoding, environment variables or command-line flags).
type Params map[string]interface{}

// Clone returns a shallow copy of p.
func (p Params) Clone() Params {
	c := make(Params, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}

// Merge returns a copy of p overridden by the values in other.
func (p Params) Merge(other Params) Params {
	c := p.Clone()
	for k, v := range other {
		c[k] = v
	}
	return c
}

// Keys returns the sorted keys of p.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Float returns the value of key as float64, or def if the key is missing.
func (p Params) Float(key string, def float64) (float64, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return def, InvalidArgument(key, v, "not a number")
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return def, InvalidArgument(key, v, "not a number")
		}
		return f, nil
	default:
		return def, InvalidArgument(key, v, "unsupported type %T", v)
	}
}

// Int returns the value of key as int, or def if the key is missing.
func (p Params) Int(key string, def int) (int, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64:
		if x != math.Trunc(x) {
			return def, InvalidArgument(key, v, "not an integer")
		}
		return int(x), nil
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return def, InvalidArgument(key, v, "not an integer")
		}
		return int(i), nil
	case string:
		i, err := strconv.Atoi(x)
		if err != nil {
			return def, InvalidArgument(key, v, "not an integer")
		}
		return i, nil
	default:
		return def, InvalidArgument(key, v, "unsupported type %T", v)
	}
}

// String returns the value of key as string, or def if the key is missing.
func (p Params) String(key string, def string) (string, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case fmt.Stringer:
		return x.String(), nil
	default:
		return def, InvalidArgument(key, v, "not a string")
	}
}

// Tunable describes the search space of one hyper-parameter.
type Tunable struct {
	Name   string        `json:"name"`
	Values []interface{} `json:"values"`
}

// FiniteSpace builds a tunable from an explicit set of values.
func FiniteSpace(name string, values ...interface{}) Tunable {
	return Tunable{Name: name, Values: values}
}

// LogSpace builds a tunable with n values logarithmically spaced in
// [min, max].
func LogSpace(name string, min, max float64, n int) Tunable {
	grid := make([]float64, n)
	floats.LogSpan(grid, min, max)
	values := make([]interface{}, n)
	for i, v := range grid {
		values[i] = v
	}
	return Tunable{Name: name, Values: values}
}
