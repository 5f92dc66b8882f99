package param

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Type is the serialization contract of a parameter value. Format and Parse
// round-trip a value through its text form (used by parameter forms), and
// Coerce normalizes a dynamically typed value (e.g. a JSON number) into the
// Go type the parameter stores.
type Type interface {
	Name() string
	Format(v any) string
	Parse(s string) (any, error)
	Coerce(v any) (any, error)
}

var (
	Int    Type = intType{}
	Float  Type = floatType{}
	String Type = stringType{}
)

type intType struct{}

func (intType) Name() string { return "int" }

func (intType) Format(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func (intType) Parse(s string) (any, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil, &Error{Cause: fmt.Errorf("invalid int value %q", s)}
	}
	return n, nil
}

func (intType) Coerce(v any) (any, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return nil, &Error{Cause: fmt.Errorf("value %v is not an integer", n)}
		}
		if n < math.MinInt || n >= math.MaxInt {
			return nil, &Error{Cause: fmt.Errorf("value %v overflows int", n)}
		}
		return int(n), nil
	default:
		return nil, &Error{Cause: fmt.Errorf("value %v (%T) is not an int", v, v)}
	}
}

type floatType struct{}

func (floatType) Name() string { return "float" }

func (floatType) Format(v any) string {
	f, ok := toFloat(v)
	if !ok {
		return ""
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func (floatType) Parse(s string) (any, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, &Error{Cause: fmt.Errorf("invalid float value %q", s)}
	}
	return f, nil
}

func (floatType) Coerce(v any) (any, error) {
	f, ok := toFloat(v)
	if !ok {
		return nil, &Error{Cause: fmt.Errorf("value %v (%T) is not a float", v, v)}
	}
	return f, nil
}

type stringType struct{}

func (stringType) Name() string { return "string" }

func (stringType) Format(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func (stringType) Parse(s string) (any, error) {
	return s, nil
}

func (stringType) Coerce(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, &Error{Cause: fmt.Errorf("value %v (%T) is not a string", v, v)}
	}
	return s, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
