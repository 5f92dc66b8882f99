package param

import (
	"errors"
	"fmt"
	"math"
)

// Checker validates a candidate value. Checkers hold no state between calls.
type Checker interface {
	Check(v any) error
}

// Range accepts numbers between Min and Max. Bounds are inclusive unless the
// matching Open flag is set.
type Range struct {
	Min, Max  float64
	LeftOpen  bool
	RightOpen bool
}

func (r Range) Check(v any) error {
	f, ok := toFloat(v)
	if !ok {
		return fmt.Errorf("value %v is not numeric", v)
	}
	switch {
	case math.IsNaN(f) || math.IsInf(f, 0):
		return fmt.Errorf("value %v is not a finite number", v)
	case r.LeftOpen && f <= r.Min:
		return fmt.Errorf("value must be greater than %v", r.Min)
	case !r.LeftOpen && f < r.Min:
		return fmt.Errorf("value must be greater than or equal to %v", r.Min)
	case r.RightOpen && f >= r.Max:
		return fmt.Errorf("value must be less than %v", r.Max)
	case !r.RightOpen && f > r.Max:
		return fmt.Errorf("value must be less than or equal to %v", r.Max)
	}
	return nil
}

// Step accepts multiples of Step.
type Step struct {
	Step float64
}

const stepTolerance = 1e-9

func (s Step) Check(v any) error {
	if s.Step == 0 {
		return errors.New("invalid step value 0")
	}
	f, ok := toFloat(v)
	if !ok {
		return fmt.Errorf("value %v is not numeric", v)
	}
	rem := math.Abs(math.Remainder(f, s.Step))
	if rem > stepTolerance*math.Max(1, math.Abs(f)) {
		return fmt.Errorf("value must be a multiple of %v", s.Step)
	}
	return nil
}

// OneOf accepts only the listed values.
type OneOf []any

func (o OneOf) Check(v any) error {
	if !contains(o, v) {
		return fmt.Errorf("value must be one of %v", []any(o))
	}
	return nil
}

// NotOneOf rejects the listed values.
type NotOneOf []any

func (o NotOneOf) Check(v any) error {
	if contains(o, v) {
		return fmt.Errorf("value must not be one of %v", []any(o))
	}
	return nil
}

func contains(set []any, v any) bool {
	vf, numeric := toFloat(v)
	for _, candidate := range set {
		if numeric {
			if cf, ok := toFloat(candidate); ok && cf == vf {
				return true
			}
			continue
		}
		if candidate == v {
			return true
		}
	}
	return false
}
