// Package param implements typed, validated algorithm parameters.
package param

import (
	"errors"
	"slices"
)

// Param is a single named, typed parameter guarded by an ordered list of
// checkers. The stored value only ever changes to a value every checker
// accepted.
type Param struct {
	name     string
	typ      Type
	value    any
	checkers []Checker
}

// New creates a parameter. A nil value leaves the parameter unset; any other
// value is validated exactly like SetValue.
func New(name string, typ Type, value any, checkers ...Checker) (*Param, error) {
	p := &Param{
		name:     name,
		typ:      typ,
		checkers: slices.Clone(checkers),
	}
	if value != nil {
		if err := p.SetValue(value); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// MustNew is New for statically known defaults.
func MustNew(name string, typ Type, value any, checkers ...Checker) *Param {
	p, err := New(name, typ, value, checkers...)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Param) Name() string { return p.name }

func (p *Param) Type() Type { return p.typ }

func (p *Param) Value() any { return p.value }

// IsSet reports whether a value has been assigned.
func (p *Param) IsSet() bool { return p.value != nil }

// Text returns the value formatted by the parameter's type.
func (p *Param) Text() string { return p.typ.Format(p.value) }

// SetValue coerces v to the parameter type and runs the checkers in order.
// The first failure is returned and the stored value is left untouched.
func (p *Param) SetValue(v any) error {
	coerced, err := p.typ.Coerce(v)
	if err != nil {
		return p.wrap(err)
	}
	for _, c := range p.checkers {
		if err := c.Check(coerced); err != nil {
			return p.wrap(err)
		}
	}
	p.value = coerced
	return nil
}

// SetText parses s with the parameter type and assigns it via SetValue.
func (p *Param) SetText(s string) error {
	v, err := p.typ.Parse(s)
	if err != nil {
		return p.wrap(err)
	}
	return p.SetValue(v)
}

// AddChecker appends a checker. It does not re-validate the current value.
func (p *Param) AddChecker(c Checker) {
	p.checkers = append(p.checkers, c)
}

func (p *Param) clone() *Param {
	c := *p
	c.checkers = slices.Clone(p.checkers)
	return &c
}

func (p *Param) wrap(err error) error {
	var pe *Error
	if errors.As(err, &pe) {
		return &Error{Field: p.name, Cause: pe.Cause}
	}
	return &Error{Field: p.name, Cause: err}
}
