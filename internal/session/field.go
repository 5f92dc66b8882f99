package session

import (
	"errors"
	"fmt"
	"reflect"
	"slices"

	"github.com/google/go-cmp/cmp"

	"github.com/bearing-monitor/station/internal/algorithm"
	"github.com/bearing-monitor/station/internal/param"
)

var (
	ErrUnknownField = errors.New("unknown session field")
	ErrFieldType    = errors.New("wrong value type for session field")
)

// Field names an observable session attribute.
type Field string

const (
	FieldName               Field = "name"
	FieldAlgorithmName      Field = "algorithmName"
	FieldAlgorithm          Field = "algorithm"
	FieldParams             Field = "algorithmParams"
	FieldData               Field = "algorithmData"
	FieldResult             Field = "algorithmResult"
	FieldLog                Field = "log"
	FieldStopCalculation    Field = "stopCalculation"
	FieldBackendCalculation Field = "backendCalculation"
	FieldNeedUpdate         Field = "needUpdate"
	FieldAlgorithmChanging  Field = "algorithmChanging"
	FieldAboveArtifact      Field = "aboveArtifact"
	FieldBelowArtifact      Field = "belowArtifact"
)

// Assignment is one field write; SetFields applies a slice of them in order.
type Assignment struct {
	Field Field
	Value any
}

func Assign(f Field, v any) Assignment {
	return Assignment{Field: f, Value: v}
}

type accessor struct {
	get    func(*Session) any
	assign func(*Session, any) (bool, error)
}

// fieldTable is the only place that knows how a field is read, compared and
// written. Declaration order is the order NotifyAll uses.
var (
	fieldOrder []Field
	fieldTable = map[Field]accessor{}
)

func init() {
	declare(FieldName, slot(func(s *Session) *string { return &s.Name }, equal[string]))
	declare(FieldAlgorithmName, slot(func(s *Session) *string { return &s.AlgorithmName }, equal[string]))
	declare(FieldAlgorithm, slot(func(s *Session) *algorithm.Algorithm { return &s.Algorithm }, sameAlgorithm))
	declare(FieldParams, owned(slot(func(s *Session) **param.Set { return &s.Params }, (*param.Set).Equal), (*param.Set).Clone))
	declare(FieldData, slot(func(s *Session) *algorithm.Data { return &s.Data }, deepEqual[algorithm.Data]))
	declare(FieldResult, slot(func(s *Session) *algorithm.Result { return &s.Result }, deepEqual[algorithm.Result]))
	declare(FieldLog, slot(func(s *Session) *[]string { return &s.Log }, equalLines))
	declare(FieldStopCalculation, slot(func(s *Session) *bool { return &s.StopCalculation }, equal[bool]))
	declare(FieldBackendCalculation, slot(func(s *Session) *bool { return &s.BackendCalculation }, equal[bool]))
	declare(FieldNeedUpdate, slot(func(s *Session) *bool { return &s.NeedUpdate }, equal[bool]))
	declare(FieldAlgorithmChanging, slot(func(s *Session) *bool { return &s.AlgorithmChanging }, equal[bool]))
	declare(FieldAboveArtifact, slot(func(s *Session) *string { return &s.AboveArtifact }, equal[string]))
	declare(FieldBelowArtifact, slot(func(s *Session) *string { return &s.BelowArtifact }, equal[string]))
}

func declare(f Field, a accessor) {
	fieldOrder = append(fieldOrder, f)
	fieldTable[f] = a
}

// Fields returns every observable field in declaration order.
func Fields() []Field {
	return slices.Clone(fieldOrder)
}

// Get returns the current value of f.
func (s *Session) Get(f Field) (any, error) {
	a, ok := fieldTable[f]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, f)
	}
	s.rlock()
	defer s.runlock()
	return a.get(s), nil
}

func (s *Session) assign(f Field, v any) (bool, error) {
	a, ok := fieldTable[f]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownField, f)
	}
	return a.assign(s, v)
}

func slot[T any](ptr func(*Session) *T, eq func(a, b T) bool) accessor {
	return accessor{
		get: func(s *Session) any { return *ptr(s) },
		assign: func(s *Session, v any) (bool, error) {
			tv, ok := v.(T)
			if !ok {
				if v != nil || !nilable[T]() {
					return false, fmt.Errorf("%w: want %v, got %T", ErrFieldType, reflect.TypeFor[T](), v)
				}
				var zero T
				tv = zero
			}
			dst := ptr(s)
			if eq(*dst, tv) {
				return false, nil
			}
			*dst = tv
			return true, nil
		},
	}
}

// owned makes the session keep its own copy of assigned values, so later
// edits by the caller cannot change session state unobserved.
func owned[T any](a accessor, clone func(T) T) accessor {
	assign := a.assign
	a.assign = func(s *Session, v any) (bool, error) {
		if tv, ok := v.(T); ok {
			v = clone(tv)
		}
		return assign(s, v)
	}
	return a
}

func nilable[T any]() bool {
	switch reflect.TypeFor[T]().Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Slice, reflect.Map:
		return true
	}
	return false
}

func equal[T comparable](a, b T) bool { return a == b }

func deepEqual[T any](a, b T) bool { return cmp.Equal(a, b) }

func equalLines(a, b []string) bool { return slices.Equal(a, b) }

// sameAlgorithm treats equal instances of the same comparable type as the
// same binding. Instances of uncomparable types always count as changed.
func sameAlgorithm(a, b algorithm.Algorithm) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
