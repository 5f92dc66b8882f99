// Package algorithm defines the pluggable computation contract that every
// connected instrument is bound to.
package algorithm

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/bearing-monitor/station/internal/param"
)

// ErrUnknownAlgorithm is returned by a Factory for names outside its catalog.
var ErrUnknownAlgorithm = errors.New("unknown algorithm")

// Data is the normalized input produced by a device adapter. It is treated
// as immutable once built; updates replace it wholesale.
type Data struct {
	Cfg    map[string]any `json:"cfg"`
	Values map[string]any `json:"data"`
}

// Artifact is one named output series. The station never interprets it; the
// presentation side decides how to draw it.
type Artifact struct {
	Title  string    `json:"title"`
	Values []float64 `json:"values"`
}

// Result is the output of one Solve call.
type Result struct {
	Artifacts map[string]Artifact `json:"artifacts"`
	// Order lists artifact names in the order the algorithm produced them.
	Order   []string `json:"order"`
	Summary string   `json:"summary"`
}

// NewResult builds a Result keeping artifacts in argument order.
func NewResult(summary string, named ...NamedArtifact) Result {
	r := Result{
		Artifacts: make(map[string]Artifact, len(named)),
		Summary:   summary,
	}
	for _, n := range named {
		if _, dup := r.Artifacts[n.Name]; !dup {
			r.Order = append(r.Order, n.Name)
		}
		r.Artifacts[n.Name] = n.Artifact
	}
	return r
}

// NamedArtifact pairs an artifact with its name for NewResult.
type NamedArtifact struct {
	Name string
	Artifact
}

// Names returns the artifact names in production order.
func (r Result) Names() []string {
	if len(r.Order) == len(r.Artifacts) {
		return slices.Clone(r.Order)
	}
	return slices.Sorted(maps.Keys(r.Artifacts))
}

// Has reports whether the result carries the named artifact.
func (r Result) Has(name string) bool {
	_, ok := r.Artifacts[name]
	return ok
}

// Algorithm computes a Result from Data and a parameter set.
type Algorithm interface {
	Solve(data Data, params *param.Set) (Result, error)
	// DefaultParams returns a fresh set on every call; callers own it.
	DefaultParams() *param.Set
}

// Factory is the algorithm catalog of one device family.
type Factory interface {
	Algorithm(name string) (Algorithm, error)
	// Names returns the fixed, ordered catalog.
	Names() []string
}

// Error is raised from inside Solve.
type Error struct {
	Algorithm string
	Cause     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("algorithm %s: %v", e.Algorithm, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// RequireSet fails with *Error when any parameter present in params has no
// value.
func RequireSet(name string, params *param.Set) error {
	for _, p := range params.Params() {
		if !p.IsSet() {
			return &Error{Algorithm: name, Cause: fmt.Errorf("parameter %s is not set", p.Name())}
		}
	}
	return nil
}

// Catalog is a Factory over a fixed list of constructors.
type Catalog struct {
	names []string
	ctors map[string]func() Algorithm
}

// Entry registers one algorithm in a Catalog.
type Entry struct {
	Name string
	New  func() Algorithm
}

// NewCatalog builds a Factory whose Names order is the entry order.
func NewCatalog(entries ...Entry) *Catalog {
	c := &Catalog{ctors: make(map[string]func() Algorithm, len(entries))}
	for _, e := range entries {
		c.names = append(c.names, e.Name)
		c.ctors[e.Name] = e.New
	}
	return c
}

func (c *Catalog) Algorithm(name string) (Algorithm, error) {
	mk, ok := c.ctors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
	return mk(), nil
}

func (c *Catalog) Names() []string {
	return slices.Clone(c.names)
}
