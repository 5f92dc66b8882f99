// Package enginetest provides a scripted algorithm catalog whose runs can be
// held, released and inspected from tests.
package enginetest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bearing-monitor/station/internal/algorithm"
	"github.com/bearing-monitor/station/internal/param"
)

// Run records one Solve call.
type Run struct {
	Algorithm string
	Data      any
	Gain      any
}

// Script drives every algorithm created by its Factory. Solve reads
// Data.Values["data"]; the values "fail" and "panic" make it fail or panic.
type Script struct {
	mu      sync.Mutex
	hold    bool
	runs    []Run
	release chan struct{}
	started chan Run
}

func NewScript() *Script {
	return &Script{
		release: make(chan struct{}, 64),
		started: make(chan Run, 64),
	}
}

// Hold makes subsequent runs block until Release is called once per run.
func (s *Script) Hold() {
	s.mu.Lock()
	s.hold = true
	s.mu.Unlock()
}

// Release lets one held run finish. Tokens are buffered, so it may be called
// before the run starts.
func (s *Script) Release() {
	s.release <- struct{}{}
}

// Started yields each run as it begins.
func (s *Script) Started() <-chan Run {
	return s.started
}

func (s *Script) Runs() []Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Run(nil), s.runs...)
}

// Factory returns a catalog of scripted algorithms with the given names.
// Each one defaults its "gain" parameter to the length of its name.
func (s *Script) Factory(names ...string) algorithm.Factory {
	entries := make([]algorithm.Entry, len(names))
	for i, n := range names {
		entries[i] = algorithm.Entry{
			Name: n,
			New:  func() algorithm.Algorithm { return scripted{name: n, script: s} },
		}
	}
	return algorithm.NewCatalog(entries...)
}

type scripted struct {
	name   string
	script *Script
}

func (a scripted) DefaultParams() *param.Set {
	return param.NewSet(param.MustNew("gain", param.Int, len(a.name), param.Range{Min: 0, Max: 100}))
}

func (a scripted) Solve(data algorithm.Data, params *param.Set) (algorithm.Result, error) {
	if err := algorithm.RequireSet(a.name, params); err != nil {
		return algorithm.Result{}, err
	}
	v := data.Values["data"]
	run := Run{Algorithm: a.name, Data: v, Gain: params.Value("gain")}

	s := a.script
	s.mu.Lock()
	s.runs = append(s.runs, run)
	hold := s.hold
	s.mu.Unlock()

	select {
	case s.started <- run:
	default:
	}
	if hold {
		<-s.release
	}

	switch v {
	case "fail":
		return algorithm.Result{}, &algorithm.Error{Algorithm: a.name, Cause: errors.New("scripted failure")}
	case "panic":
		panic("scripted panic")
	}
	return algorithm.NewResult(fmt.Sprintf("%s data=%v", a.name, v),
		algorithm.NamedArtifact{Name: "first", Artifact: algorithm.Artifact{Title: "first", Values: []float64{1, 2}}},
		algorithm.NamedArtifact{Name: "second", Artifact: algorithm.Artifact{Title: "second", Values: []float64{3, 4}}},
	), nil
}
