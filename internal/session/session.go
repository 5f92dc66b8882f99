package session

import (
	"sync"
	"time"

	"github.com/bearing-monitor/station/internal/algorithm"
	"github.com/bearing-monitor/station/internal/param"
)

// Session is one connected instrument bound to an algorithm. Sessions are
// created by Registry.Add; every value handed out by the registry is a
// detached clone, so writing to its fields changes nothing.
type Session struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DeviceType  string    `json:"deviceType"`
	ConnectedAt time.Time `json:"connectedAt"`

	Factory       algorithm.Factory   `json:"-"`
	AlgorithmName string              `json:"algorithmName"`
	Algorithm     algorithm.Algorithm `json:"-"`
	Params        *param.Set          `json:"-"`
	Data          algorithm.Data      `json:"-"`
	Result        algorithm.Result    `json:"-"`
	Log           []string            `json:"-"`

	StopCalculation    bool `json:"stopCalculation"`
	BackendCalculation bool `json:"backendCalculation"`
	NeedUpdate         bool `json:"needUpdate"`
	AlgorithmChanging  bool `json:"algorithmChanging"`

	AboveArtifact string `json:"aboveArtifact,omitempty"`
	BelowArtifact string `json:"belowArtifact,omitempty"`

	// mu is the owning registry's lock; nil for detached clones.
	mu        *sync.RWMutex
	observers []Observer
}

// Clone returns a detached copy: no observers, an independent parameter set
// and log slice. Data and Result are shared since they are replaced
// wholesale and never mutated in place.
func (s *Session) Clone() *Session {
	c := *s
	c.mu = nil
	c.observers = nil
	c.Params = s.Params.Clone()
	if s.Log != nil {
		c.Log = append([]string(nil), s.Log...)
	}
	return &c
}

// Set assigns value to field and notifies the attached observers when the
// value changed. Setting an equal value is a no-op.
func (s *Session) Set(f Field, value any) (bool, error) {
	s.lock()
	changed, err := s.assign(f, value)
	s.unlock()
	if err != nil || !changed {
		return false, err
	}
	s.Notify(f)
	return true, nil
}

// Attach adds observers in order. An observer whose Name is already attached
// is skipped.
func (s *Session) Attach(obs ...Observer) {
	s.lock()
	defer s.unlock()
	for _, o := range obs {
		if s.attached(o.Name) < 0 {
			s.observers = append(s.observers, o)
		}
	}
}

// Detach removes observers by name. Unknown names are ignored.
func (s *Session) Detach(obs ...Observer) {
	s.lock()
	defer s.unlock()
	for _, o := range obs {
		if i := s.attached(o.Name); i >= 0 {
			s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
		}
	}
}

func (s *Session) DetachAll() {
	s.lock()
	s.observers = nil
	s.unlock()
}

// Observers returns the attached observer names in attachment order.
func (s *Session) Observers() []string {
	s.rlock()
	defer s.runlock()
	names := make([]string, len(s.observers))
	for i, o := range s.observers {
		names[i] = o.Name
	}
	return names
}

// Notify delivers each field, in order, to every attached observer whose
// predicate accepts it. Each observer gets its own fresh snapshot taken at
// delivery time, so it sees changes made by observers before it.
func (s *Session) Notify(fields ...Field) {
	for _, f := range fields {
		s.rlock()
		obs := append([]Observer(nil), s.observers...)
		s.runlock()

		for _, o := range obs {
			s.rlock()
			snap := s.Clone()
			s.runlock()
			if o.When != nil && !o.When(snap, f) {
				continue
			}
			o.Do(snap, f)
		}
	}
}

func (s *Session) NotifyAll() {
	s.Notify(Fields()...)
}

func (s *Session) attached(name string) int {
	for i, o := range s.observers {
		if o.Name == name {
			return i
		}
	}
	return -1
}

func (s *Session) lock() {
	if s.mu != nil {
		s.mu.Lock()
	}
}

func (s *Session) unlock() {
	if s.mu != nil {
		s.mu.Unlock()
	}
}

func (s *Session) rlock() {
	if s.mu != nil {
		s.mu.RLock()
	}
}

func (s *Session) runlock() {
	if s.mu != nil {
		s.mu.RUnlock()
	}
}
