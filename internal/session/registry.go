package session

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/bearing-monitor/station/internal/algorithm"
	"github.com/bearing-monitor/station/internal/param"
)

var (
	ErrNotFound      = errors.New("session not found")
	ErrAlreadyExists = errors.New("session already exists")
)

// Init describes a session at registration time.
type Init struct {
	ID                 string
	Name               string
	DeviceType         string
	Factory            algorithm.Factory
	AlgorithmName      string
	Algorithm          algorithm.Algorithm
	Params             *param.Set
	BackendCalculation bool
}

type Option func(*Registry)

// WithMaxLogLines bounds each session log. Values below one keep the default.
func WithMaxLogLines(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.maxLog = n
		}
	}
}

// WithClock replaces time.Now for connection and data timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// Registry owns all live sessions. Readers get detached clones; observers
// always run with the lock released so they may call back into the registry.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string
	defaults []Observer
	onAdd    func(*Session)
	onRemove func(id string)
	maxLog   int
	now      func() time.Time
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[string]*Session),
		maxLog:   DefaultMaxLogLines,
		now:      time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// SetDefaultObservers replaces the observers attached to sessions added from
// now on.
func (r *Registry) SetDefaultObservers(obs ...Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaults = slices.Clone(obs)
}

// SetAddHook installs fn to run with a snapshot of every newly added session.
func (r *Registry) SetAddHook(fn func(*Session)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onAdd = fn
}

// SetRemoveHook installs fn to run with the id of every removed session.
func (r *Registry) SetRemoveHook(fn func(id string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRemove = fn
}

// Add registers a new session, attaches the default observers, runs the add
// hook and logs the connection.
func (r *Registry) Add(in Init) (*Session, error) {
	r.mu.Lock()
	if _, ok := r.sessions[in.ID]; ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, in.ID)
	}
	s := &Session{
		ID:                 in.ID,
		Name:               in.Name,
		DeviceType:         in.DeviceType,
		ConnectedAt:        r.now(),
		Factory:            in.Factory,
		AlgorithmName:      in.AlgorithmName,
		Algorithm:          in.Algorithm,
		Params:             in.Params.Clone(),
		BackendCalculation: in.BackendCalculation,
		mu:                 &r.mu,
		observers:          append([]Observer{r.dataReceived()}, r.defaults...),
	}
	r.sessions[in.ID] = s
	r.order = append(r.order, in.ID)
	hook := r.onAdd
	snap := s.Clone()
	r.mu.Unlock()

	if hook != nil {
		hook(snap)
	}
	// The add hook may already have removed it again.
	_ = r.Log(in.ID, Info, fmt.Sprintf("Client %s connected.", snap.Name))
	return snap, nil
}

// Remove deletes a session, detaches its observers and runs the remove hook.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(r.sessions, id)
	if i := slices.Index(r.order, id); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}
	s.observers = nil
	hook := r.onRemove
	r.mu.Unlock()

	if hook != nil {
		hook(id)
	}
	return nil
}

// SetFields applies the assignments in order, each as its own observable
// mutation. It stops at the first rejected assignment.
func (r *Registry) SetFields(id string, as ...Assignment) error {
	s, err := r.live(id)
	if err != nil {
		return err
	}
	for _, a := range as {
		if _, err := s.Set(a.Field, a.Value); err != nil {
			return fmt.Errorf("session %s: %w", id, err)
		}
	}
	return nil
}

// dataReceived logs the arrival of new data. It is attached ahead of the
// default observers so the line precedes anything they log for that data.
func (r *Registry) dataReceived() Observer {
	return Observer{
		Name: "registry.dataReceived",
		When: OnFields(FieldData),
		Do: func(s *Session, _ Field) {
			_ = r.Log(s.ID, Info, "Data received at "+r.now().Format("15:04:05.000000")+".")
		},
	}
}

// Log appends a level-tagged line to the session log, dropping the oldest
// line once the bound is reached.
func (r *Registry) Log(id string, level Level, text string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.Log = appendBounded(s.Log, FormatLine(level, text), r.maxLog)
	r.mu.Unlock()

	s.Notify(FieldLog)
	return nil
}

func (r *Registry) Attach(id string, obs ...Observer) error {
	s, err := r.live(id)
	if err != nil {
		return err
	}
	s.Attach(obs...)
	return nil
}

func (r *Registry) Detach(id string, obs ...Observer) error {
	s, err := r.live(id)
	if err != nil {
		return err
	}
	s.Detach(obs...)
	return nil
}

// Notify re-delivers fields of a session without changing them.
func (r *Registry) Notify(id string, fields ...Field) error {
	s, err := r.live(id)
	if err != nil {
		return err
	}
	s.Notify(fields...)
	return nil
}

func (r *Registry) NotifyAll(id string) error {
	return r.Notify(id, Fields()...)
}

// Get returns a detached copy of the session.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.Clone(), nil
}

// Field returns a detached copy of one field value.
func (r *Registry) Field(id string, f Field) (any, error) {
	s, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	return s.Get(f)
}

func (r *Registry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[id]
	return ok
}

// All returns detached copies of every session in connection order.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.sessions[id].Clone())
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) live(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}
