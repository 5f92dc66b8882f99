package param

import "slices"

// Set is an ordered collection of parameters keyed by name. Order is the
// insertion order and is what forms render.
type Set struct {
	names  []string
	params map[string]*Param
}

// NewSet builds a set from params in the given order. A later param with a
// duplicate name replaces the earlier one in place.
func NewSet(params ...*Param) *Set {
	s := &Set{params: make(map[string]*Param, len(params))}
	for _, p := range params {
		s.Add(p)
	}
	return s
}

// Add inserts or replaces p.
func (s *Set) Add(p *Param) {
	if s.params == nil {
		s.params = make(map[string]*Param)
	}
	if _, ok := s.params[p.name]; !ok {
		s.names = append(s.names, p.name)
	}
	s.params[p.name] = p
}

// Get returns the named parameter.
func (s *Set) Get(name string) (*Param, bool) {
	if s == nil {
		return nil, false
	}
	p, ok := s.params[name]
	return p, ok
}

// Names returns parameter names in order.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	return slices.Clone(s.names)
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}

// Params returns the parameters in order.
func (s *Set) Params() []*Param {
	if s == nil {
		return nil
	}
	out := make([]*Param, 0, len(s.names))
	for _, n := range s.names {
		out = append(out, s.params[n])
	}
	return out
}

// Value returns the value of the named parameter, or nil.
func (s *Set) Value(name string) any {
	if p, ok := s.Get(name); ok {
		return p.value
	}
	return nil
}

// Values returns a name → value map.
func (s *Set) Values() map[string]any {
	out := make(map[string]any, s.Len())
	for _, p := range s.Params() {
		out[p.name] = p.value
	}
	return out
}

// SetValue assigns v to the named parameter.
func (s *Set) SetValue(name string, v any) error {
	p, ok := s.Get(name)
	if !ok {
		return newError(name, "unknown parameter")
	}
	return p.SetValue(v)
}

// SetText parses and assigns text to the named parameter.
func (s *Set) SetText(name, text string) error {
	p, ok := s.Get(name)
	if !ok {
		return newError(name, "unknown parameter")
	}
	return p.SetText(text)
}

// Clone returns an independent copy; mutating the copy never affects s.
func (s *Set) Clone() *Set {
	if s == nil {
		return nil
	}
	c := &Set{
		names:  slices.Clone(s.names),
		params: make(map[string]*Param, len(s.params)),
	}
	for n, p := range s.params {
		c.params[n] = p.clone()
	}
	return c
}

// Equal reports whether both sets hold the same names, types and values in
// the same order.
func (s *Set) Equal(o *Set) bool {
	if s == nil || o == nil {
		return s == o
	}
	if !slices.Equal(s.names, o.names) {
		return false
	}
	for _, n := range s.names {
		a, b := s.params[n], o.params[n]
		if a.typ != b.typ || a.value != b.value {
			return false
		}
	}
	return true
}
