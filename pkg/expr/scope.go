package expr

import "sort"

// Scope is a layered mapping from identifier to value. Lookups walk from the
// innermost layer outwards, so loop variables shadow props and props shadow
// component state.
type Scope struct {
	vars   map[string]any
	parent *Scope
}

// NewScope creates a scope layered over parent (which may be nil).
func NewScope(parent *Scope) *Scope {
	return &Scope{parent: parent}
}

// Child returns a new inner layer.
func (s *Scope) Child() *Scope {
	return NewScope(s)
}

// Parent returns the enclosing layer, or nil for the outermost one.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// Set binds name in this layer.
func (s *Scope) Set(name string, v any) {
	if s.vars == nil {
		s.vars = make(map[string]any, 4)
	}
	s.vars[name] = v
}

// Lookup returns the raw binding for name without reading reactive cells.
func (s *Scope) Lookup(name string) (any, bool) {
	for l := s; l != nil; l = l.parent {
		if v, ok := l.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Names returns every visible name, sorted.
func (s *Scope) Names() []string {
	seen := make(map[string]struct{})
	for l := s; l != nil; l = l.parent {
		for k := range l.vars {
			seen[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
