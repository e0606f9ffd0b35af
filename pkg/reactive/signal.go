package reactive

import "reflect"

// Option configures a cell at creation.
type Option func(*cell)

// WithEqual replaces the equality used to decide whether a write changed a
// signal. Values that are never equal can use func(a, b any) bool { return false }.
func WithEqual(fn func(a, b any) bool) Option {
	return func(c *cell) { c.equal = fn }
}

// WithName labels the cell in cycle errors and debugging output.
func WithName(name string) Option {
	return func(c *cell) { c.name = name }
}

// Signal is a handle to a mutable cell. Reading it inside a tracking frame
// subscribes the frame's reader.
type Signal struct {
	g    *Graph
	slot int32
}

// Signal creates a signal cell holding initial.
func (g *Graph) Signal(initial any, opts ...Option) *Signal {
	c := cell{kind: kindSignal, value: initial}
	for _, o := range opts {
		o(&c)
	}
	return &Signal{g: g, slot: g.alloc(c)}
}

// Get returns the current value and records the dependency.
func (s *Signal) Get() any {
	c := s.g.cell(s.slot)
	if c == nil {
		return nil
	}
	s.g.track(s.slot)
	return c.value
}

// Peek returns the current value without subscribing.
func (s *Signal) Peek() any {
	if c := s.g.cell(s.slot); c != nil {
		return c.value
	}
	return nil
}

// Set stores v and notifies subscribers if it differs from the current
// value. Setting an equal value is a no-op.
func (s *Signal) Set(v any) {
	c := s.g.cell(s.slot)
	if c == nil {
		return
	}
	if c.equals(c.value, v) {
		return
	}
	c.value = v
	s.g.notify(s.slot)
}

// Update sets the signal to fn applied to its current value.
func (s *Signal) Update(fn func(any) any) {
	s.Set(fn(s.Peek()))
}

// Read implements expr.Readable.
func (s *Signal) Read() (any, error) { return s.Get(), nil }

// Write implements expr.Writable.
func (s *Signal) Write(v any) { s.Set(v) }

// Name returns the name given with WithName.
func (s *Signal) Name() string {
	if c := s.g.cell(s.slot); c != nil {
		return c.name
	}
	return ""
}

func (c *cell) equals(a, b any) bool {
	if c.equal != nil {
		return c.equal(a, b)
	}
	return defaultEquals(a, b)
}

// defaultEquals compares basic kinds with == and falls back to
// reflect.DeepEqual for slices, maps and structs.
func defaultEquals(a, b any) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case int:
		bv, ok := b.(int)
		return ok && av == bv
	case int64:
		bv, ok := b.(int64)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case float32:
		bv, ok := b.(float32)
		return ok && av == bv
	default:
		return reflect.DeepEqual(a, b)
	}
}
