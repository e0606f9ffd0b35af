package compiler

import (
	"fmt"
	"sort"

	"github.com/vango-dev/villain/pkg/expr"
	"github.com/vango-dev/villain/pkg/reactive"
)

// Setup fills an instance's state layer. It runs once per mounted instance,
// before the first render.
type Setup func(c *Context) error

// EmitFunc delivers a component event to the parent's listener.
type EmitFunc func(event string, payload any) error

// Context is what a Setup sees of the instance being mounted: its graph,
// its props and the scope it renders against.
//
// The render scope has two layers. Props shadow state, and loop variables
// pushed during rendering shadow both.
type Context struct {
	graph *reactive.Graph
	state *expr.Scope
	props *expr.Scope
	emit  EmitFunc
}

// NewContext builds the scope layers for an instance. props are the
// instance's prop cells; emit may be nil for a root instance.
func NewContext(g *reactive.Graph, props map[string]*reactive.Signal, emit EmitFunc) *Context {
	c := &Context{graph: g, state: expr.NewScope(nil), emit: emit}
	c.state.Set("emit", expr.Func(func(args ...any) (any, error) {
		if len(args) == 0 || len(args) > 2 {
			return nil, fmt.Errorf("%w: emit takes an event name and an optional payload", expr.ErrType)
		}
		var payload any
		if len(args) == 2 {
			payload = args[1]
		}
		return nil, c.Emit(expr.ToString(args[0]), payload)
	}))
	c.props = c.state.Child()
	for name, sig := range props {
		c.props.Set(name, sig)
	}
	return c
}

// Graph returns the instance's reactive graph.
func (c *Context) Graph() *reactive.Graph { return c.graph }

// Scope returns the scope templates render against.
func (c *Context) Scope() *expr.Scope { return c.props }

// Signal creates a state signal bound to name.
func (c *Context) Signal(name string, initial any, opts ...reactive.Option) *reactive.Signal {
	opts = append([]reactive.Option{reactive.WithName(name)}, opts...)
	s := c.graph.Signal(initial, opts...)
	c.state.Set(name, s)
	return s
}

// Computed binds a derived value to name.
func (c *Context) Computed(name string, fn func() (any, error)) *reactive.Computed {
	cv := c.graph.Computed(fn, reactive.WithName(name))
	c.state.Set(name, cv)
	return cv
}

// Derive binds name to a computed value defined by an expression over the
// render scope.
func (c *Context) Derive(name, src string) error {
	e, err := expr.Parse(src)
	if err != nil {
		return fmt.Errorf("computed %s: %w", name, err)
	}
	scope := c.props
	c.Computed(name, func() (any, error) { return expr.Eval(e, scope) })
	return nil
}

// Func binds a callable. fn is either an expr.Func or any Go func value.
func (c *Context) Func(name string, fn any) {
	c.state.Set(name, fn)
}

// Const binds a plain, non-reactive value.
func (c *Context) Const(name string, v any) {
	c.state.Set(name, v)
}

// Prop reads a prop through the render scope.
func (c *Context) Prop(name string) (any, error) {
	v, ok := c.props.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: prop %s", expr.ErrUndefined, name)
	}
	if r, ok := v.(expr.Readable); ok {
		return r.Read()
	}
	return v, nil
}

// Emit sends a component event to the parent. A root instance has no
// parent and drops it.
func (c *Context) Emit(event string, payload any) error {
	if c.emit == nil {
		return nil
	}
	return c.emit(event, payload)
}

// State describes component state declaratively: initial signal values and
// computed values given as expressions.
type State struct {
	Values   map[string]any    `yaml:"state" mapstructure:"state"`
	Computed map[string]string `yaml:"computed" mapstructure:"computed"`
}

// Setup returns a Setup creating one signal per value and one computed per
// expression, in name order.
func (s State) Setup() Setup {
	return func(c *Context) error {
		for _, name := range sortedNames(s.Values) {
			c.Signal(name, s.Values[name])
		}
		for _, name := range sortedNames(s.Computed) {
			if err := c.Derive(name, s.Computed[name]); err != nil {
				return err
			}
		}
		return nil
	}
}

// StateSetup returns a Setup creating one signal per key of initial.
func StateSetup(initial map[string]any) Setup {
	return State{Values: initial}.Setup()
}

// Chain runs setups in order, stopping at the first error.
func Chain(setups ...Setup) Setup {
	return func(c *Context) error {
		for _, s := range setups {
			if s == nil {
				continue
			}
			if err := s(c); err != nil {
				return err
			}
		}
		return nil
	}
}

func sortedNames[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
