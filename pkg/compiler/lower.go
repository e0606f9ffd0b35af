package compiler

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/vango-dev/villain/pkg/expr"
	"github.com/vango-dev/villain/pkg/template"
	"github.com/vango-dev/villain/pkg/vdom"
)

// NodeError is an evaluation failure contained to one template node. The
// node renders with an empty value in place of the failed expression.
type NodeError struct {
	Pos template.Position
	Err error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Pos, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

// Procedure is a lowered template: a tree of closures producing VNodes from
// a scope. A Procedure is immutable and shared by every instance of its
// component.
type Procedure struct {
	roots []renderFunc
}

// Output is the result of one render.
type Output struct {
	Nodes []*vdom.VNode
	// Errors are the contained *NodeError failures of this render.
	Errors []error
}

// renderFunc appends the nodes produced for one template node to out.
// prefix scopes keys to the enclosing loop item.
type renderFunc func(r *run, s *expr.Scope, prefix string, out []*vdom.VNode) []*vdom.VNode

// run is the state of a single render.
type run struct {
	errs  []error
	fatal error
}

// eval evaluates e, containing evaluation errors. Any other error (a cycle
// raised by a computed read) aborts the render.
func (r *run) eval(e expr.Expr, s *expr.Scope, pos template.Position) (any, bool) {
	if r.fatal != nil {
		return nil, false
	}
	v, err := expr.Eval(e, s)
	if err == nil {
		return v, true
	}
	var ee *expr.EvalError
	if errors.As(err, &ee) {
		r.errs = append(r.errs, &NodeError{Pos: pos, Err: err})
		return nil, false
	}
	r.fatal = err
	return nil, false
}

func (r *run) key(k expr.Expr, s *expr.Scope, pos template.Position, prefix, id string) (string, bool) {
	if k != nil {
		if v, ok := r.eval(k, s, pos); ok {
			return prefix + id + "=" + expr.ToString(v), true
		}
	}
	return prefix + id, false
}

// Render evaluates the procedure against s. Reads of reactive cells are
// tracked by whatever frame is active. The returned error is non-nil only
// when the render had to be abandoned; contained failures are reported in
// Output.Errors.
func (p *Procedure) Render(s *expr.Scope) (*Output, error) {
	r := &run{}
	var nodes []*vdom.VNode
	for _, fn := range p.roots {
		nodes = fn(r, s, "", nodes)
	}
	if r.fatal != nil {
		return nil, r.fatal
	}
	return &Output{Nodes: nodes, Errors: r.errs}, nil
}

// Lower compiles a template into a Procedure. Node keys are derived from
// each node's place in the template, so sibling groups stay stable across
// renders.
func Lower(t *template.Template) (*Procedure, error) {
	l := &lowerer{}
	roots, err := l.list(t.Roots)
	if err != nil {
		return nil, err
	}
	return &Procedure{roots: roots}, nil
}

type lowerer struct {
	next int
}

func (l *lowerer) id() string {
	l.next++
	return "n" + strconv.Itoa(l.next)
}

func (l *lowerer) list(nodes []template.Node) ([]renderFunc, error) {
	out := make([]renderFunc, 0, len(nodes))
	for _, n := range nodes {
		fn, err := l.node(n)
		if err != nil {
			return nil, err
		}
		out = append(out, fn)
	}
	return out, nil
}

func (l *lowerer) node(n template.Node) (renderFunc, error) {
	switch n := n.(type) {
	case *template.Element:
		return l.element(n)
	case *template.Text:
		return l.text(n), nil
	case *template.Interpolation:
		return l.interpolation(n), nil
	case *template.Conditional:
		return l.conditional(n, true)
	case *template.Loop:
		return l.loop(n)
	case *template.ComponentRef:
		return l.component(n), nil
	case *template.Fragment:
		return l.fragment(n)
	}
	return nil, fmt.Errorf("compiler: unsupported node %T", n)
}

func appendAll(fns []renderFunc, r *run, s *expr.Scope, prefix string, out []*vdom.VNode) []*vdom.VNode {
	for _, fn := range fns {
		if r.fatal != nil {
			break
		}
		out = fn(r, s, prefix, out)
	}
	return out
}

func (l *lowerer) text(n *template.Text) renderFunc {
	id := l.id()
	return func(_ *run, _ *expr.Scope, prefix string, out []*vdom.VNode) []*vdom.VNode {
		return append(out, &vdom.VNode{Kind: vdom.KindText, Text: n.Value, Key: prefix + id})
	}
}

func (l *lowerer) interpolation(n *template.Interpolation) renderFunc {
	id := l.id()
	return func(r *run, s *expr.Scope, prefix string, out []*vdom.VNode) []*vdom.VNode {
		var text []byte
		for _, p := range n.Parts {
			if p.Expr == nil {
				text = append(text, p.Text...)
				continue
			}
			if v, ok := r.eval(p.Expr, s, n.Pos); ok {
				text = append(text, expr.ToString(v)...)
			}
		}
		return append(out, &vdom.VNode{Kind: vdom.KindText, Text: string(text), Key: prefix + id})
	}
}

func (l *lowerer) fragment(n *template.Fragment) (renderFunc, error) {
	children, err := l.list(n.Children)
	if err != nil {
		return nil, err
	}
	return func(r *run, s *expr.Scope, prefix string, out []*vdom.VNode) []*vdom.VNode {
		return appendAll(children, r, s, prefix, out)
	}, nil
}

// conditional renders the first branch whose condition holds. With no such
// branch it leaves a placeholder, unless it is a loop filter.
func (l *lowerer) conditional(n *template.Conditional, placeholder bool) (renderFunc, error) {
	id := l.id()
	bodies := make([]renderFunc, len(n.Branches))
	for i, b := range n.Branches {
		fn, err := l.node(b.Body)
		if err != nil {
			return nil, err
		}
		bodies[i] = fn
	}
	return func(r *run, s *expr.Scope, prefix string, out []*vdom.VNode) []*vdom.VNode {
		for i, b := range n.Branches {
			if b.Cond != nil {
				v, ok := r.eval(b.Cond, s, n.Pos)
				if r.fatal != nil {
					return out
				}
				if !ok || !expr.Truthy(v) {
					continue
				}
			}
			return bodies[i](r, s, prefix, out)
		}
		if placeholder {
			out = append(out, &vdom.VNode{Kind: vdom.KindPlaceholder, Key: prefix + id})
		}
		return out
	}, nil
}

func (l *lowerer) loop(n *template.Loop) (renderFunc, error) {
	id := l.id()
	var body renderFunc
	var err error
	if c, ok := n.Body.(*template.Conditional); ok && len(c.Branches) == 1 {
		body, err = l.conditional(c, false)
	} else {
		body, err = l.node(n.Body)
	}
	if err != nil {
		return nil, err
	}
	return func(r *run, s *expr.Scope, prefix string, out []*vdom.VNode) []*vdom.VNode {
		src, ok := r.eval(n.Source, s, n.Pos)
		if !ok {
			return out
		}
		err := expr.Iterate(src, func(i int, key, item any) {
			if r.fatal != nil {
				return
			}
			scope := s.Child()
			scope.Set(n.Item, item)
			if n.Index != "" {
				scope.Set(n.Index, key)
			}
			itemPrefix := prefix + id + "#" + strconv.Itoa(i) + "/"
			explicit := false
			if n.Key != nil {
				if k, ok := r.eval(n.Key, scope, n.Pos); ok {
					itemPrefix = prefix + id + ":" + expr.ToString(k) + "/"
					explicit = true
				}
			}
			start := len(out)
			out = body(r, scope, itemPrefix, out)
			if explicit {
				for _, v := range out[start:] {
					v.KeyExplicit = true
				}
			}
		})
		if err != nil {
			r.errs = append(r.errs, &NodeError{Pos: n.Pos, Err: &expr.EvalError{Pos: n.Source.Pos(), Expr: n.Source.String(), Err: err}})
		}
		return out
	}, nil
}

func (l *lowerer) component(n *template.ComponentRef) renderFunc {
	id := l.id()
	return func(r *run, s *expr.Scope, prefix string, out []*vdom.VNode) []*vdom.VNode {
		key, explicit := r.key(n.Key, s, n.Pos, prefix, id)
		v := &vdom.VNode{Kind: vdom.KindComponent, Tag: n.Name, Key: key, KeyExplicit: explicit, Props: map[string]any{}}
		for _, a := range n.Attrs {
			switch a.Kind {
			case template.AttrStatic:
				v.Props[a.Name] = a.Value
			case template.AttrBind:
				val, _ := r.eval(a.Expr, s, a.Pos)
				v.Props[a.Name] = val
			case template.AttrEvent:
				if v.Events == nil {
					v.Events = make(map[string]vdom.EventFunc)
				}
				v.Events[a.Name] = handle(a.Handler, s)
			}
		}
		return append(out, v)
	}
}

// handle binds a handler to the scope it was rendered in.
func handle(h *expr.Handler, s *expr.Scope) vdom.EventFunc {
	return func(payload any) error {
		scope := s.Child()
		scope.Set(expr.EventName, payload)
		return expr.Exec(h, scope)
	}
}
