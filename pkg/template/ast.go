package template

import (
	"github.com/vango-dev/villain/pkg/expr"
)

// Node is a Template AST node. The set of implementations is closed; the
// compiler matches over all of them.
type Node interface {
	Position() Position
	node()
}

// Template is the parsed form of one component's template source.
type Template struct {
	Name  string
	Roots []Node
}

// Element is an HTML element with its attributes and children.
type Element struct {
	Tag      string
	Attrs    []*Attr
	Children []Node
	// Key is the explicit reconciliation key (":key"), or nil.
	Key expr.Expr
	Pos Position
}

// Text is a static text run.
type Text struct {
	Value string
	Pos   Position
}

// Interpolation is a text run containing one or more {{ }} spans.
type Interpolation struct {
	Parts []Part
	Pos   Position
}

// Part is one piece of an interpolated text run: literal text when Expr is nil.
type Part struct {
	Text string
	Expr expr.Expr
}

// Conditional is a v-if / v-else-if / v-else chain. Branches are kept in
// declaration order; the first true branch wins.
type Conditional struct {
	Branches []*Branch
	Pos      Position
}

// Branch is one arm of a Conditional. Cond is nil for v-else.
type Branch struct {
	Cond expr.Expr
	Body Node
}

// Loop is a v-for list render over Source.
type Loop struct {
	Item   string
	Index  string
	Source expr.Expr
	// Key derives each item's reconciliation key; nil falls back to the index.
	Key  expr.Expr
	Body Node
	Pos  Position
}

// ComponentRef is a reference to a registered component.
type ComponentRef struct {
	// Tag is the tag as written; Name is the registry's canonical name.
	Tag   string
	Name  string
	Attrs []*Attr
	Key   expr.Expr
	Pos   Position
}

// Fragment groups nodes without a wrapping element (<template> blocks).
type Fragment struct {
	Children []Node
	Pos      Position
}

func (*Element) node()       {}
func (*Text) node()          {}
func (*Interpolation) node() {}
func (*Conditional) node()   {}
func (*Loop) node()          {}
func (*ComponentRef) node()  {}
func (*Fragment) node()      {}

func (n *Element) Position() Position       { return n.Pos }
func (n *Text) Position() Position          { return n.Pos }
func (n *Interpolation) Position() Position { return n.Pos }
func (n *Conditional) Position() Position   { return n.Pos }
func (n *Loop) Position() Position          { return n.Pos }
func (n *ComponentRef) Position() Position  { return n.Pos }
func (n *Fragment) Position() Position      { return n.Pos }

// AttrKind classifies an attribute.
type AttrKind uint8

const (
	AttrStatic AttrKind = iota // name="value"
	AttrBind                   // :name="expr" or v-bind:name="expr"
	AttrEvent                  // @event="handler" or v-on:event="handler"
	AttrModel                  // v-model="cell"
)

func (k AttrKind) String() string {
	switch k {
	case AttrStatic:
		return "static"
	case AttrBind:
		return "bind"
	case AttrEvent:
		return "event"
	case AttrModel:
		return "model"
	default:
		return "unknown"
	}
}

// Attr is an attribute of an element or component reference.
type Attr struct {
	Kind AttrKind
	// Name is the attribute, prop or event name (without directive prefix).
	Name string
	// Value is the static value, or the source text of the bound expression.
	Value   string
	Expr    expr.Expr
	Handler *expr.Handler
	Pos     Position
}

// Walk calls fn for n and every descendant in document order. Returning
// false from fn skips the node's children.
func Walk(n Node, fn func(Node) bool) {
	if !fn(n) {
		return
	}
	switch n := n.(type) {
	case *Element:
		for _, c := range n.Children {
			Walk(c, fn)
		}
	case *Fragment:
		for _, c := range n.Children {
			Walk(c, fn)
		}
	case *Conditional:
		for _, b := range n.Branches {
			Walk(b.Body, fn)
		}
	case *Loop:
		Walk(n.Body, fn)
	case *Text, *Interpolation, *ComponentRef:
	}
}

// Components returns the canonical names of every component referenced by
// t, in first-use order.
func (t *Template) Components() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range t.Roots {
		Walk(r, func(n Node) bool {
			if c, ok := n.(*ComponentRef); ok && !seen[c.Name] {
				seen[c.Name] = true
				out = append(out, c.Name)
			}
			return true
		})
	}
	return out
}
