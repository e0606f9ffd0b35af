package template

import (
	"fmt"
	"io"
	"strings"
)

// Dump writes an indented outline of t, one node or attribute per line.
func Dump(w io.Writer, t *Template) error {
	d := &dumper{w: w}
	for _, r := range t.Roots {
		d.node(r, 0)
	}
	return d.err
}

// String returns the Dump outline of t.
func (t *Template) String() string {
	var b strings.Builder
	_ = Dump(&b, t)
	return b.String()
}

type dumper struct {
	w   io.Writer
	err error
}

func (d *dumper) line(depth int, format string, args ...any) {
	if d.err != nil {
		return
	}
	_, d.err = fmt.Fprintf(d.w, "%s%s\n", strings.Repeat("  ", depth), fmt.Sprintf(format, args...))
}

func keySuffix(k fmt.Stringer) string {
	if k == nil {
		return ""
	}
	return " key=" + k.String()
}

func (d *dumper) attrs(attrs []*Attr, depth int) {
	for _, a := range attrs {
		switch a.Kind {
		case AttrStatic:
			d.line(depth, "@static %s=%q", a.Name, a.Value)
		case AttrBind, AttrModel:
			d.line(depth, "@%s %s=%s", a.Kind, a.Name, a.Expr)
		case AttrEvent:
			d.line(depth, "@event %s=%q", a.Name, a.Handler.Source)
		}
	}
}

func (d *dumper) node(n Node, depth int) {
	switch n := n.(type) {
	case *Element:
		d.line(depth, "<%s>%s", n.Tag, keySuffix(n.Key))
		d.attrs(n.Attrs, depth+1)
		for _, c := range n.Children {
			d.node(c, depth+1)
		}
	case *Text:
		d.line(depth, "text %q", n.Value)
	case *Interpolation:
		parts := make([]string, len(n.Parts))
		for i, p := range n.Parts {
			if p.Expr != nil {
				parts[i] = "{" + p.Expr.String() + "}"
			} else {
				parts[i] = fmt.Sprintf("%q", p.Text)
			}
		}
		d.line(depth, "interp %s", strings.Join(parts, " "))
	case *Conditional:
		for i, b := range n.Branches {
			switch {
			case i == 0:
				d.line(depth, "if %s", b.Cond)
			case b.Cond != nil:
				d.line(depth, "else-if %s", b.Cond)
			default:
				d.line(depth, "else")
			}
			d.node(b.Body, depth+1)
		}
	case *Loop:
		vars := n.Item
		if n.Index != "" {
			vars += ", " + n.Index
		}
		d.line(depth, "for %s in %s%s", vars, n.Source, keySuffix(n.Key))
		d.node(n.Body, depth+1)
	case *ComponentRef:
		d.line(depth, "component %s%s", n.Name, keySuffix(n.Key))
		d.attrs(n.Attrs, depth+1)
	case *Fragment:
		d.line(depth, "fragment")
		for _, c := range n.Children {
			d.node(c, depth+1)
		}
	}
}
