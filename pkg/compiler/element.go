package compiler

import (
	"strings"

	"github.com/vango-dev/villain/pkg/expr"
	"github.com/vango-dev/villain/pkg/template"
	"github.com/vango-dev/villain/pkg/vdom"
)

type modelKind uint8

const (
	modelValue modelKind = iota
	modelSelect
	modelCheckbox
	modelRadio
)

// model is a lowered v-model binding.
type model struct {
	kind   modelKind
	target *expr.Ident
	value  string // static value of a radio input
	pos    template.Position
}

func (m *model) event() string {
	if m.kind == modelValue {
		return "input"
	}
	return "change"
}

func (l *lowerer) element(n *template.Element) (renderFunc, error) {
	id := l.id()
	static := make(map[string]string)
	var binds, events []*template.Attr
	var mdl *model
	for _, a := range n.Attrs {
		switch a.Kind {
		case template.AttrStatic:
			static[a.Name] = a.Value
		case template.AttrBind:
			binds = append(binds, a)
		case template.AttrEvent:
			events = append(events, a)
		case template.AttrModel:
			target, _ := a.Expr.(*expr.Ident)
			if target == nil {
				return nil, &template.ParseError{Kind: template.MisplacedDirective, Pos: a.Pos, Msg: "v-model needs a plain identifier"}
			}
			mdl = &model{target: target, pos: a.Pos}
			switch {
			case n.Tag == "select":
				mdl.kind = modelSelect
			case strings.EqualFold(static["type"], "checkbox"):
				mdl.kind = modelCheckbox
			case strings.EqualFold(static["type"], "radio"):
				mdl.kind = modelRadio
				mdl.value = static["value"]
			}
		}
	}
	children, err := l.list(n.Children)
	if err != nil {
		return nil, err
	}

	return func(r *run, s *expr.Scope, prefix string, out []*vdom.VNode) []*vdom.VNode {
		key, explicit := r.key(n.Key, s, n.Pos, prefix, id)
		v := &vdom.VNode{Kind: vdom.KindElement, Tag: n.Tag, Key: key, KeyExplicit: explicit}
		attrs := make(map[string]string, len(static)+len(binds))
		for k, val := range static {
			attrs[k] = val
		}
		for _, a := range binds {
			val, ok := r.eval(a.Expr, s, a.Pos)
			if !ok {
				continue
			}
			text, present := attrValue(a.Name, val)
			switch {
			case a.Name == "class" && present:
				attrs["class"] = mergeClass(static["class"], text)
			case present:
				attrs[a.Name] = text
			default:
				delete(attrs, a.Name)
			}
		}

		var handlers map[string]vdom.EventFunc
		if len(events) > 0 || mdl != nil {
			handlers = make(map[string]vdom.EventFunc, len(events)+1)
		}
		if mdl != nil {
			r.bindModel(mdl, s, attrs, handlers)
		}
		for _, a := range events {
			fn := handle(a.Handler, s)
			if prev, ok := handlers[a.Name]; ok {
				fn = chain(prev, fn)
			}
			handlers[a.Name] = fn
		}

		if len(attrs) > 0 {
			v.Attrs = attrs
		}
		v.Events = handlers
		if len(children) > 0 {
			v.Children = appendAll(children, r, s, "", nil)
		}
		return append(out, v)
	}, nil
}

// bindModel renders the current model value into attrs and installs the
// listener writing user input back.
func (r *run) bindModel(m *model, s *expr.Scope, attrs map[string]string, handlers map[string]vdom.EventFunc) {
	cur, ok := r.eval(m.target, s, m.pos)
	if ok {
		switch m.kind {
		case modelCheckbox:
			if expr.Truthy(cur) {
				attrs["checked"] = ""
			} else {
				delete(attrs, "checked")
			}
		case modelRadio:
			if expr.ToString(cur) == m.value {
				attrs["checked"] = ""
			} else {
				delete(attrs, "checked")
			}
		default:
			attrs["value"] = expr.ToString(cur)
		}
	}
	handlers[m.event()] = func(payload any) error {
		raw, found := s.Lookup(m.target.Name)
		w, writable := raw.(expr.Writable)
		if !found || !writable {
			return &expr.EvalError{Pos: m.target.Pos(), Expr: m.target.Name, Err: expr.ErrNotWritable}
		}
		switch m.kind {
		case modelCheckbox:
			w.Write(checkedValue(payload))
		case modelRadio:
			old, _ := w.Read()
			w.Write(coerce(old, m.value))
		default:
			old, _ := w.Read()
			w.Write(coerce(old, payload))
		}
		return nil
	}
}

func chain(first, second vdom.EventFunc) vdom.EventFunc {
	return func(payload any) error {
		if err := first(payload); err != nil {
			return err
		}
		return second(payload)
	}
}
