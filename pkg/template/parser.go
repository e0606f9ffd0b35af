package template

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/vango-dev/villain/pkg/expr"
)

// Resolver maps a component tag to its canonical registered name.
type Resolver interface {
	Resolve(tag string) (name string, ok bool)
}

// Options configure a parse.
type Options struct {
	// Name labels errors; usually the component name or file path.
	Name string
	// Components resolves component tags. Nil resolves nothing, so any
	// component tag is an UnresolvedComponent error.
	Components Resolver
	Whitespace Whitespace
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

var modelElements = map[string]bool{"input": true, "textarea": true, "select": true}

// IsComponentTag reports whether tag names a component rather than an HTML
// element: it contains an upper-case letter or a dash.
func IsComponentTag(tag string) bool {
	for i := 0; i < len(tag); i++ {
		if c := tag[i]; c == '-' || (c >= 'A' && c <= 'Z') {
			return true
		}
	}
	return false
}

// Parse parses template source. A source holding a top-level <template>
// block is treated as a single-file component: the block's content becomes
// the template and top-level <script> and <style> blocks are skipped.
//
// Parse is deterministic: the same source and options give an equal tree.
func Parse(src string, opts Options) (*Template, error) {
	p := &parser{src: src, lines: newLineIndex(src), opts: opts}
	roots, err := p.parseChildren("", 0, true)
	if err != nil {
		return nil, err
	}
	if p.sfc != nil {
		for _, n := range roots {
			if t, ok := n.(*Text); !ok || !isBlank(t.Value) {
				return nil, p.errorf(MisplacedDirective, n.Position().Offset, "content outside the <template> block")
			}
		}
		roots = p.sfc.Children
	}
	return &Template{Name: opts.Name, Roots: roots}, nil
}

type parser struct {
	src   string
	pos   int
	lines lineIndex
	opts  Options
	sfc   *Fragment
}

func (p *parser) errorf(kind ErrorKind, off int, format string, args ...any) *ParseError {
	return &ParseError{
		Kind: kind,
		Name: p.opts.Name,
		Pos:  p.lines.position(off),
		Msg:  fmt.Sprintf(format, args...),
	}
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) skipSpace() {
	for !p.eof() && isSpace(p.src[p.pos]) {
		p.pos++
	}
}

func isNameStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9') || c == '-' || c == '_' || c == ':' || c == '.'
}

func (p *parser) readName() string {
	start := p.pos
	for !p.eof() && isNameChar(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos]
}

// startsMarkup reports whether the '<' at the cursor opens a tag, a closing
// tag or a comment. Any other '<' is literal text.
func (p *parser) startsMarkup() bool {
	if p.pos+1 >= len(p.src) {
		return false
	}
	c := p.src[p.pos+1]
	return isNameStart(c) || c == '/' || c == '!'
}

type condKind uint8

const (
	condNone condKind = iota
	condIf
	condElseIf
	condElse
)

// parsed is one element-level result handed back to parseChildren.
type parsed struct {
	node Node
	cond condKind
	test expr.Expr
	skip bool
}

// parseChildren parses sibling nodes until the closing tag of parent, or
// EOF at the top level.
func (p *parser) parseChildren(parent string, openAt int, top bool) ([]Node, error) {
	var (
		nodes []Node
		chain *Conditional
	)
	for {
		if p.eof() {
			if parent != "" {
				return nil, p.errorf(UnexpectedEOF, p.pos, "missing </%s> for element opened at %s", parent, p.lines.position(openAt))
			}
			return nodes, nil
		}

		switch {
		case strings.HasPrefix(p.src[p.pos:], "<!--"):
			end := strings.Index(p.src[p.pos+4:], "-->")
			if end < 0 {
				return nil, p.errorf(UnterminatedTag, p.pos, "unterminated comment")
			}
			p.pos += 4 + end + 3

		case strings.HasPrefix(p.src[p.pos:], "<!"):
			end := strings.IndexByte(p.src[p.pos:], '>')
			if end < 0 {
				return nil, p.errorf(UnterminatedTag, p.pos, "unterminated declaration")
			}
			p.pos += end + 1

		case strings.HasPrefix(p.src[p.pos:], "</"):
			start := p.pos
			p.pos += 2
			name := p.readName()
			p.skipSpace()
			if name == "" || p.peek() != '>' {
				return nil, p.errorf(UnterminatedTag, start, "malformed closing tag")
			}
			p.pos++
			if parent == "" {
				return nil, p.errorf(MismatchedClose, start, "unexpected </%s>", name)
			}
			if !strings.EqualFold(name, parent) {
				return nil, p.errorf(MismatchedClose, start, "expected </%s>, found </%s>", parent, name)
			}
			return nodes, nil

		case p.peek() == '<' && p.startsMarkup():
			r, err := p.parseElement(top)
			if err != nil {
				return nil, err
			}
			if r.skip {
				continue
			}
			switch r.cond {
			case condNone:
				nodes = append(nodes, r.node)
				chain = nil
			case condIf:
				chain = &Conditional{
					Branches: []*Branch{{Cond: r.test, Body: r.node}},
					Pos:      r.node.Position(),
				}
				nodes = append(nodes, chain)
			case condElseIf, condElse:
				if chain == nil {
					directive := "v-else"
					if r.cond == condElseIf {
						directive = "v-else-if"
					}
					return nil, p.errorf(OrphanElse, r.node.Position().Offset, "%s has no preceding v-if", directive)
				}
				for len(nodes) > 0 && nodes[len(nodes)-1] != chain {
					nodes = nodes[:len(nodes)-1]
				}
				chain.Branches = append(chain.Branches, &Branch{Cond: r.test, Body: r.node})
				if r.cond == condElse {
					chain = nil
				}
			}

		default:
			n, err := p.parseText()
			if err != nil {
				return nil, err
			}
			if n == nil {
				continue
			}
			if t, ok := n.(*Text); ok && isBlank(t.Value) {
				// Blank text keeps an open v-if chain alive.
				nodes = append(nodes, n)
				continue
			}
			nodes = append(nodes, n)
			chain = nil
		}
	}
}

type rawAttr struct {
	name     string
	value    string
	hasValue bool
	pos      int
	valuePos int
}

func (p *parser) readAttrs(tag string, start int) ([]rawAttr, bool, error) {
	var attrs []rawAttr
	for {
		p.skipSpace()
		if p.eof() {
			return nil, false, p.errorf(UnterminatedTag, start, "unterminated <%s>", tag)
		}
		if p.peek() == '>' {
			p.pos++
			return attrs, false, nil
		}
		if strings.HasPrefix(p.src[p.pos:], "/>") {
			p.pos += 2
			return attrs, true, nil
		}

		a := rawAttr{pos: p.pos}
		for !p.eof() {
			c := p.src[p.pos]
			if isSpace(c) || strings.IndexByte("=>/\"'<", c) >= 0 {
				break
			}
			p.pos++
		}
		if p.pos == a.pos {
			return nil, false, p.errorf(UnterminatedTag, p.pos, "unexpected %q in <%s>", p.peek(), tag)
		}
		a.name = p.src[a.pos:p.pos]

		p.skipSpace()
		if p.peek() == '=' {
			p.pos++
			p.skipSpace()
			a.hasValue = true
			switch q := p.peek(); q {
			case '"', '\'':
				end := strings.IndexByte(p.src[p.pos+1:], q)
				if end < 0 {
					return nil, false, p.errorf(UnterminatedTag, p.pos, "unterminated value for attribute %s", a.name)
				}
				a.valuePos = p.pos + 1
				a.value = p.src[a.valuePos : a.valuePos+end]
				p.pos = a.valuePos + end + 1
			default:
				a.valuePos = p.pos
				for !p.eof() && !isSpace(p.src[p.pos]) && p.src[p.pos] != '>' {
					p.pos++
				}
				a.value = p.src[a.valuePos:p.pos]
			}
		}
		attrs = append(attrs, a)
	}
}

// skipRaw skips the content of a raw-text element up to its closing tag.
func (p *parser) skipRaw(tag string, start int) error {
	closing := "</" + tag
	end := strings.Index(strings.ToLower(p.src[p.pos:]), closing)
	if end < 0 {
		return p.errorf(UnterminatedTag, start, "unterminated <%s>", tag)
	}
	p.pos += end + len(closing)
	gt := strings.IndexByte(p.src[p.pos:], '>')
	if gt < 0 {
		return p.errorf(UnterminatedTag, p.pos, "malformed closing tag")
	}
	p.pos += gt + 1
	return nil
}

// directives collects the structural directives found on one element.
type directives struct {
	cond    condKind
	test    expr.Expr
	loop    bool
	item    string
	index   string
	source  expr.Expr
	key     expr.Expr
	condAt  int
	modelAt int
}

func (p *parser) parseElement(top bool) (parsed, error) {
	start := p.pos
	p.pos++
	tag := p.readName()
	raw, selfClose, err := p.readAttrs(tag, start)
	if err != nil {
		return parsed{}, err
	}
	lower := strings.ToLower(tag)

	if lower == "script" || lower == "style" {
		if !selfClose {
			if err := p.skipRaw(lower, start); err != nil {
				return parsed{}, err
			}
		}
		return parsed{skip: true}, nil
	}

	component := IsComponentTag(tag)
	var children []Node
	if !selfClose && (component || !voidElements[lower]) {
		if children, err = p.parseChildren(tag, start, false); err != nil {
			return parsed{}, err
		}
	}
	pos := p.lines.position(start)

	if top && lower == "template" && !hasStructural(raw) {
		if p.sfc != nil {
			return parsed{}, p.errorf(MisplacedDirective, start, "duplicate <template> block")
		}
		p.sfc = &Fragment{Children: children, Pos: pos}
		return parsed{skip: true}, nil
	}

	var d directives
	attrs, err := p.classify(tag, raw, &d)
	if err != nil {
		return parsed{}, err
	}

	var base Node
	switch {
	case lower == "template":
		if len(attrs) > 0 {
			return parsed{}, p.errorf(MisplacedDirective, attrs[0].Pos.Offset, "<template> accepts only v-if, v-else-if, v-else and v-for")
		}
		if d.key != nil && !d.loop {
			return parsed{}, p.errorf(MisplacedDirective, start, "key on <template> requires v-for")
		}
		base = &Fragment{Children: children, Pos: pos}

	case component:
		var name string
		ok := false
		if p.opts.Components != nil {
			name, ok = p.opts.Components.Resolve(tag)
		}
		if !ok {
			return parsed{}, p.errorf(UnresolvedComponent, start, "no component registered for <%s>", tag)
		}
		for _, c := range children {
			if t, isText := c.(*Text); !isText || !isBlank(t.Value) {
				return parsed{}, p.errorf(MisplacedDirective, c.Position().Offset, "<%s> does not accept child content", tag)
			}
		}
		if d.modelAt > 0 {
			return parsed{}, p.errorf(MisplacedDirective, d.modelAt, "v-model is not supported on components")
		}
		ref := &ComponentRef{Tag: tag, Name: name, Attrs: attrs, Pos: pos}
		if !d.loop {
			ref.Key = d.key
		}
		base = ref

	default:
		if d.modelAt > 0 && !modelElements[lower] {
			return parsed{}, p.errorf(MisplacedDirective, d.modelAt, "v-model is not supported on <%s>", lower)
		}
		el := &Element{Tag: lower, Attrs: attrs, Children: children, Pos: pos}
		if !d.loop {
			el.Key = d.key
		}
		base = el
	}

	if !d.loop {
		return parsed{node: base, cond: d.cond, test: d.test}, nil
	}
	if d.cond == condElseIf || d.cond == condElse {
		return parsed{}, p.errorf(MisplacedDirective, d.condAt, "v-for cannot be combined with v-else or v-else-if")
	}
	body := base
	if d.cond == condIf {
		body = &Conditional{Branches: []*Branch{{Cond: d.test, Body: base}}, Pos: pos}
	}
	return parsed{node: &Loop{
		Item:   d.item,
		Index:  d.index,
		Source: d.source,
		Key:    d.key,
		Body:   body,
		Pos:    pos,
	}}, nil
}

func hasStructural(raw []rawAttr) bool {
	for _, a := range raw {
		switch a.name {
		case "v-if", "v-else-if", "v-else", "v-for":
			return true
		}
	}
	return false
}

// classify splits raw attributes into structural directives (recorded in d)
// and the attributes that remain on the node.
func (p *parser) classify(tag string, raw []rawAttr, d *directives) ([]*Attr, error) {
	var out []*Attr
	setCond := func(a rawAttr, k condKind) error {
		if d.cond != condNone {
			return p.errorf(MisplacedDirective, a.pos, "%s conflicts with another conditional directive on <%s>", a.name, tag)
		}
		d.cond, d.condAt = k, a.pos
		return nil
	}

	for _, a := range raw {
		name := a.name
		switch {
		case name == "v-if" || name == "v-else-if":
			k := condIf
			if name == "v-else-if" {
				k = condElseIf
			}
			if err := setCond(a, k); err != nil {
				return nil, err
			}
			e, err := p.expr(a)
			if err != nil {
				return nil, err
			}
			d.test = e

		case name == "v-else":
			if err := setCond(a, condElse); err != nil {
				return nil, err
			}

		case name == "v-for":
			if !a.hasValue {
				return nil, p.errorf(InvalidExpression, a.pos, "v-for requires a value")
			}
			item, index, source, err := expr.ParseLoop(a.value)
			if err != nil {
				return nil, p.exprError(a, err)
			}
			d.loop, d.item, d.index, d.source = true, item, index, source

		case name == ":key" || name == "v-bind:key":
			e, err := p.expr(a)
			if err != nil {
				return nil, err
			}
			d.key = e

		case name == "key":
			d.key = &expr.Literal{Value: html.UnescapeString(a.value)}

		case name == "v-model":
			e, err := p.expr(a)
			if err != nil {
				return nil, err
			}
			if _, ok := e.(*expr.Ident); !ok {
				return nil, p.errorf(InvalidExpression, a.valuePos, "v-model target must be a state name, found %s", e)
			}
			d.modelAt = a.pos
			out = append(out, &Attr{Kind: AttrModel, Name: "model", Value: a.value, Expr: e, Pos: p.lines.position(a.pos)})

		case strings.HasPrefix(name, ":") || strings.HasPrefix(name, "v-bind:"):
			prop := strings.TrimPrefix(strings.TrimPrefix(name, "v-bind"), ":")
			if prop == "" {
				return nil, p.errorf(UnknownDirective, a.pos, "%s needs an attribute name", name)
			}
			e, err := p.expr(a)
			if err != nil {
				return nil, err
			}
			out = append(out, &Attr{Kind: AttrBind, Name: prop, Value: a.value, Expr: e, Pos: p.lines.position(a.pos)})

		case strings.HasPrefix(name, "@") || strings.HasPrefix(name, "v-on:"):
			event := strings.TrimPrefix(strings.TrimPrefix(name, "v-on:"), "@")
			if event == "" {
				return nil, p.errorf(UnknownDirective, a.pos, "%s needs an event name", name)
			}
			if strings.Contains(event, ".") {
				return nil, p.errorf(UnknownDirective, a.pos, "event modifiers are not supported (%s)", name)
			}
			if !a.hasValue || strings.TrimSpace(a.value) == "" {
				return nil, p.errorf(InvalidExpression, a.pos, "%s requires a handler", name)
			}
			h, err := expr.ParseHandler(a.value)
			if err != nil {
				return nil, p.exprError(a, err)
			}
			out = append(out, &Attr{Kind: AttrEvent, Name: event, Value: a.value, Handler: h, Pos: p.lines.position(a.pos)})

		case strings.HasPrefix(name, "v-"):
			return nil, p.errorf(UnknownDirective, a.pos, "unknown directive %s", name)

		default:
			out = append(out, &Attr{Kind: AttrStatic, Name: name, Value: html.UnescapeString(a.value), Pos: p.lines.position(a.pos)})
		}
	}
	return out, nil
}

func (p *parser) expr(a rawAttr) (expr.Expr, error) {
	if !a.hasValue || strings.TrimSpace(a.value) == "" {
		return nil, p.errorf(InvalidExpression, a.pos, "%s requires an expression", a.name)
	}
	e, err := expr.Parse(a.value)
	if err != nil {
		return nil, p.exprError(a, err)
	}
	return e, nil
}

func (p *parser) exprError(a rawAttr, err error) error {
	return p.exprErrorAt(a.valuePos, a.value, err)
}

func (p *parser) exprErrorAt(base int, src string, err error) error {
	var pe *expr.ParseError
	if errors.As(err, &pe) {
		return p.errorf(InvalidExpression, base+pe.Pos, "%s in %q", pe.Msg, src)
	}
	return p.errorf(InvalidExpression, base, "%v", err)
}

// scanInterpolation returns the offset of the "}}" closing an interpolation
// whose expression starts at from, or -1. Braces of object literals nest and
// quoted strings are skipped.
func (p *parser) scanInterpolation(from int) int {
	depth := 0
	var quote byte
	for i := from; i < len(p.src); i++ {
		c := p.src[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '{':
			depth++
		case '}':
			if depth == 0 {
				if i+1 < len(p.src) && p.src[i+1] == '}' {
					return i
				}
				continue
			}
			depth--
		}
	}
	return -1
}

// parseText parses a text run up to the next markup. It returns nil when
// the whitespace policy drops the run.
func (p *parser) parseText() (Node, error) {
	start := p.pos
	var parts []Part
	lit := p.pos
	flush := func(end int) {
		if end > lit {
			parts = append(parts, Part{Text: p.src[lit:end]})
		}
	}
	for !p.eof() {
		c := p.src[p.pos]
		if c == '<' && p.startsMarkup() {
			break
		}
		if c == '{' && strings.HasPrefix(p.src[p.pos:], "{{") {
			flush(p.pos)
			open := p.pos
			end := p.scanInterpolation(open + 2)
			if end < 0 {
				return nil, p.errorf(MalformedInterpolation, open, "unterminated {{")
			}
			src := p.src[open+2 : end]
			if strings.TrimSpace(src) == "" {
				return nil, p.errorf(MalformedInterpolation, open, "empty interpolation")
			}
			e, err := expr.Parse(src)
			if err != nil {
				return nil, p.exprErrorAt(open+2, src, err)
			}
			parts = append(parts, Part{Expr: e})
			p.pos = end + 2
			lit = p.pos
			continue
		}
		p.pos++
	}
	flush(p.pos)
	pos := p.lines.position(start)

	ws := p.opts.Whitespace
	if len(parts) == 1 && parts[0].Expr == nil {
		s := parts[0].Text
		if isBlank(s) {
			v, keep := ws.blankRun(s)
			if !keep {
				return nil, nil
			}
			return &Text{Value: v, Pos: pos}, nil
		}
		s = ws.literal(s)
		if ws == Trim {
			s = strings.TrimSpace(s)
		}
		return &Text{Value: html.UnescapeString(s), Pos: pos}, nil
	}

	out := parts[:0]
	for i, part := range parts {
		if part.Expr != nil {
			out = append(out, part)
			continue
		}
		s := ws.literal(part.Text)
		if ws == Trim {
			if i == 0 {
				s = strings.TrimLeft(s, " \t\n\r\f")
			}
			if i == len(parts)-1 {
				s = strings.TrimRight(s, " \t\n\r\f")
			}
		}
		if s == "" {
			continue
		}
		out = append(out, Part{Text: html.UnescapeString(s)})
	}
	return &Interpolation{Parts: out, Pos: pos}, nil
}
