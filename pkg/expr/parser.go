package expr

import (
	"strconv"
)

// ParseError is a compile-time failure to parse expression source.
// Pos is the byte offset into the expression text.
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return "expression: " + e.Msg + " at offset " + strconv.Itoa(e.Pos)
}

type parser struct {
	toks []token
	pos  int
}

// Parse parses a read-position expression. Assignments are rejected.
func Parse(src string) (Expr, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.unexpected(t)
	}
	return e, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level tables.
func MustParse(src string) Expr {
	e, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return e
}

// ParseHandler parses an event handler: one or more statements separated by
// semicolons. Statements are assignments to identifiers or expressions.
func ParseHandler(src string) (*Handler, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	h := &Handler{Source: src}
	for p.peek().kind != tokEOF {
		if p.peek().kind == tokSemi {
			p.next()
			continue
		}
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		h.Stmts = append(h.Stmts, s)
		switch t := p.peek(); t.kind {
		case tokSemi, tokEOF:
		default:
			return nil, p.unexpected(t)
		}
	}
	if len(h.Stmts) == 0 {
		return nil, &ParseError{Pos: 0, Msg: "empty handler"}
	}
	return h, nil
}

// ParseLoop parses a list-render clause: "item in source" or
// "(item, index) in source".
func ParseLoop(src string) (item, index string, source Expr, err error) {
	toks, err := lex(src)
	if err != nil {
		return "", "", nil, err
	}
	p := &parser{toks: toks}

	paren := p.peek().kind == tokLParen
	if paren {
		p.next()
	}
	it, err := p.expect(tokIdent)
	if err != nil {
		return "", "", nil, err
	}
	item = it.text
	if paren {
		if p.peek().kind == tokComma {
			p.next()
			idx, err := p.expect(tokIdent)
			if err != nil {
				return "", "", nil, err
			}
			index = idx.text
		}
		if _, err := p.expect(tokRParen); err != nil {
			return "", "", nil, err
		}
	}
	if isKeyword(item) || (index != "" && isKeyword(index)) {
		return "", "", nil, &ParseError{Pos: it.pos, Msg: "loop variable cannot be a keyword"}
	}
	in := p.next()
	if in.kind != tokIdent || in.text != "in" {
		return "", "", nil, &ParseError{Pos: in.pos, Msg: `expected "in"`}
	}
	source, err = p.parseExpr()
	if err != nil {
		return "", "", nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return "", "", nil, p.unexpected(t)
	}
	return item, index, source, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) peekAt(n int) token {
	if p.pos+n < len(p.toks) {
		return p.toks[p.pos+n]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(k tokenKind) (token, error) {
	t := p.next()
	if t.kind != k {
		return t, &ParseError{Pos: t.pos, Msg: "expected " + k.String() + ", found " + describe(t)}
	}
	return t, nil
}

func (p *parser) unexpected(t token) error {
	switch t.kind {
	case tokAssign, tokPlusAssign, tokMinusAssign:
		return &ParseError{Pos: t.pos, Msg: "assignment is not allowed in a read-position expression"}
	}
	return &ParseError{Pos: t.pos, Msg: "unexpected " + describe(t)}
}

func describe(t token) string {
	switch t.kind {
	case tokEOF:
		return "end of expression"
	case tokIdent, tokNumber:
		return strconv.Quote(t.text)
	case tokString:
		return "string " + strconv.Quote(t.text)
	}
	return strconv.Quote(t.kind.String())
}

func (p *parser) parseStmt() (Stmt, error) {
	if t := p.peek(); t.kind == tokIdent && !isKeyword(t.text) {
		switch op := p.peekAt(1); op.kind {
		case tokAssign, tokPlusAssign, tokMinusAssign:
			p.next()
			p.next()
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			return &Assign{Target: &Ident{Name: t.text, Offset: t.pos}, Op: op.text, Value: v}, nil
		}
	}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &ExprStmt{X: e}, nil
}

func (p *parser) parseExpr() (Expr, error) {
	test, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokQuestion {
		return test, nil
	}
	p.next()
	then, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokColon); err != nil {
		return nil, err
	}
	els, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &Cond{Test: test, Then: then, Else: els, Offset: test.Pos()}, nil
}

// binaryLevel parses one left-associative precedence level.
func (p *parser) binaryLevel(next func() (Expr, error), ops ...tokenKind) (Expr, error) {
	x, err := next()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		matched := false
		for _, op := range ops {
			if t.kind == op {
				matched = true
				break
			}
		}
		if !matched {
			return x, nil
		}
		p.next()
		y, err := next()
		if err != nil {
			return nil, err
		}
		x = &Binary{Op: t.text, X: x, Y: y, Offset: t.pos}
	}
}

func (p *parser) parseOr() (Expr, error) {
	return p.binaryLevel(p.parseAnd, tokOrOr)
}

func (p *parser) parseAnd() (Expr, error) {
	return p.binaryLevel(p.parseEquality, tokAndAnd)
}

func (p *parser) parseEquality() (Expr, error) {
	return p.binaryLevel(p.parseComparison, tokEqEq, tokBangEq)
}

func (p *parser) parseComparison() (Expr, error) {
	return p.binaryLevel(p.parseAdditive, tokLt, tokLtEq, tokGt, tokGtEq)
}

func (p *parser) parseAdditive() (Expr, error) {
	return p.binaryLevel(p.parseMultiplicative, tokPlus, tokMinus)
}

func (p *parser) parseMultiplicative() (Expr, error) {
	return p.binaryLevel(p.parseUnary, tokStar, tokSlash, tokPercent)
}

func (p *parser) parseUnary() (Expr, error) {
	switch t := p.peek(); t.kind {
	case tokBang, tokMinus:
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: t.text, X: x, Offset: t.pos}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (Expr, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch t := p.peek(); t.kind {
		case tokDot:
			p.next()
			name, err := p.expect(tokIdent)
			if err != nil {
				return nil, err
			}
			x = &Member{X: x, Name: name.text, Offset: t.pos}
		case tokLBracket:
			p.next()
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokRBracket); err != nil {
				return nil, err
			}
			x = &Index{X: x, Index: idx, Offset: t.pos}
		case tokLParen:
			p.next()
			args, err := p.parseList(tokRParen, false)
			if err != nil {
				return nil, err
			}
			x = &Call{Fn: x, Args: args, Offset: t.pos}
		default:
			return x, nil
		}
	}
}

// parseList parses comma separated expressions up to and including end.
// List literals accept a trailing comma; call arguments do not.
func (p *parser) parseList(end tokenKind, trailing bool) ([]Expr, error) {
	var out []Expr
	for p.peek().kind != end {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
		if p.peek().kind != tokComma {
			break
		}
		p.next()
		if !trailing && p.peek().kind == end {
			return nil, p.unexpected(p.peek())
		}
	}
	if _, err := p.expect(end); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *parser) parsePrimary() (Expr, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, &ParseError{Pos: t.pos, Msg: "invalid number " + strconv.Quote(t.text)}
		}
		return &Literal{Value: f, Offset: t.pos}, nil
	case tokString:
		return &Literal{Value: t.text, Offset: t.pos}, nil
	case tokIdent:
		switch t.text {
		case "true":
			return &Literal{Value: true, Offset: t.pos}, nil
		case "false":
			return &Literal{Value: false, Offset: t.pos}, nil
		case "null", "nil":
			return &Literal{Value: nil, Offset: t.pos}, nil
		case "in":
			return nil, &ParseError{Pos: t.pos, Msg: `unexpected keyword "in"`}
		}
		return &Ident{Name: t.text, Offset: t.pos}, nil
	case tokLParen:
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return e, nil
	case tokLBracket:
		elems, err := p.parseList(tokRBracket, true)
		if err != nil {
			return nil, err
		}
		return &List{Elems: elems, Offset: t.pos}, nil
	case tokLBrace:
		return p.parseObject(t)
	}
	return nil, p.unexpected(t)
}

func (p *parser) parseObject(open token) (Expr, error) {
	obj := &Object{Offset: open.pos}
	for p.peek().kind != tokRBrace {
		k := p.next()
		switch k.kind {
		case tokIdent, tokString:
		default:
			return nil, &ParseError{Pos: k.pos, Msg: "expected object key, found " + describe(k)}
		}
		if _, err := p.expect(tokColon); err != nil {
			return nil, err
		}
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		obj.Keys = append(obj.Keys, k.text)
		obj.Values = append(obj.Values, v)
		if p.peek().kind != tokComma {
			break
		}
		p.next()
	}
	if _, err := p.expect(tokRBrace); err != nil {
		return nil, err
	}
	return obj, nil
}
