package expr

import (
	"strconv"
	"strings"
)

// Expr is a parsed read-position expression. The set of implementations is
// closed; Eval switches over all of them.
type Expr interface {
	// Pos returns the byte offset of the expression within its source text.
	Pos() int
	String() string
	expr()
}

// Literal is a constant: nil, bool, float64 or string.
type Literal struct {
	Value  any
	Offset int
}

// Ident references a binding in the scope.
type Ident struct {
	Name   string
	Offset int
}

// Member is a field access: X.Name.
type Member struct {
	X      Expr
	Name   string
	Offset int
}

// Index is an element access: X[Index].
type Index struct {
	X      Expr
	Index  Expr
	Offset int
}

// Call is a function invocation: Fn(Args...).
type Call struct {
	Fn     Expr
	Args   []Expr
	Offset int
}

// Unary is a prefix operation: "!" or "-".
type Unary struct {
	Op     string
	X      Expr
	Offset int
}

// Binary is an infix operation.
type Binary struct {
	Op     string
	X, Y   Expr
	Offset int
}

// Cond is the conditional operator: Test ? Then : Else.
type Cond struct {
	Test, Then, Else Expr
	Offset           int
}

// List is a list literal: [a, b, c].
type List struct {
	Elems  []Expr
	Offset int
}

// Object is an object literal: {a: 1, "b": 2}. Keys keep declaration order.
type Object struct {
	Keys   []string
	Values []Expr
	Offset int
}

func (*Literal) expr() {}
func (*Ident) expr()   {}
func (*Member) expr()  {}
func (*Index) expr()   {}
func (*Call) expr()    {}
func (*Unary) expr()   {}
func (*Binary) expr()  {}
func (*Cond) expr()    {}
func (*List) expr()    {}
func (*Object) expr()  {}

func (e *Literal) Pos() int { return e.Offset }
func (e *Ident) Pos() int   { return e.Offset }
func (e *Member) Pos() int  { return e.Offset }
func (e *Index) Pos() int   { return e.Offset }
func (e *Call) Pos() int    { return e.Offset }
func (e *Unary) Pos() int   { return e.Offset }
func (e *Binary) Pos() int  { return e.Offset }
func (e *Cond) Pos() int    { return e.Offset }
func (e *List) Pos() int    { return e.Offset }
func (e *Object) Pos() int  { return e.Offset }

func (e *Literal) String() string {
	switch v := e.Value.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(v)
	default:
		return ToString(v)
	}
}

func (e *Ident) String() string  { return e.Name }
func (e *Member) String() string { return e.X.String() + "." + e.Name }
func (e *Index) String() string  { return e.X.String() + "[" + e.Index.String() + "]" }

func (e *Call) String() string {
	return e.Fn.String() + "(" + joinExprs(e.Args) + ")"
}

func (e *Unary) String() string { return "(" + e.Op + e.X.String() + ")" }

func (e *Binary) String() string {
	return "(" + e.X.String() + " " + e.Op + " " + e.Y.String() + ")"
}

func (e *Cond) String() string {
	return "(" + e.Test.String() + " ? " + e.Then.String() + " : " + e.Else.String() + ")"
}

func (e *List) String() string { return "[" + joinExprs(e.Elems) + "]" }

func (e *Object) String() string {
	parts := make([]string, len(e.Keys))
	for i, k := range e.Keys {
		parts[i] = strconv.Quote(k) + ": " + e.Values[i].String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func joinExprs(es []Expr) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

// Stmt is one statement of an event handler.
type Stmt interface {
	Pos() int
	String() string
	stmt()
}

// Assign writes Value into the cell bound to Target. Op is "=", "+=" or "-=".
type Assign struct {
	Target *Ident
	Op     string
	Value  Expr
}

// ExprStmt evaluates X for its effects (typically a call).
type ExprStmt struct {
	X Expr
}

func (*Assign) stmt()   {}
func (*ExprStmt) stmt() {}

func (s *Assign) Pos() int   { return s.Target.Offset }
func (s *ExprStmt) Pos() int { return s.X.Pos() }

func (s *Assign) String() string   { return s.Target.Name + " " + s.Op + " " + s.Value.String() }
func (s *ExprStmt) String() string { return s.X.String() }

// Handler is a parsed write-position statement list, used by event bindings.
type Handler struct {
	Stmts  []Stmt
	Source string
}

func (h *Handler) String() string {
	parts := make([]string, len(h.Stmts))
	for i, s := range h.Stmts {
		parts[i] = s.String()
	}
	return strings.Join(parts, "; ")
}
