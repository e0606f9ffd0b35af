package expr

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
)

// Evaluation failure kinds, matched with errors.Is.
var (
	ErrUndefined   = errors.New("undefined identifier")
	ErrNotCallable = errors.New("value is not callable")
	ErrType        = errors.New("invalid operand type")
	ErrDivByZero   = errors.New("division by zero")
	ErrIndex       = errors.New("index out of range")
	ErrNotWritable = errors.New("assignment target is not writable")
)

// EvalError is a runtime evaluation failure of one expression.
type EvalError struct {
	Pos  int
	Expr string
	Err  error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("evaluating %q at offset %d: %v", e.Expr, e.Pos, e.Err)
}

func (e *EvalError) Unwrap() error { return e.Err }

// EventName is the scope binding holding the payload inside a handler.
const EventName = "$event"

var builtins = map[string]Func{
	"len": func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: len takes one argument", ErrType)
		}
		n, ok := length(args[0])
		if !ok {
			return nil, fmt.Errorf("%w: len of %T", ErrType, args[0])
		}
		return float64(n), nil
	},
	"str": func(args ...any) (any, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = ToString(a)
		}
		return strings.Join(parts, ""), nil
	},
}

// Eval evaluates e against s. Reactive cells read along the way are logged
// against whatever tracking frame is active. Errors raised by a cell read
// (for instance a dependency cycle) are returned unwrapped; all other
// failures are *EvalError.
func Eval(e Expr, s *Scope) (any, error) {
	v, err := eval(e, s)
	if err != nil {
		return nil, wrapEval(e, err)
	}
	return v, nil
}

// cellError marks an error returned by a reactive cell read so that it
// passes through evaluation untouched.
type cellError struct{ err error }

func (c *cellError) Error() string { return c.err.Error() }
func (c *cellError) Unwrap() error { return c.err }

func wrapEval(e Expr, err error) error {
	var ce *cellError
	if errors.As(err, &ce) {
		return ce.err
	}
	var ee *EvalError
	if errors.As(err, &ee) {
		return ee
	}
	return &EvalError{Pos: e.Pos(), Expr: e.String(), Err: err}
}

func read(v any) (any, error) {
	out, err := unwrap(v)
	if err != nil {
		return nil, &cellError{err: err}
	}
	return out, nil
}

func eval(e Expr, s *Scope) (any, error) {
	switch n := e.(type) {
	case *Literal:
		return n.Value, nil

	case *Ident:
		v, ok := s.Lookup(n.Name)
		if !ok {
			if b, ok := builtins[n.Name]; ok {
				return b, nil
			}
			return nil, &EvalError{Pos: n.Offset, Expr: n.Name, Err: ErrUndefined}
		}
		return read(v)

	case *Member:
		x, err := eval(n.X, s)
		if err != nil {
			return nil, err
		}
		v, err := member(x, n.Name)
		if err != nil {
			return nil, &EvalError{Pos: n.Offset, Expr: n.String(), Err: err}
		}
		return read(v)

	case *Index:
		x, err := eval(n.X, s)
		if err != nil {
			return nil, err
		}
		i, err := eval(n.Index, s)
		if err != nil {
			return nil, err
		}
		v, err := index(x, i)
		if err != nil {
			return nil, &EvalError{Pos: n.Offset, Expr: n.String(), Err: err}
		}
		return read(v)

	case *Call:
		fn, err := eval(n.Fn, s)
		if err != nil {
			return nil, err
		}
		args := make([]any, len(n.Args))
		for i, a := range n.Args {
			if args[i], err = eval(a, s); err != nil {
				return nil, err
			}
		}
		v, err := call(fn, args)
		if err != nil {
			var ee *EvalError
			if errors.As(err, &ee) {
				return nil, err
			}
			return nil, &EvalError{Pos: n.Offset, Expr: n.String(), Err: err}
		}
		return read(v)

	case *Unary:
		x, err := eval(n.X, s)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case "!":
			return !Truthy(x), nil
		case "-":
			f, ok := ToNumber(x)
			if !ok {
				return nil, &EvalError{Pos: n.Offset, Expr: n.String(), Err: fmt.Errorf("%w: -%T", ErrType, x)}
			}
			return -f, nil
		}
		return nil, &EvalError{Pos: n.Offset, Expr: n.String(), Err: fmt.Errorf("%w: unknown operator %s", ErrType, n.Op)}

	case *Binary:
		return evalBinary(n, s)

	case *Cond:
		t, err := eval(n.Test, s)
		if err != nil {
			return nil, err
		}
		if Truthy(t) {
			return eval(n.Then, s)
		}
		return eval(n.Else, s)

	case *List:
		out := make([]any, len(n.Elems))
		for i, el := range n.Elems {
			v, err := eval(el, s)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil

	case *Object:
		out := make(map[string]any, len(n.Keys))
		for i, k := range n.Keys {
			v, err := eval(n.Values[i], s)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: unsupported expression %T", ErrType, e)
}

func evalBinary(n *Binary, s *Scope) (any, error) {
	x, err := eval(n.X, s)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case "&&":
		if !Truthy(x) {
			return x, nil
		}
		return eval(n.Y, s)
	case "||":
		if Truthy(x) {
			return x, nil
		}
		return eval(n.Y, s)
	}
	y, err := eval(n.Y, s)
	if err != nil {
		return nil, err
	}
	v, err := binaryOp(n.Op, x, y)
	if err != nil {
		return nil, &EvalError{Pos: n.Offset, Expr: n.String(), Err: err}
	}
	return v, nil
}

func binaryOp(op string, x, y any) (any, error) {
	switch op {
	case "==":
		return Equal(x, y), nil
	case "!=":
		return !Equal(x, y), nil
	case "+":
		_, xs := x.(string)
		_, ys := y.(string)
		if xs || ys {
			return ToString(x) + ToString(y), nil
		}
	}

	if xs, ok := x.(string); ok {
		if ys, ok := y.(string); ok {
			switch op {
			case "<":
				return xs < ys, nil
			case "<=":
				return xs <= ys, nil
			case ">":
				return xs > ys, nil
			case ">=":
				return xs >= ys, nil
			}
		}
	}

	a, aok := ToNumber(x)
	b, bok := ToNumber(y)
	if !aok || !bok {
		return nil, fmt.Errorf("%w: %T %s %T", ErrType, x, op, y)
	}
	switch op {
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/":
		if b == 0 {
			return nil, ErrDivByZero
		}
		return a / b, nil
	case "%":
		if b == 0 {
			return nil, ErrDivByZero
		}
		return math.Mod(a, b), nil
	case "<":
		return a < b, nil
	case "<=":
		return a <= b, nil
	case ">":
		return a > b, nil
	case ">=":
		return a >= b, nil
	}
	return nil, fmt.Errorf("%w: unknown operator %s", ErrType, op)
}

// Exec runs a handler against s. A handler consisting of a single bare
// reference to a function calls it with the event payload, if one is bound.
func Exec(h *Handler, s *Scope) error {
	if len(h.Stmts) == 1 {
		if es, ok := h.Stmts[0].(*ExprStmt); ok {
			if _, isCall := es.X.(*Call); !isCall {
				v, err := Eval(es.X, s)
				if err != nil {
					return err
				}
				if isCallable(v) {
					var args []any
					if ev, ok := s.Lookup(EventName); ok {
						args = []any{ev}
					}
					if _, err := call(v, args); err != nil {
						return &EvalError{Pos: es.Pos(), Expr: es.String(), Err: err}
					}
				}
				return nil
			}
		}
	}
	for _, st := range h.Stmts {
		if err := execStmt(st, s); err != nil {
			return err
		}
	}
	return nil
}

func execStmt(st Stmt, s *Scope) error {
	switch n := st.(type) {
	case *ExprStmt:
		_, err := Eval(n.X, s)
		return err
	case *Assign:
		raw, ok := s.Lookup(n.Target.Name)
		if !ok {
			return &EvalError{Pos: n.Pos(), Expr: n.String(), Err: ErrUndefined}
		}
		w, ok := raw.(Writable)
		if !ok {
			return &EvalError{Pos: n.Pos(), Expr: n.String(), Err: ErrNotWritable}
		}
		v, err := Eval(n.Value, s)
		if err != nil {
			return err
		}
		if n.Op != "=" {
			cur, err := w.Read()
			if err != nil {
				return err
			}
			if v, err = binaryOp(n.Op[:1], cur, v); err != nil {
				return &EvalError{Pos: n.Pos(), Expr: n.String(), Err: err}
			}
		}
		w.Write(v)
		return nil
	}
	return fmt.Errorf("%w: unsupported statement %T", ErrType, st)
}

func isCallable(v any) bool {
	switch v.(type) {
	case Func, func(...any) (any, error), func(...any) any, func():
		return true
	case nil:
		return false
	}
	return reflect.ValueOf(v).Kind() == reflect.Func
}
