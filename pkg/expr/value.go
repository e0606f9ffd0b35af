package expr

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
)

// Readable is a reactive cell whose reads are tracked. Values of this type
// found in a Scope are read transparently during evaluation.
type Readable interface {
	Read() (any, error)
}

// Writable is a cell that handler assignments can target.
type Writable interface {
	Readable
	Write(v any)
}

// Func is the canonical callable value. Other Go func values are called
// through reflection with argument conversion.
type Func func(args ...any) (any, error)

// ToString renders a value the way it appears in text and attributes.
// nil renders as the empty string.
func ToString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "true"
		}
		return "false"
	case float64:
		return formatFloat(x)
	case float32:
		return formatFloat(float64(x))
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case fmt.Stringer:
		return x.String()
	}
	if f, ok := ToNumber(v); ok {
		return formatFloat(f)
	}
	return fmt.Sprint(v)
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ToNumber converts any Go numeric kind to float64.
func ToNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float32:
		return float64(x), true
	case int32:
		return float64(x), true
	case nil, string, bool:
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

// Truthy reports the boolean interpretation of v. nil, false, zero, NaN,
// the empty string and empty collections are false.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	}
	if f, ok := ToNumber(v); ok {
		return f != 0 && !math.IsNaN(f)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface, reflect.Func:
		return !rv.IsNil()
	}
	return true
}

// Equal compares two values, treating all numeric kinds as numbers.
func Equal(a, b any) bool {
	if fa, ok := ToNumber(a); ok {
		fb, ok := ToNumber(b)
		return ok && fa == fb
	}
	switch x := a.(type) {
	case nil:
		return b == nil
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	}
	return reflect.DeepEqual(a, b)
}

// Iterate calls fn for every element of a list-render source: slices and
// arrays (key is the index), maps (keys in sorted order), and integers n
// (yielding 1..n).
func Iterate(v any, fn func(index int, key, item any)) error {
	if v == nil {
		return nil
	}
	if f, ok := ToNumber(v); ok {
		n := int(f)
		for i := 0; i < n; i++ {
			fn(i, i, float64(i+1))
		}
		return nil
	}
	switch x := v.(type) {
	case []any:
		for i, item := range x {
			fn(i, i, item)
		}
		return nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for i, k := range keys {
			fn(i, k, x[k])
		}
		return nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			fn(i, i, rv.Index(i).Interface())
		}
		return nil
	case reflect.Map:
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return ToString(keys[i].Interface()) < ToString(keys[j].Interface())
		})
		for i, k := range keys {
			fn(i, k.Interface(), rv.MapIndex(k).Interface())
		}
		return nil
	}
	return fmt.Errorf("%w: cannot iterate over %T", ErrType, v)
}

// unwrap reads v if it is a reactive cell.
func unwrap(v any) (any, error) {
	if r, ok := v.(Readable); ok {
		return r.Read()
	}
	return v, nil
}

func length(v any) (int, bool) {
	switch x := v.(type) {
	case string:
		return len([]rune(x)), true
	case []any:
		return len(x), true
	case map[string]any:
		return len(x), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
		return rv.Len(), true
	}
	return 0, false
}

// member resolves x.name on maps, structs and pointers to structs.
func member(x any, name string) (any, error) {
	if name == "length" {
		if n, ok := length(x); ok {
			return float64(n), nil
		}
	}
	switch m := x.(type) {
	case nil:
		return nil, fmt.Errorf("%w: cannot read %q of null", ErrType, name)
	case map[string]any:
		return m[name], nil
	}
	rv := reflect.ValueOf(x)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, fmt.Errorf("%w: cannot read %q of nil", ErrType, name)
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		v := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil, nil
		}
		return v.Interface(), nil
	case reflect.Struct:
		f := rv.FieldByName(name)
		if f.IsValid() && f.CanInterface() {
			return f.Interface(), nil
		}
		return nil, fmt.Errorf("%w: %s has no field %q", ErrUndefined, rv.Type(), name)
	}
	return nil, fmt.Errorf("%w: cannot read %q of %T", ErrType, name, x)
}

func index(x, idx any) (any, error) {
	if f, ok := ToNumber(idx); ok {
		i := int(f)
		switch l := x.(type) {
		case []any:
			if i < 0 || i >= len(l) {
				return nil, fmt.Errorf("%w: %d of %d", ErrIndex, i, len(l))
			}
			return l[i], nil
		}
		rv := reflect.ValueOf(x)
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			if i < 0 || i >= rv.Len() {
				return nil, fmt.Errorf("%w: %d of %d", ErrIndex, i, rv.Len())
			}
			return rv.Index(i).Interface(), nil
		}
	}
	if s, ok := idx.(string); ok {
		return member(x, s)
	}
	return nil, fmt.Errorf("%w: cannot index %T with %T", ErrType, x, idx)
}

// call invokes fn with args. Func values are called directly; other funcs
// through reflection, converting numeric arguments to the parameter kinds.
func call(fn any, args []any) (any, error) {
	switch f := fn.(type) {
	case Func:
		return f(args...)
	case func(...any) (any, error):
		return f(args...)
	case func(...any) any:
		return f(args...), nil
	case func():
		f()
		return nil, nil
	case nil:
		return nil, ErrNotCallable
	}
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w: %T", ErrNotCallable, fn)
	}
	rt := rv.Type()
	in := make([]reflect.Value, 0, len(args))
	for i, a := range args {
		var pt reflect.Type
		switch {
		case rt.IsVariadic() && i >= rt.NumIn()-1:
			pt = rt.In(rt.NumIn() - 1).Elem()
		case i < rt.NumIn():
			pt = rt.In(i)
		default:
			// Extra arguments are dropped, as for a handler called with $event.
			continue
		}
		av, err := convertArg(a, pt)
		if err != nil {
			return nil, err
		}
		in = append(in, av)
	}
	for len(in) < rt.NumIn() && !(rt.IsVariadic() && len(in) == rt.NumIn()-1) {
		in = append(in, reflect.Zero(rt.In(len(in))))
	}
	out := rv.Call(in)
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if err, ok := out[0].Interface().(error); ok && rt.Out(0) == errorType {
			return nil, err
		}
		return out[0].Interface(), nil
	default:
		last := out[len(out)-1]
		if rt.Out(len(out)-1) == errorType && !last.IsNil() {
			return nil, last.Interface().(error)
		}
		return out[0].Interface(), nil
	}
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func convertArg(a any, pt reflect.Type) (reflect.Value, error) {
	if a == nil {
		return reflect.Zero(pt), nil
	}
	av := reflect.ValueOf(a)
	if av.Type().AssignableTo(pt) {
		return av, nil
	}
	if f, ok := ToNumber(a); ok {
		switch pt.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64:
			return reflect.ValueOf(f).Convert(pt), nil
		}
	}
	if pt.Kind() == reflect.String {
		return reflect.ValueOf(ToString(a)).Convert(pt), nil
	}
	if av.Type().ConvertibleTo(pt) {
		return av.Convert(pt), nil
	}
	return reflect.Value{}, fmt.Errorf("%w: cannot use %T as %s", ErrType, a, pt)
}
