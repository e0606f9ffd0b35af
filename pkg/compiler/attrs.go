package compiler

import (
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/vango-dev/villain/pkg/expr"
)

// booleanAttrs are present-or-absent attributes: true renders the bare
// attribute, false leaves it out.
var booleanAttrs = map[string]bool{
	"allowfullscreen": true,
	"async":           true,
	"autofocus":       true,
	"autoplay":        true,
	"checked":         true,
	"controls":        true,
	"default":         true,
	"defer":           true,
	"disabled":        true,
	"formnovalidate":  true,
	"hidden":          true,
	"ismap":           true,
	"loop":            true,
	"multiple":        true,
	"muted":           true,
	"novalidate":      true,
	"open":            true,
	"readonly":        true,
	"required":        true,
	"reversed":        true,
	"selected":        true,
}

// attrValue converts a bound value to its attribute text. ok is false when
// the attribute should be absent.
func attrValue(name string, v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case bool:
		if booleanAttrs[name] {
			return "", x
		}
	}
	switch name {
	case "class":
		return classValue(v), true
	case "style":
		return styleValue(v), true
	}
	return expr.ToString(v), true
}

// classValue flattens a class binding: strings as is, lists element-wise,
// maps to the names whose value is truthy.
func classValue(v any) string {
	var names []string
	var collect func(v any)
	collect = func(v any) {
		switch x := v.(type) {
		case nil:
		case string:
			names = append(names, strings.Fields(x)...)
		case []any:
			for _, item := range x {
				collect(item)
			}
		case map[string]any:
			keys := make([]string, 0, len(x))
			for k, on := range x {
				if expr.Truthy(on) {
					keys = append(keys, k)
				}
			}
			sort.Strings(keys)
			names = append(names, keys...)
		default:
			names = append(names, expr.ToString(x))
		}
	}
	collect(v)
	return strings.Join(names, " ")
}

// styleValue renders a style map as declarations in property order.
func styleValue(v any) string {
	m, ok := v.(map[string]any)
	if !ok {
		return expr.ToString(v)
	}
	keys := make([]string, 0, len(m))
	for k, val := range m {
		if val != nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	decls := make([]string, len(keys))
	for i, k := range keys {
		decls[i] = k + ": " + expr.ToString(m[k]) + ";"
	}
	return strings.Join(decls, " ")
}

// mergeClass joins a static class attribute with a bound one.
func mergeClass(static, bound string) string {
	switch {
	case static == "":
		return bound
	case bound == "":
		return static
	}
	return static + " " + bound
}

// checkedValue interprets a checkbox payload.
func checkedValue(payload any) bool {
	if s, ok := payload.(string); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "", "false", "off", "0":
			return false
		}
		return true
	}
	return expr.Truthy(payload)
}

// coerce converts an input payload to the type of the value it replaces:
// numeric models get a number of the same kind back when the payload is
// one. Text that is not such a number is stored as text.
func coerce(current, payload any) any {
	cur := reflect.ValueOf(current)
	if !isNumericKind(cur.Kind()) {
		return payload
	}
	var f float64
	if s, ok := payload.(string); ok {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return payload
		}
		f = v
	} else if v, ok := expr.ToNumber(payload); ok {
		f = v
	} else {
		return payload
	}

	out := reflect.New(cur.Type()).Elem()
	switch cur.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 || out.OverflowInt(int64(f)) {
			return payload
		}
		out.SetInt(int64(f))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if f != math.Trunc(f) || f < 0 || f >= math.MaxUint64 || out.OverflowUint(uint64(f)) {
			return payload
		}
		out.SetUint(uint64(f))
	default:
		if out.OverflowFloat(f) {
			return payload
		}
		out.SetFloat(f)
	}
	return out.Interface()
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
