package evaluator

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("evaluator: %q is not numeric: %w", n, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("evaluator: value %v (%T) is not numeric", v, v)
	}
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(v)
	}
}

func toBytes(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		return nil, fmt.Errorf("evaluator: value %v (%T) is not byte-like", v, v)
	}
}

func toStringMap(v any) (map[string]string, bool) {
	switch m := v.(type) {
	case map[string]string:
		return m, true
	case map[string]any:
		out := make(map[string]string, len(m))
		for k, val := range m {
			out[k] = toString(val)
		}
		return out, true
	default:
		return nil, false
	}
}

// toSlice reports whether v is a sequence (as opposed to a scalar), so
// callers can detect e.g. `get from [ 'a', 'b' ]` producing a list of URLs
// rather than one. []byte is excluded: it is a scalar body/content value,
// never a sequence of values in this DSL.
func toSlice(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if _, ok := v.([]byte); ok {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func containsValue(haystack, needle any) bool {
	hs := toString(haystack)
	nd := toString(needle)
	return strings.Contains(hs, nd)
}

// equalValue compares two values produced by independent evaluation paths
// (a response attribute and a host-evaluated expression), coercing numbers
// to a common type so "whose status equals 200" matches a JS number
// against a Go int.
func equalValue(a, b any) bool {
	af, aerr := toFloat(a)
	bf, berr := toFloat(b)
	if aerr == nil && berr == nil {
		return af == bf
	}
	return toString(a) == toString(b)
}
