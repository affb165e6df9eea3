// Package caps implements W3C WebDriver capability processing.
//
// A client asks for a session with an alwaysMatch object and a list of
// firstMatch alternatives. Process resolves vendor prefixes, validates each
// source against a constraint table, and returns the first alternative that
// merges cleanly with alwaysMatch.
//
// Inputs are decoded JSON values (map[string]any, []any, string, float64,
// bool, nil). Nothing in this package mutates its arguments or keeps state
// between calls.
package caps

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Map is a single capability object keyed by capability name.
type Map map[string]any

// Kind tags the JSON type of a decoded value.
type Kind int

const (
	KindInvalid Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "invalid"
	}
}

// KindOf reports the JSON kind of v.
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, json.Number:
		return KindNumber
	case string:
		return KindString
	case map[string]any, Map:
		return KindObject
	case []any, []Map, []map[string]any:
		return KindArray
	default:
		return KindInvalid
	}
}

// asMap returns v as a Map when it is a JSON object.
func asMap(v any) (Map, bool) {
	switch m := v.(type) {
	case Map:
		if m == nil {
			return nil, false
		}
		return m, true
	case map[string]any:
		if m == nil {
			return nil, false
		}
		return Map(m), true
	default:
		return nil, false
	}
}

// asSlice returns v as a list of elements when it is a JSON array.
func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []Map:
		out := make([]any, len(s))
		for i, m := range s {
			out[i] = m
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(s))
		for i, m := range s {
			out[i] = m
		}
		return out, true
	default:
		return nil, false
	}
}

// toFloat converts any number kind to float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// equalValues compares two scalar JSON values. Numbers compare numerically so
// a YAML int matches a JSON float64.
func equalValues(a, b any) bool {
	if KindOf(a) == KindNumber && KindOf(b) == KindNumber {
		fa, okA := toFloat(a)
		fb, okB := toFloat(b)
		return okA && okB && fa == fb
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	}
	return render(a) == render(b)
}

// render formats v for error messages: strings as-is, everything else as JSON.
func render(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// sortedKeys returns the keys of m in lexical order. Decoded JSON objects lose
// their key order, so anything that reports "the first" key uses this.
func sortedKeys(m Map) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// clone returns a shallow copy of m. Values are shared; callers never write
// through them.
func clone(m Map) Map {
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
