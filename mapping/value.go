package mapping

import (
	"encoding/json"
)

// Value is a read-only cursor into a decoded JSON document.
// A missing key, an out of range index or a type mismatch yields an absent
// Value; no method ever panics.
type Value struct {
	raw any
	ok  bool
}

// Of wraps a document decoded by encoding/json.
func Of(raw any) Value {
	return Value{raw: raw, ok: true}
}

// Exists reports whether the cursor points at something, including JSON null.
func (v Value) Exists() bool {
	return v.ok
}

// Raw returns the underlying value, nil when absent.
func (v Value) Raw() any {
	if !v.ok {
		return nil
	}
	return v.raw
}

// Get descends into an object member.
func (v Value) Get(key string) Value {
	m, ok := v.AsMap()
	if !ok {
		return Value{}
	}
	child, ok := m[key]
	if !ok {
		return Value{}
	}
	return Value{raw: child, ok: true}
}

// Index descends into an array element.
func (v Value) Index(i int) Value {
	arr, ok := v.raw.([]any)
	if !v.ok || !ok || i < 0 || i >= len(arr) {
		return Value{}
	}
	return Value{raw: arr[i], ok: true}
}

// Path walks a chain of string keys and int indexes. Any other element type
// makes the result absent.
func (v Value) Path(elems ...any) Value {
	cur := v
	for _, elem := range elems {
		switch e := elem.(type) {
		case string:
			cur = cur.Get(e)
		case int:
			cur = cur.Index(e)
		default:
			return Value{}
		}
		if !cur.ok {
			return cur
		}
	}
	return cur
}

func (v Value) AsString() (string, bool) {
	s, ok := v.raw.(string)
	return s, v.ok && ok
}

func (v Value) AsBool() (bool, bool) {
	b, ok := v.raw.(bool)
	return b, v.ok && ok
}

func (v Value) AsMap() (map[string]any, bool) {
	m, ok := v.raw.(map[string]any)
	return m, v.ok && ok && m != nil
}

// AsArray returns the elements as cursors.
func (v Value) AsArray() ([]Value, bool) {
	arr, ok := v.raw.([]any)
	if !v.ok || !ok {
		return nil, false
	}
	out := make([]Value, len(arr))
	for i, item := range arr {
		out[i] = Value{raw: item, ok: true}
	}
	return out, true
}

// AsFloat accepts float64 as well as json.Number when the decoder used UseNumber.
func (v Value) AsFloat() (float64, bool) {
	if !v.ok {
		return 0, false
	}
	switch t := v.raw.(type) {
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// StringOr returns the string or the fallback.
func (v Value) StringOr(fallback string) string {
	if s, ok := v.AsString(); ok {
		return s
	}
	return fallback
}
