package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ValueKind tags the variant held by a Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindList
	KindObject
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindObject:
		return "object"
	default:
		return "null"
	}
}

// Value is a JSON-shaped tagged union used for everything stored in a
// listing's custom_fields bag and in wizard form state.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
	list []Value
	obj  map[string]Value
}

func Null() Value { return Value{} }
func String(s string) Value { return Value{kind: KindString, str: s} }
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func List(items ...Value) Value { return Value{kind: KindList, list: items} }
func Object(m map[string]Value) Value { return Value{kind: KindObject, obj: m} }

// Strings builds a list value out of plain strings.
func Strings(items ...string) Value {
	list := make([]Value, len(items))
	for i, s := range items {
		list[i] = String(s)
	}
	return List(list...)
}

// FromAny converts a decoded JSON value (as produced by encoding/json into
// interface{}) into a Value. Unsupported Go types are stringified.
func FromAny(v interface{}) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Number(float64(t))
	case int32:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return String(t.String())
		}
		return Number(f)
	case []string:
		return Strings(t...)
	case []interface{}:
		list := make([]Value, len(t))
		for i, item := range t {
			list[i] = FromAny(item)
		}
		return List(list...)
	case map[string]interface{}:
		obj := make(map[string]Value, len(t))
		for k, item := range t {
			obj[k] = FromAny(item)
		}
		return Object(obj)
	default:
		return String(fmt.Sprint(t))
	}
}

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string payload; ok is false for non-string values.
func (v Value) Str() (string, bool) {
	return v.str, v.kind == KindString
}

func (v Value) Num() (float64, bool) {
	return v.num, v.kind == KindNumber
}

func (v Value) BoolVal() (bool, bool) {
	return v.b, v.kind == KindBool
}

func (v Value) Items() []Value {
	if v.kind != KindList {
		return nil
	}
	return v.list
}

func (v Value) Fields() map[string]Value {
	if v.kind != KindObject {
		return nil
	}
	return v.obj
}

// IsEmpty reports whether the value counts as "no answer" for required-field
// validation. false and 0 are answers.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return strings.TrimSpace(v.str) == ""
	case KindList:
		return len(v.list) == 0
	case KindObject:
		return len(v.obj) == 0
	default:
		return false
	}
}

// Text renders scalars the way they are shown in a plain text input.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindList:
		parts := make([]string, 0, len(v.list))
		for _, item := range v.list {
			if s := item.Text(); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case KindObject:
		b, _ := json.Marshal(v)
		return string(b)
	default:
		return ""
	}
}

// Interface converts back into plain Go values suitable for encoding/json or
// structpb.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindList:
		out := make([]interface{}, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case KindObject:
		out := make(map[string]interface{}, len(v.obj))
		for k, item := range v.obj {
			out[k] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.obj) != len(o.obj) {
			return false
		}
		for k, item := range v.obj {
			other, ok := o.obj[k]
			if !ok || !item.Equal(other) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	case KindObject:
		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := v.obj[k].MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*v = FromAny(raw)
	return nil
}

// Values is the schema-less custom_fields bag.
type Values map[string]Value

// Lookup distinguishes "absent" from "present but null".
func (vs Values) Lookup(name string) (Value, bool) {
	if vs == nil {
		return Value{}, false
	}
	v, ok := vs[name]
	return v, ok
}

// Clone returns a shallow copy; Value itself is treated as immutable.
func (vs Values) Clone() Values {
	out := make(Values, len(vs))
	for k, v := range vs {
		out[k] = v
	}
	return out
}
