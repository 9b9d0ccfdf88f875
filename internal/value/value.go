// Package value implements the JSON-like data domain that Tendril patterns
// match against: arrays, objects, strings, numbers, booleans, and null.
//
// Unlike the teacher's ast.Node domain (open-ended, reflected over), the
// value domain here is a closed six-variant sum type, so equality, cloning,
// and traversal are implemented with a type switch rather than reflection.
package value

import "math"

// Kind tags which of the six variants a Value holds.
type Kind int8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
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
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a tagged union over the six JSON-like variants. Arrays and
// Objects are reference types (like Go slices/maps); Null/Bool/Number/
// String are held by value in their respective fields.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	arr  []Value
	obj  *Object
}

// Object is an ordered string-keyed map. Insertion order is preserved so
// that remainder/spread iteration sees a stable order.
type Object struct {
	keys   []string
	values map[string]Value
}

// NewObject creates an empty, ordered object.
func NewObject() *Object {
	return &Object{values: make(map[string]Value)}
}

// Set inserts or overwrites key, appending to the key order only on first
// insertion.
func (o *Object) Set(key string, v Value) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

// Get returns the value at key and whether it was present.
func (o *Object) Get(key string) (Value, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Delete removes key, preserving the relative order of the rest.
func (o *Object) Delete(key string) {
	if _, ok := o.values[key]; !ok {
		return
	}
	delete(o.values, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order. Callers must not mutate it.
func (o *Object) Keys() []string { return o.keys }

// Len returns the number of keys.
func (o *Object) Len() int { return len(o.keys) }

// Clone returns a deep copy of the object.
func (o *Object) Clone() *Object {
	if o == nil {
		return nil
	}
	c := &Object{
		keys:   append([]string(nil), o.keys...),
		values: make(map[string]Value, len(o.values)),
	}
	for k, v := range o.values {
		c.values[k] = Clone(v)
	}
	return c
}

// Constructors.

func Null() Value                  { return Value{kind: KindNull} }
func Bool(b bool) Value            { return Value{kind: KindBool, b: b} }
func Number(n float64) Value       { return Value{kind: KindNumber, n: n} }
func String(s string) Value        { return Value{kind: KindString, s: s} }
func Array(items ...Value) Value   { return Value{kind: KindArray, arr: items} }
func ArrayFrom(items []Value) Value {
	return Value{kind: KindArray, arr: items}
}
func ObjectValue(o *Object) Value {
	if o == nil {
		o = NewObject()
	}
	return Value{kind: KindObject, obj: o}
}

// Accessors.

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }
func (v Value) Bool() bool   { return v.b }
func (v Value) Number() float64 { return v.n }
func (v Value) Str() string  { return v.s }

// Array returns the underlying slice. Callers in the evaluator treat it as
// read-only except when constructing an edited clone.
func (v Value) Array() []Value { return v.arr }

func (v Value) Object() *Object { return v.obj }

func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindObject:
		if v.obj == nil {
			return 0
		}
		return v.obj.Len()
	case KindString:
		return len(v.s)
	default:
		return 0
	}
}

// Clone performs a deep copy of v. Scalars are copied by value already;
// arrays and objects are recursively copied so edits never alias the
// original input.
func Clone(v Value) Value {
	switch v.kind {
	case KindArray:
		out := make([]Value, len(v.arr))
		for i, e := range v.arr {
			out[i] = Clone(e)
		}
		return Value{kind: KindArray, arr: out}
	case KindObject:
		return Value{kind: KindObject, obj: v.obj.Clone()}
	default:
		return v
	}
}

// SameValueZero implements the spec's primitive equality: NaN equals NaN,
// +0 equals -0, everything else is ==.
func SameValueZero(a, b float64) bool {
	if a == b {
		return true
	}
	return math.IsNaN(a) && math.IsNaN(b)
}

// DeepEqual implements structural equality over the value domain, with
// SameValueZero for numbers.
func DeepEqual(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return SameValueZero(a.n, b.n)
	case KindString:
		return a.s == b.s
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !DeepEqual(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		ao, bo := a.obj, b.obj
		if ao == nil {
			ao = NewObject()
		}
		if bo == nil {
			bo = NewObject()
		}
		if ao.Len() != bo.Len() {
			return false
		}
		for _, k := range ao.keys {
			av := ao.values[k]
			bv, ok := bo.values[k]
			if !ok || !DeepEqual(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
