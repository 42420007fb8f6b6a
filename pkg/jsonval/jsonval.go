// Package jsonval implements a small, self-describing JSON value type with
// an insertion-ordered object representation. It backs the workflow bag
// (spec.md §3) and manifest encoding (spec.md §4.7), where field order in
// emitted JSON must match the order fields were set, something
// encoding/json's map[string]any cannot guarantee.
package jsonval

import (
	"bytes"
	"fmt"
	"strconv"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindObject
)

// Value is a self-describing JSON value. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	arr  []*Value
	obj  *Object
}

// Object is an insertion-ordered string-keyed map of Values.
type Object struct {
	keys   []string
	values map[string]*Value
}

// NewObject returns an empty Object.
func NewObject() *Object {
	return &Object{values: make(map[string]*Value)}
}

// Set assigns key to value, appending key to the iteration order if it is
// new, or leaving the order unchanged if key already existed.
func (o *Object) Set(key string, value *Value) {
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

// Get returns the value for key and whether it was present.
func (o *Object) Get(key string) (*Value, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Keys returns the object's keys in insertion order.
func (o *Object) Keys() []string { return append([]string(nil), o.keys...) }

// Len returns the number of keys in the object.
func (o *Object) Len() int { return len(o.keys) }

func Null() *Value                 { return &Value{kind: KindNull} }
func Bool(b bool) *Value           { return &Value{kind: KindBool, b: b} }
func Int(i int64) *Value           { return &Value{kind: KindInt, i: i} }
func Float(f float64) *Value       { return &Value{kind: KindFloat, f: f} }
func String(s string) *Value       { return &Value{kind: KindString, s: s} }
func Array(items ...*Value) *Value { return &Value{kind: KindArray, arr: items} }
func Obj(o *Object) *Value         { return &Value{kind: KindObject, obj: o} }

func (v *Value) Kind() Kind { return v.kind }

func (v *Value) Bool() (bool, bool) {
	if v == nil || v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

func (v *Value) Int() (int64, bool) {
	if v == nil || v.kind != KindInt {
		return 0, false
	}
	return v.i, true
}

func (v *Value) Float() (float64, bool) {
	if v == nil || v.kind != KindFloat {
		return 0, false
	}
	return v.f, true
}

func (v *Value) String() (string, bool) {
	if v == nil || v.kind != KindString {
		return "", false
	}
	return v.s, true
}

func (v *Value) Array() ([]*Value, bool) {
	if v == nil || v.kind != KindArray {
		return nil, false
	}
	return v.arr, true
}

func (v *Value) Object() (*Object, bool) {
	if v == nil || v.kind != KindObject {
		return nil, false
	}
	return v.obj, true
}

// MarshalJSON renders the value, preserving object key insertion order.
func (v *Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v *Value) encode(buf *bytes.Buffer) error {
	if v == nil {
		buf.WriteString("null")
		return nil
	}
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindInt:
		buf.WriteString(strconv.FormatInt(v.i, 10))
	case KindFloat:
		buf.WriteString(strconv.FormatFloat(v.f, 'g', -1, 64))
	case KindString:
		buf.WriteString(strconv.Quote(v.s))
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, k := range v.obj.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(strconv.Quote(k))
			buf.WriteByte(':')
			if err := v.obj.values[k].encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("jsonval: unknown kind %d", v.kind)
	}
	return nil
}
