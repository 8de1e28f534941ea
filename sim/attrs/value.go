// Package attrs provides the typed registries carried by people and resources:
// immutable attribute values, status labels restricted to a declared set, and
// named actions that other parts of the simulation may invoke.
package attrs

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the dynamic type held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindComplex
	KindString
	KindBytes
	KindSet
)

var kindNames = map[Kind]string{
	KindNull:    "null",
	KindBool:    "bool",
	KindInt:     "int",
	KindFloat:   "float",
	KindComplex: "complex",
	KindString:  "string",
	KindBytes:   "bytes",
	KindSet:     "set",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Value is an immutable tagged union. Its fields are unexported and every
// constructor copies slice data, so a Value can be shared freely once built.
// The zero Value is Null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	c    complex128
	s    string
	raw  []byte
	set  []string // sorted, deduplicated
}

// Null is the absent value.
var Null = Value{}

func Bool(v bool) Value { return Value{kind: KindBool, b: v} }
func Int(v int64) Value { return Value{kind: KindInt, i: v} }
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }
func Complex(v complex128) Value { return Value{kind: KindComplex, c: v} }
func String(v string) Value { return Value{kind: KindString, s: v} }
func Bytes(v []byte) Value { return Value{kind: KindBytes, raw: bytes.Clone(v)} }

// Set builds a frozen set of labels. Duplicates are dropped.
func Set(labels ...string) Value {
	seen := make(map[string]bool, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	sort.Strings(out)
	return Value{kind: KindSet, set: out}
}

// Kind returns the dynamic type of v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v holds no value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsInt returns the integer held by v.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsFloat returns v as a float. Integers are widened.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

// AsComplex returns the complex number held by v.
func (v Value) AsComplex() (complex128, bool) { return v.c, v.kind == KindComplex }

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsBytes returns a copy of the byte sequence held by v.
func (v Value) AsBytes() ([]byte, bool) {
	if v.kind != KindBytes {
		return nil, false
	}
	return bytes.Clone(v.raw), true
}

// Members returns a copy of the labels of a set value, sorted.
func (v Value) Members() ([]string, bool) {
	if v.kind != KindSet {
		return nil, false
	}
	return append([]string(nil), v.set...), true
}

// Contains reports whether a set value holds label.
func (v Value) Contains(label string) bool {
	if v.kind != KindSet {
		return false
	}
	i := sort.SearchStrings(v.set, label)
	return i < len(v.set) && v.set[i] == label
}

// Equal reports whether two values have the same kind and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindComplex:
		return v.c == o.c
	case KindString:
		return v.s == o.s
	case KindBytes:
		return bytes.Equal(v.raw, o.raw)
	case KindSet:
		if len(v.set) != len(o.set) {
			return false
		}
		for i := range v.set {
			if v.set[i] != o.set[i] {
				return false
			}
		}
		return true
	}
	return false
}

// Interface returns v as a plain Go value (nil for Null), suitable for report rows.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindComplex:
		return v.c
	case KindString:
		return v.s
	case KindBytes:
		return bytes.Clone(v.raw)
	case KindSet:
		return append([]string(nil), v.set...)
	}
	return nil
}

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindComplex:
		return strconv.FormatComplex(v.c, 'g', -1, 128)
	case KindString:
		return v.s
	case KindBytes:
		return fmt.Sprintf("%x", v.raw)
	case KindSet:
		return "{" + strings.Join(v.set, ",") + "}"
	}
	return "Null"
}
