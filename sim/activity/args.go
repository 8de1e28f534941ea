package activity

import (
	"fmt"
	"reflect"

	"github.com/healthdes/healthdes/sim/attrs"
)

// Cloner is implemented by argument values that must be copied, rather than
// shared, when an activity template is instantiated.
type Cloner interface {
	CloneArg() any
}

// Args are the keyword parameters of an activity. Pointer values (shared
// environments, for example) are shared between copies; maps, slices and
// Cloner values are copied.
type Args map[string]any

// Clone returns a deep copy of a.
func (a Args) Clone() Args {
	if a == nil {
		return Args{}
	}
	out := make(Args, len(a))
	for k, v := range a {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case Cloner:
		return x.CloneArg()
	case Args:
		return x.Clone()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return cloneReflect(rv).Interface()
	}
	return v
}

// cloneReflect copies slice and map values recursively. Cloner elements are
// cloned; every other kind, pointers included, is returned as is.
func cloneReflect(rv reflect.Value) reflect.Value {
	if rv.Kind() != reflect.Interface && rv.CanInterface() {
		if c, ok := rv.Interface().(Cloner); ok {
			return reflect.ValueOf(c.CloneArg())
		}
	}
	switch rv.Kind() {
	case reflect.Interface:
		if rv.IsNil() {
			return rv
		}
		return reflect.ValueOf(cloneValue(rv.Elem().Interface()))
	case reflect.Slice:
		if rv.IsNil() {
			return rv
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			setCloned(out.Index(i), rv.Index(i))
		}
		return out
	case reflect.Map:
		if rv.IsNil() {
			return rv
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			e := reflect.New(rv.Type().Elem()).Elem()
			setCloned(e, iter.Value())
			out.SetMapIndex(iter.Key(), e)
		}
		return out
	}
	return rv
}

func setCloned(dst, src reflect.Value) {
	if c := cloneReflect(src); c.IsValid() && c.Type().AssignableTo(dst.Type()) {
		dst.Set(c)
		return
	}
	dst.Set(src)
}

// Merge returns a copy of a with every key of overrides applied on top.
func (a Args) Merge(overrides Args) Args {
	out := a.Clone()
	for k, v := range overrides {
		out[k] = cloneValue(v)
	}
	return out
}

// Get returns the argument key as a T.
func Get[T any](a Args, key string) (T, error) {
	var zero T
	v, ok := a[key]
	if !ok {
		return zero, &attrs.NotFoundError{Registry: "argument", Key: key}
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("argument %q: want %T, got %T: %w", key, zero, v, attrs.ErrInvalidValue)
	}
	return t, nil
}

// Int64 returns an integral argument. Plain ints are accepted.
func (a Args) Int64(key string) (int64, error) {
	v, ok := a[key]
	if !ok {
		return 0, &attrs.NotFoundError{Registry: "argument", Key: key}
	}
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	}
	return 0, fmt.Errorf("argument %q: want integer, got %T: %w", key, v, attrs.ErrInvalidValue)
}

// Float returns a numeric argument.
func (a Args) Float(key string) (float64, error) {
	v, ok := a[key]
	if !ok {
		return 0, &attrs.NotFoundError{Registry: "argument", Key: key}
	}
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	}
	return 0, fmt.Errorf("argument %q: want number, got %T: %w", key, v, attrs.ErrInvalidValue)
}

// Text returns a string argument.
func (a Args) Text(key string) (string, error) {
	return Get[string](a, key)
}
