package attrs

import (
	"fmt"
	"sort"
)

type status struct {
	current Value
	allowed []Value
	def     Value
}

func (st *status) permits(v Value) bool {
	for _, a := range st.allowed {
		if a.Equal(v) {
			return true
		}
	}
	return false
}

// StatusSet holds classification attributes whose value must be one of a
// declared set of labels, e.g. infection status (susceptible, exposed,
// infected, recovered). Each status can be reset to its default.
type StatusSet struct {
	statuses map[string]*status
}

// NewStatusSet creates an empty status set.
func NewStatusSet() *StatusSet {
	return &StatusSet{statuses: make(map[string]*status)}
}

// Define declares a status with its allowed values and default.
func (ss *StatusSet) Define(key string, allowed []Value, def Value) error {
	if _, ok := ss.statuses[key]; ok {
		return fmt.Errorf("status %q: %w", key, ErrDuplicate)
	}
	st := &status{allowed: append([]Value(nil), allowed...), def: def, current: def}
	if !st.permits(def) {
		return fmt.Errorf("status %q: default %s is not an allowable value: %w", key, def, ErrInvalidValue)
	}
	ss.statuses[key] = st
	return nil
}

// DefineLabels is Define for string labels.
func (ss *StatusSet) DefineLabels(key string, allowed []string, def string) error {
	vals := make([]Value, len(allowed))
	for i, a := range allowed {
		vals[i] = String(a)
	}
	return ss.Define(key, vals, String(def))
}

// Get returns the current value of a status.
func (ss *StatusSet) Get(key string) (Value, error) {
	st, ok := ss.statuses[key]
	if !ok {
		return Null, &NotFoundError{Registry: "status", Key: key}
	}
	return st.current, nil
}

// Label returns the current value of a string status.
func (ss *StatusSet) Label(key string) (string, error) {
	v, err := ss.Get(key)
	if err != nil {
		return "", err
	}
	s, _ := v.AsString()
	return s, nil
}

// Set changes a status. Values outside the allowed set are rejected and the
// status keeps its previous value.
func (ss *StatusSet) Set(key string, v Value) error {
	st, ok := ss.statuses[key]
	if !ok {
		return &NotFoundError{Registry: "status", Key: key}
	}
	if !st.permits(v) {
		return fmt.Errorf("status %q: %s is not an allowable value: %w", key, v, ErrInvalidValue)
	}
	st.current = v
	return nil
}

// SetLabel is Set for string labels.
func (ss *StatusSet) SetLabel(key, label string) error {
	return ss.Set(key, String(label))
}

// Is reports whether the status currently holds label. An unknown key or a
// label outside the allowed set is an error rather than false.
func (ss *StatusSet) Is(key, label string) (bool, error) {
	st, ok := ss.statuses[key]
	if !ok {
		return false, &NotFoundError{Registry: "status", Key: key}
	}
	v := String(label)
	if !st.permits(v) {
		return false, fmt.Errorf("status %q: %s is not an allowable value: %w", key, label, ErrInvalidValue)
	}
	return st.current.Equal(v), nil
}

// Reset restores the default value of a status.
func (ss *StatusSet) Reset(key string) error {
	st, ok := ss.statuses[key]
	if !ok {
		return &NotFoundError{Registry: "status", Key: key}
	}
	st.current = st.def
	return nil
}

// Delete removes a status.
func (ss *StatusSet) Delete(key string) error {
	if _, ok := ss.statuses[key]; !ok {
		return &NotFoundError{Registry: "status", Key: key}
	}
	delete(ss.statuses, key)
	return nil
}

// Keys returns the status names in sorted order.
func (ss *StatusSet) Keys() []string {
	keys := make([]string, 0, len(ss.statuses))
	for k := range ss.statuses {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
