package attrs

import (
	"fmt"
	"sort"
)

// Args carries named arguments to an action.
type Args map[string]Value

// Float returns a numeric argument.
func (a Args) Float(key string) (float64, error) {
	v, ok := a[key]
	if !ok {
		return 0, &NotFoundError{Registry: "argument", Key: key}
	}
	f, ok := v.AsFloat()
	if !ok {
		return 0, fmt.Errorf("argument %q holds %s, want number: %w", key, v.Kind(), ErrInvalidValue)
	}
	return f, nil
}

// Action is a callable registered on a person or resource. It returns an
// optional result value.
type Action func(args Args) (Value, error)

// Actions is a registry of named actions ("do" actions), letting activities
// trigger behaviour on their owner without knowing its concrete type.
type Actions struct {
	actions map[string]Action
}

// NewActions creates an empty registry.
func NewActions() *Actions {
	return &Actions{actions: make(map[string]Action)}
}

// Add registers fn under name. Fails with ErrDuplicate if name exists.
func (a *Actions) Add(name string, fn Action) error {
	if fn == nil {
		return fmt.Errorf("action %q: nil function: %w", name, ErrInvalidValue)
	}
	if _, ok := a.actions[name]; ok {
		return fmt.Errorf("action %q: %w", name, ErrDuplicate)
	}
	a.actions[name] = fn
	return nil
}

// Do invokes the named action. Unknown names return *NotFoundError.
func (a *Actions) Do(name string, args Args) (Value, error) {
	fn, ok := a.actions[name]
	if !ok {
		return Null, &NotFoundError{Registry: "action", Key: name}
	}
	return fn(args)
}

// Delete removes an action.
func (a *Actions) Delete(name string) error {
	if _, ok := a.actions[name]; !ok {
		return &NotFoundError{Registry: "action", Key: name}
	}
	delete(a.actions, name)
	return nil
}

// Names returns the registered action names in sorted order.
func (a *Actions) Names() []string {
	names := make([]string, 0, len(a.actions))
	for n := range a.actions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
