package attrs

import (
	"fmt"
	"sort"
)

// Store holds named immutable attribute values.
type Store struct {
	values map[string]Value
}

// NewStore creates an empty attribute store.
func NewStore() *Store {
	return &Store{values: make(map[string]Value)}
}

// Add registers a new attribute. Fails with ErrDuplicate if key exists.
func (s *Store) Add(key string, v Value) error {
	if _, ok := s.values[key]; ok {
		return fmt.Errorf("attribute %q: %w", key, ErrDuplicate)
	}
	s.values[key] = v
	return nil
}

// Set creates or replaces an attribute.
func (s *Store) Set(key string, v Value) {
	s.values[key] = v
}

// Get returns the attribute value or a *NotFoundError.
func (s *Store) Get(key string) (Value, error) {
	v, ok := s.values[key]
	if !ok {
		return Null, &NotFoundError{Registry: "attribute", Key: key}
	}
	return v, nil
}

// Float returns a numeric attribute as float64.
func (s *Store) Float(key string) (float64, error) {
	v, err := s.Get(key)
	if err != nil {
		return 0, err
	}
	f, ok := v.AsFloat()
	if !ok {
		return 0, fmt.Errorf("attribute %q holds %s, want number: %w", key, v.Kind(), ErrInvalidValue)
	}
	return f, nil
}

// Text returns a string attribute.
func (s *Store) Text(key string) (string, error) {
	v, err := s.Get(key)
	if err != nil {
		return "", err
	}
	str, ok := v.AsString()
	if !ok {
		return "", fmt.Errorf("attribute %q holds %s, want string: %w", key, v.Kind(), ErrInvalidValue)
	}
	return str, nil
}

// Bool returns a boolean attribute.
func (s *Store) Bool(key string) (bool, error) {
	v, err := s.Get(key)
	if err != nil {
		return false, err
	}
	b, ok := v.AsBool()
	if !ok {
		return false, fmt.Errorf("attribute %q holds %s, want bool: %w", key, v.Kind(), ErrInvalidValue)
	}
	return b, nil
}

// Delete removes an attribute. Fails with *NotFoundError if absent.
func (s *Store) Delete(key string) error {
	if _, ok := s.values[key]; !ok {
		return &NotFoundError{Registry: "attribute", Key: key}
	}
	delete(s.values, key)
	return nil
}

// Keys returns the attribute names in sorted order.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of attributes.
func (s *Store) Len() int { return len(s.values) }
