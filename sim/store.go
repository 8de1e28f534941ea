package sim

import "fmt"

// Store is an unbounded FIFO mailbox.
// Put never blocks; Get returns an event that succeeds with the oldest item,
// immediately if one is buffered, otherwise when the next Put arrives.
// Pending getters are served in the order they called Get.
type Store[T any] struct {
	env     *Environment
	name    string
	items   []T
	getters []*Event
}

// NewStore creates an empty mailbox bound to env.
func NewStore[T any](env *Environment, name string) *Store[T] {
	return &Store[T]{env: env, name: name}
}

// Put appends item, handing it straight to the oldest pending getter if any.
func (s *Store[T]) Put(item T) {
	if len(s.getters) > 0 {
		g := s.getters[0]
		s.getters = s.getters[1:]
		g.Succeed(item)
		return
	}
	s.items = append(s.items, item)
}

// Get returns an event carrying the next item.
func (s *Store[T]) Get() *Event {
	ev := s.env.NewEvent("get:" + s.name)
	if len(s.items) > 0 {
		item := s.items[0]
		s.items = s.items[1:]
		return ev.Succeed(item)
	}
	s.getters = append(s.getters, ev)
	return ev
}

// Receive suspends p until an item is available and returns it.
func (s *Store[T]) Receive(p *Process) (T, error) {
	var zero T
	v, err := p.Wait(s.Get())
	if err != nil {
		return zero, err
	}
	item, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("store %s: unexpected item type %T", s.name, v)
	}
	return item, nil
}

// Len returns the number of buffered items.
func (s *Store[T]) Len() int { return len(s.items) }

// Name returns the mailbox label.
func (s *Store[T]) Name() string { return s.name }
