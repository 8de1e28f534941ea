// Implements the Resource, a capacity-limited admission point with a FIFO wait queue.

package sim

import (
	"fmt"
	"math"
	"strings"
)

// Unbounded declares a resource without a capacity limit.
const Unbounded = math.MaxInt

// Resource admits up to capacity concurrent users. Further requests wait in a
// strict FIFO queue; there is no priority or reneging, so admission order is
// exactly request order.
type Resource struct {
	env      *Environment
	name     string
	capacity int
	users    []*Request
	queue    []*Request // FIFO queue of waiting requests
	nextID   uint64
}

// Request is an admission ticket. It embeds the event that succeeds once the
// ticket is admitted; Release frees the slot (or withdraws a queued ticket).
//
//	req := res.Request()
//	defer req.Release()
//	if _, err := p.Wait(req.Event); err != nil { ... }
type Request struct {
	*Event
	resource *Resource
	id       uint64
	released bool
}

// NewResource creates a resource with the given capacity.
// Panics if capacity < 1; use Unbounded for no limit.
func NewResource(env *Environment, name string, capacity int) *Resource {
	if capacity < 1 {
		panic(fmt.Sprintf("NewResource %s: capacity must be >= 1 or Unbounded, got %d", name, capacity))
	}
	return &Resource{env: env, name: name, capacity: capacity}
}

// Request issues a new admission ticket. It is admitted immediately (processed
// at the current tick) if a slot is free and nobody is queued ahead of it.
func (r *Resource) Request() *Request {
	r.nextID++
	req := &Request{
		Event:    r.env.NewEvent(fmt.Sprintf("request:%s#%d", r.name, r.nextID)),
		resource: r,
		id:       r.nextID,
	}
	r.queue = append(r.queue, req)
	r.admit()
	return req
}

// Release frees the ticket's slot, or removes it from the wait queue if it was
// not yet admitted. Releasing twice is a no-op.
func (req *Request) Release() {
	if req.released {
		return
	}
	req.released = true
	r := req.resource
	if i := indexOf(r.users, req); i >= 0 {
		r.users = append(r.users[:i], r.users[i+1:]...)
	} else if i := indexOf(r.queue, req); i >= 0 {
		r.queue = append(r.queue[:i], r.queue[i+1:]...)
	}
	r.admit()
}

// Admitted reports whether the ticket currently holds a slot.
func (req *Request) Admitted() bool {
	return !req.released && indexOf(req.resource.users, req) >= 0
}

// ID returns the ticket sequence number within its resource.
func (req *Request) ID() uint64 { return req.id }

func (r *Resource) admit() {
	for len(r.queue) > 0 && len(r.users) < r.capacity {
		next := r.queue[0]
		r.queue = r.queue[1:]
		r.users = append(r.users, next)
		next.Succeed(next)
	}
}

// QueueLength returns the number of tickets waiting for admission.
func (r *Resource) QueueLength() int { return len(r.queue) }

// ActiveCount returns the number of admitted tickets.
func (r *Resource) ActiveCount() int { return len(r.users) }

// Capacity returns the admission limit (Unbounded if none).
func (r *Resource) Capacity() int { return r.capacity }

// Name returns the resource label.
func (r *Resource) Name() string { return r.name }

func (r *Resource) String() string {
	var sb strings.Builder
	sb.WriteString(r.name)
	sb.WriteString(" users=[")
	for i, u := range r.users {
		if i > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "#%d", u.id)
	}
	sb.WriteString("] queue=[")
	for i, q := range r.queue {
		if i > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "#%d", q.id)
	}
	sb.WriteString("]")
	return sb.String()
}

func indexOf(reqs []*Request, req *Request) int {
	for i, r := range reqs {
		if r == req {
			return i
		}
	}
	return -1
}
