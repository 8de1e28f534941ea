// sim/environment.go
package sim

import (
	"container/heap"
	"fmt"

	"github.com/sirupsen/logrus"
)

// queueEntry wraps an Event with its scheduled time and a sequence ID for
// deterministic FIFO tie-breaking when timestamp and priority are equal.
type queueEntry struct {
	time     int64
	priority int
	seqID    uint64
	event    *Event
}

// EventQueue is a min-heap ordered by (time, priority, seqID).
// Implements heap.Interface.
type EventQueue []queueEntry

func (q EventQueue) Len() int { return len(q) }

func (q EventQueue) Less(i, j int) bool {
	if q[i].time != q[j].time {
		return q[i].time < q[j].time
	}
	if q[i].priority != q[j].priority {
		return q[i].priority < q[j].priority
	}
	return q[i].seqID < q[j].seqID
}

func (q EventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *EventQueue) Push(x any) {
	*q = append(*q, x.(queueEntry))
}

func (q *EventQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// Environment is the core object that holds the virtual clock, the event queue
// and the set of cooperative processes.
//
// Processes run on their own goroutines but never concurrently: the environment
// hands control to exactly one process at a time and waits until it suspends
// (Proc.Wait) or returns. All state reachable from processes is therefore only
// ever touched by one goroutine at a time and needs no locking.
type Environment struct {
	clock int64
	queue EventQueue
	seq   uint64

	// yield is signalled by a running process when it suspends or returns.
	yield chan struct{}

	procs  []*Process // live processes in creation order
	nextID uint64
	err    error // first fatal process error
	closed bool
}

// NewEnvironment creates an environment with its clock at tick 0.
func NewEnvironment() *Environment {
	return &Environment{
		queue: make(EventQueue, 0),
		yield: make(chan struct{}),
	}
}

// Now returns the current simulation time in ticks.
func (env *Environment) Now() int64 {
	return env.clock
}

// Pending returns the number of scheduled events.
func (env *Environment) Pending() int {
	return len(env.queue)
}

// PeekTime returns the timestamp of the next scheduled event.
// The boolean is false when the queue is empty.
func (env *Environment) PeekTime() (int64, bool) {
	if len(env.queue) == 0 {
		return 0, false
	}
	return env.queue[0].time, true
}

// schedule pushes a triggered event into the queue delay ticks from now.
func (env *Environment) schedule(e *Event, delay int64, priority int) {
	env.seq++
	heap.Push(&env.queue, queueEntry{
		time:     env.clock + delay,
		priority: priority,
		seqID:    env.seq,
		event:    e,
	})
}

// Step pops the next event, advances the clock and runs its callbacks.
// Returns false when there is nothing left to process.
func (env *Environment) Step() bool {
	if len(env.queue) == 0 {
		return false
	}
	entry := heap.Pop(&env.queue).(queueEntry)
	env.clock = entry.time
	logrus.Tracef("[tick %07d] Processing %s", env.clock, entry.event.name)
	entry.event.fire()
	return true
}

// Run processes events whose timestamp is strictly before until, then sets the
// clock to until, also when the queue drains first. It stops early when a
// process returns an error, which is returned.
func (env *Environment) Run(until int64) error {
	if env.closed {
		return fmt.Errorf("run: environment closed")
	}
	if until < env.clock {
		return fmt.Errorf("run: until (%d) must not be before now (%d)", until, env.clock)
	}
	for env.err == nil {
		t, ok := env.PeekTime()
		if !ok {
			logrus.Debugf("[tick %07d] Event queue drained", env.clock)
			env.clock = until
			return nil
		}
		if t >= until {
			env.clock = until
			logrus.Debugf("[tick %07d] Simulation horizon reached", env.clock)
			return nil
		}
		env.Step()
	}
	return env.err
}

// Close halts every suspended process and releases its goroutine.
// The environment cannot be run again afterwards.
func (env *Environment) Close() {
	if env.closed {
		return
	}
	env.closed = true
	procs := env.procs
	env.procs = nil
	for _, p := range procs {
		if p.started && !p.finished {
			p.wake <- wakeHalt
			<-env.yield
		}
	}
}

// Err returns the first fatal error raised by a process, if any.
func (env *Environment) Err() error {
	return env.err
}

func (env *Environment) fail(err error) {
	if env.err == nil {
		env.err = err
	}
}

func (env *Environment) forget(p *Process) {
	for i, q := range env.procs {
		if q == p {
			env.procs = append(env.procs[:i], env.procs[i+1:]...)
			return
		}
	}
}
