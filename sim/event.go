package sim

import (
	"fmt"
)

// Scheduling priorities for events that share a timestamp.
// Lower values are processed first; equal priorities fall back to insertion order.
const (
	PriorityUrgent = 0
	PriorityNormal = 1
)

// Event is a one-shot occurrence on the virtual timeline.
// An event is pending until it is triggered (Succeed, Fail or a timeout being
// scheduled), and processed once the environment pops it from the queue and
// runs its callbacks. Processes suspend on events through Proc.Wait.
type Event struct {
	env       *Environment
	name      string
	triggered bool
	processed bool
	value     any
	err       error
	callbacks []func(*Event)
}

// NewEvent creates a pending event bound to env.
func (env *Environment) NewEvent(name string) *Event {
	return &Event{env: env, name: name}
}

// Succeed triggers the event with value and schedules it at the current time.
// Panics if the event was already triggered.
func (e *Event) Succeed(value any) *Event {
	if e.triggered {
		panic(fmt.Sprintf("event %q already triggered", e.name))
	}
	e.triggered = true
	e.value = value
	e.env.schedule(e, 0, PriorityNormal)
	return e
}

// Fail triggers the event with err. Processes waiting on it receive err from Wait.
func (e *Event) Fail(err error) *Event {
	if err == nil {
		panic(fmt.Sprintf("event %q failed with nil error", e.name))
	}
	if e.triggered {
		panic(fmt.Sprintf("event %q already triggered", e.name))
	}
	e.triggered = true
	e.err = err
	e.env.schedule(e, 0, PriorityNormal)
	return e
}

// Triggered reports whether the event has been scheduled for processing.
func (e *Event) Triggered() bool { return e.triggered }

// Processed reports whether the event's callbacks have run.
func (e *Event) Processed() bool { return e.processed }

// Value returns the value the event was triggered with.
func (e *Event) Value() any { return e.value }

// Err returns the failure of the event, if any.
func (e *Event) Err() error { return e.err }

// Name returns the label given at creation; used in logs only.
func (e *Event) Name() string { return e.name }

// OnProcessed registers fn to run when the event is processed.
// If the event has already been processed, fn runs immediately.
func (e *Event) OnProcessed(fn func(*Event)) {
	if e.processed {
		fn(e)
		return
	}
	e.callbacks = append(e.callbacks, fn)
}

func (e *Event) String() string {
	return fmt.Sprintf("Event: (Name: %s, Triggered: %v, Processed: %v)", e.name, e.triggered, e.processed)
}

// fire runs the callbacks of a popped event.
func (e *Event) fire() {
	e.processed = true
	callbacks := e.callbacks
	e.callbacks = nil
	for _, cb := range callbacks {
		cb(e)
	}
}

// Timeout returns an event that is processed delay ticks from now, carrying value.
// Panics on a negative delay.
func (env *Environment) Timeout(delay int64, value any) *Event {
	if delay < 0 {
		panic(fmt.Sprintf("Timeout: negative delay %d", delay))
	}
	e := &Event{env: env, name: fmt.Sprintf("timeout(%d)", delay), triggered: true, value: value}
	env.schedule(e, delay, PriorityNormal)
	return e
}

// AnyOf returns an event that succeeds as soon as the first of events is processed.
// Its value is the *Event that fired first, so callers must compare by identity:
//
//	fired, _ := p.Wait(env.AnyOf(tick, end))
//	if fired == end { ... }
//
// If several members are already processed, the earliest in argument order wins.
// A failing member fails the condition with the same error.
func (env *Environment) AnyOf(events ...*Event) *Event {
	if len(events) == 0 {
		panic("AnyOf: at least one event required")
	}
	cond := env.NewEvent("any_of")
	for _, ev := range events {
		if ev.env != env {
			panic(fmt.Sprintf("AnyOf: event %q belongs to another environment", ev.name))
		}
		if ev.processed {
			settle(cond, ev)
			return cond
		}
	}
	for _, ev := range events {
		ev.OnProcessed(func(fired *Event) {
			if !cond.triggered {
				settle(cond, fired)
			}
		})
	}
	return cond
}

func settle(cond, fired *Event) {
	if fired.err != nil {
		cond.Fail(fired.err)
		return
	}
	cond.Succeed(fired)
}
