package sim

import (
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"
)

type wakeSignal int

const (
	wakeResume wakeSignal = iota
	wakeHalt
)

// Process is a cooperative coroutine scheduled by an Environment.
//
// The body receives its own *Process and suspends with Wait; between two Wait
// calls it runs without interruption, so reads and writes of shared simulation
// state inside one step never interleave with another process.
type Process struct {
	env  *Environment
	id   uint64
	name string
	fn   func(*Process) error
	done *Event
	wake chan wakeSignal

	started  bool
	finished bool
	halted   bool
}

// Process schedules fn as a new process starting at the current time.
// Processes created at the same timestamp start in creation order.
func (env *Environment) Process(name string, fn func(*Process) error) *Process {
	if fn == nil {
		panic("Process: fn must not be nil")
	}
	env.nextID++
	p := &Process{
		env:  env,
		id:   env.nextID,
		name: name,
		fn:   fn,
		wake: make(chan wakeSignal),
	}
	p.done = env.NewEvent("done:" + name)
	env.procs = append(env.procs, p)

	init := &Event{env: env, name: "init:" + name, triggered: true}
	init.callbacks = []func(*Event){func(*Event) { env.start(p) }}
	env.schedule(init, 0, PriorityUrgent)
	return p
}

// Env returns the environment the process belongs to.
func (p *Process) Env() *Environment { return p.env }

// Name returns the process label.
func (p *Process) Name() string { return p.name }

// ID returns the process sequence number within its environment.
func (p *Process) ID() uint64 { return p.id }

// Done returns the event processed when the body returns. It fails with the
// body's error if the body returned one.
func (p *Process) Done() *Event { return p.done }

// Alive reports whether the process has started and not yet returned.
func (p *Process) Alive() bool { return p.started && !p.finished }

// Wait suspends the process until ev is processed and returns its value and error.
// Waiting on an already processed event returns immediately without yielding.
func (p *Process) Wait(ev *Event) (any, error) {
	if ev.env != p.env {
		panic(fmt.Sprintf("process %s: waiting on an event from another environment", p.name))
	}
	if !ev.processed {
		ev.OnProcessed(func(*Event) { p.env.resume(p) })
		p.park()
	}
	return ev.value, ev.err
}

// Sleep suspends the process for delay ticks.
func (p *Process) Sleep(delay int64) error {
	_, err := p.Wait(p.env.Timeout(delay, nil))
	return err
}

func (p *Process) park() {
	p.env.yield <- struct{}{}
	if <-p.wake == wakeHalt {
		p.halted = true
		runtime.Goexit()
	}
}

func (p *Process) main() {
	<-p.wake
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("process %s panicked: %v", p.name, r)
		}
		p.finished = true
		if !p.halted {
			p.env.forget(p)
			if err != nil {
				logrus.Errorf("[tick %07d] Process %s failed: %v", p.env.clock, p.name, err)
				p.env.fail(err)
				p.done.Fail(err)
			} else {
				p.done.Succeed(nil)
			}
		}
		p.env.yield <- struct{}{}
	}()
	err = p.fn(p)
}

// start launches the goroutine for p and blocks until it first suspends or returns.
func (env *Environment) start(p *Process) {
	if env.closed {
		return
	}
	p.started = true
	logrus.Tracef("[tick %07d] Starting process %s", env.clock, p.name)
	go p.main()
	p.wake <- wakeResume
	<-env.yield
}

// resume hands control to p and blocks until it suspends again or returns.
func (env *Environment) resume(p *Process) {
	if p.finished || env.closed {
		return
	}
	p.wake <- wakeResume
	<-env.yield
}
