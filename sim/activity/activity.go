// Package activity implements the activity state machine: a reusable
// "acquire, run, release" unit driven by commands from its owning person.
//
// An activity never calls back into its owner. The owner posts a Command to
// the instance's inbox; the instance runs the matching hooks, advances its
// State, and posts a Reply to its outbox. Hooks may suspend (waiting for a
// resource or a timeout) and the state only advances once they return.
package activity

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/healthdes/healthdes/sim"
	"github.com/healthdes/healthdes/sim/attrs"
	"github.com/healthdes/healthdes/sim/report"
	"github.com/healthdes/healthdes/sim/trace"
)

// Hooks is the overridable behaviour of an activity. Each hook runs inside
// the activity's own process and may suspend on p.
type Hooks interface {
	Initialise(p *sim.Process) error
	SeizeResources(p *sim.Process) error
	DoActivity(p *sim.Process) error
	ReleaseResources(p *sim.Process) error
	End(p *sim.Process) error
}

// Base provides no-op hooks; embed it and override what the activity needs.
type Base struct{}

func (Base) Initialise(*sim.Process) error { return nil }
func (Base) SeizeResources(*sim.Process) error { return nil }
func (Base) DoActivity(*sim.Process) error { return nil }
func (Base) ReleaseResources(*sim.Process) error { return nil }
func (Base) End(*sim.Process) error { return nil }

// Owner is the view of the owning person available to activity hooks.
type Owner interface {
	ID() int64
	Attributes() *attrs.Store
	Status() *attrs.StatusSet
	Do(action string, args attrs.Args) (attrs.Value, error)
}

// Context carries the collaborators an activity needs at run time.
type Context struct {
	Env      *sim.Environment
	Owner    Owner
	Sink     report.Sink
	Timebase sim.Timebase
	RNG      *sim.PartitionedRNG
	Trace    *trace.SimulationTrace
}

// Class builds activity hooks from packed arguments.
type Class interface {
	Name() string
	New(ctx Context, args Args) (Hooks, error)
}

// ClassFunc adapts a constructor function to Class.
type ClassFunc struct {
	Label string
	Build func(ctx Context, args Args) (Hooks, error)
}

func (c ClassFunc) Name() string { return c.Label }

func (c ClassFunc) New(ctx Context, args Args) (Hooks, error) { return c.Build(ctx, args) }

// Instance is one running activity for one owner.
type Instance struct {
	ctx    Context
	name   string
	hooks  Hooks
	state  State
	inbox  *sim.Store[Command]
	outbox *sim.Store[Reply]
	proc   *sim.Process
}

// New unpacks args through class and returns an instance in StateInit with
// fresh private mailboxes. The instance does not run until Launch.
func New(ctx Context, class Class, args Args) (*Instance, error) {
	if ctx.Env == nil {
		return nil, fmt.Errorf("activity %s: nil environment", class.Name())
	}
	hooks, err := class.New(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("activity %s: %w", class.Name(), err)
	}
	name := class.Name()
	if ctx.Owner != nil {
		name = fmt.Sprintf("%s/%d", name, ctx.Owner.ID())
	}
	return &Instance{
		ctx:    ctx,
		name:   name,
		hooks:  hooks,
		state:  StateInit,
		inbox:  sim.NewStore[Command](ctx.Env, name+":in"),
		outbox: sim.NewStore[Reply](ctx.Env, name+":out"),
	}, nil
}

// Launch starts the instance's process. Calling it twice is a no-op.
func (in *Instance) Launch() *sim.Process {
	if in.proc == nil {
		in.proc = in.ctx.Env.Process(in.name, in.run)
	}
	return in.proc
}

// Send posts cmd to the instance.
func (in *Instance) Send(cmd Command) { in.inbox.Put(cmd) }

// Replies is the mailbox the instance posts replies to.
func (in *Instance) Replies() *sim.Store[Reply] { return in.outbox }

// State returns the current state.
func (in *Instance) State() State { return in.state }

// Name returns the instance label (class name and owner ID).
func (in *Instance) Name() string { return in.name }

// Hooks returns the domain behaviour behind the instance.
func (in *Instance) Hooks() Hooks { return in.hooks }

// Process returns the running process, or nil before Launch.
func (in *Instance) Process() *sim.Process { return in.proc }

func (in *Instance) run(p *sim.Process) error {
	for in.state != StateEnded {
		cmd, err := in.inbox.Receive(p)
		if err != nil {
			return err
		}
		tr, err := Next(in.state, cmd)
		if err != nil {
			var pe *ProtocolError
			if errors.As(err, &pe) {
				pe.Activity = in.name
			}
			return err
		}
		from := in.state
		if tr.Step.runs() {
			in.state = StateRunning
		}
		if err := in.perform(p, tr.Step); err != nil {
			return fmt.Errorf("activity %s: %s: %w", in.name, tr.Step, err)
		}
		in.state = tr.Next
		in.record(from, cmd, tr.Next)
		in.outbox.Put(tr.Reply)
	}
	return nil
}

func (in *Instance) perform(p *sim.Process, step Step) error {
	h := in.hooks
	switch step {
	case StepInitialise:
		return h.Initialise(p)
	case StepSeize:
		return h.SeizeResources(p)
	case StepSeizeAndRun:
		if err := h.SeizeResources(p); err != nil {
			return err
		}
		return h.DoActivity(p)
	case StepRun:
		return h.DoActivity(p)
	case StepRelease:
		return h.ReleaseResources(p)
	case StepReleaseAndEnd:
		if err := h.ReleaseResources(p); err != nil {
			return err
		}
		return h.End(p)
	case StepEnd:
		return h.End(p)
	}
	return fmt.Errorf("unknown step %s", step)
}

func (in *Instance) record(from State, cmd Command, to State) {
	now := in.ctx.Env.Now()
	logrus.Debugf("[tick %07d] activity %s: %s --%s--> %s", now, in.name, from, cmd, to)
	var owner int64 = -1
	if in.ctx.Owner != nil {
		owner = in.ctx.Owner.ID()
	}
	in.ctx.Trace.RecordTransition(trace.TransitionRecord{
		Machine: trace.MachineActivity,
		Owner:   owner,
		Subject: in.name,
		Clock:   now,
		From:    from.String(),
		Message: cmd.String(),
		To:      to.String(),
	})
}
