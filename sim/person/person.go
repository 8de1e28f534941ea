// Package person implements the entity state machine that walks a person
// through the routing graph.
//
// A person holds two activity slots. A is the activity in progress; B is the
// next one. When A completes, B is initialised and admitted before A releases
// its resources and ends, and then B moves into slot A. A person therefore
// never leaves one environment before it has been let into the next.
package person

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/healthdes/healthdes/sim"
	"github.com/healthdes/healthdes/sim/activity"
	"github.com/healthdes/healthdes/sim/attrs"
	"github.com/healthdes/healthdes/sim/report"
	"github.com/healthdes/healthdes/sim/routing"
	"github.com/healthdes/healthdes/sim/trace"
)

// Config holds the collaborators shared by all persons of a simulation.
type Config struct {
	Env      *sim.Environment
	Routing  *routing.Routing
	Sink     report.Sink
	Timebase sim.Timebase
	RNG      *sim.PartitionedRNG
	Trace    *trace.SimulationTrace
	IDs      *sim.IDGen
}

type slot struct {
	activity routing.Activity
	inst     *activity.Instance
}

// Person is one simulated participant.
type Person struct {
	cfg   Config
	id    int64
	kind  string
	start string

	attributes *attrs.Store
	status     *attrs.StatusSet
	actions    *attrs.Actions

	a, b        *slot
	state       State
	transitions int
	proc        *sim.Process
}

var _ activity.Owner = (*Person)(nil)

// New creates a person of the given kind that will start at startNode.
func New(cfg Config, kind, startNode string) (*Person, error) {
	if cfg.Env == nil || cfg.Routing == nil || cfg.IDs == nil {
		return nil, errors.New("person: config requires Env, Routing and IDs")
	}
	if startNode == "" {
		startNode = routing.StartNode
	}
	return &Person{
		cfg:        cfg,
		id:         cfg.IDs.Next(),
		kind:       kind,
		start:      startNode,
		attributes: attrs.NewStore(),
		status:     attrs.NewStatusSet(),
		actions:    attrs.NewActions(),
		state:      StateInit,
	}, nil
}

// ID returns the person identifier.
func (pe *Person) ID() int64 { return pe.id }

// Kind returns the person type label, for example "visitor".
func (pe *Person) Kind() string { return pe.kind }

// Attributes returns the attribute store.
func (pe *Person) Attributes() *attrs.Store { return pe.attributes }

// Status returns the status store.
func (pe *Person) Status() *attrs.StatusSet { return pe.status }

// Actions returns the do-action registry.
func (pe *Person) Actions() *attrs.Actions { return pe.actions }

// Do invokes the named action.
func (pe *Person) Do(action string, args attrs.Args) (attrs.Value, error) {
	v, err := pe.actions.Do(action, args)
	if err != nil {
		return attrs.Value{}, fmt.Errorf("person %d: %w", pe.id, err)
	}
	return v, nil
}

// State returns the current state.
func (pe *Person) State() State { return pe.state }

// Transitions returns the number of state transitions taken so far.
func (pe *Person) Transitions() int { return pe.transitions }

// Current returns the activity in slot A.
func (pe *Person) Current() (routing.Activity, bool) {
	if pe.a == nil {
		return routing.Activity{}, false
	}
	return pe.a.activity, true
}

// Pending returns the activity in slot B.
func (pe *Person) Pending() (routing.Activity, bool) {
	if pe.b == nil {
		return routing.Activity{}, false
	}
	return pe.b.activity, true
}

// Start schedules the person's Run loop as a new process.
func (pe *Person) Start() *sim.Process {
	if pe.proc == nil {
		pe.proc = pe.cfg.Env.Process(fmt.Sprintf("person %d", pe.id), pe.Run)
	}
	return pe.proc
}

// Run drives the person from its start node to routing.EndNode.
func (pe *Person) Run(p *sim.Process) error {
	first, err := pe.nextActivity(pe.start)
	if err != nil {
		return err
	}
	pe.a = &slot{activity: first}

	msg := MsgInitialiseA
	for pe.state != StateEnd {
		tr, err := Next(pe.state, msg)
		if err != nil {
			var pr *ProtocolError
			if errors.As(err, &pr) {
				pr.Person = pe.id
			}
			return err
		}
		from, in := pe.state, msg
		pe.state = tr.Next

		if msg, err = pe.perform(tr.Action, msg); err != nil {
			return err
		}
		pe.record(from, in, tr)

		if tr.To == SlotNone {
			continue
		}
		target := pe.slot(tr.To)
		if target == nil || target.inst == nil {
			return fmt.Errorf("person %d: %s: slot %s has no running activity", pe.id, pe.state, tr.To)
		}
		target.inst.Send(tr.Send)
		reply, err := target.inst.Replies().Receive(p)
		if err != nil {
			return err
		}
		msg = Tag(reply, tr.To)
	}
	logrus.Debugf("[tick %07d] person %d finished after %d transitions", pe.cfg.Env.Now(), pe.id, pe.transitions)
	return nil
}

func (pe *Person) slot(s Slot) *slot {
	if s == SlotB {
		return pe.b
	}
	return pe.a
}

// perform runs the local action and returns the message to feed back into
// the state machine; actions without an outcome pass msg through.
func (pe *Person) perform(action Action, msg Message) (Message, error) {
	switch action {
	case ActionNone:
		return msg, nil
	case ActionRunA:
		return msg, pe.launch(pe.a)
	case ActionRunB:
		return msg, pe.launch(pe.b)
	case ActionNextNode:
		node := pe.a.activity.Ref.To
		if node == routing.EndNode {
			pe.b = nil
			return MsgBranchToEnd, nil
		}
		next, err := pe.nextActivity(node)
		if err != nil {
			return msg, err
		}
		pe.b = &slot{activity: next}
		return MsgInitialiseB, nil
	case ActionTransferBToA:
		pe.a, pe.b = pe.b, nil
		return Tag(activity.ReplyResourcesSeized, SlotA), nil
	}
	return msg, fmt.Errorf("person %d: no handler for action %s", pe.id, action)
}

func (pe *Person) launch(s *slot) error {
	if s == nil {
		return fmt.Errorf("person %d: launch on empty slot", pe.id)
	}
	ctx := activity.Context{
		Env:      pe.cfg.Env,
		Owner:    pe,
		Sink:     pe.cfg.Sink,
		Timebase: pe.cfg.Timebase,
		RNG:      pe.cfg.RNG,
		Trace:    pe.cfg.Trace,
	}
	inst, err := activity.New(ctx, s.activity.Class, s.activity.Args)
	if err != nil {
		return fmt.Errorf("person %d: %s %s: %w", pe.id, s.activity.ID, s.activity.Ref, err)
	}
	s.inst = inst
	inst.Launch()
	return nil
}

func (pe *Person) nextActivity(node string) (routing.Activity, error) {
	candidates, d, err := pe.cfg.Routing.Next(node)
	if err != nil {
		return routing.Activity{}, fmt.Errorf("person %d: %w", pe.id, err)
	}
	rec := trace.RoutingRecord{Owner: pe.id, Clock: pe.cfg.Env.Now(), Node: node}
	for _, c := range candidates {
		rec.Chosen = append(rec.Chosen, c.ID)
	}
	if d != nil {
		rec.Decision = d.Class.Name()
	}
	pe.cfg.Trace.RecordRouting(rec)
	if len(candidates) != 1 {
		return routing.Activity{}, &RoutingError{Person: pe.id, Node: node, Count: len(candidates)}
	}
	return candidates[0], nil
}

func (pe *Person) record(from State, msg Message, tr Transition) {
	pe.transitions++
	now := pe.cfg.Env.Now()
	logrus.Debugf("[tick %07d] person %d: %s --%s/%s--> %s", now, pe.id, from, msg, tr.Action, tr.Next)
	pe.cfg.Trace.RecordTransition(trace.TransitionRecord{
		Machine: trace.MachinePerson,
		Owner:   pe.id,
		Subject: pe.kind,
		Clock:   now,
		From:    from.String(),
		Message: msg.String(),
		To:      tr.Next.String(),
	})
}
