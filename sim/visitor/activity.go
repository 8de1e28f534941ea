package visitor

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/healthdes/healthdes/sim"
	"github.com/healthdes/healthdes/sim/activity"
	"github.com/healthdes/healthdes/sim/attrs"
	"github.com/healthdes/healthdes/sim/microenv"
	"github.com/healthdes/healthdes/sim/report"
)

// Report and counter names written by a visit.
const (
	ReportVisitorActivity = "Visitor activity"
	CounterTotalVisitors  = "Total visitors"
)

// Argument keys of a visit.
const (
	ArgMicroenvironment = "microenvironment"
	ArgDuration         = "duration"
)

// VisitClass is the activity class of a visit to a microenvironment.
var VisitClass activity.Class = activity.ClassFunc{Label: "visit", Build: newVisit}

// StayLength draws the length of one visit in ticks.
type StayLength interface {
	NextStay() int64
}

// Pack returns the class and arguments of a visit lasting duration ticks.
func Pack(room *microenv.Microenvironment, duration int64) (activity.Class, activity.Args) {
	return VisitClass, activity.Args{
		ArgMicroenvironment: room,
		ArgDuration:         duration,
	}
}

// PackStay is Pack with a length drawn from stay for every visitor.
func PackStay(room *microenv.Microenvironment, stay StayLength) (activity.Class, activity.Args) {
	return VisitClass, activity.Args{
		ArgMicroenvironment: room,
		ArgDuration:         stay,
	}
}

// Visit is a stay in a microenvironment. Seizing waits for admission, running
// emits or inhales quanta every tick for the duration, and releasing frees
// the visitor's place.
type Visit struct {
	activity.Base
	ctx      activity.Context
	room     *microenv.Microenvironment
	duration int64
	ticket   *sim.Request
}

func newVisit(ctx activity.Context, args activity.Args) (activity.Hooks, error) {
	room, err := activity.Get[*microenv.Microenvironment](args, ArgMicroenvironment)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, fmt.Errorf("argument %q: nil microenvironment", ArgMicroenvironment)
	}
	var duration int64
	if stay, ok := args[ArgDuration].(StayLength); ok {
		duration = stay.NextStay()
	} else if duration, err = args.Int64(ArgDuration); err != nil {
		return nil, err
	}
	if duration < 1 {
		return nil, fmt.Errorf("argument %q: duration must be >= 1 tick, got %d", ArgDuration, duration)
	}
	if ctx.Owner == nil || ctx.Sink == nil {
		return nil, errors.New("visit requires an owner and a sink")
	}
	return &Visit{ctx: ctx, room: room, duration: duration}, nil
}

// SeizeResources waits until the visitor is admitted.
func (v *Visit) SeizeResources(p *sim.Process) error {
	v.ticket = v.room.RequestEntry()
	_, err := p.Wait(v.ticket.Event)
	return err
}

// DoActivity stays in the room for the visit duration.
func (v *Visit) DoActivity(p *sim.Process) error {
	id := v.ctx.Owner.ID()
	if err := v.log(fmt.Sprintf("Visitor %d entered.", id)); err != nil {
		return err
	}
	v.ctx.Sink.CounterIncrement(CounterTotalVisitors, 1)

	st := v.ctx.Owner.Status()
	infected, err := st.Is(StatusInfection, Infected)
	if err != nil {
		return err
	}
	susceptible, err := st.Is(StatusInfection, Susceptible)
	if err != nil {
		return err
	}

	env := v.ctx.Env
	leave := env.NewEvent(fmt.Sprintf("leave:%d", id))
	switch {
	case infected:
		env.Process(fmt.Sprintf("emit:%d", id), func(lp *sim.Process) error {
			return v.periods(lp, leave, v.emit)
		})
	case susceptible:
		env.Process(fmt.Sprintf("inhale:%d", id), func(lp *sim.Process) error {
			return v.periods(lp, leave, v.inhale)
		})
	default:
		leave.Succeed(nil)
	}
	if _, err := p.Wait(leave); err != nil {
		return err
	}

	if err := v.logRisk(); err != nil {
		return err
	}
	return v.log(fmt.Sprintf("Visitor %d left.", id))
}

// ReleaseResources frees the visitor's place in the room.
func (v *Visit) ReleaseResources(*sim.Process) error {
	if v.ticket != nil {
		v.ticket.Release()
	}
	return nil
}

// periods runs work once per tick until the visit duration has elapsed,
// then succeeds leave.
func (v *Visit) periods(p *sim.Process, leave *sim.Event, work func() error) error {
	env := p.Env()
	end := env.Timeout(v.duration, "end")
	for {
		tick := env.Timeout(1, "periodic")
		if err := work(); err != nil {
			return err
		}
		fired, err := p.Wait(env.AnyOf(tick, end))
		if err != nil {
			return err
		}
		if fired == end {
			break
		}
	}
	leave.Succeed(nil)
	return nil
}

func (v *Visit) emit() error {
	rate, err := v.ctx.Owner.Attributes().Float(AttrEmissionRate)
	if err != nil {
		return err
	}
	return v.room.AddQuanta(v.ctx.Timebase.PerTick(rate))
}

func (v *Visit) inhale() error {
	_, err := v.ctx.Owner.Do(ActionExpose, attrs.Args{ArgConcentration: attrs.Float(v.room.Concentration())})
	return err
}

func (v *Visit) logRisk() error {
	risk, err := v.ctx.Owner.Do(ActionRisk, nil)
	if err != nil {
		if attrs.IsNotFound(err) {
			return nil
		}
		return err
	}
	f, ok := risk.AsFloat()
	if !ok {
		return fmt.Errorf("action %q returned %v: %w", ActionRisk, risk.Kind(), attrs.ErrInvalidValue)
	}
	return v.ctx.Sink.LogRow(ReportInfectionRisk, report.Row{"Person": v.ctx.Owner.ID(), "Infection risk": f})
}

func (v *Visit) log(what string) error {
	logrus.Debugf("[tick %07d] %s: %s", v.ctx.Env.Now(), v.room.Name(), what)
	return v.ctx.Sink.LogRow(ReportVisitorActivity, report.Row{
		"queue":    v.room.QueueLength(),
		"visitors": v.room.ActiveCount(),
		"activity": what,
	})
}

// Duration returns the length of the visit in ticks.
func (v *Visit) Duration() int64 { return v.duration }

// Room returns the microenvironment being visited.
func (v *Visit) Room() *microenv.Microenvironment { return v.room }
