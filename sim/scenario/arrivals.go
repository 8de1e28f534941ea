package scenario

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/healthdes/healthdes/sim"
)

// Arrival process names.
const (
	ArrivalFixed   = "fixed"
	ArrivalPoisson = "poisson"
	ArrivalGamma   = "gamma"
	ArrivalWeibull = "weibull"
)

var validArrivalProcesses = map[string]bool{"": true, ArrivalFixed: true, ArrivalPoisson: true, ArrivalGamma: true, ArrivalWeibull: true}

// Schedule yields arrival ticks. Next(-1) returns the first arrival; Next(t)
// the one following an arrival at t. ok is false when no arrival remains.
type Schedule interface {
	Next(after int64) (tick int64, ok bool)
}

// GapSchedule admits the first visitor at tick 0 and the next ones after
// sampled gaps.
type GapSchedule struct {
	Gaps Sampler
	RNG  *rand.Rand
}

func (s GapSchedule) Next(after int64) (int64, bool) {
	if after < 0 {
		return 0, true
	}
	return after + s.Gaps.Sample(s.RNG), true
}

// CronSchedule maps a cron expression onto ticks through a Timebase.
type CronSchedule struct {
	Spec     cron.Schedule
	Timebase sim.Timebase
}

func (s CronSchedule) Next(after int64) (int64, bool) {
	var from time.Time
	if after < 0 {
		// cron only returns instants strictly after from
		from = s.Timebase.Epoch().Add(-time.Nanosecond)
	} else {
		from = s.Timebase.WallClock(after)
	}
	next := s.Spec.Next(from)
	if next.IsZero() {
		return 0, false
	}
	tick := s.Timebase.TickAt(next)
	if tick <= after {
		tick = after + 1
	}
	return tick, true
}

// NewSchedule builds the arrival schedule of a microenvironment. A cron
// schedule takes precedence over the arrival rate.
func NewSchedule(m MicroenvironmentSpec, tb sim.Timebase, rng *sim.PartitionedRNG) (Schedule, error) {
	if m.ArrivalSchedule != "" {
		spec, err := cronParser.Parse(m.ArrivalSchedule)
		if err != nil {
			return nil, fmt.Errorf("arrival schedule %q: %w", m.ArrivalSchedule, err)
		}
		return CronSchedule{Spec: spec, Timebase: tb}, nil
	}
	if !(m.VisitorArrivalRate > 0) {
		return nil, fmt.Errorf("visitor arrival rate must be positive, got %v", m.VisitorArrivalRate)
	}
	gaps, err := NewGapSampler(m.ArrivalProcess, m.ArrivalCV, 1/m.VisitorArrivalRate/tb.Interval())
	if err != nil {
		return nil, err
	}
	s := GapSchedule{Gaps: gaps}
	if rng != nil {
		s.RNG = rng.ForSubsystem(sim.SubsystemArrivals)
	}
	return s, nil
}
