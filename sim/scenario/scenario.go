// Package scenario assembles and runs a complete infection-transmission
// simulation from a Config: one microenvironment, a stream of visitors who
// walk a single-activity route through it, and the reports they produce.
package scenario

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/healthdes/healthdes/sim"
	"github.com/healthdes/healthdes/sim/microenv"
	"github.com/healthdes/healthdes/sim/person"
	"github.com/healthdes/healthdes/sim/report"
	"github.com/healthdes/healthdes/sim/routing"
	"github.com/healthdes/healthdes/sim/trace"
	"github.com/healthdes/healthdes/sim/visitor"
)

// VisitActivity is the routing ID of the visit from start to end.
const VisitActivity = "visit environment"

// runChunk bounds how many ticks run between cancellation checks.
const runChunk = 60

// Result summarises one finished simulation.
type Result struct {
	SimulationName    string  `json:"simulation_name"`
	Run               string  `json:"simulation_run"`
	Microenvironment  string  `json:"microenvironment"`
	Periods           int64   `json:"periods"`
	Arrivals          int     `json:"arrivals"`
	TotalVisitors     float64 `json:"total_visitors"`
	Infections        float64 `json:"infections"`
	AttackRate        float64 `json:"attack_rate"`
	PeakConcentration float64 `json:"peak_concentration"`
	MeanConcentration float64 `json:"mean_concentration"`

	Collector *report.Collector      `json:"-"`
	Trace     *trace.SimulationTrace `json:"-"`
}

// Simulation is a configured, not yet run, scenario.
type Simulation struct {
	cfg       *Config
	spec      MicroenvironmentSpec
	env       *sim.Environment
	tb        sim.Timebase
	collector *report.Collector
	trace     *trace.SimulationTrace
	routing   *routing.Routing
	room      *microenv.Microenvironment
	schedule  Schedule
	persons   person.Config
	arrivals  int
	visitors  []*person.Person
}

// RunID returns the configured run identifier, or a UUID derived from the
// simulation name and seed so reruns are labelled identically.
func RunID(cfg *Config) string {
	if cfg.Simulation.Run != "" {
		return cfg.Simulation.Run
	}
	key := fmt.Sprintf("healthdes/%s/%d", cfg.Simulation.Name, cfg.Simulation.Seed)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

// New builds the environment, reports, microenvironment, routing and arrival
// process described by cfg. Nothing runs until Run.
func New(cfg *Config) (*Simulation, error) {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Selected(); err != nil {
		return nil, err
	}
	epoch, err := cfg.Epoch()
	if err != nil {
		return nil, err
	}
	tb, err := sim.NewTimebase(cfg.Simulation.TimeInterval, epoch)
	if err != nil {
		return nil, err
	}
	spec := cfg.Microenvironments[cfg.Simulation.Microenvironment]
	env := sim.NewEnvironment()
	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(cfg.Simulation.Seed))

	s := &Simulation{
		cfg:       cfg,
		spec:      spec,
		env:       env,
		tb:        tb,
		collector: report.NewCollector(env, cfg.Simulation.Name, RunID(cfg)),
		trace:     trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevel(cfg.Simulation.Trace)}),
		routing:   routing.New(),
	}
	fail := func(err error) (*Simulation, error) {
		env.Close()
		return nil, err
	}

	s.room, err = microenv.New(env, s.collector, tb, microenv.Config{
		Name:            cfg.Simulation.Microenvironment,
		Volume:          spec.Volume,
		AirExchangeRate: spec.AirExchangeRate,
		Capacity:        spec.VisitorCapacity,
	})
	if err != nil {
		return fail(err)
	}
	if err := s.room.Start(); err != nil {
		return fail(err)
	}

	stay, err := NewStaySampler(spec.LengthOfStay, spec.AverageLengthOfStay, tb.Interval())
	if err != nil {
		return fail(fmt.Errorf("microenvironment %s: %w", s.room.Name(), err))
	}
	class, args := visitor.PackStay(s.room, &stayDraw{
		sampler: stay,
		rng:     rng.ForSubsystem(sim.SubsystemEnvironment(s.room.Name())),
	})
	if err := s.routing.RegisterActivity(VisitActivity, class, args); err != nil {
		return fail(err)
	}
	s.routing.AddDecision(routing.StartNode)
	s.routing.AddDecision(routing.EndNode)
	if _, err := s.routing.AddActivity(VisitActivity, routing.StartNode, routing.EndNode); err != nil {
		return fail(err)
	}
	if err := s.routing.Validate(); err != nil {
		return fail(err)
	}

	if s.schedule, err = NewSchedule(spec, tb, rng); err != nil {
		return fail(fmt.Errorf("microenvironment %s: %w", s.room.Name(), err))
	}
	s.persons = person.Config{
		Env:      env,
		Routing:  s.routing,
		Sink:     s.collector,
		Timebase: tb,
		RNG:      rng,
		Trace:    s.trace,
		IDs:      sim.NewIDGen(),
	}
	env.Process("arrivals:"+s.room.Name(), s.arrive)

	logrus.Infof("Simulation %s (run %s): %s, %d periods of %.4g h, mean stay %.4g h",
		cfg.Simulation.Name, s.collector.Run(), s.room.Name(), cfg.Simulation.Periods, tb.Interval(), spec.AverageLengthOfStay)
	return s, nil
}

// arrive admits visitors on the schedule. The first is infected, the rest
// susceptible.
func (s *Simulation) arrive(p *sim.Process) error {
	tick, ok := s.schedule.Next(-1)
	for ok && (s.spec.MaxArrivals == 0 || s.arrivals < s.spec.MaxArrivals) {
		if tick >= s.cfg.Simulation.Periods {
			return nil
		}
		if d := tick - p.Env().Now(); d > 0 {
			if err := p.Sleep(d); err != nil {
				return err
			}
		}
		if err := s.admit(); err != nil {
			return err
		}
		tick, ok = s.schedule.Next(tick)
	}
	return nil
}

func (s *Simulation) admit() error {
	status := visitor.Susceptible
	if s.arrivals == 0 {
		status = visitor.Infected
	}
	pe, err := visitor.NewPerson(s.persons, routing.StartNode, visitor.Profile{
		Status:         status,
		EmissionRate:   s.cfg.Visitors.QuantaEmissionRate,
		InhalationRate: s.cfg.Visitors.InhalationRate,
	})
	if err != nil {
		return err
	}
	s.arrivals++
	s.visitors = append(s.visitors, pe)
	logrus.Debugf("[tick %07d] %s: visitor %d arrived (%s)", s.env.Now(), s.room.Name(), pe.ID(), status)
	pe.Start()
	return nil
}

// Run simulates the configured number of periods and closes the environment.
// A cancelled ctx stops the run between chunks of ticks.
func (s *Simulation) Run(ctx context.Context) (*Result, error) {
	defer s.env.Close()
	horizon := s.cfg.Simulation.Periods
	for now := s.env.Now(); now < horizon; now = s.env.Now() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		until := min(now+runChunk, horizon)
		if err := s.env.Run(until); err != nil {
			return nil, fmt.Errorf("simulation %s: %w", s.cfg.Simulation.Name, err)
		}
	}
	return s.result()
}

func (s *Simulation) result() (*Result, error) {
	res := &Result{
		SimulationName:   s.cfg.Simulation.Name,
		Run:              s.collector.Run(),
		Microenvironment: s.room.Name(),
		Periods:          s.cfg.Simulation.Periods,
		Arrivals:         s.arrivals,
		TotalVisitors:    s.collector.CounterOr(visitor.CounterTotalVisitors, 0),
		Infections:       s.collector.CounterOr(visitor.CounterInfections, 0),
		Collector:        s.collector,
		Trace:            s.trace,
	}
	if res.TotalVisitors > 0 {
		res.AttackRate = res.Infections / res.TotalVisitors
	}
	table, err := s.collector.Table(microenv.ReportQuanta)
	if err != nil {
		return nil, err
	}
	sum, err := report.Summarize(table, "quanta_concentration")
	if err != nil {
		return nil, err
	}
	res.PeakConcentration = sum.Max
	res.MeanConcentration = sum.Mean
	logrus.Infof("Simulation %s finished: %d arrivals, %.0f visitors, %.0f infections, attack rate %.4f",
		res.SimulationName, res.Arrivals, res.TotalVisitors, res.Infections, res.AttackRate)
	return res, nil
}

// Env returns the simulation's environment.
func (s *Simulation) Env() *sim.Environment { return s.env }

// Collector returns the report collector.
func (s *Simulation) Collector() *report.Collector { return s.collector }

// Room returns the simulated microenvironment.
func (s *Simulation) Room() *microenv.Microenvironment { return s.room }

// Visitors returns the visitors admitted so far, in arrival order.
func (s *Simulation) Visitors() []*person.Person { return s.visitors }

// Sweep runs one simulation per named microenvironment (all of them when
// names is empty), at most parallel at a time (unlimited when parallel < 1).
// Results follow the order of names. The first failure cancels the rest.
func Sweep(ctx context.Context, cfg *Config, names []string, parallel int) ([]*Result, error) {
	if len(names) == 0 {
		names = cfg.Names()
	}
	for _, name := range names {
		if _, ok := cfg.Microenvironments[name]; !ok {
			return nil, fmt.Errorf("sweep: microenvironment %q not defined; valid: %v", name, cfg.Names())
		}
	}
	results := make([]*Result, len(names))
	g, ctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			s, err := New(cfg.For(name))
			if err != nil {
				return err
			}
			res, err := s.Run(ctx)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
