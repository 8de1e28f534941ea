// Package microenv models an enclosed space: a capacity-limited admission
// point holding an airborne quanta load that decays with air exchange.
package microenv

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/healthdes/healthdes/sim"
	"github.com/healthdes/healthdes/sim/report"
)

// ReportQuanta is the periodic report every microenvironment samples each tick.
const ReportQuanta = "Quanta concentration"

// ErrInvariant is returned for out-of-range parameters or inputs.
var ErrInvariant = errors.New("invariant violation")

// Reporter registers periodic reports.
type Reporter interface {
	Periodic(name string, period int64, fn func() (report.Row, error)) error
}

// Config describes a microenvironment. A zero Capacity means unbounded.
type Config struct {
	Name            string
	Volume          float64 // m^3
	AirExchangeRate float64 // air changes per hour
	Capacity        int
}

// Validate checks the physical parameters.
func (c Config) Validate() error {
	if !(c.Volume > 0) || math.IsInf(c.Volume, 0) {
		return fmt.Errorf("microenvironment %s: volume must be greater than zero, got %v: %w", c.Name, c.Volume, ErrInvariant)
	}
	if !(c.AirExchangeRate > 0) || math.IsInf(c.AirExchangeRate, 0) {
		return fmt.Errorf("microenvironment %s: air exchange rate must be greater than zero, got %v: %w", c.Name, c.AirExchangeRate, ErrInvariant)
	}
	if c.Capacity < 0 {
		return fmt.Errorf("microenvironment %s: capacity must be greater than zero, got %d: %w", c.Name, c.Capacity, ErrInvariant)
	}
	return nil
}

// Microenvironment is a shared space. Its load is only mutated inside a
// single process step, so concurrent occupants never interleave updates.
type Microenvironment struct {
	cfg     Config
	env     *sim.Environment
	decay   float64 // fraction of load surviving one tick
	load    float64 // quanta
	entry   *sim.Resource
	started bool
}

// New creates a microenvironment and registers its ReportQuanta sampling.
// The decay process only runs after Start.
func New(env *sim.Environment, reporter Reporter, tb sim.Timebase, cfg Config) (*Microenvironment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	capacity := cfg.Capacity
	if capacity == 0 {
		capacity = sim.Unbounded
	}
	m := &Microenvironment{
		cfg:   cfg,
		env:   env,
		decay: tb.DecayFactor(cfg.AirExchangeRate),
		entry: sim.NewResource(env, cfg.Name, capacity),
	}
	if reporter != nil {
		if err := reporter.Periodic(ReportQuanta, 1, func() (report.Row, error) {
			return report.Row{"microenvironment": cfg.Name, "quanta_concentration": m.Concentration()}, nil
		}); err != nil {
			return nil, fmt.Errorf("microenvironment %s: %w", cfg.Name, err)
		}
	}
	return m, nil
}

// Start launches the decay process. It returns an error if already started.
func (m *Microenvironment) Start() error {
	if m.started {
		return fmt.Errorf("microenvironment %s: already started", m.cfg.Name)
	}
	m.started = true
	m.env.Process("decay:"+m.cfg.Name, func(p *sim.Process) error {
		for {
			m.Decay()
			if err := p.Sleep(1); err != nil {
				return err
			}
		}
	})
	return nil
}

// Decay applies one tick of air exchange to the load.
func (m *Microenvironment) Decay() {
	m.load *= m.decay
}

// RequestEntry issues an admission ticket.
func (m *Microenvironment) RequestEntry() *sim.Request {
	return m.entry.Request()
}

// AddQuanta adds q quanta to the load. Negative or NaN amounts are rejected.
func (m *Microenvironment) AddQuanta(q float64) error {
	if !(q >= 0) {
		return fmt.Errorf("microenvironment %s: quanta must be >= 0, got %v: %w", m.cfg.Name, q, ErrInvariant)
	}
	m.load += q
	logrus.Tracef("[tick %07d] %s load %.6f", m.env.Now(), m.cfg.Name, m.load)
	return nil
}

// Concentration returns quanta per m^3.
func (m *Microenvironment) Concentration() float64 { return m.load / m.cfg.Volume }

// Load returns the quanta currently in the space.
func (m *Microenvironment) Load() float64 { return m.load }

// QueueLength returns the number of people waiting to enter.
func (m *Microenvironment) QueueLength() int { return m.entry.QueueLength() }

// ActiveCount returns the number of people inside.
func (m *Microenvironment) ActiveCount() int { return m.entry.ActiveCount() }

func (m *Microenvironment) Name() string { return m.cfg.Name }
func (m *Microenvironment) Volume() float64 { return m.cfg.Volume }
func (m *Microenvironment) AirExchangeRate() float64 { return m.cfg.AirExchangeRate }
func (m *Microenvironment) DecayFactor() float64 { return m.decay }
func (m *Microenvironment) Capacity() int { return m.entry.Capacity() }
