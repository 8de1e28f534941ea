package scenario

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/healthdes/healthdes/sim/trace"
)

// Defaults applied by Normalize.
const (
	DefaultPeriods      = 180
	DefaultTimeInterval = 1.0 / 60 // one minute per tick
)

// Config is the top-level scenario file.
// Loaded from YAML via Load(path).
type Config struct {
	Simulation        SimulationSpec                  `yaml:"simulation"`
	Microenvironments map[string]MicroenvironmentSpec `yaml:"microenvironments"`
	Visitors          VisitorSpec                     `yaml:"visitors"`
}

// SimulationSpec holds run-wide settings.
type SimulationSpec struct {
	Name             string  `yaml:"name"`
	Run              string  `yaml:"run,omitempty"`              // empty = deterministic UUID from name and seed
	Microenvironment string  `yaml:"microenvironment,omitempty"` // empty allowed when only one is defined
	Periods          int64   `yaml:"periods,omitempty"`          // ticks to simulate
	TimeInterval     float64 `yaml:"time_interval,omitempty"`    // hours per tick
	Seed             int64   `yaml:"seed"`
	StartTime        string  `yaml:"start_time,omitempty"` // RFC 3339 wall clock of tick 0
	Trace            string  `yaml:"trace,omitempty"`
}

// MicroenvironmentSpec describes one space and the visitors it receives.
type MicroenvironmentSpec struct {
	Volume              float64   `yaml:"volume"`                     // m^3
	AirExchangeRate     float64   `yaml:"air_exchange_rate"`          // per hour
	VisitorCapacity     int       `yaml:"visitor_capacity"`           // 0 = unbounded
	AverageLengthOfStay float64   `yaml:"average_length_of_stay"`     // hours
	VisitorArrivalRate  float64   `yaml:"visitor_arrival_rate"`       // visitors per hour
	MaxArrivals         int       `yaml:"max_arrivals"`               // 0 = unlimited
	ArrivalProcess      string    `yaml:"arrival_process,omitempty"`  // fixed (default), poisson, gamma, weibull
	ArrivalCV           float64   `yaml:"arrival_cv,omitempty"`       // gamma and weibull only; default 1
	ArrivalSchedule     string    `yaml:"arrival_schedule,omitempty"` // five-field cron, replaces the rate
	LengthOfStay        *DistSpec `yaml:"length_of_stay,omitempty"`   // nil = every stay lasts the average
}

// VisitorSpec overrides visitor defaults. Zero keeps the default.
type VisitorSpec struct {
	QuantaEmissionRate float64 `yaml:"quanta_emission_rate,omitempty"`
	InhalationRate     float64 `yaml:"inhalation_rate,omitempty"`
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Load reads and parses a YAML scenario file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes a scenario, applies defaults and validates it.
func Parse(r io.Reader) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize fills defaults in place.
func (c *Config) Normalize() {
	if c.Simulation.Periods == 0 {
		c.Simulation.Periods = DefaultPeriods
	}
	if c.Simulation.TimeInterval == 0 {
		c.Simulation.TimeInterval = DefaultTimeInterval
	}
	if c.Simulation.Microenvironment == "" && len(c.Microenvironments) == 1 {
		for name := range c.Microenvironments {
			c.Simulation.Microenvironment = name
		}
	}
	if c.Simulation.Name == "" {
		c.Simulation.Name = c.Simulation.Microenvironment
	}
	if c.Simulation.Trace == "" {
		c.Simulation.Trace = string(trace.TraceLevelNone)
	}
}

// Validate checks that all fields are usable. A file defining several
// microenvironments may leave the selection empty; a sweep simulates each.
func (c *Config) Validate() error {
	s := c.Simulation
	if s.Periods < 1 {
		return fmt.Errorf("simulation.periods must be positive, got %d", s.Periods)
	}
	if !(s.TimeInterval > 0) || math.IsInf(s.TimeInterval, 0) {
		return fmt.Errorf("simulation.time_interval must be positive, got %v", s.TimeInterval)
	}
	if _, err := c.Epoch(); err != nil {
		return err
	}
	if !trace.IsValidTraceLevel(s.Trace) {
		return fmt.Errorf("simulation.trace: unknown level %q; valid: none, transitions", s.Trace)
	}
	if len(c.Microenvironments) == 0 {
		return fmt.Errorf("no microenvironments defined")
	}
	if _, ok := c.Microenvironments[s.Microenvironment]; s.Microenvironment != "" && !ok {
		return fmt.Errorf("simulation.microenvironment %q not defined; valid: %v", s.Microenvironment, c.Names())
	}
	for _, name := range c.Names() {
		if err := c.Microenvironments[name].validate(name, s.TimeInterval); err != nil {
			return err
		}
	}
	if c.Visitors.QuantaEmissionRate < 0 || c.Visitors.InhalationRate < 0 {
		return fmt.Errorf("visitors: rates must not be negative")
	}
	return nil
}

// Selected checks that a single microenvironment is chosen for a run.
func (c *Config) Selected() error {
	s := c.Simulation
	if s.Microenvironment == "" {
		return fmt.Errorf("simulation.microenvironment is required when several are defined; valid: %v", c.Names())
	}
	if s.Name == "" {
		return fmt.Errorf("simulation.name is required")
	}
	return nil
}

func (m MicroenvironmentSpec) validate(name string, hoursPerTick float64) error {
	prefix := fmt.Sprintf("microenvironments.%s", name)
	if !(m.Volume > 0) {
		return fmt.Errorf("%s.volume must be positive, got %v", prefix, m.Volume)
	}
	if !(m.AirExchangeRate > 0) {
		return fmt.Errorf("%s.air_exchange_rate must be positive, got %v", prefix, m.AirExchangeRate)
	}
	if m.VisitorCapacity < 0 {
		return fmt.Errorf("%s.visitor_capacity must not be negative, got %d", prefix, m.VisitorCapacity)
	}
	if !(m.AverageLengthOfStay > 0) {
		return fmt.Errorf("%s.average_length_of_stay must be positive, got %v", prefix, m.AverageLengthOfStay)
	}
	if _, err := NewStaySampler(m.LengthOfStay, m.AverageLengthOfStay, hoursPerTick); err != nil {
		return fmt.Errorf("%s.length_of_stay: %w", prefix, err)
	}
	if m.ArrivalCV < 0 {
		return fmt.Errorf("%s.arrival_cv must not be negative, got %v", prefix, m.ArrivalCV)
	}
	if m.MaxArrivals < 0 {
		return fmt.Errorf("%s.max_arrivals must not be negative, got %d", prefix, m.MaxArrivals)
	}
	if !validArrivalProcesses[m.ArrivalProcess] {
		return fmt.Errorf("%s.arrival_process: unknown process %q; valid: fixed, poisson, gamma, weibull", prefix, m.ArrivalProcess)
	}
	if m.ArrivalSchedule != "" {
		if _, err := cronParser.Parse(m.ArrivalSchedule); err != nil {
			return fmt.Errorf("%s.arrival_schedule: %w", prefix, err)
		}
		return nil
	}
	if !(m.VisitorArrivalRate > 0) {
		return fmt.Errorf("%s.visitor_arrival_rate must be positive, got %v", prefix, m.VisitorArrivalRate)
	}
	return nil
}

// Names returns microenvironment names in sorted order.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Microenvironments))
	for k := range c.Microenvironments {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Epoch returns the wall clock of tick 0 (zero time when unset).
func (c *Config) Epoch() (time.Time, error) {
	if c.Simulation.StartTime == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, c.Simulation.StartTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("simulation.start_time: %w", err)
	}
	return t, nil
}

// For returns a copy of c that simulates the named microenvironment under its
// own name, as a sweep does.
func (c *Config) For(name string) *Config {
	out := *c
	out.Microenvironments = make(map[string]MicroenvironmentSpec, len(c.Microenvironments))
	for k, v := range c.Microenvironments {
		out.Microenvironments[k] = v
	}
	out.Simulation.Microenvironment = name
	out.Simulation.Name = name
	return &out
}
