// Package report collects simulation output: named counters, tabular logs
// stamped with the simulation name, run and time, and periodic samples.
package report

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/healthdes/healthdes/sim"
)

// Stamp columns added to every logged row.
const (
	ColumnSimulationName = "simulation_name"
	ColumnSimulationRun  = "simulation_run"
	ColumnTime           = "time"
)

// ErrDuplicateReport is returned when a periodic report name is registered twice.
var ErrDuplicateReport = errors.New("report already registered")

// ErrUnknownField is returned when a row carries a field outside the table's columns.
var ErrUnknownField = errors.New("unknown field")

// NotFoundError reports a lookup of an unknown counter or report.
type NotFoundError struct {
	Kind string // "counter" or "report"
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

// IsNotFound reports whether err is a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// Row maps field names to values for one log entry.
type Row map[string]any

// Sink is the reporting surface consumed by activities and persons.
type Sink interface {
	// CounterIncrement adds amount to the named counter; zero means one.
	CounterIncrement(name string, amount float64)
	// CounterDecrement subtracts amount from the named counter; zero means one.
	CounterDecrement(name string, amount float64)
	Counter(name string) (float64, error)
	LogRow(name string, row Row) error
	Table(name string) (*Table, error)
}

// Collector is the in-memory Sink for one simulation run.
type Collector struct {
	env            *sim.Environment
	simulationName string
	run            string

	counters map[string]float64
	tables   map[string]*Table
	order    []string // table creation order
	periodic map[string]bool
}

var _ Sink = (*Collector)(nil)

// NewCollector creates a Collector that stamps rows with simulationName, run
// and the current tick of env.
func NewCollector(env *sim.Environment, simulationName, run string) *Collector {
	return &Collector{
		env:            env,
		simulationName: simulationName,
		run:            run,
		counters:       make(map[string]float64),
		tables:         make(map[string]*Table),
		periodic:       make(map[string]bool),
	}
}

// SimulationName returns the scenario label stamped on each row.
func (c *Collector) SimulationName() string { return c.simulationName }

// Run returns the run identifier stamped on each row.
func (c *Collector) Run() string { return c.run }

func (c *Collector) CounterIncrement(name string, amount float64) {
	if amount == 0 {
		amount = 1
	}
	c.counters[name] += amount
}

func (c *Collector) CounterDecrement(name string, amount float64) {
	if amount == 0 {
		amount = 1
	}
	c.counters[name] -= amount
}

// Counter returns the value of the named counter.
func (c *Collector) Counter(name string) (float64, error) {
	v, ok := c.counters[name]
	if !ok {
		return 0, &NotFoundError{Kind: "counter", Name: name}
	}
	return v, nil
}

// CounterOr returns the named counter, or def when it was never touched.
func (c *Collector) CounterOr(name string, def float64) float64 {
	if v, ok := c.counters[name]; ok {
		return v
	}
	return def
}

// Counters returns a copy of all counters.
func (c *Collector) Counters() map[string]float64 {
	out := make(map[string]float64, len(c.counters))
	for k, v := range c.counters {
		out[k] = v
	}
	return out
}

// CounterNames returns counter names in sorted order.
func (c *Collector) CounterNames() []string {
	names := make([]string, 0, len(c.counters))
	for k := range c.counters {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// LogRow appends row to the named table, creating it on first use.
// The first row fixes the column set: the stamp columns followed by its own
// fields in sorted order. Later rows may omit fields (stored as nil) but may
// not add new ones.
func (c *Collector) LogRow(name string, row Row) error {
	tbl, ok := c.tables[name]
	if !ok {
		cols := []string{ColumnSimulationName, ColumnSimulationRun, ColumnTime}
		fields := make([]string, 0, len(row))
		for k := range row {
			if isStamp(k) {
				continue
			}
			fields = append(fields, k)
		}
		sort.Strings(fields)
		tbl = newTable(name, append(cols, fields...))
		c.tables[name] = tbl
		c.order = append(c.order, name)
	}

	values := make([]any, len(tbl.columns))
	values[0] = c.simulationName
	values[1] = c.run
	values[2] = c.env.Now()
	for k, v := range row {
		if isStamp(k) {
			continue
		}
		i, ok := tbl.index[k]
		if !ok {
			return fmt.Errorf("report %s: %w %q", name, ErrUnknownField, k)
		}
		values[i] = v
	}
	tbl.rows = append(tbl.rows, values)
	return nil
}

// Table returns the named table.
func (c *Collector) Table(name string) (*Table, error) {
	tbl, ok := c.tables[name]
	if !ok {
		return nil, &NotFoundError{Kind: "report", Name: name}
	}
	return tbl, nil
}

// Reports returns table names in creation order.
func (c *Collector) Reports() []string {
	return append([]string(nil), c.order...)
}

// Periodic starts a process that samples fn every period ticks and logs the
// returned row to the named table. The first sample is taken at the current
// tick. A sampling error stops the simulation.
func (c *Collector) Periodic(name string, period int64, fn func() (Row, error)) error {
	if c.periodic[name] {
		return fmt.Errorf("periodic %s: %w", name, ErrDuplicateReport)
	}
	if period < 1 {
		return fmt.Errorf("periodic %s: period must be >= 1, got %d", name, period)
	}
	c.periodic[name] = true
	c.env.Process("report:"+name, func(p *sim.Process) error {
		for {
			row, err := fn()
			if err != nil {
				return fmt.Errorf("periodic %s: %w", name, err)
			}
			if err := c.LogRow(name, row); err != nil {
				return err
			}
			logrus.Tracef("[tick %07d] report %s sampled", c.env.Now(), name)
			if err := p.Sleep(period); err != nil {
				return err
			}
		}
	})
	return nil
}

func isStamp(k string) bool {
	return k == ColumnSimulationName || k == ColumnSimulationRun || k == ColumnTime
}
