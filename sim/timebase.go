package sim

import (
	"fmt"
	"math"
	"time"
)

// Timebase converts between simulation ticks and real units.
// One tick lasts Interval hours (1/60 for minute resolution). Every
// duration-bound wait in the simulation is derived through a single Timebase
// so the scaling lives in one place.
type Timebase struct {
	interval float64   // hours per tick
	epoch    time.Time // wall-clock instant of tick 0
}

// NewTimebase creates a Timebase with the given tick length in hours.
func NewTimebase(intervalHours float64, epoch time.Time) (Timebase, error) {
	if !(intervalHours > 0) || math.IsInf(intervalHours, 0) {
		return Timebase{}, fmt.Errorf("time interval must be greater than zero, got %v", intervalHours)
	}
	return Timebase{interval: intervalHours, epoch: epoch}, nil
}

// MustTimebase is NewTimebase for constant arguments; it panics on error.
func MustTimebase(intervalHours float64) Timebase {
	tb, err := NewTimebase(intervalHours, time.Time{})
	if err != nil {
		panic(err)
	}
	return tb
}

// Interval returns the tick length in hours.
func (tb Timebase) Interval() float64 { return tb.interval }

// Ticks converts hours to the nearest whole number of ticks.
func (tb Timebase) Ticks(hours float64) int64 {
	return int64(math.Round(hours / tb.interval))
}

// Hours converts ticks to hours.
func (tb Timebase) Hours(ticks int64) float64 {
	return float64(ticks) * tb.interval
}

// PerTick scales an hourly rate to the amount accrued during one tick.
func (tb Timebase) PerTick(ratePerHour float64) float64 {
	return ratePerHour * tb.interval
}

// DecayFactor returns the fraction of a quantity that survives one tick of
// exponential decay at ratePerHour.
func (tb Timebase) DecayFactor(ratePerHour float64) float64 {
	return math.Exp(-ratePerHour * tb.interval)
}

// Epoch returns the wall-clock instant of tick 0.
func (tb Timebase) Epoch() time.Time { return tb.epoch }

// WallClock returns the wall-clock instant of tick.
func (tb Timebase) WallClock(tick int64) time.Time {
	return tb.epoch.Add(time.Duration(math.Round(tb.Hours(tick) * float64(time.Hour))))
}

// TickAt returns the first tick at or after the wall-clock instant t.
func (tb Timebase) TickAt(t time.Time) int64 {
	hours := t.Sub(tb.epoch).Hours()
	return int64(math.Ceil(hours/tb.interval - 1e-9))
}
