package report

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary holds descriptive statistics for one numeric column.
type Summary struct {
	Count  int
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
}

// Summarize computes descriptive statistics over a numeric column.
// An empty column yields a zero Summary.
func Summarize(t *Table, column string) (Summary, error) {
	xs, err := t.Floats(column)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize %s.%s: %w", t.Name(), column, err)
	}
	if len(xs) == 0 {
		return Summary{}, nil
	}
	s := Summary{
		Count: len(xs),
		Min:   floats.Min(xs),
		Max:   floats.Max(xs),
		Mean:  stat.Mean(xs, nil),
	}
	if len(xs) > 1 {
		s.StdDev = stat.StdDev(xs, nil)
	}
	return s, nil
}
