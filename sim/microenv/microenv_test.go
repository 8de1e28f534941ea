package microenv

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthdes/healthdes/sim"
	"github.com/healthdes/healthdes/sim/report"
)

var minute = sim.MustTimebase(1.0 / 60)

func waitingRoom(t *testing.T, env *sim.Environment, reporter Reporter) *Microenvironment {
	t.Helper()
	m, err := New(env, reporter, minute, Config{Name: "waiting", Volume: 75, AirExchangeRate: 2.2, Capacity: 5})
	require.NoError(t, err)
	return m
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"valid", Config{Name: "a", Volume: 75, AirExchangeRate: 2.2}, true},
		{"zero volume", Config{Name: "a", Volume: 0, AirExchangeRate: 2.2}, false},
		{"negative volume", Config{Name: "a", Volume: -1, AirExchangeRate: 2.2}, false},
		{"NaN volume", Config{Name: "a", Volume: math.NaN(), AirExchangeRate: 2.2}, false},
		{"zero exchange", Config{Name: "a", Volume: 75}, false},
		{"negative capacity", Config{Name: "a", Volume: 75, AirExchangeRate: 2.2, Capacity: -1}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, ErrInvariant), "got %v", err)
		})
	}
}

func TestAddQuanta_NegativeRejected(t *testing.T) {
	m := waitingRoom(t, sim.NewEnvironment(), nil)
	require.NoError(t, m.AddQuanta(3))

	err := m.AddQuanta(-0.1)

	assert.True(t, errors.Is(err, ErrInvariant))
	assert.Equal(t, 3.0, m.Load(), "rejected amount must not change the load")
	assert.Error(t, m.AddQuanta(math.NaN()))
	assert.InDelta(t, 3.0/75, m.Concentration(), 1e-15)
}

func TestDecay_ZeroLoadStaysZero(t *testing.T) {
	m := waitingRoom(t, sim.NewEnvironment(), nil)
	for i := 0; i < 10000; i++ {
		m.Decay()
	}
	assert.Equal(t, 0.0, m.Load())
}

func TestDecay_MonotonicConvergence(t *testing.T) {
	// GIVEN a positive load
	m := waitingRoom(t, sim.NewEnvironment(), nil)
	require.NoError(t, m.AddQuanta(100))

	// WHEN decayed tick by tick
	prev := m.Load()
	for i := 0; i < 2000; i++ {
		m.Decay()
		// THEN the load strictly decreases
		if m.Load() >= prev {
			t.Fatalf("tick %d: load %v did not decrease from %v", i, m.Load(), prev)
		}
		prev = m.Load()
	}
	// AND tends to zero
	assert.Less(t, m.Load(), 1e-25)
	assert.InDelta(t, math.Exp(-2.2/60), m.DecayFactor(), 1e-15)
}

func TestStart_DecaysOncePerTick(t *testing.T) {
	env := sim.NewEnvironment()
	defer env.Close()
	m := waitingRoom(t, env, nil)
	require.NoError(t, m.AddQuanta(10))

	require.NoError(t, m.Start())
	require.NoError(t, env.Run(5))

	assert.InDelta(t, 10*math.Pow(m.DecayFactor(), 5), m.Load(), 1e-12)
	assert.Error(t, m.Start())
}

func TestNew_RegistersConcentrationReport(t *testing.T) {
	// GIVEN a microenvironment with a collector
	env := sim.NewEnvironment()
	defer env.Close()
	c := report.NewCollector(env, "test", "0")
	m := waitingRoom(t, env, c)
	require.NoError(t, m.AddQuanta(7.5))

	// WHEN run for three ticks
	require.NoError(t, env.Run(3))

	// THEN one concentration sample per tick is logged
	tbl, err := c.Table(ReportQuanta)
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.Len())
	got, err := tbl.Floats("quanta_concentration")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.1, 0.1}, got, "no decay without Start")
	assert.Equal(t, "waiting", tbl.Row(0)["microenvironment"])

	_, err = New(env, c, minute, Config{Name: "second", Volume: 1, AirExchangeRate: 1})
	assert.True(t, errors.Is(err, report.ErrDuplicateReport))
}

func TestRequestEntry_CapacityAndQueue(t *testing.T) {
	env := sim.NewEnvironment()
	m := waitingRoom(t, env, nil)
	var reqs []*sim.Request
	for i := 0; i < 7; i++ {
		reqs = append(reqs, m.RequestEntry())
	}

	assert.Equal(t, 5, m.ActiveCount())
	assert.Equal(t, 2, m.QueueLength())

	reqs[0].Release()
	assert.Equal(t, 5, m.ActiveCount())
	assert.Equal(t, 1, m.QueueLength())
	assert.True(t, reqs[5].Admitted())
}

func TestNew_ZeroCapacityIsUnbounded(t *testing.T) {
	m, err := New(sim.NewEnvironment(), nil, minute, Config{Name: "hall", Volume: 500, AirExchangeRate: 1})
	require.NoError(t, err)
	assert.Equal(t, sim.Unbounded, m.Capacity())
	for i := 0; i < 100; i++ {
		m.RequestEntry()
	}
	assert.Equal(t, 0, m.QueueLength())
}
