package visitor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthdes/healthdes/sim"
	"github.com/healthdes/healthdes/sim/activity"
	"github.com/healthdes/healthdes/sim/attrs"
	"github.com/healthdes/healthdes/sim/microenv"
	"github.com/healthdes/healthdes/sim/person"
	"github.com/healthdes/healthdes/sim/report"
	"github.com/healthdes/healthdes/sim/routing"
)

type fixture struct {
	cfg  person.Config
	col  *report.Collector
	room *microenv.Microenvironment
}

func newFixture(t *testing.T, capacity int, duration int64) *fixture {
	t.Helper()
	env := sim.NewEnvironment()
	t.Cleanup(env.Close)
	tb := sim.MustTimebase(1.0 / 60)
	col := report.NewCollector(env, "visitor test", "1")
	room, err := microenv.New(env, nil, tb, microenv.Config{Name: "shop", Volume: 75, AirExchangeRate: 2.2, Capacity: capacity})
	require.NoError(t, err)

	r := routing.New()
	class, args := Pack(room, duration)
	require.NoError(t, r.RegisterActivity("visit environment", class, args))
	r.AddDecision(routing.StartNode)
	r.AddDecision(routing.EndNode)
	_, err = r.AddActivity("visit environment", routing.StartNode, routing.EndNode)
	require.NoError(t, err)

	return &fixture{
		cfg: person.Config{
			Env:      env,
			Routing:  r,
			Sink:     col,
			Timebase: tb,
			RNG:      sim.NewPartitionedRNG(sim.NewSimulationKey(42)),
			IDs:      sim.NewIDGen(),
		},
		col:  col,
		room: room,
	}
}

func (f *fixture) visitor(t *testing.T, status string) *person.Person {
	t.Helper()
	pe, err := NewPerson(f.cfg, "", Profile{Status: status})
	require.NoError(t, err)
	return pe
}

func TestNewPerson_Defaults(t *testing.T) {
	f := newFixture(t, 5, 10)
	pe := f.visitor(t, "")

	label, err := pe.Status().Label(StatusInfection)
	require.NoError(t, err)
	assert.Equal(t, Susceptible, label)
	rate, err := pe.Attributes().Float(AttrEmissionRate)
	require.NoError(t, err)
	assert.Equal(t, 147.0, rate)
	inh, _ := pe.Attributes().Float(AttrInhalationRate)
	assert.Equal(t, 0.54, inh)
	sex, _ := pe.Attributes().Text(AttrSex)
	assert.Equal(t, "female", sex)
	assert.Equal(t, "visitor", pe.Kind())
}

func TestNewPerson_UnknownStatusRejected(t *testing.T) {
	f := newFixture(t, 5, 10)
	_, err := NewPerson(f.cfg, "", Profile{Status: "zombie"})
	assert.Error(t, err)
}

func TestExpose_HighDoseInfectsOnce(t *testing.T) {
	// GIVEN a susceptible visitor
	f := newFixture(t, 5, 10)
	pe := f.visitor(t, Susceptible)

	// WHEN exposed twice to a concentration that makes infection certain
	for i := 0; i < 2; i++ {
		_, err := pe.Do(ActionExpose, attrs.Args{ArgConcentration: attrs.Float(1e6)})
		require.NoError(t, err)
	}

	// THEN the visitor is exposed and counted once
	exposed, err := pe.Status().Is(StatusInfection, Exposed)
	require.NoError(t, err)
	assert.True(t, exposed)
	n, err := f.col.Counter(CounterInfections)
	require.NoError(t, err)
	assert.Equal(t, 1.0, n)
	tbl, err := f.col.Table(ReportInfections)
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())
	cum, _ := pe.Attributes().Float(AttrCumulativeExposure)
	assert.Equal(t, 2e6, cum)
}

func TestExpose_ZeroDoseNeverInfects(t *testing.T) {
	f := newFixture(t, 5, 10)
	pe := f.visitor(t, Susceptible)

	for i := 0; i < 1000; i++ {
		_, err := pe.Do(ActionExpose, attrs.Args{ArgConcentration: attrs.Float(0)})
		require.NoError(t, err)
	}

	ok, _ := pe.Status().Is(StatusInfection, Susceptible)
	assert.True(t, ok)
	_, err := f.col.Counter(CounterInfections)
	assert.True(t, report.IsNotFound(err))
}

func TestInfectionRisk(t *testing.T) {
	f := newFixture(t, 5, 10)
	pe := f.visitor(t, Infected)
	pe.Attributes().Set(AttrCumulativeExposure, attrs.Float(3))

	v, err := pe.Do(ActionRisk, nil)
	require.NoError(t, err)
	got, _ := v.AsFloat()
	assert.InDelta(t, 1-math.Exp(-0.54/60*3), got, 1e-15)

	v, err = pe.Do(ActionRiskInstant, attrs.Args{ArgConcentration: attrs.Float(2)})
	require.NoError(t, err)
	got, _ = v.AsFloat()
	assert.InDelta(t, 1-math.Exp(-0.54/60*2), got, 1e-15)

	_, err = pe.Do(ActionRiskInstant, nil)
	assert.True(t, attrs.IsNotFound(err))
}

func TestVisit_InfectedEmitsEveryTickOfStay(t *testing.T) {
	// GIVEN an infected visitor staying 10 ticks and no decay process
	f := newFixture(t, 5, 10)
	pe := f.visitor(t, Infected)

	// WHEN the visitor runs
	pe.Start()
	require.NoError(t, f.cfg.Env.Run(50))

	// THEN quanta were added at ticks 0..9 and the visit was logged
	assert.InDelta(t, 10*147.0/60, f.room.Load(), 1e-12)
	assert.Equal(t, person.StateEnd, pe.State())
	assert.Equal(t, 0, f.room.ActiveCount())
	total, err := f.col.Counter(CounterTotalVisitors)
	require.NoError(t, err)
	assert.Equal(t, 1.0, total)

	tbl, err := f.col.Table(ReportVisitorActivity)
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, "Visitor 0 entered.", tbl.Row(0)["activity"])
	assert.Equal(t, int64(0), tbl.Row(0)[report.ColumnTime])
	assert.Equal(t, "Visitor 0 left.", tbl.Row(1)["activity"])
	assert.Equal(t, int64(10), tbl.Row(1)[report.ColumnTime])
	assert.Equal(t, 1, tbl.Row(1)["visitors"])
}

func TestVisit_CapacityQueuesSecondVisitor(t *testing.T) {
	// GIVEN a room for one and two susceptible visitors arriving together
	f := newFixture(t, 1, 4)
	a := f.visitor(t, Susceptible)
	b := f.visitor(t, Susceptible)

	// WHEN both run
	a.Start()
	b.Start()
	require.NoError(t, f.cfg.Env.Run(50))

	// THEN the second enters when the first leaves
	tbl, err := f.col.Table(ReportVisitorActivity)
	require.NoError(t, err)
	var got []string
	var at []any
	for i := 0; i < tbl.Len(); i++ {
		got = append(got, tbl.Row(i)["activity"].(string))
		at = append(at, tbl.Row(i)[report.ColumnTime])
	}
	assert.Equal(t, []string{"Visitor 0 entered.", "Visitor 0 left.", "Visitor 1 entered.", "Visitor 1 left."}, got)
	assert.Equal(t, []any{int64(0), int64(4), int64(4), int64(8)}, at)
	assert.Equal(t, 1, tbl.Row(0)["queue"])

	risk, err := f.col.Table(ReportInfectionRisk)
	require.NoError(t, err)
	assert.Equal(t, 2, risk.Len())
}

func TestVisit_NonFloatRiskFailsRun(t *testing.T) {
	// GIVEN a visitor whose risk action yields a string
	f := newFixture(t, 5, 3)
	pe := f.visitor(t, Susceptible)
	require.NoError(t, pe.Actions().Delete(ActionRisk))
	require.NoError(t, pe.Actions().Add(ActionRisk, func(attrs.Args) (attrs.Value, error) {
		return attrs.String("high"), nil
	}))

	// WHEN the visit ends
	pe.Start()
	err := f.cfg.Env.Run(50)

	// THEN the run fails instead of logging a zero risk
	assert.ErrorIs(t, err, attrs.ErrInvalidValue)
	_, err = f.col.Table(ReportInfectionRisk)
	assert.Error(t, err)
}

func TestPack_RejectsBadArguments(t *testing.T) {
	f := newFixture(t, 1, 4)
	ctx := activity.Context{Env: f.cfg.Env, Sink: f.col, Owner: f.visitor(t, Susceptible)}

	_, args := Pack(f.room, 0)
	_, err := activity.New(ctx, VisitClass, args)
	assert.Error(t, err)

	_, err = activity.New(ctx, VisitClass, activity.Args{ArgDuration: int64(3)})
	assert.True(t, attrs.IsNotFound(err))

	_, args = Pack(f.room, 3)
	in, err := activity.New(ctx, VisitClass, args)
	require.NoError(t, err)
	assert.Same(t, f.room, in.Hooks().(*Visit).Room())
}

type stays []int64

func (s *stays) NextStay() int64 {
	next := (*s)[0]
	*s = (*s)[1:]
	return next
}

func TestPackStay_DrawsPerVisitor(t *testing.T) {
	// GIVEN a visit whose length is drawn per visitor
	f := newFixture(t, 0, 4)
	ctx := activity.Context{Env: f.cfg.Env, Sink: f.col, Owner: f.visitor(t, Susceptible)}
	draws := &stays{3, 5, 0}
	_, args := PackStay(f.room, draws)

	// WHEN three visits are built from the same arguments
	first, err := activity.New(ctx, VisitClass, args.Clone())
	require.NoError(t, err)
	second, err := activity.New(ctx, VisitClass, args.Clone())
	require.NoError(t, err)
	_, err = activity.New(ctx, VisitClass, args.Clone())

	// THEN each gets its own length and a zero draw is rejected
	assert.Equal(t, int64(3), first.Hooks().(*Visit).Duration())
	assert.Equal(t, int64(5), second.Hooks().(*Visit).Duration())
	assert.Error(t, err)
}
