// Package visitor is the airborne-transmission domain: visitors who enter a
// microenvironment, where infected visitors emit quanta and susceptible
// visitors inhale them.
package visitor

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/healthdes/healthdes/sim"
	"github.com/healthdes/healthdes/sim/attrs"
	"github.com/healthdes/healthdes/sim/person"
	"github.com/healthdes/healthdes/sim/report"
)

// Infection status labels.
const (
	StatusInfection = "infection_status"

	Susceptible = "susceptible"
	Exposed     = "exposed"
	Infected    = "infected"
	Recovered   = "recovered"
)

// Attribute keys.
const (
	AttrEmissionRate       = "quanta_emission_rate"
	AttrInhalationRate     = "inhalation_rate"
	AttrCumulativeExposure = "cumulative_exposure"
	AttrPersonType         = "person_type"
	AttrAge                = "age"
	AttrSex                = "sex"
)

// Do-action names.
const (
	ActionExpose        = "expose_person_to_quanta"
	ActionRisk          = "infection_risk"
	ActionRiskInstant   = "infection_risk_instant"
	ArgConcentration    = "concentration"
	CounterInfections   = "Infections"
	ReportInfections    = "Infections"
	ReportInfectionRisk = "Infection risk"
)

// Defaults applied when a Profile leaves a field zero.
const (
	DefaultEmissionRate   = 147.0 // quanta per hour
	DefaultInhalationRate = 0.54  // m^3 per hour
	DefaultAge            = 50
	DefaultSex            = "female"
	DefaultPersonType     = "visitor"
)

// Profile describes a visitor.
type Profile struct {
	Status         string
	EmissionRate   float64
	InhalationRate float64
	PersonType     string
	Age            int64
	Sex            string
}

func (pr Profile) withDefaults() Profile {
	if pr.Status == "" {
		pr.Status = Susceptible
	}
	if pr.EmissionRate == 0 {
		pr.EmissionRate = DefaultEmissionRate
	}
	if pr.InhalationRate == 0 {
		pr.InhalationRate = DefaultInhalationRate
	}
	if pr.PersonType == "" {
		pr.PersonType = DefaultPersonType
	}
	if pr.Age == 0 {
		pr.Age = DefaultAge
	}
	if pr.Sex == "" {
		pr.Sex = DefaultSex
	}
	return pr
}

// NewPerson creates a visitor with its attributes, infection status and
// exposure actions.
func NewPerson(cfg person.Config, startNode string, profile Profile) (*person.Person, error) {
	if cfg.RNG == nil || cfg.Sink == nil {
		return nil, fmt.Errorf("visitor: config requires RNG and Sink")
	}
	profile = profile.withDefaults()
	if profile.EmissionRate < 0 || profile.InhalationRate < 0 {
		return nil, fmt.Errorf("visitor: rates must be >= 0: %w", attrs.ErrInvalidValue)
	}
	pe, err := person.New(cfg, profile.PersonType, startNode)
	if err != nil {
		return nil, err
	}
	v := &exposure{pe: pe, cfg: cfg, rng: cfg.RNG.ForSubsystem(sim.SubsystemInfection)}

	st := pe.Status()
	if err := st.DefineLabels(StatusInfection, []string{Susceptible, Exposed, Infected, Recovered}, Susceptible); err != nil {
		return nil, err
	}
	if err := st.SetLabel(StatusInfection, profile.Status); err != nil {
		return nil, fmt.Errorf("visitor %d: %w", pe.ID(), err)
	}

	at := pe.Attributes()
	for key, val := range map[string]attrs.Value{
		AttrEmissionRate:       attrs.Float(profile.EmissionRate),
		AttrInhalationRate:     attrs.Float(profile.InhalationRate),
		AttrCumulativeExposure: attrs.Float(0),
		AttrPersonType:         attrs.String(profile.PersonType),
		AttrAge:                attrs.Int(profile.Age),
		AttrSex:                attrs.String(profile.Sex),
	} {
		if err := at.Add(key, val); err != nil {
			return nil, err
		}
	}

	acts := pe.Actions()
	if err := acts.Add(ActionExpose, v.expose); err != nil {
		return nil, err
	}
	if err := acts.Add(ActionRisk, v.risk); err != nil {
		return nil, err
	}
	if err := acts.Add(ActionRiskInstant, v.riskInstant); err != nil {
		return nil, err
	}
	return pe, nil
}

// exposure implements the visitor's do-actions.
type exposure struct {
	pe  *person.Person
	cfg person.Config
	rng interface{ Float64() float64 }
}

// probability returns 1 - exp(-inhalation * dt * dose).
func (v *exposure) probability(dose float64) (float64, error) {
	inh, err := v.pe.Attributes().Float(AttrInhalationRate)
	if err != nil {
		return 0, err
	}
	return 1 - math.Exp(-inh*v.cfg.Timebase.Interval()*dose), nil
}

// expose adds one tick of concentration to the cumulative exposure and may
// infect a susceptible visitor.
func (v *exposure) expose(args attrs.Args) (attrs.Value, error) {
	c, err := args.Float(ArgConcentration)
	if err != nil {
		return attrs.Value{}, err
	}
	at := v.pe.Attributes()
	cum, err := at.Float(AttrCumulativeExposure)
	if err != nil {
		return attrs.Value{}, err
	}
	at.Set(AttrCumulativeExposure, attrs.Float(cum+c))

	p, err := v.probability(c)
	if err != nil {
		return attrs.Value{}, err
	}
	if v.rng.Float64() >= p {
		return attrs.Value{}, nil
	}
	st := v.pe.Status()
	susceptible, err := st.Is(StatusInfection, Susceptible)
	if err != nil {
		return attrs.Value{}, err
	}
	if susceptible {
		logrus.Debugf("[tick %07d] visitor %d infected", v.cfg.Env.Now(), v.pe.ID())
		if err := v.cfg.Sink.LogRow(ReportInfections, report.Row{"Person": v.pe.ID()}); err != nil {
			return attrs.Value{}, err
		}
		v.cfg.Sink.CounterIncrement(CounterInfections, 1)
	}
	return attrs.Value{}, st.SetLabel(StatusInfection, Exposed)
}

// risk is the probability of infection from the cumulative exposure.
func (v *exposure) risk(attrs.Args) (attrs.Value, error) {
	cum, err := v.pe.Attributes().Float(AttrCumulativeExposure)
	if err != nil {
		return attrs.Value{}, err
	}
	p, err := v.probability(cum)
	if err != nil {
		return attrs.Value{}, err
	}
	return attrs.Float(p), nil
}

// riskInstant is the probability of infection from one tick at the given concentration.
func (v *exposure) riskInstant(args attrs.Args) (attrs.Value, error) {
	c, err := args.Float(ArgConcentration)
	if err != nil {
		return attrs.Value{}, err
	}
	p, err := v.probability(c)
	if err != nil {
		return attrs.Value{}, err
	}
	return attrs.Float(p), nil
}
