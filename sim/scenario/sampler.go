package scenario

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"
)

// Sampler draws a whole number of ticks.
type Sampler interface {
	// Sample always returns a positive value (>= 1).
	Sample(rng *rand.Rand) int64
}

func atLeastOneTick(v float64) int64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 1
	}
	ticks := int64(math.Round(v))
	if ticks < 1 {
		return 1
	}
	return ticks
}

// ConstantSampler always returns the same number of ticks.
type ConstantSampler struct {
	Ticks int64
}

func (s ConstantSampler) Sample(*rand.Rand) int64 {
	if s.Ticks < 1 {
		return 1
	}
	return s.Ticks
}

// ExponentialSampler produces exponentially distributed lengths (CV=1).
type ExponentialSampler struct {
	mean float64 // ticks
}

func (s *ExponentialSampler) Sample(rng *rand.Rand) int64 {
	return atLeastOneTick(rng.ExpFloat64() * s.mean)
}

// GaussianSampler produces clamped Gaussian lengths.
type GaussianSampler struct {
	mean, stdDev float64 // ticks
	min, max     float64 // ticks
}

func (s *GaussianSampler) Sample(rng *rand.Rand) int64 {
	if s.min == s.max {
		return atLeastOneTick(s.min)
	}
	val := rng.NormFloat64()*s.stdDev + s.mean
	return atLeastOneTick(math.Min(s.max, math.Max(s.min, val)))
}

// GammaSampler produces Gamma distributed gaps. CV > 1 gives bursty arrivals.
// Uses Marsaglia-Tsang for shape >= 1, with a transformation for shape < 1.
type GammaSampler struct {
	shape float64 // 1/CV²
	scale float64 // mean·CV², ticks
}

func (s *GammaSampler) Sample(rng *rand.Rand) int64 {
	return atLeastOneTick(gammaRand(rng, s.shape, s.scale))
}

// gammaRand samples Gamma(shape, scale).
func gammaRand(rng *rand.Rand, shape, scale float64) float64 {
	if shape < 1.0 {
		// Gamma(a) = Gamma(a+1) * U^(1/a)
		u := rng.Float64()
		return gammaRand(rng, shape+1.0, scale) * math.Pow(u, 1.0/shape)
	}

	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9.0*d)
	for {
		var x, v float64
		for {
			x = rng.NormFloat64()
			v = 1.0 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1.0-0.0331*(x*x)*(x*x) {
			return d * v * scale
		}
		if math.Log(u) < 0.5*x*x+d*(1.0-v+math.Log(v)) {
			return d * v * scale
		}
	}
}

// WeibullSampler produces Weibull distributed gaps.
type WeibullSampler struct {
	shape float64 // k
	scale float64 // λ, ticks
}

func (s *WeibullSampler) Sample(rng *rand.Rand) int64 {
	// inverse CDF: scale * (-ln(U))^(1/shape)
	u := rng.Float64()
	if u == 0 {
		u = math.SmallestNonzeroFloat64
	}
	return atLeastOneTick(s.scale * math.Pow(-math.Log(u), 1.0/s.shape))
}

// NewGapSampler returns the inter-arrival sampler of an arrival process with
// the given mean gap in ticks. cv shapes the gamma and weibull processes and
// defaults to 1.
func NewGapSampler(process string, cv, meanTicks float64) (Sampler, error) {
	if !(meanTicks > 0) {
		return nil, fmt.Errorf("mean inter-arrival gap must be positive, got %v ticks", meanTicks)
	}
	if cv <= 0 {
		cv = 1.0
	}
	switch process {
	case "", ArrivalFixed:
		return ConstantSampler{Ticks: atLeastOneTick(meanTicks)}, nil
	case ArrivalPoisson:
		return &ExponentialSampler{mean: meanTicks}, nil
	case ArrivalGamma:
		shape := 1.0 / (cv * cv)
		if shape < 0.01 {
			logrus.Warnf("Gamma shape %.4f (CV=%.1f) is very small; falling back to Poisson", shape, cv)
			return &ExponentialSampler{mean: meanTicks}, nil
		}
		return &GammaSampler{shape: shape, scale: meanTicks * cv * cv}, nil
	case ArrivalWeibull:
		k := weibullShapeFromCV(cv)
		return &WeibullSampler{shape: k, scale: meanTicks / math.Gamma(1.0+1.0/k)}, nil
	default:
		return nil, fmt.Errorf("unknown arrival process %q", process)
	}
}

// weibullShapeFromCV finds k with CV² = Γ(1+2/k)/Γ(1+1/k)² - 1 by bisection
// over [0.1, 100].
func weibullShapeFromCV(targetCV float64) float64 {
	lo, hi := 0.1, 100.0
	for i := 0; i < 100; i++ {
		mid := (lo + hi) / 2.0
		cv := weibullCV(mid)
		if math.Abs(cv-targetCV) < 0.001 {
			return mid
		}
		// CV decreases with k
		if cv > targetCV {
			lo = mid
		} else {
			hi = mid
		}
	}
	logrus.Warnf("weibullShapeFromCV: bisection did not converge for CV=%.3f; using k=%.3f", targetCV, (lo+hi)/2.0)
	return (lo + hi) / 2.0
}

func weibullCV(k float64) float64 {
	g1 := math.Gamma(1.0 + 1.0/k)
	g2 := math.Gamma(1.0 + 2.0/k)
	return math.Sqrt(g2/(g1*g1) - 1.0)
}

// DistSpec selects a length-of-stay distribution. The mean is always the
// microenvironment's average_length_of_stay; Params are in hours.
type DistSpec struct {
	Type   string             `yaml:"type"`
	Params map[string]float64 `yaml:"params,omitempty"`
}

// Length-of-stay distribution types.
const (
	StayConstant    = "constant"
	StayExponential = "exponential"
	StayGaussian    = "gaussian"
)

func requireParam(params map[string]float64, keys ...string) error {
	for _, k := range keys {
		if _, ok := params[k]; !ok {
			return fmt.Errorf("distribution requires parameter %q", k)
		}
	}
	return nil
}

// NewStaySampler creates the length-of-stay sampler for a mean of meanHours.
// A nil spec is constant.
func NewStaySampler(spec *DistSpec, meanHours, hoursPerTick float64) (Sampler, error) {
	mean := meanHours / hoursPerTick
	if spec == nil {
		return ConstantSampler{Ticks: atLeastOneTick(mean)}, nil
	}
	switch spec.Type {
	case "", StayConstant:
		return ConstantSampler{Ticks: atLeastOneTick(mean)}, nil
	case StayExponential:
		return &ExponentialSampler{mean: mean}, nil
	case StayGaussian:
		if err := requireParam(spec.Params, "std_dev", "min", "max"); err != nil {
			return nil, err
		}
		lo, hi := spec.Params["min"], spec.Params["max"]
		if lo > hi {
			return nil, fmt.Errorf("gaussian min %v exceeds max %v", lo, hi)
		}
		return &GaussianSampler{
			mean:   mean,
			stdDev: spec.Params["std_dev"] / hoursPerTick,
			min:    lo / hoursPerTick,
			max:    hi / hoursPerTick,
		}, nil
	default:
		return nil, fmt.Errorf("unknown distribution type %q", spec.Type)
	}
}

// stayDraw hands out visit lengths from a sampler.
type stayDraw struct {
	sampler Sampler
	rng     *rand.Rand
}

func (s *stayDraw) NextStay() int64 { return s.sampler.Sample(s.rng) }
