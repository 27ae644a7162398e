package gmm

import (
	"math"

	"github.com/gmselect/selection-core/internal/correlation"
)

// CrossComponentPolicy maps a period to the correlation between the two
// horizontal components of ln Sa. It converts a geometric-mean sigma into the
// sigma of an arbitrary single component.
type CrossComponentPolicy func(period float64) float64

// FixedCrossComponent returns a policy with a constant correlation. A value
// of 1 leaves the model sigma unchanged.
func FixedCrossComponent(rho float64) CrossComponentPolicy {
	return func(float64) float64 { return rho }
}

// PeriodDependentCrossComponent is the empirical period-dependent
// cross-component correlation, clamped to (0, 1].
func PeriodDependentCrossComponent() CrossComponentPolicy {
	return func(period float64) float64 {
		rho := 0.79 - 0.23*math.Log(period)
		if rho > 1 {
			rho = 1
		}
		if rho < 0.1 {
			rho = 0.1
		}
		return rho
	}
}

// AvgIM aggregates a ground-motion model over an averaging period grid into
// the average spectral acceleration intensity measure.
type AvgIM struct {
	Periods        []float64
	CrossComponent CrossComponentPolicy
}

// NewAvgIM builds an aggregator over the given periods. A nil policy means
// no cross-component adjustment.
func NewAvgIM(periods []float64, policy CrossComponentPolicy) *AvgIM {
	if policy == nil {
		policy = FixedCrossComponent(1)
	}
	return &AvgIM{Periods: periods, CrossComponent: policy}
}

// Evaluation holds the per-period and aggregated moments of the average IM
// for one scenario.
type Evaluation struct {
	Periods []float64
	// MeanLn and SigmaLn are the per-period model moments, with the
	// cross-component adjustment applied to the sigmas.
	MeanLn  []float64
	SigmaLn []float64

	AvgMeanLn  float64
	AvgSigmaLn float64
}

// Evaluate computes the mean and standard deviation of the log average IM
// for a scenario. The mean is the arithmetic mean of the per-period log
// means; the variance carries the full inter-period correlation structure.
func (a *AvgIM) Evaluate(model GroundMotionModel, scn Scenario) (*Evaluation, error) {
	n := len(a.Periods)
	ev := &Evaluation{
		Periods: a.Periods,
		MeanLn:  make([]float64, n),
		SigmaLn: make([]float64, n),
	}

	for i, t := range a.Periods {
		mu, sigma, err := model.Evaluate(scn, t)
		if err != nil {
			return nil, err
		}
		ev.MeanLn[i] = mu
		ev.SigmaLn[i] = adjustSigma(sigma, a.CrossComponent(t))
	}

	sumMu := 0.0
	for _, mu := range ev.MeanLn {
		sumMu += mu
	}
	ev.AvgMeanLn = sumMu / float64(n)

	variance := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			variance += correlation.Coefficient(a.Periods[i], a.Periods[j]) *
				ev.SigmaLn[i] * ev.SigmaLn[j]
		}
	}
	variance /= float64(n * n)
	ev.AvgSigmaLn = math.Sqrt(variance)

	return ev, nil
}

// CorrelationWith computes the correlation between ln Sa at a period and the
// log average IM of this evaluation.
func (e *Evaluation) CorrelationWith(period float64) float64 {
	if e.AvgSigmaLn == 0 {
		return 0
	}
	n := len(e.Periods)
	sum := 0.0
	for j := 0; j < n; j++ {
		sum += correlation.Coefficient(period, e.Periods[j]) * e.SigmaLn[j]
	}
	return sum / (float64(n) * e.AvgSigmaLn)
}

// adjustSigma converts a geometric-mean log standard deviation into that of
// a single arbitrary component with cross-component correlation rho.
func adjustSigma(sigma, rho float64) float64 {
	return math.Log(math.Sqrt(math.Exp(sigma) * math.Exp(sigma) * 2.0 / (1.0 + rho)))
}
