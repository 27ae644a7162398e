// Package target builds the target response spectrum model, conditional or
// unconditional, as a multivariate lognormal distribution over a period grid
// (Baker 2011).
package target

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/gmselect/selection-core/internal/correlation"
	"github.com/gmselect/selection-core/internal/gmm"
)

// covFloor replaces near-zero covariance entries so that random sampling
// from the distribution stays well defined.
const covFloor = 1e-10

// Conditioning fixes the conditioning intensity measure: a single period, or
// the [lower, upper] bounds of an averaging range. IMLevel is the target IM
// value in g; it may be zero when every scenario carries an epsilon.
type Conditioning struct {
	Periods []float64
	IMLevel float64
}

// Params collects the inputs of a target spectrum build.
type Params struct {
	Model      gmm.GroundMotionModel
	Scenarios  []gmm.Scenario
	PeriodGrid []float64
	// PeriodRange bounds the target spectrum periods; the grid is sliced to
	// the nearest values.
	PeriodRange [2]float64

	Conditioning *Conditioning
	UseVariance  bool
	// GridTolerance is the relative tolerance of the single conditioning
	// period lookup; zero means DefaultGridTolerance.
	GridTolerance float64

	CrossComponent gmm.CrossComponentPolicy
}

// Model is the built target spectrum: the mean vector, standard deviations
// and full covariance matrix of ln Sa over the period grid.
type Model struct {
	Periods []float64
	MuLn    []float64
	SigmaLn []float64
	Cov     *mat.SymDense

	Conditional bool
	// CondPeriods and CondIndices locate the conditioning periods within the
	// grid; empty in the unconditional case.
	CondPeriods []float64
	CondIndices []int
	IMLevel     float64
	// Epsilons holds the per-scenario epsilon values, back-calculated from
	// the IM level when not supplied.
	Epsilons []float64
}

// ConfigurationError indicates a parameter combination the builder cannot
// form a target spectrum from.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "target configuration: " + e.Reason
}

// Build constructs the target spectrum model. With conditioning it computes
// the conditional mean and the covariance reduced by conditioning on the IM;
// without, the scenario mean and unconditional covariance. Multiple
// scenarios are combined as a hazard-weighted mixture: weighted means, and
// diagonal variances carrying the between-scenario mean scatter. The
// off-diagonal structure is taken from the first scenario.
func Build(p Params) (*Model, error) {
	if p.Model == nil {
		return nil, &ConfigurationError{Reason: "ground-motion model is required"}
	}
	if len(p.Scenarios) == 0 {
		return nil, &ConfigurationError{Reason: "at least one scenario is required"}
	}
	if len(p.PeriodGrid) == 0 {
		return nil, &ConfigurationError{Reason: "period grid is empty"}
	}

	periods, _, _ := SubRange(p.PeriodGrid, p.PeriodRange[0], p.PeriodRange[1])
	n := len(periods)
	nScen := len(p.Scenarios)

	m := &Model{Periods: periods}

	if p.Conditioning != nil {
		m.Conditional = true
		switch len(p.Conditioning.Periods) {
		case 1:
			tol := p.GridTolerance
			if tol == 0 {
				tol = DefaultGridTolerance
			}
			idx, err := NearestIndexWithin(periods, p.Conditioning.Periods[0], tol)
			if err != nil {
				return nil, &ConfigurationError{Reason: err.Error()}
			}
			m.CondPeriods = []float64{p.Conditioning.Periods[0]}
			m.CondIndices = []int{idx}
		case 2:
			sub, lo, hi := SubRange(periods, p.Conditioning.Periods[0], p.Conditioning.Periods[1])
			m.CondPeriods = sub
			m.CondIndices = make([]int, 0, hi-lo+1)
			for i := lo; i <= hi; i++ {
				m.CondIndices = append(m.CondIndices, i)
			}
		default:
			return nil, &ConfigurationError{Reason: "conditioning periods must hold one value or a range"}
		}
		if p.Conditioning.IMLevel <= 0 {
			for i, s := range p.Scenarios {
				if s.Epsilon == nil {
					return nil, &ConfigurationError{
						Reason: fmt.Sprintf("conditioning requires an IM level or an epsilon on every scenario (missing on scenario %d)", i),
					}
				}
			}
		}
	}

	// Per-scenario conditional means and covariances.
	scenMean := make([][]float64, nScen)
	scenCov := make([]*mat.SymDense, nScen)
	m.Epsilons = make([]float64, nScen)
	epsSupplied := false

	for k, scn := range p.Scenarios {
		muLn := make([]float64, n)
		sigmaLn := make([]float64, n)
		for i, t := range periods {
			mu, sigma, err := p.Model.Evaluate(scn, t)
			if err != nil {
				return nil, fmt.Errorf("scenario %d: %w", k, err)
			}
			muLn[i] = mu
			sigmaLn[i] = sigma
		}

		rho := make([]float64, n)
		mean := make([]float64, n)

		if m.Conditional {
			avg := gmm.NewAvgIM(m.CondPeriods, p.CrossComponent)
			ev, err := avg.Evaluate(p.Model, scn)
			if err != nil {
				return nil, fmt.Errorf("scenario %d: conditioning IM: %w", k, err)
			}

			eps := 0.0
			if scn.Epsilon != nil {
				eps = *scn.Epsilon
				epsSupplied = true
			} else {
				eps = (math.Log(p.Conditioning.IMLevel) - ev.AvgMeanLn) / ev.AvgSigmaLn
			}
			m.Epsilons[k] = eps

			for i, t := range periods {
				rho[i] = ev.CorrelationWith(t)
				mean[i] = muLn[i] + rho[i]*eps*sigmaLn[i]
			}
		} else {
			copy(mean, muLn)
		}
		scenMean[k] = mean

		cov := mat.NewSymDense(n, nil)
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				c := correlation.Coefficient(periods[i], periods[j]) * sigmaLn[i] * sigmaLn[j]
				if m.Conditional {
					// Conditioning on the IM reduces the covariance by the
					// Sigma12 Sigma22^-1 Sigma12^T cross term, which
					// collapses to rho_i rho_j sigma_i sigma_j.
					c -= rho[i] * rho[j] * sigmaLn[i] * sigmaLn[j]
				}
				cov.SetSym(i, j, c)
			}
		}
		if !p.UseVariance {
			cov = mat.NewSymDense(n, nil)
		}
		scenCov[k] = cov
	}

	// Mixture combination over scenarios.
	muFin := make([]float64, n)
	for i := 0; i < n; i++ {
		for k, scn := range p.Scenarios {
			muFin[i] += scenMean[k][i] * scn.Weight
		}
	}

	// Off-diagonals follow the first scenario; sigma depends only on period
	// so the scenario covariances share the same structure.
	covFin := mat.NewSymDense(n, nil)
	covFin.CopySym(scenCov[0])
	for i := 0; i < n; i++ {
		d := 0.0
		for k, scn := range p.Scenarios {
			dev := scenMean[k][i] - muFin[i]
			d += (scenCov[k].At(i, i) + dev*dev) * scn.Weight
		}
		covFin.SetSym(i, i, d)
	}

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if math.Abs(covFin.At(i, j)) < covFloor {
				covFin.SetSym(i, j, covFloor)
			}
		}
	}

	sigmaFin := make([]float64, n)
	for i := 0; i < n; i++ {
		s := math.Sqrt(covFin.At(i, i))
		if math.IsNaN(s) {
			s = 0
		}
		sigmaFin[i] = s
	}

	m.MuLn = muFin
	m.SigmaLn = sigmaFin
	m.Cov = covFin

	if m.Conditional {
		if epsSupplied {
			// With supplied epsilons the IM level is implied by the spectrum
			// itself at the conditioning periods.
			sum := 0.0
			for _, idx := range m.CondIndices {
				sum += muFin[idx]
			}
			m.IMLevel = math.Exp(sum / float64(len(m.CondIndices)))
		} else {
			m.IMLevel = p.Conditioning.IMLevel
		}
	}

	return m, nil
}
