// Package simulate generates Monte Carlo realizations of the target spectrum
// distribution and keeps the trial set that best matches the target moments.
package simulate

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/gmselect/selection-core/internal/target"
	"github.com/gmselect/selection-core/pkg/utils"
)

// Params drives one simulation run.
type Params struct {
	Target *target.Model
	// NGM is the number of spectra per trial set, NTrials the number of
	// candidate sets to draw.
	NGM     int
	NTrials int
	// Weights are the [mean, std, skewness] error weights of the set score.
	Weights [3]float64
	// Seed selects the random stream. Zero derives a seed from the wall
	// clock; any other value gives a reproducible run.
	Seed int64
}

// Result is the best trial set: NGM rows of ln Sa over the target periods.
type Result struct {
	LnSa  [][]float64
	Score float64
	Trial int
}

// Run draws NTrials sets of NGM multivariate lognormal spectra from the
// target distribution and returns the set minimizing the weighted error of
// its sample mean, standard deviation and skewness against the target.
func Run(p Params) (*Result, error) {
	if p.Target == nil {
		return nil, fmt.Errorf("simulate: target model is required")
	}
	if p.NGM <= 0 || p.NTrials <= 0 {
		return nil, fmt.Errorf("simulate: record count and trial count must be positive")
	}

	s, err := newSampler(p.Target.MuLn, p.Target.Cov)
	if err != nil {
		return nil, fmt.Errorf("simulate: %w", err)
	}

	rng := utils.NewRandSource(p.Seed)
	nT := len(p.Target.Periods)

	best := &Result{Score: math.Inf(1), Trial: -1}
	for trial := 0; trial < p.NTrials; trial++ {
		set := make([][]float64, p.NGM)
		for i := range set {
			set[i] = s.sample(rng)
		}

		score := 0.0
		for j := 0; j < nT; j++ {
			col := utils.Column(set, j)
			devMean := utils.Mean(col) - p.Target.MuLn[j]
			devStd := utils.StdDev(col) - p.Target.SigmaLn[j]
			devSkew := utils.Skewness(col)
			score += p.Weights[0]*devMean*devMean +
				p.Weights[1]*devStd*devStd +
				0.1*p.Weights[2]*devSkew*devSkew
		}

		if score < best.Score {
			best.Score = score
			best.Trial = trial
			best.LnSa = set
		}
	}

	return best, nil
}

// sampler draws from N(mu, cov) as mu + F z with F a factor of cov.
type sampler struct {
	mu     []float64
	factor *mat.Dense
}

// newSampler factorizes the covariance. Cholesky is used when the matrix is
// positive definite; otherwise an eigendecomposition with negative
// eigenvalues clamped to zero, which also covers the zero-variance case.
func newSampler(mu []float64, cov *mat.SymDense) (*sampler, error) {
	n := len(mu)

	var chol mat.Cholesky
	if chol.Factorize(cov) {
		var l mat.TriDense
		chol.LTo(&l)
		f := mat.NewDense(n, n, nil)
		f.Copy(&l)
		return &sampler{mu: mu, factor: f}, nil
	}

	var eig mat.EigenSym
	if !eig.Factorize(cov, true) {
		return nil, fmt.Errorf("covariance eigendecomposition failed")
	}
	values := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	scaled := mat.NewDense(n, n, nil)
	for j := 0; j < n; j++ {
		s := 0.0
		if values[j] > 0 {
			s = math.Sqrt(values[j])
		}
		for i := 0; i < n; i++ {
			scaled.Set(i, j, vecs.At(i, j)*s)
		}
	}
	return &sampler{mu: mu, factor: scaled}, nil
}

func (s *sampler) sample(rng *utils.RandSource) []float64 {
	n := len(s.mu)
	z := rng.NormVector(n)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := s.mu[i]
		for j := 0; j < n; j++ {
			sum += s.factor.At(i, j) * z[j]
		}
		out[i] = sum
	}
	return out
}
