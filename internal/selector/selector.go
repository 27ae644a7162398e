// Package selector picks a subset of candidate records matching the target
// spectrum distribution: an initial nearest-match assignment against the
// simulated spectra, then greedy subset modification passes.
package selector

import (
	"math"
	"sync"

	"github.com/gmselect/selection-core/internal/target"
	"github.com/gmselect/selection-core/pkg/models"
	"github.com/gmselect/selection-core/pkg/utils"
)

// infeasiblePenalty marks candidates that repeat an already selected record
// or exceed the scaling limit.
const infeasiblePenalty = 1e6

// Pool is the filtered candidate record set, spectra interpolated onto the
// target period grid. All slices are indexed by candidate.
type Pool struct {
	LnSa       [][]float64
	IDs        []string
	Magnitude  []float64
	DistanceKm []float64
	Vs30       []float64
	Mechanism  []int
}

// Size returns the number of candidates.
func (p *Pool) Size() int { return len(p.LnSa) }

// Params drives one selection.
type Params struct {
	Target *target.Model
	// Simulated is the seed set of simulated ln spectra, one row per record
	// slot to fill.
	Simulated [][]float64
	Pool      *Pool

	Scaled   bool
	MaxScale float64
	// Weights are the [mean, std, skewness] error weights; the greedy
	// objective uses the first two.
	Weights      [3]float64
	NLoop        int
	Penalty      float64
	TolerancePct float64
	// Workers bounds the parallelism of the candidate scans. Zero or one
	// runs sequentially.
	Workers int
}

// Result is the selected subset.
type Result struct {
	Indices      []int
	IDs          []string
	ScaleFactors []float64
	// LnSa holds the scaled log spectra of the selected records over the
	// target periods.
	LnSa [][]float64

	MaxMeanErrPct float64
	MaxStdErrPct  float64
	Converged     bool
	Passes        []models.PassError
}

// Run performs the two-phase selection. Phase one assigns each simulated
// spectrum its nearest scalable candidate; phase two runs NLoop greedy
// passes, re-optimizing one slot at a time against the target mean and
// standard deviation, stopping early once the maximum percent errors fall
// below the tolerance.
func Run(p Params) (*Result, error) {
	nGM := len(p.Simulated)
	nBig := p.Pool.Size()
	nT := len(p.Target.Periods)

	selected := make([]int, nGM)
	scales := make([]float64, nGM)
	sample := make([][]float64, nGM)
	for i := range selected {
		selected[i] = -1
		scales[i] = 1
	}

	// Phase one: per simulated row, the candidate minimizing the squared log
	// distance after scaling.
	for i := 0; i < nGM; i++ {
		errs := make([]float64, nBig)
		fac := make([]float64, nBig)

		parallelFor(nBig, p.Workers, func(j int) {
			fac[j] = 1
			if p.Scaled {
				fac[j] = p.scaleFactor(p.Pool.LnSa[j], p.Simulated[i])
			}
			if contains(selected, j) || fac[j] > p.MaxScale {
				errs[j] = infeasiblePenalty
				return
			}
			lnFac := math.Log(fac[j])
			sum := 0.0
			for t := 0; t < nT; t++ {
				d := p.Pool.LnSa[j][t] + lnFac - p.Simulated[i][t]
				sum += d * d
			}
			errs[j] = sum
		})

		best := argmin(errs)
		if errs[best] >= infeasiblePenalty {
			return nil, &InfeasibleSelectionError{Row: i}
		}
		selected[i] = best
		if p.Scaled {
			scales[i] = fac[best]
		}
		sample[i] = scaleRow(p.Pool.LnSa[best], scales[i])
	}

	// Phase two: greedy subset modification.
	res := &Result{}
	for pass := 0; pass < p.NLoop; pass++ {
		for i := 0; i < nGM; i++ {
			// Moments of the subset with slot i emptied, as per-period sums.
			colSum := make([]float64, nT)
			colSumSq := make([]float64, nT)
			for m := 0; m < nGM; m++ {
				if m == i {
					continue
				}
				for t := 0; t < nT; t++ {
					colSum[t] += sample[m][t]
					colSumSq[t] += sample[m][t] * sample[m][t]
				}
			}
			fixedExceed := 0
			if p.Penalty > 0 {
				for m := 0; m < nGM; m++ {
					if m != i {
						fixedExceed += p.countExceedances(sample[m])
					}
				}
			}
			occupied := make([]int, 0, nGM-1)
			for m, id := range selected {
				if m != i {
					occupied = append(occupied, id)
				}
			}

			devs := make([]float64, nBig)
			fac := make([]float64, nBig)

			parallelFor(nBig, p.Workers, func(j int) {
				fac[j] = 1
				if p.Scaled {
					fac[j] = p.scaleFactor(p.Pool.LnSa[j], p.Simulated[i])
				}
				lnFac := math.Log(fac[j])

				dev := 0.0
				for t := 0; t < nT; t++ {
					v := p.Pool.LnSa[j][t] + lnFac
					mean := (colSum[t] + v) / float64(nGM)
					variance := (colSumSq[t]+v*v)/float64(nGM) - mean*mean
					if variance < 0 {
						variance = 0
					}
					dMean := mean - p.Target.MuLn[t]
					dSig := math.Sqrt(variance) - p.Target.SigmaLn[t]
					dev += p.Weights[0]*dMean*dMean + p.Weights[1]*dSig*dSig
				}
				if p.Penalty > 0 {
					cand := scaleRow(p.Pool.LnSa[j], fac[j])
					dev += float64(fixedExceed+p.countExceedances(cand)) * p.Penalty
				}
				if fac[j] > p.MaxScale || contains(occupied, j) {
					dev += infeasiblePenalty
				}
				devs[j] = dev
			})

			best := argmin(devs)
			selected[i] = best
			scales[i] = 1
			if p.Scaled {
				scales[i] = fac[best]
			}
			sample[i] = scaleRow(p.Pool.LnSa[best], scales[i])
		}

		meanErr, stdErr := p.convergenceErrors(sample)
		res.Passes = append(res.Passes, models.PassError{
			Pass:          pass + 1,
			MaxMeanErrPct: meanErr,
			MaxStdErrPct:  stdErr,
		})
		res.MaxMeanErrPct = meanErr
		res.MaxStdErrPct = stdErr
		if meanErr < p.TolerancePct && stdErr < p.TolerancePct {
			res.Converged = true
			break
		}
	}

	res.Indices = selected
	res.ScaleFactors = scales
	res.LnSa = sample
	if len(p.Pool.IDs) > 0 {
		res.IDs = make([]string, nGM)
		for i, id := range selected {
			res.IDs[i] = p.Pool.IDs[id]
		}
	}
	return res, nil
}

// scaleFactor computes the amplitude scale for a candidate. Conditional
// selection scales the candidate's IM to the target IM level; unconditional
// selection minimizes the squared error against the simulated row in linear
// spectral space.
func (p *Params) scaleFactor(candidate, simulated []float64) float64 {
	if p.Target.Conditional {
		sum := 0.0
		for _, idx := range p.Target.CondIndices {
			sum += candidate[idx]
		}
		recIM := math.Exp(sum / float64(len(p.Target.CondIndices)))
		return p.Target.IMLevel / recIM
	}
	num, den := 0.0, 0.0
	for t := range candidate {
		c := math.Exp(candidate[t])
		num += c * math.Exp(simulated[t])
		den += c * c
	}
	return num / den
}

// countExceedances counts the periods where a scaled log spectrum exceeds
// the target mean plus three standard deviations.
func (p *Params) countExceedances(row []float64) int {
	n := 0
	for t := range row {
		if math.Exp(row[t]) > math.Exp(p.Target.MuLn[t]+3*p.Target.SigmaLn[t]) {
			n++
		}
	}
	return n
}

// convergenceErrors returns the maximum percent errors of the subset median
// and standard deviation against the target. When conditioning on a single
// period, that period is excluded since its error is fixed by construction.
// Zero-sigma periods are skipped.
func (p *Params) convergenceErrors(sample [][]float64) (meanErr, stdErr float64) {
	skip := map[int]bool{}
	if p.Target.Conditional && len(p.Target.CondIndices) == 1 {
		skip[p.Target.CondIndices[0]] = true
	}
	for t := range p.Target.Periods {
		if skip[t] {
			continue
		}
		col := utils.Column(sample, t)
		targetMedian := math.Exp(p.Target.MuLn[t])
		e := math.Abs(math.Exp(utils.Mean(col))-targetMedian) / targetMedian * 100
		if e > meanErr {
			meanErr = e
		}
		if p.Target.SigmaLn[t] > 0 {
			e = math.Abs(utils.StdDev(col)-p.Target.SigmaLn[t]) / p.Target.SigmaLn[t] * 100
			if e > stdErr {
				stdErr = e
			}
		}
	}
	return meanErr, stdErr
}

// argmin returns the index of the smallest value, ties to the lowest index.
func argmin(vals []float64) int {
	best := 0
	for i := 1; i < len(vals); i++ {
		if vals[i] < vals[best] {
			best = i
		}
	}
	return best
}

func contains(ids []int, j int) bool {
	for _, id := range ids {
		if id == j {
			return true
		}
	}
	return false
}

func scaleRow(row []float64, fac float64) []float64 {
	out := make([]float64, len(row))
	lnFac := math.Log(fac)
	for t := range row {
		out[t] = row[t] + lnFac
	}
	return out
}

// parallelFor runs fn for each index in [0, n), fanning the index range out
// over the given number of workers. Results are written by index so the
// caller's argmin stays deterministic.
func parallelFor(n, workers int, fn func(int)) {
	if workers <= 1 || n < 2 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	if workers > n {
		workers = n
	}
	var wg sync.WaitGroup
	chunk := (n + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := utils.Min(lo+chunk, n)
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				fn(i)
			}
		}(lo, hi)
	}
	wg.Wait()
}
