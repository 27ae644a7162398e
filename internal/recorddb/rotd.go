package recorddb

import (
	"math"
	"sort"
)

// defaultNumTheta is the number of rotation angles sampled over [0, pi]
// when synthesizing RotDxx ordinates.
const defaultNumTheta = 100

// RotDxx synthesizes the orientation-percentile spectrum from a pair of
// horizontal-component spectra (Boore 2010): the components are combined
// over rotation angles in [0, pi] and the xx-th percentile taken per period.
func RotDxx(sa1, sa2 []float64, xx float64, numTheta int) []float64 {
	if numTheta <= 0 {
		numTheta = defaultNumTheta
	}
	nT := len(sa1)
	out := make([]float64, nT)
	rotated := make([]float64, numTheta)

	for t := 0; t < nT; t++ {
		for j := 0; j < numTheta; j++ {
			theta := math.Pi * float64(j) / float64(numTheta-1)
			rotated[j] = sa1[t]*math.Cos(theta) + sa2[t]*math.Sin(theta)
		}
		out[t] = percentile(rotated, xx)
	}
	return out
}

// percentile computes the xx-th percentile with linear interpolation between
// closest ranks, matching the convention of the spectral databases.
func percentile(values []float64, xx float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	pos := xx / 100 * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
