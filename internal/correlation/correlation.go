// Package correlation provides the empirical inter-period correlation model
// for spectral acceleration values (Baker & Jayaram 2008).
package correlation

import (
	"math"
)

// shortPeriodBound is the period below which the short-period branch of the
// empirical model applies.
const shortPeriodBound = 0.109

// Coefficient computes the predicted correlation coefficient between the
// log spectral accelerations at two periods. The function is symmetric in its
// arguments and returns 1 for equal periods; inputs are assumed to be
// strictly positive.
func Coefficient(t1, t2 float64) float64 {
	if t1 == t2 {
		return 1
	}
	tMin := math.Min(t1, t2)
	tMax := math.Max(t1, t2)

	c1 := 1.0 - math.Cos(math.Pi/2.0-0.366*math.Log(tMax/math.Max(tMin, shortPeriodBound)))

	c2 := 0.0
	if tMax < 0.2 {
		c2 = 1.0 - 0.105*(1.0-1.0/(1.0+math.Exp(100.0*tMax-5.0)))*(tMax-tMin)/(tMax-0.0099)
	}

	c3 := c1
	if tMax < shortPeriodBound {
		c3 = c2
	}

	c4 := c1 + 0.5*(math.Sqrt(c3)-c3)*(1.0+math.Cos(math.Pi*tMin/shortPeriodBound))

	switch {
	case tMax <= shortPeriodBound:
		return c2
	case tMin > shortPeriodBound:
		return c1
	case tMax < 0.2:
		return math.Min(c2, c4)
	default:
		return c4
	}
}

// Matrix fills a symmetric correlation matrix for a period grid, row-major.
func Matrix(periods []float64) [][]float64 {
	n := len(periods)
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		out[i][i] = 1
		for j := i + 1; j < n; j++ {
			rho := Coefficient(periods[i], periods[j])
			out[i][j] = rho
			out[j][i] = rho
		}
	}
	return out
}
