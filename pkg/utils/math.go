package utils

import (
	"math"
)

// Min returns the minimum of two integers
func Min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Max returns the maximum of two integers
func Max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// ClampFloat64 clamps a float64 value between min and max
func ClampFloat64(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Mean calculates the mean of a slice of float64 values
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Variance calculates the population variance of a slice of float64 values.
// The population (1/n) convention matches the spectral-statistics literature,
// where the selected set is the whole population of interest.
func Variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	sumSquares := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	return sumSquares / float64(len(values))
}

// StdDev calculates the population standard deviation of a slice of float64 values
func StdDev(values []float64) float64 {
	return math.Sqrt(Variance(values))
}

// Skewness calculates the population skewness (g1) of a slice of float64 values.
// Returns 0 for degenerate inputs (fewer than 2 values or zero variance).
func Skewness(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	mean := Mean(values)
	m2 := 0.0
	m3 := 0.0
	for _, v := range values {
		d := v - mean
		m2 += d * d
		m3 += d * d * d
	}
	m2 /= float64(n)
	m3 /= float64(n)
	if m2 == 0 {
		return 0
	}
	return m3 / math.Pow(m2, 1.5)
}

// Sum calculates the sum of a slice of float64 values
func Sum(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum
}

// Exp applies math.Exp elementwise and returns a new slice
func Exp(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = math.Exp(v)
	}
	return out
}

// Log applies math.Log elementwise and returns a new slice
func Log(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = math.Log(v)
	}
	return out
}

// Column extracts column j from a row-major matrix
func Column(rows [][]float64, j int) []float64 {
	out := make([]float64, len(rows))
	for i, row := range rows {
		out[i] = row[j]
	}
	return out
}

// LinearInterp interpolates y(x) at xq given sorted sample points xs with
// values ys. Values outside the sample range are clamped to the endpoints.
func LinearInterp(xs, ys []float64, xq float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	if xq <= xs[0] {
		return ys[0]
	}
	if xq >= xs[n-1] {
		return ys[n-1]
	}
	// find the bracketing interval
	lo := 0
	hi := n - 1
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if xs[mid] <= xq {
			lo = mid
		} else {
			hi = mid
		}
	}
	t := (xq - xs[lo]) / (xs[hi] - xs[lo])
	return ys[lo]*(1-t) + ys[hi]*t
}
