package utils

import (
	"math/rand"
	"time"
)

// RandSource is a seedable random number generator for the simulation stages.
// A zero seed seeds from the wall clock, making draws non-reproducible; any
// nonzero seed gives a fully reproducible stream.
type RandSource struct {
	rng *rand.Rand
}

// NewRandSource creates a new random source with the given seed
func NewRandSource(seed int64) *RandSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandSource{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Float64 returns a random float64 in [0.0, 1.0)
func (r *RandSource) Float64() float64 {
	return r.rng.Float64()
}

// Intn returns a random int in [0, n)
func (r *RandSource) Intn(n int) int {
	return r.rng.Intn(n)
}

// NormFloat64 returns a standard-normal random number
func (r *RandSource) NormFloat64() float64 {
	return r.rng.NormFloat64()
}

// NormVector fills a slice of length n with independent standard-normal draws
func (r *RandSource) NormVector(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = r.rng.NormFloat64()
	}
	return out
}
