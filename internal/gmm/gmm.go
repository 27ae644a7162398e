// Package gmm defines the ground-motion model contract consumed by the
// target-spectrum builder, and the average-IM aggregation built on top of it.
// Concrete attenuation models are external to the selection core; a single
// simple closed-form reference model ships in-repo for tests and defaults.
package gmm

import (
	"fmt"
)

// Scenario is one hazard contributor: a (site, rupture, distance) parameter
// combination with an associated hazard-contribution weight. Immutable once
// constructed.
type Scenario struct {
	Weight     float64
	Magnitude  float64
	DistanceKm float64
	Vs30       float64
	Rake       float64
	// Epsilon, when set, overrides the back-calculated epsilon for this
	// scenario in conditional mode.
	Epsilon *float64
}

// GroundMotionModel predicts the mean and total standard deviation of the
// natural-log spectral acceleration (in g) for a scenario at a period.
type GroundMotionModel interface {
	// Evaluate returns (meanLn, sigmaLn) at the given period in seconds.
	Evaluate(scn Scenario, period float64) (meanLn, sigmaLn float64, err error)

	// Name returns the model's registry name.
	Name() string
}

// New creates a ground-motion model from a registry name
func New(name string) (GroundMotionModel, error) {
	switch name {
	case "reference":
		return &ReferenceModel{}, nil
	default:
		return nil, &UnknownModelError{Model: name}
	}
}

// UnknownModelError indicates an unknown ground-motion model name
type UnknownModelError struct {
	Model string
}

func (e *UnknownModelError) Error() string {
	return "unknown ground-motion model: " + e.Model
}

// ModelRangeError indicates a period outside the model's defined range
type ModelRangeError struct {
	Model  string
	Period float64
}

func (e *ModelRangeError) Error() string {
	return fmt.Sprintf("model %s: period %g s outside defined range", e.Model, e.Period)
}
