package gmm

import (
	"math"
)

// ReferenceModel is a smooth closed-form spectral attenuation model used as
// the in-repo default. It is not a published GMPE; it produces spectra with
// realistic shape and magnitude/distance/site scaling so the full pipeline
// can run and be tested without an external model plugin.
type ReferenceModel struct{}

// Name returns the registry name of the model.
func (m *ReferenceModel) Name() string { return "reference" }

// Evaluate predicts ln Sa (g) and its standard deviation at a period.
// Defined for periods in [0.01, 10] s.
func (m *ReferenceModel) Evaluate(scn Scenario, period float64) (float64, float64, error) {
	if period < 0.01 || period > 10 {
		return 0, 0, &ModelRangeError{Model: m.Name(), Period: period}
	}

	// Spectral shape: plateau through the short periods, decaying roughly as
	// 1/T beyond a magnitude-dependent corner period.
	tc := 0.3 * math.Exp(0.4*(scn.Magnitude-6.0))
	shape := 0.0
	if period > tc {
		shape = -1.1 * math.Log(period/tc)
	}

	meanLn := -1.2 +
		1.0*(scn.Magnitude-6.0) -
		1.3*math.Log(scn.DistanceKm+10.0) -
		0.45*math.Log(scn.Vs30/760.0) +
		shape

	// Aleatory variability grows mildly with period.
	sigmaLn := 0.55 + 0.06*math.Log(math.Max(period, 0.1)/0.1)

	return meanLn, sigmaLn, nil
}
