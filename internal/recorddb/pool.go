package recorddb

import (
	"fmt"
	"math"

	"github.com/gmselect/selection-core/internal/selector"
	"github.com/gmselect/selection-core/pkg/utils"
)

// ComponentDef fixes the spectral definition of a candidate pool.
type ComponentDef struct {
	// Kind is "single", "geomean", "rotd50" or "rotd".
	Kind string
	// Percentile applies to "rotd".
	Percentile float64
}

// BuildPool converts filtered records into a selection pool on the target
// period grid. Spectra are interpolated in log-log space from the database
// grid; records with non-positive or undefined ordinates on the grid are
// dropped. With the "single" definition each horizontal component becomes
// its own candidate; the combined definitions require two-component records
// and skip those without a second component.
func BuildPool(records []Record, dbPeriods, targetPeriods []float64, def ComponentDef) (*selector.Pool, error) {
	switch def.Kind {
	case "single", "geomean", "rotd50", "rotd":
	default:
		return nil, fmt.Errorf("unknown component definition %q", def.Kind)
	}
	pct := def.Percentile
	if def.Kind == "rotd50" {
		pct = 50
	}

	pool := &selector.Pool{}
	add := func(rec Record, suffix string, sa []float64) {
		ln, ok := interpLog(dbPeriods, sa, targetPeriods)
		if !ok {
			return
		}
		pool.LnSa = append(pool.LnSa, ln)
		pool.IDs = append(pool.IDs, rec.ID+suffix)
		pool.Magnitude = append(pool.Magnitude, rec.Magnitude)
		pool.DistanceKm = append(pool.DistanceKm, rec.DistanceKm)
		pool.Vs30 = append(pool.Vs30, rec.Vs30)
		pool.Mechanism = append(pool.Mechanism, rec.Mechanism)
	}

	for _, rec := range records {
		switch def.Kind {
		case "single":
			add(rec, ":H1", rec.Sa1)
			if rec.Sa2 != nil {
				add(rec, ":H2", rec.Sa2)
			}
		case "geomean":
			if rec.Sa2 == nil {
				continue
			}
			sa := make([]float64, len(rec.Sa1))
			for i := range sa {
				sa[i] = math.Sqrt(rec.Sa1[i] * rec.Sa2[i])
			}
			add(rec, "", sa)
		case "rotd50", "rotd":
			if rec.Sa2 == nil {
				continue
			}
			add(rec, "", RotDxx(rec.Sa1, rec.Sa2, pct, defaultNumTheta))
		}
	}

	if pool.Size() == 0 {
		return nil, fmt.Errorf("no usable records after filtering with component definition %q", def.Kind)
	}
	return pool, nil
}

// interpLog interpolates a spectrum onto the target grid in log-log space
// and returns the log ordinates. Reports false when any source or
// interpolated ordinate is non-positive or not finite.
func interpLog(dbPeriods, sa, targetPeriods []float64) ([]float64, bool) {
	lnT := make([]float64, len(dbPeriods))
	lnSa := make([]float64, len(dbPeriods))
	for i := range dbPeriods {
		if sa[i] <= 0 || math.IsNaN(sa[i]) || math.IsInf(sa[i], 0) {
			return nil, false
		}
		lnT[i] = math.Log(dbPeriods[i])
		lnSa[i] = math.Log(sa[i])
	}

	out := make([]float64, len(targetPeriods))
	for i, t := range targetPeriods {
		v := utils.LinearInterp(lnT, lnSa, math.Log(t))
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}
