// Package hazard turns seismic hazard disaggregation output into the
// scenario set driving the target spectrum.
package hazard

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/gmselect/selection-core/internal/gmm"
)

// Contributor is one disaggregation bin: a magnitude-distance pair with its
// hazard contribution.
type Contributor struct {
	Magnitude  float64
	DistanceKm float64
	Weight     float64
}

// ParseContributors reads disaggregation bins from plain text: one
// "<magnitude> <distance_km> <weight>" triple per line, '#' comments and
// blank lines skipped.
func ParseContributors(r io.Reader) ([]Contributor, error) {
	sc := bufio.NewScanner(r)
	var out []Contributor
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("line %d: expected 3 fields, got %d", lineNo, len(fields))
		}
		vals := make([]float64, 3)
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad value %q: %w", lineNo, f, err)
			}
			vals[i] = v
		}
		if vals[2] < 0 {
			return nil, fmt.Errorf("line %d: negative weight %g", lineNo, vals[2])
		}
		out = append(out, Contributor{Magnitude: vals[0], DistanceKm: vals[1], Weight: vals[2]})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no contributors found")
	}
	return out, nil
}

// TopN keeps the n largest contributors by weight, ties broken by input
// order, and renormalizes the kept weights to sum to 1.
func TopN(contributors []Contributor, n int) []Contributor {
	sorted := make([]Contributor, len(contributors))
	copy(sorted, contributors)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Weight > sorted[j].Weight
	})
	if n > 0 && n < len(sorted) {
		sorted = sorted[:n]
	}

	total := 0.0
	for _, c := range sorted {
		total += c.Weight
	}
	if total > 0 {
		for i := range sorted {
			sorted[i].Weight /= total
		}
	}
	return sorted
}

// Scenarios converts contributors into ground-motion scenarios with shared
// site parameters.
func Scenarios(contributors []Contributor, vs30, rake float64) []gmm.Scenario {
	out := make([]gmm.Scenario, len(contributors))
	for i, c := range contributors {
		out[i] = gmm.Scenario{
			Weight:     c.Weight,
			Magnitude:  c.Magnitude,
			DistanceKm: c.DistanceKm,
			Vs30:       vs30,
			Rake:       rake,
		}
	}
	return out
}
