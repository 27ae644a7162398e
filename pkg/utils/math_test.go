package utils

import (
	"math"
	"testing"
)

func TestMinMax(t *testing.T) {
	if Min(2, 5) != 2 || Min(5, 2) != 2 {
		t.Fatalf("Min broken")
	}
	if Max(2, 5) != 5 || Max(5, 2) != 5 {
		t.Fatalf("Max broken")
	}
}

func TestClampFloat64(t *testing.T) {
	if got := ClampFloat64(5, 0, 1); got != 1 {
		t.Fatalf("clamp above = %g, want 1", got)
	}
	if got := ClampFloat64(-5, 0, 1); got != 0 {
		t.Fatalf("clamp below = %g, want 0", got)
	}
	if got := ClampFloat64(0.5, 0, 1); got != 0.5 {
		t.Fatalf("clamp inside = %g, want 0.5", got)
	}
}

func TestMeanVarianceStdDev(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	if got := Mean(values); got != 5 {
		t.Fatalf("mean = %g, want 5", got)
	}
	// Population variance of the classic example is exactly 4.
	if got := Variance(values); math.Abs(got-4) > 1e-12 {
		t.Fatalf("variance = %g, want 4", got)
	}
	if got := StdDev(values); math.Abs(got-2) > 1e-12 {
		t.Fatalf("stddev = %g, want 2", got)
	}

	if Mean(nil) != 0 || Variance(nil) != 0 {
		t.Fatalf("empty input should yield 0")
	}
}

func TestSkewness(t *testing.T) {
	// A symmetric sample has zero skewness.
	if got := Skewness([]float64{1, 2, 3, 4, 5}); math.Abs(got) > 1e-12 {
		t.Fatalf("symmetric skewness = %g, want 0", got)
	}
	// A right tail gives positive skewness.
	if got := Skewness([]float64{1, 1, 1, 1, 10}); got <= 0 {
		t.Fatalf("right-tailed skewness = %g, want positive", got)
	}

	if Skewness([]float64{3}) != 0 {
		t.Fatalf("single value should yield 0")
	}
	if Skewness([]float64{2, 2, 2}) != 0 {
		t.Fatalf("constant sample should yield 0")
	}
}

func TestSumExpLog(t *testing.T) {
	if got := Sum([]float64{1, 2, 3.5}); got != 6.5 {
		t.Fatalf("sum = %g, want 6.5", got)
	}

	values := []float64{0.5, 1.2, 3.0}
	roundTrip := Log(Exp(values))
	for i := range values {
		if math.Abs(roundTrip[i]-values[i]) > 1e-12 {
			t.Fatalf("exp/log round trip diverged at %d: %g", i, roundTrip[i])
		}
	}
}

func TestColumn(t *testing.T) {
	rows := [][]float64{{1, 2}, {3, 4}, {5, 6}}
	col := Column(rows, 1)
	if len(col) != 3 || col[0] != 2 || col[2] != 6 {
		t.Fatalf("unexpected column %v", col)
	}
}

func TestLinearInterp(t *testing.T) {
	xs := []float64{0, 1, 2, 4}
	ys := []float64{0, 10, 20, 40}

	tests := []struct {
		xq   float64
		want float64
	}{
		{0.5, 5},
		{1, 10},
		{3, 30},
		{-1, 0},  // clamped to the left endpoint
		{10, 40}, // clamped to the right endpoint
	}
	for _, tc := range tests {
		if got := LinearInterp(xs, ys, tc.xq); math.Abs(got-tc.want) > 1e-12 {
			t.Fatalf("interp(%g) = %g, want %g", tc.xq, got, tc.want)
		}
	}

	if LinearInterp(nil, nil, 1) != 0 {
		t.Fatalf("empty samples should yield 0")
	}
}
