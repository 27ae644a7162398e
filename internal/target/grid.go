package target

import "fmt"

// DefaultGridTolerance is the default relative tolerance of conditioning
// period lookups.
const DefaultGridTolerance = 1e-6

// NearestIndex returns the index of the grid value closest to v. Ties go to
// the lower index. The grid must be non-empty.
func NearestIndex(grid []float64, v float64) int {
	best := 0
	bestDist := dist(grid[0], v)
	for i := 1; i < len(grid); i++ {
		if d := dist(grid[i], v); d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}

// NearestIndexWithin returns the index of the grid value closest to v,
// failing when even the nearest value deviates from v by more than the
// relative tolerance tol.
func NearestIndexWithin(grid []float64, v, tol float64) (int, error) {
	i := NearestIndex(grid, v)
	if dist(grid[i], v) > tol*v {
		return 0, fmt.Errorf("no grid period within tolerance of %g (nearest is %g)", v, grid[i])
	}
	return i, nil
}

// SubRange slices the grid between the values nearest to lo and hi,
// inclusive on both ends, returning the slice and its bounding indices.
func SubRange(grid []float64, lo, hi float64) ([]float64, int, int) {
	i := NearestIndex(grid, lo)
	j := NearestIndex(grid, hi)
	if i > j {
		i, j = j, i
	}
	out := make([]float64, j-i+1)
	copy(out, grid[i:j+1])
	return out, i, j
}

func dist(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
