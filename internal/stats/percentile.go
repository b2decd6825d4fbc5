package stats

import (
	"math"
	"slices"
)

// Percentile returns the q-th percentile (0..100) of values using linear
// interpolation between the two closest ranks:
//
//	rank = q/100 * (n-1)
//	p    = x[floor(rank)] + (x[ceil(rank)] - x[floor(rank)]) * (rank - floor(rank))
//
// where x is values sorted ascending. It returns NaN for empty input.
func Percentile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	q = math.Max(0, math.Min(100, q))

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	rank := q / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(rank-float64(lo))
}

// TopPercentCount returns how many values lie strictly above the (100-p)-th
// percentile, i.e. how many authors are in the top p% by volume.
func TopPercentCount(values []float64, p float64) int {
	if len(values) == 0 {
		return 0
	}
	threshold := Percentile(values, 100-p)
	count := 0
	for _, value := range values {
		if value > threshold {
			count++
		}
	}
	return count
}
