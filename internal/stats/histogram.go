package stats

import (
	"fmt"
	"math"
	"sort"
)

// ActivityBins are the bin edges used for issues-per-author distributions.
var ActivityBins = []float64{0, 5, 10, 20, 30, 40, 50, 100, 150, 200, 250, 300, 350, 400, 450, 500, 1000}

// LifetimeDayBins returns 50 log-spaced edges from 1e-4 to 10^3.25 days.
func LifetimeDayBins() []float64 {
	return LogSpace(-4, 3.25, 50)
}

// LifetimeHourBins returns 49 edges for hourly bins over the first two days.
func LifetimeHourBins() []float64 {
	return LinSpace(0, 48, 49)
}

// Histogram is the count of values per bin.
type Histogram struct {
	Edges  []float64 `yaml:"edges"`
	Counts []int     `yaml:"counts"`
}

// Total returns the number of binned values.
func (h Histogram) Total() int {
	total := 0
	for _, count := range h.Counts {
		total += count
	}
	return total
}

// NewHistogram bins values into [edges[i], edges[i+1]). The last bin is closed
// on the right, so a value equal to the final edge is counted in it. Values
// outside [edges[0], edges[len-1]] and NaNs are dropped.
func NewHistogram(values []float64, edges []float64) (Histogram, error) {
	if len(edges) < 2 {
		return Histogram{}, fmt.Errorf("histogram needs at least two edges, got %d", len(edges))
	}
	for i := 1; i < len(edges); i++ {
		if edges[i] <= edges[i-1] {
			return Histogram{}, fmt.Errorf("histogram edges must be strictly increasing at index %d", i)
		}
	}

	hist := Histogram{
		Edges:  append([]float64(nil), edges...),
		Counts: make([]int, len(edges)-1),
	}
	last := edges[len(edges)-1]
	for _, value := range values {
		if math.IsNaN(value) || value < edges[0] || value > last {
			continue
		}
		if value == last {
			hist.Counts[len(hist.Counts)-1]++
			continue
		}
		idx := sort.Search(len(edges), func(i int) bool { return edges[i] > value }) - 1
		hist.Counts[idx]++
	}
	return hist, nil
}

// MustHistogram is NewHistogram for edges known to be valid.
func MustHistogram(values []float64, edges []float64) Histogram {
	hist, err := NewHistogram(values, edges)
	if err != nil {
		panic(err)
	}
	return hist
}

// LinSpace returns num evenly spaced values over [start, stop].
func LinSpace(start, stop float64, num int) []float64 {
	if num <= 0 {
		return nil
	}
	if num == 1 {
		return []float64{start}
	}
	step := (stop - start) / float64(num-1)
	out := make([]float64, num)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[num-1] = stop
	return out
}

// LogSpace returns num values spaced evenly on a log scale, from 10^start to 10^stop.
func LogSpace(start, stop float64, num int) []float64 {
	exponents := LinSpace(start, stop, num)
	out := make([]float64, len(exponents))
	for i, exponent := range exponents {
		out[i] = math.Pow(10, exponent)
	}
	return out
}
