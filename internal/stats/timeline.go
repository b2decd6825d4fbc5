package stats

import (
	"slices"
	"sort"
	"time"

	"github.com/cam3ron2/issue-stats/internal/dataset"
)

// OpenCountPoint is one step of the cumulative open-item curve.
type OpenCountPoint struct {
	At    time.Time `yaml:"at"`
	Year  float64   `yaml:"year"`
	Delta int       `yaml:"delta"`
	Open  int       `yaml:"open"`
}

// RankPoint is the n-th event in timestamp order.
type RankPoint struct {
	At   time.Time `yaml:"at"`
	Year float64   `yaml:"year"`
	N    int       `yaml:"n"`
}

// CreatedTimes returns every creation timestamp in record order.
func CreatedTimes(records []dataset.IssueRecord) []time.Time {
	out := make([]time.Time, 0, len(records))
	for _, record := range records {
		out = append(out, record.CreatedAt)
	}
	return out
}

// ClosedTimes returns the close timestamp of every closed record in record order.
func ClosedTimes(records []dataset.IssueRecord) []time.Time {
	out := make([]time.Time, 0, len(records))
	for _, record := range records {
		if record.IsClosed() {
			out = append(out, record.ClosedAt)
		}
	}
	return out
}

// OpenCountSeries merges creations (+1) and closings (-1) into one stream,
// stable-sorted by time with creations ahead of closings at equal instants,
// and returns the running total. The value at any point is the number of
// items open at that instant. Year carries At as a decimal year for charting.
func OpenCountSeries(created, closed []time.Time) []OpenCountPoint {
	events := make([]OpenCountPoint, 0, len(created)+len(closed))
	for _, at := range created {
		events = append(events, OpenCountPoint{At: at, Delta: 1})
	}
	for _, at := range closed {
		events = append(events, OpenCountPoint{At: at, Delta: -1})
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].At.Before(events[j].At)
	})

	open := 0
	for i := range events {
		open += events[i].Delta
		events[i].Open = open
		events[i].Year = YearFraction(events[i].At)
	}
	return events
}

// RankSeries sorts the timestamps and numbers them 1, 2, 3, ...
func RankSeries(times []time.Time) []RankPoint {
	sorted := slices.Clone(times)
	slices.SortStableFunc(sorted, func(a, b time.Time) int {
		return a.Compare(b)
	})
	out := make([]RankPoint, len(sorted))
	for i, at := range sorted {
		out[i] = RankPoint{At: at, Year: YearFraction(at), N: i + 1}
	}
	return out
}

// OpenAt returns the series value in effect at t: the running total after the
// last event at or before t, or zero before the first event.
func OpenAt(series []OpenCountPoint, t time.Time) int {
	idx := sort.Search(len(series), func(i int) bool {
		return series[i].At.After(t)
	})
	if idx == 0 {
		return 0
	}
	return series[idx-1].Open
}

// YearFraction expresses t as a decimal year, e.g. 2011-10-01 is about 2011.75.
func YearFraction(t time.Time) float64 {
	t = t.UTC()
	start := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)
	return float64(t.Year()) + t.Sub(start).Seconds()/end.Sub(start).Seconds()
}
