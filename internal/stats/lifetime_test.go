package stats

import (
	"math"
	"testing"
	"time"

	"github.com/cam3ron2/issue-stats/internal/dataset"
)

func lifetimeRecord(number int, state dataset.State, isPR bool, lifetime time.Duration, labels ...string) dataset.IssueRecord {
	r := record(number, "alice", isPR, day(2019, 1, 1), labels...)
	r.State = state
	r.Lifetime = lifetime
	if state == dataset.StateClosed {
		r.ClosedAt = r.CreatedAt.Add(lifetime)
	}
	return r
}

func TestLifetimes(t *testing.T) {
	t.Parallel()

	records := []dataset.IssueRecord{
		lifetimeRecord(1, dataset.StateClosed, false, 24*time.Hour, "units"),
		lifetimeRecord(2, dataset.StateClosed, true, 6*time.Hour, "units"),
		lifetimeRecord(3, dataset.StateOpen, false, 3*365*24*time.Hour),
		// zero lifetime falls below the first day edge
		lifetimeRecord(4, dataset.StateOpen, true, 0),
		lifetimeRecord(5, dataset.StateOpen, true, 30*time.Hour),
	}

	got := Lifetimes(records)

	testCases := []struct {
		name      string
		hist      Histogram
		wantTotal int
		wantEdges int
	}{
		{name: "closed_issues_days", hist: got.ClosedIssuesDays, wantTotal: 1, wantEdges: 50},
		{name: "closed_prs_days", hist: got.ClosedPRsDays, wantTotal: 1, wantEdges: 50},
		{name: "open_issues_days", hist: got.OpenIssuesDays, wantTotal: 1, wantEdges: 50},
		{name: "open_prs_days", hist: got.OpenPRsDays, wantTotal: 1, wantEdges: 50},
		{name: "all_hours", hist: got.AllHours, wantTotal: 4, wantEdges: 49},
		{name: "pr_hours", hist: got.PRHours, wantTotal: 3, wantEdges: 49},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := tc.hist.Total(); got != tc.wantTotal {
				t.Fatalf("Total() = %d, want %d", got, tc.wantTotal)
			}
			if got := len(tc.hist.Edges); got != tc.wantEdges {
				t.Fatalf("len(Edges) = %d, want %d", got, tc.wantEdges)
			}
		})
	}

	if got.AllHours.Counts[24] != 1 || got.AllHours.Counts[6] != 1 || got.AllHours.Counts[0] != 1 {
		t.Fatalf("AllHours.Counts = %v, want one item in hours 0, 6 and 24", got.AllHours.Counts)
	}
}

func TestLifetimesClosedWithoutCloseDate(t *testing.T) {
	t.Parallel()

	undated := lifetimeRecord(1, dataset.StateOpen, false, 400*24*time.Hour)
	undated.State = dataset.StateClosed

	got := Lifetimes([]dataset.IssueRecord{undated})
	if got.ClosedIssuesDays.Total() != 0 || got.OpenIssuesDays.Total() != 1 {
		t.Fatalf("closed/open issue totals = %d/%d, want 0/1",
			got.ClosedIssuesDays.Total(), got.OpenIssuesDays.Total())
	}
}

func TestLifetimeDays(t *testing.T) {
	t.Parallel()

	if got := LifetimeDays(36 * time.Hour); math.Abs(got-1.5) > 1e-12 {
		t.Fatalf("LifetimeDays(36h) = %v, want 1.5", got)
	}
}

func TestLabelLifetimes(t *testing.T) {
	t.Parallel()

	records := []dataset.IssueRecord{
		lifetimeRecord(1, dataset.StateClosed, false, 24*time.Hour, "units"),
		lifetimeRecord(2, dataset.StateOpen, true, 48*time.Hour, "units", "wcs"),
		lifetimeRecord(3, dataset.StateOpen, false, 2*time.Hour),
	}

	got := LabelLifetimes(records, []string{"units", "wcs", "io.fits"})
	want := map[string]int{"units": 2, "wcs": 1, "io.fits": 0}
	if len(got) != len(want) {
		t.Fatalf("LabelLifetimes() returned %d entries, want %d", len(got), len(want))
	}
	for _, entry := range got {
		if entry.Days.Total() != want[entry.Label] {
			t.Fatalf("%s Total() = %d, want %d", entry.Label, entry.Days.Total(), want[entry.Label])
		}
		if len(entry.Days.Counts) != 49 {
			t.Fatalf("%s has %d bins, want 49", entry.Label, len(entry.Days.Counts))
		}
	}
	if got[0].Label != "units" || got[2].Label != "io.fits" {
		t.Fatalf("LabelLifetimes() order = %s..%s, want configured order", got[0].Label, got[2].Label)
	}
}
