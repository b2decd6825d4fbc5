// Package report assembles the dataset aggregates into one summary and
// renders it as text tables, YAML, or gauge points.
package report

import (
	"fmt"
	"time"

	"github.com/cam3ron2/issue-stats/internal/dataset"
	"github.com/cam3ron2/issue-stats/internal/stats"
)

// Params fixes every parameter the aggregates depend on.
type Params struct {
	// FirstYear and LastYear bound the per-year author counts. Zero takes the
	// bound from the dataset.
	FirstYear          int
	LastYear           int
	Cutoff             time.Time
	ExcludeZeroAuthors bool
	TopN               int
	TopPercents        []float64
	ActivityBins       []float64
	Labels             []string
	BugLabel           string
	GeneratedAt        time.Time
}

// Totals counts records by kind and state.
type Totals struct {
	Records      int `yaml:"records"`
	Issues       int `yaml:"issues"`
	PullRequests int `yaml:"pull_requests"`
	OpenIssues   int `yaml:"open_issues"`
	OpenPRs      int `yaml:"open_prs"`
}

// TopPercent is the number of authors in the top Percent% of a distribution.
type TopPercent struct {
	Percent      float64 `yaml:"percent"`
	IssueAuthors int     `yaml:"issue_authors"`
	PRAuthors    int     `yaml:"pr_authors"`
}

// Timeline summarizes the cumulative open-item curve. OpenAtCutoff is the
// curve's value at the cutoff and LowestSinceCutoff its minimum over the
// events after it, which bounds the charted range.
type Timeline struct {
	CurrentOpen       int                    `yaml:"current_open"`
	PeakOpen          int                    `yaml:"peak_open"`
	PeakAt            time.Time              `yaml:"peak_at"`
	OpenAtCutoff      int                    `yaml:"open_at_cutoff"`
	LowestSinceCutoff int                    `yaml:"lowest_since_cutoff"`
	Open              []stats.OpenCountPoint `yaml:"open"`
	Created           []stats.RankPoint      `yaml:"created"`
	Closed            []stats.RankPoint      `yaml:"closed"`
}

// Report is every aggregate computed from one dataset snapshot.
type Report struct {
	GeneratedAt       time.Time                 `yaml:"generated_at"`
	Cutoff            time.Time                 `yaml:"cutoff"`
	Totals            Totals                    `yaml:"totals"`
	AuthorsByYear     []stats.YearAuthors       `yaml:"authors_by_year"`
	RecentAuthors     []stats.AuthorActivity    `yaml:"recent_authors"`
	TopIssueAuthors   []stats.AuthorCount       `yaml:"top_issue_authors"`
	TopPRAuthors      []stats.AuthorCount       `yaml:"top_pr_authors"`
	TopPercents       []TopPercent              `yaml:"top_percents"`
	IssueActivity     stats.Histogram           `yaml:"issue_activity"`
	PRActivity        stats.Histogram           `yaml:"pr_activity"`
	LabelContributors []stats.LabelContributors `yaml:"label_contributors"`
	LabelOpen         []stats.LabelOpenCount    `yaml:"label_open"`
	Lifetimes         stats.LifetimeHistograms  `yaml:"lifetimes"`
	LabelLifetimes    []stats.LabelLifetime     `yaml:"label_lifetimes"`
	Timeline          Timeline                  `yaml:"timeline"`
	BugLabel          string                    `yaml:"bug_label"`
	TopN              int                       `yaml:"top_n"`
}

// Build computes every aggregate. The dataset is only read.
func Build(ds *dataset.Dataset, params Params) (Report, error) {
	if ds == nil {
		return Report{}, fmt.Errorf("dataset is nil")
	}
	records := ds.Records()

	bins := params.ActivityBins
	if len(bins) == 0 {
		bins = stats.ActivityBins
	}

	firstYear, lastYear := yearRange(records, params.FirstYear, params.LastYear)
	var byYear []stats.YearAuthors
	if firstYear != 0 && lastYear != 0 {
		byYear = stats.YearlyAuthorCounts(records, firstYear, lastYear)
	}
	activity := stats.WindowActivity(records, params.Cutoff, stats.ActivityOptions{ExcludeZero: params.ExcludeZeroAuthors})

	issueActivity, err := stats.NewHistogram(activity.IssueCounts, bins)
	if err != nil {
		return Report{}, fmt.Errorf("issue activity histogram: %w", err)
	}
	prActivity, err := stats.NewHistogram(activity.PRCounts, bins)
	if err != nil {
		return Report{}, fmt.Errorf("pr activity histogram: %w", err)
	}

	topPercents := make([]TopPercent, 0, len(params.TopPercents))
	for _, p := range params.TopPercents {
		topPercents = append(topPercents, TopPercent{
			Percent:      p,
			IssueAuthors: stats.TopPercentCount(activity.IssueCounts, p),
			PRAuthors:    stats.TopPercentCount(activity.PRCounts, p),
		})
	}

	return Report{
		GeneratedAt:       params.GeneratedAt.UTC(),
		Cutoff:            params.Cutoff.UTC(),
		Totals:            totals(records),
		AuthorsByYear:     byYear,
		RecentAuthors:     activity.Authors,
		TopIssueAuthors:   stats.TopAuthors(activity.Authors, params.TopN, false),
		TopPRAuthors:      stats.TopAuthors(activity.Authors, params.TopN, true),
		TopPercents:       topPercents,
		IssueActivity:     issueActivity,
		PRActivity:        prActivity,
		LabelContributors: stats.LabelContributorMix(records, params.Labels, params.Cutoff),
		LabelOpen:         stats.LabelOpenCounts(records, params.Labels, params.BugLabel),
		Lifetimes:         stats.Lifetimes(records),
		LabelLifetimes:    stats.LabelLifetimes(records, params.Labels),
		Timeline:          timeline(records, params.Cutoff),
		BugLabel:          params.BugLabel,
		TopN:              params.TopN,
	}, nil
}

func yearRange(records []dataset.IssueRecord, first, last int) (int, int) {
	if first != 0 && last != 0 {
		return first, last
	}
	minYear, maxYear := 0, 0
	for i, record := range records {
		year := record.CreatedAt.UTC().Year()
		if i == 0 || year < minYear {
			minYear = year
		}
		if i == 0 || year > maxYear {
			maxYear = year
		}
	}
	if first == 0 {
		first = minYear
	}
	if last == 0 {
		last = maxYear
	}
	return first, last
}

func totals(records []dataset.IssueRecord) Totals {
	out := Totals{Records: len(records)}
	for _, record := range records {
		open := record.State != dataset.StateClosed
		if record.IsPullRequest {
			out.PullRequests++
			if open {
				out.OpenPRs++
			}
			continue
		}
		out.Issues++
		if open {
			out.OpenIssues++
		}
	}
	return out
}

func timeline(records []dataset.IssueRecord, cutoff time.Time) Timeline {
	created := stats.CreatedTimes(records)
	closed := stats.ClosedTimes(records)
	out := Timeline{
		Open:    stats.OpenCountSeries(created, closed),
		Created: stats.RankSeries(created),
		Closed:  stats.RankSeries(closed),
	}
	for _, point := range out.Open {
		if point.Open > out.PeakOpen {
			out.PeakOpen = point.Open
			out.PeakAt = point.At
		}
	}
	if n := len(out.Open); n > 0 {
		out.CurrentOpen = out.Open[n-1].Open
	}

	out.OpenAtCutoff = stats.OpenAt(out.Open, cutoff)
	out.LowestSinceCutoff = out.OpenAtCutoff
	seen := false
	for _, point := range out.Open {
		if !point.At.After(cutoff) {
			continue
		}
		if !seen || point.Open < out.LowestSinceCutoff {
			out.LowestSinceCutoff = point.Open
			seen = true
		}
	}
	return out
}
