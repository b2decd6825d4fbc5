package stats

import (
	"time"

	"github.com/cam3ron2/issue-stats/internal/dataset"
)

// LifetimeHistograms bins item lifetimes split by state and kind.
type LifetimeHistograms struct {
	ClosedIssuesDays Histogram `yaml:"closed_issues_days"`
	ClosedPRsDays    Histogram `yaml:"closed_prs_days"`
	OpenIssuesDays   Histogram `yaml:"open_issues_days"`
	OpenPRsDays      Histogram `yaml:"open_prs_days"`
	AllHours         Histogram `yaml:"all_hours"`
	PRHours          Histogram `yaml:"pr_hours"`
}

// LabelLifetime is the lifetime distribution of items carrying one label.
type LabelLifetime struct {
	Label string    `yaml:"label"`
	Days  Histogram `yaml:"days"`
}

// LifetimeDays converts a lifetime to fractional days.
func LifetimeDays(lifetime time.Duration) float64 {
	return lifetime.Hours() / 24
}

// Lifetimes bins every record's lifetime on LifetimeDayBins (by state and kind)
// and on LifetimeHourBins (all items and PRs). A record without a close date
// counts as open, matching how its lifetime was measured.
func Lifetimes(records []dataset.IssueRecord) LifetimeHistograms {
	var closedIssues, closedPRs, openIssues, openPRs, allHours, prHours []float64
	for _, record := range records {
		days := LifetimeDays(record.Lifetime)
		hours := record.Lifetime.Hours()
		closed := record.IsClosed()

		allHours = append(allHours, hours)
		switch {
		case closed && record.IsPullRequest:
			closedPRs = append(closedPRs, days)
		case closed:
			closedIssues = append(closedIssues, days)
		case record.IsPullRequest:
			openPRs = append(openPRs, days)
		default:
			openIssues = append(openIssues, days)
		}
		if record.IsPullRequest {
			prHours = append(prHours, hours)
		}
	}

	dayBins := LifetimeDayBins()
	hourBins := LifetimeHourBins()
	return LifetimeHistograms{
		ClosedIssuesDays: MustHistogram(closedIssues, dayBins),
		ClosedPRsDays:    MustHistogram(closedPRs, dayBins),
		OpenIssuesDays:   MustHistogram(openIssues, dayBins),
		OpenPRsDays:      MustHistogram(openPRs, dayBins),
		AllHours:         MustHistogram(allHours, hourBins),
		PRHours:          MustHistogram(prHours, hourBins),
	}
}

// LabelLifetimes bins the lifetimes of items carrying each label on LifetimeDayBins.
func LabelLifetimes(records []dataset.IssueRecord, labels []string) []LabelLifetime {
	dayBins := LifetimeDayBins()
	out := make([]LabelLifetime, 0, len(labels))
	for _, label := range labels {
		var days []float64
		for _, record := range records {
			if record.HasLabel(label) {
				days = append(days, LifetimeDays(record.Lifetime))
			}
		}
		out = append(out, LabelLifetime{
			Label: label,
			Days:  MustHistogram(days, dayBins),
		})
	}
	return out
}
