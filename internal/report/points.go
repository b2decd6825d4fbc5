package report

import (
	"strconv"

	"github.com/cam3ron2/issue-stats/internal/exporter"
)

const (
	kindIssue       = "issue"
	kindPullRequest = "pull_request"
)

// Points flattens the headline aggregates into gauges.
func Points(r Report) []exporter.MetricPoint {
	var points []exporter.MetricPoint
	add := func(name, help string, value float64, labels map[string]string) {
		points = append(points, exporter.MetricPoint{Name: name, Help: help, Labels: labels, Value: value})
	}

	const itemsHelp = "Tracker items by kind and state."
	add("issue_stats_items", itemsHelp, float64(r.Totals.OpenIssues), map[string]string{"kind": kindIssue, "state": "open"})
	add("issue_stats_items", itemsHelp, float64(r.Totals.Issues-r.Totals.OpenIssues), map[string]string{"kind": kindIssue, "state": "closed"})
	add("issue_stats_items", itemsHelp, float64(r.Totals.OpenPRs), map[string]string{"kind": kindPullRequest, "state": "open"})
	add("issue_stats_items", itemsHelp, float64(r.Totals.PullRequests-r.Totals.OpenPRs), map[string]string{"kind": kindPullRequest, "state": "closed"})

	const yearHelp = "Distinct creators per calendar year."
	for _, year := range r.AuthorsByYear {
		y := strconv.Itoa(year.Year)
		add("issue_stats_year_authors", yearHelp, float64(year.IssueAuthors), map[string]string{"kind": kindIssue, "year": y})
		add("issue_stats_year_authors", yearHelp, float64(year.PRAuthors), map[string]string{"kind": kindPullRequest, "year": y})
	}

	recentIssues, recentPRs := 0, 0
	for _, author := range r.RecentAuthors {
		if author.Issues > 0 {
			recentIssues++
		}
		if author.PRs > 0 {
			recentPRs++
		}
	}
	const recentHelp = "Distinct creators active since the cutoff."
	add("issue_stats_recent_authors", recentHelp, float64(recentIssues), map[string]string{"kind": kindIssue})
	add("issue_stats_recent_authors", recentHelp, float64(recentPRs), map[string]string{"kind": kindPullRequest})

	const topHelp = "Authors in the top percent of recent activity."
	for _, top := range r.TopPercents {
		p := strconv.FormatFloat(top.Percent, 'f', -1, 64)
		add("issue_stats_top_percent_authors", topHelp, float64(top.IssueAuthors), map[string]string{"kind": kindIssue, "percent": p})
		add("issue_stats_top_percent_authors", topHelp, float64(top.PRAuthors), map[string]string{"kind": kindPullRequest, "percent": p})
	}

	const mixHelp = "Recent contributors per label by contribution type."
	for _, mix := range r.LabelContributors {
		add("issue_stats_label_contributors", mixHelp, float64(mix.OnlyIssues), map[string]string{"label": mix.Label, "class": "only_issues"})
		add("issue_stats_label_contributors", mixHelp, float64(mix.OnlyPRs), map[string]string{"label": mix.Label, "class": "only_prs"})
		add("issue_stats_label_contributors", mixHelp, float64(mix.Both), map[string]string{"label": mix.Label, "class": "both"})
	}

	const openHelp = "Open items per label."
	for _, open := range r.LabelOpen {
		add("issue_stats_label_open_items", openHelp, float64(open.OpenIssues), map[string]string{"label": open.Label, "kind": kindIssue})
		add("issue_stats_label_open_items", openHelp, float64(open.OpenPRs), map[string]string{"label": open.Label, "kind": kindPullRequest})
		add("issue_stats_label_open_bug_issues", "Open issues per label that also carry the bug label.", float64(open.OpenBugIssues), map[string]string{"label": open.Label})
	}

	add("issue_stats_open_peak", "Highest number of simultaneously open items.", float64(r.Timeline.PeakOpen), nil)
	add("issue_stats_open_at_cutoff", "Open items at the start of the recent window.", float64(r.Timeline.OpenAtCutoff), nil)
	if !r.GeneratedAt.IsZero() {
		add("issue_stats_report_generated_timestamp_seconds", "Unix time the report was built.", float64(r.GeneratedAt.Unix()), nil)
	}
	return points
}
