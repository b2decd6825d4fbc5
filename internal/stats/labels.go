package stats

import (
	"sort"
	"time"

	"github.com/cam3ron2/issue-stats/internal/dataset"
)

// ContributorCounts is one author's issue and PR tally under a label.
type ContributorCounts struct {
	Issues int
	PRs    int
}

// LabelContributors classifies the authors who touched one label.
type LabelContributors struct {
	Label      string `yaml:"label"`
	OnlyIssues int    `yaml:"only_issues"`
	OnlyPRs    int    `yaml:"only_prs"`
	Both       int    `yaml:"both"`
}

// ClassifyContributors sorts every author into exactly one bucket: only issues,
// only PRs, or both. Authors with neither are skipped.
func ClassifyContributors(label string, counts map[string]ContributorCounts) LabelContributors {
	out := LabelContributors{Label: label}
	for _, tally := range counts {
		switch {
		case tally.Issues >= 1 && tally.PRs >= 1:
			out.Both++
		case tally.Issues >= 1:
			out.OnlyIssues++
		case tally.PRs >= 1:
			out.OnlyPRs++
		}
	}
	return out
}

// LabelContributorMix classifies contributors per label for records created
// strictly after cutoff. Labels not in the requested set are ignored and the
// result follows the order of labels.
func LabelContributorMix(records []dataset.IssueRecord, labels []string, cutoff time.Time) []LabelContributors {
	wanted := make(map[string]map[string]ContributorCounts, len(labels))
	for _, label := range labels {
		wanted[label] = make(map[string]ContributorCounts)
	}

	for _, record := range records {
		if !record.CreatedAt.After(cutoff) || len(record.Labels) == 0 {
			continue
		}
		for label, byAuthor := range wanted {
			if !record.HasLabel(label) {
				continue
			}
			tally := byAuthor[record.Creator]
			if record.IsPullRequest {
				tally.PRs++
			} else {
				tally.Issues++
			}
			byAuthor[record.Creator] = tally
		}
	}

	out := make([]LabelContributors, 0, len(labels))
	for _, label := range labels {
		out = append(out, ClassifyContributors(label, wanted[label]))
	}
	return out
}

// LabelOpenCount is the number of open items carrying a label.
type LabelOpenCount struct {
	Label         string  `yaml:"label"`
	OpenIssues    int     `yaml:"open_issues"`
	OpenBugIssues int     `yaml:"open_bug_issues"`
	OpenPRs       int     `yaml:"open_prs"`
	BugRatio      float64 `yaml:"bug_ratio"`
}

// LabelOpenCounts counts open issues, open issues also tagged bugLabel, and
// open PRs for every label. BugRatio is zero when a label has no open issues.
func LabelOpenCounts(records []dataset.IssueRecord, labels []string, bugLabel string) []LabelOpenCount {
	out := make([]LabelOpenCount, 0, len(labels))
	for _, label := range labels {
		entry := LabelOpenCount{Label: label}
		for _, record := range records {
			if record.State == dataset.StateClosed || !record.HasLabel(label) {
				continue
			}
			if record.IsPullRequest {
				entry.OpenPRs++
				continue
			}
			entry.OpenIssues++
			if bugLabel != "" && record.HasLabel(bugLabel) {
				entry.OpenBugIssues++
			}
		}
		if entry.OpenIssues > 0 {
			entry.BugRatio = float64(entry.OpenBugIssues) / float64(entry.OpenIssues)
		}
		out = append(out, entry)
	}
	return out
}

// TopLabelsBy returns up to n entries ordered by the key, descending. Ties keep input order.
func TopLabelsBy(counts []LabelOpenCount, n int, key func(LabelOpenCount) float64) []LabelOpenCount {
	out := append([]LabelOpenCount(nil), counts...)
	sort.SliceStable(out, func(i, j int) bool {
		return key(out[i]) > key(out[j])
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
