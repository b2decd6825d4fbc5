// Package stats computes aggregates over a harvested issue dataset.
// Every function is pure: inputs are never mutated and results depend only on
// the records and the explicit parameters.
package stats

import (
	"sort"
	"time"

	"github.com/cam3ron2/issue-stats/internal/dataset"
)

// YearAuthors is the number of distinct issue and PR creators in one calendar year.
type YearAuthors struct {
	Year         int `yaml:"year"`
	IssueAuthors int `yaml:"issue_authors"`
	PRAuthors    int `yaml:"pr_authors"`
}

// YearlyAuthorCounts counts distinct creators per year in [firstYear, lastYear].
// A record belongs to year Y when Y-01-01 <= created < (Y+1)-01-01 in UTC.
func YearlyAuthorCounts(records []dataset.IssueRecord, firstYear, lastYear int) []YearAuthors {
	if lastYear < firstYear {
		return nil
	}

	issueAuthors := make(map[int]map[string]struct{})
	prAuthors := make(map[int]map[string]struct{})
	for _, record := range records {
		year := record.CreatedAt.UTC().Year()
		if year < firstYear || year > lastYear {
			continue
		}
		target := issueAuthors
		if record.IsPullRequest {
			target = prAuthors
		}
		if target[year] == nil {
			target[year] = make(map[string]struct{})
		}
		target[year][record.Creator] = struct{}{}
	}

	out := make([]YearAuthors, 0, lastYear-firstYear+1)
	for year := firstYear; year <= lastYear; year++ {
		out = append(out, YearAuthors{
			Year:         year,
			IssueAuthors: len(issueAuthors[year]),
			PRAuthors:    len(prAuthors[year]),
		})
	}
	return out
}

// AuthorActivity is one author's issue and PR count inside a window.
type AuthorActivity struct {
	Author string `yaml:"author"`
	Issues int    `yaml:"issues"`
	PRs    int    `yaml:"prs"`
}

// ActivityOptions controls WindowActivity.
type ActivityOptions struct {
	// ExcludeZero drops authors with no items of a kind from that kind's distribution.
	ExcludeZero bool
}

// Activity holds per-author counts for records created after a cutoff.
type Activity struct {
	Cutoff      time.Time
	Authors     []AuthorActivity
	IssueCounts []float64
	PRCounts    []float64
}

// WindowActivity counts, for every distinct creator in records, the issues and
// PRs they created strictly after cutoff. Authors are ordered by login.
// IssueCounts and PRCounts are parallel to Authors unless ExcludeZero is set.
func WindowActivity(records []dataset.IssueRecord, cutoff time.Time, opts ActivityOptions) Activity {
	counts := make(map[string]*AuthorActivity)
	for _, record := range records {
		entry, ok := counts[record.Creator]
		if !ok {
			entry = &AuthorActivity{Author: record.Creator}
			counts[record.Creator] = entry
		}
		if !record.CreatedAt.After(cutoff) {
			continue
		}
		if record.IsPullRequest {
			entry.PRs++
		} else {
			entry.Issues++
		}
	}

	authors := make([]string, 0, len(counts))
	for author := range counts {
		authors = append(authors, author)
	}
	sort.Strings(authors)

	activity := Activity{
		Cutoff:  cutoff,
		Authors: make([]AuthorActivity, 0, len(authors)),
	}
	for _, author := range authors {
		entry := *counts[author]
		activity.Authors = append(activity.Authors, entry)
		if !opts.ExcludeZero || entry.Issues > 0 {
			activity.IssueCounts = append(activity.IssueCounts, float64(entry.Issues))
		}
		if !opts.ExcludeZero || entry.PRs > 0 {
			activity.PRCounts = append(activity.PRCounts, float64(entry.PRs))
		}
	}
	return activity
}

// AuthorCount pairs an author with a count.
type AuthorCount struct {
	Author string `yaml:"author"`
	Count  int    `yaml:"count"`
}

// TopAuthors returns up to n authors by descending count, ties broken by login.
// Authors with a zero count are never listed. n <= 0 returns every author.
func TopAuthors(activity []AuthorActivity, n int, pullRequests bool) []AuthorCount {
	out := make([]AuthorCount, 0, len(activity))
	for _, entry := range activity {
		count := entry.Issues
		if pullRequests {
			count = entry.PRs
		}
		if count == 0 {
			continue
		}
		out = append(out, AuthorCount{Author: entry.Author, Count: count})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Author < out[j].Author
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
