package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cam3ron2/issue-stats/internal/stats"
)

const (
	topBugRatioLabels = 3
	topOpenPRLabels   = 5
)

// WriteText renders the report as plain-text tables.
func WriteText(w io.Writer, r Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	p := &printer{w: tw}

	p.section("Dataset")
	p.row("generated", formatTime(r.GeneratedAt))
	p.row("records", r.Totals.Records)
	p.row("issues", r.Totals.Issues, "open", r.Totals.OpenIssues)
	p.row("pull requests", r.Totals.PullRequests, "open", r.Totals.OpenPRs)

	p.section("Distinct authors by year")
	p.row("YEAR", "ISSUE AUTHORS", "PR AUTHORS")
	for _, year := range r.AuthorsByYear {
		p.row(year.Year, year.IssueAuthors, year.PRAuthors)
	}

	p.section(fmt.Sprintf("Activity since %s", formatDate(r.Cutoff)))
	p.row("authors", len(r.RecentAuthors))
	p.row("PERCENT", "ISSUE AUTHORS", "PR AUTHORS")
	for _, top := range r.TopPercents {
		p.row("top "+formatFloat(top.Percent)+"%", top.IssueAuthors, top.PRAuthors)
	}

	p.section(fmt.Sprintf("Top %d issue authors", r.TopN))
	writeAuthorCounts(p, r.TopIssueAuthors)
	p.section(fmt.Sprintf("Top %d PR authors", r.TopN))
	writeAuthorCounts(p, r.TopPRAuthors)

	p.section("Items per author")
	p.row("BIN", "ISSUES", "PRS")
	for i := range r.IssueActivity.Counts {
		prCount := 0
		if i < len(r.PRActivity.Counts) {
			prCount = r.PRActivity.Counts[i]
		}
		p.row(binLabel(r.IssueActivity, i), r.IssueActivity.Counts[i], prCount)
	}

	p.section("Contributors by label")
	p.row("LABEL", "ONLY ISSUES", "ONLY PRS", "BOTH")
	for _, mix := range r.LabelContributors {
		p.row(mix.Label, mix.OnlyIssues, mix.OnlyPRs, mix.Both)
	}

	p.section("Open items by label")
	p.row("LABEL", "OPEN ISSUES", "OPEN "+strings.ToUpper(r.BugLabel), "BUG RATIO", "OPEN PRS")
	for _, open := range stats.TopLabelsBy(r.LabelOpen, r.TopN, func(c stats.LabelOpenCount) float64 {
		return float64(c.OpenIssues)
	}) {
		p.row(open.Label, open.OpenIssues, open.OpenBugIssues, formatRatio(open.BugRatio), open.OpenPRs)
	}

	p.section(fmt.Sprintf("Top %d labels by %s ratio", topBugRatioLabels, strings.ToLower(r.BugLabel)))
	p.row("LABEL", "BUG RATIO", "OPEN ISSUES")
	for _, open := range stats.TopLabelsBy(r.LabelOpen, topBugRatioLabels, func(c stats.LabelOpenCount) float64 {
		return c.BugRatio
	}) {
		p.row(open.Label, formatRatio(open.BugRatio), open.OpenIssues)
	}

	p.section(fmt.Sprintf("Top %d labels by open PRs", topOpenPRLabels))
	p.row("LABEL", "OPEN PRS")
	for _, open := range stats.TopLabelsBy(r.LabelOpen, topOpenPRLabels, func(c stats.LabelOpenCount) float64 {
		return float64(c.OpenPRs)
	}) {
		p.row(open.Label, open.OpenPRs)
	}

	p.section("Lifetimes")
	p.row("SET", "ITEMS", "MEDIAN BIN (DAYS)")
	lifetimeRows := []struct {
		name string
		hist stats.Histogram
	}{
		{name: "closed issues", hist: r.Lifetimes.ClosedIssuesDays},
		{name: "closed prs", hist: r.Lifetimes.ClosedPRsDays},
		{name: "open issues", hist: r.Lifetimes.OpenIssuesDays},
		{name: "open prs", hist: r.Lifetimes.OpenPRsDays},
	}
	for _, lifetime := range lifetimeRows {
		p.row(lifetime.name, lifetime.hist.Total(), medianBin(lifetime.hist))
	}
	p.row("items open under 48h", r.Lifetimes.AllHours.Total(), "")

	p.section("Open items over time")
	p.row("open now", r.Timeline.CurrentOpen)
	p.row("peak open", r.Timeline.PeakOpen, "at", formatDate(r.Timeline.PeakAt))
	p.row("open at cutoff", r.Timeline.OpenAtCutoff, "on", formatDate(r.Cutoff))
	p.row("lowest since cutoff", r.Timeline.LowestSinceCutoff)
	p.row("created", len(r.Timeline.Created))
	p.row("closed", len(r.Timeline.Closed))

	if p.err != nil {
		return fmt.Errorf("write report: %w", p.err)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

type printer struct {
	w       io.Writer
	err     error
	started bool
}

func (p *printer) section(title string) {
	if p.started {
		p.printf("\n")
	}
	p.started = true
	p.printf("== %s ==\n", title)
}

func (p *printer) row(cells ...any) {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		parts[i] = fmt.Sprint(cell)
	}
	p.printf("%s\n", strings.Join(parts, "\t"))
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func writeAuthorCounts(p *printer, counts []stats.AuthorCount) {
	p.row("AUTHOR", "COUNT")
	for _, count := range counts {
		p.row(count.Author, count.Count)
	}
}

func binLabel(h stats.Histogram, i int) string {
	closer := ")"
	if i == len(h.Counts)-1 {
		closer = "]"
	}
	return "[" + formatFloat(h.Edges[i]) + ", " + formatFloat(h.Edges[i+1]) + closer
}

// medianBin returns the bin holding the middle value, as "lo-hi".
func medianBin(h stats.Histogram) string {
	total := h.Total()
	if total == 0 {
		return "-"
	}
	seen := 0
	for i, count := range h.Counts {
		seen += count
		if seen*2 >= total {
			return strconv.FormatFloat(h.Edges[i], 'g', 3, 64) + "-" + strconv.FormatFloat(h.Edges[i+1], 'g', 3, 64)
		}
	}
	return "-"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatRatio(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
