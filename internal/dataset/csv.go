package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Column names of the persisted dataset, in file order.
const (
	ColumnNumber    = "Issue Number"
	ColumnState     = "State"
	ColumnCreated   = "Creation Date"
	ColumnClosed    = "Close Date"
	ColumnLabels    = "Labels"
	ColumnIsPR      = "Is_PR"
	ColumnCreator   = "Creator"
	ColumnAssignees = "Asignees"
	ColumnLifetime  = "Lifetime"
)

// Header is the header row written to every dataset file.
var Header = []string{
	ColumnNumber,
	ColumnState,
	ColumnCreated,
	ColumnClosed,
	ColumnLabels,
	ColumnIsPR,
	ColumnCreator,
	ColumnAssignees,
	ColumnLifetime,
}

const timestampLayout = "2006-01-02T15:04:05Z"

var absentCloseDates = map[string]struct{}{
	"":     {},
	"none": {},
	"open": {},
	"--":   {},
}

// Write encodes the dataset as comma-separated text with a header row.
// Multi-value fields are comma-joined and rely on CSV quoting.
func Write(w io.Writer, ds *Dataset) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, record := range ds.Records() {
		if err := writer.Write(encodeRecord(record)); err != nil {
			return fmt.Errorf("write issue %d: %w", record.Number, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush dataset: %w", err)
	}
	return nil
}

// WriteFile writes the dataset to path through a temporary file, so a failed
// write never leaves a truncated dataset behind.
func WriteFile(path string, ds *Dataset) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp dataset file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = Write(tmp, ds); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp dataset file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename dataset file: %w", err)
	}
	return nil
}

// Read decodes a dataset written by Write. Columns are matched by header name.
// Rows are assumed well-formed; the first malformed field aborts the read.
func Read(r io.Reader, policy DuplicatePolicy) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("dataset is empty: missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	for _, name := range Header {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("dataset header missing column %q", name)
		}
	}

	ds := New(policy)
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		if len(row) < len(header) {
			return nil, fmt.Errorf("row %d: got %d fields, want %d", line, len(row), len(header))
		}

		record, err := decodeRecord(row, columns)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		ds.Add(record)
	}
	return ds, nil
}

// ReadFile opens and decodes a dataset file.
func ReadFile(path string, policy DuplicatePolicy) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()
	return Read(file, policy)
}

func encodeRecord(record IssueRecord) []string {
	closed := ""
	if record.IsClosed() {
		closed = formatTimestamp(record.ClosedAt)
	}
	isPR := "False"
	if record.IsPullRequest {
		isPR = "True"
	}
	return []string{
		strconv.Itoa(record.Number),
		string(record.State),
		formatTimestamp(record.CreatedAt),
		closed,
		strings.Join(record.Labels, ","),
		isPR,
		record.Creator,
		strings.Join(record.Assignees, ","),
		strconv.FormatFloat(record.Lifetime.Seconds(), 'f', -1, 64),
	}
}

func decodeRecord(row []string, columns map[string]int) (IssueRecord, error) {
	field := func(name string) string {
		return strings.TrimSpace(row[columns[name]])
	}

	number, err := strconv.Atoi(field(ColumnNumber))
	if err != nil {
		return IssueRecord{}, fmt.Errorf("parse %s: %w", ColumnNumber, err)
	}
	createdAt, err := parseTimestamp(field(ColumnCreated))
	if err != nil {
		return IssueRecord{}, fmt.Errorf("parse %s: %w", ColumnCreated, err)
	}

	var closedAt time.Time
	rawClosed := field(ColumnClosed)
	if _, absent := absentCloseDates[strings.ToLower(rawClosed)]; !absent {
		closedAt, err = parseTimestamp(rawClosed)
		if err != nil {
			return IssueRecord{}, fmt.Errorf("parse %s: %w", ColumnClosed, err)
		}
	}

	isPR, err := strconv.ParseBool(field(ColumnIsPR))
	if err != nil {
		return IssueRecord{}, fmt.Errorf("parse %s: %w", ColumnIsPR, err)
	}

	seconds, err := strconv.ParseFloat(field(ColumnLifetime), 64)
	if err != nil {
		return IssueRecord{}, fmt.Errorf("parse %s: %w", ColumnLifetime, err)
	}

	return IssueRecord{
		Number:        number,
		State:         State(strings.ToLower(field(ColumnState))),
		CreatedAt:     createdAt,
		ClosedAt:      closedAt,
		Labels:        splitList(field(ColumnLabels)),
		IsPullRequest: isPR,
		Creator:       field(ColumnCreator),
		Assignees:     splitList(field(ColumnAssignees)),
		Lifetime:      time.Duration(math.Round(seconds * float64(time.Second))),
	}, nil
}

func formatTimestamp(ts time.Time) string {
	return ts.UTC().Format(timestampLayout)
}

func parseTimestamp(raw string) (time.Time, error) {
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed.UTC(), nil
	}
	parsed, err := time.Parse("2006-01-02T15:04:05", raw)
	if err != nil {
		return time.Time{}, err
	}
	return parsed.UTC(), nil
}

// splitList parses a comma-joined multi-value field. Repeated names are kept once.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" || slices.Contains(out, trimmed) {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
