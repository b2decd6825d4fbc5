package dataset

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func sampleDataset() *Dataset {
	ds := New(LastWriteWins)
	ds.Add(IssueRecord{
		Number:        12,
		State:         StateClosed,
		CreatedAt:     time.Date(2019, 3, 1, 10, 0, 0, 0, time.UTC),
		ClosedAt:      time.Date(2019, 3, 2, 10, 0, 0, 0, time.UTC),
		Labels:        []string{"units", "Bug"},
		IsPullRequest: false,
		Creator:       "alice",
		Assignees:     []string{"bob", "carol"},
		Lifetime:      24 * time.Hour,
	})
	ds.Add(IssueRecord{
		Number:        13,
		State:         StateOpen,
		CreatedAt:     time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC),
		IsPullRequest: true,
		Creator:       "dave",
		Lifetime:      1500 * time.Millisecond,
	})
	return ds
}

func TestWriteQuotesMultiValueFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := Write(&buf, sampleDataset()); err != nil {
		t.Fatalf("Write() unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("line count = %d, want 3:\n%s", len(lines), buf.String())
	}
	wantHeader := "Issue Number,State,Creation Date,Close Date,Labels,Is_PR,Creator,Asignees,Lifetime"
	if lines[0] != wantHeader {
		t.Fatalf("header = %q, want %q", lines[0], wantHeader)
	}
	wantFirst := `12,closed,2019-03-01T10:00:00Z,2019-03-02T10:00:00Z,"units,Bug",False,alice,"bob,carol",86400`
	if lines[1] != wantFirst {
		t.Fatalf("row 1 = %q, want %q", lines[1], wantFirst)
	}
	wantSecond := `13,open,2020-05-01T00:00:00Z,,,True,dave,,1.5`
	if lines[2] != wantSecond {
		t.Fatalf("row 2 = %q, want %q", lines[2], wantSecond)
	}
}

func TestReadRestoresRecords(t *testing.T) {
	t.Parallel()

	want := sampleDataset()
	var buf bytes.Buffer
	if err := Write(&buf, want); err != nil {
		t.Fatalf("Write() unexpected error: %v", err)
	}

	got, err := Read(&buf, LastWriteWins)
	if err != nil {
		t.Fatalf("Read() unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got.Records(), want.Records()) {
		t.Fatalf("Read() records = %#v, want %#v", got.Records(), want.Records())
	}
}

func TestReadAcceptsLegacyValues(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		"Asignees,Issue Number,State,Creation Date,Close Date,Labels,Is_PR,Creator,Lifetime",
		`,1,open,2020-01-01T00:00:00Z,None,"io.fits, Bug, io.fits",false,erin,10.0`,
		`x,2,open,2020-01-01T00:00:00Z,--,,TRUE,frank,20`,
	}, "\n")

	ds, err := Read(strings.NewReader(input), LastWriteWins)
	if err != nil {
		t.Fatalf("Read() unexpected error: %v", err)
	}
	first, _ := ds.Get(1)
	if first.IsClosed() {
		t.Fatalf("record 1 should be open, ClosedAt = %v", first.ClosedAt)
	}
	if !reflect.DeepEqual(first.Labels, []string{"io.fits", "Bug"}) {
		t.Fatalf("labels = %#v", first.Labels)
	}
	if first.Lifetime != 10*time.Second {
		t.Fatalf("lifetime = %v, want 10s", first.Lifetime)
	}
	second, _ := ds.Get(2)
	if !second.IsPullRequest || !reflect.DeepEqual(second.Assignees, []string{"x"}) {
		t.Fatalf("record 2 = %#v", second)
	}
}

func TestReadErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		input       string
		errContains string
	}{
		{
			name:        "empty_input",
			input:       "",
			errContains: "missing header",
		},
		{
			name:        "missing_column",
			input:       "Issue Number,State\n1,open\n",
			errContains: `missing column "Creation Date"`,
		},
		{
			name: "bad_number",
			input: "Issue Number,State,Creation Date,Close Date,Labels,Is_PR,Creator,Asignees,Lifetime\n" +
				"abc,open,2020-01-01T00:00:00Z,,,False,a,,0\n",
			errContains: "row 2: parse Issue Number",
		},
		{
			name: "bad_timestamp",
			input: "Issue Number,State,Creation Date,Close Date,Labels,Is_PR,Creator,Asignees,Lifetime\n" +
				"1,open,yesterday,,,False,a,,0\n",
			errContains: "parse Creation Date",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := Read(strings.NewReader(tc.input), LastWriteWins)
			if err == nil {
				t.Fatalf("Read() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.errContains) {
				t.Fatalf("error = %q, missing %q", err.Error(), tc.errContains)
			}
		})
	}
}

func TestWriteFileLeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "issues.csv")
	if err := WriteFile(path, sampleDataset()); err != nil {
		t.Fatalf("WriteFile() unexpected error: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "issues.csv" {
		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			names = append(names, entry.Name())
		}
		t.Fatalf("directory entries = %v, want [issues.csv]", names)
	}

	ds, err := ReadFile(path, LastWriteWins)
	if err != nil {
		t.Fatalf("ReadFile() unexpected error: %v", err)
	}
	if ds.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", ds.Len())
	}
}

func TestWriteFileMissingDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "missing", "issues.csv")
	if err := WriteFile(path, sampleDataset()); err == nil {
		t.Fatalf("WriteFile() expected error for missing directory")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("dataset file should not exist, stat err = %v", err)
	}
}
