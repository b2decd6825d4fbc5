package dataset

import (
	"testing"
	"time"
)

func TestLifetime(t *testing.T) {
	t.Parallel()

	created := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

	testCases := []struct {
		name   string
		closed time.Time
		now    time.Time
		want   time.Duration
	}{
		{
			name:   "closed_uses_close_time",
			closed: created.Add(90 * time.Minute),
			now:    now,
			want:   90 * time.Minute,
		},
		{
			name: "open_uses_now",
			now:  now,
			want: now.Sub(created),
		},
		{
			name: "clock_before_creation_clamps_to_zero",
			now:  created.Add(-time.Hour),
			want: 0,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := Lifetime(created, tc.closed, tc.now); got != tc.want {
				t.Fatalf("Lifetime() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDatasetDuplicatePolicy(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		policy      DuplicatePolicy
		wantCreator string
	}{
		{name: "last_write_wins_replaces_in_place", policy: LastWriteWins, wantCreator: "bob"},
		{name: "first_write_wins_keeps_first", policy: FirstWriteWins, wantCreator: "alice"},
		{name: "empty_policy_defaults_to_last", policy: "", wantCreator: "bob"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ds := New(tc.policy)
			if dup := ds.Add(IssueRecord{Number: 7, Creator: "alice"}); dup {
				t.Fatalf("Add() first insert reported duplicate")
			}
			ds.Add(IssueRecord{Number: 8, Creator: "carol"})
			if dup := ds.Add(IssueRecord{Number: 7, Creator: "bob"}); !dup {
				t.Fatalf("Add() second insert did not report duplicate")
			}

			if ds.Len() != 2 {
				t.Fatalf("Len() = %d, want 2", ds.Len())
			}
			records := ds.Records()
			if records[0].Number != 7 || records[1].Number != 8 {
				t.Fatalf("order = [%d %d], want [7 8]", records[0].Number, records[1].Number)
			}
			got, ok := ds.Get(7)
			if !ok {
				t.Fatalf("Get(7) missing")
			}
			if got.Creator != tc.wantCreator {
				t.Fatalf("Get(7).Creator = %q, want %q", got.Creator, tc.wantCreator)
			}
		})
	}
}

func TestParseDuplicatePolicy(t *testing.T) {
	t.Parallel()

	if got, err := ParseDuplicatePolicy(" First_Write_Wins "); err != nil || got != FirstWriteWins {
		t.Fatalf("ParseDuplicatePolicy() = %q, %v", got, err)
	}
	if got, err := ParseDuplicatePolicy(""); err != nil || got != LastWriteWins {
		t.Fatalf("ParseDuplicatePolicy(\"\") = %q, %v", got, err)
	}
	if _, err := ParseDuplicatePolicy("newest"); err == nil {
		t.Fatalf("ParseDuplicatePolicy(newest) expected error")
	}
}

func TestRecordsReturnsCopy(t *testing.T) {
	t.Parallel()

	ds := New(LastWriteWins)
	ds.Add(IssueRecord{Number: 1, Creator: "alice"})
	records := ds.Records()
	records[0].Creator = "mallory"

	got, _ := ds.Get(1)
	if got.Creator != "alice" {
		t.Fatalf("dataset mutated through Records(): %q", got.Creator)
	}
}
