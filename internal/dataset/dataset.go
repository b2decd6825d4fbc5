package dataset

import (
	"fmt"
	"strings"
)

// DuplicatePolicy decides which record survives when a number is seen twice.
type DuplicatePolicy string

const (
	// LastWriteWins replaces the earlier record in place.
	LastWriteWins DuplicatePolicy = "last_write_wins"
	// FirstWriteWins keeps the earlier record and drops the later one.
	FirstWriteWins DuplicatePolicy = "first_write_wins"
)

// ParseDuplicatePolicy parses a policy name; empty selects LastWriteWins.
func ParseDuplicatePolicy(raw string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", LastWriteWins:
		return LastWriteWins, nil
	case FirstWriteWins:
		return FirstWriteWins, nil
	default:
		return "", fmt.Errorf("unknown duplicate policy %q", raw)
	}
}

// Dataset is an ordered set of records with unique issue numbers.
type Dataset struct {
	policy  DuplicatePolicy
	records []IssueRecord
	index   map[int]int
}

// New creates an empty dataset.
func New(policy DuplicatePolicy) *Dataset {
	if policy == "" {
		policy = LastWriteWins
	}
	return &Dataset{
		policy: policy,
		index:  make(map[int]int),
	}
}

// Add appends a record, or resolves a duplicate number according to the policy.
// It reports whether the number was already present.
func (d *Dataset) Add(record IssueRecord) bool {
	if pos, ok := d.index[record.Number]; ok {
		if d.policy == LastWriteWins {
			d.records[pos] = record
		}
		return true
	}
	d.index[record.Number] = len(d.records)
	d.records = append(d.records, record)
	return false
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.records)
}

// Records returns a copy of the records in insertion order.
func (d *Dataset) Records() []IssueRecord {
	if d == nil {
		return nil
	}
	out := make([]IssueRecord, len(d.records))
	copy(out, d.records)
	return out
}

// Get looks up a record by issue number.
func (d *Dataset) Get(number int) (IssueRecord, bool) {
	if d == nil {
		return IssueRecord{}, false
	}
	pos, ok := d.index[number]
	if !ok {
		return IssueRecord{}, false
	}
	return d.records[pos], true
}
