package dataset

import (
	"slices"
	"time"
)

// State is the tracker state of an issue or pull request.
type State string

const (
	// StateOpen marks an item that has not been closed.
	StateOpen State = "open"
	// StateClosed marks a closed (or merged) item.
	StateClosed State = "closed"
)

// IssueRecord is one tracker item, either an issue or a pull request.
type IssueRecord struct {
	Number        int
	State         State
	CreatedAt     time.Time
	ClosedAt      time.Time
	Labels        []string
	IsPullRequest bool
	Creator       string
	Assignees     []string
	Lifetime      time.Duration
}

// IsClosed reports whether the record has a close timestamp.
func (r IssueRecord) IsClosed() bool {
	return !r.ClosedAt.IsZero()
}

// HasLabel reports whether the record carries the label exactly.
func (r IssueRecord) HasLabel(label string) bool {
	return slices.Contains(r.Labels, label)
}

// Lifetime returns the time an item has been (or was) open.
// A zero closedAt means the item is still open and now stands in for the close time.
// The result is never negative.
func Lifetime(createdAt, closedAt, now time.Time) time.Duration {
	end := closedAt
	if end.IsZero() {
		end = now
	}
	lifetime := end.Sub(createdAt)
	if lifetime < 0 {
		return 0
	}
	return lifetime
}
