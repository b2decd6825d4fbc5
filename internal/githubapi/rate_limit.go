package githubapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// LimitKind names the limit a rejected request most likely ran into.
type LimitKind string

const (
	LimitSecondary LimitKind = "secondary_limit"
	LimitPrimary   LimitKind = "primary_limit"
	LimitForbidden LimitKind = "forbidden"
)

// RateLimit is the quota state the tracker reported alongside a response.
type RateLimit struct {
	Limit      int
	Remaining  int
	Used       int
	Reset      time.Time
	RetryAfter time.Duration

	status int
}

// rateLimitFromHeader reads the X-RateLimit-* and Retry-After headers.
// Missing or malformed values stay zero.
func rateLimitFromHeader(header http.Header, status int) RateLimit {
	rl := RateLimit{
		Limit:     headerInt(header, "X-RateLimit-Limit"),
		Remaining: headerInt(header, "X-RateLimit-Remaining"),
		Used:      headerInt(header, "X-RateLimit-Used"),
		status:    status,
	}
	if reset := headerInt(header, "X-RateLimit-Reset"); reset > 0 {
		rl.Reset = time.Unix(int64(reset), 0)
	}
	if seconds := headerInt(header, "Retry-After"); seconds > 0 {
		rl.RetryAfter = time.Duration(seconds) * time.Second
	}
	return rl
}

// Kind classifies a rejected response. A 429 or a Retry-After header marks the
// secondary limit; an exhausted quota with a reset time marks the primary one.
func (r RateLimit) Kind() LimitKind {
	switch {
	case r.status == http.StatusTooManyRequests || r.RetryAfter > 0:
		return LimitSecondary
	case r.Remaining == 0 && !r.Reset.IsZero():
		return LimitPrimary
	default:
		return LimitForbidden
	}
}

// Wait is how long the tracker asked callers to hold off: Retry-After when
// present, otherwise the time left until Reset. Zero when unknown or elapsed.
func (r RateLimit) Wait(now time.Time) time.Duration {
	if r.RetryAfter > 0 {
		return r.RetryAfter
	}
	if r.Reset.IsZero() {
		return 0
	}
	if wait := r.Reset.Sub(now); wait > 0 {
		return wait
	}
	return 0
}

func headerInt(header http.Header, key string) int {
	value, err := strconv.Atoi(strings.TrimSpace(header.Get(key)))
	if err != nil {
		return 0
	}
	return value
}
