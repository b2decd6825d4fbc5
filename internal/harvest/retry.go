package harvest

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrRetriesExhausted is returned when a page keeps being rate limited past the retry budget.
var ErrRetriesExhausted = errors.New("rate-limit retries exhausted")

// RetryPolicy decides how long to wait before re-requesting a rate-limited page.
// attempt starts at 1 for the first rate-limited response of a page.
type RetryPolicy interface {
	NextDelay(attempt int) (time.Duration, bool)
}

// FixedDelay waits the same delay after every rate-limited response.
// MaxAttempts <= 0 retries forever.
type FixedDelay struct {
	Delay       time.Duration
	MaxAttempts int
}

// NextDelay implements RetryPolicy.
func (p FixedDelay) NextDelay(attempt int) (time.Duration, bool) {
	if p.MaxAttempts > 0 && attempt > p.MaxAttempts {
		return 0, false
	}
	return p.Delay, true
}

// DefaultMaxBackoff caps ExponentialBackoff when Max is not set.
const DefaultMaxBackoff = 5 * time.Minute

// ExponentialBackoff doubles the delay per attempt up to Max. Max <= 0 caps at
// DefaultMaxBackoff, or at Initial when Initial is larger.
// MaxAttempts <= 0 retries forever.
type ExponentialBackoff struct {
	Initial     time.Duration
	Max         time.Duration
	MaxAttempts int
}

// NextDelay implements RetryPolicy.
func (p ExponentialBackoff) NextDelay(attempt int) (time.Duration, bool) {
	if p.MaxAttempts > 0 && attempt > p.MaxAttempts {
		return 0, false
	}
	limit := p.Max
	if limit <= 0 {
		limit = max(DefaultMaxBackoff, p.Initial)
	}
	backoff := p.Initial
	for i := 1; i < attempt && backoff < limit; i++ {
		if backoff > math.MaxInt64/2 {
			return limit, true
		}
		backoff *= 2
	}
	return min(backoff, limit), true
}

// RetryConfig is the serializable form of a RetryPolicy.
type RetryConfig struct {
	Strategy    string
	Delay       time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

const (
	StrategyFixed       = "fixed"
	StrategyExponential = "exponential"
)

// NewRetryPolicy builds the policy named by cfg.Strategy.
func NewRetryPolicy(cfg RetryConfig) (RetryPolicy, error) {
	if cfg.Delay < 0 {
		return nil, fmt.Errorf("retry delay must be >= 0")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Strategy)) {
	case StrategyFixed, "":
		return FixedDelay{Delay: cfg.Delay, MaxAttempts: cfg.MaxAttempts}, nil
	case StrategyExponential:
		if cfg.MaxDelay > 0 && cfg.MaxDelay < cfg.Delay {
			return nil, fmt.Errorf("retry max delay must be >= delay")
		}
		return ExponentialBackoff{Initial: cfg.Delay, Max: cfg.MaxDelay, MaxAttempts: cfg.MaxAttempts}, nil
	default:
		return nil, fmt.Errorf("unknown retry strategy %q", cfg.Strategy)
	}
}
