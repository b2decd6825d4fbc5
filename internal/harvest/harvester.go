// Package harvest pages through a repository's issues and pull requests and
// collects them into a dataset.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cam3ron2/issue-stats/internal/dataset"
	"github.com/cam3ron2/issue-stats/internal/githubapi"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	// DefaultThrottle is the pause after every non-empty page.
	DefaultThrottle = time.Second
	// DefaultRetryDelay is the pause after a rate-limited response.
	DefaultRetryDelay = time.Second
	// DefaultMaxAttempts bounds consecutive rate-limited retries of one page.
	DefaultMaxAttempts = 3600
)

// IssueSource returns one page of tracker items.
type IssueSource interface {
	ListIssues(ctx context.Context, req githubapi.IssuePageRequest) ([]githubapi.Issue, error)
}

// Config controls one harvest run.
type Config struct {
	States          []string
	PerPage         int
	Throttle        time.Duration
	Retry           RetryPolicy
	DuplicatePolicy dataset.DuplicatePolicy
}

// Harvester collects every item of a repository into a dataset.
type Harvester struct {
	source  IssueSource
	cfg     Config
	logger  *zap.Logger
	metrics *RunMetrics
	tracer  trace.Tracer

	// Sleep, Now and NewRunID are injected for testability.
	Sleep    func(ctx context.Context, d time.Duration) error
	Now      func() time.Time
	NewRunID func() string
}

// New creates a harvester. A nil logger or metrics disables them.
func New(source IssueSource, cfg Config, logger *zap.Logger, metrics *RunMetrics) (*Harvester, error) {
	if source == nil {
		return nil, fmt.Errorf("issue source is required")
	}
	if cfg.Throttle < 0 {
		return nil, fmt.Errorf("throttle must be >= 0")
	}
	states := make([]string, 0, len(cfg.States))
	for _, state := range cfg.States {
		normalized := strings.ToLower(strings.TrimSpace(state))
		switch normalized {
		case "all", "open", "closed":
			states = append(states, normalized)
		default:
			return nil, fmt.Errorf("unsupported issue state %q", state)
		}
	}
	if len(states) == 0 {
		states = []string{"all"}
	}
	cfg.States = states
	if cfg.PerPage <= 0 {
		cfg.PerPage = githubapi.DefaultPerPage
	}
	if cfg.Retry == nil {
		cfg.Retry = FixedDelay{Delay: DefaultRetryDelay, MaxAttempts: DefaultMaxAttempts}
	}
	if cfg.DuplicatePolicy == "" {
		cfg.DuplicatePolicy = dataset.LastWriteWins
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewRunMetrics()
	}

	return &Harvester{
		source:   source,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		tracer:   otel.Tracer("issue-stats/internal/harvest"),
		Sleep:    sleepContext,
		Now:      time.Now,
		NewRunID: uuid.NewString,
	}, nil
}

// Run fetches every page for every configured state until an empty page is
// returned. Rate-limited pages are retried per the retry policy; any other
// failure aborts the run and no dataset is returned.
func (h *Harvester) Run(ctx context.Context) (*dataset.Dataset, error) {
	runID := h.NewRunID()
	logger := h.logger.With(zap.String("run_id", runID))
	started := h.Now()
	now := started.UTC()

	ctx, span := h.tracer.Start(ctx, "harvest.run", trace.WithAttributes(
		attribute.String("harvest.run_id", runID),
		attribute.StringSlice("harvest.states", h.cfg.States),
	))
	defer span.End()

	logger.Info("harvest started", zap.Strings("states", h.cfg.States), zap.Int("per_page", h.cfg.PerPage))

	ds := dataset.New(h.cfg.DuplicatePolicy)
	for _, state := range h.cfg.States {
		for page := 1; ; page++ {
			issues, err := h.fetchPage(ctx, logger, state, page)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				logger.Error("harvest aborted", zap.String("state", state), zap.Int("page", page), zap.Error(err))
				return nil, err
			}
			if len(issues) == 0 {
				logger.Debug("empty page ends pagination", zap.String("state", state), zap.Int("page", page))
				break
			}

			duplicates := 0
			for _, issue := range issues {
				if ds.Add(toRecord(issue, now)) {
					duplicates++
				}
			}
			h.metrics.pages.WithLabelValues(state).Inc()
			h.metrics.records.Add(float64(len(issues)))
			h.metrics.duplicates.Add(float64(duplicates))
			if duplicates > 0 {
				logger.Warn("duplicate issue numbers", zap.Int("page", page), zap.Int("duplicates", duplicates))
			}
			logger.Debug("page fetched",
				zap.String("state", state),
				zap.Int("page", page),
				zap.Int("items", len(issues)),
				zap.Int("total", ds.Len()),
			)

			if err := h.Sleep(ctx, h.cfg.Throttle); err != nil {
				return nil, fmt.Errorf("throttle after page %d: %w", page, err)
			}
		}
	}

	finished := h.Now()
	h.metrics.lastSuccess.Set(float64(finished.Unix()))
	h.metrics.duration.Set(finished.Sub(started).Seconds())
	span.SetAttributes(attribute.Int("harvest.records", ds.Len()))
	logger.Info("harvest finished", zap.Int("records", ds.Len()), zap.Duration("elapsed", finished.Sub(started)))
	return ds, nil
}

func (h *Harvester) fetchPage(ctx context.Context, logger *zap.Logger, state string, page int) ([]githubapi.Issue, error) {
	ctx, span := h.tracer.Start(ctx, "harvest.page", trace.WithAttributes(
		attribute.String("issues.state", state),
		attribute.Int("issues.page", page),
	))
	defer span.End()

	req := githubapi.IssuePageRequest{State: state, Page: page, PerPage: h.cfg.PerPage}
	for attempt := 1; ; attempt++ {
		issues, err := h.source.ListIssues(ctx, req)
		if err == nil {
			span.SetAttributes(attribute.Int("issues.count", len(issues)))
			return issues, nil
		}
		if !githubapi.IsRateLimited(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("fetch %s issues page %d: %w", state, page, err)
		}

		h.metrics.rateLimited.Inc()
		delay, ok := h.cfg.Retry.NextDelay(attempt)
		if !ok {
			span.SetStatus(codes.Error, ErrRetriesExhausted.Error())
			return nil, fmt.Errorf("fetch %s issues page %d after %d rate-limited attempts: %w", state, page, attempt, ErrRetriesExhausted)
		}
		span.AddEvent("rate_limited", trace.WithAttributes(attribute.Int("harvest.attempt", attempt)))
		logger.Warn("rate limited, retrying",
			zap.String("state", state),
			zap.Int("page", page),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
		)
		if limit, ok := reportedRateLimit(err); ok {
			logger.Debug("rate limit reported",
				zap.String("kind", string(limit.Kind())),
				zap.Int("remaining", limit.Remaining),
				zap.Duration("server_wait", limit.Wait(h.Now())),
			)
		}
		if err := h.Sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("wait for rate limit on page %d: %w", page, err)
		}
	}
}

func reportedRateLimit(err error) (githubapi.RateLimit, bool) {
	var statusErr *githubapi.StatusError
	if !errors.As(err, &statusErr) {
		return githubapi.RateLimit{}, false
	}
	return statusErr.RateLimit, true
}

func toRecord(issue githubapi.Issue, now time.Time) dataset.IssueRecord {
	state := dataset.StateOpen
	if issue.State == string(dataset.StateClosed) {
		state = dataset.StateClosed
	}
	return dataset.IssueRecord{
		Number:        issue.Number,
		State:         state,
		CreatedAt:     issue.CreatedAt,
		ClosedAt:      issue.ClosedAt,
		Labels:        issue.Labels,
		IsPullRequest: issue.IsPullRequest,
		Creator:       issue.User,
		Assignees:     issue.Assignees,
		Lifetime:      dataset.Lifetime(issue.CreatedAt, issue.ClosedAt, now),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
