package githubapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/go-github/v75/github"
)

// DefaultPerPage is the page size requested from the issues endpoint.
const DefaultPerPage = 100

// Issue is one item returned by the repository issues endpoint. Pull requests
// are returned by the same endpoint and flagged with IsPullRequest.
type Issue struct {
	Number        int
	State         string
	CreatedAt     time.Time
	ClosedAt      time.Time
	Labels        []string
	IsPullRequest bool
	User          string
	Assignees     []string
}

// IssuePageRequest selects one page of the issues endpoint.
type IssuePageRequest struct {
	State   string
	Page    int
	PerPage int
}

// StatusError reports a non-success HTTP status from the tracker.
type StatusError struct {
	StatusCode int
	RateLimit  RateLimit
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("github responded %d %s: %v", e.StatusCode, http.StatusText(e.StatusCode), e.Err)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// IsRateLimited reports whether err is a 403 response, which the tracker uses
// to signal rate limiting.
func IsRateLimited(err error) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return statusErr.StatusCode == http.StatusForbidden
}

// IssueClient lists issues for one repository.
type IssueClient struct {
	client *github.Client
	owner  string
	repo   string
}

// NewIssueClient creates an issue client for owner/repo.
func NewIssueClient(client *github.Client, owner, repo string) (*IssueClient, error) {
	if client == nil {
		return nil, fmt.Errorf("github client is required")
	}
	trimmedOwner := strings.TrimSpace(owner)
	trimmedRepo := strings.TrimSpace(repo)
	if trimmedOwner == "" {
		return nil, fmt.Errorf("owner is required")
	}
	if trimmedRepo == "" {
		return nil, fmt.Errorf("repo is required")
	}
	return &IssueClient{
		client: client,
		owner:  trimmedOwner,
		repo:   trimmedRepo,
	}, nil
}

// Repository returns the owner/repo slug the client reads from.
func (c *IssueClient) Repository() string {
	return c.owner + "/" + c.repo
}

// ListIssues fetches one page of issues and pull requests. An empty result
// marks the end of pagination. Non-2xx responses are returned as *StatusError.
func (c *IssueClient) ListIssues(ctx context.Context, req IssuePageRequest) ([]Issue, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PerPage <= 0 {
		req.PerPage = DefaultPerPage
	}
	state := strings.TrimSpace(req.State)
	if state == "" {
		state = "all"
	}

	opts := &github.IssueListByRepoOptions{
		State: state,
		ListOptions: github.ListOptions{
			Page:    req.Page,
			PerPage: req.PerPage,
		},
	}
	payload, resp, err := c.client.Issues.ListByRepo(ctx, c.owner, c.repo, opts)
	if err != nil {
		return nil, classifyError(resp, err, fmt.Sprintf("list %s issues page %d", state, req.Page))
	}

	issues := make([]Issue, 0, len(payload))
	for _, item := range payload {
		if item == nil {
			continue
		}
		issues = append(issues, convertIssue(item))
	}
	return issues, nil
}

// CheckAuth performs one authenticated request and returns the core quota.
func (c *IssueClient) CheckAuth(ctx context.Context) (RateLimit, error) {
	limits, resp, err := c.client.RateLimit.Get(ctx)
	if err != nil {
		return RateLimit{}, classifyError(resp, err, "check credential")
	}
	core := limits.GetCore()
	if core == nil {
		return RateLimit{}, nil
	}
	return RateLimit{
		Limit:     core.Limit,
		Remaining: core.Remaining,
		Reset:     core.Reset.Time,
	}, nil
}

func classifyError(resp *github.Response, err error, operation string) error {
	if resp == nil || resp.Response == nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return fmt.Errorf("%s: decode response: %w", operation, err)
	}
	return fmt.Errorf("%s: %w", operation, &StatusError{
		StatusCode: resp.StatusCode,
		RateLimit:  rateLimitFromHeader(resp.Header, resp.StatusCode),
		Err:        err,
	})
}

func convertIssue(item *github.Issue) Issue {
	issue := Issue{
		Number:        item.GetNumber(),
		State:         item.GetState(),
		CreatedAt:     item.GetCreatedAt().Time.UTC(),
		IsPullRequest: item.IsPullRequest(),
		User:          item.GetUser().GetLogin(),
	}
	if closedAt := item.GetClosedAt(); !closedAt.Time.IsZero() {
		issue.ClosedAt = closedAt.Time.UTC()
	}
	for _, label := range item.Labels {
		if name := label.GetName(); name != "" && !slices.Contains(issue.Labels, name) {
			issue.Labels = append(issue.Labels, name)
		}
	}
	for _, assignee := range item.Assignees {
		if login := assignee.GetLogin(); login != "" {
			issue.Assignees = append(issue.Assignees, login)
		}
	}
	return issue
}
