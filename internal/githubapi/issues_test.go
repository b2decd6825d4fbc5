package githubapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/go-github/v75/github"
)

func newTestIssueClient(t *testing.T, handler http.HandlerFunc) *IssueClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	gh, err := NewClient(Credentials{Token: "test-token"}, ClientOptions{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient() unexpected error: %v", err)
	}
	client, err := NewIssueClient(gh, "astropy", "astropy")
	if err != nil {
		t.Fatalf("NewIssueClient() unexpected error: %v", err)
	}
	return client
}

const issuePageJSON = `[
  {
    "number": 12,
    "state": "closed",
    "created_at": "2019-03-01T10:00:00Z",
    "closed_at": "2019-03-02T10:00:00Z",
    "labels": [{"name": "units"}, {"name": "Bug"}, {"name": "units"}],
    "user": {"login": "alice"},
    "assignees": [{"login": "bob"}, {"login": "carol"}]
  },
  {
    "number": 13,
    "state": "open",
    "created_at": "2020-05-01T00:00:00Z",
    "closed_at": null,
    "labels": [],
    "user": {"login": "dave"},
    "assignees": [],
    "pull_request": {"url": "https://api.github.com/repos/astropy/astropy/pulls/13"}
  }
]`

func TestIssueClientListIssues(t *testing.T) {
	t.Parallel()

	type request struct {
		path  string
		query map[string]string
	}
	requests := make(chan request, 1)
	client := newTestIssueClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests <- request{
			path: r.URL.Path,
			query: map[string]string{
				"state":    r.URL.Query().Get("state"),
				"page":     r.URL.Query().Get("page"),
				"per_page": r.URL.Query().Get("per_page"),
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(issuePageJSON))
	})

	got, err := client.ListIssues(context.Background(), IssuePageRequest{Page: 3})
	if err != nil {
		t.Fatalf("ListIssues() unexpected error: %v", err)
	}

	req := <-requests
	if req.path != "/repos/astropy/astropy/issues" {
		t.Fatalf("path = %q, want /repos/astropy/astropy/issues", req.path)
	}
	wantQuery := map[string]string{"state": "all", "page": "3", "per_page": "100"}
	if !reflect.DeepEqual(req.query, wantQuery) {
		t.Fatalf("query = %v, want %v", req.query, wantQuery)
	}

	want := []Issue{
		{
			Number:    12,
			State:     "closed",
			CreatedAt: time.Date(2019, 3, 1, 10, 0, 0, 0, time.UTC),
			ClosedAt:  time.Date(2019, 3, 2, 10, 0, 0, 0, time.UTC),
			Labels:    []string{"units", "Bug"},
			User:      "alice",
			Assignees: []string{"bob", "carol"},
		},
		{
			Number:        13,
			State:         "open",
			CreatedAt:     time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC),
			IsPullRequest: true,
			User:          "dave",
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ListIssues() = %+v, want %+v", got, want)
	}
}

func TestIssueClientListIssuesErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name            string
		status          int
		headers         map[string]string
		wantRateLimited bool
		wantKind        LimitKind
	}{
		{
			name:   "forbidden_is_rate_limited",
			status: http.StatusForbidden,
			headers: map[string]string{
				"X-RateLimit-Remaining": "0",
				"X-RateLimit-Reset":     "1739837000",
			},
			wantRateLimited: true,
			wantKind:        LimitPrimary,
		},
		{
			name:            "not_found_is_fatal",
			status:          http.StatusNotFound,
			wantRateLimited: false,
			wantKind:        LimitForbidden,
		},
		{
			name:            "server_error_is_fatal",
			status:          http.StatusInternalServerError,
			wantRateLimited: false,
			wantKind:        LimitForbidden,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			client := newTestIssueClient(t, func(w http.ResponseWriter, _ *http.Request) {
				for key, value := range tc.headers {
					w.Header().Set(key, value)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"message":"nope"}`))
			})

			_, err := client.ListIssues(context.Background(), IssuePageRequest{State: "closed", Page: 1, PerPage: 100})
			if err == nil {
				t.Fatalf("ListIssues() expected error, got nil")
			}
			if got := IsRateLimited(err); got != tc.wantRateLimited {
				t.Fatalf("IsRateLimited() = %t, want %t (err=%v)", got, tc.wantRateLimited, err)
			}

			var statusErr *StatusError
			if !errors.As(err, &statusErr) {
				t.Fatalf("error %v is not a *StatusError", err)
			}
			if statusErr.StatusCode != tc.status {
				t.Fatalf("StatusCode = %d, want %d", statusErr.StatusCode, tc.status)
			}
			if got := statusErr.RateLimit.Kind(); got != tc.wantKind {
				t.Fatalf("Kind() = %q, want %q", got, tc.wantKind)
			}
		})
	}
}

func TestIssueClientCheckAuth(t *testing.T) {
	t.Parallel()

	client := newTestIssueClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rate_limit" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"resources":{"core":{"limit":5000,"remaining":4990,"reset":1739837000}}}`))
	})

	got, err := client.CheckAuth(context.Background())
	if err != nil {
		t.Fatalf("CheckAuth() unexpected error: %v", err)
	}
	if got.Limit != 5000 || got.Remaining != 4990 {
		t.Fatalf("CheckAuth() = %+v, want limit 5000 remaining 4990", got)
	}
	if !got.Reset.Equal(time.Unix(1739837000, 0)) {
		t.Fatalf("Reset = %s, want %s", got.Reset, time.Unix(1739837000, 0))
	}
}

func TestNewIssueClientValidation(t *testing.T) {
	t.Parallel()

	gh, err := NewClient(Credentials{Token: "test-token"}, ClientOptions{})
	if err != nil {
		t.Fatalf("NewClient() unexpected error: %v", err)
	}

	testCases := []struct {
		name        string
		client      *github.Client
		owner       string
		repo        string
		errContains string
	}{
		{name: "nil_client", client: nil, owner: "o", repo: "r", errContains: "github client"},
		{name: "missing_owner", client: gh, owner: " ", repo: "r", errContains: "owner"},
		{name: "missing_repo", client: gh, owner: "o", repo: "", errContains: "repo"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewIssueClient(tc.client, tc.owner, tc.repo)
			if err == nil || !strings.Contains(err.Error(), tc.errContains) {
				t.Fatalf("NewIssueClient() error = %v, want containing %q", err, tc.errContains)
			}
		})
	}

	client, err := NewIssueClient(gh, " astropy ", "astropy")
	if err != nil {
		t.Fatalf("NewIssueClient() unexpected error: %v", err)
	}
	if got := client.Repository(); got != "astropy/astropy" {
		t.Fatalf("Repository() = %q, want astropy/astropy", got)
	}
}
