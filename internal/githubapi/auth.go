package githubapi

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v75/github"
	"golang.org/x/oauth2"
)

// ErrMissingCredential is returned when neither a token nor an App installation is configured.
var ErrMissingCredential = errors.New("github credential is missing")

// Credentials authenticates requests to the tracker API. A configured App
// installation takes precedence over Token.
type Credentials struct {
	Token string
	App   AppInstallation
}

// AppInstallation identifies one GitHub App installation and its signing key.
type AppInstallation struct {
	AppID          int64
	InstallationID int64
	PrivateKeyPath string
}

// Configured reports whether any installation field is set.
func (a AppInstallation) Configured() bool {
	return a.AppID != 0 || a.InstallationID != 0 || strings.TrimSpace(a.PrivateKeyPath) != ""
}

func (a AppInstallation) validate() error {
	var problems []string
	if a.AppID <= 0 {
		problems = append(problems, "app id must be > 0")
	}
	if a.InstallationID <= 0 {
		problems = append(problems, "installation id must be > 0")
	}
	if strings.TrimSpace(a.PrivateKeyPath) == "" {
		problems = append(problems, "private key path is required")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// ClientOptions tunes the client built by NewClient.
type ClientOptions struct {
	// BaseURL overrides the public API root (GitHub Enterprise, test servers).
	BaseURL string
	Timeout time.Duration
	// Transport carries the authenticated requests; nil uses http.DefaultTransport.
	Transport http.RoundTripper
}

// NewClient returns a go-github client that authenticates every request with creds.
// A blank token with no App installation fails with ErrMissingCredential before
// any request is made.
func NewClient(creds Credentials, opts ClientOptions) (*github.Client, error) {
	httpClient, err := authenticatedHTTPClient(creds, opts)
	if err != nil {
		return nil, err
	}

	client := github.NewClient(httpClient)
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		return client, nil
	}
	baseURL, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse github api base url: %w", err)
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("parse github api base url %q: missing scheme or host", raw)
	}
	if !strings.HasSuffix(baseURL.Path, "/") {
		baseURL.Path += "/"
	}
	client.BaseURL = baseURL
	return client, nil
}

func authenticatedHTTPClient(creds Credentials, opts ClientOptions) (*http.Client, error) {
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	if creds.App.Configured() {
		if err := creds.App.validate(); err != nil {
			return nil, fmt.Errorf("github app credential: %w", err)
		}
		transport, err := ghinstallation.NewKeyFromFile(base, creds.App.AppID, creds.App.InstallationID, creds.App.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load github app key: %w", err)
		}
		return &http.Client{Transport: transport, Timeout: opts.Timeout}, nil
	}

	token := strings.TrimSpace(creds.Token)
	if token == "" {
		return nil, ErrMissingCredential
	}
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   base,
		},
		Timeout: opts.Timeout,
	}, nil
}
