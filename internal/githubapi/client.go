package githubapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v50/github"
	"golang.org/x/oauth2"
)

// Default status codes that never trigger an automatic retry.
var defaultRetryExemptStatusCodes = []int{400, 401, 403, 404, 422}

// Config holds GitHub API configuration for the client wrapper.
type Config struct {
	// GitHub App configuration (preferred for enterprise installs)
	AppID          int64  `json:"app_id,omitempty"`
	PrivateKey     []byte `json:"private_key,omitempty"`
	InstallationID int64  `json:"installation_id,omitempty"`

	// Personal access token (fallback)
	Token string `json:"token,omitempty"`

	// Base URL for GitHub Enterprise Server (optional)
	BaseURL string `json:"base_url,omitempty"`

	// Retries is the number of times a failed API call is retried at
	// the HTTP layer. Zero disables retrying.
	Retries int `json:"retries,omitempty"`

	// RetryExemptStatusCodes are response status codes that never
	// trigger a retry. Defaults to 400, 401, 403, 404 and 422.
	RetryExemptStatusCodes []int `json:"retry_exempt_status_codes,omitempty"`

	// Transport overrides the base HTTP transport. Used by tests to
	// inject a fake API server.
	Transport http.RoundTripper `json:"-"`
}

// AuthMethod represents the type of GitHub authentication in use.
type AuthMethod string

const (
	AuthMethodApp   AuthMethod = "github_app"
	AuthMethodToken AuthMethod = "personal_token"
	AuthMethodNone  AuthMethod = "none"
)

// Client wraps a go-github client with retry, GraphQL and pagination
// support.
type Client struct {
	rest       *github.Client
	httpClient *http.Client
	config     *Config
	authMethod AuthMethod
	graphqlURL string
}

// NewClient creates a new GitHub client from the provided configuration.
func NewClient(ctx context.Context, config *Config) (*Client, error) {
	base := config.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	if config.Retries > 0 {
		base = newRetryTransport(base, config.Retries, config.RetryExemptStatusCodes)
	}

	var httpClient *http.Client
	var authMethod AuthMethod

	// Try GitHub App authentication first (preferred)
	if config.AppID != 0 && len(config.PrivateKey) > 0 && config.InstallationID != 0 {
		transport, err := ghinstallation.New(base, config.AppID, config.InstallationID, config.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create GitHub App transport: %w", err)
		}
		if config.BaseURL != "" {
			transport.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
		}
		httpClient = &http.Client{Transport: transport}
		authMethod = AuthMethodApp
	} else if config.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: config.Token})
		ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: base})
		httpClient = oauth2.NewClient(ctx, ts)
		authMethod = AuthMethodToken
	} else {
		// No authentication configured; anonymous access with reduced
		// rate limits.
		httpClient = &http.Client{Transport: base}
		authMethod = AuthMethodNone
	}

	client := &Client{
		httpClient: httpClient,
		config:     config,
		authMethod: authMethod,
		graphqlURL: "https://api.github.com/graphql",
	}

	if config.BaseURL != "" {
		// GitHub Enterprise Server
		rest, err := github.NewEnterpriseClient(config.BaseURL, config.BaseURL, httpClient)
		if err != nil {
			return nil, fmt.Errorf("failed to create GitHub Enterprise client: %w", err)
		}
		client.rest = rest
		client.graphqlURL = strings.TrimSuffix(config.BaseURL, "/") + "/graphql"
	} else {
		client.rest = github.NewClient(httpClient)
	}

	return client, nil
}

// Rest exposes the underlying go-github client.
func (c *Client) Rest() *github.Client {
	return c.rest
}

// GetAuthMethod returns the authentication method being used.
func (c *Client) GetAuthMethod() AuthMethod {
	return c.authMethod
}
