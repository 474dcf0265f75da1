package github

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v73/github"
	"golang.org/x/oauth2"

	"github.com/sevigo/devflow/internal/config"
)

// ClientOptions tunes the HTTP side of a GitHub client.
type ClientOptions struct {
	// BaseURL overrides https://api.github.com/ (GitHub Enterprise or tests).
	BaseURL string
	Timeout time.Duration
}

// NewTokenClient creates a client that sends "Authorization: token <TOKEN>".
func NewTokenClient(token string, opts ClientOptions, logger *slog.Logger) (Client, error) {
	if token == "" {
		return nil, fmt.Errorf("github token is empty")
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "token"})
	transport := &oauth2.Transport{Source: ts, Base: http.DefaultTransport}

	client, err := newGoGitHubClient(transport, opts)
	if err != nil {
		return nil, err
	}
	return NewGitHubClient(client, logger), nil
}

// NewAppClient creates a client authenticated as a GitHub App installation.
// Installation tokens are minted and refreshed by ghinstallation.
func NewAppClient(appID, installationID int64, privateKeyPath string, opts ClientOptions, logger *slog.Logger) (Client, error) {
	itr, err := ghinstallation.NewKeyFromFile(http.DefaultTransport, appID, installationID, privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub App transport: %w", err)
	}
	if opts.BaseURL != "" {
		itr.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	}
	logger.Info("using GitHub App installation auth", "app_id", appID, "installation_id", installationID)

	client, err := newGoGitHubClient(itr, opts)
	if err != nil {
		return nil, err
	}
	return NewGitHubClient(client, logger), nil
}

// NewClientFromConfig picks App auth when an app id is configured, token auth otherwise.
func NewClientFromConfig(cfg *config.GitHubConfig, logger *slog.Logger) (Client, error) {
	opts := ClientOptions{BaseURL: cfg.APIBaseURL, Timeout: cfg.Timeout}
	if cfg.UsesApp() {
		return NewAppClient(cfg.AppID, cfg.InstallationID, cfg.PrivateKeyPath, opts, logger)
	}
	return NewTokenClient(cfg.Token, opts, logger)
}

func newGoGitHubClient(transport http.RoundTripper, opts ClientOptions) (*github.Client, error) {
	client := github.NewClient(&http.Client{Transport: transport, Timeout: opts.Timeout})
	if opts.BaseURL == "" {
		return client, nil
	}
	baseURL := opts.BaseURL
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid github api base url %q: %w", opts.BaseURL, err)
	}
	client.BaseURL = u
	client.UploadURL = u
	return client, nil
}
