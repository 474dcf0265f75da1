// Package github provides functionality for interacting with the GitHub API.
package github

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/go-github/v73/github"

	"github.com/sevigo/devflow/internal/core"
)

// ChangedFile holds the filename and patch data for a single file
// included in a pull request.
type ChangedFile struct {
	Filename  string
	Status    string
	Additions int
	Deletions int
	Patch     string
}

// Client defines the pull request operations the review pipeline needs.
// Repositories are addressed by their full "owner/name".
//
//go:generate mockgen -destination=../../mocks/mock_github_client.go -package=mocks . Client
type Client interface {
	GetPullRequest(ctx context.Context, repoFullName string, number int) (*github.PullRequest, error)
	GetPullRequestDiff(ctx context.Context, repoFullName string, number int) (string, error)
	GetChangedFiles(ctx context.Context, repoFullName string, number int) ([]ChangedFile, error)
	CreateComment(ctx context.Context, repoFullName string, number int, body string) error
}

type gitHubClient struct {
	client *github.Client
	logger *slog.Logger
}

// NewGitHubClient wraps the official go-github client to provide a focused,
// testable interface for application-specific GitHub operations.
func NewGitHubClient(client *github.Client, logger *slog.Logger) Client {
	return &gitHubClient{client: client, logger: logger}
}

// GetPullRequest retrieves a single pull request by its number.
func (g *gitHubClient) GetPullRequest(ctx context.Context, repoFullName string, number int) (*github.PullRequest, error) {
	owner, repo, err := core.SplitRepoFullName(repoFullName)
	if err != nil {
		return nil, err
	}
	pr, _, err := g.client.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		g.logger.Error("failed to get pull request", "repo", repoFullName, "pr", number, "error", err)
		return nil, fmt.Errorf("get pull request %s#%d: %w", repoFullName, number, err)
	}
	return pr, nil
}

// GetPullRequestDiff retrieves the unified diff of a pull request.
func (g *gitHubClient) GetPullRequestDiff(ctx context.Context, repoFullName string, number int) (string, error) {
	owner, repo, err := core.SplitRepoFullName(repoFullName)
	if err != nil {
		return "", err
	}
	diff, _, err := g.client.PullRequests.GetRaw(ctx, owner, repo, number, github.RawOptions{
		Type: github.Diff,
	})
	if err != nil {
		g.logger.Error("failed to get pull request diff", "repo", repoFullName, "pr", number, "error", err)
		return "", fmt.Errorf("fetch diff for %s#%d: %w", repoFullName, number, err)
	}
	return diff, nil
}

// GetChangedFiles retrieves the list of files modified in a pull request.
// It follows pagination since the API returns at most 100 files per page.
func (g *gitHubClient) GetChangedFiles(ctx context.Context, repoFullName string, number int) ([]ChangedFile, error) {
	owner, repo, err := core.SplitRepoFullName(repoFullName)
	if err != nil {
		return nil, err
	}

	var allFiles []ChangedFile
	opts := &github.ListOptions{PerPage: 100}

	for {
		files, resp, err := g.client.PullRequests.ListFiles(ctx, owner, repo, number, opts)
		if err != nil {
			g.logger.Error("failed to list files for pull request", "repo", repoFullName, "pr", number, "error", err)
			return nil, fmt.Errorf("list files for %s#%d: %w", repoFullName, number, err)
		}

		for _, file := range files {
			allFiles = append(allFiles, ChangedFile{
				Filename:  file.GetFilename(),
				Status:    file.GetStatus(),
				Additions: file.GetAdditions(),
				Deletions: file.GetDeletions(),
				Patch:     file.GetPatch(),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return allFiles, nil
}

// CreateComment posts a top-level comment on a pull request.
func (g *gitHubClient) CreateComment(ctx context.Context, repoFullName string, number int, body string) error {
	owner, repo, err := core.SplitRepoFullName(repoFullName)
	if err != nil {
		return err
	}
	comment := &github.IssueComment{Body: &body}
	if _, _, err := g.client.Issues.CreateComment(ctx, owner, repo, number, comment); err != nil {
		g.logger.Error("failed to create comment", "repo", repoFullName, "pr", number, "error", err)
		return fmt.Errorf("post comment on %s#%d: %w", repoFullName, number, err)
	}
	return nil
}
