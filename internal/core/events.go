// Package core defines the essential interfaces and data structures that form the
// backbone of the application. These components are designed to be abstract,
// allowing for flexible and decoupled implementations of the application's logic.
package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-github/v73/github"
)

// ErrEventIgnored is returned when a webhook event is well-formed but does not
// start a review (for example, a pull request that was closed or edited).
var ErrEventIgnored = errors.New("event does not trigger a review")

// PullRequestEvent represents a simplified, internal view of a GitHub
// "pull_request" webhook delivery.
type PullRequestEvent struct {
	DeliveryID string

	// Repository details
	RepoGitHubID int64
	RepoOwner    string
	RepoName     string
	RepoFullName string

	PRNumber int
	PRTitle  string
	Author   string
}

// EventFromPullRequest transforms a raw GitHub PullRequestEvent into the application's
// internal representation. It acts as an anti-corruption layer: only "opened" actions
// carrying the repository and pull request fields the pipeline depends on are accepted.
func EventFromPullRequest(event *github.PullRequestEvent) (*PullRequestEvent, error) {
	if event.GetAction() != "opened" {
		return nil, fmt.Errorf("%w: action %q", ErrEventIgnored, event.GetAction())
	}

	pr := event.GetPullRequest()
	if pr == nil {
		return nil, fmt.Errorf("pull request information is missing from the event")
	}
	if pr.GetNumber() <= 0 {
		return nil, fmt.Errorf("invalid pull request number: %d", pr.GetNumber())
	}

	repo := event.GetRepo()
	if repo == nil || repo.GetFullName() == "" {
		return nil, fmt.Errorf("repository information is missing from the event")
	}

	owner, name, err := SplitRepoFullName(repo.GetFullName())
	if err != nil {
		return nil, err
	}

	return &PullRequestEvent{
		RepoGitHubID: repo.GetID(),
		RepoOwner:    owner,
		RepoName:     name,
		RepoFullName: repo.GetFullName(),
		PRNumber:     pr.GetNumber(),
		PRTitle:      pr.GetTitle(),
		Author:       pr.GetUser().GetLogin(),
	}, nil
}

// SplitRepoFullName splits "owner/name" into its two parts.
func SplitRepoFullName(fullName string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("invalid repository full name %q: expected owner/name", fullName)
	}
	return owner, name, nil
}
