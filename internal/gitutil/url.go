package gitutil

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	prURLRegex   = regexp.MustCompile(`^(?:https?://)?(?:www\.)?github\.com/([^/]+)/([^/]+)/pull/(\d+)$`)
	prShortRegex = regexp.MustCompile(`^([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+)#(\d+)$`)
)

// PullRequestRef identifies a pull request on GitHub.
type PullRequestRef struct {
	Owner  string
	Repo   string
	Number int
}

// FullName returns "owner/repo".
func (r PullRequestRef) FullName() string {
	return r.Owner + "/" + r.Repo
}

func (r PullRequestRef) String() string {
	return fmt.Sprintf("%s#%d", r.FullName(), r.Number)
}

// ParsePullRequestURL accepts https://github.com/{owner}/{repo}/pull/{number}
// or the owner/repo#number shorthand.
func ParsePullRequestURL(raw string) (PullRequestRef, error) {
	s := strings.TrimSpace(raw)
	if i := strings.IndexAny(s, "?#"); i >= 0 && strings.Contains(s, "/pull/") {
		s = s[:i]
	}
	s = strings.TrimSuffix(s, "/")

	matches := prURLRegex.FindStringSubmatch(s)
	if matches == nil {
		matches = prShortRegex.FindStringSubmatch(s)
	}
	if len(matches) != 4 {
		return PullRequestRef{}, fmt.Errorf("invalid pull request URL format: %s", raw)
	}

	number, err := strconv.Atoi(matches[3])
	if err != nil || number <= 0 {
		return PullRequestRef{}, fmt.Errorf("invalid PR number '%s'", matches[3])
	}
	return PullRequestRef{Owner: matches[1], Repo: matches[2], Number: number}, nil
}
