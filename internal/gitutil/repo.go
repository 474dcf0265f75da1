// Package gitutil reads local Git repositories for the snippet indexer and
// parses pull request references given on the command line.
package gitutil

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ErrEmptyRepository is returned when HEAD does not point at a commit yet.
var ErrEmptyRepository = errors.New("repository has no commits")

// Client opens repositories on disk.
type Client struct {
	Logger *slog.Logger
}

// NewClient returns a new Client instance.
func NewClient(logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{Logger: logger}
}

// Open opens a Git repository at a given path.
func (c *Client) Open(path string) (*git.Repository, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository at %s: %w", path, err)
	}
	return repo, nil
}

// Snapshot is the tree committed at HEAD. It is not safe for concurrent use.
type Snapshot struct {
	SHA  string
	tree *object.Tree
}

// HeadSnapshot resolves HEAD of the repository at path.
func (c *Client) HeadSnapshot(path string) (*Snapshot, error) {
	repo, err := c.Open(path)
	if err != nil {
		return nil, err
	}
	ref, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmptyRepository, err)
	}
	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to load HEAD commit %s: %w", ref.Hash(), err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to load tree for %s: %w", ref.Hash(), err)
	}
	c.Logger.Debug("resolved HEAD", "path", path, "sha", ref.Hash().String())
	return &Snapshot{SHA: ref.Hash().String(), tree: tree}, nil
}

// Paths lists every file tracked at HEAD, slash-separated and relative to the
// repository root, in tree order.
func (s *Snapshot) Paths() ([]string, error) {
	var paths []string
	err := s.tree.Files().ForEach(func(f *object.File) error {
		if f.Mode.IsFile() {
			paths = append(paths, f.Name)
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to walk tree: %w", err)
	}
	return paths, nil
}

// ReadFile returns the committed contents of path. Binary blobs are reported
// with ok=false.
func (s *Snapshot) ReadFile(path string) (content string, ok bool, err error) {
	f, err := s.tree.File(path)
	if err != nil {
		return "", false, fmt.Errorf("failed to find %s at HEAD: %w", path, err)
	}
	binary, err := f.IsBinary()
	if err != nil {
		return "", false, fmt.Errorf("failed to inspect %s: %w", path, err)
	}
	if binary {
		return "", false, nil
	}
	content, err = f.Contents()
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return content, true, nil
}
