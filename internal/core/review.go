package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EmbeddingDimensions is the dimensionality of every vector stored in
// code_snippets and of every query vector compared against them.
const EmbeddingDimensions = 768

// PullRequestStateOpen is the only lifecycle state this pipeline records.
const PullRequestStateOpen = "open"

// Repository is a GitHub repository known to the pipeline.
type Repository struct {
	ID        int64     `db:"id" json:"id"`
	GitHubID  int64     `db:"github_id" json:"github_id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Owner     string    `db:"owner" json:"owner"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PullRequestRecord identifies one reviewed pull request.
type PullRequestRecord struct {
	ID           int64      `db:"id" json:"id"`
	RepoID       int64      `db:"repo_id" json:"repo_id"`
	RepoFullName string     `db:"repo_full_name" json:"repo_full_name"`
	Number       int        `db:"pr_number" json:"pr_number"`
	Title        string     `db:"title" json:"title"`
	Author       string     `db:"author" json:"author"`
	Diff         string     `db:"diff" json:"-"`
	State        string     `db:"state" json:"state"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	ReviewedAt   *time.Time `db:"reviewed_at" json:"reviewed_at,omitempty"`
}

// CodeReviewRecord is the persisted verdict for exactly one PullRequestRecord.
type CodeReviewRecord struct {
	ID             int64           `db:"id" json:"id"`
	PullRequestID  int64           `db:"pr_id" json:"pr_id"`
	AIResponse     json.RawMessage `db:"ai_response" json:"ai_response"`
	IssuesFound    int             `db:"issues_found" json:"issues_found"`
	SeverityHigh   int             `db:"severity_high" json:"severity_high"`
	SeverityMedium int             `db:"severity_medium" json:"severity_medium"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// ReviewSummary joins a review with the pull request it belongs to.
type ReviewSummary struct {
	PullRequest PullRequestRecord `json:"pull_request"`
	Review      CodeReviewRecord  `json:"review"`
}

// CodeSnippet is one indexed unit of source text used for retrieval.
type CodeSnippet struct {
	ID        int64     `db:"id"`
	FilePath  string    `db:"file_path"`
	Content   string    `db:"content"`
	Embedding []float32 `db:"-"`
	CreatedAt time.Time `db:"created_at"`
}

// ErrDimensionMismatch is returned when a vector does not have EmbeddingDimensions components.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// CheckDimensions returns ErrDimensionMismatch unless vec has EmbeddingDimensions components.
func CheckDimensions(vec []float32) error {
	if len(vec) != EmbeddingDimensions {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), EmbeddingDimensions)
	}
	return nil
}
