// Package storage persists reviewed pull requests and serves the snippet index.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sevigo/devflow/internal/core"
)

// ErrNotFound is returned when a lookup matches no rows.
var ErrNotFound = errors.New("not found")

// Store defines the interface for all review persistence operations.
//
//go:generate mockgen -destination=../../mocks/mock_store.go -package=mocks . Store
type Store interface {
	// SaveReview upserts the repository and inserts the pull request and its
	// review in one transaction. On success the records carry their new IDs.
	SaveReview(ctx context.Context, repo *core.Repository, pr *core.PullRequestRecord, review *core.CodeReviewRecord) error
	GetLatestReview(ctx context.Context, repoFullName string, prNumber int) (*core.ReviewSummary, error)
	ListRecentReviews(ctx context.Context, limit int) ([]*core.ReviewSummary, error)
}

type sqlStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(db *sqlx.DB) Store {
	return &sqlStore{db: db, now: time.Now}
}

func (s *sqlStore) SaveReview(ctx context.Context, repo *core.Repository, pr *core.PullRequestRecord, review *core.CodeReviewRecord) error {
	if repo == nil || pr == nil || review == nil {
		return errors.New("repository, pull request and review are required")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// no-op once committed
	defer func() { _ = tx.Rollback() }()

	now := s.now().UTC()

	repoID, err := upsertRepository(ctx, tx, repo)
	if err != nil {
		return err
	}

	if pr.State == "" {
		pr.State = core.PullRequestStateOpen
	}
	if pr.CreatedAt.IsZero() {
		pr.CreatedAt = now
	}
	reviewedAt := now

	var prID int64
	err = tx.QueryRowxContext(ctx, tx.Rebind(`
		INSERT INTO pull_requests (repo_id, pr_number, title, author, diff, state, created_at, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		repoID, pr.Number, pr.Title, pr.Author, pr.Diff, pr.State, pr.CreatedAt, reviewedAt,
	).Scan(&prID)
	if err != nil {
		return fmt.Errorf("failed to insert pull request %s#%d: %w", repo.FullName, pr.Number, err)
	}

	if review.CreatedAt.IsZero() {
		review.CreatedAt = now
	}

	var reviewID int64
	// ai_response goes over the wire as text; lib/pq would send []byte as bytea.
	err = tx.QueryRowxContext(ctx, tx.Rebind(`
		INSERT INTO code_reviews (pr_id, ai_response, issues_found, severity_high, severity_medium, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`),
		prID, string(review.AIResponse), review.IssuesFound, review.SeverityHigh, review.SeverityMedium, review.CreatedAt,
	).Scan(&reviewID)
	if err != nil {
		return fmt.Errorf("failed to insert review for %s#%d: %w", repo.FullName, pr.Number, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit review: %w", err)
	}

	repo.ID = repoID
	pr.ID = prID
	pr.RepoID = repoID
	pr.RepoFullName = repo.FullName
	pr.ReviewedAt = &reviewedAt
	review.ID = reviewID
	review.PullRequestID = prID
	return nil
}

func upsertRepository(ctx context.Context, tx *sqlx.Tx, repo *core.Repository) (int64, error) {
	githubID := sql.NullInt64{Int64: repo.GitHubID, Valid: repo.GitHubID != 0}

	var id int64
	err := tx.QueryRowxContext(ctx, tx.Rebind(`
		INSERT INTO repositories (github_id, full_name, owner, name)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (full_name) DO UPDATE
		SET github_id = COALESCE(excluded.github_id, repositories.github_id)
		RETURNING id`),
		githubID, repo.FullName, repo.Owner, repo.Name,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert repository %s: %w", repo.FullName, err)
	}
	return id, nil
}

// reviewRow is the flat shape of the pull_requests/code_reviews join.
type reviewRow struct {
	PRID            int64      `db:"pr_id"`
	RepoID          int64      `db:"repo_id"`
	RepoFullName    string     `db:"full_name"`
	Number          int        `db:"pr_number"`
	Title           string     `db:"title"`
	Author          string     `db:"author"`
	State           string     `db:"state"`
	PRCreatedAt     time.Time  `db:"pr_created_at"`
	ReviewedAt      *time.Time `db:"reviewed_at"`
	ReviewID        int64      `db:"review_id"`
	AIResponse      string     `db:"ai_response"`
	IssuesFound     int        `db:"issues_found"`
	SeverityHigh    int        `db:"severity_high"`
	SeverityMedium  int        `db:"severity_medium"`
	ReviewCreatedAt time.Time  `db:"review_created_at"`
}

func (r reviewRow) summary() *core.ReviewSummary {
	return &core.ReviewSummary{
		PullRequest: core.PullRequestRecord{
			ID:           r.PRID,
			RepoID:       r.RepoID,
			RepoFullName: r.RepoFullName,
			Number:       r.Number,
			Title:        r.Title,
			Author:       r.Author,
			State:        r.State,
			CreatedAt:    r.PRCreatedAt,
			ReviewedAt:   r.ReviewedAt,
		},
		Review: core.CodeReviewRecord{
			ID:             r.ReviewID,
			PullRequestID:  r.PRID,
			AIResponse:     []byte(r.AIResponse),
			IssuesFound:    r.IssuesFound,
			SeverityHigh:   r.SeverityHigh,
			SeverityMedium: r.SeverityMedium,
			CreatedAt:      r.ReviewCreatedAt,
		},
	}
}

const reviewSelect = `
	SELECT p.id AS pr_id, p.repo_id, r.full_name, p.pr_number, p.title, p.author, p.state,
	       p.created_at AS pr_created_at, p.reviewed_at,
	       c.id AS review_id, c.ai_response, c.issues_found, c.severity_high, c.severity_medium,
	       c.created_at AS review_created_at
	FROM pull_requests p
	JOIN repositories r ON r.id = p.repo_id
	JOIN code_reviews c ON c.pr_id = p.id`

// GetLatestReview retrieves the most recent review for a given pull request.
func (s *sqlStore) GetLatestReview(ctx context.Context, repoFullName string, prNumber int) (*core.ReviewSummary, error) {
	query := s.db.Rebind(reviewSelect + `
	WHERE r.full_name = ? AND p.pr_number = ?
	ORDER BY c.created_at DESC, c.id DESC
	LIMIT 1`)

	var row reviewRow
	if err := s.db.GetContext(ctx, &row, query, repoFullName, prNumber); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no review found for PR %s#%d: %w", repoFullName, prNumber, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load review for PR %s#%d: %w", repoFullName, prNumber, err)
	}
	return row.summary(), nil
}

// ListRecentReviews returns up to limit reviews, newest first.
func (s *sqlStore) ListRecentReviews(ctx context.Context, limit int) ([]*core.ReviewSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	query := s.db.Rebind(reviewSelect + `
	ORDER BY c.created_at DESC, c.id DESC
	LIMIT ?`)

	var rows []reviewRow
	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}

	out := make([]*core.ReviewSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.summary())
	}
	return out, nil
}
