package storage

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/devflow/internal/core"
)

func newRecords(number int) (*core.Repository, *core.PullRequestRecord, *core.CodeReviewRecord) {
	repo := &core.Repository{GitHubID: 99, FullName: "acme/widgets", Owner: "acme", Name: "widgets"}
	pr := &core.PullRequestRecord{Number: number, Title: "Add widget", Author: "octocat", Diff: "diff --git a/x b/x"}
	review := &core.CodeReviewRecord{
		AIResponse:   json.RawMessage(`{"issues":[{"severity":"high","type":"bug","line":3,"message":"nil deref"}],"summary":"ok","score":7}`),
		IssuesFound:  1,
		SeverityHigh: 1,
	}
	return repo, pr, review
}

func countRows(t *testing.T, store *sqlStore, table string) int {
	t.Helper()
	var n int
	require.NoError(t, store.db.Get(&n, "SELECT COUNT(*) FROM "+table))
	return n
}

func TestSaveReview(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db).(*sqlStore)
	ctx := context.Background()

	repo, pr, review := newRecords(42)
	require.NoError(t, store.SaveReview(ctx, repo, pr, review))

	assert.NotZero(t, repo.ID)
	assert.NotZero(t, pr.ID)
	assert.Equal(t, repo.ID, pr.RepoID)
	assert.Equal(t, core.PullRequestStateOpen, pr.State)
	require.NotNil(t, pr.ReviewedAt)
	assert.Equal(t, pr.ID, review.PullRequestID)

	assert.Equal(t, 1, countRows(t, store, "repositories"))
	assert.Equal(t, 1, countRows(t, store, "pull_requests"))
	assert.Equal(t, 1, countRows(t, store, "code_reviews"))

	var counts struct {
		IssuesFound    int `db:"issues_found"`
		SeverityHigh   int `db:"severity_high"`
		SeverityMedium int `db:"severity_medium"`
	}
	require.NoError(t, db.Get(&counts, "SELECT issues_found, severity_high, severity_medium FROM code_reviews WHERE pr_id = ?", pr.ID))
	assert.Equal(t, 1, counts.IssuesFound)
	assert.Equal(t, 1, counts.SeverityHigh)
	assert.Equal(t, 0, counts.SeverityMedium)
}

func TestSaveReview_ReusesRepository(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db).(*sqlStore)
	ctx := context.Background()

	repo1, pr1, review1 := newRecords(1)
	require.NoError(t, store.SaveReview(ctx, repo1, pr1, review1))
	repo2, pr2, review2 := newRecords(2)
	require.NoError(t, store.SaveReview(ctx, repo2, pr2, review2))

	assert.Equal(t, repo1.ID, repo2.ID)
	assert.Equal(t, 1, countRows(t, store, "repositories"))
	assert.Equal(t, 2, countRows(t, store, "pull_requests"))
}

func TestSaveReview_RollsBackWhenReviewInsertFails(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db).(*sqlStore)

	_, err := db.Exec("DROP TABLE code_reviews")
	require.NoError(t, err)

	repo, pr, review := newRecords(42)
	err = store.SaveReview(context.Background(), repo, pr, review)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert review")

	assert.Equal(t, 0, countRows(t, store, "pull_requests"))
	assert.Equal(t, 0, countRows(t, store, "repositories"))
	assert.Zero(t, pr.ID)
}

func TestSaveReview_RequiresRecords(t *testing.T) {
	store := NewStore(setupTestDB(t))
	repo, pr, _ := newRecords(1)
	assert.Error(t, store.SaveReview(context.Background(), repo, pr, nil))
}

func TestGetLatestReview(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	_, err := store.GetLatestReview(ctx, "acme/widgets", 42)
	assert.ErrorIs(t, err, ErrNotFound)

	repo, pr, review := newRecords(42)
	require.NoError(t, store.SaveReview(ctx, repo, pr, review))

	got, err := store.GetLatestReview(ctx, "acme/widgets", 42)
	require.NoError(t, err)
	assert.Equal(t, "acme/widgets", got.PullRequest.RepoFullName)
	assert.Equal(t, 42, got.PullRequest.Number)
	assert.Equal(t, "octocat", got.PullRequest.Author)
	assert.Equal(t, review.ID, got.Review.ID)
	assert.JSONEq(t, string(review.AIResponse), string(got.Review.AIResponse))
	assert.Equal(t, 1, got.Review.SeverityHigh)
}

func TestListRecentReviews(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	for _, n := range []int{1, 2, 3} {
		repo, pr, review := newRecords(n)
		require.NoError(t, store.SaveReview(ctx, repo, pr, review))
	}

	got, err := store.ListRecentReviews(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 3, got[0].PullRequest.Number)
	assert.Equal(t, 2, got[1].PullRequest.Number)
}
