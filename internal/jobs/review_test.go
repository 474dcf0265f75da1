package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sevigo/devflow/internal/core"
	"github.com/sevigo/devflow/internal/github"
	"github.com/sevigo/devflow/internal/llm"
	"github.com/sevigo/devflow/mocks"
)

const sampleDiff = `diff --git a/main.go b/main.go
--- a/main.go
+++ b/main.go
@@ -1,3 +1,4 @@
 package main
+var cache = map[string]string{}
`

type stubGenerator struct {
	response string
	err      error
}

func (s stubGenerator) Generate(context.Context, string) (string, error) {
	return s.response, s.err
}

type stubRetriever struct {
	ctx   llm.RetrievedContext
	diffs []string
}

func (s *stubRetriever) Retrieve(_ context.Context, diff string) llm.RetrievedContext {
	s.diffs = append(s.diffs, diff)
	return s.ctx
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newJob(t *testing.T, gh github.Client, store *mocks.MockStore, gen llm.Generator, secrets ...string) *ReviewJob {
	t.Helper()
	pm, err := llm.NewPromptManager()
	require.NoError(t, err)
	retriever := &stubRetriever{ctx: llm.RetrievedContext{Text: "--- File: cache.go ---\nfunc get() {}", Snippets: 1}}
	return NewReviewJob(gh, store, retriever, llm.NewAnalyzer(gen, pm, discardLogger()), discardLogger(), secrets...)
}

func widgetsEvent() *core.PullRequestEvent {
	return &core.PullRequestEvent{
		DeliveryID:   "d-1",
		RepoGitHubID: 1001,
		RepoOwner:    "acme",
		RepoName:     "widgets",
		RepoFullName: "acme/widgets",
		PRNumber:     42,
		PRTitle:      "Add cache",
		Author:       "octocat",
	}
}

const oneHighIssue = `{"issues":[{"severity":"high","type":"bug","line":2,"message":"unbounded cache","suggestion":"add eviction"}],"summary":"Adds a cache","score":7}`

func TestReviewJob_Run_EndToEnd(t *testing.T) {
	ctrl := gomock.NewController(t)
	gh := mocks.NewMockClient(ctrl)
	store := mocks.NewMockStore(ctrl)

	gomock.InOrder(
		gh.EXPECT().GetPullRequestDiff(gomock.Any(), "acme/widgets", 42).Return(sampleDiff, nil),
		gh.EXPECT().GetChangedFiles(gomock.Any(), "acme/widgets", 42).Return([]github.ChangedFile{{Filename: "main.go"}}, nil),
		store.EXPECT().SaveReview(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, repo *core.Repository, pr *core.PullRequestRecord, review *core.CodeReviewRecord) error {
				assert.Equal(t, "acme/widgets", repo.FullName)
				assert.Equal(t, "acme", repo.Owner)
				assert.Equal(t, int64(1001), repo.GitHubID)
				assert.Equal(t, 42, pr.Number)
				assert.Equal(t, "Add cache", pr.Title)
				assert.Equal(t, "octocat", pr.Author)
				assert.Equal(t, core.PullRequestStateOpen, pr.State)
				assert.Equal(t, sampleDiff, pr.Diff)
				assert.Equal(t, 1, review.IssuesFound)
				assert.Equal(t, 1, review.SeverityHigh)
				assert.Equal(t, 0, review.SeverityMedium)

				var stored core.AnalysisResult
				assert.NoError(t, json.Unmarshal(review.AIResponse, &stored))
				assert.Equal(t, 7.0, stored.Score)
				pr.ID, review.ID = 5, 9
				return nil
			}),
		gh.EXPECT().CreateComment(gomock.Any(), "acme/widgets", 42, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, _ int, body string) error {
				assert.Contains(t, body, "Quality Score:** 7/10")
				assert.Contains(t, body, "unbounded cache")
				return nil
			}),
	)

	result, err := newJob(t, gh, store, stubGenerator{response: oneHighIssue}).Run(context.Background(), widgetsEvent())

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 7.0, result.Score)
	assert.Len(t, result.Issues, 1)
}

func TestReviewJob_Run_FetchFailureWritesNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	gh := mocks.NewMockClient(ctrl)
	store := mocks.NewMockStore(ctrl)

	gh.EXPECT().GetPullRequestDiff(gomock.Any(), "acme/widgets", 42).Return("", errors.New("404 Not Found"))

	result, err := newJob(t, gh, store, stubGenerator{response: oneHighIssue}).Run(context.Background(), widgetsEvent())

	assert.Nil(t, result)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageDiffFetched, se.Stage)
	assert.Equal(t, "acme/widgets", se.Repo)
	assert.Equal(t, 42, se.Number)
}

func TestReviewJob_Run_ChangedFilesFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	gh := mocks.NewMockClient(ctrl)
	store := mocks.NewMockStore(ctrl)

	gh.EXPECT().GetPullRequestDiff(gomock.Any(), gomock.Any(), gomock.Any()).Return(sampleDiff, nil)
	gh.EXPECT().GetChangedFiles(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("502 Bad Gateway"))

	_, err := newJob(t, gh, store, stubGenerator{}).Run(context.Background(), widgetsEvent())

	assert.Equal(t, StageDiffFetched, stageOf(err))
}

func TestReviewJob_Run_PersistFailureSkipsComment(t *testing.T) {
	ctrl := gomock.NewController(t)
	gh := mocks.NewMockClient(ctrl)
	store := mocks.NewMockStore(ctrl)

	gh.EXPECT().GetPullRequestDiff(gomock.Any(), gomock.Any(), gomock.Any()).Return(sampleDiff, nil)
	gh.EXPECT().GetChangedFiles(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)
	store.EXPECT().SaveReview(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("connection reset"))

	result, err := newJob(t, gh, store, stubGenerator{response: oneHighIssue}).Run(context.Background(), widgetsEvent())

	assert.Nil(t, result)
	assert.Equal(t, StagePersisted, stageOf(err))
}

func TestReviewJob_Run_CommentFailureKeepsResult(t *testing.T) {
	ctrl := gomock.NewController(t)
	gh := mocks.NewMockClient(ctrl)
	store := mocks.NewMockStore(ctrl)

	gh.EXPECT().GetPullRequestDiff(gomock.Any(), gomock.Any(), gomock.Any()).Return(sampleDiff, nil)
	gh.EXPECT().GetChangedFiles(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)
	store.EXPECT().SaveReview(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	gh.EXPECT().CreateComment(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(errors.New("403 Forbidden: token ghp_secret123 lacks scope"))

	result, err := newJob(t, gh, store, stubGenerator{response: oneHighIssue}, "ghp_secret123").Run(context.Background(), widgetsEvent())

	require.NotNil(t, result)
	assert.Equal(t, 7.0, result.Score)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageCommented, se.Stage)
	assert.NotContains(t, err.Error(), "ghp_secret123")
	assert.Contains(t, err.Error(), "[REDACTED]")
}

func TestReviewJob_Run_DegradedAnalysisStillPersists(t *testing.T) {
	ctrl := gomock.NewController(t)
	gh := mocks.NewMockClient(ctrl)
	store := mocks.NewMockStore(ctrl)

	gh.EXPECT().GetPullRequestDiff(gomock.Any(), gomock.Any(), gomock.Any()).Return(sampleDiff, nil)
	gh.EXPECT().GetChangedFiles(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)
	store.EXPECT().SaveReview(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ *core.Repository, _ *core.PullRequestRecord, review *core.CodeReviewRecord) error {
			assert.Zero(t, review.IssuesFound)
			return nil
		})
	gh.EXPECT().CreateComment(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, _ int, body string) error {
			assert.Contains(t, body, "connection failure")
			assert.Contains(t, body, "Quality Score:** 5/10")
			return nil
		})

	result, err := newJob(t, gh, store, stubGenerator{err: errors.New("dial tcp: connection refused")}).Run(context.Background(), widgetsEvent())

	require.NoError(t, err)
	assert.True(t, result.Degraded)
	assert.Empty(t, result.Issues)
}

func TestReviewJob_Run_InvalidEvent(t *testing.T) {
	ctrl := gomock.NewController(t)
	job := newJob(t, mocks.NewMockClient(ctrl), mocks.NewMockStore(ctrl), stubGenerator{})

	_, err := job.Run(context.Background(), nil)
	assert.Equal(t, StageReceived, stageOf(err))

	ev := widgetsEvent()
	ev.RepoFullName = "widgets"
	_, err = job.Run(context.Background(), ev)
	assert.Equal(t, StageReceived, stageOf(err))
}

func TestReviewJob_StoredDiffIsTruncated(t *testing.T) {
	ctrl := gomock.NewController(t)
	gh := mocks.NewMockClient(ctrl)
	job := newJob(t, gh, mocks.NewMockStore(ctrl), stubGenerator{response: oneHighIssue})

	long := make([]rune, MaxStoredDiffChars+500)
	for i := range long {
		long[i] = 'é'
	}
	_, pr, _, err := job.buildRecords(widgetsEvent(), &Review{Diff: string(long), Result: &core.AnalysisResult{Issues: []core.Issue{}}})
	require.NoError(t, err)
	assert.Equal(t, MaxStoredDiffChars, len([]rune(pr.Diff)))
}
