package handler_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sevigo/devflow/internal/core"
	"github.com/sevigo/devflow/internal/github"
	"github.com/sevigo/devflow/internal/jobs"
	"github.com/sevigo/devflow/internal/llm"
	"github.com/sevigo/devflow/internal/server/handler"
	"github.com/sevigo/devflow/mocks"
)

const testSecret = "It's a Secret to Everybody"

const openedPayload = `{
  "action": "opened",
  "number": 42,
  "pull_request": {"number": 42, "title": "Add cache", "user": {"login": "octocat"}},
  "repository": {"id": 1001, "name": "widgets", "full_name": "acme/widgets", "owner": {"login": "acme"}}
}`

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func deliver(t *testing.T, h *handler.WebhookHandler, event string, body []byte, signature string) (*httptest.ResponseRecorder, map[string]string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook/github", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", event)
	req.Header.Set("X-GitHub-Delivery", "72d3162e-cc78-11e3-81ab-4c9367dc0958")
	if signature != "" {
		req.Header.Set(github.SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	h.Handle(rec, req)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec, resp
}

type stubGenerator struct{ response string }

func (s stubGenerator) Generate(context.Context, string) (string, error) { return s.response, nil }

// hangUpGenerator cancels the inbound request while the model is "thinking".
type hangUpGenerator struct {
	hangUp func()
	t      *testing.T
}

func (g hangUpGenerator) Generate(ctx context.Context, _ string) (string, error) {
	g.hangUp()
	assert.NoError(g.t, ctx.Err(), "review context must not follow the request")
	return `{"issues":[],"summary":"Looks fine","score":9}`, nil
}

type emptyRetriever struct{}

func (emptyRetriever) Retrieve(context.Context, string) llm.RetrievedContext { return llm.RetrievedContext{} }

func newReviewJob(t *testing.T, gh github.Client, store *mocks.MockStore) *jobs.ReviewJob {
	t.Helper()
	pm, err := llm.NewPromptManager()
	require.NoError(t, err)
	gen := stubGenerator{response: `{"issues":[{"severity":"high","type":"security","line":3,"message":"SQL built by concatenation"}],"summary":"Risky query","score":7}`}
	return jobs.NewReviewJob(gh, store, emptyRetriever{}, llm.NewAnalyzer(gen, pm, discardLogger()), discardLogger(), "ghp_token")
}

type countingJob struct {
	calls int
	err   error
}

func (c *countingJob) Run(context.Context, *core.PullRequestEvent) (*core.AnalysisResult, error) {
	c.calls++
	return &core.AnalysisResult{}, c.err
}

type recordingDispatcher struct {
	events []*core.PullRequestEvent
	err    error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, event *core.PullRequestEvent) error {
	d.events = append(d.events, event)
	return d.err
}

func TestWebhook_Ping(t *testing.T) {
	job := &countingJob{}
	h := handler.NewWebhookHandler(testSecret, job, nil, 0, discardLogger())
	body := []byte(`{"zen":"Keep it logically awesome.","hook_id":1}`)

	rec, resp := deliver(t, h, "ping", body, sign(body, testSecret))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", resp["status"])
	assert.Zero(t, job.calls)
}

func TestWebhook_InvalidSignatureMakesNoUpstreamCalls(t *testing.T) {
	ctrl := gomock.NewController(t)
	// no expectations: any GitHub or store call fails the test
	job := newReviewJob(t, mocks.NewMockClient(ctrl), mocks.NewMockStore(ctrl))
	h := handler.NewWebhookHandler(testSecret, job, nil, 0, discardLogger())
	body := []byte(openedPayload)

	tests := []struct {
		name      string
		signature string
	}{
		{"missing", ""},
		{"wrong secret", sign(body, "other")},
		{"sha1 scheme", "sha1=0123456789abcdef0123456789abcdef01234567"},
		{"garbage", "sha256=zz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := deliver(t, h, "pull_request", body, tt.signature)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "error", resp["status"])
		})
	}
}

func TestWebhook_PullRequestOpened_EndToEnd(t *testing.T) {
	ctrl := gomock.NewController(t)
	gh := mocks.NewMockClient(ctrl)
	store := mocks.NewMockStore(ctrl)

	gh.EXPECT().GetPullRequestDiff(gomock.Any(), "acme/widgets", 42).Return("diff --git a/db.go b/db.go\n+q := \"SELECT \" + id\n", nil)
	gh.EXPECT().GetChangedFiles(gomock.Any(), "acme/widgets", 42).Return([]github.ChangedFile{{Filename: "db.go"}}, nil)
	store.EXPECT().SaveReview(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ *core.Repository, pr *core.PullRequestRecord, review *core.CodeReviewRecord) error {
			assert.Equal(t, 42, pr.Number)
			assert.Equal(t, 1, review.IssuesFound)
			assert.Equal(t, 1, review.SeverityHigh)
			assert.Equal(t, 0, review.SeverityMedium)
			return nil
		})
	gh.EXPECT().CreateComment(gomock.Any(), "acme/widgets", 42, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, _ int, body string) error {
			assert.Contains(t, body, "Quality Score:** 7/10")
			return nil
		})

	h := handler.NewWebhookHandler(testSecret, newReviewJob(t, gh, store), nil, 0, discardLogger())
	body := []byte(openedPayload)

	rec, resp := deliver(t, h, "pull_request", body, sign(body, testSecret))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "received", resp["status"])
	assert.Equal(t, "PR #42 will be reviewed", resp["message"])
	assert.Equal(t, "72d3162e-cc78-11e3-81ab-4c9367dc0958", resp["delivery_id"])
}

func TestWebhook_IgnoredEvents(t *testing.T) {
	job := &countingJob{}
	h := handler.NewWebhookHandler(testSecret, job, nil, 0, discardLogger())

	closed := []byte(`{"action":"closed","pull_request":{"number":42},"repository":{"full_name":"acme/widgets"}}`)
	rec, resp := deliver(t, h, "pull_request", closed, sign(closed, testSecret))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "event ignored", resp["status"])

	push := []byte(`{"ref":"refs/heads/main"}`)
	rec, resp = deliver(t, h, "push", push, sign(push, testSecret))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "event ignored", resp["status"])

	assert.Zero(t, job.calls)
}

func TestWebhook_PipelineFailureIsAcknowledged(t *testing.T) {
	job := &countingJob{err: &jobs.StageError{
		Stage:  jobs.StageDiffFetched,
		Repo:   "acme/widgets",
		Number: 42,
		Err:    errors.New("GET https://api.github.com/repos/acme/widgets/pulls/42 with ghp_token: 404 Not Found"),
	}}
	h := handler.NewWebhookHandler(testSecret, job, nil, 0, discardLogger(), "ghp_token")
	body := []byte(openedPayload)

	rec, resp := deliver(t, h, "pull_request", body, sign(body, testSecret))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "error", resp["status"])
	assert.Equal(t, "DIFF_FETCHED", resp["stage"])
	assert.NotContains(t, resp["message"], "ghp_token")
	assert.Equal(t, 1, job.calls)
}

func TestWebhook_MalformedBody(t *testing.T) {
	h := handler.NewWebhookHandler(testSecret, &countingJob{}, nil, 0, discardLogger())
	body := []byte(`{"action":`)

	rec, resp := deliver(t, h, "pull_request", body, sign(body, testSecret))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error", resp["status"])
}

func TestWebhook_AsyncQueuesEvent(t *testing.T) {
	job := &countingJob{}
	d := &recordingDispatcher{}
	h := handler.NewWebhookHandler(testSecret, job, d, 0, discardLogger())
	body := []byte(openedPayload)

	rec, resp := deliver(t, h, "pull_request", body, sign(body, testSecret))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "queued", resp["status"])
	require.Len(t, d.events, 1)
	assert.Equal(t, "acme/widgets", d.events[0].RepoFullName)
	assert.Equal(t, 42, d.events[0].PRNumber)
	assert.Equal(t, "72d3162e-cc78-11e3-81ab-4c9367dc0958", d.events[0].DeliveryID)
	assert.Zero(t, job.calls)
}

func TestWebhook_AsyncQueueFull(t *testing.T) {
	d := &recordingDispatcher{err: jobs.ErrQueueFull}
	h := handler.NewWebhookHandler(testSecret, &countingJob{}, d, 0, discardLogger())
	body := []byte(openedPayload)

	rec, resp := deliver(t, h, "pull_request", body, sign(body, testSecret))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "error", resp["status"])
}

func TestWebhook_ReviewSurvivesClientDisconnect(t *testing.T) {
	ctrl := gomock.NewController(t)
	gh := mocks.NewMockClient(ctrl)
	store := mocks.NewMockStore(ctrl)

	reqCtx, hangUp := context.WithCancel(context.Background())
	defer hangUp()

	gh.EXPECT().GetPullRequestDiff(gomock.Any(), "acme/widgets", 42).Return("diff --git a/a.go b/a.go\n+x := 1\n", nil)
	gh.EXPECT().GetChangedFiles(gomock.Any(), "acme/widgets", 42).Return([]github.ChangedFile{{Filename: "a.go"}}, nil)
	store.EXPECT().SaveReview(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ *core.Repository, _ *core.PullRequestRecord, _ *core.CodeReviewRecord) error {
			require.Error(t, reqCtx.Err())
			assert.NoError(t, ctx.Err())
			return nil
		})
	gh.EXPECT().CreateComment(gomock.Any(), "acme/widgets", 42, gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ string, _ int, body string) error {
			assert.NoError(t, ctx.Err())
			assert.Contains(t, body, "Quality Score:** 9/10")
			return nil
		})

	pm, err := llm.NewPromptManager()
	require.NoError(t, err)
	analyzer := llm.NewAnalyzer(hangUpGenerator{hangUp: hangUp, t: t}, pm, discardLogger())
	job := jobs.NewReviewJob(gh, store, emptyRetriever{}, analyzer, discardLogger())
	h := handler.NewWebhookHandler(testSecret, job, nil, time.Minute, discardLogger())

	body := []byte(openedPayload)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook/github", bytes.NewReader(body)).WithContext(reqCtx)
	req.Header.Set("X-GitHub-Event", "pull_request")
	req.Header.Set(github.SignatureHeader, sign(body, testSecret))
	rec := httptest.NewRecorder()
	h.Handle(rec, req)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "received", resp["status"])
}

type deadlineJob struct {
	deadline time.Time
	bounded  bool
}

func (j *deadlineJob) Run(ctx context.Context, _ *core.PullRequestEvent) (*core.AnalysisResult, error) {
	j.deadline, j.bounded = ctx.Deadline()
	return &core.AnalysisResult{}, nil
}

func TestWebhook_InlineReviewUsesJobTimeout(t *testing.T) {
	job := &deadlineJob{}
	h := handler.NewWebhookHandler(testSecret, job, nil, 5*time.Minute, discardLogger())
	body := []byte(openedPayload)

	start := time.Now()
	rec, resp := deliver(t, h, "pull_request", body, sign(body, testSecret))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "received", resp["status"])
	require.True(t, job.bounded)
	assert.WithinDuration(t, start.Add(5*time.Minute), job.deadline, 5*time.Second)
}
