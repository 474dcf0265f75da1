// Package jobs runs pull request reviews, either inline or on a worker pool.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sevigo/devflow/internal/core"
	"github.com/sevigo/devflow/internal/github"
	"github.com/sevigo/devflow/internal/llm"
	"github.com/sevigo/devflow/internal/metrics"
	"github.com/sevigo/devflow/internal/storage"
	"github.com/sevigo/devflow/internal/util"
)

// MaxStoredDiffChars caps the diff text kept on a pull request record.
const MaxStoredDiffChars = 10000

// Stage is a step of the review pipeline.
type Stage string

const (
	StageReceived    Stage = "RECEIVED"
	StageDiffFetched Stage = "DIFF_FETCHED"
	StageAnalyzed    Stage = "ANALYZED"
	StagePersisted   Stage = "PERSISTED"
	StageCommented   Stage = "COMMENTED"
	StageDone        Stage = "DONE"
	StageFailed      Stage = "FAILED"
)

// StageError reports the stage a review was trying to reach when it failed.
type StageError struct {
	Stage  Stage
	Repo   string
	Number int
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("review %s#%d failed at %s: %v", e.Repo, e.Number, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ReviewJob is the review pipeline for a single pull request.
type ReviewJob struct {
	gh        github.Client
	store     storage.Store
	retriever llm.ContextRetriever
	analyzer  llm.Analyzer
	logger    *slog.Logger
	secrets   []string
	now       func() time.Time
}

// NewReviewJob creates a ReviewJob. secrets are scrubbed from every error it returns.
func NewReviewJob(gh github.Client, store storage.Store, retriever llm.ContextRetriever, analyzer llm.Analyzer, logger *slog.Logger, secrets ...string) *ReviewJob {
	if gh == nil {
		panic("github client cannot be nil")
	}
	if store == nil {
		panic("store cannot be nil")
	}
	if retriever == nil || analyzer == nil {
		panic("retriever and analyzer cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &ReviewJob{
		gh:        gh,
		store:     store,
		retriever: retriever,
		analyzer:  analyzer,
		logger:    logger,
		secrets:   secrets,
		now:       time.Now,
	}
}

// Review is the outcome of the fetch and analysis stages.
type Review struct {
	Diff    string
	Files   []string
	Context llm.RetrievedContext
	Result  *core.AnalysisResult
}

// Analyze fetches the change and produces the verdict without persisting or
// posting anything.
func (j *ReviewJob) Analyze(ctx context.Context, event *core.PullRequestEvent) (*Review, error) {
	if err := validateEvent(event); err != nil {
		return nil, err
	}
	log := j.logger.With("repo", event.RepoFullName, "pr", event.PRNumber)
	log.Info("review started", "stage", StageReceived, "delivery", event.DeliveryID)

	diff, err := j.gh.GetPullRequestDiff(ctx, event.RepoFullName, event.PRNumber)
	if err != nil {
		return nil, j.fail(log, event, StageDiffFetched, err)
	}
	changed, err := j.gh.GetChangedFiles(ctx, event.RepoFullName, event.PRNumber)
	if err != nil {
		return nil, j.fail(log, event, StageDiffFetched, err)
	}
	files := make([]string, 0, len(changed))
	for _, f := range changed {
		files = append(files, f.Filename)
	}
	stats := github.ParseDiffStats(diff)
	log.Info("diff fetched", "stage", StageDiffFetched,
		"files", len(files), "additions", stats.Additions, "deletions", stats.Deletions)

	retrieved := j.retriever.Retrieve(ctx, diff)
	result := j.analyzer.Analyze(ctx, diff, files, retrieved.Text)
	log.Info("analysis complete", "stage", StageAnalyzed,
		"context_snippets", retrieved.Snippets,
		"issues", len(result.Issues),
		"score", result.Score,
		"degraded", result.Degraded)

	return &Review{Diff: diff, Files: files, Context: retrieved, Result: result}, nil
}

// Run executes the whole pipeline. When posting the comment fails the
// persisted result is returned together with a COMMENTED StageError.
func (j *ReviewJob) Run(ctx context.Context, event *core.PullRequestEvent) (*core.AnalysisResult, error) {
	start := j.now()
	review, err := j.Analyze(ctx, event)
	if err != nil {
		metrics.ObserveReview(string(stageOf(err)), j.now().Sub(start).Seconds())
		return nil, err
	}
	log := j.logger.With("repo", event.RepoFullName, "pr", event.PRNumber)

	repo, pr, record, err := j.buildRecords(event, review)
	if err != nil {
		err = j.fail(log, event, StagePersisted, err)
		metrics.ObserveReview(string(StagePersisted), j.now().Sub(start).Seconds())
		return nil, err
	}
	if err := j.store.SaveReview(ctx, repo, pr, record); err != nil {
		err = j.fail(log, event, StagePersisted, err)
		metrics.ObserveReview(string(StagePersisted), j.now().Sub(start).Seconds())
		return nil, err
	}
	log.Info("review persisted", "stage", StagePersisted, "pr_id", pr.ID, "review_id", record.ID)

	body := github.FormatReviewComment(review.Result)
	if err := j.gh.CreateComment(ctx, event.RepoFullName, event.PRNumber, body); err != nil {
		err = j.fail(log, event, StageCommented, err)
		metrics.ObserveReview(string(StageCommented), j.now().Sub(start).Seconds())
		return review.Result, err
	}
	log.Info("review comment posted", "stage", StageCommented)

	metrics.ObserveReview(string(StageDone), j.now().Sub(start).Seconds())
	log.Info("review finished", "stage", StageDone, "duration", j.now().Sub(start))
	return review.Result, nil
}

func (j *ReviewJob) buildRecords(event *core.PullRequestEvent, review *Review) (*core.Repository, *core.PullRequestRecord, *core.CodeReviewRecord, error) {
	payload, err := json.Marshal(review.Result)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode analysis: %w", err)
	}
	owner, name, err := core.SplitRepoFullName(event.RepoFullName)
	if err != nil {
		return nil, nil, nil, err
	}
	repo := &core.Repository{
		GitHubID: event.RepoGitHubID,
		FullName: event.RepoFullName,
		Owner:    owner,
		Name:     name,
	}
	pr := &core.PullRequestRecord{
		RepoFullName: event.RepoFullName,
		Number:       event.PRNumber,
		Title:        event.PRTitle,
		Author:       event.Author,
		Diff:         util.TruncateRunes(review.Diff, MaxStoredDiffChars),
		State:        core.PullRequestStateOpen,
	}
	record := &core.CodeReviewRecord{
		AIResponse:     payload,
		IssuesFound:    len(review.Result.Issues),
		SeverityHigh:   review.Result.CountBySeverity(core.SeverityHigh),
		SeverityMedium: review.Result.CountBySeverity(core.SeverityMedium),
	}
	return repo, pr, record, nil
}

// fail logs the failure and wraps it in a StageError with secrets removed.
func (j *ReviewJob) fail(log *slog.Logger, event *core.PullRequestEvent, stage Stage, err error) error {
	msg := util.Redact(err.Error(), j.secrets...)
	log.Error("review failed", "stage", stage, "error", msg)
	var wrapped error = errors.New(msg)
	if msg == err.Error() {
		wrapped = err
	}
	return &StageError{Stage: stage, Repo: event.RepoFullName, Number: event.PRNumber, Err: wrapped}
}

func stageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return StageFailed
}

func validateEvent(event *core.PullRequestEvent) error {
	if event == nil {
		return &StageError{Stage: StageReceived, Err: errors.New("event cannot be nil")}
	}
	if _, _, err := core.SplitRepoFullName(event.RepoFullName); err != nil {
		return &StageError{Stage: StageReceived, Repo: event.RepoFullName, Number: event.PRNumber, Err: err}
	}
	if event.PRNumber <= 0 {
		return &StageError{Stage: StageReceived, Repo: event.RepoFullName, Number: event.PRNumber,
			Err: fmt.Errorf("pull request number must be positive, got: %d", event.PRNumber)}
	}
	return nil
}
