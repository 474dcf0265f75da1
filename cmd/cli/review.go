package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sevigo/devflow/internal/core"
	"github.com/sevigo/devflow/internal/github"
	"github.com/sevigo/devflow/internal/gitutil"
	"github.com/sevigo/devflow/internal/jobs"
	"github.com/sevigo/devflow/internal/wire"
)

var (
	verbose bool
	dryRun  bool
)

// Color definitions
var (
	titleColor   = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
	dimColor     = color.New(color.FgHiBlack)
)

var reviewCmd = &cobra.Command{
	Use:   "review [pr-url]",
	Short: "Run the review pipeline for a GitHub pull request",
	Long: `Run the review pipeline for a GitHub pull request.

The review command fetches the PR diff, retrieves related snippets from the
index, asks the model for a structured verdict, stores it and posts the
comment. With --dry-run nothing is stored or posted and the comment is
rendered in the terminal instead.

Examples:
  devflow-cli review https://github.com/acme/widgets/pull/42
  devflow-cli review --dry-run acme/widgets#42`,
	Args: cobra.ExactArgs(1),
	RunE: runReview,
}

func init() { //nolint:gochecknoinits // Cobra command registration
	reviewCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output with timing information")
	reviewCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Analyze only; do not persist or post a comment")
	rootCmd.AddCommand(reviewCmd)
}

// stepTimer tracks timing for verbose output
type stepTimer struct {
	stepNum    int
	totalSteps int
	start      time.Time
	verbose    bool
}

func newStepTimer(totalSteps int, verbose bool) *stepTimer {
	return &stepTimer{totalSteps: totalSteps, verbose: verbose}
}

func (t *stepTimer) step(name string) {
	t.stepNum++
	t.start = time.Now()
	if t.verbose {
		titleColor.Printf("\n🔧 Step %d/%d: %s...\n", t.stepNum, t.totalSteps, name)
	} else {
		fmt.Printf("%s...\n", name)
	}
}

func (t *stepTimer) done(details ...string) {
	if t.verbose {
		elapsed := time.Since(t.start).Round(time.Millisecond)
		successColor.Printf("   ✓ Done (%s)\n", elapsed)
		for _, d := range details {
			dimColor.Printf("   └── %s\n", d)
		}
	}
}

func (t *stepTimer) info(format string, args ...any) {
	if t.verbose {
		dimColor.Printf("   ├── "+format+"\n", args...)
	}
}

func runReview(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	ref, err := gitutil.ParsePullRequestURL(args[0])
	if err != nil {
		return fmt.Errorf("invalid PR URL: %w\n\nExpected format: https://github.com/owner/repo/pull/123", err)
	}

	timer := newStepTimer(3, verbose)
	overallStart := time.Now()

	titleColor.Println("🚀 DevFlow - PR Review")
	dimColor.Printf("   Target: %s\n\n", ref)

	timer.step("Initializing application")
	appInstance, cleanup, err := wire.InitializeApp(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize app: %w\n\nTip: Check that your config.yaml exists and is valid", err)
	}
	defer cleanup()
	timer.done()

	timer.step("Fetching PR metadata")
	pr, err := appInstance.GitHub.GetPullRequest(ctx, ref.FullName(), ref.Number)
	if err != nil {
		return fmt.Errorf("failed to fetch PR: %w\n\nTip: Check that the PR exists and your token has access", err)
	}
	timer.info("PR #%d: %s", pr.GetNumber(), pr.GetTitle())
	timer.info("Author: %s", pr.GetUser().GetLogin())
	timer.done()

	event := &core.PullRequestEvent{
		DeliveryID:   "cli",
		RepoGitHubID: pr.GetBase().GetRepo().GetID(),
		RepoOwner:    ref.Owner,
		RepoName:     ref.Repo,
		RepoFullName: ref.FullName(),
		PRNumber:     ref.Number,
		PRTitle:      pr.GetTitle(),
		Author:       pr.GetUser().GetLogin(),
	}

	timer.step("Generating review")
	var result *core.AnalysisResult
	outcome := outcomePosted
	if dryRun {
		outcome = outcomeDryRun
		review, err := appInstance.Job.Analyze(ctx, event)
		if err != nil {
			return fmt.Errorf("failed to analyze PR: %w", err)
		}
		timer.info("Files: %d", len(review.Files))
		timer.info("Context snippets: %d", review.Context.Snippets)
		result = review.Result
	} else {
		result, err = appInstance.Job.Run(ctx, event)
		var se *jobs.StageError
		if errors.As(err, &se) && se.Stage == jobs.StageCommented && result != nil {
			warnColor.Printf("   ⚠ Review stored but the comment could not be posted: %v\n", se.Err)
			outcome = outcomeNotPosted
		} else if err != nil {
			return fmt.Errorf("review failed: %w\n\nTip: Check that the model API key is valid", err)
		}
	}
	timer.info("Issues: %d", len(result.Issues))
	timer.done()

	if verbose {
		dimColor.Printf("\n⏱️  Total time: %s\n", time.Since(overallStart).Round(time.Millisecond))
	}

	return printReview(result, outcome)
}

// reviewOutcome says what happened to the PR comment.
type reviewOutcome int

const (
	outcomeDryRun reviewOutcome = iota
	outcomePosted
	outcomeNotPosted
)

// statusLine is the closing line for a review; empty for dry runs.
func statusLine(result *core.AnalysisResult, outcome reviewOutcome) string {
	score := strings.TrimSuffix(fmt.Sprintf("%.1f", result.Score), ".0")
	switch outcome {
	case outcomePosted:
		return fmt.Sprintf("✅ Comment posted (score %s/10, %d issues)", score, len(result.Issues))
	case outcomeNotPosted:
		return fmt.Sprintf("⚠ Review stored, comment not posted (score %s/10, %d issues)", score, len(result.Issues))
	default:
		return ""
	}
}

func printReview(result *core.AnalysisResult, outcome reviewOutcome) error {
	if result.Degraded {
		errorColor.Println("\n⚠ The model could not produce a review; showing the fallback result.")
	}

	switch outcome {
	case outcomePosted:
		fmt.Println()
		successColor.Println(statusLine(result, outcome))
		return nil
	case outcomeNotPosted:
		fmt.Println()
		warnColor.Println(statusLine(result, outcome))
	}

	body := github.FormatReviewComment(result)

	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		fmt.Println(body)
		return nil
	}
	out, err := r.Render(body)
	if err != nil {
		fmt.Println(body)
		return nil
	}
	fmt.Print(out)
	return nil
}
